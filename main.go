// Command homepind is the shortcut pinning daemon. It serves the canPin and
// pin commands over a per-user IPC socket and a loopback WebSocket.
package main

import (
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"homepin/internal/singleinstance"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if errors.Is(err, singleinstance.ErrAlreadyRunning) {
			slog.Info("[DEBUG-SINGLE] another instance is already running")
			return
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var opts appOptions
	cmd := &cobra.Command{
		Use:           "homepind",
		Short:         "Pin collection shortcuts to the launcher",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.DryRunSet = cmd.Flags().Changed("dry-run")
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return NewApp(opts).Run(ctx)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.ConfigPath, "config", "", "config file (default $XDG_CONFIG_HOME/homepin/config.yaml)")
	flags.StringVar(&opts.LogLevel, "log-level", "", "override log_level (debug, info, warn, error)")
	flags.StringVar(&opts.SocketPath, "socket", "", "override socket_path")
	flags.BoolVar(&opts.DryRun, "dry-run", false, "record pin requests in memory instead of writing desktop entries")
	return cmd
}
