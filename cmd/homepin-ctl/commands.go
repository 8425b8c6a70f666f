package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"homepin/internal/channel"
	"homepin/internal/fsutil"
	"homepin/internal/ipc"
	"homepin/internal/launch"
	"homepin/internal/shortcut"

	"github.com/spf13/cobra"
)

// maxIconFileBytes keeps pin requests under the daemon's request cap once
// base64 encoded.
const maxIconFileBytes = 8 << 20

// sendFn is a test seam.
var sendFn = ipc.Send

type globalOptions struct {
	socket  string
	timeout time.Duration
}

func newRootCommand() *cobra.Command {
	var global globalOptions
	root := &cobra.Command{
		Use:           "homepin-ctl",
		Short:         "Control the homepin daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&global.socket, "socket", "", "daemon socket (default per-user socket or $"+ipc.SocketEnv+")")
	root.PersistentFlags().DurationVar(&global.timeout, "timeout", 30*time.Second, "how long to wait for the daemon")

	root.AddCommand(
		newCanPinCommand(&global),
		newPinCommand(&global),
		newOpenCommand(),
	)
	return root
}

func newCanPinCommand(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "can-pin",
		Short: "Report whether the launcher accepts pinned shortcuts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ok, err := call(cmd.Context(), global, ipc.Request{Method: channel.MethodCanPin})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatBool(ok))
			return nil
		},
	}
}

func newPinCommand(global *globalOptions) *cobra.Command {
	var (
		label    string
		iconPath string
		filters  []string
	)
	cmd := &cobra.Command{
		Use:   "pin",
		Short: "Pin a shortcut that opens the collection with the given filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := shortcut.PinRequest{Label: label, Filters: filters}
			if iconPath != "" {
				raw, err := fsutil.ReadLimitedFile(iconPath, maxIconFileBytes)
				if err != nil {
					return fmt.Errorf("read icon: %w", err)
				}
				req.IconBytes = raw
			}
			args, err := channel.EncodePinArgs(req)
			if err != nil {
				return fmt.Errorf("encode pin arguments: %w", err)
			}
			if _, err := call(cmd.Context(), global, ipc.Request{Method: channel.MethodPin, Args: args}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "pin request submitted")
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&label, "label", "", "shortcut label")
	flags.StringVar(&iconPath, "icon", "", "image file used as the shortcut icon (center-cropped)")
	flags.StringArrayVar(&filters, "filter", nil, "collection filter, repeatable and ordered")
	return cmd
}

type openOutput struct {
	Page    string   `json:"page"`
	Filters []string `json:"filters"`
}

func newOpenCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "open <uri>",
		Short: "Resolve a shortcut launch URI into its page and filters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := launch.ParseURI(args[0])
			if err != nil {
				return err
			}
			out := openOutput{Page: action.Page, Filters: action.ResolvedFilters()}
			return writeOpenOutput(cmd.OutOrStdout(), out, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the resolved action as JSON")
	return cmd
}

func writeOpenOutput(w io.Writer, out openOutput, asJSON bool) error {
	if asJSON {
		if out.Filters == nil {
			out.Filters = []string{}
		}
		enc := json.NewEncoder(w)
		return enc.Encode(out)
	}
	if _, err := fmt.Fprintf(w, "page: %s\n", out.Page); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "filters: %s\n", strings.Join(out.Filters, ", "))
	return err
}

// call sends req and returns its boolean result. Failed responses become
// *ipc.ResponseError.
func call(ctx context.Context, global *globalOptions, req ipc.Request) (bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if global.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, global.timeout)
		defer cancel()
	}
	resp, err := sendFn(ctx, global.socket, req)
	if err != nil {
		return false, err
	}
	return resp.Bool()
}
