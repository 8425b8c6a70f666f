package main

import (
	"io"
	"sync"
	"sync/atomic"

	"homepin/internal/channel"
	"homepin/internal/config"
	"homepin/internal/ipc"
	"homepin/internal/metrics"
	"homepin/internal/shortcut"
	"homepin/internal/singleinstance"
	"homepin/internal/wsserver"
)

// appOptions are command-line overrides applied on top of the config file.
type appOptions struct {
	ConfigPath string
	LogLevel   string
	SocketPath string
	DryRun     bool
	// DryRunSet distinguishes --dry-run=false from an absent flag.
	DryRunSet bool
	// LogWriter replaces stderr. Tests use it.
	LogWriter io.Writer
}

// App owns the daemon services. Fields are written once during startup,
// before any server goroutine runs, and only read afterwards.
type App struct {
	opts       appOptions
	cfg        config.Config
	configPath string

	lock      *singleinstance.Lock
	metrics   *metrics.Metrics
	builder   *shortcut.Builder
	handler   *channel.Handler
	ipcServer *ipc.Server
	wsHub     *wsserver.Hub
	// watchDir is the launcher directory the support monitor watches. Empty
	// in dry-run mode.
	watchDir string

	// startupWarnings collects non-fatal startup problems, logged once the
	// configured logger is installed.
	startupWarnings []string

	shuttingDown atomic.Bool
	shutdownOnce sync.Once
	bgWG         sync.WaitGroup
}

// NewApp creates the app service. Nothing starts until Run.
func NewApp(opts appOptions) *App {
	return &App{opts: opts}
}
