package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"homepin/internal/channel"
	"homepin/internal/config"
	"homepin/internal/host"
	"homepin/internal/ipc"
	"homepin/internal/logging"
	"homepin/internal/metrics"
	"homepin/internal/shortcut"
	"homepin/internal/singleinstance"
	"homepin/internal/workerutil"
	"homepin/internal/wsserver"

	"golang.org/x/sync/errgroup"
)

var (
	tryLockFn     = singleinstance.TryLock
	lockNameFn    = singleinstance.DefaultName
	defaultPathFn = config.DefaultPath
)

const shutdownWaitTimeout = 10 * time.Second

// Run starts every service, blocks until ctx is cancelled and then shuts
// down. A startup failure is returned after partial startup is undone.
func (a *App) Run(ctx context.Context) error {
	if err := a.startup(ctx); err != nil {
		a.shutdown()
		return err
	}

	workerutil.RunWithPanicRecovery(ctx, supportMonitorWorker, &a.bgWG, a.monitorSupport, a.supportMonitorRecovery())
	<-ctx.Done()
	return a.shutdown()
}

func (a *App) startup(ctx context.Context) error {
	setConsoleUTF8()

	a.configPath = a.opts.ConfigPath
	if a.configPath == "" {
		a.configPath = defaultPathFn()
	}
	cfg, err := config.EnsureFile(a.configPath)
	if err != nil {
		// A broken config file is not fatal; run with defaults.
		cfg = config.DefaultConfig()
		a.startupWarnings = append(a.startupWarnings,
			fmt.Sprintf("failed to load config from %s, running with defaults: %v", a.configPath, err))
	}
	a.cfg = a.applyOverrides(cfg)

	a.metrics = metrics.New()
	if err := logging.Setup(logging.Options{
		Level:    a.cfg.LogLevel,
		Format:   a.cfg.LogFormat,
		Writer:   a.opts.LogWriter,
		OnRecord: a.metrics.ObserveLog,
	}); err != nil {
		a.startupWarnings = append(a.startupWarnings, err.Error())
	}
	for _, warning := range a.startupWarnings {
		slog.Warn("[WARN-CONFIG] " + warning)
	}

	lock, err := tryLockFn(lockNameFn())
	if errors.Is(err, singleinstance.ErrAlreadyRunning) {
		return err
	}
	if err != nil {
		slog.Warn("[DEBUG-SINGLE] lock failed, proceeding without single-instance guard", "error", err)
	}
	a.lock = lock

	facility, caps := a.newFacility()
	a.builder = shortcut.NewBuilder(facility, shortcut.Options{
		Resources: host.ResourceTable{
			Adaptive: a.cfg.Resources[config.ResourceAdaptive],
			Legacy:   a.cfg.Resources[config.ResourceLegacy],
		},
		Capabilities: caps,
		IconSize:     a.cfg.IconSize,
	})
	a.handler = channel.NewHandler(a.builder, a.metrics)

	if err := a.startServers(ctx); err != nil {
		return err
	}

	slog.Info("[DEBUG-PIN] daemon ready",
		"config", a.configPath,
		"dryRun", a.cfg.DryRun,
		"launcherDir", a.cfg.LauncherDir,
		"canPin", a.builder.CanPin(),
	)
	return nil
}

// startServers brings up the IPC and WebSocket listeners concurrently. Only
// an IPC failure is fatal; the WebSocket server is optional.
func (a *App) startServers(ctx context.Context) error {
	var g errgroup.Group
	a.ipcServer = ipc.NewServer(a.cfg.SocketPath, a.handler)
	g.Go(func() error {
		if err := a.ipcServer.Start(); err != nil {
			return fmt.Errorf("start ipc server: %w", err)
		}
		return nil
	})
	if a.cfg.WebSocketAddr != "" {
		hub := wsserver.NewHub(wsserver.HubOptions{
			Addr:     a.cfg.WebSocketAddr,
			Executor: a.handler,
			Metrics:  a.metrics.Handler(),
		})
		g.Go(func() error {
			if err := hub.Start(ctx); err != nil {
				slog.Warn("[DEBUG-WS] websocket server failed to start", "addr", a.cfg.WebSocketAddr, "error", err)
				return nil
			}
			a.wsHub = hub
			return nil
		})
	}
	return g.Wait()
}

func (a *App) applyOverrides(cfg config.Config) config.Config {
	cfg = config.Clone(cfg)
	if a.opts.LogLevel != "" {
		cfg.LogLevel = a.opts.LogLevel
	}
	if a.opts.SocketPath != "" {
		cfg.SocketPath = a.opts.SocketPath
	}
	if a.opts.DryRunSet || a.opts.DryRun {
		cfg.DryRun = a.opts.DryRun
	}
	return cfg
}

// newFacility picks the pin host. The host answers the masking query
// itself so that the fallback icon matches what it will draw.
func (a *App) newFacility() (shortcut.Facility, shortcut.Capabilities) {
	adaptive := a.cfg.AdaptiveMasking()
	if a.cfg.DryRun {
		rec := host.NewRecorder(true, adaptive)
		rec.OnSubmit = func(d shortcut.Descriptor) error {
			slog.Info("[DEBUG-PIN] dry run: shortcut recorded",
				"id", d.ID,
				"label", d.Label,
				"uri", d.Launch.URI(),
			)
			return nil
		}
		return rec, rec
	}
	a.watchDir = a.cfg.LauncherDir
	desktop := host.NewDesktopEntryHost(host.DesktopEntryOptions{
		Dir:             a.cfg.LauncherDir,
		Command:         a.cfg.LauncherCommand,
		AdaptiveMasking: adaptive,
	})
	return desktop, desktop
}

// shutdown stops the servers, waits for in-flight pins and releases the
// instance lock. Idempotent.
func (a *App) shutdown() error {
	var errs []error
	a.shutdownOnce.Do(func() {
		a.shuttingDown.Store(true)
		if a.ipcServer != nil {
			if err := a.ipcServer.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("stop ipc server: %w", err))
			}
		}
		if a.wsHub != nil {
			if err := a.wsHub.Stop(); err != nil {
				errs = append(errs, err)
			}
		}
		if a.handler != nil && !waitWithTimeout(a.handler.Wait, shutdownWaitTimeout) {
			slog.Warn("[DEBUG-PIN] timed out waiting for pin workers during shutdown")
		}
		if !waitWithTimeout(a.bgWG.Wait, shutdownWaitTimeout) {
			slog.Warn("[DEBUG-PANIC] timed out waiting for background workers during shutdown")
		}
		if err := a.lock.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release instance lock: %w", err))
		}
		slog.Info("[DEBUG-PIN] daemon stopped")
	})
	return errors.Join(errs...)
}

// waitWithTimeout runs wait and reports whether it returned within d.
func waitWithTimeout(wait func(), d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}
