package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"homepin/internal/fsutil"
	"homepin/internal/workerutil"

	"github.com/fsnotify/fsnotify"
)

const supportMonitorWorker = "support-monitor"

var (
	// supportPollInterval is how often the host is re-checked regardless of
	// file system events. Events can be missed (network home directories,
	// permission changes on ancestors), so polling stays as the backstop.
	supportPollInterval = 30 * time.Second

	newWatcherFn = fsnotify.NewWatcher
)

// supportEventMask covers the changes that can flip launcher directory
// writability: the directory appearing, disappearing or changing mode.
const supportEventMask = fsnotify.Create | fsnotify.Remove | fsnotify.Rename | fsnotify.Chmod

// monitorSupport keeps the pin_supported gauge current and logs changes.
// Commands never read this state; canPin always asks the host directly.
func (a *App) monitorSupport(ctx context.Context) {
	last := a.builder.CanPin()
	a.metrics.SetPinSupported(last)

	watch := newLauncherWatch(a.watchDir)
	defer watch.close()

	recheck := func(trigger string) {
		current := a.builder.CanPin()
		a.metrics.SetPinSupported(current)
		if current != last {
			slog.Info("[DEBUG-PIN] pin support changed",
				"supported", current,
				"trigger", trigger,
				"launcherDir", a.cfg.LauncherDir,
			)
			last = current
		}
	}

	ticker := time.NewTicker(supportPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			recheck("poll")
		case event, ok := <-watch.events():
			if !ok {
				watch = nil
				continue
			}
			if event.Op&supportEventMask == 0 {
				continue
			}
			watch.retarget()
			recheck("fs:" + event.Op.String())
		case err, ok := <-watch.errors():
			if !ok {
				watch = nil
				continue
			}
			slog.Debug("[DEBUG-PIN] launcher dir watch error", "error", err)
		}
	}
}

// supportMonitorRecovery clears the gauge when the monitor gives up, so a
// dead monitor never keeps reporting a stale "supported".
func (a *App) supportMonitorRecovery() workerutil.RecoveryOptions {
	return workerutil.RecoveryOptions{
		IsShutdown: a.shuttingDown.Load,
		OnPanic: func(perr *workerutil.PanicError, _ int) {
			a.metrics.ObserveWorkerPanic(perr.Task)
		},
		OnFatal: func(last *workerutil.PanicError) {
			a.metrics.SetPinSupported(false)
			slog.Warn("[DEBUG-PIN] support monitor stopped, pin_supported cleared", "lastPanic", last)
		},
	}
}

// launcherWatch follows the launcher directory, or its closest existing
// ancestor while the directory does not exist yet. A nil *launcherWatch is
// valid and never delivers events.
type launcherWatch struct {
	dir     string
	target  string
	watcher *fsnotify.Watcher
}

func newLauncherWatch(dir string) *launcherWatch {
	if dir == "" {
		return nil
	}
	watcher, err := newWatcherFn()
	if err != nil {
		slog.Warn("[DEBUG-PIN] launcher dir watch unavailable, polling only", "error", err)
		return nil
	}
	w := &launcherWatch{dir: dir, watcher: watcher}
	if err := w.retargetErr(); err != nil {
		slog.Warn("[DEBUG-PIN] launcher dir watch unavailable, polling only", "dir", dir, "error", err)
		w.close()
		return nil
	}
	return w
}

func (w *launcherWatch) events() <-chan fsnotify.Event {
	if w == nil {
		return nil
	}
	return w.watcher.Events
}

func (w *launcherWatch) errors() <-chan error {
	if w == nil {
		return nil
	}
	return w.watcher.Errors
}

// retarget moves the watch when the closest existing directory changed,
// e.g. after the launcher directory was created or removed.
func (w *launcherWatch) retarget() {
	if w == nil {
		return
	}
	if err := w.retargetErr(); err != nil {
		slog.Debug("[DEBUG-PIN] launcher dir watch retarget failed", "dir", w.dir, "error", err)
	}
}

func (w *launcherWatch) retargetErr() error {
	target, err := fsutil.ClosestExistingDir(w.dir)
	if err != nil {
		return err
	}
	if target == w.target {
		return nil
	}
	if w.target != "" {
		// The old target may already be gone, which also drops its watch.
		if err := w.watcher.Remove(w.target); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
			slog.Debug("[DEBUG-PIN] launcher dir unwatch failed", "dir", w.target, "error", err)
		}
	}
	if err := w.watcher.Add(target); err != nil {
		w.target = ""
		return err
	}
	slog.Debug("[DEBUG-PIN] watching launcher dir", "dir", target)
	w.target = target
	return nil
}

func (w *launcherWatch) close() {
	if w == nil {
		return
	}
	if err := w.watcher.Close(); err != nil {
		slog.Debug("[DEBUG-PIN] launcher dir watch close failed", "error", err)
	}
}
