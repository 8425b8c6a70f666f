// Package workerutil runs goroutines that must never take the daemon down:
// restartable background loops and single-shot tasks whose panics become
// errors.
package workerutil

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

const (
	// defaultInitialBackoff is the delay before the first restart of a
	// panicking worker. Doubles on each attempt up to defaultMaxBackoff.
	defaultInitialBackoff = 100 * time.Millisecond

	// defaultMaxBackoff caps the delay between restart attempts.
	defaultMaxBackoff = 5 * time.Second

	// defaultMaxRetries bounds restarts before the worker is given up.
	// 10 attempts with the default backoff span roughly 30 seconds.
	defaultMaxRetries = 10
)

// RecoveryOptions configures RunWithPanicRecovery. Zero-value numeric fields
// select the defaults; nil callbacks are no-ops. Set MaxRetries to 1 to run
// the worker once without restarts.
type RecoveryOptions struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxRetries     int

	// OnPanic runs after each recovered panic that will be followed by a
	// restart or by OnFatal. attempt is 1-based.
	OnPanic func(perr *PanicError, attempt int)

	// OnFatal runs once when MaxRetries is exhausted, with the last panic.
	OnFatal func(last *PanicError)

	// IsShutdown stops restarts while the daemon is shutting down.
	IsShutdown func() bool
}

func (opts RecoveryOptions) applyDefaults() RecoveryOptions {
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = defaultInitialBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaultMaxBackoff
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		slog.Warn("[DEBUG-PANIC] MaxBackoff < InitialBackoff, using InitialBackoff as MaxBackoff",
			"initialBackoff", opts.InitialBackoff,
			"maxBackoff", opts.MaxBackoff,
		)
		opts.MaxBackoff = opts.InitialBackoff
	}
	return opts
}

// RunWithPanicRecovery runs fn on a goroutine tracked by wg and restarts it
// with exponential backoff when it panics. A normal return, or a panic after
// ctx is cancelled, ends the worker.
func RunWithPanicRecovery(
	ctx context.Context,
	name string,
	wg *sync.WaitGroup,
	fn func(ctx context.Context),
	opts RecoveryOptions,
) {
	opts = opts.applyDefaults()
	wg.Go(func() {
		runRecoveryLoop(ctx, name, fn, opts)
	})
}

func runRecoveryLoop(
	ctx context.Context,
	name string,
	fn func(ctx context.Context),
	opts RecoveryOptions,
) {
	delay := opts.InitialBackoff
	var last *PanicError

	for attempt := 1; attempt <= opts.MaxRetries; attempt++ {
		last = runWorkerOnce(ctx, name, fn)
		if last == nil || ctx.Err() != nil {
			return
		}
		if opts.IsShutdown != nil && opts.IsShutdown() {
			slog.Info("[DEBUG-PANIC] shutdown in progress, not restarting worker", "worker", name)
			return
		}
		if opts.OnPanic != nil {
			opts.OnPanic(last, attempt)
		}
		if attempt == opts.MaxRetries {
			break
		}

		slog.Warn("[DEBUG-PANIC] restarting worker after panic",
			"worker", name,
			"restartDelay", delay,
			"attempt", attempt,
		)
		if !sleepContext(ctx, delay) {
			return
		}
		delay = nextBackoff(delay, opts.MaxBackoff)
	}

	slog.Error("[DEBUG-PANIC] worker exceeded max retries, giving up",
		"worker", name,
		"maxRetries", opts.MaxRetries,
	)
	if opts.OnFatal != nil {
		opts.OnFatal(last)
	}
}

// runWorkerOnce runs fn and converts a panic into a *PanicError, the same
// way single-shot tasks report theirs.
func runWorkerOnce(ctx context.Context, name string, fn func(ctx context.Context)) (perr *PanicError) {
	defer func() {
		if r := recover(); r != nil {
			logPanic(name, r)
			perr = &PanicError{Task: name, Value: r}
		}
	}()
	fn(ctx)
	return nil
}

// sleepContext waits for d and reports false if ctx ended first.
func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// nextBackoff doubles current up to maxBackoff, guarding against overflow.
func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	if current <= 0 {
		return defaultInitialBackoff
	}
	if current >= maxBackoff {
		return maxBackoff
	}
	next := current * 2
	if next > maxBackoff || next < current {
		return maxBackoff
	}
	return next
}

func logPanic(name string, recovered any) {
	slog.Error("[DEBUG-PANIC] goroutine recovered from panic",
		"worker", name,
		"panic", recovered,
		"stack", string(debug.Stack()),
	)
}
