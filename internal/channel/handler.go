package channel

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"homepin/internal/ipc"
	"homepin/internal/metrics"
	"homepin/internal/shortcut"
	"homepin/internal/workerutil"
)

// Error codes for failures that are not shortcut.Error kinds.
const (
	CodeNotImplemented = "not-implemented"
	CodeCancelled      = "cancelled"
)

// Pinner is the shortcut service driven by the handler.
type Pinner interface {
	CanPin() bool
	Pin(ctx context.Context, req shortcut.PinRequest) (shortcut.Descriptor, error)
}

// Result is a command outcome: a boolean value or a typed error.
type Result struct {
	Value bool
	Err   *ipc.ErrorBody
}

// Response converts r to its wire form.
func (r Result) Response(id string) ipc.Response {
	if r.Err != nil {
		return ipc.Response{ID: id, OK: false, Error: r.Err}
	}
	return ipc.Response{ID: id, OK: true, Result: r.Value}
}

// Handler dispatches commands. canPin is answered on the caller's
// goroutine; every pin runs on its own worker goroutine.
type Handler struct {
	pinner  Pinner
	metrics *metrics.Metrics
	wg      sync.WaitGroup
}

// NewHandler returns a Handler. m may be nil.
func NewHandler(pinner Pinner, m *metrics.Metrics) *Handler {
	return &Handler{pinner: pinner, metrics: m}
}

// Handle dispatches cmd. The returned channel delivers exactly one Result.
// Once started, a pin runs to completion even if ctx is cancelled.
func (h *Handler) Handle(ctx context.Context, cmd Command) <-chan Result {
	switch c := cmd.(type) {
	case CanPinCommand:
		return resolved(h.canPin())
	case PinCommand:
		return h.pin(ctx, c)
	case UnknownCommand:
		h.metrics.ObserveCommand(c.Name, CodeNotImplemented)
		return resolved(notImplemented(c.Name))
	default:
		return resolved(notImplemented(cmd.Method()))
	}
}

// Execute implements ipc.CommandExecutor. It stops waiting when ctx ends;
// the command itself keeps running.
func (h *Handler) Execute(ctx context.Context, req ipc.Request) ipc.Response {
	select {
	case res := <-h.Handle(ctx, Decode(req.Method, req.Args)):
		return res.Response(req.ID)
	case <-ctx.Done():
		return ipc.ErrorResponse(req.ID, CodeCancelled, "stopped waiting: "+ctx.Err().Error())
	}
}

// Wait blocks until all running pin workers have finished.
func (h *Handler) Wait() {
	h.wg.Wait()
}

func (h *Handler) canPin() (res Result) {
	defer func() {
		if r := recover(); r != nil {
			err := &workerutil.PanicError{Task: MethodCanPin, Value: r}
			slog.Error("[DEBUG-CHANNEL] canPin panicked", "panic", r)
			res = h.failure(MethodCanPin, err)
		}
	}()
	if h.pinner == nil {
		return h.failure(MethodCanPin, errors.New("no shortcut service configured"))
	}
	h.metrics.ObserveCommand(MethodCanPin, metrics.OutcomeOK)
	return Result{Value: h.pinner.CanPin()}
}

func (h *Handler) pin(ctx context.Context, cmd PinCommand) <-chan Result {
	out := make(chan Result, 1)
	if h.pinner == nil {
		out <- h.failure(MethodPin, errors.New("no shortcut service configured"))
		close(out)
		return out
	}

	finished := h.metrics.PinStarted()
	workCtx := context.WithoutCancel(ctx)
	task := workerutil.RunTask(&h.wg, MethodPin, func() (bool, error) {
		if _, err := h.pinner.Pin(workCtx, cmd.Request); err != nil {
			return false, err
		}
		return true, nil
	})
	h.wg.Go(func() {
		defer close(out)
		res := <-task
		finished()
		if res.Err != nil {
			out <- h.failure(MethodPin, res.Err)
			return
		}
		h.metrics.ObserveCommand(MethodPin, metrics.OutcomeOK)
		out <- Result{Value: res.Value}
	})
	return out
}

// failure maps err to a wire error. shortcut.Error kinds keep their code;
// anything else becomes "<method>-exception".
func (h *Handler) failure(method string, err error) Result {
	var pinErr *shortcut.Error
	if errors.As(err, &pinErr) {
		h.metrics.ObserveCommand(method, pinErr.Code())
		slog.Debug("[DEBUG-CHANNEL] command rejected", "method", method, "code", pinErr.Code())
		return Result{Err: &ipc.ErrorBody{Code: pinErr.Code(), Message: pinErr.Message}}
	}
	code := method + "-exception"
	h.metrics.ObserveCommand(method, code)
	slog.Warn("[DEBUG-CHANNEL] command failed", "method", method, "error", err)
	return Result{Err: &ipc.ErrorBody{Code: code, Message: err.Error()}}
}

func notImplemented(method string) Result {
	return Result{Err: &ipc.ErrorBody{Code: CodeNotImplemented, Message: "method not implemented: " + method}}
}

func resolved(res Result) <-chan Result {
	out := make(chan Result, 1)
	out <- res
	close(out)
	return out
}
