package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
)

// RecordCallback observes records at or above a TeeHandler's threshold.
type RecordCallback func(level slog.Level, msg string, group string)

// TeeHandler forwards every record to a base handler and additionally passes
// records at or above minLevel to a callback. The callback never affects
// what the base handler writes.
type TeeHandler struct {
	base     slog.Handler
	callback RecordCallback
	minLevel slog.Level
	group    string // dot-separated accumulated group name
}

// NewTeeHandler wraps base. A nil callback is allowed.
func NewTeeHandler(base slog.Handler, minLevel slog.Level, callback RecordCallback) *TeeHandler {
	return &TeeHandler{
		base:     base,
		callback: callback,
		minLevel: minLevel,
	}
}

// Enabled defers to the base handler; the callback threshold does not widen it.
func (h *TeeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

// Handle writes the record, then runs the callback. A panicking callback is
// reported on stderr instead of through slog to avoid recursion.
func (h *TeeHandler) Handle(ctx context.Context, record slog.Record) error {
	err := h.base.Handle(ctx, record)

	if h.callback != nil && record.Level >= h.minLevel {
		func() {
			defer func() {
				if r := recover(); r != nil {
					fmt.Fprintf(os.Stderr, "[logging] tee callback panicked: %v\n%s\n", r, debug.Stack())
				}
			}()
			h.callback(record.Level, record.Message, h.group)
		}()
	}
	return err
}

func (h *TeeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	return &TeeHandler{
		base:     h.base.WithAttrs(attrs),
		callback: h.callback,
		minLevel: h.minLevel,
		group:    h.group,
	}
}

func (h *TeeHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &TeeHandler{
		base:     h.base.WithGroup(name),
		callback: h.callback,
		minLevel: h.minLevel,
		group:    group,
	}
}
