// Package logging configures the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Output formats accepted by Setup.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Options configures Setup.
type Options struct {
	Level  string // debug, info, warn or error
	Format string // text or json
	Writer io.Writer
	// OnRecord is called for every record at warn level or above.
	OnRecord func(level slog.Level)
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// New builds a logger from opts. Unknown levels or formats fall back to
// info and text; the returned error describes what was ignored.
func New(opts Options) (*slog.Logger, error) {
	var problems []string
	level, err := ParseLevel(opts.Level)
	if err != nil {
		problems = append(problems, err.Error())
	}
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var base slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case FormatJSON:
		base = slog.NewJSONHandler(w, handlerOpts)
	case "", FormatText:
		base = slog.NewTextHandler(w, handlerOpts)
	default:
		problems = append(problems, fmt.Sprintf("unknown log format %q", opts.Format))
		base = slog.NewTextHandler(w, handlerOpts)
	}

	var callback RecordCallback
	if opts.OnRecord != nil {
		callback = func(level slog.Level, _ string, _ string) { opts.OnRecord(level) }
	}
	logger := slog.New(NewTeeHandler(base, slog.LevelWarn, callback))
	if len(problems) > 0 {
		return logger, fmt.Errorf("logging: %s", strings.Join(problems, "; "))
	}
	return logger, nil
}

// Setup builds a logger with New and installs it as the slog default.
func Setup(opts Options) error {
	logger, err := New(opts)
	slog.SetDefault(logger)
	return err
}
