package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: " INFO ", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "loud", want: slog.LevelInfo, wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if got != tt.want || (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v, err=%v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestNewJSONAndTee(t *testing.T) {
	var buf bytes.Buffer
	var seen []slog.Level
	logger, err := New(Options{
		Level:    "debug",
		Format:   "json",
		Writer:   &buf,
		OnRecord: func(level slog.Level) { seen = append(seen, level) },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Debug("[DEBUG-PIN] debug line")
	logger.Warn("[DEBUG-PIN] warn line", "id", "x")
	logger.Error("[DEBUG-PIN] error line")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3:\n%s", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &rec); err != nil {
		t.Fatalf("line is not JSON: %v", err)
	}
	if rec["id"] != "x" {
		t.Fatalf("record = %v, want id=x", rec)
	}
	if len(seen) != 2 || seen[0] != slog.LevelWarn || seen[1] != slog.LevelError {
		t.Fatalf("tee saw %v, want [WARN ERROR]", seen)
	}
}

func TestNewFallsBackOnBadOptions(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "chatty", Format: "xml", Writer: &buf})
	if err == nil {
		t.Fatal("New() error = nil, want description of ignored options")
	}
	logger.Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Fatalf("output = %q, want text format", buf.String())
	}
}

func TestTeeHandlerGroupsAndPanics(t *testing.T) {
	var groups []string
	h := NewTeeHandler(slog.NewTextHandler(&bytes.Buffer{}, nil), slog.LevelWarn, func(_ slog.Level, _ string, group string) {
		groups = append(groups, group)
		if group == "boom" {
			panic("callback failure")
		}
	})

	logger := slog.New(h).WithGroup("ipc").WithGroup("conn")
	logger.Warn("first")
	slog.New(h).WithGroup("boom").Error("second")

	if len(groups) != 2 || groups[0] != "ipc.conn" || groups[1] != "boom" {
		t.Fatalf("groups = %v", groups)
	}
	if h.WithGroup("") != h || h.WithAttrs(nil) != h {
		t.Fatal("empty WithGroup/WithAttrs must return the receiver")
	}
	if !h.Enabled(context.Background(), slog.LevelInfo) || h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("Enabled must follow the base handler")
	}
}
