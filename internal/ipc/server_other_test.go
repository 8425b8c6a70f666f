//go:build !windows

package ipc

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type echoExecutor struct {
	calls atomic.Int32
}

func (e *echoExecutor) Execute(_ context.Context, req Request) Response {
	e.calls.Add(1)
	switch req.Method {
	case "canPin":
		return Response{OK: true, Result: true}
	case "slow":
		time.Sleep(20 * time.Millisecond)
		return Response{OK: true, Result: false}
	default:
		return ErrorResponse("", "not-implemented", req.Method)
	}
}

func shortSocketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "hp")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "d.sock")
}

func startServer(t *testing.T, exec CommandExecutor) *Server {
	t.Helper()
	srv := NewServer(shortSocketPath(t), exec)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { srv.Stop() })
	return srv
}

func TestServerRoundTrip(t *testing.T) {
	exec := &echoExecutor{}
	srv := startServer(t, exec)

	resp, err := Send(context.Background(), srv.Path(), Request{ID: "a1", Method: "canPin"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if v, err := resp.Bool(); err != nil || !v {
		t.Fatalf("Bool() = %v, %v", v, err)
	}
	if resp.ID != "a1" {
		t.Fatalf("ID = %q, want a1", resp.ID)
	}

	resp, err = Send(context.Background(), srv.Path(), Request{Method: "bogus"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if resp.OK || resp.Error == nil || resp.Error.Code != "not-implemented" {
		t.Fatalf("response = %+v, want not-implemented", resp)
	}
}

func TestServerConcurrentClients(t *testing.T) {
	exec := &echoExecutor{}
	srv := startServer(t, exec)

	errs := make(chan error, 8)
	for range 8 {
		go func() {
			_, err := Send(context.Background(), srv.Path(), Request{Method: "slow"})
			errs <- err
		}()
	}
	for range 8 {
		if err := <-errs; err != nil {
			t.Fatalf("Send() error = %v", err)
		}
	}
	if exec.calls.Load() != 8 {
		t.Fatalf("calls = %d, want 8", exec.calls.Load())
	}
}

func TestServerRejectsMalformedRequest(t *testing.T) {
	srv := startServer(t, &echoExecutor{})

	conn, err := net.Dial("unix", srv.Path())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("{broken\n")); err != nil {
		t.Fatal(err)
	}
	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.OK || resp.Error == nil || resp.Error.Code != "bad-request" {
		t.Fatalf("response = %+v, want bad-request", resp)
	}
}

func TestServerStartTwiceAndLiveSocket(t *testing.T) {
	srv := startServer(t, &echoExecutor{})
	if err := srv.Start(); err == nil {
		t.Fatal("second Start() must fail")
	}

	other := NewServer(srv.Path(), &echoExecutor{})
	err := other.Start()
	if err == nil || !strings.Contains(err.Error(), "already served") {
		t.Fatalf("Start() on live socket error = %v", err)
	}
}

func TestServerReplacesStaleSocket(t *testing.T) {
	path := shortSocketPath(t)
	listener, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	// Leave the socket file behind as a crashed daemon would.
	listener.(*net.UnixListener).SetUnlinkOnClose(false)
	listener.Close()

	srv := NewServer(path, &echoExecutor{})
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() over stale socket error = %v", err)
	}
	defer srv.Stop()
	if _, err := Send(context.Background(), path, Request{Method: "canPin"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
}

func TestServerRequiresExecutor(t *testing.T) {
	if err := NewServer(shortSocketPath(t), nil).Start(); err == nil {
		t.Fatal("Start() without executor must fail")
	}
}

func TestSendToMissingServer(t *testing.T) {
	_, err := Send(context.Background(), shortSocketPath(t), Request{Method: "canPin"})
	if err == nil {
		t.Fatal("Send() to missing socket must fail")
	}
	if !IsConnectionError(err) {
		t.Fatalf("IsConnectionError(%v) = false, want true", err)
	}
}

func TestDefaultSocketPath(t *testing.T) {
	t.Setenv(SocketEnv, "")
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	t.Setenv("USER", "ann lee")
	if got := DefaultSocketPath(); got != "/run/user/1000/homepin-ann_lee.sock" {
		t.Fatalf("DefaultSocketPath() = %q", got)
	}

	t.Setenv(SocketEnv, "/tmp/custom.sock")
	if got := DefaultSocketPath(); got != "/tmp/custom.sock" {
		t.Fatalf("DefaultSocketPath() with override = %q", got)
	}

	t.Setenv(SocketEnv, "relative.sock")
	if got := DefaultSocketPath(); got != "/run/user/1000/homepin-ann_lee.sock" {
		t.Fatalf("untrusted override accepted: %q", got)
	}
}
