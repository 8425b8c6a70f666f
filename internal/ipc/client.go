package ipc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

const (
	defaultDialTimeout = 3 * time.Second
	// defaultRWTimeout matches the server's connection timeout.
	defaultRWTimeout = defaultConnTimeout
	maxResponseBytes = 64 * 1024
)

// Send sends one request and waits for its response. An empty path selects
// DefaultSocketPath.
func Send(ctx context.Context, path string, req Request) (Response, error) {
	if path == "" {
		path = DefaultSocketPath()
	}

	dialCtx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	conn, err := dialSocket(dialCtx, path)
	cancel()
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()

	deadline := time.Now().Add(defaultRWTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return Response{}, fmt.Errorf("set deadline: %w", err)
	}

	rawReq, err := encodeRequest(req)
	if err != nil {
		return Response{}, err
	}
	if _, err := conn.Write(append(rawReq, '\n')); err != nil {
		return Response{}, err
	}

	rawResp, err := readFrame(bufio.NewReaderSize(conn, 4096), maxResponseBytes)
	if err != nil {
		return Response{}, err
	}
	resp, err := decodeResponse(rawResp)
	if err != nil {
		return Response{}, fmt.Errorf("invalid response: %w", err)
	}
	return resp, nil
}

// IsConnectionError reports whether err means the daemon is not reachable.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial" || opErr.Op == "open"
	}
	return false
}
