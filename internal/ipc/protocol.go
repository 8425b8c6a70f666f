// Package ipc carries channel commands between processes: one
// newline-terminated JSON request and one JSON response per connection,
// over a Unix socket (a named pipe on Windows).
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"homepin/internal/userutil"
)

// SocketEnv overrides the default socket path when it passes validation.
const SocketEnv = "HOMEPIN_SOCKET"

// CodeBadRequest reports a frame that is not a valid request.
const CodeBadRequest = "bad-request"

// Request is a single command.
type Request struct {
	// ID correlates responses on multiplexed transports. Optional over IPC.
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// ErrorBody is a typed failure: a stable code plus a human readable message.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Response is the outcome of one Request. Exactly one of Result and Error
// is meaningful, selected by OK.
type Response struct {
	ID     string     `json:"id,omitempty"`
	OK     bool       `json:"ok"`
	Result any        `json:"result,omitempty"`
	Error  *ErrorBody `json:"error,omitempty"`
}

// ResponseError is returned by Response.Bool for failed responses.
type ResponseError struct {
	Code    string
	Message string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Bool returns the boolean result, or a *ResponseError for failures.
func (r Response) Bool() (bool, error) {
	if !r.OK {
		if r.Error == nil {
			return false, &ResponseError{Code: "unknown", Message: "failed without error details"}
		}
		return false, &ResponseError{Code: r.Error.Code, Message: r.Error.Message}
	}
	v, ok := r.Result.(bool)
	if !ok {
		return false, fmt.Errorf("ipc: result is %T, want bool", r.Result)
	}
	return v, nil
}

// CommandExecutor handles a request and returns its response. Execute
// blocks until the command has finished.
type CommandExecutor interface {
	Execute(ctx context.Context, req Request) Response
}

// DefaultSocketPath returns the socket to use. SocketEnv wins when it
// passes validation; otherwise a per-user default is built.
func DefaultSocketPath() string {
	if v, ok := trustedSocketFromEnv(); ok {
		return v
	}
	return defaultSocketPath(userutil.SanitizeUsername(userutil.CurrentUsername()))
}

func trustedSocketFromEnv() (string, bool) {
	value := strings.TrimSpace(os.Getenv(SocketEnv))
	if value == "" {
		return "", false
	}
	if err := validateSocketPath(value); err != nil {
		slog.Warn("[DEBUG-IPC] socket override rejected", "env", SocketEnv, "value", value, "error", err)
		return "", false
	}
	return value, true
}

func validateUnixSocketPath(path string) error {
	if !filepath.IsAbs(path) {
		return errors.New("socket path must be absolute")
	}
	if filepath.Ext(path) != ".sock" {
		return errors.New("socket path must end in .sock")
	}
	return nil
}

func encodeRequest(req Request) ([]byte, error) {
	return json.Marshal(req)
}

// DecodeRequest parses one request frame.
func DecodeRequest(raw []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return Request{}, err
	}
	if strings.TrimSpace(req.Method) == "" {
		return Request{}, errors.New("missing method")
	}
	return req, nil
}

// EncodeResponse serialises a response frame.
func EncodeResponse(resp Response) ([]byte, error) {
	return json.Marshal(resp)
}

func decodeResponse(raw []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}

// ErrorResponse builds a failed response.
func ErrorResponse(id, code, message string) Response {
	return Response{ID: id, OK: false, Error: &ErrorBody{Code: code, Message: message}}
}
