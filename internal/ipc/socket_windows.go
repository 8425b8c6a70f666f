//go:build windows

package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/user"
	"regexp"
	"strings"

	"github.com/Microsoft/go-winio"
)

const defaultPipePrefix = `\\.\pipe\homepin-`

var pipeNamePattern = regexp.MustCompile(`(?i)^\\\\\.\\pipe\\homepin-[a-z0-9._-]{1,128}$`)

func defaultSocketPath(username string) string {
	return defaultPipePrefix + username
}

func validateSocketPath(path string) error {
	if !pipeNamePattern.MatchString(path) {
		return errors.New(`pipe name must match \\.\pipe\homepin-<name>`)
	}
	return nil
}

// listenSocket creates a named pipe restricted to SYSTEM and the current user.
func listenSocket(path string) (net.Listener, error) {
	securityDescriptor, err := pipeSecurityDescriptor()
	if err != nil {
		return nil, err
	}
	return winio.ListenPipe(path, &winio.PipeConfig{
		SecurityDescriptor: securityDescriptor,
		MessageMode:        false,
		InputBufferSize:    64 * 1024,
		OutputBufferSize:   int32(maxResponseBytes),
	})
}

func dialSocket(ctx context.Context, path string) (net.Conn, error) {
	return winio.DialPipeContext(ctx, path)
}

var validSIDPattern = regexp.MustCompile(`^S-1(-\d+)+$`)

func pipeSecurityDescriptor() (string, error) {
	current, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("resolve current user: %w", err)
	}
	sid := strings.TrimSpace(current.Uid)
	if !validSIDPattern.MatchString(sid) {
		return "", fmt.Errorf("current user SID has unexpected format: %q", sid)
	}
	// D:P protected DACL; full access for SYSTEM and the current user only.
	return fmt.Sprintf("D:P(A;;GA;;;SY)(A;;GA;;;%s)", sid), nil
}
