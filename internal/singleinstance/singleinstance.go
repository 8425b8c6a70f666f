// Package singleinstance keeps one homepin daemon per user.
package singleinstance

import (
	"errors"

	"homepin/internal/userutil"
)

// ErrAlreadyRunning is returned by TryLock when another instance holds the lock.
var ErrAlreadyRunning = errors.New("another instance is already running")

// DefaultName returns the per-user lock name. It mirrors the IPC socket
// naming so that one user's daemon never blocks another's.
func DefaultName() string {
	return "homepin-" + userutil.SanitizeUsername(userutil.CurrentUsername())
}
