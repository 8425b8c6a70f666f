// Package userutil derives per-user names for sockets and locks.
package userutil

import (
	"os"
	"os/user"
	"regexp"
	"strings"
)

var invalidUsernameRune = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// currentUserFn is a test seam for user lookup failures.
var currentUserFn = user.Current

// SanitizeUsername normalizes username-like values used in socket and lock
// names.
func SanitizeUsername(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return invalidUsernameRune.ReplaceAllString(value, "_")
}

// CurrentUsername returns $USER (or $USERNAME on Windows), falling back to
// the OS account lookup. It may return an empty string.
func CurrentUsername() string {
	for _, key := range []string{"USER", "USERNAME"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	if current, err := currentUserFn(); err == nil {
		return current.Username
	}
	return ""
}
