package userutil

import (
	"errors"
	"os/user"
	"testing"
)

func TestSanitizeUsername(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "alice", want: "alice"},
		{name: "domain user", input: "DOMAIN\\user", want: "DOMAIN_user"},
		{name: "email", input: "user@domain.com", want: "user_domain.com"},
		{name: "empty", input: "", want: "unknown"},
		{name: "whitespace", input: "  ", want: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeUsername(tt.input); got != tt.want {
				t.Fatalf("SanitizeUsername(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCurrentUsernamePrefersEnvironment(t *testing.T) {
	t.Setenv("USER", " photographer ")
	t.Setenv("USERNAME", "other")
	if got := CurrentUsername(); got != "photographer" {
		t.Fatalf("CurrentUsername() = %q, want photographer", got)
	}

	t.Setenv("USER", "")
	if got := CurrentUsername(); got != "other" {
		t.Fatalf("CurrentUsername() = %q, want other", got)
	}
}

func TestCurrentUsernameLookupFailure(t *testing.T) {
	t.Setenv("USER", "")
	t.Setenv("USERNAME", "")
	orig := currentUserFn
	currentUserFn = func() (*user.User, error) { return nil, errors.New("no passwd entry") }
	t.Cleanup(func() { currentUserFn = orig })

	if got := CurrentUsername(); got != "" {
		t.Fatalf("CurrentUsername() = %q, want empty", got)
	}
	if got := SanitizeUsername(CurrentUsername()); got != "unknown" {
		t.Fatalf("sanitized = %q, want unknown", got)
	}
}
