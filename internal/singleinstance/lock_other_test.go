//go:build !windows

package singleinstance

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestTryLockWritesPidFile(t *testing.T) {
	dir := t.TempDir()
	orig := lockDirFn
	lockDirFn = func() string { return dir }
	t.Cleanup(func() { lockDirFn = orig })

	lock, err := TryLock("homepin-pid")
	if err != nil {
		t.Fatalf("TryLock failed: %v", err)
	}
	defer lock.Release()

	if got, want := lock.Path(), filepath.Join(dir, "homepin-pid.lock"); got != want {
		t.Fatalf("Path() = %q, want %q", got, want)
	}
	raw, err := os.ReadFile(lock.Path())
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if strings.TrimSpace(string(raw)) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("lock file = %q, want pid %d", raw, os.Getpid())
	}
}

func TestTryLockRejectsPathNames(t *testing.T) {
	if _, err := TryLock("../escape"); err == nil {
		t.Fatal("TryLock accepted a path")
	}
}
