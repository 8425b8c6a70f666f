//go:build windows

package main

import (
	"log/slog"

	"golang.org/x/sys/windows"
)

const utf8CodePage = 65001

// setConsoleUTF8 makes log output with non-ASCII labels readable in cmd.exe.
func setConsoleUTF8() {
	if err := windows.SetConsoleOutputCP(utf8CodePage); err != nil {
		slog.Debug("[DEBUG-CONSOLE] SetConsoleOutputCP failed", "error", err)
	}
	if err := windows.SetConsoleCP(utf8CodePage); err != nil {
		slog.Debug("[DEBUG-CONSOLE] SetConsoleCP failed", "error", err)
	}
}
