// Command homepin-ctl talks to the homepin daemon and resolves the launch
// URIs written into pinned shortcuts.
package main

import (
	"fmt"
	"os"

	"homepin/internal/ipc"
)

// Exit codes.
const (
	exitOK          = 0
	exitFailed      = 1
	exitUnreachable = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cmd := newRootCommand()
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err == nil {
		return exitOK
	}
	if ipc.IsConnectionError(err) {
		fmt.Fprintln(cmd.ErrOrStderr(), "homepin-ctl: daemon is not running (start homepind)")
		return exitUnreachable
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "homepin-ctl:", err)
	return exitFailed
}
