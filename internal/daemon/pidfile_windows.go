//go:build windows

package daemon

import (
	"os"
	"syscall"
)

// alive reports whether pid names a live process. FindProcess opens a
// handle on Windows, so it fails for exited pids.
func alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = proc.Release()
	return true
}

// signal can only terminate on Windows: every signal ends the process.
func signal(pid int, _ syscall.Signal) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}
