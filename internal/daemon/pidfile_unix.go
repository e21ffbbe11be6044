//go:build !windows

package daemon

import (
	"errors"
	"syscall"
)

// alive checks pid with signal 0. EPERM still means the process exists, it
// just belongs to another user.
func alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

func signal(pid int, sig syscall.Signal) error {
	return syscall.Kill(pid, sig)
}
