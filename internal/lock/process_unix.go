//go:build !windows

package lock

import (
	"errors"
	"os"
	"syscall"
)

// ProcessAlive reports whether pid names a live local process.
// Signal 0 probes without delivering; EPERM still means the process exists.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
