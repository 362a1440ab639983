package daemon

import (
	"fmt"
	"os"
	"runtime"
	"syscall"

	"github.com/Ning0612/Sumkeeper/internal/lock"
)

func isProcessRunning(pid int) bool {
	return lock.ProcessAlive(pid)
}

// terminateProcess asks pid to stop: SIGTERM on Unix, a hard kill on Windows
func terminateProcess(pid int) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}

	if runtime.GOOS == "windows" {
		err = process.Kill()
	} else {
		err = process.Signal(syscall.SIGTERM)
	}
	if err != nil {
		return fmt.Errorf("failed to signal process %d: %w", pid, err)
	}
	return nil
}
