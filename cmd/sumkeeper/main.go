// Command sumkeeper records file checksums into a baseline and verifies
// trees against it.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/Ning0612/Sumkeeper/internal/domain"
	"github.com/Ning0612/Sumkeeper/internal/service"
)

// Exit codes
const (
	exitOK        = 0
	exitError     = 1
	exitChanges   = 2
	exitCancelled = 130
)

func main() {
	err := newRootCmd().Execute()
	code := exitCode(err)
	if err != nil && code == exitError {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(code)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, service.ErrChangesDetected):
		return exitChanges
	case errors.Is(err, domain.ErrCancelled):
		return exitCancelled
	default:
		return exitError
	}
}
