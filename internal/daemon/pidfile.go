// Package daemon tracks the background schedule process through a PID file.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// PIDFileName is the schedule process PID file inside the state directory
const PIDFileName = "schedule.pid"

// ErrNotRunning indicates no live process owns the PID file
var ErrNotRunning = errors.New("schedule process is not running")

// PIDFile manages the schedule process ID file
type PIDFile struct {
	path string
}

// NewPIDFile creates a PID file manager for path
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// ForStateDir returns the PID file kept in stateDir
func ForStateDir(stateDir string) *PIDFile {
	return NewPIDFile(filepath.Join(stateDir, PIDFileName))
}

// Path returns the PID file location
func (p *PIDFile) Path() string {
	return p.path
}

// Write records the current process, refusing if a live one is recorded
func (p *PIDFile) Write() error {
	if running, _ := p.IsRunning(); running {
		return fmt.Errorf("schedule already running (PID file exists: %s)", p.path)
	}
	// Stale or unreadable PID file
	p.Remove()

	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return fmt.Errorf("failed to create PID directory: %w", err)
	}

	content := strconv.Itoa(os.Getpid()) + "\n"
	if err := os.WriteFile(p.path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// Read returns the recorded PID
func (p *PIDFile) Read() (int, error) {
	content, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNotRunning
		}
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}

	pidStr := strings.TrimSpace(string(content))
	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID in file: %q", pidStr)
	}
	return pid, nil
}

// Remove deletes the PID file; missing is not an error
func (p *PIDFile) Remove() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// IsRunning reports whether the recorded process is alive
func (p *PIDFile) IsRunning() (bool, error) {
	pid, err := p.Read()
	if err != nil {
		return false, err
	}
	return isProcessRunning(pid), nil
}

// Stop asks the recorded process to terminate
func (p *PIDFile) Stop() (int, error) {
	pid, err := p.Read()
	if err != nil {
		return 0, err
	}
	if !isProcessRunning(pid) {
		p.Remove()
		return pid, ErrNotRunning
	}
	return pid, terminateProcess(pid)
}
