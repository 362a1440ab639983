// Package lock provides the run lock that keeps two sumkeeper processes from
// writing the same state directory at once.
package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Ning0612/Sumkeeper/internal/domain"
)

const (
	// LockFileName is the lock file created inside the state directory
	LockFileName = ".sumkeeper.lock"

	// DefaultStaleTimeout applies to locks held from another host,
	// whose PID cannot be checked
	DefaultStaleTimeout = 12 * time.Hour
)

// LockInfo is the content of the lock file
type LockInfo struct {
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartTime time.Time `json:"start_time"`
	Mode      string    `json:"mode"`
	Root      string    `json:"root,omitempty"`
}

// FileLock is an exclusive lock file with stale holder detection
type FileLock struct {
	lockPath     string
	staleTimeout time.Duration
	info         *LockInfo
}

// NewFileLock creates a lock in stateDir, creating the directory if needed
func NewFileLock(stateDir string) (*FileLock, error) {
	if stateDir == "" {
		return nil, fmt.Errorf("%w: empty state directory", domain.ErrConfigInvalid)
	}
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	return &FileLock{
		lockPath:     filepath.Join(stateDir, LockFileName),
		staleTimeout: DefaultStaleTimeout,
	}, nil
}

// SetStaleTimeout overrides the timeout for locks held from other hosts
func (l *FileLock) SetStaleTimeout(d time.Duration) {
	l.staleTimeout = d
}

// Path returns the lock file location
func (l *FileLock) Path() string {
	return l.lockPath
}

// Acquire takes the lock for a run of mode over root.
// A stale lock (dead local PID, or expired remote one) is replaced.
func (l *FileLock) Acquire(mode, root string) error {
	if l.info != nil {
		return &LockError{Holder: l.info, Reason: "lock already held by this instance"}
	}

	if existing, err := l.readLockInfo(); err == nil {
		if !l.isStale(existing) {
			return &LockError{Holder: existing, Reason: "lock is held by another process"}
		}
		if err := os.Remove(l.lockPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove stale lock: %w", err)
		}
	}

	hostname, _ := os.Hostname()
	info := &LockInfo{
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartTime: time.Now(),
		Mode:      mode,
		Root:      root,
	}

	// O_EXCL makes creation atomic between racing processes
	file, err := os.OpenFile(l.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			holder, _ := l.readLockInfo()
			return &LockError{Holder: holder, Reason: "lock acquired by another process during acquisition"}
		}
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(info); err != nil {
		os.Remove(l.lockPath)
		return fmt.Errorf("failed to write lock info: %w", err)
	}

	l.info = info
	return nil
}

// Release removes the lock if this instance holds it
func (l *FileLock) Release() error {
	if l.info == nil {
		return nil
	}
	defer func() { l.info = nil }()

	existing, err := l.readLockInfo()
	if err != nil {
		// Lock file gone, consider it released
		return nil
	}
	if existing.PID != l.info.PID || !existing.StartTime.Equal(l.info.StartTime) {
		return errors.New("lock was taken over by another process")
	}

	if err := os.Remove(l.lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

// IsLocked reports whether a live holder exists
func (l *FileLock) IsLocked() bool {
	info, err := l.readLockInfo()
	if err != nil {
		return false
	}
	return !l.isStale(info)
}

// GetHolder returns the live holder of the lock
func (l *FileLock) GetHolder() (*LockInfo, error) {
	info, err := l.readLockInfo()
	if err != nil {
		return nil, err
	}
	if l.isStale(info) {
		return nil, fmt.Errorf("lock is stale")
	}
	return info, nil
}

func (l *FileLock) readLockInfo() (*LockInfo, error) {
	data, err := os.ReadFile(l.lockPath)
	if err != nil {
		return nil, err
	}

	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("invalid lock file format: %w", err)
	}
	return &info, nil
}

// isStale: on this host the PID decides; otherwise only age can
func (l *FileLock) isStale(info *LockInfo) bool {
	hostname, _ := os.Hostname()
	if info.Hostname == hostname {
		return !ProcessAlive(info.PID)
	}
	return time.Since(info.StartTime) > l.staleTimeout
}

// LockError reports a lock held by someone else
type LockError struct {
	Holder *LockInfo
	Reason string
}

func (e *LockError) Error() string {
	if e.Holder != nil {
		return fmt.Sprintf("cannot acquire lock: %s (held by PID %d on %s since %s, %s %s)",
			e.Reason,
			e.Holder.PID,
			e.Holder.Hostname,
			e.Holder.StartTime.Format(time.RFC3339),
			e.Holder.Mode,
			e.Holder.Root,
		)
	}
	return fmt.Sprintf("cannot acquire lock: %s", e.Reason)
}

// Unwrap lets errors.Is match domain.ErrRunInProgress
func (e *LockError) Unwrap() error {
	return domain.ErrRunInProgress
}

// IsLockError checks whether err is (or wraps) a LockError
func IsLockError(err error) bool {
	var le *LockError
	return errors.As(err, &le)
}
