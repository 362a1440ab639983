// Package progress turns per-file progress events into terminal updates.
package progress

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Callback is a function that receives progress updates
type Callback func(update Update)

// Update represents a progress update
type Update struct {
	Type           UpdateType
	CallerID       string
	CurrentFile    string
	Percent        int
	FilesCompleted int
	FilesFailed    int
	FilesTotal     int
	Error          error
}

// UpdateType indicates the type of progress update
type UpdateType int

const (
	UpdateProgress UpdateType = iota
	UpdateComplete
	UpdateError
)

// Tracker counts finished files and forwards progress to a callback.
// Progress events repeating the last percentage for the same file, or
// arriving sooner than the minimum interval, are dropped; 100% and
// per-file outcomes always pass.
type Tracker struct {
	callback    Callback
	minInterval time.Duration
	now         func() time.Time

	mu             sync.Mutex
	filesTotal     int
	filesCompleted int
	filesFailed    int
	lastFile       string
	lastPercent    int
	lastEmit       time.Time
}

// NewTracker creates a tracker; minInterval 0 forwards every change
func NewTracker(callback Callback, minInterval time.Duration) *Tracker {
	return &Tracker{
		callback:    callback,
		minInterval: minInterval,
		now:         time.Now,
		lastPercent: -1,
	}
}

// SetTotal sets the number of files the run will process
func (t *Tracker) SetTotal(totalFiles int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.filesTotal = totalFiles
}

// Progress records a percentage for path
func (t *Tracker) Progress(callerID, path string, percent int) {
	t.mu.Lock()
	now := t.now()
	if path == t.lastFile {
		if percent == t.lastPercent {
			t.mu.Unlock()
			return
		}
		if percent < 100 && t.minInterval > 0 && now.Sub(t.lastEmit) < t.minInterval {
			t.mu.Unlock()
			return
		}
	}
	t.lastFile = path
	t.lastPercent = percent
	t.lastEmit = now

	update := t.snapshotLocked(UpdateProgress)
	update.CallerID = callerID
	update.CurrentFile = path
	update.Percent = percent
	callback := t.callback
	t.mu.Unlock()

	// Call callback outside lock to prevent deadlock
	if callback != nil {
		callback(update)
	}
}

// FileDone records the outcome of one file
func (t *Tracker) FileDone(path string, err error) {
	t.mu.Lock()
	typ := UpdateComplete
	if err != nil {
		typ = UpdateError
		t.filesFailed++
	} else {
		t.filesCompleted++
	}

	update := t.snapshotLocked(typ)
	update.CurrentFile = path
	update.Error = err
	if err == nil {
		update.Percent = 100
	}
	callback := t.callback
	t.mu.Unlock()

	if callback != nil {
		callback(update)
	}
}

// Counts returns completed, failed and total file counts
func (t *Tracker) Counts() (completed, failed, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.filesCompleted, t.filesFailed, t.filesTotal
}

func (t *Tracker) snapshotLocked(typ UpdateType) Update {
	return Update{
		Type:           typ,
		FilesCompleted: t.filesCompleted,
		FilesFailed:    t.filesFailed,
		FilesTotal:     t.filesTotal,
	}
}

// FormatBytes formats bytes into human-readable string
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// FormatProgress returns a progress bar string for a percentage
func FormatProgress(percent, width int) string {
	if width <= 0 {
		return ""
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	filled := percent * width / 100
	var bar strings.Builder
	for i := 0; i < width; i++ {
		switch {
		case i < filled:
			bar.WriteByte('=')
		case i == filled:
			bar.WriteByte('>')
		default:
			bar.WriteByte(' ')
		}
	}

	return fmt.Sprintf("[%s] %3d%%", bar.String(), percent)
}
