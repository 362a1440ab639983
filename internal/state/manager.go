// Package state keeps the run history in a local sqlite database.
package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// DatabaseFile is the history database name inside the state directory
const DatabaseFile = "history.db"

// RunStatus is the final status of a run
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunCancelled RunStatus = "cancelled"
	RunFailed    RunStatus = "failed"
)

// IsValid checks if the status is known
func (s RunStatus) IsValid() bool {
	switch s {
	case RunCompleted, RunCancelled, RunFailed:
		return true
	}
	return false
}

// Manager handles state persistence and run history
type Manager struct {
	db *sql.DB
}

// RunRecord represents a single calculate or verify run
type RunRecord struct {
	ID        string
	Mode      string
	Root      string
	Algorithm string
	StartTime time.Time
	EndTime   time.Time
	Status    RunStatus
	Files     int

	// Classification counts, verify runs only
	Ok       int
	Modified int
	New      int
	Removed  int

	Error string
}

// Duration returns how long the run took
func (r RunRecord) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// NewRunID returns a time-ordered unique run id
func NewRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// NewManager creates a new state manager
func NewManager(dataDir string) (*Manager, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dataDir, DatabaseFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Limit connection pool to prevent "database is locked" errors
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Enable WAL mode for better concurrency and set busy timeout
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode and busy timeout: %w", err)
	}

	manager := &Manager{db: db}
	if err := manager.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return manager, nil
}

func (m *Manager) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		root TEXT NOT NULL,
		algorithm TEXT NOT NULL,
		start_time TIMESTAMP NOT NULL,
		end_time TIMESTAMP NOT NULL,
		status TEXT NOT NULL,
		files INTEGER DEFAULT 0,
		ok INTEGER DEFAULT 0,
		modified INTEGER DEFAULT 0,
		new INTEGER DEFAULT 0,
		removed INTEGER DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_runs_root_time ON runs(root, start_time DESC);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	`

	_, err := m.db.Exec(schema)
	return err
}

// SaveRun records a finished run, assigning an id if it has none
func (m *Manager) SaveRun(record RunRecord) (string, error) {
	if !record.Status.IsValid() {
		return "", fmt.Errorf("invalid status: %s (must be 'completed', 'cancelled' or 'failed')", record.Status)
	}
	if record.ID == "" {
		record.ID = NewRunID()
	}

	query := `
		INSERT INTO runs (id, mode, root, algorithm, start_time, end_time, status, files, ok, modified, new, removed, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := m.db.Exec(query,
		record.ID,
		record.Mode,
		record.Root,
		record.Algorithm,
		record.StartTime,
		record.EndTime,
		string(record.Status),
		record.Files,
		record.Ok,
		record.Modified,
		record.New,
		record.Removed,
		record.Error,
	)
	if err != nil {
		return "", fmt.Errorf("failed to save run record: %w", err)
	}

	return record.ID, nil
}

const selectRuns = `
	SELECT id, mode, root, algorithm, start_time, end_time, status, files, ok, modified, new, removed, error
	FROM runs
`

// GetHistory retrieves run history for a root, newest first
func (m *Manager) GetHistory(root string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	return m.query(selectRuns+` WHERE root = ? ORDER BY start_time DESC LIMIT ?`, root, limit)
}

// GetAllHistory retrieves run history for every root, newest first
func (m *Manager) GetAllHistory(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	return m.query(selectRuns+` ORDER BY start_time DESC LIMIT ?`, limit)
}

// GetLastCompleted retrieves the last completed run of mode over root.
// Returns nil, nil when there is none.
func (m *Manager) GetLastCompleted(mode, root string) (*RunRecord, error) {
	records, err := m.query(selectRuns+` WHERE mode = ? AND root = ? AND status = 'completed' ORDER BY start_time DESC LIMIT 1`, mode, root)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

func (m *Manager) query(query string, args ...any) ([]RunRecord, error) {
	rows, err := m.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var r RunRecord
		var status string
		err := rows.Scan(
			&r.ID,
			&r.Mode,
			&r.Root,
			&r.Algorithm,
			&r.StartTime,
			&r.EndTime,
			&status,
			&r.Files,
			&r.Ok,
			&r.Modified,
			&r.New,
			&r.Removed,
			&r.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		r.Status = RunStatus(status)
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return records, nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
