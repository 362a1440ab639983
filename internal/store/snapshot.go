package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/Ning0612/Sumkeeper/internal/domain"
	"github.com/Ning0612/Sumkeeper/internal/logger"
)

// SnapshotFile is the well-known snapshot name inside the state directory
const SnapshotFile = "resume.dat"

// SnapshotStore saves the single pending snapshot of a state directory
type SnapshotStore struct {
	fs    afero.Fs
	path  string
	codec Codec
	log   logger.Logger
}

// NewSnapshotStore creates a store for <stateDir>/resume.dat
func NewSnapshotStore(fs afero.Fs, stateDir string, codec Codec) *SnapshotStore {
	return &SnapshotStore{
		fs:    fs,
		path:  filepath.Join(stateDir, SnapshotFile),
		codec: codec,
		log:   logger.Get().With("component", "snapshot-store"),
	}
}

// Path returns the snapshot location
func (s *SnapshotStore) Path() string {
	return s.path
}

// Save replaces the stored snapshot
func (s *SnapshotStore) Save(snap domain.Snapshot) error {
	data, err := s.codec.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := writeAtomic(s.fs, s.path, data); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	s.log.Debug("snapshot saved", "path", s.path, "finished", len(snap.Finished), "pending", len(snap.Pending))
	return nil
}

// Load reads the stored snapshot
func (s *SnapshotStore) Load() (*domain.Snapshot, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap domain.Snapshot
	if err := s.codec.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSnapshotCorrupt, err)
	}
	return &snap, nil
}

// Exists reports whether a snapshot is stored
func (s *SnapshotStore) Exists() bool {
	ok, _ := afero.Exists(s.fs, s.path)
	return ok
}

// Discard removes the stored snapshot; missing is not an error
func (s *SnapshotStore) Discard() error {
	if err := s.fs.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove snapshot: %w", err)
	}
	return nil
}

// Checkpointer adapts the store to the engine's pause hooks
type Checkpointer struct {
	Store *SnapshotStore
}

// Pause persists snap
func (c Checkpointer) Pause(snap domain.Snapshot) error {
	return c.Store.Save(snap)
}

// Resume loads the snapshot and checks it belongs to root
func (c Checkpointer) Resume(root string) (*domain.Snapshot, error) {
	snap, err := c.Store.Load()
	if err != nil {
		return nil, err
	}
	if filepath.Clean(snap.RootPath) != filepath.Clean(root) {
		return nil, fmt.Errorf("%w: snapshot root %q", domain.ErrIncompatibleRoot, snap.RootPath)
	}
	return snap, nil
}
