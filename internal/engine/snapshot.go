package engine

import (
	"fmt"
	"path/filepath"

	"github.com/Ning0612/Sumkeeper/internal/core/registry"
	"github.com/Ning0612/Sumkeeper/internal/domain"
)

// Checkpointer persists and restores the engine's progress around a pause
type Checkpointer interface {
	// Pause stores the snapshot taken when the engine paused
	Pause(snap domain.Snapshot) error

	// Resume returns the stored snapshot for root
	Resume(root string) (*domain.Snapshot, error)
}

// ApplySnapshot restores snap into reg. Finished records are marked done and
// pending paths (re)added as pending; other entries are left as they are.
// A snapshot taken for a different root leaves reg untouched.
func ApplySnapshot(reg *registry.Registry, snap domain.Snapshot, root string) error {
	if !sameRoot(snap.RootPath, root) {
		return fmt.Errorf("%w: snapshot root %q, current root %q", domain.ErrIncompatibleRoot, snap.RootPath, root)
	}

	for _, rec := range snap.Finished {
		reg.MarkFinished(rec.Path)
	}
	for _, p := range snap.Pending {
		reg.MarkPending(p)
	}
	return nil
}

// TakeSnapshot captures finished records and the registry's pending paths
func TakeSnapshot(reg *registry.Registry, finished []domain.ChecksumRecord, root string) domain.Snapshot {
	records := make([]domain.ChecksumRecord, len(finished))
	copy(records, finished)

	pending := reg.Pending()
	if pending == nil {
		pending = []string{}
	}

	return domain.Snapshot{
		Finished: records,
		Pending:  pending,
		RootPath: root,
	}
}

func sameRoot(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}
