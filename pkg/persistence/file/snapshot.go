package file

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/hiveplane/hiveplane/pkg/models"
	"github.com/hiveplane/hiveplane/pkg/persistence"
)

const snapshotFile = "snapshot.json"

// SnapshotRepository stores the combined orchestrator snapshot as a single
// document, rewritten in full on every save.
type SnapshotRepository struct {
	root string
}

// NewSnapshotRepository creates a new snapshot repository.
func NewSnapshotRepository(root string) *SnapshotRepository {
	return &SnapshotRepository{root: root}
}

// Save rewrites the snapshot document. The write goes through a temp file
// and rename so a crash never leaves a truncated snapshot behind.
func (sr *SnapshotRepository) Save(_ context.Context, snapshot *models.OrchestratorSnapshot) error {
	snapshot.SavedAt = time.Now().UTC()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return persistence.NewSnapshotError("Save", err)
	}

	if err := os.MkdirAll(sr.root, 0750); err != nil {
		return persistence.NewSnapshotError("Save", err)
	}

	if err := writeFileAtomic(filepath.Join(sr.root, snapshotFile), data); err != nil {
		return persistence.NewSnapshotError("Save", err)
	}

	return nil
}

// Load reads the snapshot document.
func (sr *SnapshotRepository) Load(_ context.Context) (*models.OrchestratorSnapshot, error) {
	data, err := os.ReadFile(filepath.Join(sr.root, snapshotFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewSnapshotError("Load", persistence.ErrSnapshotNotFound)
		}

		return nil, persistence.NewSnapshotError("Load", err)
	}

	var snapshot models.OrchestratorSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, persistence.NewSnapshotError("Load", err)
	}

	return &snapshot, nil
}
