package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hiveplane/hiveplane/pkg/models"
	"github.com/hiveplane/hiveplane/pkg/persistence"
)

// SnapshotRepository stores the orchestrator snapshot as a single JSONB
// document in a one-row table.
type SnapshotRepository struct {
	db *sql.DB
}

// NewSnapshotRepository creates a new snapshot repository.
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Save rewrites the snapshot row.
func (sr *SnapshotRepository) Save(ctx context.Context, snapshot *models.OrchestratorSnapshot) error {
	snapshot.SavedAt = time.Now().UTC()

	document, err := json.Marshal(snapshot)
	if err != nil {
		return persistence.NewSnapshotError("Save", fmt.Errorf("failed to marshal snapshot: %w", err))
	}

	query := `
		INSERT INTO orchestrator_snapshot (id, document, saved_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET
			document = EXCLUDED.document,
			saved_at = EXCLUDED.saved_at
	`

	_, err = sr.db.ExecContext(ctx, query, document, snapshot.SavedAt)
	if err != nil {
		return persistence.NewSnapshotError("Save", fmt.Errorf("failed to save snapshot: %w", err))
	}

	return nil
}

// Load reads the snapshot row.
func (sr *SnapshotRepository) Load(ctx context.Context) (*models.OrchestratorSnapshot, error) {
	var document []byte

	err := sr.db.QueryRowContext(ctx, "SELECT document FROM orchestrator_snapshot WHERE id = 1").Scan(&document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewSnapshotError("Load", persistence.ErrSnapshotNotFound)
		}

		return nil, persistence.NewSnapshotError("Load", fmt.Errorf("failed to query snapshot: %w", err))
	}

	var snapshot models.OrchestratorSnapshot
	if err := json.Unmarshal(document, &snapshot); err != nil {
		return nil, persistence.NewSnapshotError("Load", fmt.Errorf("failed to unmarshal snapshot: %w", err))
	}

	return &snapshot, nil
}
