package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hiveplane/hiveplane/pkg/models"
	"github.com/hiveplane/hiveplane/pkg/persistence"
	"github.com/hiveplane/hiveplane/pkg/workflow"
)

// WorkflowRepository handles workflow-definition database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// GetAll returns all workflow definitions, newest first.
func (r *WorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	query := `
		SELECT
			id
		  , name
		  , description
		  , steps
		  , metadata
		  , created_at
		FROM workflows
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, persistence.NewWorkflowError("GetAll", "", fmt.Errorf("failed to query workflows: %w", err))
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, persistence.NewWorkflowError("GetAll", "", err)
		}

		workflows = append(workflows, wf)
	}

	err = rows.Err()
	if err != nil {
		return nil, persistence.NewWorkflowError("GetAll", "", fmt.Errorf("error iterating workflows: %w", err))
	}

	return workflows, nil
}

// GetByID returns a workflow definition by its ID.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `
		SELECT
			id
		  , name
		  , description
		  , steps
		  , metadata
		  , created_at
		FROM workflows
		WHERE id = $1 AND deleted_at IS NULL
	`

	wf, err := scanWorkflow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	return wf, nil
}

// Save creates or replaces a workflow definition. The definition document
// is re-validated against the workflow schema before it touches the
// database, matching the file persistence behavior.
func (r *WorkflowRepository) Save(ctx context.Context, wf *models.Workflow) error {
	if wf.ID == "" {
		return persistence.NewWorkflowError("Save", "", persistence.ErrInvalidWorkflowID)
	}

	if wf.CreatedAt.IsZero() {
		wf.CreatedAt = time.Now().UTC()
	}

	document, err := json.Marshal(wf)
	if err != nil {
		return persistence.NewWorkflowError("Save", wf.ID, fmt.Errorf("failed to marshal workflow: %w", err))
	}

	if err := workflow.ValidateDefinitionDocument(document); err != nil {
		return persistence.NewWorkflowError("Save", wf.ID, err)
	}

	stepsJSON, err := json.Marshal(wf.Steps)
	if err != nil {
		return persistence.NewWorkflowError("Save", wf.ID, fmt.Errorf("failed to marshal steps: %w", err))
	}

	metadataJSON, err := json.Marshal(wf.Metadata)
	if err != nil {
		return persistence.NewWorkflowError("Save", wf.ID, fmt.Errorf("failed to marshal metadata: %w", err))
	}

	query := `
		INSERT INTO workflows (id, name, description, steps, metadata, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NULL)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			steps = EXCLUDED.steps,
			metadata = EXCLUDED.metadata,
			updated_at = NOW(),
			deleted_at = NULL
	`

	_, err = r.db.ExecContext(ctx, query,
		wf.ID,
		wf.Name,
		wf.Description,
		stepsJSON,
		metadataJSON,
		wf.CreatedAt,
	)
	if err != nil {
		return persistence.NewWorkflowError("Save", wf.ID, fmt.Errorf("failed to save workflow: %w", err))
	}

	return nil
}

// Delete soft deletes a workflow by setting its deleted_at timestamp.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	query := `UPDATE workflows SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, fmt.Errorf("failed to delete workflow: %w", err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, fmt.Errorf("failed to get rows affected: %w", err))
	}

	if rowsAffected == 0 {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var (
		wf           models.Workflow
		stepsJSON    []byte
		metadataJSON []byte
	)

	err := row.Scan(
		&wf.ID,
		&wf.Name,
		&wf.Description,
		&stepsJSON,
		&metadataJSON,
		&wf.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(stepsJSON, &wf.Steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
	}

	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &wf.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &wf, nil
}
