// Package persistence provides the storage abstraction for workflow
// definitions and the combined orchestrator snapshot.
package persistence

import (
	"context"

	"github.com/hiveplane/hiveplane/pkg/models"
)

// Persistence stores workflow definitions (one document per workflow ID)
// and the orchestrator snapshot (one combined document holding all agents,
// agent state machines, contracts, and assignments, rewritten in full on
// every mutating call).
type Persistence interface {
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error

	SaveSnapshot(ctx context.Context, snapshot *models.OrchestratorSnapshot) error
	LoadSnapshot(ctx context.Context) (*models.OrchestratorSnapshot, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
