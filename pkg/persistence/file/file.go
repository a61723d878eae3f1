// Package file provides file-based persistence for workflow definitions
// and the orchestrator snapshot.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/hiveplane/hiveplane/pkg/models"
	"github.com/hiveplane/hiveplane/pkg/persistence"
)

// Persistence implements persistence.Persistence on the file system:
// workflows/<id>.json per definition plus a single snapshot.json.
type Persistence struct {
	root         string
	workflowRepo *WorkflowRepository
	snapshotRepo *SnapshotRepository
}

// NewPersistence creates a file persistence layer rooted at the given
// directory. A "file://" prefix is stripped so database-URL style
// configuration works unchanged.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:         cleanRoot,
		workflowRepo: NewWorkflowRepository(cleanRoot),
		snapshotRepo: NewSnapshotRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there
// is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	return fp.workflowRepo.GetAll(ctx)
}

func (fp *Persistence) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	return fp.workflowRepo.GetByID(ctx, id)
}

func (fp *Persistence) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	return fp.workflowRepo.Save(ctx, workflow)
}

func (fp *Persistence) DeleteWorkflow(ctx context.Context, id string) error {
	return fp.workflowRepo.Delete(ctx, id)
}

func (fp *Persistence) SaveSnapshot(ctx context.Context, snapshot *models.OrchestratorSnapshot) error {
	return fp.snapshotRepo.Save(ctx, snapshot)
}

func (fp *Persistence) LoadSnapshot(ctx context.Context) (*models.OrchestratorSnapshot, error) {
	return fp.snapshotRepo.Load(ctx)
}

var _ persistence.Persistence = (*Persistence)(nil)
