package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hiveplane/hiveplane/pkg/models"
	"github.com/hiveplane/hiveplane/pkg/persistence"
	"github.com/hiveplane/hiveplane/pkg/workflow"
)

// WorkflowRepository stores one JSON document per workflow definition
// under <root>/workflows/.
type WorkflowRepository struct {
	root string
}

// NewWorkflowRepository creates a new workflow definition repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

func (wr *WorkflowRepository) dir() string {
	return filepath.Join(wr.root, "workflows")
}

// validateWorkflowID guards file operations against path traversal.
func validateWorkflowID(id string) error {
	if id == "" {
		return persistence.ErrInvalidWorkflowID
	}

	if strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return persistence.ErrInvalidWorkflowID
	}

	return nil
}

// Save writes the definition document, validating it against the
// definition schema first. The write goes through a temp file and rename
// so readers never observe a partial document.
func (wr *WorkflowRepository) Save(_ context.Context, wf *models.Workflow) error {
	if err := validateWorkflowID(wf.ID); err != nil {
		return persistence.NewWorkflowError("Save", wf.ID, err)
	}

	data, err := json.MarshalIndent(wf, "", "  ")
	if err != nil {
		return persistence.NewWorkflowError("Save", wf.ID, err)
	}

	if err := workflow.ValidateDefinitionDocument(data); err != nil {
		return persistence.NewWorkflowError("Save", wf.ID, err)
	}

	if err := os.MkdirAll(wr.dir(), 0750); err != nil {
		return persistence.NewWorkflowError("Save", wf.ID, err)
	}

	return writeFileAtomic(filepath.Join(wr.dir(), wf.ID+".json"), data)
}

// GetByID loads one workflow definition.
func (wr *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	if err := validateWorkflowID(id); err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	data, err := os.ReadFile(filepath.Join(wr.dir(), id+".json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	var wf models.Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	return &wf, nil
}

// GetAll loads every workflow definition under the root.
func (wr *WorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	root := os.DirFS(wr.dir())

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, persistence.NewWorkflowError("GetAll", "", err)
	}

	workflows := make([]*models.Workflow, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		id := strings.TrimSuffix(file, ".json")

		wf, err := wr.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow %s: %w", id, err)
		}

		workflows = append(workflows, wf)
	}

	return workflows, nil
}

// Delete removes a workflow definition document.
func (wr *WorkflowRepository) Delete(_ context.Context, id string) error {
	if err := validateWorkflowID(id); err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	err := os.Remove(filepath.Join(wr.dir(), id+".json"))
	if errors.Is(err, fs.ErrNotExist) {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}
