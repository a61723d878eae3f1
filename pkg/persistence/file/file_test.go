package file

import (
	"context"
	"testing"
	"time"

	"github.com/hiveplane/hiveplane/pkg/models"
	"github.com/hiveplane/hiveplane/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWorkflow(id string) *models.Workflow {
	return &models.Workflow{
		ID:          id,
		Name:        "nightly pipeline",
		Description: "Build, test, deploy",
		Steps: []models.WorkflowStep{
			{ID: "build", Name: "Build", Type: "shell"},
			{ID: "test", Name: "Test", Type: "shell", DependsOn: []string{"build"}},
		},
		CreatedAt: time.Now().UTC(),
	}
}

func TestPersistence_WorkflowRoundTrip(t *testing.T) {
	fp := NewPersistence(t.TempDir())
	ctx := context.Background()

	wf := testWorkflow("wf-1")
	require.NoError(t, fp.SaveWorkflow(ctx, wf))

	loaded, err := fp.WorkflowByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, wf.Name, loaded.Name)
	require.Len(t, loaded.Steps, 2)
	assert.Equal(t, []string{"build"}, loaded.Steps[1].DependsOn)
}

func TestPersistence_WorkflowByID_NotFound(t *testing.T) {
	fp := NewPersistence(t.TempDir())

	_, err := fp.WorkflowByID(context.Background(), "missing")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestPersistence_Workflows_ListsAll(t *testing.T) {
	fp := NewPersistence(t.TempDir())
	ctx := context.Background()

	require.NoError(t, fp.SaveWorkflow(ctx, testWorkflow("wf-1")))
	require.NoError(t, fp.SaveWorkflow(ctx, testWorkflow("wf-2")))

	workflows, err := fp.Workflows(ctx)
	require.NoError(t, err)
	assert.Len(t, workflows, 2)
}

func TestPersistence_DeleteWorkflow(t *testing.T) {
	fp := NewPersistence(t.TempDir())
	ctx := context.Background()

	require.NoError(t, fp.SaveWorkflow(ctx, testWorkflow("wf-1")))
	require.NoError(t, fp.DeleteWorkflow(ctx, "wf-1"))

	_, err := fp.WorkflowByID(ctx, "wf-1")
	assert.True(t, persistence.IsWorkflowNotFound(err))

	err = fp.DeleteWorkflow(ctx, "wf-1")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestPersistence_SaveWorkflow_RejectsInvalidDefinition(t *testing.T) {
	fp := NewPersistence(t.TempDir())
	ctx := context.Background()

	invalid := testWorkflow("wf-1")
	invalid.Steps = nil

	assert.Error(t, fp.SaveWorkflow(ctx, invalid))
}

func TestPersistence_SaveWorkflow_RejectsTraversalIDs(t *testing.T) {
	fp := NewPersistence(t.TempDir())
	ctx := context.Background()

	for _, id := range []string{"", "../escape", "a/b", `a\b`} {
		wf := testWorkflow(id)
		err := fp.SaveWorkflow(ctx, wf)
		assert.ErrorIs(t, err, persistence.ErrInvalidWorkflowID, "id %q", id)
	}
}

func TestPersistence_SnapshotRoundTrip(t *testing.T) {
	fp := NewPersistence(t.TempDir())
	ctx := context.Background()

	agentID := "w1"
	snapshot := &models.OrchestratorSnapshot{
		Agents: []*models.Agent{{
			ID:               agentID,
			Name:             "Worker One",
			Capabilities:     []string{"testing"},
			Status:           models.AgentStatusAvailable,
			PerformanceScore: 0.5,
		}},
		AgentStates: []*models.AgentStateRecord{{
			AgentID:         agentID,
			Current:         models.AgentStateIdle,
			Previous:        models.AgentStateOnboarding,
			TransitionCount: 2,
		}},
		Contracts: []*models.Contract{{
			ID:            "contract-1",
			Title:         "Run tests",
			Description:   "Regression suite",
			Priority:      models.ContractPriorityHigh,
			Status:        models.ContractStatusAssigned,
			AssignedAgent: &agentID,
		}},
		Assignments: []*models.Assignment{{
			ID:         "assignment-1",
			ContractID: "contract-1",
			AgentID:    agentID,
			Strategy:   "auto",
			Confidence: 0.8,
		}},
	}

	require.NoError(t, fp.SaveSnapshot(ctx, snapshot))

	loaded, err := fp.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, loaded.Agents, 1)
	assert.Equal(t, models.AgentStateIdle, loaded.AgentStates[0].Current)
	require.NotNil(t, loaded.Contracts[0].AssignedAgent)
	assert.Equal(t, agentID, *loaded.Contracts[0].AssignedAgent)
	assert.False(t, loaded.SavedAt.IsZero())
}

func TestPersistence_LoadSnapshot_NotFound(t *testing.T) {
	fp := NewPersistence(t.TempDir())

	_, err := fp.LoadSnapshot(context.Background())
	assert.True(t, persistence.IsSnapshotNotFound(err))
}

func TestPersistence_HealthCheck(t *testing.T) {
	dir := t.TempDir()
	fp := NewPersistence("file://" + dir)

	assert.NoError(t, fp.HealthCheck(context.Background()))

	missing := NewPersistence(dir + "/does-not-exist")
	assert.Error(t, missing.HealthCheck(context.Background()))
}
