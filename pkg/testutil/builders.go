// Package testutil provides test data builders shared across package tests.
package testutil

import (
	"time"

	"github.com/google/uuid"
	"github.com/hiveplane/hiveplane/pkg/models"
)

// CreateTestAgent creates an available agent with default values that can
// be overridden.
func CreateTestAgent(overrides ...func(*models.Agent)) *models.Agent {
	agent := &models.Agent{
		ID:               "agent-" + uuid.New().String()[:8],
		Name:             "Test Agent",
		Capabilities:     []string{"testing"},
		Status:           models.AgentStatusAvailable,
		PerformanceScore: models.DefaultPerformanceScore,
		RegisteredAt:     time.Now().UTC(),
	}

	for _, override := range overrides {
		override(agent)
	}

	return agent
}

// WithAgentID sets the agent ID.
func WithAgentID(id string) func(*models.Agent) {
	return func(a *models.Agent) {
		a.ID = id
	}
}

// WithCapabilities sets the agent capability set.
func WithCapabilities(capabilities ...string) func(*models.Agent) {
	return func(a *models.Agent) {
		a.Capabilities = capabilities
	}
}

// WithStatus sets the agent availability status.
func WithStatus(status models.AgentStatus) func(*models.Agent) {
	return func(a *models.Agent) {
		a.Status = status
	}
}

// WithPerformanceScore sets the agent performance score.
func WithPerformanceScore(score float64) func(*models.Agent) {
	return func(a *models.Agent) {
		a.PerformanceScore = score
	}
}

// CreateTestContract creates an approved contract with default values that
// can be overridden.
func CreateTestContract(overrides ...func(*models.Contract)) *models.Contract {
	contract := &models.Contract{
		ID:                   "contract-" + uuid.New().String()[:8],
		Title:                "Test Contract",
		Description:          "A contract used in tests",
		Priority:             models.ContractPriorityNormal,
		Status:               models.ContractStatusApproved,
		RequiredCapabilities: []string{"testing"},
		CreatedAt:            time.Now().UTC(),
	}

	for _, override := range overrides {
		override(contract)
	}

	return contract
}

// WithPriority sets the contract priority.
func WithPriority(priority models.ContractPriority) func(*models.Contract) {
	return func(c *models.Contract) {
		c.Priority = priority
	}
}

// WithContractStatus sets the contract lifecycle status.
func WithContractStatus(status models.ContractStatus) func(*models.Contract) {
	return func(c *models.Contract) {
		c.Status = status
	}
}

// WithRequiredCapabilities sets the contract's required capability tags.
func WithRequiredCapabilities(capabilities ...string) func(*models.Contract) {
	return func(c *models.Contract) {
		c.RequiredCapabilities = capabilities
	}
}

// CreateTestWorkflow creates a two-step workflow definition with default
// values that can be overridden.
func CreateTestWorkflow(overrides ...func(*models.Workflow)) *models.Workflow {
	workflow := &models.Workflow{
		ID:          "wf-" + uuid.New().String()[:8],
		Name:        "test workflow",
		Description: "A workflow used in tests",
		Steps: []models.WorkflowStep{
			{ID: "prepare", Name: "Prepare", Type: "noop"},
			{ID: "finish", Name: "Finish", Type: "noop", DependsOn: []string{"prepare"}},
		},
		CreatedAt: time.Now().UTC(),
	}

	for _, override := range overrides {
		override(workflow)
	}

	return workflow
}

// WithSteps replaces the workflow's steps.
func WithSteps(steps ...models.WorkflowStep) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Steps = steps
	}
}
