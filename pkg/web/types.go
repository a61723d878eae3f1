// Package web provides HTTP request and response types for the
// orchestrator API.
package web

import (
	"time"

	"github.com/hiveplane/hiveplane/pkg/models"
)

// RegisterAgentRequest is the body for registering a new agent.
type RegisterAgentRequest struct {
	ID           string   `json:"id"           validate:"required"`
	Name         string   `json:"name"         validate:"required,min=3"`
	Capabilities []string `json:"capabilities"`
}

// TransitionAgentStateRequest is the body for moving an agent's state
// machine.
type TransitionAgentStateRequest struct {
	State string `json:"state" validate:"required"`
}

// CreateContractRequest is the body for creating a new contract.
type CreateContractRequest struct {
	Title                string   `json:"title"                 validate:"required,min=3"`
	Description          string   `json:"description"           validate:"required,min=10"`
	Priority             string   `json:"priority"              validate:"required,oneof=low normal high urgent critical"`
	RequiredCapabilities []string `json:"required_capabilities"`
	EstimatedDurationSec int64    `json:"estimated_duration_seconds"`
	AutoValidate         bool     `json:"auto_validate"`
}

// AssignContractRequest is the body for assigning a contract. An empty
// agent ID asks the engine to pick the best match.
type AssignContractRequest struct {
	AgentID string `json:"agent_id"`
}

// CancelRequest carries an optional human-readable reason.
type CancelRequest struct {
	Reason string `json:"reason"`
}

// CreateWorkflowRequest is the body for storing a workflow definition.
type CreateWorkflowRequest struct {
	ID          string                `json:"id"          validate:"required"`
	Name        string                `json:"name"        validate:"required,min=3"`
	Description string                `json:"description"`
	Steps       []models.WorkflowStep `json:"steps"       validate:"required,min=1,dive"`
	Metadata    map[string]any        `json:"metadata,omitempty"`
}

// ToWorkflow converts the request into the model the orchestrator stores.
func (r CreateWorkflowRequest) ToWorkflow() *models.Workflow {
	return &models.Workflow{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Steps:       r.Steps,
		Metadata:    r.Metadata,
		CreatedAt:   time.Now().UTC(),
	}
}
