package models

import "time"

// RetryPolicy declares retry behavior for a workflow step.
//
// The engine does not act on it: step failures are terminal for the
// execution, and retries are the caller's responsibility. The field is
// kept on the step so that definitions remain forward compatible.
type RetryPolicy struct {
	MaxAttempts int           `json:"max_attempts"`
	Backoff     time.Duration `json:"backoff"`
}

// WorkflowStep is one node in a workflow's dependency graph. A step is
// ready for execution when every ID in DependsOn is in the execution's
// completed-step set.
type WorkflowStep struct {
	ID                   string        `json:"id"                              validate:"required"`
	Name                 string        `json:"name"                            validate:"required"`
	Type                 string        `json:"type"                            validate:"required"`
	DependsOn            []string      `json:"depends_on,omitempty"`
	RequiredCapabilities []string      `json:"required_capabilities,omitempty"`
	Timeout              time.Duration `json:"timeout,omitempty"`
	RetryPolicy          *RetryPolicy  `json:"retry_policy,omitempty"`
}

// Workflow is a persisted workflow definition: an ordered,
// dependency-constrained collection of steps. One JSON document is stored
// per workflow ID.
type Workflow struct {
	ID          string         `json:"id"          validate:"required"`
	Name        string         `json:"name"        validate:"required,min=3"`
	Description string         `json:"description"`
	Steps       []WorkflowStep `json:"steps"       validate:"required,min=1,dive"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// StepByID returns the step with the given ID, if present.
func (w *Workflow) StepByID(id string) (*WorkflowStep, bool) {
	for i := range w.Steps {
		if w.Steps[i].ID == id {
			return &w.Steps[i], true
		}
	}

	return nil, false
}
