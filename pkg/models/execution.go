package models

import "time"

// ExecutionStatus defines the possible states of a workflow execution.
type ExecutionStatus string

const (
	ExecutionStatusPending    ExecutionStatus = "pending"
	ExecutionStatusInProgress ExecutionStatus = "in_progress"
	ExecutionStatusCompleted  ExecutionStatus = "completed"
	ExecutionStatusFailed     ExecutionStatus = "failed"
	ExecutionStatusCancelled  ExecutionStatus = "cancelled"
)

// Terminal reports whether the status is a terminal execution state.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	default:
		return false
	}
}

// StepResult records the outcome of a single step within an execution.
type StepResult struct {
	StepID     string        `json:"step_id"`
	Status     string        `json:"status"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	FinishedAt time.Time     `json:"finished_at"`
}

// WorkflowExecution tracks one run of a workflow. It is created when the
// run is admitted, mutated while steps execute, and retained after the
// run reaches a terminal status for audit.
type WorkflowExecution struct {
	ID             string                `json:"id"`
	WorkflowID     string                `json:"workflow_id"`
	Status         ExecutionStatus       `json:"status"`
	Steps          []WorkflowStep        `json:"steps"`
	CompletedSteps []string              `json:"completed_steps"`
	FailedSteps    []string              `json:"failed_steps"`
	StepResults    map[string]StepResult `json:"step_results"`
	StartedAt      *time.Time            `json:"started_at,omitempty"`
	FinishedAt     *time.Time            `json:"finished_at,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
}

// StepCompleted reports whether the given step ID is in the completed set.
func (e *WorkflowExecution) StepCompleted(id string) bool {
	for _, s := range e.CompletedSteps {
		if s == id {
			return true
		}
	}

	return false
}

// StepReady reports whether every dependency of the step is completed.
func (e *WorkflowExecution) StepReady(step *WorkflowStep) bool {
	for _, dep := range step.DependsOn {
		if !e.StepCompleted(dep) {
			return false
		}
	}

	return true
}
