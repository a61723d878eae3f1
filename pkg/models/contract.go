package models

import "time"

// ContractPriority represents the urgency of a contract.
type ContractPriority string

const (
	ContractPriorityLow      ContractPriority = "low"
	ContractPriorityNormal   ContractPriority = "normal"
	ContractPriorityHigh     ContractPriority = "high"
	ContractPriorityUrgent   ContractPriority = "urgent"
	ContractPriorityCritical ContractPriority = "critical"
)

// ContractStatus represents the lifecycle state of a contract.
//
// The status only advances along
// {pending|approved} -> assigned -> in_progress -> {completed|failed},
// with cancelled reachable from pending, approved, and assigned.
type ContractStatus string

const (
	ContractStatusPending    ContractStatus = "pending"
	ContractStatusApproved   ContractStatus = "approved"
	ContractStatusAssigned   ContractStatus = "assigned"
	ContractStatusInProgress ContractStatus = "in_progress"
	ContractStatusCompleted  ContractStatus = "completed"
	ContractStatusFailed     ContractStatus = "failed"
	ContractStatusCancelled  ContractStatus = "cancelled"
)

// Terminal reports whether the status is a terminal contract state.
func (s ContractStatus) Terminal() bool {
	switch s {
	case ContractStatusCompleted, ContractStatusFailed, ContractStatusCancelled:
		return true
	default:
		return false
	}
}

// ValidContractPriority reports whether the given value is a recognized priority.
func ValidContractPriority(p ContractPriority) bool {
	switch p {
	case ContractPriorityLow, ContractPriorityNormal, ContractPriorityHigh,
		ContractPriorityUrgent, ContractPriorityCritical:
		return true
	default:
		return false
	}
}

// ValidContractStatus reports whether the given value is a recognized status.
func ValidContractStatus(s ContractStatus) bool {
	switch s {
	case ContractStatusPending, ContractStatusApproved, ContractStatusAssigned,
		ContractStatusInProgress, ContractStatusCompleted, ContractStatusFailed,
		ContractStatusCancelled:
		return true
	default:
		return false
	}
}

// ValidationResult records the outcome of a single contract validation rule.
type ValidationResult struct {
	Rule    string `json:"rule"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

// Contract represents a unit of work with priority, required capabilities,
// and a lifecycle status. AssignedAgent is set by the assignment engine.
type Contract struct {
	ID                   string             `json:"id"                       validate:"required"`
	Title                string             `json:"title"                    validate:"required"`
	Description          string             `json:"description"              validate:"required"`
	Priority             ContractPriority   `json:"priority"                 validate:"required"`
	Status               ContractStatus     `json:"status"                   validate:"required"`
	RequiredCapabilities []string           `json:"required_capabilities"`
	EstimatedDuration    time.Duration      `json:"estimated_duration"`
	AssignedAgent        *string            `json:"assigned_agent,omitempty"`
	ValidationResults    []ValidationResult `json:"validation_results,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
	AssignedAt           *time.Time         `json:"assigned_at,omitempty"`
	CompletedAt          *time.Time         `json:"completed_at,omitempty"`
}

// ContractSummary aggregates contract counts by status.
type ContractSummary struct {
	Total    int                    `json:"total"`
	ByStatus map[ContractStatus]int `json:"by_status"`
}
