package models

import "time"

// Assignment binds one contract to one agent at a point in time.
// Assignments are immutable once created; a re-assignment after a cancel
// or failure produces a new record, it never mutates an existing one.
type Assignment struct {
	ID         string    `json:"id"          validate:"required"`
	ContractID string    `json:"contract_id" validate:"required"`
	AgentID    string    `json:"agent_id"    validate:"required"`
	Strategy   string    `json:"strategy"`
	Confidence float64   `json:"confidence"  validate:"min=0,max=1"`
	AssignedAt time.Time `json:"assigned_at"`
}
