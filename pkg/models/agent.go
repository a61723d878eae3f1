// Package models defines the core domain models for multi-agent task orchestration.
package models

import "time"

// AgentStatus represents the availability of an agent for new work.
type AgentStatus string

const (
	AgentStatusOffline   AgentStatus = "offline"
	AgentStatusAvailable AgentStatus = "available"
	AgentStatusBusy      AgentStatus = "busy"
)

// DefaultPerformanceScore is assigned to agents that have no execution history yet.
const DefaultPerformanceScore = 0.5

// Agent represents a registered worker with a capability set and a lifecycle status.
// Agents are never deleted; deregistration flips them offline and stamps DeregisteredAt.
type Agent struct {
	ID               string      `json:"id"                          validate:"required"`
	Name             string      `json:"name"                        validate:"required"`
	Capabilities     []string    `json:"capabilities"`
	Status           AgentStatus `json:"status"                      validate:"required"`
	PerformanceScore float64     `json:"performance_score"           validate:"min=0,max=1"`
	RegisteredAt     time.Time   `json:"registered_at"`
	DeregisteredAt   *time.Time  `json:"deregistered_at,omitempty"`
}

// HasCapability reports whether the agent's capability set contains the given tag.
func (a *Agent) HasCapability(tag string) bool {
	for _, c := range a.Capabilities {
		if c == tag {
			return true
		}
	}

	return false
}

// ValidAgentStatus reports whether the given value is a recognized agent status.
func ValidAgentStatus(s AgentStatus) bool {
	switch s {
	case AgentStatusOffline, AgentStatusAvailable, AgentStatusBusy:
		return true
	default:
		return false
	}
}
