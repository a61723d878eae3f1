package models

import "time"

// OrchestratorSnapshot is the combined persisted state of the
// orchestration core: every agent, agent state machine, contract, and
// assignment. It is rewritten in full on every mutating call.
type OrchestratorSnapshot struct {
	Agents      []*Agent            `json:"agents"`
	AgentStates []*AgentStateRecord `json:"agent_states"`
	Contracts   []*Contract         `json:"contracts"`
	Assignments []*Assignment       `json:"assignments"`
	SavedAt     time.Time           `json:"saved_at"`
}
