package models

import "time"

// AgentState is one of the nine lifecycle states an agent moves through
// during an orchestration cycle.
type AgentState string

const (
	AgentStateUninitialized       AgentState = "uninitialized"
	AgentStateOnboarding          AgentState = "onboarding"
	AgentStateIdle                AgentState = "idle"
	AgentStateContractNegotiation AgentState = "contract_negotiation"
	AgentStateTaskExecution       AgentState = "task_execution"
	AgentStateCollaboration       AgentState = "collaboration"
	AgentStateProgressReporting   AgentState = "progress_reporting"
	AgentStateCycleCompletion     AgentState = "cycle_completion"
	AgentStateErrorRecovery       AgentState = "error_recovery"
)

// StateTransition is one recorded move in an agent's state history.
type StateTransition struct {
	From AgentState `json:"from"`
	To   AgentState `json:"to"`
	At   time.Time  `json:"at"`
}

// StateSnapshot is a read-only view of an agent's state machine.
type StateSnapshot struct {
	AgentID         string     `json:"agent_id"`
	Current         AgentState `json:"current"`
	Previous        AgentState `json:"previous"`
	TransitionCount int        `json:"transition_count"`
	HistoryLength   int        `json:"history_length"`
}

// AgentStateRecord is the persisted form of an agent state machine,
// stored inside the combined orchestrator snapshot.
type AgentStateRecord struct {
	AgentID         string            `json:"agent_id"`
	Current         AgentState        `json:"current"`
	Previous        AgentState        `json:"previous"`
	TransitionCount int               `json:"transition_count"`
	History         []StateTransition `json:"history"`
}
