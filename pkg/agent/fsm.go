package agent

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hiveplane/hiveplane/pkg/models"
)

// ErrInvalidTransition indicates a state change that is not allowed by the
// transition table. The machine's current state is left untouched.
var ErrInvalidTransition = errors.New("invalid state transition")

// Mode selects how the state machine treats the transition table.
type Mode string

const (
	// ModeValidated rejects transitions absent from the table.
	ModeValidated Mode = "validated"
	// ModePermissive accepts any transition but still records history.
	ModePermissive Mode = "permissive"
)

// TransitionTable maps each state to the set of states it may move to.
type TransitionTable map[models.AgentState][]models.AgentState

// DefaultTransitionTable returns the authoritative agent lifecycle
// adjacency table.
func DefaultTransitionTable() TransitionTable {
	return TransitionTable{
		models.AgentStateUninitialized:       {models.AgentStateOnboarding},
		models.AgentStateOnboarding:          {models.AgentStateIdle, models.AgentStateErrorRecovery},
		models.AgentStateIdle:                {models.AgentStateContractNegotiation, models.AgentStateCollaboration},
		models.AgentStateContractNegotiation: {models.AgentStateTaskExecution, models.AgentStateIdle},
		models.AgentStateTaskExecution:       {models.AgentStateProgressReporting, models.AgentStateErrorRecovery},
		models.AgentStateCollaboration:       {models.AgentStateProgressReporting, models.AgentStateIdle},
		models.AgentStateProgressReporting:   {models.AgentStateCycleCompletion, models.AgentStateTaskExecution},
		models.AgentStateCycleCompletion:     {models.AgentStateIdle},
		models.AgentStateErrorRecovery:       {models.AgentStateIdle, models.AgentStateOnboarding},
	}
}

// Allows reports whether the table permits moving from one state to another.
func (t TransitionTable) Allows(from, to models.AgentState) bool {
	for _, next := range t[from] {
		if next == to {
			return true
		}
	}

	return false
}

// StateMachine is the per-agent lifecycle tracker. Transitions are
// validated against a TransitionTable unless the machine runs in
// permissive mode; history is append-only either way.
type StateMachine struct {
	mu              sync.Mutex
	agentID         string
	current         models.AgentState
	previous        models.AgentState
	history         []models.StateTransition
	transitionCount int
	table           TransitionTable
	mode            Mode
}

// NewStateMachine creates a machine in the uninitialized state using the
// default transition table.
func NewStateMachine(agentID string, mode Mode) *StateMachine {
	return NewStateMachineWithTable(agentID, mode, DefaultTransitionTable())
}

// NewStateMachineWithTable creates a machine with a caller-supplied
// transition table. The table is data, not code, so deployments can
// narrow or extend the lifecycle without forking the machine.
func NewStateMachineWithTable(agentID string, mode Mode, table TransitionTable) *StateMachine {
	return &StateMachine{
		agentID: agentID,
		current: models.AgentStateUninitialized,
		table:   table,
		mode:    mode,
	}
}

// TransitionTo moves the machine to the given state. In validated mode a
// transition absent from the table returns ErrInvalidTransition and does
// not mutate the machine.
func (m *StateMachine) TransitionTo(state models.AgentState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mode == ModeValidated && !m.table.Allows(m.current, state) {
		return fmt.Errorf("agent %s: %s -> %s: %w", m.agentID, m.current, state, ErrInvalidTransition)
	}

	m.history = append(m.history, models.StateTransition{
		From: m.current,
		To:   state,
		At:   time.Now().UTC(),
	})
	m.previous = m.current
	m.current = state
	m.transitionCount++

	return nil
}

// Current returns the machine's current state.
func (m *StateMachine) Current() models.AgentState {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.current
}

// Snapshot returns a read-only view of the machine.
func (m *StateMachine) Snapshot() models.StateSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return models.StateSnapshot{
		AgentID:         m.agentID,
		Current:         m.current,
		Previous:        m.previous,
		TransitionCount: m.transitionCount,
		HistoryLength:   len(m.history),
	}
}

// History returns a copy of the transition history.
func (m *StateMachine) History() []models.StateTransition {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := make([]models.StateTransition, len(m.history))
	copy(history, m.history)

	return history
}

// Record returns the persisted form of the machine.
func (m *StateMachine) Record() *models.AgentStateRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := make([]models.StateTransition, len(m.history))
	copy(history, m.history)

	return &models.AgentStateRecord{
		AgentID:         m.agentID,
		Current:         m.current,
		Previous:        m.previous,
		TransitionCount: m.transitionCount,
		History:         history,
	}
}

func (m *StateMachine) restore(record *models.AgentStateRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = record.Current
	m.previous = record.Previous
	m.transitionCount = record.TransitionCount
	m.history = append(m.history[:0], record.History...)
}
