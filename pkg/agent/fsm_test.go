package agent

import (
	"testing"

	"github.com/hiveplane/hiveplane/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateMachine_ValidPath(t *testing.T) {
	machine := NewStateMachine("agent-1", ModeValidated)

	path := []models.AgentState{
		models.AgentStateOnboarding,
		models.AgentStateIdle,
		models.AgentStateContractNegotiation,
		models.AgentStateTaskExecution,
		models.AgentStateProgressReporting,
		models.AgentStateCycleCompletion,
		models.AgentStateIdle,
	}

	for _, state := range path {
		require.NoError(t, machine.TransitionTo(state))
		assert.Equal(t, state, machine.Current())
	}

	snapshot := machine.Snapshot()
	assert.Equal(t, "agent-1", snapshot.AgentID)
	assert.Equal(t, len(path), snapshot.TransitionCount)
	assert.Equal(t, len(path), snapshot.HistoryLength)
	assert.Equal(t, models.AgentStateCycleCompletion, snapshot.Previous)
}

func TestStateMachine_InvalidTransitionDoesNotMutate(t *testing.T) {
	machine := NewStateMachine("agent-1", ModeValidated)

	err := machine.TransitionTo(models.AgentStateTaskExecution)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, models.AgentStateUninitialized, machine.Current())

	// Repeated invalid transitions never mutate current state.
	for range 3 {
		err = machine.TransitionTo(models.AgentStateCycleCompletion)
		require.ErrorIs(t, err, ErrInvalidTransition)
	}

	assert.Equal(t, models.AgentStateUninitialized, machine.Current())
	assert.Zero(t, machine.Snapshot().TransitionCount)
	assert.Empty(t, machine.History())
}

func TestStateMachine_OnboardingThenDirectJumpFails(t *testing.T) {
	machine := NewStateMachine("agent-1", ModeValidated)

	require.NoError(t, machine.TransitionTo(models.AgentStateOnboarding))
	require.NoError(t, machine.TransitionTo(models.AgentStateIdle))

	// IDLE does not allow a direct move to TASK_EXECUTION.
	err := machine.TransitionTo(models.AgentStateTaskExecution)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, models.AgentStateIdle, machine.Current())
}

func TestStateMachine_PermissiveModeAcceptsAnything(t *testing.T) {
	machine := NewStateMachine("agent-1", ModePermissive)

	require.NoError(t, machine.TransitionTo(models.AgentStateTaskExecution))
	require.NoError(t, machine.TransitionTo(models.AgentStateCycleCompletion))

	snapshot := machine.Snapshot()
	assert.Equal(t, models.AgentStateCycleCompletion, snapshot.Current)
	assert.Equal(t, 2, snapshot.TransitionCount)
}

func TestStateMachine_ErrorRecoveryPaths(t *testing.T) {
	machine := NewStateMachine("agent-1", ModeValidated)

	require.NoError(t, machine.TransitionTo(models.AgentStateOnboarding))
	require.NoError(t, machine.TransitionTo(models.AgentStateErrorRecovery))
	require.NoError(t, machine.TransitionTo(models.AgentStateOnboarding))
	require.NoError(t, machine.TransitionTo(models.AgentStateIdle))
}

func TestDefaultTransitionTable_Allows(t *testing.T) {
	table := DefaultTransitionTable()

	assert.True(t, table.Allows(models.AgentStateUninitialized, models.AgentStateOnboarding))
	assert.True(t, table.Allows(models.AgentStateProgressReporting, models.AgentStateTaskExecution))
	assert.False(t, table.Allows(models.AgentStateUninitialized, models.AgentStateIdle))
	assert.False(t, table.Allows(models.AgentStateCycleCompletion, models.AgentStateTaskExecution))
}

func TestStateMachine_CustomTable(t *testing.T) {
	table := TransitionTable{
		models.AgentStateUninitialized: {models.AgentStateIdle},
	}
	machine := NewStateMachineWithTable("agent-1", ModeValidated, table)

	require.NoError(t, machine.TransitionTo(models.AgentStateIdle))
	require.ErrorIs(t, machine.TransitionTo(models.AgentStateOnboarding), ErrInvalidTransition)
}
