// Package events defines event types for contract, agent, and execution
// lifecycle notifications.
package events

import (
	"time"

	"github.com/hiveplane/hiveplane/pkg/models"
)

type EventType string

// Topic carries every orchestration event.
const Topic = "hiveplane.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Contract lifecycle events.
	ContractCreatedEvent   EventType = "contract.created"
	ContractApprovedEvent  EventType = "contract.approved"
	ContractAssignedEvent  EventType = "contract.assigned"
	ContractCompletedEvent EventType = "contract.completed"
	ContractCancelledEvent EventType = "contract.cancelled"

	// Agent lifecycle events.
	AgentRegisteredEvent   EventType = "agent.registered"
	AgentStateChangedEvent EventType = "agent.state_changed"

	// Workflow execution lifecycle events.
	ExecutionStartedEvent       EventType = "execution.started"
	ExecutionStepCompletedEvent EventType = "execution.step.completed"
	ExecutionStepFailedEvent    EventType = "execution.step.failed"
	ExecutionCompletedEvent     EventType = "execution.completed"
	ExecutionFailedEvent        EventType = "execution.failed"
	ExecutionCancelledEvent     EventType = "execution.cancelled"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type ContractCreated struct {
	BaseEvent

	ContractID string                  `json:"contract_id"`
	Title      string                  `json:"title"`
	Priority   models.ContractPriority `json:"priority"`
	Status     models.ContractStatus   `json:"status"`
}

func (c ContractCreated) GetType() EventType {
	return ContractCreatedEvent
}

type ContractApproved struct {
	BaseEvent

	ContractID string `json:"contract_id"`
}

func (c ContractApproved) GetType() EventType {
	return ContractApprovedEvent
}

type ContractAssigned struct {
	BaseEvent

	ContractID   string  `json:"contract_id"`
	AssignmentID string  `json:"assignment_id"`
	AgentID      string  `json:"agent_id"`
	Strategy     string  `json:"strategy"`
	Confidence   float64 `json:"confidence"`
}

func (c ContractAssigned) GetType() EventType {
	return ContractAssignedEvent
}

type ContractCompleted struct {
	BaseEvent

	ContractID string `json:"contract_id"`
	AgentID    string `json:"agent_id,omitempty"`
}

func (c ContractCompleted) GetType() EventType {
	return ContractCompletedEvent
}

type ContractCancelled struct {
	BaseEvent

	ContractID string `json:"contract_id"`
	Reason     string `json:"reason,omitempty"`
}

func (c ContractCancelled) GetType() EventType {
	return ContractCancelledEvent
}

type AgentRegistered struct {
	BaseEvent

	AgentID      string   `json:"agent_id"`
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
}

func (a AgentRegistered) GetType() EventType {
	return AgentRegisteredEvent
}

type AgentStateChanged struct {
	BaseEvent

	AgentID string            `json:"agent_id"`
	From    models.AgentState `json:"from"`
	To      models.AgentState `json:"to"`
}

func (a AgentStateChanged) GetType() EventType {
	return AgentStateChangedEvent
}

type ExecutionStarted struct {
	BaseEvent

	ExecutionID  string `json:"execution_id"`
	WorkflowID   string `json:"workflow_id"`
	WorkflowName string `json:"workflow_name"`
	Queued       bool   `json:"queued"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionStepCompleted struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	WorkflowID  string        `json:"workflow_id"`
	StepID      string        `json:"step_id"`
	Duration    time.Duration `json:"duration"`
}

func (e ExecutionStepCompleted) GetType() EventType {
	return ExecutionStepCompletedEvent
}

type ExecutionStepFailed struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	WorkflowID  string        `json:"workflow_id"`
	StepID      string        `json:"step_id"`
	Error       string        `json:"error"`
	Duration    time.Duration `json:"duration"`
}

func (e ExecutionStepFailed) GetType() EventType {
	return ExecutionStepFailedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID    string        `json:"execution_id"`
	WorkflowID     string        `json:"workflow_id"`
	StepsCompleted int           `json:"steps_completed"`
	Duration       time.Duration `json:"duration"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	WorkflowID  string        `json:"workflow_id"`
	StepID      string        `json:"step_id"`
	Error       string        `json:"error"`
	Duration    time.Duration `json:"duration"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionCancelled struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
	Reason      string `json:"reason,omitempty"`
}

func (e ExecutionCancelled) GetType() EventType {
	return ExecutionCancelledEvent
}
