package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hiveplane/hiveplane/pkg/agent"
	"github.com/hiveplane/hiveplane/pkg/assignment"
	"github.com/hiveplane/hiveplane/pkg/contract"
	"github.com/hiveplane/hiveplane/pkg/eventbus"
	"github.com/hiveplane/hiveplane/pkg/events"
	"github.com/hiveplane/hiveplane/pkg/models"
	"github.com/hiveplane/hiveplane/pkg/persistence"
	"github.com/hiveplane/hiveplane/pkg/transport"
	"github.com/hiveplane/hiveplane/pkg/workflow"
)

// Orchestrator is the single entry point for mutations of the
// orchestration core. Every mutating call rewrites the persisted snapshot
// and publishes lifecycle events, so the in-memory stores, the snapshot,
// and the event stream never drift apart.
type Orchestrator struct {
	registry    *agent.Registry
	contracts   *contract.Store
	assignments *assignment.Engine
	workflows   *workflow.Engine

	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	transport   transport.Transport
	logger      *slog.Logger

	// persistMu serializes snapshot writes; individual stores guard
	// their own state.
	persistMu sync.Mutex
}

// NewOrchestrator wires the orchestration core together.
func NewOrchestrator(
	registry *agent.Registry,
	contracts *contract.Store,
	assignments *assignment.Engine,
	workflows *workflow.Engine,
	p persistence.Persistence,
	bus eventbus.EventBus,
	tr transport.Transport,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		registry:    registry,
		contracts:   contracts,
		assignments: assignments,
		workflows:   workflows,
		persistence: p,
		eventBus:    bus,
		transport:   tr,
		logger:      logger.With("module", "orchestrator"),
	}
}

// Restore loads the persisted snapshot into the in-memory stores. A
// missing snapshot means a fresh deployment and is not an error.
func (o *Orchestrator) Restore(ctx context.Context) error {
	snapshot, err := o.persistence.LoadSnapshot(ctx)
	if err != nil {
		if persistence.IsSnapshotNotFound(err) {
			o.logger.InfoContext(ctx, "No snapshot found, starting empty")

			return nil
		}

		return NewServiceError("Restore", err)
	}

	o.registry.Restore(snapshot.Agents, snapshot.AgentStates)
	o.contracts.Restore(snapshot.Contracts)
	o.assignments.Restore(snapshot.Assignments)

	o.logger.InfoContext(ctx, "Snapshot restored",
		"agents", len(snapshot.Agents),
		"contracts", len(snapshot.Contracts),
		"assignments", len(snapshot.Assignments),
		"saved_at", snapshot.SavedAt,
	)

	return nil
}

// RegisterAgent registers a new agent and announces it.
func (o *Orchestrator) RegisterAgent(ctx context.Context, id, name string, capabilities []string) (*models.Agent, error) {
	if id == "" {
		return nil, NewServiceError("RegisterAgent", ErrEmptyAgentID)
	}

	registered, err := o.registry.Register(id, name, capabilities)
	if err != nil {
		return nil, NewServiceError("RegisterAgent", err)
	}

	o.publish(ctx, registered.ID, events.AgentRegistered{
		BaseEvent:    o.baseEvent(events.AgentRegisteredEvent),
		AgentID:      registered.ID,
		Name:         registered.Name,
		Capabilities: registered.Capabilities,
	})

	if err := o.persist(ctx); err != nil {
		return nil, err
	}

	return registered, nil
}

// TransitionAgentState moves an agent's lifecycle state machine.
func (o *Orchestrator) TransitionAgentState(ctx context.Context, agentID string, state models.AgentState) error {
	machine, err := o.registry.StateMachine(agentID)
	if err != nil {
		return NewServiceError("TransitionAgentState", err)
	}

	from := machine.Current()

	if err := machine.TransitionTo(state); err != nil {
		return NewServiceError("TransitionAgentState", err)
	}

	o.publish(ctx, agentID, events.AgentStateChanged{
		BaseEvent: o.baseEvent(events.AgentStateChangedEvent),
		AgentID:   agentID,
		From:      from,
		To:        state,
	})

	return o.persist(ctx)
}

// CreateContract creates a contract and, when the contract qualifies,
// immediately tries to auto-assign it. Assignment failure is not a
// creation failure: the contract stays approved for the sweeper to retry.
func (o *Orchestrator) CreateContract(ctx context.Context, req contract.CreateRequest) (*models.Contract, error) {
	created, err := o.contracts.Create(req)
	if err != nil {
		return nil, NewServiceError("CreateContract", err)
	}

	o.publish(ctx, created.ID, events.ContractCreated{
		BaseEvent:  o.baseEvent(events.ContractCreatedEvent),
		ContractID: created.ID,
		Title:      created.Title,
		Priority:   created.Priority,
		Status:     created.Status,
	})

	if created.Status == models.ContractStatusApproved {
		o.publish(ctx, created.ID, events.ContractApproved{
			BaseEvent:  o.baseEvent(events.ContractApprovedEvent),
			ContractID: created.ID,
		})

		if o.assignments.ShouldAutoAssign(created) {
			if _, err := o.AutoAssignContract(ctx, created.ID); err != nil {
				o.logger.WarnContext(ctx, "Auto-assignment deferred",
					"contract_id", created.ID,
					"error", err,
				)
			}
		}
	}

	if err := o.persist(ctx); err != nil {
		return nil, err
	}

	return created, nil
}

// ApproveContract moves a pending contract to approved.
func (o *Orchestrator) ApproveContract(ctx context.Context, contractID string) error {
	if err := o.contracts.TransitionStatus(contractID, models.ContractStatusApproved); err != nil {
		return NewServiceError("ApproveContract", err)
	}

	o.publish(ctx, contractID, events.ContractApproved{
		BaseEvent:  o.baseEvent(events.ContractApprovedEvent),
		ContractID: contractID,
	})

	return o.persist(ctx)
}

// AssignContract manually assigns a contract to a specific agent.
func (o *Orchestrator) AssignContract(ctx context.Context, contractID, agentID string) (*models.Assignment, error) {
	assigned, err := o.assignments.Assign(contractID, agentID, "manual")
	if err != nil {
		return nil, NewServiceError("AssignContract", err)
	}

	o.afterAssignment(ctx, assigned)

	if err := o.persist(ctx); err != nil {
		return nil, err
	}

	return assigned, nil
}

// AutoAssignContract picks the best matching agent and assigns the
// contract to it.
func (o *Orchestrator) AutoAssignContract(ctx context.Context, contractID string) (*models.Assignment, error) {
	assigned, err := o.assignments.AutoAssign(contractID)
	if err != nil {
		return nil, NewServiceError("AutoAssignContract", err)
	}

	o.afterAssignment(ctx, assigned)

	if err := o.persist(ctx); err != nil {
		return nil, err
	}

	return assigned, nil
}

// afterAssignment publishes the assignment event and notifies the agent.
// Notification failure is logged, not returned: the assignment record is
// already committed and agents also poll the API.
func (o *Orchestrator) afterAssignment(ctx context.Context, assigned *models.Assignment) {
	o.publish(ctx, assigned.ContractID, events.ContractAssigned{
		BaseEvent:    o.baseEvent(events.ContractAssignedEvent),
		ContractID:   assigned.ContractID,
		AssignmentID: assigned.ID,
		AgentID:      assigned.AgentID,
		Strategy:     assigned.Strategy,
		Confidence:   assigned.Confidence,
	})

	title := ""
	if c, err := o.contracts.Get(assigned.ContractID); err == nil {
		title = c.Title
	}

	err := o.transport.Send(ctx, assigned.AgentID, transport.Notification{
		ContractID:   assigned.ContractID,
		AssignmentID: assigned.ID,
		Title:        title,
		Strategy:     assigned.Strategy,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		o.logger.WarnContext(ctx, "Failed to notify agent",
			"agent_id", assigned.AgentID,
			"contract_id", assigned.ContractID,
			"error", err,
		)
	}
}

// StartContract moves an assigned contract to in_progress and marks its
// agent busy.
func (o *Orchestrator) StartContract(ctx context.Context, contractID string) error {
	c, err := o.contracts.Get(contractID)
	if err != nil {
		return NewServiceError("StartContract", err)
	}

	if err := o.contracts.TransitionStatus(contractID, models.ContractStatusInProgress); err != nil {
		return NewServiceError("StartContract", err)
	}

	if c.AssignedAgent != nil {
		if err := o.registry.SetStatus(*c.AssignedAgent, models.AgentStatusBusy); err != nil {
			o.logger.WarnContext(ctx, "Could not mark agent busy",
				"agent_id", *c.AssignedAgent,
				"error", err,
			)
		}
	}

	return o.persist(ctx)
}

// CompleteContract moves an in-progress contract to completed and frees
// its agent.
func (o *Orchestrator) CompleteContract(ctx context.Context, contractID string) error {
	return o.finishContract(ctx, "CompleteContract", contractID, models.ContractStatusCompleted)
}

// FailContract moves an in-progress contract to failed and frees its agent.
func (o *Orchestrator) FailContract(ctx context.Context, contractID string) error {
	return o.finishContract(ctx, "FailContract", contractID, models.ContractStatusFailed)
}

func (o *Orchestrator) finishContract(ctx context.Context, op, contractID string, status models.ContractStatus) error {
	c, err := o.contracts.Get(contractID)
	if err != nil {
		return NewServiceError(op, err)
	}

	if err := o.contracts.TransitionStatus(contractID, status); err != nil {
		return NewServiceError(op, err)
	}

	if c.AssignedAgent != nil {
		if err := o.registry.SetStatus(*c.AssignedAgent, models.AgentStatusAvailable); err != nil {
			o.logger.WarnContext(ctx, "Could not free agent",
				"agent_id", *c.AssignedAgent,
				"error", err,
			)
		}
	}

	if status == models.ContractStatusCompleted {
		agentID := ""
		if c.AssignedAgent != nil {
			agentID = *c.AssignedAgent
		}

		o.publish(ctx, contractID, events.ContractCompleted{
			BaseEvent:  o.baseEvent(events.ContractCompletedEvent),
			ContractID: contractID,
			AgentID:    agentID,
		})
	}

	return o.persist(ctx)
}

// CancelContract cancels a contract that has not started yet.
func (o *Orchestrator) CancelContract(ctx context.Context, contractID, reason string) error {
	if err := o.contracts.Cancel(contractID); err != nil {
		return NewServiceError("CancelContract", err)
	}

	o.publish(ctx, contractID, events.ContractCancelled{
		BaseEvent:  o.baseEvent(events.ContractCancelledEvent),
		ContractID: contractID,
		Reason:     reason,
	})

	return o.persist(ctx)
}

// GetContract returns a contract by ID.
func (o *Orchestrator) GetContract(contractID string) (*models.Contract, error) {
	c, err := o.contracts.Get(contractID)
	if err != nil {
		return nil, NewServiceError("GetContract", err)
	}

	return c, nil
}

// GetAgentContracts returns all contracts ever assigned to an agent.
func (o *Orchestrator) GetAgentContracts(agentID string) ([]*models.Contract, error) {
	if _, err := o.registry.Get(agentID); err != nil {
		return nil, NewServiceError("GetAgentContracts", err)
	}

	return o.contracts.ListByAgent(agentID), nil
}

// GetContractSummary returns contract counts grouped by status.
func (o *Orchestrator) GetContractSummary() models.ContractSummary {
	return o.contracts.Summary()
}

// ListContracts returns all contracts in creation order.
func (o *Orchestrator) ListContracts() []*models.Contract {
	return o.contracts.List()
}

// ListContractsByStatus returns contracts with the given status.
func (o *Orchestrator) ListContractsByStatus(status models.ContractStatus) []*models.Contract {
	return o.contracts.ListByStatus(status)
}

// ShouldAutoAssign reports whether the contract qualifies for automatic
// assignment under the current configuration.
func (o *Orchestrator) ShouldAutoAssign(c *models.Contract) bool {
	return o.assignments.ShouldAutoAssign(c)
}

// ListAgents returns all registered agents.
func (o *Orchestrator) ListAgents() []*models.Agent {
	return o.registry.List()
}

// GetAgent returns an agent by ID.
func (o *Orchestrator) GetAgent(agentID string) (*models.Agent, error) {
	a, err := o.registry.Get(agentID)
	if err != nil {
		return nil, NewServiceError("GetAgent", err)
	}

	return a, nil
}

// ListAssignments returns the full assignment history.
func (o *Orchestrator) ListAssignments() []*models.Assignment {
	return o.assignments.Assignments()
}

// CreateWorkflow validates and stores a workflow definition.
func (o *Orchestrator) CreateWorkflow(ctx context.Context, wf *models.Workflow) error {
	if wf == nil {
		return NewServiceError("CreateWorkflow", ErrWorkflowNil)
	}

	if err := workflow.ValidateSteps(wf.Steps); err != nil {
		return NewServiceError("CreateWorkflow", err)
	}

	if err := o.persistence.SaveWorkflow(ctx, wf); err != nil {
		return NewServiceError("CreateWorkflow", err)
	}

	return nil
}

// GetWorkflow returns a stored workflow definition.
func (o *Orchestrator) GetWorkflow(ctx context.Context, workflowID string) (*models.Workflow, error) {
	wf, err := o.persistence.WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, NewServiceError("GetWorkflow", err)
	}

	return wf, nil
}

// ListWorkflows returns all stored workflow definitions.
func (o *Orchestrator) ListWorkflows(ctx context.Context) ([]*models.Workflow, error) {
	workflows, err := o.persistence.Workflows(ctx)
	if err != nil {
		return nil, NewServiceError("ListWorkflows", err)
	}

	return workflows, nil
}

// DeleteWorkflow removes a stored workflow definition.
func (o *Orchestrator) DeleteWorkflow(ctx context.Context, workflowID string) error {
	if err := o.persistence.DeleteWorkflow(ctx, workflowID); err != nil {
		return NewServiceError("DeleteWorkflow", err)
	}

	return nil
}

// StartWorkflow creates an execution for a stored workflow. The execution
// is admitted immediately when a slot is free, otherwise queued.
func (o *Orchestrator) StartWorkflow(ctx context.Context, workflowID string) (*models.WorkflowExecution, error) {
	wf, err := o.persistence.WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, NewServiceError("StartWorkflow", err)
	}

	executionID, err := o.workflows.Start(wf.ID, wf.Steps)
	if err != nil {
		return nil, NewServiceError("StartWorkflow", err)
	}

	execution, err := o.workflows.Status(executionID)
	if err != nil {
		return nil, NewServiceError("StartWorkflow", err)
	}

	o.publish(ctx, executionID, events.ExecutionStarted{
		BaseEvent:    o.baseEvent(events.ExecutionStartedEvent),
		ExecutionID:  executionID,
		WorkflowID:   wf.ID,
		WorkflowName: wf.Name,
		Queued:       execution.Status == models.ExecutionStatusPending,
	})

	return execution, nil
}

// ExecuteWorkflow runs an admitted execution to completion and publishes
// its outcome.
func (o *Orchestrator) ExecuteWorkflow(ctx context.Context, executionID string) error {
	start := time.Now()

	runErr := o.workflows.Execute(ctx, executionID)

	execution, err := o.workflows.Status(executionID)
	if err != nil {
		return NewServiceError("ExecuteWorkflow", err)
	}

	duration := time.Since(start)

	for i := range execution.Steps {
		result, ran := execution.StepResults[execution.Steps[i].ID]
		if !ran {
			continue
		}

		if result.Status == "failed" {
			o.publish(ctx, executionID, events.ExecutionStepFailed{
				BaseEvent:   o.baseEvent(events.ExecutionStepFailedEvent),
				ExecutionID: executionID,
				WorkflowID:  execution.WorkflowID,
				StepID:      result.StepID,
				Error:       result.Error,
				Duration:    result.Duration,
			})

			continue
		}

		o.publish(ctx, executionID, events.ExecutionStepCompleted{
			BaseEvent:   o.baseEvent(events.ExecutionStepCompletedEvent),
			ExecutionID: executionID,
			WorkflowID:  execution.WorkflowID,
			StepID:      result.StepID,
			Duration:    result.Duration,
		})
	}

	switch execution.Status {
	case models.ExecutionStatusCompleted:
		o.publish(ctx, executionID, events.ExecutionCompleted{
			BaseEvent:      o.baseEvent(events.ExecutionCompletedEvent),
			ExecutionID:    executionID,
			WorkflowID:     execution.WorkflowID,
			StepsCompleted: len(execution.CompletedSteps),
			Duration:       duration,
		})
	case models.ExecutionStatusFailed:
		stepID := ""
		if len(execution.FailedSteps) > 0 {
			stepID = execution.FailedSteps[len(execution.FailedSteps)-1]
		}

		errMsg := ""
		if runErr != nil {
			errMsg = runErr.Error()
		}

		o.publish(ctx, executionID, events.ExecutionFailed{
			BaseEvent:   o.baseEvent(events.ExecutionFailedEvent),
			ExecutionID: executionID,
			WorkflowID:  execution.WorkflowID,
			StepID:      stepID,
			Error:       errMsg,
			Duration:    duration,
		})
	}

	if runErr != nil {
		return NewServiceError("ExecuteWorkflow", runErr)
	}

	return nil
}

// CancelExecution cancels a queued or running execution.
func (o *Orchestrator) CancelExecution(ctx context.Context, executionID, reason string) error {
	if err := o.workflows.Cancel(executionID); err != nil {
		return NewServiceError("CancelExecution", err)
	}

	execution, err := o.workflows.Status(executionID)
	if err != nil {
		return NewServiceError("CancelExecution", err)
	}

	o.publish(ctx, executionID, events.ExecutionCancelled{
		BaseEvent:   o.baseEvent(events.ExecutionCancelledEvent),
		ExecutionID: executionID,
		WorkflowID:  execution.WorkflowID,
		Reason:      reason,
	})

	return nil
}

// GetWorkflowStatus returns the current state of an execution.
func (o *Orchestrator) GetWorkflowStatus(executionID string) (*models.WorkflowExecution, error) {
	execution, err := o.workflows.Status(executionID)
	if err != nil {
		return nil, NewServiceError("GetWorkflowStatus", err)
	}

	return execution, nil
}

// ListExecutions returns all known executions in creation order.
func (o *Orchestrator) ListExecutions() []*models.WorkflowExecution {
	return o.workflows.ListExecutions()
}

func (o *Orchestrator) baseEvent(eventType events.EventType) events.BaseEvent {
	return events.BaseEvent{
		ID:        o.eventBus.GenerateID(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}

// publish emits an event; a bus failure is logged and swallowed because
// the state change it describes has already happened.
func (o *Orchestrator) publish(ctx context.Context, key string, event eventbus.Event) {
	if err := o.eventBus.Publish(ctx, key, event); err != nil {
		o.logger.WarnContext(ctx, "Failed to publish event",
			"event_type", event.GetType(),
			"key", key,
			"error", err,
		)
	}
}

// persist rewrites the full orchestrator snapshot.
func (o *Orchestrator) persist(ctx context.Context) error {
	o.persistMu.Lock()
	defer o.persistMu.Unlock()

	snapshot := &models.OrchestratorSnapshot{
		Agents:      o.registry.List(),
		AgentStates: o.registry.StateRecords(),
		Contracts:   o.contracts.List(),
		Assignments: o.assignments.Assignments(),
	}

	if err := o.persistence.SaveSnapshot(ctx, snapshot); err != nil {
		return NewServiceError("persist", err)
	}

	return nil
}
