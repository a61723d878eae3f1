package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hiveplane/hiveplane/pkg/cmd"
	"github.com/hiveplane/hiveplane/pkg/events"
	"github.com/hiveplane/hiveplane/pkg/models"
	"github.com/hiveplane/hiveplane/pkg/otelhelper"
	"github.com/hiveplane/hiveplane/pkg/services"
	"github.com/hiveplane/hiveplane/pkg/sweeper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type OrchestratorManager struct {
	id      string
	logger  *slog.Logger
	runtime *cmd.Runtime
	sweeper *sweeper.Sweeper
	tracer  trace.Tracer
}

func NewOrchestratorManager(
	id string,
	runtime *cmd.Runtime,
	logger *slog.Logger,
) *OrchestratorManager {
	return &OrchestratorManager{
		id:      id,
		logger:  logger.With("module", "hiveplane-orchestrator", "orchestrator_id", id),
		runtime: runtime,
	}
}

func (m *OrchestratorManager) Start(ctx context.Context, sweepSchedule string) error {
	m.logger.InfoContext(ctx, "Starting orchestrator manager", "orchestrator_id", m.id)

	tracer, err := otelhelper.NewTracer(ctx, "hiveplane-orchestrator")
	if err != nil {
		return err
	}

	m.tracer = tracer

	err = m.runtime.EventBus.Handle(events.ExecutionStartedEvent, m.handleExecutionStarted)
	if err != nil {
		return err
	}

	err = m.runtime.EventBus.Handle(events.ContractAssignedEvent, m.handleContractAssigned)
	if err != nil {
		return err
	}

	err = m.runtime.EventBus.Subscribe(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	if sweepSchedule != "" {
		m.sweeper, err = sweeper.NewSweeper(sweepSchedule, m.runtime.Orchestrator, m.logger)
		if err != nil {
			return err
		}

		if err := m.sweeper.Start(ctx); err != nil {
			return err
		}
	}

	m.logger.InfoContext(ctx, "Orchestrator started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	m.logger.InfoContext(ctx, "Shutting down orchestrator...")

	if m.sweeper != nil {
		if err := m.sweeper.Stop(ctx); err != nil {
			m.logger.ErrorContext(ctx, "Failed to stop sweeper", "error", err)
		}
	}

	return nil
}

func (m *OrchestratorManager) handleExecutionStarted(ctx context.Context, event any) error {
	startedEvent, ok := event.(*events.ExecutionStarted)
	if !ok {
		m.logger.ErrorContext(ctx, "Invalid event type for ExecutionStarted")

		return nil
	}

	logger := m.logger.With(
		"execution_id", startedEvent.ExecutionID,
		"workflow_id", startedEvent.WorkflowID,
		"event_id", startedEvent.ID,
	)

	execution, err := m.runtime.Orchestrator.GetWorkflowStatus(startedEvent.ExecutionID)
	if err != nil {
		if !services.IsNotFoundError(err) {
			logger.ErrorContext(ctx, "Failed to resolve execution", "error", err)

			return nil
		}

		// The execution was started in another process (the API over
		// Kafka). Executions are engine-local, so adopt the workflow from
		// shared persistence and run it here under a fresh execution.
		execution, err = m.runtime.Orchestrator.StartWorkflow(ctx, startedEvent.WorkflowID)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to adopt workflow", "error", err)

			return nil
		}

		logger = logger.With("adopted_execution_id", execution.ID)
		logger.InfoContext(ctx, "Adopted workflow from another process")
	}

	// Already run by the queue drain of an earlier event.
	if execution.Status.Terminal() {
		return nil
	}

	if execution.Status == models.ExecutionStatusPending {
		logger.InfoContext(ctx, "Execution queued, awaiting capacity")

		return nil
	}

	logger.InfoContext(ctx, "Processing execution started event")

	spanCtx, span := otelhelper.StartSpan(ctx, m.tracer, "execution.run",
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
		attribute.String(otelhelper.WorkflowIDKey, execution.WorkflowID),
		attribute.String(otelhelper.ServiceIDKey, m.id),
	)

	err = m.runtime.Orchestrator.ExecuteWorkflow(spanCtx, execution.ID)
	if err != nil {
		otelhelper.SetError(span, err)
		logger.ErrorContext(ctx, "Execution finished with error", "error", err)
	}

	span.End()

	m.drainAdmitted(ctx)

	return nil
}

// drainAdmitted runs executions promoted out of the queue when a slot
// freed up. Handlers run serially, so any in-progress execution seen here
// is admitted but not yet running.
func (m *OrchestratorManager) drainAdmitted(ctx context.Context) {
	for {
		next := ""

		for _, execution := range m.runtime.Orchestrator.ListExecutions() {
			if execution.Status == models.ExecutionStatusInProgress {
				next = execution.ID

				break
			}
		}

		if next == "" {
			return
		}

		m.logger.InfoContext(ctx, "Running queued execution", "execution_id", next)

		err := m.runtime.Orchestrator.ExecuteWorkflow(ctx, next)
		if err != nil {
			m.logger.ErrorContext(ctx, "Queued execution finished with error", "execution_id", next, "error", err)
		}
	}
}

func (m *OrchestratorManager) handleContractAssigned(ctx context.Context, event any) error {
	assignedEvent, ok := event.(*events.ContractAssigned)
	if !ok {
		m.logger.ErrorContext(ctx, "Invalid event type for ContractAssigned")

		return nil
	}

	m.logger.InfoContext(ctx, "Contract assigned",
		"contract_id", assignedEvent.ContractID,
		"assignment_id", assignedEvent.AssignmentID,
		"agent_id", assignedEvent.AgentID,
		"strategy", assignedEvent.Strategy,
	)

	return nil
}
