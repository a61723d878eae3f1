// Package workflow executes dependency-ordered step graphs under a global
// concurrency bound, with a FIFO overflow queue for executions beyond it.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hiveplane/hiveplane/pkg/models"
)

// Handler executes one step of a workflow. Handlers are opaque,
// caller-supplied logic; the engine's contract is purely "invoke handler,
// aggregate error". A handler must honor context cancellation to stop
// early on timeout or execution cancel.
type Handler func(ctx context.Context, step *models.WorkflowStep, execution *models.WorkflowExecution) error

// DefaultMaxConcurrent bounds simultaneously in-progress executions when
// the configuration does not say otherwise.
const DefaultMaxConcurrent = 3

// Engine runs workflow executions. Shared state is guarded by a single
// mutex; handler invocation happens outside the lock.
type Engine struct {
	mu            sync.Mutex
	executions    map[string]*models.WorkflowExecution
	order         []string
	queue         []string
	cancels       map[string]context.CancelFunc
	active        int
	maxConcurrent int
	handlers      map[string][]Handler
	logger        *slog.Logger
}

// NewEngine creates a workflow engine with the given concurrency bound.
func NewEngine(maxConcurrent int, logger *slog.Logger) *Engine {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}

	return &Engine{
		executions:    make(map[string]*models.WorkflowExecution),
		cancels:       make(map[string]context.CancelFunc),
		maxConcurrent: maxConcurrent,
		handlers:      make(map[string][]Handler),
		logger:        logger.With("module", "workflow_engine"),
	}
}

// RegisterHandler appends a handler for the given step type. Handlers run
// in registration order and short-circuit at the first failure. Step
// types with no registered handler succeed as no-ops.
func (e *Engine) RegisterHandler(stepType string, handler Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.handlers[stepType] = append(e.handlers[stepType], handler)
}

// Start creates an execution for the given steps. If the concurrency
// bound has room the execution moves straight to in_progress; otherwise
// it stays pending in the FIFO overflow queue and is admitted when a slot
// frees up.
func (e *Engine) Start(workflowID string, steps []models.WorkflowStep) (string, error) {
	if len(steps) == 0 {
		return "", fmt.Errorf("start workflow %s: %w", workflowID, ErrNoSteps)
	}

	if err := ValidateSteps(steps); err != nil {
		return "", fmt.Errorf("start workflow %s: %w", workflowID, err)
	}

	execution := &models.WorkflowExecution{
		ID:             "exec-" + uuid.New().String()[:8],
		WorkflowID:     workflowID,
		Status:         models.ExecutionStatusPending,
		Steps:          steps,
		CompletedSteps: make([]string, 0, len(steps)),
		FailedSteps:    make([]string, 0),
		StepResults:    make(map[string]models.StepResult, len(steps)),
		CreatedAt:      time.Now().UTC(),
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.executions[execution.ID] = execution
	e.order = append(e.order, execution.ID)

	if e.active < e.maxConcurrent {
		e.admitLocked(execution)
	} else {
		e.queue = append(e.queue, execution.ID)
		e.logger.Info("Queued execution, concurrency bound reached",
			"execution_id", execution.ID, "workflow_id", workflowID,
			"queue_length", len(e.queue))
	}

	return execution.ID, nil
}

// Execute runs an in-progress execution to a terminal status: repeatedly
// selects the next ready step (declaration order among steps whose
// dependencies are all completed), invokes its handlers, and aggregates
// results. The first handler failure marks the step failed and the whole
// execution failed. Declared step timeouts are enforced.
func (e *Engine) Execute(ctx context.Context, executionID string) error {
	e.mu.Lock()

	execution, ok := e.executions[executionID]
	if !ok {
		e.mu.Unlock()

		return fmt.Errorf("execute %s: %w", executionID, ErrExecutionNotFound)
	}

	switch execution.Status {
	case models.ExecutionStatusInProgress:
	case models.ExecutionStatusPending:
		e.mu.Unlock()

		return fmt.Errorf("execute %s: %w", executionID, ErrCapacityExceeded)
	default:
		e.mu.Unlock()

		return fmt.Errorf("execute %s in status %s: %w", executionID, execution.Status, ErrInvalidState)
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancels[executionID] = cancel
	e.mu.Unlock()

	defer func() {
		cancel()
		e.mu.Lock()
		delete(e.cancels, executionID)
		e.mu.Unlock()
	}()

	for {
		if e.markCancelled(execution) {
			return nil
		}

		step := e.nextReadyStep(execution)
		if step == nil {
			break
		}

		if err := e.runStep(runCtx, step, execution); err != nil {
			if e.markCancelled(execution) {
				return nil
			}

			e.finish(execution, models.ExecutionStatusFailed)

			return err
		}
	}

	if e.markCancelled(execution) {
		return nil
	}

	e.finish(execution, models.ExecutionStatusCompleted)

	return nil
}

// Cancel moves a pending or in-progress execution to the terminal
// cancelled status. A queued execution is removed from the queue; a
// running one has its context cancelled and releases its slot.
func (e *Engine) Cancel(executionID string) error {
	e.mu.Lock()

	execution, ok := e.executions[executionID]
	if !ok {
		e.mu.Unlock()

		return fmt.Errorf("cancel %s: %w", executionID, ErrExecutionNotFound)
	}

	switch execution.Status {
	case models.ExecutionStatusPending:
		e.removeFromQueueLocked(executionID)
		execution.Status = models.ExecutionStatusCancelled
		now := time.Now().UTC()
		execution.FinishedAt = &now
		e.mu.Unlock()

	case models.ExecutionStatusInProgress:
		execution.Status = models.ExecutionStatusCancelled

		if cancel, running := e.cancels[executionID]; running {
			cancel()
		}

		now := time.Now().UTC()
		execution.FinishedAt = &now
		e.active--
		e.dequeueNextLocked()
		e.mu.Unlock()

	default:
		status := execution.Status
		e.mu.Unlock()

		return fmt.Errorf("cancel %s in status %s: %w", executionID, status, ErrInvalidState)
	}

	e.logger.Info("Cancelled execution", "execution_id", executionID)

	return nil
}

// Status returns the execution with the given ID.
func (e *Engine) Status(executionID string) (*models.WorkflowExecution, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	execution, ok := e.executions[executionID]
	if !ok {
		return nil, fmt.Errorf("status %s: %w", executionID, ErrExecutionNotFound)
	}

	return execution, nil
}

// ListExecutions returns all executions in creation order, including
// terminal ones, which are retained for audit.
func (e *Engine) ListExecutions() []*models.WorkflowExecution {
	e.mu.Lock()
	defer e.mu.Unlock()

	executions := make([]*models.WorkflowExecution, 0, len(e.order))
	for _, id := range e.order {
		executions = append(executions, e.executions[id])
	}

	return executions
}

// QueueLength returns the number of executions waiting for a slot.
func (e *Engine) QueueLength() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.queue)
}

// nextReadyStep returns the first not-yet-run step whose dependencies are
// all completed, in declaration order. Nil when nothing is ready.
func (e *Engine) nextReadyStep(execution *models.WorkflowExecution) *models.WorkflowStep {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range execution.Steps {
		step := &execution.Steps[i]
		if _, ran := execution.StepResults[step.ID]; ran {
			continue
		}

		if execution.StepReady(step) {
			return step
		}
	}

	return nil
}

// runStep invokes every handler registered for the step's type, in
// registration order, short-circuiting on the first failure. The step's
// declared timeout, when positive, bounds the whole invocation.
func (e *Engine) runStep(ctx context.Context, step *models.WorkflowStep, execution *models.WorkflowExecution) error {
	e.mu.Lock()
	handlers := e.handlers[step.Type]
	e.mu.Unlock()

	stepCtx := ctx

	var cancel context.CancelFunc

	if step.Timeout > 0 {
		stepCtx, cancel = context.WithTimeout(ctx, step.Timeout)
		defer cancel()
	}

	started := time.Now().UTC()
	err := e.invokeHandlers(stepCtx, handlers, step, execution)
	finished := time.Now().UTC()

	result := models.StepResult{
		StepID:     step.ID,
		Status:     "completed",
		Duration:   finished.Sub(started),
		FinishedAt: finished,
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		result.Status = "failed"
		result.Error = err.Error()
		execution.FailedSteps = append(execution.FailedSteps, step.ID)
		execution.StepResults[step.ID] = result

		return &HandlerError{
			ExecutionID: execution.ID,
			StepID:      step.ID,
			StepType:    step.Type,
			Err:         err,
		}
	}

	execution.CompletedSteps = append(execution.CompletedSteps, step.ID)
	execution.StepResults[step.ID] = result

	return nil
}

// invokeHandlers runs the handler chain in a goroutine so a declared
// timeout fails the step even when a handler ignores its context.
func (e *Engine) invokeHandlers(ctx context.Context, handlers []Handler, step *models.WorkflowStep, execution *models.WorkflowExecution) error {
	if len(handlers) == 0 {
		// Unregistered step types use the no-op default handler.
		return nil
	}

	done := make(chan error, 1)

	go func() {
		for _, handler := range handlers {
			if err := handler(ctx, step, execution); err != nil {
				done <- err

				return
			}
		}

		done <- nil
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("step %s after %s: %w", step.ID, step.Timeout, ErrStepTimeout)
		}

		return ctx.Err()
	}
}

// finish moves an execution to a terminal status, releases its slot, and
// admits the next queued execution FIFO.
func (e *Engine) finish(execution *models.WorkflowExecution, status models.ExecutionStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if execution.Status != models.ExecutionStatusInProgress {
		return
	}

	execution.Status = status
	now := time.Now().UTC()
	execution.FinishedAt = &now
	e.active--

	e.logger.Info("Execution finished",
		"execution_id", execution.ID, "workflow_id", execution.WorkflowID,
		"status", status,
		"completed_steps", len(execution.CompletedSteps),
		"failed_steps", len(execution.FailedSteps))

	e.dequeueNextLocked()
}

// markCancelled reports whether the execution was cancelled out from
// under the running loop; Cancel already released the slot.
func (e *Engine) markCancelled(execution *models.WorkflowExecution) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return execution.Status == models.ExecutionStatusCancelled
}

func (e *Engine) admitLocked(execution *models.WorkflowExecution) {
	execution.Status = models.ExecutionStatusInProgress
	now := time.Now().UTC()
	execution.StartedAt = &now
	e.active++

	e.logger.Info("Admitted execution",
		"execution_id", execution.ID, "workflow_id", execution.WorkflowID,
		"active", e.active, "max_concurrent", e.maxConcurrent)
}

// dequeueNextLocked admits the oldest queued execution if capacity allows.
func (e *Engine) dequeueNextLocked() {
	for e.active < e.maxConcurrent && len(e.queue) > 0 {
		id := e.queue[0]
		e.queue = e.queue[1:]

		execution, ok := e.executions[id]
		if !ok || execution.Status != models.ExecutionStatusPending {
			continue
		}

		e.admitLocked(execution)
	}
}

func (e *Engine) removeFromQueueLocked(executionID string) {
	for i, id := range e.queue {
		if id == executionID {
			e.queue = append(e.queue[:i], e.queue[i+1:]...)

			return
		}
	}
}
