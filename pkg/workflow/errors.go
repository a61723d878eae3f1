package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrExecutionNotFound indicates an execution was not found by the given identifier.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrInvalidState indicates an operation attempted from a disallowed execution status.
	ErrInvalidState = errors.New("invalid execution state")

	// ErrCapacityExceeded indicates the execution is still queued behind the
	// concurrency bound. Queued executions are admitted FIFO as slots free up.
	ErrCapacityExceeded = errors.New("execution queued: concurrency bound reached")

	// ErrStepTimeout indicates a step exceeded its declared timeout.
	ErrStepTimeout = errors.New("step timed out")

	// ErrNoSteps indicates an execution was started with an empty step list.
	ErrNoSteps = errors.New("workflow has no steps")

	// ErrUnknownDependency indicates a step depends on a step ID that does
	// not exist in the workflow.
	ErrUnknownDependency = errors.New("step depends on unknown step")

	// ErrDependencyCycle indicates the step graph contains a cycle.
	ErrDependencyCycle = errors.New("step dependency cycle")
)

// HandlerError wraps the failure of a step handler with the step that failed.
type HandlerError struct {
	ExecutionID string
	StepID      string
	StepType    string
	Err         error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("step %s (%s) failed in execution %s: %v", e.StepID, e.StepType, e.ExecutionID, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// IsHandlerError checks if an error is a step handler failure.
func IsHandlerError(err error) bool {
	var target *HandlerError

	return errors.As(err, &target)
}
