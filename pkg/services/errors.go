// Package services provides the orchestrator facade tying the registry,
// contract store, assignment engine, and workflow engine together.
package services

import (
	"errors"
	"fmt"

	"github.com/hiveplane/hiveplane/pkg/agent"
	"github.com/hiveplane/hiveplane/pkg/assignment"
	"github.com/hiveplane/hiveplane/pkg/contract"
	"github.com/hiveplane/hiveplane/pkg/persistence"
	"github.com/hiveplane/hiveplane/pkg/workflow"
)

// Validation errors raised by the facade itself (400 Bad Request).
var (
	ErrInvalidRequest  = errors.New("invalid request")
	ErrWorkflowNil     = errors.New("workflow cannot be nil")
	ErrEmptyAgentID    = errors.New("agent ID cannot be empty")
	ErrEmptyContractID = errors.New("contract ID cannot be empty")
)

// ServiceError wraps an operation failure with the operation name.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewServiceError wraps err with its originating operation.
func NewServiceError(op string, err error) *ServiceError {
	return &ServiceError{Op: op, Err: err}
}

// IsNotFoundError reports whether an error should map to HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, contract.ErrContractNotFound) ||
		errors.Is(err, agent.ErrAgentNotFound) ||
		errors.Is(err, workflow.ErrExecutionNotFound) ||
		persistence.IsWorkflowNotFound(err)
}

// IsConflictError reports whether an error is a lifecycle conflict that
// should map to HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, contract.ErrInvalidTransition) ||
		errors.Is(err, contract.ErrNotCancellable) ||
		errors.Is(err, agent.ErrInvalidTransition) ||
		errors.Is(err, agent.ErrAgentExists) ||
		errors.Is(err, assignment.ErrInvalidState) ||
		errors.Is(err, assignment.ErrAgentUnavailable) ||
		errors.Is(err, workflow.ErrInvalidState) ||
		errors.Is(err, workflow.ErrCapacityExceeded)
}

// IsValidationError reports whether an error should map to HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, ErrEmptyAgentID) ||
		errors.Is(err, ErrEmptyContractID) ||
		errors.Is(err, workflow.ErrNoSteps) ||
		errors.Is(err, workflow.ErrUnknownDependency) ||
		errors.Is(err, workflow.ErrDependencyCycle)
}

// IsUnprocessableError reports whether an error should map to HTTP 422:
// the request is well formed but no agent can take the work.
func IsUnprocessableError(err error) bool {
	return errors.Is(err, assignment.ErrNoEligibleAgent)
}
