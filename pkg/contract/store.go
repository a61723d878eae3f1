// Package contract provides creation, validation, and lifecycle tracking
// for contracts, the orchestration core's unit of work.
package contract

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hiveplane/hiveplane/pkg/models"
)

var (
	// ErrContractNotFound indicates a contract was not found by the given identifier.
	ErrContractNotFound = errors.New("contract not found")

	// ErrInvalidTransition indicates a status change that is not allowed by
	// the contract lifecycle graph.
	ErrInvalidTransition = errors.New("invalid contract status transition")

	// ErrNotCancellable indicates a cancel attempt on a contract that is
	// in progress or already terminal.
	ErrNotCancellable = errors.New("contract cannot be cancelled in its current status")
)

// statusGraph is the allowed contract lifecycle, kept as data so the
// transition check stays a lookup. Cancellation is handled separately:
// it is allowed from pending, approved, and assigned, but not from
// in_progress.
var statusGraph = map[models.ContractStatus][]models.ContractStatus{
	models.ContractStatusPending:    {models.ContractStatusApproved, models.ContractStatusAssigned, models.ContractStatusCancelled},
	models.ContractStatusApproved:   {models.ContractStatusAssigned, models.ContractStatusCancelled},
	models.ContractStatusAssigned:   {models.ContractStatusInProgress, models.ContractStatusCancelled},
	models.ContractStatusInProgress: {models.ContractStatusCompleted, models.ContractStatusFailed},
}

// CreateRequest carries the caller-supplied fields for a new contract.
type CreateRequest struct {
	Title                string
	Description          string
	Priority             models.ContractPriority
	RequiredCapabilities []string
	EstimatedDuration    time.Duration
	AutoValidate         bool
}

// Store holds all contracts. Mutations go through a single RWMutex so the
// store is safe under parallel access.
type Store struct {
	mu        sync.RWMutex
	contracts map[string]*models.Contract
	order     []string
	logger    *slog.Logger
}

// NewStore creates an empty contract store.
func NewStore(logger *slog.Logger) *Store {
	return &Store{
		contracts: make(map[string]*models.Contract),
		logger:    logger.With("module", "contract_store"),
	}
}

// Create validates the request against the contract rule set and stores a
// new contract. Rule failures do not reject the contract: they are
// recorded in ValidationResults and the contract stays pending. When
// AutoValidate is set and every rule passes, the contract is promoted
// straight to approved.
func (s *Store) Create(req CreateRequest) (*models.Contract, error) {
	results := runValidationRules(req)

	c := &models.Contract{
		ID:                   "contract-" + uuid.New().String()[:8],
		Title:                req.Title,
		Description:          req.Description,
		Priority:             req.Priority,
		Status:               models.ContractStatusPending,
		RequiredCapabilities: req.RequiredCapabilities,
		EstimatedDuration:    req.EstimatedDuration,
		ValidationResults:    results,
		CreatedAt:            time.Now().UTC(),
	}

	if req.AutoValidate && allPassed(results) {
		c.Status = models.ContractStatusApproved
	}

	s.mu.Lock()
	s.contracts[c.ID] = c
	s.order = append(s.order, c.ID)
	s.mu.Unlock()

	s.logger.Info("Created contract",
		"contract_id", c.ID, "priority", c.Priority, "status", c.Status)

	return c, nil
}

// Get returns the contract with the given ID.
func (s *Store) Get(id string) (*models.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contracts[id]
	if !ok {
		return nil, fmt.Errorf("get contract %s: %w", id, ErrContractNotFound)
	}

	return c, nil
}

// TransitionStatus moves a contract along the lifecycle graph, stamping
// AssignedAt and CompletedAt as appropriate.
func (s *Store) TransitionStatus(id string, status models.ContractStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contracts[id]
	if !ok {
		return fmt.Errorf("transition contract %s: %w", id, ErrContractNotFound)
	}

	if !transitionAllowed(c.Status, status) {
		return fmt.Errorf("contract %s: %s -> %s: %w", id, c.Status, status, ErrInvalidTransition)
	}

	now := time.Now().UTC()

	switch status {
	case models.ContractStatusAssigned:
		c.AssignedAt = &now
	case models.ContractStatusCompleted, models.ContractStatusFailed, models.ContractStatusCancelled:
		c.CompletedAt = &now
	}

	c.Status = status

	return nil
}

// Cancel cancels a contract. Allowed only while pending, approved, or
// assigned; a contract that has entered execution must run to completion
// or failure.
func (s *Store) Cancel(id string) error {
	s.mu.RLock()
	c, ok := s.contracts[id]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("cancel contract %s: %w", id, ErrContractNotFound)
	}

	switch c.Status {
	case models.ContractStatusPending, models.ContractStatusApproved, models.ContractStatusAssigned:
		return s.TransitionStatus(id, models.ContractStatusCancelled)
	default:
		return fmt.Errorf("cancel contract %s in status %s: %w", id, c.Status, ErrNotCancellable)
	}
}

// List returns all contracts in creation order.
func (s *Store) List() []*models.Contract {
	s.mu.RLock()
	defer s.mu.RUnlock()

	contracts := make([]*models.Contract, 0, len(s.order))
	for _, id := range s.order {
		contracts = append(contracts, s.contracts[id])
	}

	return contracts
}

// ListByStatus returns contracts with the given status, in creation order.
func (s *Store) ListByStatus(status models.ContractStatus) []*models.Contract {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*models.Contract, 0)

	for _, id := range s.order {
		if c := s.contracts[id]; c.Status == status {
			matched = append(matched, c)
		}
	}

	return matched
}

// ListByAgent returns contracts assigned to the given agent, in creation order.
func (s *Store) ListByAgent(agentID string) []*models.Contract {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*models.Contract, 0)

	for _, id := range s.order {
		c := s.contracts[id]
		if c.AssignedAgent != nil && *c.AssignedAgent == agentID {
			matched = append(matched, c)
		}
	}

	return matched
}

// ActiveByAgent counts contracts currently assigned or in progress for an
// agent. Used by the assignment engine's load-balance term.
func (s *Store) ActiveByAgent(agentID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := 0

	for _, c := range s.contracts {
		if c.AssignedAgent == nil || *c.AssignedAgent != agentID {
			continue
		}

		if c.Status == models.ContractStatusAssigned || c.Status == models.ContractStatusInProgress {
			active++
		}
	}

	return active
}

// SetAssignedAgent records the agent bound to a contract without touching
// its status. Assignment itself goes through Assign; this covers restores
// and load setup.
func (s *Store) SetAssignedAgent(id, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contracts[id]
	if !ok {
		return fmt.Errorf("set assigned agent for contract %s: %w", id, ErrContractNotFound)
	}

	c.AssignedAgent = &agentID

	return nil
}

// Assign binds an agent to an assignable contract. The status check, the
// agent binding, and the transition to assigned happen under one lock so
// concurrent assignment attempts cannot interleave: exactly one caller
// wins, the rest get ErrInvalidTransition with the contract untouched.
func (s *Store) Assign(id, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contracts[id]
	if !ok {
		return fmt.Errorf("assign contract %s: %w", id, ErrContractNotFound)
	}

	if c.Status != models.ContractStatusPending && c.Status != models.ContractStatusApproved {
		return fmt.Errorf("contract %s: %s -> %s: %w", id, c.Status, models.ContractStatusAssigned, ErrInvalidTransition)
	}

	now := time.Now().UTC()
	c.AssignedAgent = &agentID
	c.AssignedAt = &now
	c.Status = models.ContractStatusAssigned

	return nil
}

// Summary aggregates contract counts by status.
func (s *Store) Summary() models.ContractSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := models.ContractSummary{
		Total:    len(s.contracts),
		ByStatus: make(map[models.ContractStatus]int),
	}

	for _, c := range s.contracts {
		summary.ByStatus[c.Status]++
	}

	return summary
}

// Restore reloads contracts from a snapshot, replacing current contents.
func (s *Store) Restore(contracts []*models.Contract) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.contracts = make(map[string]*models.Contract, len(contracts))
	s.order = s.order[:0]

	for _, c := range contracts {
		s.contracts[c.ID] = c
		s.order = append(s.order, c.ID)
	}
}

func transitionAllowed(from, to models.ContractStatus) bool {
	for _, next := range statusGraph[from] {
		if next == to {
			return true
		}
	}

	return false
}

func allPassed(results []models.ValidationResult) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}

	return true
}
