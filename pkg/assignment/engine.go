// Package assignment matches contracts to the best-fit available agent
// using a weighted scoring function.
package assignment

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hiveplane/hiveplane/pkg/agent"
	"github.com/hiveplane/hiveplane/pkg/contract"
	"github.com/hiveplane/hiveplane/pkg/models"
)

var (
	// ErrInvalidState indicates an assignment attempt on a contract that is
	// not pending or approved. This also covers the single-active-assignment
	// invariant: an assigned contract cannot be assigned again without an
	// intervening cancel or failure.
	ErrInvalidState = errors.New("contract not assignable in its current status")

	// ErrAgentUnavailable indicates the target agent is not available.
	ErrAgentUnavailable = errors.New("agent not available")

	// ErrNoEligibleAgent indicates no available agent could be matched.
	ErrNoEligibleAgent = errors.New("no eligible agent for contract")
)

// Scoring weights. The four terms always sum to at most 1.
const (
	capabilityWeight   = 0.4
	loadWeight         = 0.3
	performanceWeight  = 0.2
	availabilityWeight = 0.1
)

// Config tunes the engine's auto-assignment policy.
type Config struct {
	// AutoAssign gates ShouldAutoAssign entirely.
	AutoAssign bool
	// MaxActiveLoad is the active-assignment count at which the
	// load-balance term bottoms out at zero.
	MaxActiveLoad int
}

// DefaultConfig returns the standard engine configuration.
func DefaultConfig() Config {
	return Config{AutoAssign: true, MaxActiveLoad: 10}
}

// Engine scores agents against contracts and performs assignments.
type Engine struct {
	registry  *agent.Registry
	contracts *contract.Store
	config    Config
	logger    *slog.Logger

	mu  sync.RWMutex
	log []*models.Assignment
}

// NewEngine creates an assignment engine over the given registry and
// contract store.
func NewEngine(registry *agent.Registry, contracts *contract.Store, config Config, logger *slog.Logger) *Engine {
	if config.MaxActiveLoad <= 0 {
		config.MaxActiveLoad = DefaultConfig().MaxActiveLoad
	}

	return &Engine{
		registry:  registry,
		contracts: contracts,
		config:    config,
		logger:    logger.With("module", "assignment_engine"),
	}
}

// ShouldAutoAssign reports whether the contract qualifies for automatic
// assignment: the engine's auto-assign flag must be on, and the contract
// must either carry an urgent/critical priority or name at least one
// required capability. A contract with an empty required set and a lower
// priority is left for manual assignment.
func (e *Engine) ShouldAutoAssign(c *models.Contract) bool {
	if !e.config.AutoAssign {
		return false
	}

	if c.Priority == models.ContractPriorityUrgent || c.Priority == models.ContractPriorityCritical {
		return true
	}

	return len(c.RequiredCapabilities) > 0
}

// Score computes the weighted match score of an agent for a contract,
// always in [0, 1]:
//
//	0.4 x capability overlap ratio (0 when the contract requires nothing)
//	0.3 x load headroom, 1 - active/MaxActiveLoad floored at 0
//	0.2 x the agent's performance score
//	0.1 x availability (1 if available, else 0)
func (e *Engine) Score(a *models.Agent, c *models.Contract) float64 {
	capability := 0.0

	if len(c.RequiredCapabilities) > 0 {
		matched := 0

		for _, tag := range c.RequiredCapabilities {
			if a.HasCapability(tag) {
				matched++
			}
		}

		capability = float64(matched) / float64(len(c.RequiredCapabilities))
	}

	load := 1.0 - float64(e.contracts.ActiveByAgent(a.ID))/float64(e.config.MaxActiveLoad)
	if load < 0 {
		load = 0
	}

	availability := 0.0
	if a.Status == models.AgentStatusAvailable {
		availability = 1.0
	}

	return capabilityWeight*capability +
		loadWeight*load +
		performanceWeight*a.PerformanceScore +
		availabilityWeight*availability
}

// FindBestMatch returns the available agent with the strictly highest
// score for the contract. Ties are broken deterministically: lower active
// load first, then the smaller agent ID.
func (e *Engine) FindBestMatch(c *models.Contract) (*models.Agent, error) {
	available := e.registry.ListAvailable()
	if len(available) == 0 {
		return nil, fmt.Errorf("match contract %s: %w", c.ID, ErrNoEligibleAgent)
	}

	var (
		best     *models.Agent
		bestScore float64
		bestLoad int
	)

	for _, candidate := range available {
		score := e.Score(candidate, c)
		load := e.contracts.ActiveByAgent(candidate.ID)

		switch {
		case best == nil,
			score > bestScore,
			score == bestScore && load < bestLoad,
			score == bestScore && load == bestLoad && candidate.ID < best.ID:
			best = candidate
			bestScore = score
			bestLoad = load
		}
	}

	return best, nil
}

// Assign binds a contract to an agent. The contract must be pending or
// approved and the agent available. On success an immutable Assignment
// record is created with the computed score as its confidence, the
// contract gains its assigned agent and timestamp, and its status moves
// to assigned.
func (e *Engine) Assign(contractID, agentID, strategy string) (*models.Assignment, error) {
	c, err := e.contracts.Get(contractID)
	if err != nil {
		return nil, err
	}

	a, err := e.registry.Get(agentID)
	if err != nil {
		return nil, err
	}

	if a.Status != models.AgentStatusAvailable {
		return nil, fmt.Errorf("assign contract %s to agent %s: %w", contractID, agentID, ErrAgentUnavailable)
	}

	// Score before binding so the load term does not count this contract.
	confidence := e.Score(a, c)

	// The store does the status check and mutation under one lock;
	// of two concurrent attempts exactly one creates a record.
	if err := e.contracts.Assign(contractID, agentID); err != nil {
		if errors.Is(err, contract.ErrInvalidTransition) {
			return nil, fmt.Errorf("assign contract %s in status %s: %w", contractID, c.Status, ErrInvalidState)
		}

		return nil, err
	}

	record := &models.Assignment{
		ID:         "assignment-" + uuid.New().String()[:8],
		ContractID: contractID,
		AgentID:    agentID,
		Strategy:   strategy,
		Confidence: confidence,
		AssignedAt: time.Now().UTC(),
	}

	e.mu.Lock()
	e.log = append(e.log, record)
	e.mu.Unlock()

	e.logger.Info("Assigned contract",
		"contract_id", contractID, "agent_id", agentID,
		"strategy", strategy, "confidence", record.Confidence)

	return record, nil
}

// AutoAssign finds the best available agent for the contract and assigns
// it. Returns ErrNoEligibleAgent when no agent qualifies.
func (e *Engine) AutoAssign(contractID string) (*models.Assignment, error) {
	c, err := e.contracts.Get(contractID)
	if err != nil {
		return nil, err
	}

	best, err := e.FindBestMatch(c)
	if err != nil {
		return nil, err
	}

	return e.Assign(contractID, best.ID, "auto")
}

// ActiveAssignments counts the agent's contracts still in flight
// (assigned or in progress).
func (e *Engine) ActiveAssignments(agentID string) int {
	return e.contracts.ActiveByAgent(agentID)
}

// Assignments returns a copy of the assignment log in creation order.
func (e *Engine) Assignments() []*models.Assignment {
	e.mu.RLock()
	defer e.mu.RUnlock()

	log := make([]*models.Assignment, len(e.log))
	copy(log, e.log)

	return log
}

// ForContract returns all assignment records for one contract, oldest first.
// Later records supersede earlier ones after a cancel or failure.
func (e *Engine) ForContract(contractID string) []*models.Assignment {
	e.mu.RLock()
	defer e.mu.RUnlock()

	matched := make([]*models.Assignment, 0)

	for _, record := range e.log {
		if record.ContractID == contractID {
			matched = append(matched, record)
		}
	}

	return matched
}

// Restore reloads the assignment log from a snapshot.
func (e *Engine) Restore(assignments []*models.Assignment) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.log = append(e.log[:0], assignments...)
}
