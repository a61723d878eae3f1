// Package agent provides the agent registry and the per-agent lifecycle
// state machine for the orchestration core.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hiveplane/hiveplane/pkg/models"
)

var (
	// ErrAgentNotFound indicates an agent was not found by the given identifier.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrAgentExists indicates an agent with the same identifier is already registered.
	ErrAgentExists = errors.New("agent already registered")

	// ErrInvalidAgentStatus indicates an unrecognized agent status value.
	ErrInvalidAgentStatus = errors.New("invalid agent status")
)

// Detector inspects a worker's environment and returns its capability tag
// set. Implementations live outside the orchestration core.
type Detector interface {
	DetectCapabilities(ctx context.Context, agentRef string) ([]string, error)
}

// Registry stores agent identity, capability sets, and status. All access
// is mutex-guarded; iteration order is registration order, which also
// backs the assignment engine's tie-break.
type Registry struct {
	mu       sync.RWMutex
	agents   map[string]*models.Agent
	machines map[string]*StateMachine
	order    []string
	mode     Mode
	logger   *slog.Logger
}

// NewRegistry creates an empty registry. State machines for registered
// agents are created in the given validation mode.
func NewRegistry(logger *slog.Logger, mode Mode) *Registry {
	return &Registry{
		agents:   make(map[string]*models.Agent),
		machines: make(map[string]*StateMachine),
		mode:     mode,
		logger:   logger.With("module", "agent_registry"),
	}
}

// Register adds a new agent with the given capability set. The agent
// starts available, with the default performance score, and gets a fresh
// state machine in the uninitialized state.
func (r *Registry) Register(id, name string, capabilities []string) (*models.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[id]; exists {
		return nil, fmt.Errorf("register agent %s: %w", id, ErrAgentExists)
	}

	agent := &models.Agent{
		ID:               id,
		Name:             name,
		Capabilities:     capabilities,
		Status:           models.AgentStatusAvailable,
		PerformanceScore: models.DefaultPerformanceScore,
		RegisteredAt:     time.Now().UTC(),
	}

	r.agents[id] = agent
	r.machines[id] = NewStateMachine(id, r.mode)
	r.order = append(r.order, id)

	r.logger.Info("Registered agent", "agent_id", id, "capabilities", capabilities)

	return agent, nil
}

// RegisterDetected registers an agent whose capabilities are discovered
// through the capability detector collaborator.
func (r *Registry) RegisterDetected(ctx context.Context, detector Detector, id, name string) (*models.Agent, error) {
	capabilities, err := detector.DetectCapabilities(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("detect capabilities for agent %s: %w", id, err)
	}

	return r.Register(id, name, capabilities)
}

// Get returns the agent with the given ID.
func (r *Registry) Get(id string) (*models.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, ok := r.agents[id]
	if !ok {
		return nil, fmt.Errorf("get agent %s: %w", id, ErrAgentNotFound)
	}

	return agent, nil
}

// List returns all agents in registration order.
func (r *Registry) List() []*models.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agents := make([]*models.Agent, 0, len(r.order))
	for _, id := range r.order {
		agents = append(agents, r.agents[id])
	}

	return agents
}

// ListAvailable returns agents whose status is available, in registration order.
func (r *Registry) ListAvailable() []*models.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	available := make([]*models.Agent, 0)

	for _, id := range r.order {
		if agent := r.agents[id]; agent.Status == models.AgentStatusAvailable {
			available = append(available, agent)
		}
	}

	return available
}

// SetStatus updates the availability status of an agent.
func (r *Registry) SetStatus(id string, status models.AgentStatus) error {
	if !models.ValidAgentStatus(status) {
		return fmt.Errorf("set status %q for agent %s: %w", status, id, ErrInvalidAgentStatus)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	agent, ok := r.agents[id]
	if !ok {
		return fmt.Errorf("set status for agent %s: %w", id, ErrAgentNotFound)
	}

	agent.Status = status

	return nil
}

// SetPerformanceScore updates an agent's performance score, clamped to [0, 1].
func (r *Registry) SetPerformanceScore(id string, score float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent, ok := r.agents[id]
	if !ok {
		return fmt.Errorf("set performance score for agent %s: %w", id, ErrAgentNotFound)
	}

	agent.PerformanceScore = min(max(score, 0), 1)

	return nil
}

// Deregister flips the agent offline and stamps the deregistration time.
// The record is retained; agents are never deleted.
func (r *Registry) Deregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent, ok := r.agents[id]
	if !ok {
		return fmt.Errorf("deregister agent %s: %w", id, ErrAgentNotFound)
	}

	now := time.Now().UTC()
	agent.Status = models.AgentStatusOffline
	agent.DeregisteredAt = &now

	r.logger.Info("Deregistered agent", "agent_id", id)

	return nil
}

// StateMachine returns the lifecycle state machine attached to an agent.
func (r *Registry) StateMachine(id string) (*StateMachine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	machine, ok := r.machines[id]
	if !ok {
		return nil, fmt.Errorf("state machine for agent %s: %w", id, ErrAgentNotFound)
	}

	return machine, nil
}

// StateRecords returns the persisted form of every agent state machine,
// in registration order. Used when building the orchestrator snapshot.
func (r *Registry) StateRecords() []*models.AgentStateRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]*models.AgentStateRecord, 0, len(r.order))
	for _, id := range r.order {
		records = append(records, r.machines[id].Record())
	}

	return records
}

// Restore reloads agents and state machines from a snapshot, replacing
// the registry's current contents.
func (r *Registry) Restore(agents []*models.Agent, states []*models.AgentStateRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.agents = make(map[string]*models.Agent, len(agents))
	r.machines = make(map[string]*StateMachine, len(agents))
	r.order = r.order[:0]

	for _, agent := range agents {
		r.agents[agent.ID] = agent
		r.machines[agent.ID] = NewStateMachine(agent.ID, r.mode)
		r.order = append(r.order, agent.ID)
	}

	for _, record := range states {
		if machine, ok := r.machines[record.AgentID]; ok {
			machine.restore(record)
		}
	}
}
