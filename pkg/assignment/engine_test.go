package assignment

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hiveplane/hiveplane/pkg/agent"
	"github.com/hiveplane/hiveplane/pkg/contract"
	"github.com/hiveplane/hiveplane/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, *agent.Registry, *contract.Store) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := agent.NewRegistry(logger, agent.ModeValidated)
	contracts := contract.NewStore(logger)
	engine := NewEngine(registry, contracts, DefaultConfig(), logger)

	return engine, registry, contracts
}

func createContract(t *testing.T, contracts *contract.Store, caps []string, priority models.ContractPriority) *models.Contract {
	t.Helper()

	c, err := contracts.Create(contract.CreateRequest{
		Title:                "Run regression suite",
		Description:          "Execute the nightly regression suite",
		Priority:             priority,
		RequiredCapabilities: caps,
		EstimatedDuration:    10 * time.Minute,
		AutoValidate:         true,
	})
	require.NoError(t, err)

	return c
}

func TestEngine_ShouldAutoAssign(t *testing.T) {
	engine, _, contracts := newTestEngine(t)

	tests := []struct {
		name     string
		caps     []string
		priority models.ContractPriority
		want     bool
	}{
		{"urgent without capabilities", nil, models.ContractPriorityUrgent, true},
		{"critical without capabilities", nil, models.ContractPriorityCritical, true},
		{"normal with capabilities", []string{"testing"}, models.ContractPriorityNormal, true},
		{"normal without capabilities", nil, models.ContractPriorityNormal, false},
		{"low without capabilities", nil, models.ContractPriorityLow, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := createContract(t, contracts, tt.caps, tt.priority)
			assert.Equal(t, tt.want, engine.ShouldAutoAssign(c))
		})
	}
}

func TestEngine_ShouldAutoAssign_GatedByConfig(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := agent.NewRegistry(logger, agent.ModeValidated)
	contracts := contract.NewStore(logger)
	engine := NewEngine(registry, contracts, Config{AutoAssign: false}, logger)

	c := createContract(t, contracts, []string{"testing"}, models.ContractPriorityCritical)
	assert.False(t, engine.ShouldAutoAssign(c))
}

func TestEngine_Score_BoundsAndWeights(t *testing.T) {
	engine, registry, contracts := newTestEngine(t)

	a, err := registry.Register("w1", "Worker One", []string{"testing", "deploy"})
	require.NoError(t, err)

	c := createContract(t, contracts, []string{"testing", "review"}, models.ContractPriorityNormal)

	// Half the capabilities match, no load, default performance, available.
	score := engine.Score(a, c)
	assert.InDelta(t, 0.4*0.5+0.3*1.0+0.2*0.5+0.1*1.0, score, 1e-9)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)

	// Empty required set contributes zero to the capability term.
	empty := createContract(t, contracts, nil, models.ContractPriorityNormal)
	assert.InDelta(t, 0.3*1.0+0.2*0.5+0.1*1.0, engine.Score(a, empty), 1e-9)
}

func TestEngine_Score_StaysInUnitInterval(t *testing.T) {
	engine, registry, contracts := newTestEngine(t)

	a, err := registry.Register("w1", "Worker One", []string{"testing"})
	require.NoError(t, err)
	require.NoError(t, registry.SetPerformanceScore("w1", 1.0))

	c := createContract(t, contracts, []string{"testing"}, models.ContractPriorityCritical)

	score := engine.Score(a, c)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)

	// Saturate the agent with active assignments; the load term must floor at zero.
	for range 12 {
		busy := createContract(t, contracts, []string{"testing"}, models.ContractPriorityNormal)
		require.NoError(t, contracts.SetAssignedAgent(busy.ID, "w1"))
		require.NoError(t, contracts.TransitionStatus(busy.ID, models.ContractStatusAssigned))
	}

	score = engine.Score(a, c)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
	assert.InDelta(t, 0.4*1.0+0.2*1.0+0.1*1.0, score, 1e-9)
}

func TestEngine_FindBestMatch_PrefersCapabilityOverlap(t *testing.T) {
	engine, registry, contracts := newTestEngine(t)

	_, err := registry.Register("w1", "Generalist", nil)
	require.NoError(t, err)
	_, err = registry.Register("w2", "Tester", []string{"testing"})
	require.NoError(t, err)

	c := createContract(t, contracts, []string{"testing"}, models.ContractPriorityNormal)

	best, err := engine.FindBestMatch(c)
	require.NoError(t, err)
	assert.Equal(t, "w2", best.ID)
}

func TestEngine_FindBestMatch_TieBreaksOnLoadThenID(t *testing.T) {
	engine, registry, contracts := newTestEngine(t)

	_, err := registry.Register("w2", "Worker Two", []string{"testing"})
	require.NoError(t, err)
	_, err = registry.Register("w1", "Worker One", []string{"testing"})
	require.NoError(t, err)

	c := createContract(t, contracts, []string{"testing"}, models.ContractPriorityNormal)

	// Identical scores: smaller agent ID wins.
	best, err := engine.FindBestMatch(c)
	require.NoError(t, err)
	assert.Equal(t, "w1", best.ID)
}

func TestEngine_FindBestMatch_NoAvailableAgents(t *testing.T) {
	engine, registry, contracts := newTestEngine(t)

	_, err := registry.Register("w1", "Worker One", []string{"testing"})
	require.NoError(t, err)
	require.NoError(t, registry.SetStatus("w1", models.AgentStatusBusy))

	c := createContract(t, contracts, []string{"testing"}, models.ContractPriorityNormal)

	_, err = engine.FindBestMatch(c)
	assert.ErrorIs(t, err, ErrNoEligibleAgent)
}

func TestEngine_Assign_ScenarioA(t *testing.T) {
	engine, registry, contracts := newTestEngine(t)

	_, err := registry.Register("w1", "Worker One", []string{"testing"})
	require.NoError(t, err)

	c := createContract(t, contracts, []string{"testing"}, models.ContractPriorityNormal)
	require.Equal(t, models.ContractStatusApproved, c.Status)

	record, err := engine.AutoAssign(c.ID)
	require.NoError(t, err)

	assert.Equal(t, "w1", record.AgentID)
	assert.Equal(t, "auto", record.Strategy)
	assert.GreaterOrEqual(t, record.Confidence, 0.0)
	assert.LessOrEqual(t, record.Confidence, 1.0)

	assert.Equal(t, models.ContractStatusAssigned, c.Status)
	require.NotNil(t, c.AssignedAgent)
	assert.Equal(t, "w1", *c.AssignedAgent)
	assert.NotNil(t, c.AssignedAt)
}

func TestEngine_Assign_ScenarioB_SecondAssignFails(t *testing.T) {
	engine, registry, contracts := newTestEngine(t)

	_, err := registry.Register("w1", "Worker One", []string{"testing"})
	require.NoError(t, err)

	c := createContract(t, contracts, []string{"testing"}, models.ContractPriorityNormal)

	_, err = engine.Assign(c.ID, "w1", "manual")
	require.NoError(t, err)

	// At most one non-terminal assignment per contract.
	_, err = engine.Assign(c.ID, "w1", "manual")
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Len(t, engine.ForContract(c.ID), 1)
}

func TestEngine_Assign_ConcurrentAttemptsProduceOneRecord(t *testing.T) {
	engine, registry, contracts := newTestEngine(t)

	_, err := registry.Register("w1", "Worker One", []string{"testing"})
	require.NoError(t, err)
	_, err = registry.Register("w2", "Worker Two", []string{"testing"})
	require.NoError(t, err)

	for round := 0; round < 200; round++ {
		c := createContract(t, contracts, []string{"testing"}, models.ContractPriorityNormal)

		var wg sync.WaitGroup

		records := make([]*models.Assignment, 2)
		errs := make([]error, 2)

		for i, agentID := range []string{"w1", "w2"} {
			wg.Add(1)

			go func(i int, agentID string) {
				defer wg.Done()

				records[i], errs[i] = engine.Assign(c.ID, agentID, "manual")
			}(i, agentID)
		}

		wg.Wait()

		var winner *models.Assignment

		losses := 0

		for i := range records {
			if errs[i] != nil {
				assert.ErrorIs(t, errs[i], ErrInvalidState)

				losses++

				continue
			}

			winner = records[i]
		}

		require.NotNil(t, winner)
		require.Equal(t, 1, losses)

		// The bound agent must be the one named by the surviving record.
		got, err := contracts.Get(c.ID)
		require.NoError(t, err)
		require.NotNil(t, got.AssignedAgent)
		assert.Equal(t, winner.AgentID, *got.AssignedAgent)
		assert.Len(t, engine.ForContract(c.ID), 1)
	}
}

func TestEngine_Assign_AgentUnavailable(t *testing.T) {
	engine, registry, contracts := newTestEngine(t)

	_, err := registry.Register("w1", "Worker One", []string{"testing"})
	require.NoError(t, err)
	require.NoError(t, registry.SetStatus("w1", models.AgentStatusOffline))

	c := createContract(t, contracts, []string{"testing"}, models.ContractPriorityNormal)

	_, err = engine.Assign(c.ID, "w1", "manual")
	assert.ErrorIs(t, err, ErrAgentUnavailable)
	assert.Equal(t, models.ContractStatusApproved, c.Status)
}

func TestEngine_SupersededAssignmentAfterCancel(t *testing.T) {
	engine, registry, contracts := newTestEngine(t)

	_, err := registry.Register("w1", "Worker One", []string{"testing"})
	require.NoError(t, err)

	c := createContract(t, contracts, []string{"testing"}, models.ContractPriorityNormal)

	first, err := engine.Assign(c.ID, "w1", "manual")
	require.NoError(t, err)

	require.NoError(t, contracts.Cancel(c.ID))

	// Cancelled contracts are terminal; the assignment log keeps the record.
	_, err = engine.Assign(c.ID, "w1", "manual")
	require.ErrorIs(t, err, ErrInvalidState)

	records := engine.ForContract(c.ID)
	require.Len(t, records, 1)
	assert.Equal(t, first.ID, records[0].ID)
}
