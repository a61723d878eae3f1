package contract

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hiveplane/hiveplane/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	return NewStore(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func validRequest() CreateRequest {
	return CreateRequest{
		Title:                "Run regression suite",
		Description:          "Execute the nightly regression suite against main",
		Priority:             models.ContractPriorityNormal,
		RequiredCapabilities: []string{"testing"},
		EstimatedDuration:    30 * time.Minute,
	}
}

func TestStore_Create_AutoValidatePromotesToApproved(t *testing.T) {
	store := newTestStore()

	req := validRequest()
	req.AutoValidate = true

	c, err := store.Create(req)
	require.NoError(t, err)

	assert.Equal(t, models.ContractStatusApproved, c.Status)
	require.Len(t, c.ValidationResults, 4)

	for _, result := range c.ValidationResults {
		assert.True(t, result.Passed, "rule %s should pass", result.Rule)
	}
}

func TestStore_Create_WithoutAutoValidateStaysPending(t *testing.T) {
	store := newTestStore()

	c, err := store.Create(validRequest())
	require.NoError(t, err)
	assert.Equal(t, models.ContractStatusPending, c.Status)
}

func TestStore_Create_FailedRulesRecordedNotRejected(t *testing.T) {
	store := newTestStore()

	req := CreateRequest{
		Title:        "",
		Description:  "missing title and capabilities",
		Priority:     "immediate",
		AutoValidate: true,
	}

	c, err := store.Create(req)
	require.NoError(t, err)

	// Contract exists, but failed rules keep it pending despite AutoValidate.
	assert.Equal(t, models.ContractStatusPending, c.Status)

	failedRules := make(map[string]bool)

	for _, result := range c.ValidationResults {
		if !result.Passed {
			failedRules[result.Rule] = true
		}
	}

	assert.True(t, failedRules[RuleTitle])
	assert.True(t, failedRules[RuleCapabilities])
	assert.True(t, failedRules[RulePriority])
	assert.False(t, failedRules[RuleDescription])
}

func TestStore_Get(t *testing.T) {
	store := newTestStore()

	c, err := store.Create(validRequest())
	require.NoError(t, err)

	got, err := store.Get(c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)

	_, err = store.Get("contract-missing")
	assert.ErrorIs(t, err, ErrContractNotFound)
}

func TestStore_TransitionStatus_FollowsGraph(t *testing.T) {
	store := newTestStore()

	c, err := store.Create(validRequest())
	require.NoError(t, err)

	require.NoError(t, store.TransitionStatus(c.ID, models.ContractStatusApproved))
	require.NoError(t, store.TransitionStatus(c.ID, models.ContractStatusAssigned))
	assert.NotNil(t, c.AssignedAt)

	require.NoError(t, store.TransitionStatus(c.ID, models.ContractStatusInProgress))
	require.NoError(t, store.TransitionStatus(c.ID, models.ContractStatusCompleted))
	assert.NotNil(t, c.CompletedAt)
}

func TestStore_TransitionStatus_RejectsBackwardsMoves(t *testing.T) {
	store := newTestStore()

	c, err := store.Create(validRequest())
	require.NoError(t, err)

	err = store.TransitionStatus(c.ID, models.ContractStatusCompleted)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, models.ContractStatusPending, c.Status)

	require.NoError(t, store.TransitionStatus(c.ID, models.ContractStatusAssigned))

	err = store.TransitionStatus(c.ID, models.ContractStatusPending)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestStore_Cancel(t *testing.T) {
	store := newTestStore()

	c, err := store.Create(validRequest())
	require.NoError(t, err)

	require.NoError(t, store.TransitionStatus(c.ID, models.ContractStatusAssigned))
	require.NoError(t, store.TransitionStatus(c.ID, models.ContractStatusInProgress))

	// In-progress contracts cannot be cancelled.
	err = store.Cancel(c.ID)
	require.ErrorIs(t, err, ErrNotCancellable)

	other, err := store.Create(validRequest())
	require.NoError(t, err)
	require.NoError(t, store.Cancel(other.ID))
	assert.Equal(t, models.ContractStatusCancelled, other.Status)

	// Terminal contracts stay terminal.
	err = store.Cancel(other.ID)
	assert.ErrorIs(t, err, ErrNotCancellable)
}

func TestStore_Assign_WinnerTakesContract(t *testing.T) {
	store := newTestStore()

	c, err := store.Create(validRequest())
	require.NoError(t, err)

	require.NoError(t, store.Assign(c.ID, "w1"))
	assert.Equal(t, models.ContractStatusAssigned, c.Status)
	require.NotNil(t, c.AssignedAgent)
	assert.Equal(t, "w1", *c.AssignedAgent)
	assert.NotNil(t, c.AssignedAt)

	// The loser of a race must not overwrite the winner's binding.
	err = store.Assign(c.ID, "w2")
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, "w1", *c.AssignedAgent)
}

func TestStore_ListByStatusAndAgent(t *testing.T) {
	store := newTestStore()

	first, err := store.Create(validRequest())
	require.NoError(t, err)

	second, err := store.Create(validRequest())
	require.NoError(t, err)

	require.NoError(t, store.SetAssignedAgent(first.ID, "w1"))
	require.NoError(t, store.TransitionStatus(first.ID, models.ContractStatusAssigned))

	pending := store.ListByStatus(models.ContractStatusPending)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)

	byAgent := store.ListByAgent("w1")
	require.Len(t, byAgent, 1)
	assert.Equal(t, first.ID, byAgent[0].ID)

	assert.Equal(t, 1, store.ActiveByAgent("w1"))
	assert.Equal(t, 0, store.ActiveByAgent("w2"))
}

func TestStore_Summary(t *testing.T) {
	store := newTestStore()

	req := validRequest()
	req.AutoValidate = true

	_, err := store.Create(req)
	require.NoError(t, err)

	c, err := store.Create(validRequest())
	require.NoError(t, err)
	require.NoError(t, store.Cancel(c.ID))

	summary := store.Summary()
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.ByStatus[models.ContractStatusApproved])
	assert.Equal(t, 1, summary.ByStatus[models.ContractStatusCancelled])
}
