package review

import (
	"testing"

	"github.com/helixlabs/limsd/pkg/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderWith(enabled bool) *orders.TestOrder {
	return &orders.TestOrder{ID: 1, Status: orders.StatusCreated, IsAiReviewEnabled: enabled}
}

func TestStateOfDerivation(t *testing.T) {
	reviewed := orders.TestResult{ID: 1, ReviewedByAI: true}
	confirmed := orders.TestResult{ID: 2, ReviewedByAI: true, IsConfirmed: true}
	raw := orders.TestResult{ID: 3}

	assert.Equal(t, StateDisabled, StateOf(orderWith(false), []orders.TestResult{reviewed}))
	assert.Equal(t, StateEnabled, StateOf(orderWith(true), []orders.TestResult{raw}))
	assert.Equal(t, StateEnabled, StateOf(orderWith(true), nil))
	assert.Equal(t, StateAiReviewed, StateOf(orderWith(true), []orders.TestResult{reviewed, confirmed}))
	assert.Equal(t, StateConfirmed, StateOf(orderWith(true), []orders.TestResult{confirmed, raw}))
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "Disabled", StateDisabled.String())
	assert.Equal(t, "Enabled", StateEnabled.String())
	assert.Equal(t, "AiReviewed", StateAiReviewed.String())
	assert.Equal(t, "Confirmed", StateConfirmed.String())
}

func TestCanTriggerRequiresEnabledSwitch(t *testing.T) {
	assert.ErrorIs(t, CanTrigger(orderWith(false)), ErrNotEnabled)
	assert.NoError(t, CanTrigger(orderWith(true)))
}

func TestConfirmScopeGuards(t *testing.T) {
	// Nothing reviewed yet.
	_, err := ConfirmScope([]orders.TestResult{{ID: 1}, {ID: 2}})
	assert.ErrorIs(t, err, ErrNotReviewed)

	// Everything already confirmed.
	_, err = ConfirmScope([]orders.TestResult{
		{ID: 1, ReviewedByAI: true, IsConfirmed: true},
	})
	assert.ErrorIs(t, err, ErrNothingToConfirm)
}

func TestConfirmScopeSelectsOnlyPendingReviewedResults(t *testing.T) {
	results := []orders.TestResult{
		{ID: 1, ReviewedByAI: true, IsConfirmed: true},
		{ID: 2, ReviewedByAI: true},
		{ID: 3, ReviewedByAI: true},
		{ID: 4}, // never reviewed, out of scope
	}

	pending, err := ConfirmScope(results)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, pending)
}

func TestGuardErrorsAreDistinguishable(t *testing.T) {
	assert.True(t, IsGuardError(ErrNotEnabled))
	assert.True(t, IsGuardError(ErrNotReviewed))
	assert.True(t, IsGuardError(ErrNothingToConfirm))
	assert.False(t, IsGuardError(orders.ErrOrderNotFound))
}
