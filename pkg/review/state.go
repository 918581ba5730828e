// Package review drives the AI-assisted review lifecycle of a test order:
// Disabled -> Enabled -> AiReviewed -> Confirmed.
package review

import (
	"errors"

	"github.com/helixlabs/limsd/pkg/orders"
)

// State is the review machine position of one test order. There is no
// dedicated state row; the position is derived from the order's enable flag
// and the per-result review/confirmation flags.
type State int

const (
	StateDisabled State = iota
	StateEnabled
	StateAiReviewed
	StateConfirmed
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "Disabled"
	case StateEnabled:
		return "Enabled"
	case StateAiReviewed:
		return "AiReviewed"
	case StateConfirmed:
		return "Confirmed"
	default:
		return "Unknown"
	}
}

var (
	ErrNotEnabled       = errors.New("ai review is not enabled for this test order")
	ErrNotReviewed      = errors.New("test order has not been reviewed by AI yet")
	ErrNothingToConfirm = errors.New("no AI-reviewed results to confirm, or all already confirmed")
)

// IsGuardError reports whether err is a state-machine precondition failure,
// as opposed to a not-found or persistence error.
func IsGuardError(err error) bool {
	return errors.Is(err, ErrNotEnabled) ||
		errors.Is(err, ErrNotReviewed) ||
		errors.Is(err, ErrNothingToConfirm)
}

// StateOf derives the machine position from committed state.
func StateOf(order *orders.TestOrder, results []orders.TestResult) State {
	if !order.IsAiReviewEnabled {
		return StateDisabled
	}
	reviewed, confirmed := 0, 0
	for _, r := range results {
		if !r.ReviewedByAI {
			continue
		}
		reviewed++
		if r.IsConfirmed {
			confirmed++
		}
	}
	if reviewed == 0 {
		return StateEnabled
	}
	if confirmed == reviewed {
		return StateConfirmed
	}
	return StateAiReviewed
}

// CanTrigger guards the Trigger transition. Re-triggering an already
// reviewed (even confirmed) order is allowed: every trigger is a fresh
// classification pass, so ranges changed since the last run take effect.
func CanTrigger(order *orders.TestOrder) error {
	if !order.IsAiReviewEnabled {
		return ErrNotEnabled
	}
	return nil
}

// ConfirmScope returns the ids of results eligible for confirmation: every
// AI-reviewed result not yet confirmed. Confirmation is sticky, so results
// confirmed in an earlier call are excluded rather than re-stamped.
func ConfirmScope(results []orders.TestResult) ([]int64, error) {
	reviewed := false
	var pending []int64
	for _, r := range results {
		if !r.ReviewedByAI {
			continue
		}
		reviewed = true
		if !r.IsConfirmed {
			pending = append(pending, r.ID)
		}
	}
	if !reviewed {
		return nil, ErrNotReviewed
	}
	if len(pending) == 0 {
		return nil, ErrNothingToConfirm
	}
	return pending, nil
}
