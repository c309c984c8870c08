package reservation

import (
	"errors"

	"bookingledger/internal/domain/booking"
)

// State is a step of a single reservation attempt.
type State string

const (
	StateRequested    State = "REQUESTED"
	StateValidated    State = "VALIDATED"
	StateCharged      State = "CHARGED"
	StateCommitted    State = "COMMITTED"
	StateRejected     State = "REJECTED"
	StateChargeFailed State = "CHARGE_FAILED"
	StateCommitFailed State = "COMMIT_FAILED"
	StateFailed       State = "FAILED"
)

func (s State) Terminal() bool {
	switch s {
	case StateCommitted, StateRejected, StateChargeFailed, StateCommitFailed, StateFailed:
		return true
	}
	return false
}

// StateOf maps the outcome of Reserve to its terminal state.
func StateOf(err error) State {
	if err == nil {
		return StateCommitted
	}
	var commitErr *CommitFailure
	if errors.As(err, &commitErr) {
		return StateCommitFailed
	}
	var chargeErr *ChargeFailure
	if errors.As(err, &chargeErr) {
		return StateChargeFailed
	}
	var vErr *booking.ValidationError
	if errors.As(err, &vErr) {
		return StateRejected
	}
	return StateFailed
}
