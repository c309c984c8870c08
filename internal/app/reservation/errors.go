package reservation

import (
	"errors"
	"fmt"

	"bookingledger/internal/domain/reconciliation"
)

// ErrListingUnavailable wraps store failures hit before any money moved.
var ErrListingUnavailable = errors.New("reservation: listing unavailable")

// ChargeFailure means the guest was not charged and nothing was written.
type ChargeFailure struct {
	Err      error
	Declined bool
	TimedOut bool
}

func (e *ChargeFailure) Error() string {
	switch {
	case e.Declined:
		return fmt.Sprintf("reservation: charge declined: %v", e.Err)
	case e.TimedOut:
		return fmt.Sprintf("reservation: charge timed out: %v", e.Err)
	default:
		return fmt.Sprintf("reservation: charge failed: %v", e.Err)
	}
}

func (e *ChargeFailure) Unwrap() error { return e.Err }

// CommitFailure means the guest was charged but the booking was not
// written. Obligation is the refund owed for the charge. RecordErr is set
// when the obligation itself could not be persisted and must be handled by
// an operator.
type CommitFailure struct {
	Cause      error
	Obligation *reconciliation.Obligation
	RecordErr  error
}

func (e *CommitFailure) Error() string {
	id := ""
	if e.Obligation != nil {
		id = string(e.Obligation.ID)
	}
	if e.RecordErr != nil {
		return fmt.Sprintf("reservation: commit failed after charge (refund %s not recorded: %v): %v", id, e.RecordErr, e.Cause)
	}
	return fmt.Sprintf("reservation: commit failed after charge, refund %s pending: %v", id, e.Cause)
}

func (e *CommitFailure) Unwrap() error { return e.Cause }

// ObligationRecorded reports whether the refund obligation was persisted.
func (e *CommitFailure) ObligationRecorded() bool {
	return e.Obligation != nil && e.RecordErr == nil
}
