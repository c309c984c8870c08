package booking

import (
	"errors"
	"fmt"

	"bookingledger/internal/domain/availability"
	"bookingledger/internal/domain/shared/daterange"
)

// DefaultHorizonDays is how far ahead of today a stay may be booked.
const DefaultHorizonDays = 90

// Reason identifies why a reservation request was rejected.
type Reason string

const (
	ReasonInvalidRange   Reason = "INVALID_RANGE"
	ReasonSelfBooking    Reason = "SELF_BOOKING"
	ReasonHostNotPayable Reason = "HOST_NOT_PAYABLE"
	ReasonCheckInInPast  Reason = "CHECK_IN_IN_PAST"
	ReasonBeyondHorizon  Reason = "BEYOND_BOOKING_HORIZON"
	ReasonDateConflict   Reason = "DATE_CONFLICT"
	ReasonInvalidPrice   Reason = "INVALID_PRICE"
)

// ValidationError is a rejection the caller can fix by changing the request.
type ValidationError struct {
	Reason Reason
	// ConflictDate is the first booked day when Reason is ReasonDateConflict.
	ConflictDate daterange.Date
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonInvalidRange:
		return "booking: check out date can't be before check in date"
	case ReasonSelfBooking:
		return "booking: host can't book own listing"
	case ReasonHostNotPayable:
		return "booking: host is not connected to a payout account"
	case ReasonCheckInInPast:
		return "booking: check in date is in the past"
	case ReasonBeyondHorizon:
		return "booking: dates are beyond the booking horizon"
	case ReasonDateConflict:
		if !e.ConflictDate.IsZero() {
			return fmt.Sprintf("booking: listing already booked for %s", e.ConflictDate)
		}
		return "booking: selected dates overlap an existing booking"
	case ReasonInvalidPrice:
		return "booking: listing has no valid nightly price"
	default:
		return fmt.Sprintf("booking: rejected (%s)", e.Reason)
	}
}

// Rejected reports whether err is a ValidationError with the given reason.
func Rejected(err error, reason Reason) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr) && vErr.Reason == reason
}

// ValidationInput is everything the validator needs; Today is injected by
// the caller so decisions do not depend on the system clock.
type ValidationInput struct {
	RequesterID string
	HostID      string
	HostPayable bool
	Range       daterange.DateRange
	Today       daterange.Date
	Index       availability.Index
}

// Validator decides whether a stay can be booked. It has no side effects.
type Validator struct {
	HorizonDays int
}

// Validate returns nil when the request is accepted, otherwise a
// *ValidationError for the first rule that fails.
func (v Validator) Validate(in ValidationInput) error {
	r := in.Range
	if r.Validate() != nil {
		return &ValidationError{Reason: ReasonInvalidRange}
	}
	if in.RequesterID == in.HostID {
		return &ValidationError{Reason: ReasonSelfBooking}
	}
	if !in.HostPayable {
		return &ValidationError{Reason: ReasonHostNotPayable}
	}
	if r.CheckIn.Before(in.Today) {
		return &ValidationError{Reason: ReasonCheckInInPast}
	}
	limit := in.Today.AddDays(v.horizon())
	if r.CheckIn.After(limit) || r.CheckOut.After(limit) {
		return &ValidationError{Reason: ReasonBeyondHorizon}
	}
	if d, conflict := in.Index.FirstConflict(r); conflict {
		return &ValidationError{Reason: ReasonDateConflict, ConflictDate: d}
	}
	return nil
}

func (v Validator) horizon() int {
	if v.HorizonDays <= 0 {
		return DefaultHorizonDays
	}
	return v.HorizonDays
}
