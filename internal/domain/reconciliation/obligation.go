package reconciliation

import (
	"context"
	"errors"
	"strings"
	"time"

	"bookingledger/internal/domain/shared/daterange"
	"bookingledger/internal/domain/shared/events"
	"bookingledger/internal/domain/shared/money"
)

var (
	ErrNotFound     = errors.New("reconciliation: obligation not found")
	ErrInvalidState = errors.New("reconciliation: invalid state transition")
)

type ObligationID string

type State string

const (
	StatePending  State = "PENDING"
	StateRefunded State = "REFUNDED"
	StateFailed   State = "FAILED"
)

// Obligation records money taken from a guest without a matching booking.
// It stays PENDING until the charge is refunded.
type Obligation struct {
	ID          ObligationID
	ListingID   string
	GuestID     string
	HostID      string
	Range       daterange.DateRange
	Amount      money.Money
	ChargeRef   string
	PayoutToken string
	Reason      string
	State       State
	Attempts    int
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id ObligationID) (*Obligation, error)
	Create(ctx context.Context, obligation *Obligation) error
	Save(ctx context.Context, obligation *Obligation) error
}

type CreateParams struct {
	ID          ObligationID
	ListingID   string
	GuestID     string
	HostID      string
	Range       daterange.DateRange
	Amount      money.Money
	ChargeRef   string
	PayoutToken string
	Reason      string
	Now         time.Time
}

func NewObligation(params CreateParams) (*Obligation, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, errors.New("reconciliation: id is required")
	}
	if strings.TrimSpace(params.ChargeRef) == "" {
		return nil, errors.New("reconciliation: charge reference is required")
	}
	now := params.Now.UTC()
	o := &Obligation{
		ID:          params.ID,
		ListingID:   params.ListingID,
		GuestID:     params.GuestID,
		HostID:      params.HostID,
		Range:       params.Range,
		Amount:      params.Amount,
		ChargeRef:   params.ChargeRef,
		PayoutToken: params.PayoutToken,
		Reason:      params.Reason,
		State:       StatePending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	o.Record(RefundRequired{
		ObligationID: o.ID,
		ListingID:    o.ListingID,
		GuestID:      o.GuestID,
		Amount:       o.Amount,
		ChargeRef:    o.ChargeRef,
		Reason:       o.Reason,
		At:           now,
	})
	return o, nil
}

func (o *Obligation) MarkRefunded(now time.Time) error {
	if o.State == StateRefunded {
		return ErrInvalidState
	}
	o.State = StateRefunded
	o.Attempts++
	o.LastError = ""
	o.UpdatedAt = now.UTC()
	o.Record(RefundCompleted{ObligationID: o.ID, ChargeRef: o.ChargeRef, Amount: o.Amount, At: o.UpdatedAt})
	return nil
}

// MarkFailed keeps the obligation open for another attempt.
func (o *Obligation) MarkFailed(reason string, now time.Time) error {
	if o.State == StateRefunded {
		return ErrInvalidState
	}
	o.State = StateFailed
	o.Attempts++
	o.LastError = reason
	o.UpdatedAt = now.UTC()
	return nil
}

func (o *Obligation) Open() bool {
	return o.State == StatePending || o.State == StateFailed
}
