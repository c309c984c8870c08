package reconciliation

import (
	"time"

	"bookingledger/internal/domain/shared/money"
)

type RefundRequired struct {
	ObligationID ObligationID
	ListingID    string
	GuestID      string
	Amount       money.Money
	ChargeRef    string
	Reason       string
	At           time.Time
}

func (e RefundRequired) EventName() string     { return "reconciliation.refund_required" }
func (e RefundRequired) AggregateID() string   { return string(e.ObligationID) }
func (e RefundRequired) OccurredAt() time.Time { return e.At }

type RefundCompleted struct {
	ObligationID ObligationID
	ChargeRef    string
	Amount       money.Money
	At           time.Time
}

func (e RefundCompleted) EventName() string     { return "reconciliation.refund_completed" }
func (e RefundCompleted) AggregateID() string   { return string(e.ObligationID) }
func (e RefundCompleted) OccurredAt() time.Time { return e.At }
