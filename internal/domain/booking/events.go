package booking

import (
	"time"

	"bookingledger/internal/domain/listings"
	"bookingledger/internal/domain/shared/daterange"
	"bookingledger/internal/domain/shared/money"
)

type BookingCommitted struct {
	BookingID BookingID
	ListingID listings.ListingID
	GuestID   string
	Range     daterange.DateRange
	Total     money.Money
	ChargeRef string
	At        time.Time
}

func (e BookingCommitted) EventName() string     { return "booking.committed" }
func (e BookingCommitted) AggregateID() string   { return string(e.BookingID) }
func (e BookingCommitted) OccurredAt() time.Time { return e.At }
