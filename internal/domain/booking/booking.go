package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"bookingledger/internal/domain/listings"
	"bookingledger/internal/domain/shared/daterange"
	"bookingledger/internal/domain/shared/events"
	"bookingledger/internal/domain/shared/money"
)

var (
	ErrBookingNotFound = errors.New("booking: not found")
	ErrDuplicate       = errors.New("booking: already exists")
	ErrGuestRequired   = errors.New("booking: guest id required")
	ErrTotalRequired   = errors.New("booking: total must be positive")
)

type BookingID string

// Booking is created once, by a successful reservation commit, and never
// changes afterwards.
type Booking struct {
	ID          BookingID
	ListingID   listings.ListingID
	GuestID     string
	Range       daterange.DateRange
	Total       money.Money
	PlatformFee money.Money
	ChargeRef   string
	CreatedAt   time.Time
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	Create(ctx context.Context, booking *Booking) error
	ListByListing(ctx context.Context, listingID listings.ListingID, limit, offset int) ([]*Booking, int, error)
	ListByGuest(ctx context.Context, guestID string, limit, offset int) ([]*Booking, int, error)
}

type CreateParams struct {
	ID          BookingID
	ListingID   listings.ListingID
	GuestID     string
	Range       daterange.DateRange
	Total       money.Money
	PlatformFee money.Money
	ChargeRef   string
	CreatedAt   time.Time
}

func NewBooking(params CreateParams) (*Booking, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, errors.New("booking: id required")
	}
	if strings.TrimSpace(params.GuestID) == "" {
		return nil, ErrGuestRequired
	}
	if err := params.Range.Validate(); err != nil {
		return nil, err
	}
	if !params.Total.IsPositive() {
		return nil, ErrTotalRequired
	}
	now := params.CreatedAt.UTC()
	b := &Booking{
		ID:          params.ID,
		ListingID:   params.ListingID,
		GuestID:     params.GuestID,
		Range:       params.Range,
		Total:       params.Total,
		PlatformFee: params.PlatformFee,
		ChargeRef:   params.ChargeRef,
		CreatedAt:   now,
	}
	b.Record(BookingCommitted{
		BookingID: b.ID,
		ListingID: b.ListingID,
		GuestID:   b.GuestID,
		Range:     b.Range,
		Total:     b.Total,
		ChargeRef: b.ChargeRef,
		At:        now,
	})
	return b, nil
}

// Nights is the number of occupied nights, checkout day included.
func (b *Booking) Nights() int {
	return b.Range.Nights()
}
