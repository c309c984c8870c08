package listings

import (
	"context"
	"errors"
	"strings"
	"time"

	"bookingledger/internal/domain/availability"
	"bookingledger/internal/domain/shared/daterange"
	"bookingledger/internal/domain/shared/events"
	"bookingledger/internal/domain/shared/money"
)

var (
	ErrListingNotFound = errors.New("listings: listing not found")
	ErrVersionConflict = errors.New("listings: listing changed since it was loaded")
	ErrTitleRequired   = errors.New("listings: title is required")
	ErrNightlyRate     = errors.New("listings: nightly rate must be positive")
)

type ListingID string
type HostID string

// Listing is the part of a listing the booking ledger owns: its price, its
// availability index and the bookings made against it. Availability and
// BookingIDs only change together, through AttachBooking.
type Listing struct {
	ID           ListingID
	Host         HostID
	Title        string
	City         string
	NightlyRate  money.Money
	Availability availability.Index
	BookingIDs   []string
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id ListingID) (*Listing, error)
	// Save persists the listing only if the stored version still equals
	// listing.Version, then bumps it. A stale write fails with ErrVersionConflict.
	Save(ctx context.Context, listing *Listing) error
}

type CreateListingParams struct {
	ID          ListingID
	Host        HostID
	Title       string
	City        string
	NightlyRate money.Money
	Booked      []daterange.Date
	Now         time.Time
}

func NewListing(params CreateListingParams) (*Listing, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, errors.New("listings: id is required")
	}
	if strings.TrimSpace(string(params.Host)) == "" {
		return nil, errors.New("listings: host is required")
	}
	if strings.TrimSpace(params.Title) == "" {
		return nil, ErrTitleRequired
	}
	if !params.NightlyRate.IsPositive() || params.NightlyRate.Currency == "" {
		return nil, ErrNightlyRate
	}
	now := params.Now.UTC()
	listing := &Listing{
		ID:           params.ID,
		Host:         params.Host,
		Title:        strings.TrimSpace(params.Title),
		City:         strings.TrimSpace(params.City),
		NightlyRate:  params.NightlyRate,
		Availability: availability.FromDates(params.Booked...),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	listing.Record(ListingCreatedEvent{ListingID: listing.ID, HostID: listing.Host, At: now})
	return listing, nil
}

// AttachBooking installs an availability index computed for r and records
// the booking against the listing.
func (l *Listing) AttachBooking(next availability.Index, r daterange.DateRange, bookingID string, now time.Time) error {
	for _, d := range r.Days() {
		if !next.IsBooked(d) {
			return errors.New("listings: availability index does not cover booking range")
		}
	}
	l.Availability = next
	l.BookingIDs = append(append([]string(nil), l.BookingIDs...), bookingID)
	l.UpdatedAt = now.UTC()
	l.Record(availability.CalendarBlockedEvent(string(l.ID), r, bookingID, now))
	return nil
}

func (l *Listing) ChangeRate(rate money.Money, now time.Time) error {
	if !rate.IsPositive() || rate.Currency == "" {
		return ErrNightlyRate
	}
	prev := l.NightlyRate.Amount
	l.NightlyRate = rate
	l.UpdatedAt = now.UTC()
	l.Record(ListingRateChangedEvent{ListingID: l.ID, Previous: prev, Current: rate.Amount, At: l.UpdatedAt})
	return nil
}

// Copy returns a snapshot that shares the immutable availability index but
// no mutable state with the receiver.
func (l *Listing) Copy() *Listing {
	clone := &Listing{
		ID:           l.ID,
		Host:         l.Host,
		Title:        l.Title,
		City:         l.City,
		NightlyRate:  l.NightlyRate,
		Availability: l.Availability,
		BookingIDs:   append([]string(nil), l.BookingIDs...),
		Version:      l.Version,
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
	}
	return clone
}
