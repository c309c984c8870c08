package listings

import (
	"errors"
	"testing"
	"time"

	"bookingledger/internal/domain/availability"
	"bookingledger/internal/domain/shared/daterange"
	"bookingledger/internal/domain/shared/money"
)

func TestNewListingRequiresPositiveRate(t *testing.T) {
	_, err := NewListing(CreateListingParams{ID: "l-1", Host: "h-1", Title: "Loft", NightlyRate: money.Must(0, "GBP")})
	if !errors.Is(err, ErrNightlyRate) {
		t.Fatalf("err = %v, want ErrNightlyRate", err)
	}
}

func TestAttachBookingUpdatesIndexAndBookings(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	l, err := NewListing(CreateListingParams{ID: "l-1", Host: "h-1", Title: "Loft", NightlyRate: money.Must(100, "GBP"), Now: now})
	if err != nil {
		t.Fatalf("NewListing: %v", err)
	}
	l.ClearEvents()
	r := daterange.DateRange{CheckIn: daterange.MustDate("2024-03-10"), CheckOut: daterange.MustDate("2024-03-11")}
	next, err := l.Availability.WithRangeBooked(r)
	if err != nil {
		t.Fatalf("WithRangeBooked: %v", err)
	}
	snapshot := l.Copy()
	if err := l.AttachBooking(next, r, "b-1", now); err != nil {
		t.Fatalf("AttachBooking: %v", err)
	}
	if len(l.BookingIDs) != 1 || l.BookingIDs[0] != "b-1" {
		t.Fatalf("booking ids = %v", l.BookingIDs)
	}
	if l.Availability.BookedNights() != 2 {
		t.Fatalf("nights = %d, want 2", l.Availability.BookedNights())
	}
	if len(snapshot.BookingIDs) != 0 || snapshot.Availability.BookedNights() != 0 {
		t.Fatalf("snapshot shares state with listing")
	}
	evs := l.PendingEvents()
	if len(evs) != 1 || evs[0].EventName() != "calendar.blocked" {
		t.Fatalf("events = %+v", evs)
	}
}

func TestAttachBookingRejectsIndexMissingRange(t *testing.T) {
	l := &Listing{ID: "l-1"}
	r := daterange.DateRange{CheckIn: daterange.MustDate("2024-03-10"), CheckOut: daterange.MustDate("2024-03-11")}
	if err := l.AttachBooking(availability.Index{}, r, "b-1", time.Now()); err == nil {
		t.Fatalf("expected error for index that does not cover range")
	}
	if len(l.BookingIDs) != 0 {
		t.Fatalf("booking attached despite error")
	}
}
