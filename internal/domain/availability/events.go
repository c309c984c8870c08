package availability

import (
	"time"

	"bookingledger/internal/domain/shared/daterange"
)

type CalendarBlocked struct {
	ListingID string
	Range     daterange.DateRange
	BookingID string
	At        time.Time
}

func (e CalendarBlocked) EventName() string     { return "calendar.blocked" }
func (e CalendarBlocked) AggregateID() string   { return e.ListingID }
func (e CalendarBlocked) OccurredAt() time.Time { return e.At }

type CalendarOverbookingPrevented struct {
	ListingID    string
	Range        daterange.DateRange
	ConflictDate daterange.Date
	At           time.Time
}

func (e CalendarOverbookingPrevented) EventName() string     { return "calendar.overbooking_prevented" }
func (e CalendarOverbookingPrevented) AggregateID() string   { return e.ListingID }
func (e CalendarOverbookingPrevented) OccurredAt() time.Time { return e.At }

func CalendarBlockedEvent(listingID string, r daterange.DateRange, bookingID string, at time.Time) CalendarBlocked {
	return CalendarBlocked{ListingID: listingID, Range: r, BookingID: bookingID, At: at.UTC()}
}

func CalendarOverbookingPreventedEvent(listingID string, r daterange.DateRange, conflict daterange.Date, at time.Time) CalendarOverbookingPrevented {
	return CalendarOverbookingPrevented{ListingID: listingID, Range: r, ConflictDate: conflict, At: at.UTC()}
}
