package listings

import (
	"time"
)

type ListingCreatedEvent struct {
	ListingID ListingID
	HostID    HostID
	At        time.Time
}

func (e ListingCreatedEvent) EventName() string     { return "listing.created" }
func (e ListingCreatedEvent) AggregateID() string   { return string(e.ListingID) }
func (e ListingCreatedEvent) OccurredAt() time.Time { return e.At }

type ListingRateChangedEvent struct {
	ListingID ListingID
	Previous  int64
	Current   int64
	At        time.Time
}

func (e ListingRateChangedEvent) EventName() string     { return "listing.rate_changed" }
func (e ListingRateChangedEvent) AggregateID() string   { return string(e.ListingID) }
func (e ListingRateChangedEvent) OccurredAt() time.Time { return e.At }
