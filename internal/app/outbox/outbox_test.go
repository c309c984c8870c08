package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"bookingledger/internal/domain/shared/events"
)

type heldEvent struct {
	Listing string    `json:"listing_id"`
	At      time.Time `json:"at"`
}

func (e heldEvent) EventName() string     { return "calendar.blocked" }
func (e heldEvent) AggregateID() string   { return e.Listing }
func (e heldEvent) OccurredAt() time.Time { return e.At }

type sliceOutbox struct {
	records []EventRecord
	fail    error
}

func (b *sliceOutbox) Add(_ context.Context, rec EventRecord) error {
	if b.fail != nil {
		return b.fail
	}
	b.records = append(b.records, rec)
	return nil
}

func TestRecordDomainEventsEncodesInOrder(t *testing.T) {
	at := time.Date(2030, 1, 10, 12, 0, 0, 0, time.FixedZone("x", 3600))
	ids := []string{"evt-1", "evt-2"}
	enc := JSONEventEncoder{IDGenerator: func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}}
	box := &sliceOutbox{}
	evs := []events.DomainEvent{heldEvent{Listing: "lst-1", At: at}, nil, heldEvent{Listing: "lst-2", At: at}}
	if err := RecordDomainEvents(context.Background(), box, enc, evs); err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(box.records) != 2 || box.records[0].ID != "evt-1" || box.records[1].Aggregate != "lst-2" {
		t.Fatalf("unexpected records %+v", box.records)
	}
	rec := box.records[0]
	if rec.Name != "calendar.blocked" || !rec.OccurredAt.Equal(at) || rec.OccurredAt.Location() != time.UTC {
		t.Fatalf("unexpected record %+v", rec)
	}
	var payload heldEvent
	if err := json.Unmarshal(rec.Payload, &payload); err != nil || payload.Listing != "lst-1" {
		t.Fatalf("payload %s: %v", rec.Payload, err)
	}
}

func TestRecordDomainEventsNamesFailedEvent(t *testing.T) {
	full := errors.New("outbox full")
	err := RecordDomainEvents(context.Background(), &sliceOutbox{fail: full}, nil, []events.DomainEvent{heldEvent{Listing: "lst-9"}})
	if !errors.Is(err, full) || !strings.Contains(err.Error(), "calendar.blocked for lst-9") {
		t.Fatalf("unexpected error %v", err)
	}
	if err := RecordDomainEvents(context.Background(), nil, nil, []events.DomainEvent{heldEvent{}}); err != nil {
		t.Fatalf("nil outbox: %v", err)
	}
}
