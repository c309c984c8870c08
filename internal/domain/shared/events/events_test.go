package events

import (
	"testing"
	"time"
)

type testEvent struct{ name string }

func (e testEvent) EventName() string     { return e.name }
func (e testEvent) AggregateID() string   { return "agg-1" }
func (e testEvent) OccurredAt() time.Time { return time.Time{} }

func TestRecorderDrain(t *testing.T) {
	var r EventRecorder
	r.Record(testEvent{name: "a"})
	r.Record(nil)
	r.Record(testEvent{name: "b"})

	pending := r.PendingEvents()
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	drained := r.Drain()
	if len(drained) != 2 || drained[0].EventName() != "a" || drained[1].EventName() != "b" {
		t.Fatalf("drained = %+v", drained)
	}
	if len(r.PendingEvents()) != 0 {
		t.Fatalf("recorder not cleared after drain")
	}
}
