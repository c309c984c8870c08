package memory

import (
	"context"
	"time"

	infraoutbox "bookingledger/internal/infra/outbox"
)

// Relay exposes committed outbox rows of a Store to the outbox worker.
type Relay struct {
	store *Store
}

func (s *Store) Relay() *Relay { return &Relay{store: s} }

func (r *Relay) Claim(_ context.Context, workerID string) (*infraoutbox.EventDocument, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, doc := range s.events {
		due := (doc.State == infraoutbox.StateNew || doc.State == infraoutbox.StateFailed) && !doc.NextAttempt.After(now)
		if !due {
			continue
		}
		doc.State = infraoutbox.StateClaimed
		doc.ClaimedBy = workerID
		doc.ClaimedAt = now
		claimed := *doc
		return &claimed, nil
	}
	return nil, nil
}

func (r *Relay) MarkSent(_ context.Context, id string) error {
	return r.update(id, func(doc *infraoutbox.EventDocument, now time.Time) {
		doc.State = infraoutbox.StateSent
		doc.SentAt = now
	})
}

func (r *Relay) MarkFailed(_ context.Context, id string, next time.Time, errMsg string) error {
	return r.update(id, func(doc *infraoutbox.EventDocument, _ time.Time) {
		doc.State = infraoutbox.StateFailed
		doc.NextAttempt = next
		doc.LastError = errMsg
		doc.Attempts++
	})
}

func (r *Relay) update(id string, fn func(doc *infraoutbox.EventDocument, now time.Time)) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range s.events {
		if doc.ID == id {
			fn(doc, s.now())
			return nil
		}
	}
	return nil
}

var _ infraoutbox.Source = (*Relay)(nil)
