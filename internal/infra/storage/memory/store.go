package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	appoutbox "bookingledger/internal/app/outbox"
	"bookingledger/internal/app/uow"
	domainbooking "bookingledger/internal/domain/booking"
	domainlistings "bookingledger/internal/domain/listings"
	domainreconciliation "bookingledger/internal/domain/reconciliation"
	"bookingledger/internal/domain/shared/money"
	domainuser "bookingledger/internal/domain/user"
	infraoutbox "bookingledger/internal/infra/outbox"
)

var ErrReadOnlyUnit = errors.New("memory: write in read only unit")

// Store keeps all ledger state in process. Units stage their writes and
// apply them atomically at commit, re-checking listing versions under the
// store lock, so concurrent reservations behave like they do on MongoDB.
type Store struct {
	mu          sync.RWMutex
	listings    map[domainlistings.ListingID]*domainlistings.Listing
	bookings    map[domainbooking.BookingID]*domainbooking.Booking
	byListing   map[domainlistings.ListingID][]domainbooking.BookingID
	users       map[domainuser.ID]*domainuser.User
	obligations map[domainreconciliation.ObligationID]*domainreconciliation.Obligation
	events      []*infraoutbox.EventDocument
	now         func() time.Time
}

func NewStore() *Store {
	return &Store{
		listings:    make(map[domainlistings.ListingID]*domainlistings.Listing),
		bookings:    make(map[domainbooking.BookingID]*domainbooking.Booking),
		byListing:   make(map[domainlistings.ListingID][]domainbooking.BookingID),
		users:       make(map[domainuser.ID]*domainuser.User),
		obligations: make(map[domainreconciliation.ObligationID]*domainreconciliation.Obligation),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// PutListing seeds a listing outside any unit, keeping its version.
func (s *Store) PutListing(listing *domainlistings.Listing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	listing.ClearEvents()
	s.listings[listing.ID] = listing.Copy()
}

// PutUser seeds a user outside any unit.
func (s *Store) PutUser(u *domainuser.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u.Copy()
}

func (s *Store) Begin(_ context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	return &Unit{
		store:    s,
		readOnly: opts.ReadOnly,
		listings: make(map[domainlistings.ListingID]stagedListing),
	}, nil
}

// Ping reports the store as always reachable.
func (s *Store) Ping(context.Context) error { return nil }

// Events returns a copy of every outbox row in commit order.
func (s *Store) Events() []infraoutbox.EventDocument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]infraoutbox.EventDocument, len(s.events))
	for i, doc := range s.events {
		out[i] = *doc
	}
	return out
}

func (s *Store) listing(id domainlistings.ListingID) (*domainlistings.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.listings[id]
	if !ok {
		return nil, domainlistings.ErrListingNotFound
	}
	return l.Copy(), nil
}

func (s *Store) user(id domainuser.ID) (*domainuser.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domainuser.ErrNotFound
	}
	return u.Copy(), nil
}

func (s *Store) booking(id domainbooking.BookingID) (*domainbooking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, domainbooking.ErrBookingNotFound
	}
	return copyBooking(b), nil
}

func (s *Store) listBookings(id domainlistings.ListingID, limit, offset int) ([]*domainbooking.Booking, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byListing[id]
	items := make([]*domainbooking.Booking, 0, len(ids))
	for _, bid := range ids {
		items = append(items, copyBooking(s.bookings[bid]))
	}
	return pageBookings(items, limit, offset)
}

func (s *Store) listGuestBookings(guestID string, limit, offset int) ([]*domainbooking.Booking, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []*domainbooking.Booking
	for _, b := range s.bookings {
		if b.GuestID == guestID {
			items = append(items, copyBooking(b))
		}
	}
	return pageBookings(items, limit, offset)
}

// pageBookings orders by check-in then id, matching the mongo sort.
func pageBookings(items []*domainbooking.Booking, limit, offset int) ([]*domainbooking.Booking, int) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].Range.CheckIn.Equal(items[j].Range.CheckIn) {
			return items[i].Range.CheckIn.Before(items[j].Range.CheckIn)
		}
		return items[i].ID < items[j].ID
	})
	total := len(items)
	if offset >= total {
		return nil, total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return items[offset:end], total
}

func (s *Store) obligation(id domainreconciliation.ObligationID) (*domainreconciliation.Obligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.obligations[id]
	if !ok {
		return nil, domainreconciliation.ErrNotFound
	}
	return copyObligation(o), nil
}

// apply commits a unit. Nothing is written unless every check passes.
func (s *Store) apply(u *Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, staged := range u.listings {
		current, ok := s.listings[id]
		if !ok {
			if staged.expected != 0 {
				return domainlistings.ErrListingNotFound
			}
			continue
		}
		if current.Version != staged.expected {
			return domainlistings.ErrVersionConflict
		}
	}
	for _, b := range u.bookings {
		if _, exists := s.bookings[b.ID]; exists {
			return domainbooking.ErrDuplicate
		}
	}
	for _, inc := range u.incomes {
		host, ok := s.users[inc.id]
		if !ok {
			return domainuser.ErrNotFound
		}
		if host.Income.Currency != "" && host.Income.Currency != inc.amount.Currency {
			return money.ErrCurrencyMismatch
		}
	}
	for _, o := range u.created {
		if _, exists := s.obligations[o.ID]; exists {
			return errors.New("memory: obligation already exists")
		}
	}

	now := s.now()
	for id, staged := range u.listings {
		s.listings[id] = staged.listing.Copy()
	}
	for _, b := range u.bookings {
		s.bookings[b.ID] = copyBooking(b)
		s.byListing[b.ListingID] = append(s.byListing[b.ListingID], b.ID)
	}
	for _, usr := range u.users {
		s.users[usr.ID] = usr.Copy()
	}
	for _, app := range u.appends {
		guest, ok := s.users[app.id]
		if !ok {
			guest = &domainuser.User{ID: app.id, CreatedAt: now}
			s.users[app.id] = guest
		}
		guest.BookingIDs = append(guest.BookingIDs, app.bookingID)
		guest.UpdatedAt = now
	}
	for _, inc := range u.incomes {
		host := s.users[inc.id]
		if host.Income.Currency == "" {
			host.Income = money.Zero(inc.amount.Currency)
		}
		host.Income.Amount += inc.amount.Amount
		host.UpdatedAt = now
	}
	for _, o := range u.created {
		s.obligations[o.ID] = copyObligation(o)
	}
	for _, o := range u.saved {
		s.obligations[o.ID] = copyObligation(o)
	}
	for _, rec := range u.records {
		doc := infraoutbox.NewDocument(rec, now)
		s.events = append(s.events, &doc)
	}
	return nil
}

func copyBooking(b *domainbooking.Booking) *domainbooking.Booking {
	return &domainbooking.Booking{
		ID:          b.ID,
		ListingID:   b.ListingID,
		GuestID:     b.GuestID,
		Range:       b.Range,
		Total:       b.Total,
		PlatformFee: b.PlatformFee,
		ChargeRef:   b.ChargeRef,
		CreatedAt:   b.CreatedAt,
	}
}

func copyObligation(o *domainreconciliation.Obligation) *domainreconciliation.Obligation {
	return &domainreconciliation.Obligation{
		ID:          o.ID,
		ListingID:   o.ListingID,
		GuestID:     o.GuestID,
		HostID:      o.HostID,
		Range:       o.Range,
		Amount:      o.Amount,
		ChargeRef:   o.ChargeRef,
		PayoutToken: o.PayoutToken,
		Reason:      o.Reason,
		State:       o.State,
		Attempts:    o.Attempts,
		LastError:   o.LastError,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}

var _ uow.UoWFactory = (*Store)(nil)
var _ appoutbox.Outbox = (*outboxRepo)(nil)
