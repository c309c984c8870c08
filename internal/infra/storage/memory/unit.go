package memory

import (
	"context"
	"errors"

	appoutbox "bookingledger/internal/app/outbox"
	"bookingledger/internal/app/uow"
	domainbooking "bookingledger/internal/domain/booking"
	domainlistings "bookingledger/internal/domain/listings"
	domainreconciliation "bookingledger/internal/domain/reconciliation"
	"bookingledger/internal/domain/shared/money"
	domainuser "bookingledger/internal/domain/user"
)

var ErrUnitClosed = errors.New("memory: unit already committed or rolled back")

type stagedListing struct {
	listing  *domainlistings.Listing
	expected int64
}

type bookingAppend struct {
	id        domainuser.ID
	bookingID string
}

type incomeIncrement struct {
	id     domainuser.ID
	amount money.Money
}

// Unit stages writes against a Store. It is not safe for concurrent use.
type Unit struct {
	store    *Store
	readOnly bool
	closed   bool

	listings map[domainlistings.ListingID]stagedListing
	bookings []*domainbooking.Booking
	users    []*domainuser.User
	appends  []bookingAppend
	incomes  []incomeIncrement
	created  []*domainreconciliation.Obligation
	saved    []*domainreconciliation.Obligation
	records  []appoutbox.EventRecord
}

func (u *Unit) Listings() domainlistings.Repository          { return listingRepo{u} }
func (u *Unit) Bookings() domainbooking.Repository           { return bookingRepo{u} }
func (u *Unit) Users() domainuser.Repository                 { return userRepo{u} }
func (u *Unit) Obligations() domainreconciliation.Repository { return obligationRepo{u} }
func (u *Unit) Outbox() appoutbox.Outbox                     { return outboxRepo{u} }

func (u *Unit) Commit(context.Context) error {
	if u.closed {
		return ErrUnitClosed
	}
	u.closed = true
	if u.readOnly {
		return nil
	}
	return u.store.apply(u)
}

func (u *Unit) Rollback(context.Context) error {
	u.closed = true
	return nil
}

func (u *Unit) writable() error {
	if u.closed {
		return ErrUnitClosed
	}
	if u.readOnly {
		return ErrReadOnlyUnit
	}
	return nil
}

type listingRepo struct{ u *Unit }

func (r listingRepo) ByID(_ context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	if staged, ok := r.u.listings[id]; ok {
		return staged.listing.Copy(), nil
	}
	return r.u.store.listing(id)
}

func (r listingRepo) Save(_ context.Context, listing *domainlistings.Listing) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	expected := listing.Version
	if staged, ok := r.u.listings[listing.ID]; ok {
		if staged.listing.Version != listing.Version {
			return domainlistings.ErrVersionConflict
		}
		expected = staged.expected
	} else {
		current, err := r.u.store.listing(listing.ID)
		switch {
		case errors.Is(err, domainlistings.ErrListingNotFound):
			if listing.Version != 0 {
				return err
			}
		case err != nil:
			return err
		case current.Version != listing.Version:
			return domainlistings.ErrVersionConflict
		}
	}
	listing.Version++
	r.u.listings[listing.ID] = stagedListing{listing: listing.Copy(), expected: expected}
	return nil
}

type bookingRepo struct{ u *Unit }

func (r bookingRepo) ByID(_ context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	for _, b := range r.u.bookings {
		if b.ID == id {
			return copyBooking(b), nil
		}
	}
	return r.u.store.booking(id)
}

func (r bookingRepo) Create(ctx context.Context, b *domainbooking.Booking) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if _, err := r.ByID(ctx, b.ID); err == nil {
		return domainbooking.ErrDuplicate
	}
	r.u.bookings = append(r.u.bookings, copyBooking(b))
	return nil
}

func (r bookingRepo) ListByListing(_ context.Context, id domainlistings.ListingID, limit, offset int) ([]*domainbooking.Booking, int, error) {
	items, total := r.u.store.listBookings(id, limit, offset)
	return items, total, nil
}

func (r bookingRepo) ListByGuest(_ context.Context, guestID string, limit, offset int) ([]*domainbooking.Booking, int, error) {
	items, total := r.u.store.listGuestBookings(guestID, limit, offset)
	return items, total, nil
}

type userRepo struct{ u *Unit }

func (r userRepo) ByID(_ context.Context, id domainuser.ID) (*domainuser.User, error) {
	for i := len(r.u.users) - 1; i >= 0; i-- {
		if r.u.users[i].ID == id {
			return r.u.users[i].Copy(), nil
		}
	}
	return r.u.store.user(id)
}

func (r userRepo) Save(_ context.Context, usr *domainuser.User) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	r.u.users = append(r.u.users, usr.Copy())
	return nil
}

// AppendBooking creates a bare guest record when the guest is unknown.
func (r userRepo) AppendBooking(_ context.Context, id domainuser.ID, bookingID string) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	r.u.appends = append(r.u.appends, bookingAppend{id: id, bookingID: bookingID})
	return nil
}

func (r userRepo) AddIncome(ctx context.Context, id domainuser.ID, amount money.Money) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if _, err := r.ByID(ctx, id); err != nil {
		return err
	}
	r.u.incomes = append(r.u.incomes, incomeIncrement{id: id, amount: amount})
	return nil
}

type obligationRepo struct{ u *Unit }

func (r obligationRepo) ByID(_ context.Context, id domainreconciliation.ObligationID) (*domainreconciliation.Obligation, error) {
	for i := len(r.u.saved) - 1; i >= 0; i-- {
		if r.u.saved[i].ID == id {
			return copyObligation(r.u.saved[i]), nil
		}
	}
	for _, o := range r.u.created {
		if o.ID == id {
			return copyObligation(o), nil
		}
	}
	return r.u.store.obligation(id)
}

func (r obligationRepo) Create(ctx context.Context, o *domainreconciliation.Obligation) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if _, err := r.ByID(ctx, o.ID); err == nil {
		return errors.New("memory: obligation already exists")
	}
	r.u.created = append(r.u.created, copyObligation(o))
	return nil
}

func (r obligationRepo) Save(ctx context.Context, o *domainreconciliation.Obligation) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if _, err := r.ByID(ctx, o.ID); err != nil {
		return err
	}
	r.u.saved = append(r.u.saved, copyObligation(o))
	return nil
}

type outboxRepo struct{ u *Unit }

func (r outboxRepo) Add(_ context.Context, rec appoutbox.EventRecord) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	r.u.records = append(r.u.records, rec)
	return nil
}

var _ uow.UnitOfWork = (*Unit)(nil)
