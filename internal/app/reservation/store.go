package reservation

import (
	"context"
	"errors"

	"bookingledger/internal/app/outbox"
	"bookingledger/internal/app/uow"
	"bookingledger/internal/domain/listings"
	"bookingledger/internal/domain/reconciliation"
	"bookingledger/internal/domain/shared/events"
	"bookingledger/internal/domain/user"
)

// UnitStore implements ListingStore and ObligationRecorder on top of units
// of work, so every write and its outbox events share one transaction.
type UnitStore struct {
	Factory uow.UoWFactory
	Encoder outbox.EventEncoder
}

func (s *UnitStore) Load(ctx context.Context, id listings.ListingID) (Snapshot, error) {
	var snap Snapshot
	err := uow.Run(ctx, s.Factory, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		listing, err := unit.Listings().ByID(ctx, id)
		if err != nil {
			return err
		}
		host, err := unit.Users().ByID(ctx, user.ID(listing.Host))
		if err != nil && !errors.Is(err, user.ErrNotFound) {
			return err
		}
		snap = Snapshot{Listing: listing, Host: host}
		return nil
	})
	return snap, err
}

func (s *UnitStore) Commit(ctx context.Context, p CommitParams) error {
	if p.Booking == nil {
		return errors.New("reservation: booking required")
	}
	return uow.Run(ctx, s.Factory, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		listing, err := unit.Listings().ByID(ctx, p.ListingID)
		if err != nil {
			return err
		}
		if listing.Version != p.ExpectedVersion {
			return listings.ErrVersionConflict
		}
		b := p.Booking
		if err := listing.AttachBooking(p.Availability, b.Range, string(b.ID), b.CreatedAt); err != nil {
			return err
		}
		if err := unit.Listings().Save(ctx, listing); err != nil {
			return err
		}
		if err := unit.Bookings().Create(ctx, b); err != nil {
			return err
		}
		if err := unit.Users().AppendBooking(ctx, user.ID(b.GuestID), string(b.ID)); err != nil {
			return err
		}
		if err := unit.Users().AddIncome(ctx, p.HostID, b.Total); err != nil {
			return err
		}
		evs := append(b.Drain(), listing.Drain()...)
		return outbox.RecordDomainEvents(ctx, unit.Outbox(), s.encoder(), evs)
	})
}

func (s *UnitStore) Record(ctx context.Context, o *reconciliation.Obligation, extra ...events.DomainEvent) error {
	if o == nil {
		return errors.New("reservation: obligation required")
	}
	return uow.Run(ctx, s.Factory, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		if err := unit.Obligations().Create(ctx, o); err != nil {
			return err
		}
		evs := append(o.Drain(), extra...)
		return outbox.RecordDomainEvents(ctx, unit.Outbox(), s.encoder(), evs)
	})
}

func (s *UnitStore) encoder() outbox.EventEncoder {
	if s.Encoder != nil {
		return s.Encoder
	}
	return outbox.JSONEventEncoder{}
}

var (
	_ ListingStore       = (*UnitStore)(nil)
	_ ObligationRecorder = (*UnitStore)(nil)
)
