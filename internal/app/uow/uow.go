package uow

import (
	"context"
	"errors"

	"bookingledger/internal/app/outbox"
	domainbooking "bookingledger/internal/domain/booking"
	domainlistings "bookingledger/internal/domain/listings"
	domainreconciliation "bookingledger/internal/domain/reconciliation"
	domainuser "bookingledger/internal/domain/user"
)

// UnitOfWork groups repository writes that must commit together.
type UnitOfWork interface {
	Listings() domainlistings.Repository
	Bookings() domainbooking.Repository
	Users() domainuser.Repository
	Obligations() domainreconciliation.Repository
	Outbox() outbox.Outbox

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}

// Run executes fn inside a fresh unit and commits it when fn succeeds.
// Read only units are always rolled back.
func Run(ctx context.Context, factory UoWFactory, opts TxOptions, fn func(ctx context.Context, unit UnitOfWork) error) error {
	if factory == nil {
		return ErrUnitOfWorkMissing
	}
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return err
	}
	execCtx := Bind(ctx, unit)

	if err := fn(execCtx, unit); err != nil {
		if rbErr := unit.Rollback(execCtx); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	if opts.ReadOnly {
		return unit.Rollback(execCtx)
	}
	return unit.Commit(execCtx)
}
