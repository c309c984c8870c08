package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"

	appoutbox "bookingledger/internal/app/outbox"
	"bookingledger/internal/app/uow"
	domainbooking "bookingledger/internal/domain/booking"
	domainlistings "bookingledger/internal/domain/listings"
	domainreconciliation "bookingledger/internal/domain/reconciliation"
	domainuser "bookingledger/internal/domain/user"
)

// Factory wires Mongo transactions into the generic UnitOfWork interface.
type Factory struct {
	DB *mongo.Database

	ListingsRepo    domainlistings.Repository
	BookingsRepo    domainbooking.Repository
	UsersRepo       domainuser.Repository
	ObligationsRepo domainreconciliation.Repository
	OutboxStore     appoutbox.Outbox
}

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// NewFactory builds the repositories for db. outbox rows go to box.
func NewFactory(db *mongo.Database, box appoutbox.Outbox) Factory {
	return Factory{
		DB:              db,
		ListingsRepo:    NewListingRepository(db),
		BookingsRepo:    NewBookingRepository(db),
		UsersRepo:       NewUserRepository(db),
		ObligationsRepo: NewObligationRepository(db),
		OutboxStore:     box,
	}
}

// EnsureIndexes creates the indexes the booking and obligation queries rely on.
func (f Factory) EnsureIndexes(ctx context.Context) error {
	type indexed interface {
		EnsureIndexes(context.Context) error
	}
	for _, repo := range []any{f.BookingsRepo, f.ObligationsRepo} {
		if r, ok := repo.(indexed); ok {
			if err := r.EnsureIndexes(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// Begin starts a MongoDB session/transaction.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().SetReadConcern(readconcern.Snapshot()).SetWriteConcern(f.DB.WriteConcern())
	if opts.ReadOnly {
		txnOpts = txnOpts.SetReadConcern(readconcern.Majority())
	}
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Unit{
		session:     session,
		listings:    f.ListingsRepo,
		bookings:    f.BookingsRepo,
		users:       f.UsersRepo,
		obligations: f.ObligationsRepo,
		outbox:      f.OutboxStore,
	}, nil
}

type Unit struct {
	session mongo.Session

	listings    domainlistings.Repository
	bookings    domainbooking.Repository
	users       domainuser.Repository
	obligations domainreconciliation.Repository
	outbox      appoutbox.Outbox
}

func (u *Unit) Listings() domainlistings.Repository          { return u.listings }
func (u *Unit) Bookings() domainbooking.Repository           { return u.bookings }
func (u *Unit) Users() domainuser.Repository                 { return u.users }
func (u *Unit) Obligations() domainreconciliation.Repository { return u.obligations }
func (u *Unit) Outbox() appoutbox.Outbox                     { return u.outbox }

// Commit maps transaction write conflicts to ErrConcurrentUpdate so callers
// can retry them like a stale version.
func (u *Unit) Commit(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	if err := u.session.CommitTransaction(ctx); err != nil {
		return conflictOr(err)
	}
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

var _ uow.ContextInjector = (*Unit)(nil)

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

const transientTransactionLabel = "TransientTransactionError"

func conflictOr(err error) error {
	var labeled mongo.LabeledError
	if errors.As(err, &labeled) && labeled.HasErrorLabel(transientTransactionLabel) {
		return fmt.Errorf("%w: %v", ErrConcurrentUpdate, err)
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", ErrConcurrentUpdate, err)
	}
	return err
}

var _ uow.UoWFactory = Factory{}
