package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	domainreconciliation "bookingledger/internal/domain/reconciliation"
)

var ErrObligationExists = errors.New("mongo: obligation already exists")

type ObligationRepository struct {
	col *mongo.Collection
}

func NewObligationRepository(db *mongo.Database) *ObligationRepository {
	return &ObligationRepository{col: db.Collection("ledger_obligations")}
}

func (r *ObligationRepository) EnsureIndexes(ctx context.Context) error {
	idx := mongo.IndexModel{Keys: bson.D{{Key: "state", Value: 1}, {Key: "updated_at", Value: 1}}}
	if _, err := r.col.Indexes().CreateOne(ctx, idx); err != nil {
		return fmt.Errorf("ledger_obligations indexes: %w", err)
	}
	return nil
}

func (r *ObligationRepository) ByID(ctx context.Context, id domainreconciliation.ObligationID) (*domainreconciliation.Obligation, error) {
	var doc obligationDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainreconciliation.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate()
}

func (r *ObligationRepository) Create(ctx context.Context, o *domainreconciliation.Obligation) error {
	if _, err := r.col.InsertOne(ctx, newObligationDocument(o)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrObligationExists
		}
		return err
	}
	return nil
}

func (r *ObligationRepository) Save(ctx context.Context, o *domainreconciliation.Obligation) error {
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": string(o.ID)}, newObligationDocument(o))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domainreconciliation.ErrNotFound
	}
	return nil
}

type obligationDocument struct {
	ID          string        `bson:"_id"`
	ListingID   string        `bson:"listing_id"`
	GuestID     string        `bson:"guest_id"`
	HostID      string        `bson:"host_id"`
	Range       rangeDocument `bson:"range"`
	Amount      moneyDocument `bson:"amount"`
	ChargeRef   string        `bson:"charge_ref"`
	PayoutToken string        `bson:"payout_token"`
	Reason      string        `bson:"reason"`
	State       string        `bson:"state"`
	Attempts    int           `bson:"attempts"`
	LastError   string        `bson:"last_error,omitempty"`
	CreatedAt   time.Time     `bson:"created_at"`
	UpdatedAt   time.Time     `bson:"updated_at"`
}

func newObligationDocument(o *domainreconciliation.Obligation) obligationDocument {
	return obligationDocument{
		ID:          string(o.ID),
		ListingID:   o.ListingID,
		GuestID:     o.GuestID,
		HostID:      o.HostID,
		Range:       newRangeDocument(o.Range),
		Amount:      newMoneyDocument(o.Amount),
		ChargeRef:   o.ChargeRef,
		PayoutToken: o.PayoutToken,
		Reason:      o.Reason,
		State:       string(o.State),
		Attempts:    o.Attempts,
		LastError:   o.LastError,
		CreatedAt:   o.CreatedAt.UTC(),
		UpdatedAt:   o.UpdatedAt.UTC(),
	}
}

func (d obligationDocument) toAggregate() (*domainreconciliation.Obligation, error) {
	dr, err := d.Range.toRange()
	if err != nil {
		return nil, err
	}
	return &domainreconciliation.Obligation{
		ID:          domainreconciliation.ObligationID(d.ID),
		ListingID:   d.ListingID,
		GuestID:     d.GuestID,
		HostID:      d.HostID,
		Range:       dr,
		Amount:      d.Amount.toMoney(),
		ChargeRef:   d.ChargeRef,
		PayoutToken: d.PayoutToken,
		Reason:      d.Reason,
		State:       domainreconciliation.State(d.State),
		Attempts:    d.Attempts,
		LastError:   d.LastError,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}, nil
}
