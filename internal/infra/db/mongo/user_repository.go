package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bookingledger/internal/domain/shared/money"
	domainuser "bookingledger/internal/domain/user"
)

type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection("agg_user")}
}

func (r *UserRepository) ByID(ctx context.Context, id domainuser.ID) (*domainuser.User, error) {
	var doc userDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainuser.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *UserRepository) Save(ctx context.Context, u *domainuser.User) error {
	doc := newUserDocument(u)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

// AppendBooking upserts a bare guest record when the guest is unknown.
func (r *UserRepository) AppendBooking(ctx context.Context, id domainuser.ID, bookingID string) error {
	now := time.Now().UTC()
	update := bson.M{
		"$push":        bson.M{"booking_ids": bookingID},
		"$set":         bson.M{"updated_at": now},
		"$setOnInsert": bson.M{"created_at": now},
	}
	_, err := r.col.UpdateOne(ctx, bson.M{"_id": string(id)}, update, options.Update().SetUpsert(true))
	return err
}

// AddIncome increments the host's income, which must either be unset or
// already held in amount's currency.
func (r *UserRepository) AddIncome(ctx context.Context, id domainuser.ID, amount money.Money) error {
	filter := bson.M{
		"_id": string(id),
		"$or": bson.A{
			bson.M{"income.currency": amount.Currency},
			bson.M{"income.currency": ""},
			bson.M{"income.currency": bson.M{"$exists": false}},
		},
	}
	update := bson.M{
		"$inc": bson.M{"income.amount": amount.Amount},
		"$set": bson.M{"income.currency": amount.Currency, "updated_at": time.Now().UTC()},
	}
	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}
	if _, err := r.ByID(ctx, id); err != nil {
		return err
	}
	return money.ErrCurrencyMismatch
}

type userDocument struct {
	ID          string        `bson:"_id"`
	Name        string        `bson:"name"`
	PayoutToken string        `bson:"payout_token"`
	Income      moneyDocument `bson:"income"`
	BookingIDs  []string      `bson:"booking_ids"`
	CreatedAt   time.Time     `bson:"created_at"`
	UpdatedAt   time.Time     `bson:"updated_at"`
}

func newUserDocument(u *domainuser.User) userDocument {
	return userDocument{
		ID:          string(u.ID),
		Name:        u.Name,
		PayoutToken: u.PayoutToken,
		Income:      newMoneyDocument(u.Income),
		BookingIDs:  append([]string{}, u.BookingIDs...),
		CreatedAt:   u.CreatedAt.UTC(),
		UpdatedAt:   u.UpdatedAt.UTC(),
	}
}

func (d userDocument) toAggregate() *domainuser.User {
	return &domainuser.User{
		ID:          domainuser.ID(d.ID),
		Name:        d.Name,
		PayoutToken: d.PayoutToken,
		Income:      d.Income.toMoney(),
		BookingIDs:  d.BookingIDs,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}
