package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "bookingledger/internal/domain/booking"
	"bookingledger/internal/domain/listings"
)

type BookingRepository struct {
	col *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	return &BookingRepository{col: db.Collection("agg_booking")}
}

func bookingIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "listing_id", Value: 1}, {Key: "range.check_in", Value: 1}}},
		{Keys: bson.D{{Key: "guest_id", Value: 1}, {Key: "range.check_in", Value: 1}}},
	}
}

func (r *BookingRepository) EnsureIndexes(ctx context.Context) error {
	if _, err := r.col.Indexes().CreateMany(ctx, bookingIndexes()); err != nil {
		return fmt.Errorf("agg_booking indexes: %w", err)
	}
	return nil
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, err
	}
	return doc.toAggregate()
}

// Create inserts a booking once. Bookings are never updated.
func (r *BookingRepository) Create(ctx context.Context, b *domainbooking.Booking) error {
	if _, err := r.col.InsertOne(ctx, newBookingDocument(b)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainbooking.ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *BookingRepository) ListByListing(ctx context.Context, listingID listings.ListingID, limit, offset int) ([]*domainbooking.Booking, int, error) {
	return r.list(ctx, bson.M{"listing_id": string(listingID)}, limit, offset)
}

func (r *BookingRepository) ListByGuest(ctx context.Context, guestID string, limit, offset int) ([]*domainbooking.Booking, int, error) {
	return r.list(ctx, bson.M{"guest_id": guestID}, limit, offset)
}

func (r *BookingRepository) list(ctx context.Context, filter bson.M, limit, offset int) ([]*domainbooking.Booking, int, error) {
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "range.check_in", Value: 1}, {Key: "_id", Value: 1}}).SetSkip(int64(offset))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)
	var docs []bookingDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	out := make([]*domainbooking.Booking, 0, len(docs))
	for _, doc := range docs {
		b, err := doc.toAggregate()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	return out, int(total), nil
}

type bookingDocument struct {
	ID          string        `bson:"_id"`
	ListingID   string        `bson:"listing_id"`
	GuestID     string        `bson:"guest_id"`
	Range       rangeDocument `bson:"range"`
	Total       moneyDocument `bson:"total"`
	PlatformFee moneyDocument `bson:"platform_fee"`
	ChargeRef   string        `bson:"charge_ref"`
	CreatedAt   time.Time     `bson:"created_at"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	return bookingDocument{
		ID:          string(b.ID),
		ListingID:   string(b.ListingID),
		GuestID:     b.GuestID,
		Range:       newRangeDocument(b.Range),
		Total:       newMoneyDocument(b.Total),
		PlatformFee: newMoneyDocument(b.PlatformFee),
		ChargeRef:   b.ChargeRef,
		CreatedAt:   b.CreatedAt.UTC(),
	}
}

func (d bookingDocument) toAggregate() (*domainbooking.Booking, error) {
	dr, err := d.Range.toRange()
	if err != nil {
		return nil, err
	}
	return &domainbooking.Booking{
		ID:          domainbooking.BookingID(d.ID),
		ListingID:   listings.ListingID(d.ListingID),
		GuestID:     d.GuestID,
		Range:       dr,
		Total:       d.Total.toMoney(),
		PlatformFee: d.PlatformFee.toMoney(),
		ChargeRef:   d.ChargeRef,
		CreatedAt:   d.CreatedAt.UTC(),
	}, nil
}
