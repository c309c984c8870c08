package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bookingledger/internal/domain/availability"
	domainlistings "bookingledger/internal/domain/listings"
)

// ErrConcurrentUpdate is returned when a write lost an optimistic race.
var ErrConcurrentUpdate = fmt.Errorf("mongo: concurrent update detected: %w", domainlistings.ErrVersionConflict)

type ListingRepository struct {
	col *mongo.Collection
}

func NewListingRepository(db *mongo.Database) *ListingRepository {
	return &ListingRepository{col: db.Collection("agg_listing")}
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	var doc listingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainlistings.ErrListingNotFound
		}
		return nil, err
	}
	return doc.toAggregate()
}

// Save upserts the listing guarded by its version. A stale version either
// matches nothing or collides with the existing _id on upsert.
func (r *ListingRepository) Save(ctx context.Context, l *domainlistings.Listing) error {
	doc := newListingDocument(l)
	filter := bson.M{"_id": doc.ID, "version": l.Version}
	doc.Version = l.Version + 1
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)
	res, err := r.col.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return conflictOr(err)
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return ErrConcurrentUpdate
	}
	l.Version = doc.Version
	return nil
}

type listingDocument struct {
	ID          string        `bson:"_id"`
	HostID      string        `bson:"host_id"`
	Title       string        `bson:"title"`
	City        string        `bson:"city"`
	NightlyRate moneyDocument `bson:"nightly_rate"`
	Index       indexDocument `bson:"bookings_index"`
	BookingIDs  []string      `bson:"booking_ids"`
	Version     int64         `bson:"version"`
	CreatedAt   time.Time     `bson:"created_at"`
	UpdatedAt   time.Time     `bson:"updated_at"`
}

func newListingDocument(l *domainlistings.Listing) listingDocument {
	return listingDocument{
		ID:          string(l.ID),
		HostID:      string(l.Host),
		Title:       l.Title,
		City:        l.City,
		NightlyRate: newMoneyDocument(l.NightlyRate),
		Index:       newIndexDocument(l.Availability.BookedDates()),
		BookingIDs:  append([]string{}, l.BookingIDs...),
		Version:     l.Version,
		CreatedAt:   l.CreatedAt.UTC(),
		UpdatedAt:   l.UpdatedAt.UTC(),
	}
}

func (d listingDocument) toAggregate() (*domainlistings.Listing, error) {
	dates, err := d.Index.dates()
	if err != nil {
		return nil, fmt.Errorf("mongo: listing %s bookings_index: %w", d.ID, err)
	}
	return &domainlistings.Listing{
		ID:           domainlistings.ListingID(d.ID),
		Host:         domainlistings.HostID(d.HostID),
		Title:        d.Title,
		City:         d.City,
		NightlyRate:  d.NightlyRate.toMoney(),
		Availability: availability.FromDates(dates...),
		BookingIDs:   d.BookingIDs,
		Version:      d.Version,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}, nil
}
