package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"bookingledger/internal/app/dto"
	handlersupport "bookingledger/internal/app/handlers/support"
	"bookingledger/internal/app/queries"
	"bookingledger/internal/app/uow"
	domainlistings "bookingledger/internal/domain/listings"
)

const (
	listListingBookingsKey = "listing.bookings.list"
	defaultPageLimit       = 20
	maxPageLimit           = 100
)

var ErrNotListingHost = errors.New("booking: only the listing host can see its bookings")

type ListListingBookingsQuery struct {
	ViewerIDV string
	ListingID string `validate:"required"`
	Limit     int    `validate:"gte=0"`
	Page      int    `validate:"gte=0"`
}

func (q ListListingBookingsQuery) Key() string { return listListingBookingsKey }

func (q ListListingBookingsQuery) ViewerID() string { return q.ViewerIDV }

type ListListingBookingsHandler struct {
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
}

func (h *ListListingBookingsHandler) Handle(ctx context.Context, q ListListingBookingsQuery) (dto.BookingPage, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.BookingPage{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	listing, err := unit.Listings().ByID(execCtx, domainlistings.ListingID(strings.TrimSpace(q.ListingID)))
	if err != nil {
		return dto.BookingPage{}, err
	}
	if string(listing.Host) != strings.TrimSpace(q.ViewerIDV) {
		return dto.BookingPage{}, ErrNotListingHost
	}

	limit, offset := handlersupport.Page(q.Limit, q.Page, defaultPageLimit, maxPageLimit)
	items, total, err := unit.Bookings().ListByListing(execCtx, listing.ID, limit, offset)
	if err != nil {
		return dto.BookingPage{}, err
	}
	page := dto.BookingPage{
		Items: make([]dto.Booking, 0, len(items)),
		Total: total,
		Page:  offset/limit + 1,
		Limit: limit,
	}
	for _, b := range items {
		page.Items = append(page.Items, dto.MapBooking(b))
	}
	if h.Logger != nil {
		h.Logger.Debug("listing bookings listed", "listing_id", listing.ID, "count", len(page.Items), "total", total)
	}
	return page, nil
}

var _ queries.Handler[ListListingBookingsQuery, dto.BookingPage] = (*ListListingBookingsHandler)(nil)
