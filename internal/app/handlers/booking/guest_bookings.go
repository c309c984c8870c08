package booking

import (
	"context"
	"log/slog"
	"strings"

	"bookingledger/internal/app/dto"
	handlersupport "bookingledger/internal/app/handlers/support"
	"bookingledger/internal/app/queries"
	"bookingledger/internal/app/uow"
)

const listGuestBookingsKey = "me.bookings.list"

// ListGuestBookingsQuery pages the bookings made by the viewer.
type ListGuestBookingsQuery struct {
	ViewerIDV string
	Limit     int `validate:"gte=0"`
	Page      int `validate:"gte=0"`
}

func (q ListGuestBookingsQuery) Key() string { return listGuestBookingsKey }

func (q ListGuestBookingsQuery) ViewerID() string { return q.ViewerIDV }

type ListGuestBookingsHandler struct {
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
}

func (h *ListGuestBookingsHandler) Handle(ctx context.Context, q ListGuestBookingsQuery) (dto.BookingPage, error) {
	guestID := strings.TrimSpace(q.ViewerIDV)
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.BookingPage{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	limit, offset := handlersupport.Page(q.Limit, q.Page, defaultPageLimit, maxPageLimit)
	items, total, err := unit.Bookings().ListByGuest(execCtx, guestID, limit, offset)
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
		h.Logger.Debug("guest bookings listed", "guest_id", guestID, "count", len(page.Items), "total", total)
	}
	return page, nil
}

var _ queries.Handler[ListGuestBookingsQuery, dto.BookingPage] = (*ListGuestBookingsHandler)(nil)
