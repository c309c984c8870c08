package availability

import (
	"context"
	"errors"

	"bookingledger/internal/app/dto"
	handlersupport "bookingledger/internal/app/handlers/support"
	"bookingledger/internal/app/queries"
	"bookingledger/internal/app/uow"
	domainlistings "bookingledger/internal/domain/listings"
	"bookingledger/internal/domain/shared/daterange"
)

const (
	getCalendarKey = "availability.calendar"
	// MaxWindowDays bounds a single calendar request.
	MaxWindowDays = 366
)

var ErrWindowTooLarge = errors.New("availability: calendar window too large")

type GetCalendarQuery struct {
	ListingID string `validate:"required"`
	From      daterange.Date
	To        daterange.Date
}

func (q GetCalendarQuery) Key() string { return getCalendarKey }

type GetCalendarHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetCalendarHandler) Handle(ctx context.Context, q GetCalendarQuery) (dto.Calendar, error) {
	window := daterange.DateRange{CheckIn: q.From, CheckOut: q.To}
	if err := window.Validate(); err != nil {
		return dto.Calendar{}, err
	}
	if window.Nights() > MaxWindowDays {
		return dto.Calendar{}, ErrWindowTooLarge
	}

	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Calendar{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	listing, err := unit.Listings().ByID(execCtx, domainlistings.ListingID(q.ListingID))
	if err != nil {
		return dto.Calendar{}, err
	}
	return dto.MapCalendar(string(listing.ID), window, listing.Availability), nil
}

var _ queries.Handler[GetCalendarQuery, dto.Calendar] = (*GetCalendarHandler)(nil)
