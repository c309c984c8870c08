package pricing

import (
	"context"
	"errors"

	"bookingledger/internal/app/dto"
	handlersupport "bookingledger/internal/app/handlers/support"
	"bookingledger/internal/app/queries"
	"bookingledger/internal/app/uow"
	domainlistings "bookingledger/internal/domain/listings"
	domainpricing "bookingledger/internal/domain/pricing"
	"bookingledger/internal/domain/shared/daterange"
)

const (
	quoteKey = "pricing.quote"
	// MaxQuoteNights bounds the stay a single quote may price.
	MaxQuoteNights = 366
)

var ErrQuoteTooLong = errors.New("pricing: quoted stay too long")

type QuoteQuery struct {
	ListingID string         `validate:"required"`
	CheckIn   daterange.Date `validate:"required"`
	CheckOut  daterange.Date `validate:"required"`
}

func (q QuoteQuery) Key() string { return quoteKey }

// QuoteHandler prices a stay without charging. It also reports whether the
// dates are free right now, which may change before a reservation is made.
type QuoteHandler struct {
	UoWFactory uow.UoWFactory
	FeePercent int
}

func (h *QuoteHandler) Handle(ctx context.Context, q QuoteQuery) (dto.Quote, error) {
	r := daterange.DateRange{CheckIn: q.CheckIn, CheckOut: q.CheckOut}
	if err := r.Validate(); err != nil {
		return dto.Quote{}, err
	}
	if r.Nights() > MaxQuoteNights {
		return dto.Quote{}, ErrQuoteTooLong
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Quote{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	listing, err := unit.Listings().ByID(execCtx, domainlistings.ListingID(q.ListingID))
	if err != nil {
		return dto.Quote{}, err
	}
	breakdown, err := domainpricing.Quote(listing.NightlyRate, r, h.FeePercent)
	if err != nil {
		return dto.Quote{}, err
	}
	out := dto.MapQuote(string(listing.ID), r.CheckIn.String(), r.CheckOut.String(), breakdown)
	if d, conflict := listing.Availability.FirstConflict(r); conflict {
		out.Available = false
		out.ConflictDate = d.String()
	}
	return out, nil
}

var _ queries.Handler[QuoteQuery, dto.Quote] = (*QuoteHandler)(nil)
