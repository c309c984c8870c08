package booking

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"bookingledger/internal/app/commands"
	"bookingledger/internal/app/dto"
	"bookingledger/internal/app/middleware"
	"bookingledger/internal/app/reservation"
	domainbooking "bookingledger/internal/domain/booking"
	domainlistings "bookingledger/internal/domain/listings"
	"bookingledger/internal/domain/shared/daterange"
)

const reserveBookingKey = "booking.reserve"

// bookingNamespace scopes booking ids derived from idempotency keys.
var bookingNamespace = uuid.MustParse("6f1c9a7e-2b0d-4f57-9c1e-5a3d8b2e4f10")

type ReserveCommand struct {
	RequesterID     string         `validate:"required"`
	ListingID       string         `validate:"required"`
	Source          string         `validate:"required"`
	CheckIn         daterange.Date `validate:"required"`
	CheckOut        daterange.Date `validate:"required"`
	IdempotencyKeyV string         `validate:"omitempty,max=255"`
}

func (c ReserveCommand) Key() string { return reserveBookingKey }

func (c ReserveCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c ReserveCommand) ResultPrototype() any { return &dto.Booking{} }

func (c ReserveCommand) ViewerID() string { return c.RequesterID }

// Reserver is satisfied by *reservation.Coordinator.
type Reserver interface {
	Reserve(ctx context.Context, req reservation.Request) (*domainbooking.Booking, error)
}

type ReserveHandler struct {
	Reservations Reserver
}

func (h *ReserveHandler) Handle(ctx context.Context, cmd ReserveCommand) (*dto.Booking, error) {
	b, err := h.Reservations.Reserve(ctx, reservation.Request{
		ListingID:     domainlistings.ListingID(strings.TrimSpace(cmd.ListingID)),
		RequesterID:   strings.TrimSpace(cmd.RequesterID),
		Range:         daterange.DateRange{CheckIn: cmd.CheckIn, CheckOut: cmd.CheckOut},
		PaymentSource: cmd.Source,
		BookingID:     bookingIDFor(cmd),
	})
	if err != nil {
		return nil, err
	}
	out := dto.MapBooking(b)
	return &out, nil
}

// bookingIDFor derives a stable id from the idempotency key so a retried
// request reuses the charge key of the first attempt.
func bookingIDFor(cmd ReserveCommand) domainbooking.BookingID {
	if cmd.IdempotencyKeyV == "" {
		return ""
	}
	id := uuid.NewSHA1(bookingNamespace, []byte(cmd.RequesterID+"\x00"+cmd.IdempotencyKeyV))
	return domainbooking.BookingID(id.String())
}

var (
	_ commands.Handler[ReserveCommand, *dto.Booking] = (*ReserveHandler)(nil)
	_ middleware.IdempotentCommand                   = ReserveCommand{}
	_ middleware.ViewerScoped                        = ReserveCommand{}
)
