package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"bookingledger/internal/app/policies"
	"bookingledger/internal/domain/availability"
	"bookingledger/internal/domain/booking"
	"bookingledger/internal/domain/listings"
	"bookingledger/internal/domain/pricing"
	"bookingledger/internal/domain/reconciliation"
	"bookingledger/internal/domain/shared/daterange"
	"bookingledger/internal/domain/shared/events"
	"bookingledger/internal/domain/user"
)

const (
	DefaultCommitAttempts = 3
	defaultRecordTimeout  = 5 * time.Second
)

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Snapshot is the state a request is validated against. Host is nil when
// the host account is unknown to the ledger.
type Snapshot struct {
	Listing *listings.Listing
	Host    *user.User
}

type CommitParams struct {
	ListingID       listings.ListingID
	ExpectedVersion int64
	Availability    availability.Index
	Booking         *booking.Booking
	HostID          user.ID
}

// ListingStore loads listings and commits bookings against them. Commit
// fails with listings.ErrVersionConflict when the listing moved past
// ExpectedVersion.
type ListingStore interface {
	Load(ctx context.Context, id listings.ListingID) (Snapshot, error)
	Commit(ctx context.Context, params CommitParams) error
}

// ObligationRecorder persists a refund obligation together with any extra
// events describing why it was raised.
type ObligationRecorder interface {
	Record(ctx context.Context, obligation *reconciliation.Obligation, extra ...events.DomainEvent) error
}

type Config struct {
	HorizonDays    int
	CommitAttempts int
	FeePercent     int
	LoadTimeout    time.Duration
	ChargeTimeout  time.Duration
	CommitTimeout  time.Duration
	RecordTimeout  time.Duration
	RetryBackoff   time.Duration
}

type Deps struct {
	Store       ListingStore
	Charges     policies.ChargePort
	Obligations ObligationRecorder
	Clock       Clock
	Logger      *slog.Logger
	IDs         func() string
}

// Request asks to book Range on ListingID for RequesterID. BookingID is
// optional; when set it also keys the charge so a replayed request cannot
// charge twice.
type Request struct {
	ListingID     listings.ListingID
	RequesterID   string
	Range         daterange.DateRange
	PaymentSource string
	BookingID     booking.BookingID
}

// Coordinator runs the validate, charge, commit sequence of a reservation.
// It holds no lock while the charge is in flight; a concurrent booking is
// detected at commit time through the listing version.
type Coordinator struct {
	store       ListingStore
	charges     policies.ChargePort
	obligations ObligationRecorder
	clock       Clock
	logger      *slog.Logger
	ids         func() string
	validator   booking.Validator
	cfg         Config
}

func NewCoordinator(deps Deps, cfg Config) (*Coordinator, error) {
	if deps.Store == nil {
		return nil, errors.New("reservation: listing store required")
	}
	if deps.Charges == nil {
		return nil, errors.New("reservation: charge port required")
	}
	if deps.Obligations == nil {
		return nil, errors.New("reservation: obligation recorder required")
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.IDs == nil {
		deps.IDs = uuid.NewString
	}
	if cfg.CommitAttempts <= 0 {
		cfg.CommitAttempts = DefaultCommitAttempts
	}
	if cfg.RecordTimeout <= 0 {
		cfg.RecordTimeout = defaultRecordTimeout
	}
	if cfg.FeePercent < 0 || cfg.FeePercent > 100 {
		return nil, pricing.ErrInvalidFeeRate
	}
	return &Coordinator{
		store:       deps.Store,
		charges:     deps.Charges,
		obligations: deps.Obligations,
		clock:       deps.Clock,
		logger:      deps.Logger,
		ids:         deps.IDs,
		validator:   booking.Validator{HorizonDays: cfg.HorizonDays},
		cfg:         cfg,
	}, nil
}

// Reserve books req.Range or explains why it could not. The error is a
// *booking.ValidationError, *ChargeFailure or *CommitFailure, or a wrapped
// infrastructure error when the listing could not be loaded.
func (c *Coordinator) Reserve(ctx context.Context, req Request) (*booking.Booking, error) {
	bookingID := req.BookingID
	if bookingID == "" {
		bookingID = booking.BookingID(c.ids())
	}
	logger := c.logger.With(
		slog.String("listing_id", string(req.ListingID)),
		slog.String("guest_id", req.RequesterID),
		slog.String("booking_id", string(bookingID)),
		slog.String("range", req.Range.String()),
	)

	b, err := c.reserve(ctx, req, bookingID, logger)
	state := StateOf(err)
	switch state {
	case StateCommitted:
		logger.InfoContext(ctx, "reservation finished", slog.String("state", string(state)))
	case StateCommitFailed:
		logger.ErrorContext(ctx, "reservation finished", slog.String("state", string(state)), slog.Any("err", err))
	default:
		logger.WarnContext(ctx, "reservation finished", slog.String("state", string(state)), slog.Any("err", err))
	}
	return b, err
}

func (c *Coordinator) reserve(ctx context.Context, req Request, bookingID booking.BookingID, logger *slog.Logger) (*booking.Booking, error) {
	snap, err := c.load(ctx, req.ListingID)
	if err != nil {
		return nil, err
	}
	today := daterange.DateOf(c.clock.Now())
	if err := c.validate(req, snap, today); err != nil {
		return nil, err
	}
	quote, err := pricing.Quote(snap.Listing.NightlyRate, req.Range, c.cfg.FeePercent)
	if err != nil {
		if errors.Is(err, pricing.ErrInvalidPrice) || errors.Is(err, pricing.ErrCurrencyUnset) {
			return nil, &booking.ValidationError{Reason: booking.ReasonInvalidPrice}
		}
		return nil, err
	}
	logger.DebugContext(ctx, "reservation validated", slog.Int64("total", quote.Total.Amount))

	receipt, err := c.charge(ctx, req, snap, quote, bookingID)
	if err != nil {
		return nil, err
	}
	logger.DebugContext(ctx, "guest charged", slog.String("charge_ref", receipt.Reference))

	// Money has moved. The rest must finish even if the caller goes away.
	return c.commit(context.WithoutCancel(ctx), req, snap, today, quote, receipt, bookingID, logger)
}

func (c *Coordinator) load(ctx context.Context, id listings.ListingID) (Snapshot, error) {
	loadCtx, cancel := withTimeout(ctx, c.cfg.LoadTimeout)
	defer cancel()
	snap, err := c.store.Load(loadCtx, id)
	if err != nil {
		if errors.Is(err, listings.ErrListingNotFound) {
			return Snapshot{}, err
		}
		return Snapshot{}, fmt.Errorf("%w: %w", ErrListingUnavailable, err)
	}
	if snap.Listing == nil {
		return Snapshot{}, listings.ErrListingNotFound
	}
	return snap, nil
}

func (c *Coordinator) validate(req Request, snap Snapshot, today daterange.Date) error {
	return c.validator.Validate(booking.ValidationInput{
		RequesterID: req.RequesterID,
		HostID:      string(snap.Listing.Host),
		HostPayable: snap.Host.Payable(),
		Range:       req.Range,
		Today:       today,
		Index:       snap.Listing.Availability,
	})
}

func (c *Coordinator) charge(ctx context.Context, req Request, snap Snapshot, quote pricing.Breakdown, id booking.BookingID) (policies.ChargeReceipt, error) {
	chargeCtx, cancel := withTimeout(ctx, c.cfg.ChargeTimeout)
	defer cancel()
	receipt, err := c.charges.Charge(chargeCtx, policies.ChargeRequest{
		Amount:         quote.Total,
		ApplicationFee: quote.PlatformFee,
		Source:         req.PaymentSource,
		PayoutToken:    snap.Host.PayoutToken,
		IdempotencyKey: "charge-" + string(id),
		Description:    fmt.Sprintf("Booking %s for %s", req.ListingID, req.Range),
	})
	if err != nil {
		return policies.ChargeReceipt{}, &ChargeFailure{
			Err:      err,
			Declined: errors.Is(err, policies.ErrChargeDeclined),
			TimedOut: errors.Is(err, context.DeadlineExceeded),
		}
	}
	if receipt.Amount.IsZero() {
		receipt.Amount = quote.Total
	}
	return receipt, nil
}

// commit writes the booking, retrying on version conflicts. Every retry
// reloads the listing and re-runs validation with the date the request
// started on. The guest is never charged again.
func (c *Coordinator) commit(ctx context.Context, req Request, snap Snapshot, today daterange.Date, quote pricing.Breakdown, receipt policies.ChargeReceipt, id booking.BookingID, logger *slog.Logger) (*booking.Booking, error) {
	current := snap
	var lastErr error
	for attempt := 1; attempt <= c.cfg.CommitAttempts; attempt++ {
		if attempt > 1 {
			if err := c.backoff(ctx, attempt); err != nil {
				lastErr = err
				break
			}
			reloaded, err := c.load(ctx, req.ListingID)
			if err != nil {
				lastErr = err
				continue
			}
			current = reloaded
			if slices.Contains(current.Listing.BookingIDs, string(id)) {
				// An earlier attempt committed but its acknowledgement was lost.
				return c.rebuild(req, quote, receipt, id)
			}
			if err := c.validate(req, current, today); err != nil {
				return nil, c.fail(ctx, req, current, receipt, err, logger)
			}
		}

		next, err := current.Listing.Availability.WithRangeBooked(req.Range)
		if err != nil {
			var conflict *availability.DateConflictError
			if errors.As(err, &conflict) {
				err = &booking.ValidationError{Reason: booking.ReasonDateConflict, ConflictDate: conflict.Date}
			}
			return nil, c.fail(ctx, req, current, receipt, err, logger)
		}
		b, err := c.rebuild(req, quote, receipt, id)
		if err != nil {
			return nil, c.fail(ctx, req, current, receipt, err, logger)
		}

		commitCtx, cancel := withTimeout(ctx, c.cfg.CommitTimeout)
		err = c.store.Commit(commitCtx, CommitParams{
			ListingID:       req.ListingID,
			ExpectedVersion: current.Listing.Version,
			Availability:    next,
			Booking:         b,
			HostID:          user.ID(current.Listing.Host),
		})
		cancel()
		if err == nil {
			return b, nil
		}
		lastErr = err
		logger.WarnContext(ctx, "commit attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", c.cfg.CommitAttempts),
			slog.Any("err", err),
		)
	}
	return nil, c.fail(ctx, req, current, receipt, lastErr, logger)
}

func (c *Coordinator) rebuild(req Request, quote pricing.Breakdown, receipt policies.ChargeReceipt, id booking.BookingID) (*booking.Booking, error) {
	return booking.NewBooking(booking.CreateParams{
		ID:          id,
		ListingID:   req.ListingID,
		GuestID:     req.RequesterID,
		Range:       req.Range,
		Total:       receipt.Amount,
		PlatformFee: quote.PlatformFee,
		ChargeRef:   receipt.Reference,
		CreatedAt:   c.clock.Now(),
	})
}

// fail records the refund owed for a charge that produced no booking.
func (c *Coordinator) fail(ctx context.Context, req Request, snap Snapshot, receipt policies.ChargeReceipt, cause error, logger *slog.Logger) error {
	if cause == nil {
		cause = errors.New("reservation: commit attempts exhausted")
	}
	failure := &CommitFailure{Cause: cause}
	now := c.clock.Now()
	hostID, payout := "", ""
	if snap.Listing != nil {
		hostID = string(snap.Listing.Host)
	}
	if snap.Host != nil {
		payout = snap.Host.PayoutToken
	}
	obligation, err := reconciliation.NewObligation(reconciliation.CreateParams{
		ID:          reconciliation.ObligationID(c.ids()),
		ListingID:   string(req.ListingID),
		GuestID:     req.RequesterID,
		HostID:      hostID,
		Range:       req.Range,
		Amount:      receipt.Amount,
		ChargeRef:   receipt.Reference,
		PayoutToken: payout,
		Reason:      cause.Error(),
		Now:         now,
	})
	if err != nil {
		failure.RecordErr = err
		logger.ErrorContext(ctx, "refund obligation invalid", slog.String("charge_ref", receipt.Reference), slog.Any("err", err))
		return failure
	}
	failure.Obligation = obligation

	var extra []events.DomainEvent
	var vErr *booking.ValidationError
	if errors.As(cause, &vErr) && vErr.Reason == booking.ReasonDateConflict {
		extra = append(extra, availability.CalendarOverbookingPreventedEvent(string(req.ListingID), req.Range, vErr.ConflictDate, now))
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.RecordTimeout)
	defer cancel()
	if err := c.obligations.Record(recordCtx, obligation, extra...); err != nil {
		failure.RecordErr = err
		logger.ErrorContext(ctx, "refund obligation not recorded",
			slog.String("obligation_id", string(obligation.ID)),
			slog.String("charge_ref", receipt.Reference),
			slog.Int64("amount", receipt.Amount.Amount),
			slog.Any("err", err),
		)
	}
	return failure
}

func (c *Coordinator) backoff(ctx context.Context, attempt int) error {
	if c.cfg.RetryBackoff <= 0 {
		return ctx.Err()
	}
	delay := c.cfg.RetryBackoff * time.Duration(attempt-1)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
