package reservation_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"bookingledger/internal/app/policies"
	"bookingledger/internal/app/reservation"
	"bookingledger/internal/app/uow"
	"bookingledger/internal/domain/booking"
	"bookingledger/internal/domain/listings"
	"bookingledger/internal/domain/reconciliation"
	"bookingledger/internal/domain/shared/daterange"
	"bookingledger/internal/domain/shared/events"
	"bookingledger/internal/domain/shared/money"
	"bookingledger/internal/domain/user"
	"bookingledger/internal/infra/storage/memory"
)

var now = time.Date(2030, time.January, 10, 15, 30, 0, 0, time.UTC)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fixture struct {
	store    *memory.Store
	payments *memory.Payments
	units    *reservation.UnitStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    memory.NewStore(),
		payments: memory.NewPayments(),
	}
	f.units = &reservation.UnitStore{Factory: f.store}
	f.addHost(t, "host-1", "acct_host_1")
	f.addListing(t, "lst-1", "host-1", 8000)
	return f
}

func (f *fixture) addHost(t *testing.T, id, payout string) {
	t.Helper()
	u, err := user.NewUser(user.CreateParams{ID: user.ID(id), Name: "Host " + id, PayoutToken: payout, Currency: "USD", CreatedAt: now})
	if err != nil {
		t.Fatalf("new user: %v", err)
	}
	f.store.PutUser(u)
}

func (f *fixture) addListing(t *testing.T, id, host string, rate int64, booked ...daterange.Date) {
	t.Helper()
	l, err := listings.NewListing(listings.CreateListingParams{
		ID:          listings.ListingID(id),
		Host:        listings.HostID(host),
		Title:       "Cabin " + id,
		NightlyRate: money.Money{Amount: rate, Currency: "USD"},
		Booked:      booked,
		Now:         now,
	})
	if err != nil {
		t.Fatalf("new listing: %v", err)
	}
	f.store.PutListing(l)
}

func (f *fixture) coordinator(t *testing.T, mutate ...func(*reservation.Deps, *reservation.Config)) *reservation.Coordinator {
	t.Helper()
	deps := reservation.Deps{
		Store:       f.units,
		Charges:     f.payments,
		Obligations: f.units,
		Clock:       fixedClock{t: now},
		Logger:      slog.New(slog.DiscardHandler),
	}
	cfg := reservation.Config{FeePercent: 5}
	for _, m := range mutate {
		m(&deps, &cfg)
	}
	c, err := reservation.NewCoordinator(deps, cfg)
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	return c
}

func (f *fixture) listing(t *testing.T, id string) *listings.Listing {
	t.Helper()
	var out *listings.Listing
	err := uow.Run(context.Background(), f.store, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		l, err := unit.Listings().ByID(ctx, listings.ListingID(id))
		out = l
		return err
	})
	if err != nil {
		t.Fatalf("load listing: %v", err)
	}
	return out
}

func (f *fixture) user(t *testing.T, id string) *user.User {
	t.Helper()
	var out *user.User
	err := uow.Run(context.Background(), f.store, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		u, err := unit.Users().ByID(ctx, user.ID(id))
		out = u
		return err
	})
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	return out
}

func (f *fixture) eventNames() []string {
	var names []string
	for _, doc := range f.store.Events() {
		names = append(names, doc.Name)
	}
	return names
}

func stay(in, out string) daterange.DateRange {
	return daterange.DateRange{CheckIn: daterange.MustDate(in), CheckOut: daterange.MustDate(out)}
}

func request(guest string, r daterange.DateRange) reservation.Request {
	return reservation.Request{ListingID: "lst-1", RequesterID: guest, Range: r, PaymentSource: "tok_visa"}
}

func TestReserveCommitsBooking(t *testing.T) {
	f := newFixture(t)
	c := f.coordinator(t)

	b, err := c.Reserve(context.Background(), request("guest-1", stay("2030-01-11", "2030-01-13")))
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if b.Total.Amount != 24000 || b.PlatformFee.Amount != 1200 {
		t.Fatalf("unexpected amounts total=%d fee=%d", b.Total.Amount, b.PlatformFee.Amount)
	}
	if b.ChargeRef == "" {
		t.Fatal("expected charge reference on booking")
	}

	l := f.listing(t, "lst-1")
	for _, d := range b.Range.Days() {
		if !l.Availability.IsBooked(d) {
			t.Fatalf("expected %s booked", d)
		}
	}
	if l.Availability.BookedNights() != 3 {
		t.Fatalf("expected 3 booked nights, got %d", l.Availability.BookedNights())
	}
	if l.Version != 1 || len(l.BookingIDs) != 1 || l.BookingIDs[0] != string(b.ID) {
		t.Fatalf("unexpected listing state version=%d ids=%v", l.Version, l.BookingIDs)
	}
	if host := f.user(t, "host-1"); host.Income.Amount != 24000 {
		t.Fatalf("expected host income 24000, got %d", host.Income.Amount)
	}
	if guest := f.user(t, "guest-1"); len(guest.BookingIDs) != 1 {
		t.Fatalf("expected guest booking recorded, got %v", guest.BookingIDs)
	}

	charges := f.payments.Charges()
	if len(charges) != 1 {
		t.Fatalf("expected exactly one charge, got %d", len(charges))
	}
	req := charges[0].Request
	if req.ApplicationFee.Amount != 1200 || req.PayoutToken != "acct_host_1" {
		t.Fatalf("unexpected charge request %+v", req)
	}

	names := f.eventNames()
	if len(names) != 2 || names[0] != "booking.committed" || names[1] != "calendar.blocked" {
		t.Fatalf("unexpected outbox events %v", names)
	}
}

func TestReserveRejectsBeforeCharging(t *testing.T) {
	cases := []struct {
		name   string
		guest  string
		stay   daterange.DateRange
		setup  func(t *testing.T, f *fixture)
		reason booking.Reason
	}{
		{name: "reversed range", guest: "guest-1", stay: stay("2030-01-14", "2030-01-12"), reason: booking.ReasonInvalidRange},
		{name: "self booking", guest: "host-1", stay: stay("2030-01-11", "2030-01-12"), reason: booking.ReasonSelfBooking},
		{
			name:  "host not payable",
			guest: "guest-1",
			stay:  stay("2030-01-11", "2030-01-12"),
			setup: func(t *testing.T, f *fixture) {
				f.addHost(t, "host-1", "")
			},
			reason: booking.ReasonHostNotPayable,
		},
		{name: "check in yesterday", guest: "guest-1", stay: stay("2030-01-09", "2030-01-12"), reason: booking.ReasonCheckInInPast},
		{name: "beyond horizon", guest: "guest-1", stay: stay("2030-04-05", "2030-04-12"), reason: booking.ReasonBeyondHorizon},
		{
			name:  "overlaps existing booking",
			guest: "guest-1",
			stay:  stay("2030-01-11", "2030-01-13"),
			setup: func(t *testing.T, f *fixture) {
				f.addListing(t, "lst-1", "host-1", 8000, daterange.MustDate("2030-01-13"))
			},
			reason: booking.ReasonDateConflict,
		},
		{
			name:  "listing without price",
			guest: "guest-1",
			stay:  stay("2030-01-11", "2030-01-12"),
			setup: func(t *testing.T, f *fixture) {
				l := f.listing(t, "lst-1")
				l.NightlyRate = money.Money{Amount: 0, Currency: "USD"}
				f.store.PutListing(l)
			},
			reason: booking.ReasonInvalidPrice,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			if tc.setup != nil {
				tc.setup(t, f)
			}
			before := f.listing(t, "lst-1")
			_, err := f.coordinator(t).Reserve(context.Background(), request(tc.guest, tc.stay))
			if !booking.Rejected(err, tc.reason) {
				t.Fatalf("expected %s rejection, got %v", tc.reason, err)
			}
			if got := reservation.StateOf(err); got != reservation.StateRejected {
				t.Fatalf("expected REJECTED state, got %s", got)
			}
			if n := len(f.payments.Charges()); n != 0 {
				t.Fatalf("expected no charge, got %d", n)
			}
			if after := f.listing(t, "lst-1"); !after.Availability.Equal(before.Availability) || after.Version != before.Version {
				t.Fatal("listing changed after rejection")
			}
		})
	}
}

func TestReserveConflictReportsFirstBookedDate(t *testing.T) {
	f := newFixture(t)
	f.addListing(t, "lst-1", "host-1", 8000, daterange.MustDate("2030-01-14"), daterange.MustDate("2030-01-12"))

	_, err := f.coordinator(t).Reserve(context.Background(), request("guest-1", stay("2030-01-11", "2030-01-15")))
	var vErr *booking.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if vErr.ConflictDate != daterange.MustDate("2030-01-12") {
		t.Fatalf("expected first conflict 2030-01-12, got %s", vErr.ConflictDate)
	}
}

func TestReserveUnknownListing(t *testing.T) {
	f := newFixture(t)
	req := request("guest-1", stay("2030-01-11", "2030-01-12"))
	req.ListingID = "missing"
	_, err := f.coordinator(t).Reserve(context.Background(), req)
	if !errors.Is(err, listings.ErrListingNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if reservation.StateOf(err) != reservation.StateFailed {
		t.Fatalf("expected FAILED state, got %s", reservation.StateOf(err))
	}
}

func TestReserveChargeDeclinedLeavesIndexUnchanged(t *testing.T) {
	f := newFixture(t)
	req := request("guest-1", stay("2030-01-11", "2030-01-13"))
	req.PaymentSource = memory.DeclinedSource

	_, err := f.coordinator(t).Reserve(context.Background(), req)
	var chargeErr *reservation.ChargeFailure
	if !errors.As(err, &chargeErr) || !chargeErr.Declined {
		t.Fatalf("expected declined charge failure, got %v", err)
	}
	if !errors.Is(err, policies.ErrChargeDeclined) {
		t.Fatal("expected charge failure to wrap ErrChargeDeclined")
	}
	l := f.listing(t, "lst-1")
	if l.Availability.BookedNights() != 0 || l.Version != 0 {
		t.Fatalf("listing changed after failed charge: nights=%d version=%d", l.Availability.BookedNights(), l.Version)
	}
	if len(f.eventNames()) != 0 {
		t.Fatalf("expected no events, got %v", f.eventNames())
	}
}

type blockingCharges struct{}

func (blockingCharges) Charge(ctx context.Context, _ policies.ChargeRequest) (policies.ChargeReceipt, error) {
	<-ctx.Done()
	return policies.ChargeReceipt{}, ctx.Err()
}

func TestReserveChargeTimeoutIsChargeFailure(t *testing.T) {
	f := newFixture(t)
	c := f.coordinator(t, func(d *reservation.Deps, cfg *reservation.Config) {
		d.Charges = blockingCharges{}
		cfg.ChargeTimeout = 10 * time.Millisecond
	})
	_, err := c.Reserve(context.Background(), request("guest-1", stay("2030-01-11", "2030-01-12")))
	var chargeErr *reservation.ChargeFailure
	if !errors.As(err, &chargeErr) || !chargeErr.TimedOut {
		t.Fatalf("expected timed out charge failure, got %v", err)
	}
	if f.listing(t, "lst-1").Availability.BookedNights() != 0 {
		t.Fatal("index changed after charge timeout")
	}
}

// hookedStore runs beforeCommit ahead of each commit attempt and can
// override the commit result.
type hookedStore struct {
	*reservation.UnitStore
	mu           sync.Mutex
	attempts     int
	beforeCommit func(attempt int)
	afterCommit  func(attempt int, err error) error
}

func (s *hookedStore) Commit(ctx context.Context, p reservation.CommitParams) error {
	s.mu.Lock()
	s.attempts++
	attempt := s.attempts
	s.mu.Unlock()
	if s.beforeCommit != nil {
		s.beforeCommit(attempt)
	}
	err := s.UnitStore.Commit(ctx, p)
	if s.afterCommit != nil {
		return s.afterCommit(attempt, err)
	}
	return err
}

func bumpVersion(t *testing.T, f *fixture) {
	t.Helper()
	err := uow.Run(context.Background(), f.store, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		l, err := unit.Listings().ByID(ctx, "lst-1")
		if err != nil {
			return err
		}
		if err := l.ChangeRate(money.Money{Amount: 9000, Currency: "USD"}, now); err != nil {
			return err
		}
		return unit.Listings().Save(ctx, l)
	})
	if err != nil {
		t.Fatalf("bump version: %v", err)
	}
}

func TestReserveRetriesAfterVersionConflictWithoutRecharging(t *testing.T) {
	f := newFixture(t)
	store := &hookedStore{UnitStore: f.units}
	store.beforeCommit = func(attempt int) {
		if attempt == 1 {
			bumpVersion(t, f)
		}
	}
	c := f.coordinator(t, func(d *reservation.Deps, _ *reservation.Config) { d.Store = store })

	b, err := c.Reserve(context.Background(), request("guest-1", stay("2030-01-11", "2030-01-12")))
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if store.attempts != 2 {
		t.Fatalf("expected 2 commit attempts, got %d", store.attempts)
	}
	if n := len(f.payments.Charges()); n != 1 {
		t.Fatalf("expected exactly one charge, got %d", n)
	}
	// The charged amount stands even though the rate changed in between.
	if b.Total.Amount != 16000 {
		t.Fatalf("expected charged total 16000, got %d", b.Total.Amount)
	}
	if l := f.listing(t, "lst-1"); l.Version != 2 || !l.Availability.IsBooked(daterange.MustDate("2030-01-12")) {
		t.Fatalf("unexpected listing after retry: version=%d", l.Version)
	}
}

func TestReserveExhaustedRetriesRecordObligation(t *testing.T) {
	f := newFixture(t)
	store := &hookedStore{UnitStore: f.units}
	store.beforeCommit = func(int) { bumpVersion(t, f) }
	c := f.coordinator(t, func(d *reservation.Deps, _ *reservation.Config) { d.Store = store })

	_, err := c.Reserve(context.Background(), request("guest-1", stay("2030-01-11", "2030-01-12")))
	var commitErr *reservation.CommitFailure
	if !errors.As(err, &commitErr) {
		t.Fatalf("expected commit failure, got %v", err)
	}
	if !errors.Is(err, listings.ErrVersionConflict) {
		t.Fatalf("expected version conflict cause, got %v", commitErr.Cause)
	}
	if store.attempts != reservation.DefaultCommitAttempts {
		t.Fatalf("expected %d attempts, got %d", reservation.DefaultCommitAttempts, store.attempts)
	}
	if !commitErr.ObligationRecorded() {
		t.Fatalf("expected obligation recorded, got %v", commitErr.RecordErr)
	}
	if n := len(f.payments.Charges()); n != 1 {
		t.Fatalf("expected exactly one charge, got %d", n)
	}
}

func TestReserveCommitConflictRecordsRefundObligation(t *testing.T) {
	f := newFixture(t)
	store := &hookedStore{UnitStore: f.units}
	var competitor *booking.Booking
	store.beforeCommit = func(attempt int) {
		if attempt != 1 {
			return
		}
		// Another guest books an overlapping stay after this request was charged.
		other := f.coordinator(t)
		b, err := other.Reserve(context.Background(), request("guest-2", stay("2030-01-12", "2030-01-14")))
		if err != nil {
			t.Errorf("competing reserve: %v", err)
		}
		competitor = b
	}
	c := f.coordinator(t, func(d *reservation.Deps, _ *reservation.Config) { d.Store = store })

	_, err := c.Reserve(context.Background(), request("guest-1", stay("2030-01-11", "2030-01-12")))
	var commitErr *reservation.CommitFailure
	if !errors.As(err, &commitErr) {
		t.Fatalf("expected commit failure, got %v", err)
	}
	if reservation.StateOf(err) != reservation.StateCommitFailed {
		t.Fatalf("expected COMMIT_FAILED, got %s", reservation.StateOf(err))
	}
	if !booking.Rejected(commitErr.Cause, booking.ReasonDateConflict) {
		t.Fatalf("expected date conflict cause, got %v", commitErr.Cause)
	}
	o := commitErr.Obligation
	if o == nil || o.State != reconciliation.StatePending || o.Amount.Amount != 16000 || o.ChargeRef == "" {
		t.Fatalf("unexpected obligation %+v", o)
	}

	var stored *reconciliation.Obligation
	_ = uow.Run(context.Background(), f.store, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		stored, err = unit.Obligations().ByID(ctx, o.ID)
		return err
	})
	if stored == nil || stored.ChargeRef != o.ChargeRef {
		t.Fatal("obligation not persisted")
	}

	l := f.listing(t, "lst-1")
	if competitor == nil || len(l.BookingIDs) != 1 || l.BookingIDs[0] != string(competitor.ID) {
		t.Fatalf("expected only the competing booking, got %v", l.BookingIDs)
	}
	if l.Availability.IsBooked(daterange.MustDate("2030-01-11")) {
		t.Fatal("failed reservation leaked into the index")
	}

	names := f.eventNames()
	want := map[string]bool{"reconciliation.refund_required": false, "calendar.overbooking_prevented": false}
	for _, n := range names {
		if _, ok := want[n]; ok {
			want[n] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Fatalf("expected %s event, got %v", name, names)
		}
	}
}

type failingRecorder struct{ err error }

func (r failingRecorder) Record(context.Context, *reconciliation.Obligation, ...events.DomainEvent) error {
	return r.err
}

// failingCommits loads normally but never commits.
type failingCommits struct{ *reservation.UnitStore }

func (failingCommits) Commit(context.Context, reservation.CommitParams) error {
	return errors.New("disk full")
}

func TestReserveSurfacesUnrecordedObligation(t *testing.T) {
	f := newFixture(t)
	recordErr := errors.New("obligations offline")
	c := f.coordinator(t, func(d *reservation.Deps, cfg *reservation.Config) {
		d.Store = failingCommits{f.units}
		d.Obligations = failingRecorder{err: recordErr}
		cfg.CommitAttempts = 1
	})

	_, err := c.Reserve(context.Background(), request("guest-1", stay("2030-01-11", "2030-01-12")))
	var commitErr *reservation.CommitFailure
	if !errors.As(err, &commitErr) {
		t.Fatalf("expected commit failure, got %v", err)
	}
	if commitErr.ObligationRecorded() || !errors.Is(commitErr.RecordErr, recordErr) {
		t.Fatalf("expected record error to be reported, got %v", commitErr.RecordErr)
	}
	if commitErr.Obligation == nil || commitErr.Obligation.Amount.Amount != 16000 {
		t.Fatal("expected obligation details even when not recorded")
	}
}

func TestReserveDetectsCommitWithLostAcknowledgement(t *testing.T) {
	f := newFixture(t)
	store := &hookedStore{UnitStore: f.units}
	store.afterCommit = func(attempt int, err error) error {
		if attempt == 1 && err == nil {
			return context.DeadlineExceeded
		}
		return err
	}
	c := f.coordinator(t, func(d *reservation.Deps, _ *reservation.Config) { d.Store = store })

	b, err := c.Reserve(context.Background(), request("guest-1", stay("2030-01-11", "2030-01-12")))
	if err != nil {
		t.Fatalf("expected lost acknowledgement to resolve as committed, got %v", err)
	}
	if store.attempts != 1 {
		t.Fatalf("expected no second commit, got %d attempts", store.attempts)
	}
	if l := f.listing(t, "lst-1"); len(l.BookingIDs) != 1 || l.BookingIDs[0] != string(b.ID) {
		t.Fatalf("unexpected booking ids %v", l.BookingIDs)
	}
}

// barrierCharges holds every charge until n of them are in flight, so all
// callers pass validation against the same listing version.
type barrierCharges struct {
	inner policies.ChargePort
	wg    *sync.WaitGroup
}

func (b barrierCharges) Charge(ctx context.Context, req policies.ChargeRequest) (policies.ChargeReceipt, error) {
	b.wg.Done()
	b.wg.Wait()
	return b.inner.Charge(ctx, req)
}

func TestConcurrentOverlappingReservationsCommitOnce(t *testing.T) {
	const n = 8
	f := newFixture(t)
	var wg sync.WaitGroup
	wg.Add(n)
	c := f.coordinator(t, func(d *reservation.Deps, _ *reservation.Config) {
		d.Charges = barrierCharges{inner: f.payments, wg: &wg}
	})

	type outcome struct {
		b   *booking.Booking
		err error
	}
	results := make(chan outcome, n)
	var running sync.WaitGroup
	for i := 0; i < n; i++ {
		running.Add(1)
		go func(i int) {
			defer running.Done()
			r := stay(fmt.Sprintf("2030-01-%02d", 11+i%3), "2030-01-15")
			b, err := c.Reserve(context.Background(), request(fmt.Sprintf("guest-%d", i), r))
			results <- outcome{b: b, err: err}
		}(i)
	}
	running.Wait()
	close(results)

	committed, failed := 0, 0
	for res := range results {
		switch {
		case res.err == nil:
			committed++
		case reservation.StateOf(res.err) == reservation.StateCommitFailed:
			failed++
		default:
			t.Fatalf("unexpected outcome %v", res.err)
		}
	}
	if committed != 1 || failed != n-1 {
		t.Fatalf("expected 1 commit and %d commit failures, got %d and %d", n-1, committed, failed)
	}
	if got := len(f.payments.Charges()); got != n {
		t.Fatalf("expected %d charges, got %d", n, got)
	}
	if l := f.listing(t, "lst-1"); len(l.BookingIDs) != 1 {
		t.Fatalf("expected one booking on listing, got %v", l.BookingIDs)
	}

	refunds := 0
	for _, name := range f.eventNames() {
		if name == "reconciliation.refund_required" {
			refunds++
		}
	}
	if refunds != n-1 {
		t.Fatalf("expected %d refund obligations, got %d", n-1, refunds)
	}
}

func TestConcurrentReservationsNeverOverlap(t *testing.T) {
	const n = 16
	f := newFixture(t)
	c := f.coordinator(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var booked []*booking.Booking
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := daterange.MustDate("2030-01-11").AddDays(i % 6)
			b, err := c.Reserve(context.Background(), request(fmt.Sprintf("guest-%d", i), daterange.DateRange{CheckIn: in, CheckOut: in.AddDays(2)}))
			if err == nil {
				mu.Lock()
				booked = append(booked, b)
				mu.Unlock()
				return
			}
			if !booking.Rejected(err, booking.ReasonDateConflict) && reservation.StateOf(err) != reservation.StateCommitFailed {
				t.Errorf("unexpected error %v", err)
			}
		}(i)
	}
	wg.Wait()

	if len(booked) == 0 {
		t.Fatal("expected at least one booking")
	}
	for i := range booked {
		for j := i + 1; j < len(booked); j++ {
			if booked[i].Range.Overlaps(booked[j].Range) {
				t.Fatalf("bookings %s and %s overlap", booked[i].Range, booked[j].Range)
			}
		}
	}
	nights := 0
	for _, b := range booked {
		nights += b.Nights()
	}
	if got := f.listing(t, "lst-1").Availability.BookedNights(); got != nights {
		t.Fatalf("index has %d nights, bookings have %d", got, nights)
	}
}

func TestStateOf(t *testing.T) {
	cases := []struct {
		err  error
		want reservation.State
	}{
		{nil, reservation.StateCommitted},
		{&booking.ValidationError{Reason: booking.ReasonSelfBooking}, reservation.StateRejected},
		{&reservation.ChargeFailure{Err: errors.New("boom")}, reservation.StateChargeFailed},
		{&reservation.CommitFailure{Cause: &booking.ValidationError{Reason: booking.ReasonDateConflict}}, reservation.StateCommitFailed},
		{fmt.Errorf("wrap: %w", reservation.ErrListingUnavailable), reservation.StateFailed},
	}
	for _, tc := range cases {
		if got := reservation.StateOf(tc.err); got != tc.want {
			t.Fatalf("StateOf(%v) = %s, want %s", tc.err, got, tc.want)
		}
		if !tc.want.Terminal() {
			t.Fatalf("%s should be terminal", tc.want)
		}
	}
	if reservation.StateCharged.Terminal() {
		t.Fatal("CHARGED is not terminal")
	}
}
