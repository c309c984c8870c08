package ginserver

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"

	"bookingledger/internal/app/commands"
	"bookingledger/internal/app/dto"
	availabilityapp "bookingledger/internal/app/handlers/availability"
	bookingapp "bookingledger/internal/app/handlers/booking"
	pricingapp "bookingledger/internal/app/handlers/pricing"
	reconciliationapp "bookingledger/internal/app/handlers/reconciliation"
	"bookingledger/internal/app/middleware"
	"bookingledger/internal/app/queries"
	"bookingledger/internal/app/reservation"
	domainbooking "bookingledger/internal/domain/booking"
	domainlistings "bookingledger/internal/domain/listings"
	domainreconciliation "bookingledger/internal/domain/reconciliation"
	"bookingledger/internal/domain/shared/money"
	domainuser "bookingledger/internal/domain/user"
	"bookingledger/internal/infra/config"
	"bookingledger/internal/infra/obs"
	"bookingledger/internal/infra/storage/memory"
	"bookingledger/internal/infra/validation"
)

var testNow = time.Date(2030, time.January, 10, 9, 0, 0, 0, time.UTC)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return testNow }

type testApp struct {
	router   *gin.Engine
	store    *memory.Store
	payments *memory.Payments
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.DiscardHandler)

	store := memory.NewStore()
	host, err := domainuser.NewUser(domainuser.CreateParams{ID: "host-1", Name: "Hana", PayoutToken: "acct_host_1", Currency: "USD", CreatedAt: testNow})
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	store.PutUser(host)
	listing, err := domainlistings.NewListing(domainlistings.CreateListingParams{
		ID:          "lst-1",
		Host:        "host-1",
		Title:       "Harbour loft",
		NightlyRate: money.Money{Amount: 8000, Currency: "USD"},
		Now:         testNow,
	})
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	store.PutListing(listing)

	payments := memory.NewPayments()
	units := &reservation.UnitStore{Factory: store}
	coordinator, err := reservation.NewCoordinator(reservation.Deps{
		Store:       units,
		Charges:     payments,
		Obligations: units,
		Clock:       fixedClock{},
		Logger:      logger,
	}, reservation.Config{HorizonDays: 90, FeePercent: 5})
	if err != nil {
		t.Fatalf("coordinator: %v", err)
	}

	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler[bookingapp.ReserveCommand, *dto.Booking](commandBus, bookingapp.ReserveCommand{}.Key(),
		&bookingapp.ReserveHandler{Reservations: coordinator})
	commands.RegisterHandler[reconciliationapp.ProcessRefundCommand, *reconciliationapp.ProcessRefundResult](commandBus, reconciliationapp.ProcessRefundCommand{}.Key(),
		&reconciliationapp.ProcessRefundHandler{UoWFactory: store, Refunds: payments, Logger: logger})

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler[availabilityapp.GetCalendarQuery, dto.Calendar](queryBus, availabilityapp.GetCalendarQuery{}.Key(),
		&availabilityapp.GetCalendarHandler{UoWFactory: store})
	queries.RegisterHandler[pricingapp.QuoteQuery, dto.Quote](queryBus, pricingapp.QuoteQuery{}.Key(),
		&pricingapp.QuoteHandler{UoWFactory: store, FeePercent: 5})
	queries.RegisterHandler[bookingapp.ListListingBookingsQuery, dto.BookingPage](queryBus, bookingapp.ListListingBookingsQuery{}.Key(),
		&bookingapp.ListListingBookingsHandler{UoWFactory: store, Logger: logger})
	queries.RegisterHandler[bookingapp.ListGuestBookingsQuery, dto.BookingPage](queryBus, bookingapp.ListGuestBookingsQuery{}.Key(),
		&bookingapp.ListGuestBookingsHandler{UoWFactory: store, Logger: logger})

	validator := validation.New()
	cmds := middleware.ChainCommands(commandBus,
		middleware.Logging(logger),
		middleware.Validation(validator),
		middleware.Authorization(middleware.RequireViewer()),
		middleware.Idempotency(memory.NewIdempotencyStore(time.Hour), nil),
	)
	qs := middleware.ChainQueries(queryBus,
		middleware.QueryValidation(validator),
		middleware.QueryAuthorization(middleware.RequireViewer()),
	)

	router := NewRouter(config.Config{Env: "test"}, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Checks: map[string]obs.Pinger{"storage": store},
	}, Handlers{
		Booking:        BookingHandler{Commands: cmds},
		Listing:        ListingHandler{Queries: qs, Now: func() time.Time { return testNow }},
		Reconciliation: ReconciliationHandler{Commands: cmds},
		Me:             MeHandler{Queries: qs},
		AuthMiddleware: HeaderAuth(),
	})
	return &testApp{router: router, store: store, payments: payments}
}

func (a *testApp) do(t *testing.T, method, path, viewer, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if viewer != "" {
		req.Header.Set(ViewerHeader, viewer)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	out := map[string]any{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s: %v", rec.Body.String(), err)
		}
	}
	return rec, out
}

const reserveBody = `{"listing_id":"lst-1","source":"tok_visa","check_in":"2030-01-20","check_out":"2030-01-22"}`

func TestReserveRequiresViewer(t *testing.T) {
	app := newTestApp(t)
	rec, _ := app.do(t, http.MethodPost, "/api/v1/bookings", "", reserveBody, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestReserveCommitsAndReplays(t *testing.T) {
	app := newTestApp(t)
	headers := map[string]string{IdempotencyHeader: "req-1"}
	rec, body := app.do(t, http.MethodPost, "/api/v1/bookings", "guest-1", reserveBody, headers)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	total := body["total"].(map[string]any)
	if total["amount"].(float64) != 24000 || body["nights"].(float64) != 3 {
		t.Fatalf("unexpected booking %v", body)
	}
	if rec.Header().Get(obs.RequestIDHeader) == "" {
		t.Fatal("expected request id header")
	}

	again, replayed := app.do(t, http.MethodPost, "/api/v1/bookings", "guest-1", reserveBody, headers)
	if again.Code != http.StatusCreated || replayed["id"] != body["id"] {
		t.Fatalf("expected replay of %v, got %d %v", body["id"], again.Code, replayed)
	}
	if n := len(app.payments.Charges()); n != 1 {
		t.Fatalf("expected one charge, got %d", n)
	}
}

func TestReserveRejections(t *testing.T) {
	app := newTestApp(t)
	if rec, _ := app.do(t, http.MethodPost, "/api/v1/bookings", "guest-1", reserveBody, nil); rec.Code != http.StatusCreated {
		t.Fatalf("seed booking: %d %s", rec.Code, rec.Body.String())
	}

	cases := []struct {
		name   string
		viewer string
		body   string
		status int
		reason string
	}{
		{"overlap", "guest-2", `{"listing_id":"lst-1","source":"tok_visa","check_in":"2030-01-22","check_out":"2030-01-24"}`, http.StatusConflict, "DATE_CONFLICT"},
		{"self booking", "host-1", `{"listing_id":"lst-1","source":"tok_visa","check_in":"2030-02-01","check_out":"2030-02-02"}`, http.StatusUnprocessableEntity, "SELF_BOOKING"},
		{"reversed", "guest-2", `{"listing_id":"lst-1","source":"tok_visa","check_in":"2030-02-05","check_out":"2030-02-02"}`, http.StatusUnprocessableEntity, "INVALID_RANGE"},
		{"past", "guest-2", `{"listing_id":"lst-1","source":"tok_visa","check_in":"2030-01-09","check_out":"2030-01-11"}`, http.StatusUnprocessableEntity, "CHECK_IN_IN_PAST"},
		{"declined", "guest-2", `{"listing_id":"lst-1","source":"tok_chargeDeclined","check_in":"2030-02-01","check_out":"2030-02-02"}`, http.StatusPaymentRequired, ""},
		{"unknown listing", "guest-2", `{"listing_id":"nope","source":"tok_visa","check_in":"2030-02-01","check_out":"2030-02-02"}`, http.StatusNotFound, ""},
		{"missing source", "guest-2", `{"listing_id":"lst-1","check_in":"2030-02-01","check_out":"2030-02-02"}`, http.StatusBadRequest, ""},
		{"bad date", "guest-2", `{"listing_id":"lst-1","source":"tok_visa","check_in":"2030-13-01","check_out":"2030-02-02"}`, http.StatusBadRequest, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := app.do(t, http.MethodPost, "/api/v1/bookings", tc.viewer, tc.body, nil)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
			if tc.reason != "" && body["reason"] != tc.reason {
				t.Fatalf("expected reason %s, got %v", tc.reason, body["reason"])
			}
		})
	}
	if n := len(app.payments.Charges()); n != 1 {
		t.Fatalf("rejections must not charge, got %d charges", n)
	}
}

func TestCalendarAndQuote(t *testing.T) {
	app := newTestApp(t)
	if rec, _ := app.do(t, http.MethodPost, "/api/v1/bookings", "guest-1", reserveBody, nil); rec.Code != http.StatusCreated {
		t.Fatalf("seed booking: %d", rec.Code)
	}

	rec, cal := app.do(t, http.MethodGet, "/api/v1/listings/lst-1/calendar", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("calendar: %d %s", rec.Code, rec.Body.String())
	}
	if cal["from"] != "2030-01-10" || cal["to"] != "2030-04-09" {
		t.Fatalf("unexpected default window %v..%v", cal["from"], cal["to"])
	}
	if booked := cal["booked"].([]any); len(booked) != 3 || booked[0] != "2030-01-20" {
		t.Fatalf("unexpected booked days %v", booked)
	}

	rec, quote := app.do(t, http.MethodGet, "/api/v1/listings/lst-1/quote?check_in=2030-01-22&check_out=2030-01-25", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("quote: %d %s", rec.Code, rec.Body.String())
	}
	if quote["available"] != false || quote["conflict_date"] != "2030-01-22" || quote["nights"].(float64) != 4 {
		t.Fatalf("unexpected quote %v", quote)
	}

	if rec, _ := app.do(t, http.MethodGet, "/api/v1/listings/missing/calendar", "", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec, _ := app.do(t, http.MethodGet, "/api/v1/listings/lst-1/calendar?from=2030-01-01&to=2031-06-01", "", "", nil); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for oversized window, got %d", rec.Code)
	}
	if rec, _ := app.do(t, http.MethodGet, "/api/v1/listings/lst-1/quote?check_in=2030-02-01&check_out=2032-02-01", "", "", nil); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for overlong quote, got %d", rec.Code)
	}
	if rec, _ := app.do(t, http.MethodGet, "/api/v1/listings/lst-1/calendar?from=soon", "", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", rec.Code)
	}
}

func TestListingBookingsOnlyForHost(t *testing.T) {
	app := newTestApp(t)
	if rec, _ := app.do(t, http.MethodPost, "/api/v1/bookings", "guest-1", reserveBody, nil); rec.Code != http.StatusCreated {
		t.Fatalf("seed booking: %d", rec.Code)
	}
	if rec, _ := app.do(t, http.MethodGet, "/api/v1/listings/lst-1/bookings", "guest-1", "", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	rec, page := app.do(t, http.MethodGet, "/api/v1/listings/lst-1/bookings?limit=10", "host-1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	if page["total"].(float64) != 1 || len(page["items"].([]any)) != 1 || page["limit"].(float64) != 10 {
		t.Fatalf("unexpected page %v", page)
	}
}

func TestGuestBookingsScopedToViewer(t *testing.T) {
	app := newTestApp(t)
	stays := []struct{ guest, in, out string }{
		{"guest-1", "2030-02-10", "2030-02-12"},
		{"guest-2", "2030-02-14", "2030-02-15"},
		{"guest-1", "2030-02-01", "2030-02-03"},
	}
	for _, s := range stays {
		body := `{"listing_id":"lst-1","source":"tok_visa","check_in":"` + s.in + `","check_out":"` + s.out + `"}`
		if rec, _ := app.do(t, http.MethodPost, "/api/v1/bookings", s.guest, body, nil); rec.Code != http.StatusCreated {
			t.Fatalf("seed %s %s: %d %s", s.guest, s.in, rec.Code, rec.Body.String())
		}
	}

	if rec, _ := app.do(t, http.MethodGet, "/api/v1/me/bookings", "", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without viewer, got %d", rec.Code)
	}
	rec, page := app.do(t, http.MethodGet, "/api/v1/me/bookings?limit=1", "guest-1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	items := page["items"].([]any)
	if page["total"].(float64) != 2 || len(items) != 1 || page["page"].(float64) != 1 {
		t.Fatalf("unexpected first page %v", page)
	}
	if first := items[0].(map[string]any); first["check_in"] != "2030-02-01" {
		t.Fatalf("expected earliest stay first, got %v", first)
	}
	_, page = app.do(t, http.MethodGet, "/api/v1/me/bookings?limit=1&page=2", "guest-1", "", nil)
	items = page["items"].([]any)
	if len(items) != 1 || items[0].(map[string]any)["check_in"] != "2030-02-10" {
		t.Fatalf("unexpected second page %v", page)
	}
	_, page = app.do(t, http.MethodGet, "/api/v1/me/bookings", "guest-3", "", nil)
	if page["total"].(float64) != 0 || len(page["items"].([]any)) != 0 {
		t.Fatalf("stranger sees bookings: %v", page)
	}
}

func TestRefundEndpointRequiresOperator(t *testing.T) {
	app := newTestApp(t)
	if rec, _ := app.do(t, http.MethodPost, "/api/v1/obligations/obl-1/refund", "guest-1", "", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	rec, _ := app.do(t, http.MethodPost, "/api/v1/obligations/obl-1/refund", "ops-1", "", map[string]string{RolesHeader: "operator"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown obligation, got %d", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	app := newTestApp(t)
	if rec, _ := app.do(t, http.MethodGet, "/livez", "", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("livez: %d", rec.Code)
	}
	if rec, _ := app.do(t, http.MethodGet, "/readyz", "", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("readyz: %d", rec.Code)
	}
}

func TestDescribeCommitFailure(t *testing.T) {
	err := &reservation.CommitFailure{
		Cause:      &domainbooking.ValidationError{Reason: domainbooking.ReasonDateConflict},
		Obligation: &domainreconciliation.Obligation{ID: "obl-9"},
	}
	status, body := describeError(err)
	if status != http.StatusBadGateway || body["obligation_id"] != "obl-9" || body["refund_recorded"] != true {
		t.Fatalf("unexpected mapping %d %v", status, body)
	}
	if status, _ := describeError(errors.New("boom")); status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", status)
	}
	rejected := &middleware.RejectedError{Key: "booking.reserve", Err: &validation.Error{Fields: map[string]string{"Source": "required"}}}
	if status, body := describeError(rejected); status != http.StatusBadRequest || body["rejected"] != "booking.reserve" || body["fields"] == nil {
		t.Fatalf("unexpected rejection mapping %d %v", status, body)
	}
	if status, _ := describeError(&middleware.ReplayedError{Key: "k", Message: "declined"}); status != http.StatusConflict {
		t.Fatalf("expected 409 for replay, got %d", status)
	}
}
