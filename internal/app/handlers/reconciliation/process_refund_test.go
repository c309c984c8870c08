package reconciliation

import (
	"context"
	"errors"
	"testing"
	"time"

	"bookingledger/internal/app/policies"
	"bookingledger/internal/app/uow"
	domainreconciliation "bookingledger/internal/domain/reconciliation"
	"bookingledger/internal/domain/shared/money"
	"bookingledger/internal/infra/storage/memory"
)

type flakyRefunds struct {
	failures int
	requests []policies.RefundRequest
}

func (f *flakyRefunds) Refund(_ context.Context, req policies.RefundRequest) error {
	f.requests = append(f.requests, req)
	if f.failures > 0 {
		f.failures--
		return errors.New("processor unavailable")
	}
	return nil
}

func seedObligation(t *testing.T, store *memory.Store) {
	t.Helper()
	o, err := domainreconciliation.NewObligation(domainreconciliation.CreateParams{
		ID:          "obl-1",
		ListingID:   "lst-1",
		GuestID:     "guest-1",
		Amount:      money.Money{Amount: 24000, Currency: "USD"},
		ChargeRef:   "ch_1",
		PayoutToken: "acct_host_1",
		Reason:      "DATE_CONFLICT",
		Now:         time.Date(2030, 1, 10, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("obligation: %v", err)
	}
	err = uow.Run(context.Background(), store, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		return unit.Obligations().Create(ctx, o)
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestProcessRefundSettlesObligation(t *testing.T) {
	store := memory.NewStore()
	seedObligation(t, store)
	refunds := &flakyRefunds{}
	h := &ProcessRefundHandler{UoWFactory: store, Refunds: refunds}

	res, err := h.Handle(context.Background(), ProcessRefundCommand{ObligationID: "obl-1"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.State != string(domainreconciliation.StateRefunded) || res.Attempts != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	req := refunds.requests[0]
	if req.ChargeRef != "ch_1" || req.Amount.Amount != 24000 || req.IdempotencyKey != "refund-obl-1-0" || req.PayoutToken != "acct_host_1" {
		t.Fatalf("unexpected refund request %+v", req)
	}
	events := store.Events()
	if len(events) != 1 || events[0].Name != "reconciliation.refund_completed" {
		t.Fatalf("expected refund_completed event, got %+v", events)
	}

	again, err := h.Handle(context.Background(), ProcessRefundCommand{ObligationID: "obl-1"})
	if err != nil || again.State != string(domainreconciliation.StateRefunded) {
		t.Fatalf("redelivery: %+v %v", again, err)
	}
	if len(refunds.requests) != 1 {
		t.Fatalf("settled obligation refunded again: %d calls", len(refunds.requests))
	}
}

func TestProcessRefundFailureIsRetryable(t *testing.T) {
	store := memory.NewStore()
	seedObligation(t, store)
	refunds := &flakyRefunds{failures: 1}
	h := &ProcessRefundHandler{UoWFactory: store, Refunds: refunds}
	ctx := context.Background()

	if _, err := h.Handle(ctx, ProcessRefundCommand{ObligationID: "obl-1"}); !errors.Is(err, ErrRefundFailed) {
		t.Fatalf("expected refund failure, got %v", err)
	}
	var failed *domainreconciliation.Obligation
	_ = uow.Run(ctx, store, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		failed, err = unit.Obligations().ByID(ctx, "obl-1")
		return err
	})
	if failed == nil || failed.State != domainreconciliation.StateFailed || failed.LastError != "processor unavailable" {
		t.Fatalf("expected FAILED obligation, got %+v", failed)
	}

	res, err := h.Handle(ctx, ProcessRefundCommand{ObligationID: "obl-1"})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if res.State != string(domainreconciliation.StateRefunded) || res.Attempts != 2 {
		t.Fatalf("unexpected retry result %+v", res)
	}
	if got := []string{refunds.requests[0].IdempotencyKey, refunds.requests[1].IdempotencyKey}; got[0] != "refund-obl-1-0" || got[1] != "refund-obl-1-1" {
		t.Fatalf("expected a key per attempt, got %v", got)
	}
}

// replayingRefunds stores the first outcome per idempotency key and returns
// it for every later request with that key, like a payment processor.
type replayingRefunds struct {
	failFirst bool
	calls     int
	results   map[string]error
}

func (r *replayingRefunds) Refund(_ context.Context, req policies.RefundRequest) error {
	if err, ok := r.results[req.IdempotencyKey]; ok {
		return err
	}
	r.calls++
	var err error
	if r.failFirst && r.calls == 1 {
		err = errors.New("processor timeout")
	}
	r.results[req.IdempotencyKey] = err
	return err
}

func TestProcessRefundRetryIsNotReplayedFailure(t *testing.T) {
	store := memory.NewStore()
	seedObligation(t, store)
	refunds := &replayingRefunds{failFirst: true, results: map[string]error{}}
	h := &ProcessRefundHandler{UoWFactory: store, Refunds: refunds}
	ctx := context.Background()

	if _, err := h.Handle(ctx, ProcessRefundCommand{ObligationID: "obl-1"}); !errors.Is(err, ErrRefundFailed) {
		t.Fatalf("expected first attempt to fail, got %v", err)
	}
	res, err := h.Handle(ctx, ProcessRefundCommand{ObligationID: "obl-1"})
	if err != nil {
		t.Fatalf("retry replayed the cached failure: %v", err)
	}
	if res.State != string(domainreconciliation.StateRefunded) || refunds.calls != 2 {
		t.Fatalf("unexpected retry result %+v after %d processor calls", res, refunds.calls)
	}
}

func TestProcessRefundUnknownObligation(t *testing.T) {
	h := &ProcessRefundHandler{UoWFactory: memory.NewStore(), Refunds: &flakyRefunds{}}
	if _, err := h.Handle(context.Background(), ProcessRefundCommand{ObligationID: "missing"}); !errors.Is(err, domainreconciliation.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
