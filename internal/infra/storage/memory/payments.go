package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"bookingledger/internal/app/policies"
)

// DeclinedSource is a payment source the in-memory processor always declines.
const DeclinedSource = "tok_chargeDeclined"

var ErrUnknownCharge = errors.New("memory: unknown charge")

type Charge struct {
	Reference string
	Request   policies.ChargeRequest
	Refunded  bool
}

// Payments is an in-process payment processor for local runs and tests.
// Charges with the same idempotency key return the first receipt.
type Payments struct {
	mu      sync.Mutex
	charges map[string]*Charge
	byKey   map[string]string
}

func NewPayments() *Payments {
	return &Payments{charges: make(map[string]*Charge), byKey: make(map[string]string)}
}

func (p *Payments) Charge(ctx context.Context, req policies.ChargeRequest) (policies.ChargeReceipt, error) {
	if err := ctx.Err(); err != nil {
		return policies.ChargeReceipt{}, err
	}
	if req.Source == DeclinedSource {
		return policies.ChargeReceipt{}, policies.ErrChargeDeclined
	}
	if !req.Amount.IsPositive() {
		return policies.ChargeReceipt{}, fmt.Errorf("memory: charge amount must be positive")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if req.IdempotencyKey != "" {
		if ref, ok := p.byKey[req.IdempotencyKey]; ok {
			c := p.charges[ref]
			return policies.ChargeReceipt{Reference: ref, Amount: c.Request.Amount}, nil
		}
	}
	ref := "ch_" + uuid.NewString()
	p.charges[ref] = &Charge{Reference: ref, Request: req}
	if req.IdempotencyKey != "" {
		p.byKey[req.IdempotencyKey] = ref
	}
	return policies.ChargeReceipt{Reference: ref, Amount: req.Amount}, nil
}

func (p *Payments) Refund(ctx context.Context, req policies.RefundRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.charges[req.ChargeRef]
	if !ok {
		return ErrUnknownCharge
	}
	if req.Amount.Amount > c.Request.Amount.Amount {
		return fmt.Errorf("memory: refund %d exceeds charge %d", req.Amount.Amount, c.Request.Amount.Amount)
	}
	c.Refunded = true
	return nil
}

// Charges returns a snapshot of every charge taken.
func (p *Payments) Charges() []Charge {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Charge, 0, len(p.charges))
	for _, c := range p.charges {
		out = append(out, *c)
	}
	return out
}

var (
	_ policies.ChargePort = (*Payments)(nil)
	_ policies.RefundPort = (*Payments)(nil)
)
