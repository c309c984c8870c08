package policies

import (
	"context"
	"errors"

	"bookingledger/internal/domain/shared/money"
)

// ErrChargeDeclined marks a charge the payment provider refused.
var ErrChargeDeclined = errors.New("payments: charge declined")

type ChargeRequest struct {
	Amount         money.Money
	ApplicationFee money.Money
	// Source is the guest's payment source token.
	Source string
	// PayoutToken identifies the host account receiving the funds.
	PayoutToken    string
	IdempotencyKey string
	Description    string
}

type ChargeReceipt struct {
	Reference string
	Amount    money.Money
}

// ChargePort takes money from a guest. A returned error means no money moved
// unless the error is a timeout, which callers must treat as a failure.
type ChargePort interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeReceipt, error)
}

type RefundRequest struct {
	ChargeRef string
	Amount    money.Money
	// PayoutToken is the host account the original charge was made on.
	PayoutToken    string
	IdempotencyKey string
}

type RefundPort interface {
	Refund(ctx context.Context, req RefundRequest) error
}
