package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/charge"
	"github.com/stripe/stripe-go/v82/refund"

	"bookingledger/internal/app/policies"
	"bookingledger/internal/domain/shared/money"
)

// StripeClient charges guests on behalf of connected host accounts.
type StripeClient struct {
	charges charge.Client
	refunds refund.Client
	logger  *slog.Logger
}

type StripeConfig struct {
	SecretKey  string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func NewStripeClient(cfg StripeConfig) (*StripeClient, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, errors.New("payments: stripe secret key required")
	}
	backendCfg := &stripe.BackendConfig{
		HTTPClient:        cfg.HTTPClient,
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	}
	if cfg.BaseURL != "" {
		backendCfg.URL = stripe.String(strings.TrimRight(cfg.BaseURL, "/"))
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeClient{
		charges: charge.Client{B: backend, Key: cfg.SecretKey},
		refunds: refund.Client{B: backend, Key: cfg.SecretKey},
		logger:  logger,
	}, nil
}

func (c *StripeClient) Charge(ctx context.Context, req policies.ChargeRequest) (policies.ChargeReceipt, error) {
	var zero policies.ChargeReceipt
	if strings.TrimSpace(req.PayoutToken) == "" {
		return zero, errors.New("payments: host payout account missing")
	}
	params := &stripe.ChargeParams{
		Amount:   stripe.Int64(req.Amount.Amount),
		Currency: stripe.String(strings.ToLower(req.Amount.Currency)),
	}
	params.Context = ctx
	if err := params.SetSource(req.Source); err != nil {
		return zero, err
	}
	if req.ApplicationFee.IsPositive() {
		params.ApplicationFeeAmount = stripe.Int64(req.ApplicationFee.Amount)
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	params.SetStripeAccount(req.PayoutToken)
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	ch, err := c.charges.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && (stripeErr.Type == stripe.ErrorTypeCard || stripeErr.HTTPStatusCode == http.StatusPaymentRequired) {
			return zero, fmt.Errorf("%w: %s", policies.ErrChargeDeclined, stripeErr.Msg)
		}
		c.logger.ErrorContext(ctx, "stripe charge failed", slog.String("idempotency_key", req.IdempotencyKey), slog.Any("err", err))
		return zero, fmt.Errorf("payments: stripe charge: %w", err)
	}
	if ch.Status != stripe.ChargeStatusSucceeded {
		return zero, fmt.Errorf("payments: charge %s status %s", ch.ID, ch.Status)
	}
	ccy := strings.ToUpper(string(ch.Currency))
	if ccy == "" {
		ccy = req.Amount.Currency
	}
	return policies.ChargeReceipt{Reference: ch.ID, Amount: money.Money{Amount: ch.Amount, Currency: ccy}}, nil
}

// Refund returns the charge to the guest. A charge Stripe reports as already
// refunded counts as success, so a retry after a lost response settles.
func (c *StripeClient) Refund(ctx context.Context, req policies.RefundRequest) error {
	params := &stripe.RefundParams{Charge: stripe.String(req.ChargeRef)}
	params.Context = ctx
	if req.Amount.IsPositive() {
		params.Amount = stripe.Int64(req.Amount.Amount)
	}
	if req.PayoutToken != "" {
		params.SetStripeAccount(req.PayoutToken)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	re, err := c.refunds.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeChargeAlreadyRefunded {
			c.logger.InfoContext(ctx, "charge already refunded", slog.String("charge_ref", req.ChargeRef))
			return nil
		}
		return fmt.Errorf("payments: stripe refund: %w", err)
	}
	if re.Status == stripe.RefundStatusFailed || re.Status == stripe.RefundStatusCanceled {
		return fmt.Errorf("payments: refund %s status %s", re.ID, re.Status)
	}
	return nil
}

var (
	_ policies.ChargePort = (*StripeClient)(nil)
	_ policies.RefundPort = (*StripeClient)(nil)
)
