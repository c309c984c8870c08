package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bookingledger/internal/app/commands"
	"bookingledger/internal/app/outbox"
	"bookingledger/internal/app/policies"
	"bookingledger/internal/app/uow"
	domainreconciliation "bookingledger/internal/domain/reconciliation"
)

const processRefundKey = "reconciliation.refund"

// ErrRefundFailed wraps a refund the processor did not complete. The
// obligation is left FAILED and can be retried.
var ErrRefundFailed = errors.New("reconciliation: refund failed")

type ProcessRefundCommand struct {
	ObligationID string `validate:"required"`
}

func (c ProcessRefundCommand) Key() string { return processRefundKey }

type ProcessRefundResult struct {
	ObligationID string `json:"obligation_id"`
	State        string `json:"state"`
	Attempts     int    `json:"attempts"`
}

// ProcessRefundHandler settles a refund obligation. The refund call runs
// outside any transaction; the outcome is written afterwards. Settled
// obligations are skipped, so redelivered events are harmless.
type ProcessRefundHandler struct {
	UoWFactory uow.UoWFactory
	Refunds    policies.RefundPort
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	Now        func() time.Time
}

func (h *ProcessRefundHandler) Handle(ctx context.Context, cmd ProcessRefundCommand) (*ProcessRefundResult, error) {
	id := domainreconciliation.ObligationID(cmd.ObligationID)
	var obligation *domainreconciliation.Obligation
	err := uow.Run(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		obligation, err = unit.Obligations().ByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !obligation.Open() {
		return resultOf(obligation), nil
	}

	refundErr := h.Refunds.Refund(ctx, policies.RefundRequest{
		ChargeRef:      obligation.ChargeRef,
		Amount:         obligation.Amount,
		PayoutToken:    obligation.PayoutToken,
		IdempotencyKey: refundKey(obligation),
	})
	now := h.now()
	err = uow.Run(ctx, h.UoWFactory, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		if refundErr != nil {
			if err := obligation.MarkFailed(refundErr.Error(), now); err != nil {
				return err
			}
		} else if err := obligation.MarkRefunded(now); err != nil {
			return err
		}
		if err := unit.Obligations().Save(ctx, obligation); err != nil {
			return err
		}
		return outbox.RecordDomainEvents(ctx, unit.Outbox(), h.encoder(), obligation.Drain())
	})
	if err != nil {
		return nil, err
	}

	logger := h.logger().With(
		slog.String("obligation_id", string(obligation.ID)),
		slog.String("charge_ref", obligation.ChargeRef),
		slog.Int("attempts", obligation.Attempts),
	)
	if refundErr != nil {
		logger.WarnContext(ctx, "refund failed", slog.Any("err", refundErr))
		return nil, fmt.Errorf("%w: %w", ErrRefundFailed, refundErr)
	}
	logger.InfoContext(ctx, "refund completed", slog.Int64("amount", obligation.Amount.Amount))
	return resultOf(obligation), nil
}

// refundKey changes per attempt. Processors replay the stored response for a
// reused key, so a failed attempt would otherwise fail forever.
func refundKey(o *domainreconciliation.Obligation) string {
	return fmt.Sprintf("refund-%s-%d", o.ID, o.Attempts)
}

func resultOf(o *domainreconciliation.Obligation) *ProcessRefundResult {
	return &ProcessRefundResult{ObligationID: string(o.ID), State: string(o.State), Attempts: o.Attempts}
}

func (h *ProcessRefundHandler) encoder() outbox.EventEncoder {
	if h.Encoder != nil {
		return h.Encoder
	}
	return outbox.JSONEventEncoder{}
}

func (h *ProcessRefundHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *ProcessRefundHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}

var _ commands.Handler[ProcessRefundCommand, *ProcessRefundResult] = (*ProcessRefundHandler)(nil)
