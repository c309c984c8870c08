package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"bookingledger/internal/app/commands"
	handlersreconciliation "bookingledger/internal/app/handlers/reconciliation"
	"bookingledger/internal/infra/outbox"
)

const RefundRequiredType = "reconciliation.refund_required.v1"

// Inbox deduplicates deliveries by CloudEvent id.
type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// RefundHandler turns refund-required events into refund commands.
type RefundHandler struct {
	Bus    commands.Bus
	Inbox  Inbox
	Logger *slog.Logger
}

func (h *RefundHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	return h.HandlePayload(ctx, msg.Value)
}

// HandlePayload processes one structured CloudEvent. Events of other types
// and malformed payloads are skipped. A failed refund releases the inbox
// claim and returns the error so the event can be delivered again.
func (h *RefundHandler) HandlePayload(ctx context.Context, payload []byte) error {
	evt, err := outbox.DecodeCloudEvent(payload)
	if err != nil {
		h.logger().WarnContext(ctx, "skipping undecodable event", slog.Any("err", err))
		return nil
	}
	if evt.Type != RefundRequiredType {
		return nil
	}
	var data struct {
		ObligationID string
	}
	if err := json.Unmarshal(evt.Data, &data); err != nil || data.ObligationID == "" {
		h.logger().WarnContext(ctx, "skipping refund event without obligation", slog.String("event_id", evt.ID))
		return nil
	}
	if h.Bus == nil {
		return errors.New("kafka: refund handler missing command bus")
	}
	if h.Inbox != nil {
		seen, err := h.Inbox.Seen(ctx, evt.ID)
		if err != nil {
			return fmt.Errorf("kafka: inbox: %w", err)
		}
		if seen {
			return nil
		}
	}
	res, err := commands.Dispatch[handlersreconciliation.ProcessRefundCommand, *handlersreconciliation.ProcessRefundResult](ctx, h.Bus,
		handlersreconciliation.ProcessRefundCommand{ObligationID: data.ObligationID})
	if err != nil {
		if h.Inbox != nil {
			if fErr := h.Inbox.Forget(context.WithoutCancel(ctx), evt.ID); fErr != nil {
				err = errors.Join(err, fErr)
			}
		}
		return err
	}
	h.logger().InfoContext(ctx, "refund obligation processed",
		slog.String("obligation_id", res.ObligationID),
		slog.String("state", res.State),
		slog.Int("attempts", res.Attempts),
	)
	return nil
}

func (h *RefundHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

var _ MessageHandler = (*RefundHandler)(nil)
