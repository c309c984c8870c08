// Package local delivers outbox messages inside the process when no broker
// is configured.
package local

import (
	"context"
	"log/slog"
	"sync"
)

// PayloadHandler consumes one published message body.
type PayloadHandler interface {
	HandlePayload(ctx context.Context, payload []byte) error
}

// Producer routes published messages to the handlers subscribed to their
// topic. Messages on topics nobody subscribed to are dropped.
type Producer struct {
	mu     sync.RWMutex
	subs   map[string][]PayloadHandler
	Logger *slog.Logger
}

func NewProducer(logger *slog.Logger) *Producer {
	return &Producer{subs: make(map[string][]PayloadHandler), Logger: logger}
}

func (p *Producer) Subscribe(topic string, h PayloadHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs[topic] = append(p.subs[topic], h)
}

// Publish hands payload to every subscriber of topic and fails with the
// first handler error so the outbox row is retried.
func (p *Producer) Publish(ctx context.Context, topic string, key string, payload []byte, _ map[string]string) error {
	p.mu.RLock()
	handlers := append([]PayloadHandler(nil), p.subs[topic]...)
	p.mu.RUnlock()
	for _, h := range handlers {
		if err := h.HandlePayload(ctx, payload); err != nil {
			if p.Logger != nil {
				p.Logger.WarnContext(ctx, "local delivery failed", slog.String("topic", topic), slog.String("key", key), slog.Any("err", err))
			}
			return err
		}
	}
	return nil
}
