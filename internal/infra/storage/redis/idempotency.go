package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"bookingledger/internal/app/middleware"
)

const keyPrefix = "bookingledger:idem:"

// NewClient connects to addr and pings it with a short timeout.
func NewClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// IdempotencyStore keeps records as JSON strings that expire after TTL.
type IdempotencyStore struct {
	client goredis.Cmdable
	ttl    time.Duration
}

func NewIdempotencyStore(client goredis.Cmdable, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl}
}

type record struct {
	Payload    []byte    `json:"payload,omitempty"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	raw, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return middleware.IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return middleware.IdempotencyRecord{}, false, err
	}
	rec, err := decode(key, raw)
	if err != nil {
		return middleware.IdempotencyRecord{}, false, err
	}
	return rec, true, nil
}

// Save keeps the first record written for a key.
func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	raw, err := encode(rec)
	if err != nil {
		return err
	}
	return s.client.SetNX(ctx, keyPrefix+rec.Key, raw, s.ttl).Err()
}

func encode(rec middleware.IdempotencyRecord) ([]byte, error) {
	return json.Marshal(record{Payload: rec.Payload, Error: rec.Error, OccurredAt: rec.OccurredAt.UTC()})
}

func decode(key string, raw []byte) (middleware.IdempotencyRecord, error) {
	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return middleware.IdempotencyRecord{}, err
	}
	return middleware.IdempotencyRecord{Key: key, Payload: r.Payload, Error: r.Error, OccurredAt: r.OccurredAt}, nil
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
