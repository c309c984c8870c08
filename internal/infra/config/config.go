package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageMemory = "memory"
	StorageMongo  = "mongo"

	IdempotencyMemory = "memory"
	IdempotencyMongo  = "mongo"
	IdempotencyRedis  = "redis"

	PaymentsMemory = "memory"
	PaymentsStripe = "stripe"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env      string
	LogLevel string
	HTTPAddr string
	Storage  string

	MongoURI string
	MongoDB  string

	KafkaBrokers       []string
	KafkaTopicPrefix   string
	KafkaGroupID       string
	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration

	IdempotencyBackend string
	IdempotencyTTL     time.Duration
	RedisAddr          string
	RedisPassword      string
	RedisDB            int

	HorizonDays        int
	CommitAttempts     int
	CommitRetryBackoff time.Duration
	LoadTimeout        time.Duration
	ChargeTimeout      time.Duration
	CommitTimeout      time.Duration

	PaymentsMode       string
	StripeAPIURL       string
	StripeSecretKey    string
	Currency           string
	PlatformFeePercent int

	FixturesPath string
	CORSOrigins  []string
}

// Load reads an optional .env file and then parses the environment.
// Variables already set in the environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv parses configuration from the current environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		Env:                getEnv("APP_ENV", "dev"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		Storage:            strings.ToLower(getEnv("STORAGE", StorageMemory)),
		MongoURI:           os.Getenv("MONGO_URI"),
		MongoDB:            getEnv("MONGO_DB", "bookingledger"),
		KafkaTopicPrefix:   getEnv("KAFKA_TOPIC_PREFIX", ""),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "bookingledger-reconciliation"),
		IdempotencyBackend: strings.ToLower(getEnv("IDEMPOTENCY_BACKEND", IdempotencyMemory)),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		PaymentsMode:       strings.ToLower(getEnv("PAYMENTS_MODE", PaymentsMemory)),
		StripeAPIURL:       getEnv("STRIPE_API_URL", "https://api.stripe.com"),
		StripeSecretKey:    os.Getenv("STRIPE_SECRET_KEY"),
		Currency:           strings.ToUpper(getEnv("CURRENCY", "USD")),
		FixturesPath:       os.Getenv("LISTINGS_FIXTURES"),
		KafkaBrokers:       splitList(os.Getenv("KAFKA_BROKERS")),
		CORSOrigins:        splitList(getEnv("CORS_ORIGINS", "*")),
	}

	var err error
	if cfg.OutboxPollInterval, err = parseDurationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = parseDurationEnv("IDEMP_TTL", 168*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.LoadTimeout, err = parseDurationEnv("LOAD_TIMEOUT", 2*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.ChargeTimeout, err = parseDurationEnv("CHARGE_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.CommitTimeout, err = parseDurationEnv("COMMIT_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.CommitRetryBackoff, err = parseDurationEnv("COMMIT_RETRY_BACKOFF", 25*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.HorizonDays, err = parseIntEnv("BOOKING_HORIZON_DAYS", 90); err != nil {
		return Config{}, err
	}
	if cfg.CommitAttempts, err = parseIntEnv("COMMIT_ATTEMPTS", 3); err != nil {
		return Config{}, err
	}
	if cfg.PlatformFeePercent, err = parseIntEnv("PLATFORM_FEE_PERCENT", 5); err != nil {
		return Config{}, err
	}
	if cfg.RedisDB, err = parseIntEnv("REDIS_DB", 0); err != nil {
		return Config{}, err
	}

	for _, raw := range splitList(getEnv("RETRY_BACKOFF", "1s,5s,30s")) {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Storage {
	case StorageMemory:
	case StorageMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when STORAGE=%s", StorageMongo)
		}
	default:
		return fmt.Errorf("unknown STORAGE %q", c.Storage)
	}
	switch c.IdempotencyBackend {
	case IdempotencyMemory, IdempotencyRedis:
	case IdempotencyMongo:
		if c.Storage != StorageMongo {
			return fmt.Errorf("IDEMPOTENCY_BACKEND=%s requires STORAGE=%s", IdempotencyMongo, StorageMongo)
		}
	default:
		return fmt.Errorf("unknown IDEMPOTENCY_BACKEND %q", c.IdempotencyBackend)
	}
	switch c.PaymentsMode {
	case PaymentsMemory:
	case PaymentsStripe:
		if c.StripeSecretKey == "" {
			return fmt.Errorf("STRIPE_SECRET_KEY is required when PAYMENTS_MODE=%s", PaymentsStripe)
		}
	default:
		return fmt.Errorf("unknown PAYMENTS_MODE %q", c.PaymentsMode)
	}
	if c.HorizonDays <= 0 {
		return fmt.Errorf("BOOKING_HORIZON_DAYS must be positive")
	}
	if c.CommitAttempts <= 0 {
		return fmt.Errorf("COMMIT_ATTEMPTS must be positive")
	}
	if c.PlatformFeePercent < 0 || c.PlatformFeePercent > 100 {
		return fmt.Errorf("PLATFORM_FEE_PERCENT must be between 0 and 100")
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("CURRENCY must be a 3 letter code")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseIntEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	return v, nil
}
