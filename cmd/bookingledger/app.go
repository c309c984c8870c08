package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"bookingledger/internal/app/commands"
	"bookingledger/internal/app/dto"
	availabilityapp "bookingledger/internal/app/handlers/availability"
	bookingapp "bookingledger/internal/app/handlers/booking"
	pricingapp "bookingledger/internal/app/handlers/pricing"
	reconciliationapp "bookingledger/internal/app/handlers/reconciliation"
	"bookingledger/internal/app/middleware"
	"bookingledger/internal/app/outbox"
	"bookingledger/internal/app/policies"
	"bookingledger/internal/app/queries"
	"bookingledger/internal/app/reservation"
	"bookingledger/internal/app/uow"
	"bookingledger/internal/infra/broker/kafka"
	"bookingledger/internal/infra/broker/local"
	"bookingledger/internal/infra/config"
	mongodb "bookingledger/internal/infra/db/mongo"
	ginserver "bookingledger/internal/infra/http/gin"
	"bookingledger/internal/infra/inbox"
	"bookingledger/internal/infra/obs"
	infraoutbox "bookingledger/internal/infra/outbox"
	"bookingledger/internal/infra/payments"
	"bookingledger/internal/infra/storage/memory"
	redisstore "bookingledger/internal/infra/storage/redis"
	"bookingledger/internal/infra/validation"
)

const eventSource = "bookingledger"

type application struct {
	handlers   ginserver.Handlers
	factory    uow.UoWFactory
	health     map[string]obs.Pinger
	background []func(ctx context.Context) error
	closers    []func(ctx context.Context) error
}

type storage struct {
	factory     uow.UoWFactory
	relay       infraoutbox.Source
	inbox       kafka.Inbox
	idempotency middleware.IdempotencyStore
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{health: make(map[string]obs.Pinger)}

	store, err := app.openStorage(ctx, cfg, logger)
	if err != nil {
		app.close(logger)
		return nil, err
	}
	app.factory = store.factory

	charges, refunds, err := buildPayments(cfg, logger)
	if err != nil {
		app.close(logger)
		return nil, err
	}
	units := &reservation.UnitStore{Factory: store.factory, Encoder: outbox.JSONEventEncoder{}}
	coordinator, err := reservation.NewCoordinator(reservation.Deps{
		Store:       units,
		Charges:     charges,
		Obligations: units,
		Logger:      logger,
	}, reservation.Config{
		HorizonDays:    cfg.HorizonDays,
		CommitAttempts: cfg.CommitAttempts,
		FeePercent:     cfg.PlatformFeePercent,
		LoadTimeout:    cfg.LoadTimeout,
		ChargeTimeout:  cfg.ChargeTimeout,
		CommitTimeout:  cfg.CommitTimeout,
		RecordTimeout:  cfg.CommitTimeout,
		RetryBackoff:   cfg.CommitRetryBackoff,
	})
	if err != nil {
		app.close(logger)
		return nil, err
	}

	commandBus := commands.NewInMemoryBus()
	reserveHandler := &bookingapp.ReserveHandler{Reservations: coordinator}
	commands.RegisterHandler[bookingapp.ReserveCommand, *dto.Booking](commandBus, bookingapp.ReserveCommand{}.Key(), reserveHandler)
	refundHandler := &reconciliationapp.ProcessRefundHandler{
		UoWFactory: store.factory,
		Refunds:    refunds,
		Encoder:    outbox.JSONEventEncoder{},
		Logger:     logger,
	}
	commands.RegisterHandler[reconciliationapp.ProcessRefundCommand, *reconciliationapp.ProcessRefundResult](commandBus, reconciliationapp.ProcessRefundCommand{}.Key(), refundHandler)

	queryBus := queries.NewInMemoryBus()
	calendarHandler := &availabilityapp.GetCalendarHandler{UoWFactory: store.factory}
	queries.RegisterHandler[availabilityapp.GetCalendarQuery, dto.Calendar](queryBus, availabilityapp.GetCalendarQuery{}.Key(), calendarHandler)
	quoteHandler := &pricingapp.QuoteHandler{UoWFactory: store.factory, FeePercent: cfg.PlatformFeePercent}
	queries.RegisterHandler[pricingapp.QuoteQuery, dto.Quote](queryBus, pricingapp.QuoteQuery{}.Key(), quoteHandler)
	bookingsHandler := &bookingapp.ListListingBookingsHandler{UoWFactory: store.factory, Logger: logger}
	queries.RegisterHandler[bookingapp.ListListingBookingsQuery, dto.BookingPage](queryBus, bookingapp.ListListingBookingsQuery{}.Key(), bookingsHandler)
	guestBookingsHandler := &bookingapp.ListGuestBookingsHandler{UoWFactory: store.factory, Logger: logger}
	queries.RegisterHandler[bookingapp.ListGuestBookingsQuery, dto.BookingPage](queryBus, bookingapp.ListGuestBookingsQuery{}.Key(), guestBookingsHandler)

	validator := validation.New()
	commandBusWithMiddleware := middleware.ChainCommands(
		commandBus,
		middleware.Logging(logger),
		middleware.Validation(validator),
		middleware.Authorization(middleware.RequireViewer()),
		middleware.Idempotency(store.idempotency, nil),
	)
	queryBusWithMiddleware := middleware.ChainQueries(
		queryBus,
		middleware.QueryValidation(validator),
		middleware.QueryAuthorization(middleware.RequireViewer()),
	)

	producer, err := app.wireReconciliation(cfg, store, commandBusWithMiddleware, logger)
	if err != nil {
		app.close(logger)
		return nil, err
	}
	worker := &infraoutbox.Worker{
		Store:       store.relay,
		Producer:    producer,
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Source:      eventSource,
		Backoff:     cfg.RetryBackoff,
		Logger:      logger,
	}
	app.background = append(app.background, worker.Run)

	app.handlers = ginserver.Handlers{
		Booking:        ginserver.BookingHandler{Commands: commandBusWithMiddleware},
		Listing:        ginserver.ListingHandler{Queries: queryBusWithMiddleware},
		Reconciliation: ginserver.ReconciliationHandler{Commands: commandBusWithMiddleware},
		Me:             ginserver.MeHandler{Queries: queryBusWithMiddleware},
		AuthMiddleware: ginserver.HeaderAuth(),
	}
	return app, nil
}

func (a *application) openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage, error) {
	var out storage
	switch cfg.Storage {
	case config.StorageMongo:
		client, err := mongodb.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return out, fmt.Errorf("connect mongo: %w", err)
		}
		a.health["mongo"] = client
		a.closers = append(a.closers, client.Close)
		box := infraoutbox.NewStore(client.DB)
		factory := mongodb.NewFactory(client.DB, box)
		consumed := inbox.NewStore(client.DB, cfg.KafkaGroupID)
		for _, ensure := range []func(context.Context) error{factory.EnsureIndexes, box.EnsureIndexes, consumed.EnsureIndexes} {
			if err := ensure(ctx); err != nil {
				return out, fmt.Errorf("ensure mongo indexes: %w", err)
			}
		}
		out.factory = factory
		out.relay = box
		out.inbox = consumed
		logger.Info("mongo storage ready", "database", cfg.MongoDB)
	default:
		store := memory.NewStore()
		a.health["storage"] = store
		out.factory = store
		out.relay = store.Relay()
		out.inbox = memory.NewInbox()
	}

	switch cfg.IdempotencyBackend {
	case config.IdempotencyRedis:
		client, err := redisstore.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return out, fmt.Errorf("connect redis: %w", err)
		}
		a.health["redis"] = obs.PingerFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() })
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		out.idempotency = redisstore.NewIdempotencyStore(client, cfg.IdempotencyTTL)
	case config.IdempotencyMongo:
		factory, ok := out.factory.(mongodb.Factory)
		if !ok {
			return out, fmt.Errorf("idempotency backend %q needs mongo storage", cfg.IdempotencyBackend)
		}
		store := mongodb.NewIdempotencyStore(factory.DB, cfg.IdempotencyTTL)
		if err := store.EnsureIndexes(ctx); err != nil {
			return out, fmt.Errorf("ensure idempotency index: %w", err)
		}
		out.idempotency = store
	default:
		out.idempotency = memory.NewIdempotencyStore(cfg.IdempotencyTTL)
	}
	return out, nil
}

func buildPayments(cfg config.Config, logger *slog.Logger) (policies.ChargePort, policies.RefundPort, error) {
	if cfg.PaymentsMode == config.PaymentsStripe {
		client, err := payments.NewStripeClient(payments.StripeConfig{
			SecretKey:  cfg.StripeSecretKey,
			BaseURL:    cfg.StripeAPIURL,
			HTTPClient: &http.Client{Timeout: cfg.ChargeTimeout},
			Logger:     logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return client, client, nil
	}
	logger.Warn("using in-memory payment processor")
	p := memory.NewPayments()
	return p, p, nil
}

// wireReconciliation returns the producer the outbox relays to and
// subscribes the refund handler to refund-required events. Without brokers
// events are delivered in process.
func (a *application) wireReconciliation(cfg config.Config, store storage, bus commands.Bus, logger *slog.Logger) (infraoutbox.Producer, error) {
	handler := &kafka.RefundHandler{Bus: bus, Inbox: store.inbox, Logger: logger}
	topic := infraoutbox.TopicFor(cfg.KafkaTopicPrefix, "reconciliation.refund_required")

	if len(cfg.KafkaBrokers) == 0 {
		producer := local.NewProducer(logger)
		producer.Subscribe(topic, handler)
		logger.Info("kafka disabled, delivering events in process", "topic", topic)
		return producer, nil
	}

	producer, err := kafka.NewProducer(cfg.KafkaBrokers, kafka.NewConfig(eventSource))
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return producer.Close() })
	consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, kafka.NewConfig(cfg.KafkaGroupID), handler, logger)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return consumer.Close() })
	a.background = append(a.background, func(ctx context.Context) error {
		return consumer.Run(ctx, []string{topic})
	})
	return producer, nil
}

func (a *application) close(logger *slog.Logger) {
	ctx := context.Background()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
