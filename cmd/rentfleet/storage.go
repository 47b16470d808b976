package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"rentfleet/internal/app/middleware"
	appoutbox "rentfleet/internal/app/outbox"
	"rentfleet/internal/app/uow"
	domainbooking "rentfleet/internal/domain/booking"
	"rentfleet/internal/infra/broker/kafka"
	"rentfleet/internal/infra/config"
	mongostore "rentfleet/internal/infra/db/mongo"
	"rentfleet/internal/infra/db/postgres"
	"rentfleet/internal/infra/inbox"
	infraoutbox "rentfleet/internal/infra/outbox"
	"rentfleet/internal/infra/storage/memory"
)

const inboxRetention = 7 * 24 * time.Hour

// storage is the driver-specific half of the wiring.
type storage struct {
	factory     uow.UoWFactory
	outbox      appoutbox.Outbox
	idempotency middleware.IdempotencyStore
	// relay is nil when records are dispatched on Flush.
	relay    infraoutbox.Store
	inbox    kafka.Inbox
	bookings domainbooking.Writer
	checks   map[string]func(ctx context.Context) error
	close    func(ctx context.Context) error
}

func openStorage(ctx context.Context, cfg config.Config, router *appoutbox.Router, logger *slog.Logger) (*storage, error) {
	switch cfg.StorageDriver {
	case config.DriverMongo:
		return openMongo(ctx, cfg, logger)
	case config.DriverPostgres:
		return openPostgres(ctx, cfg, logger)
	default:
		box := memory.NewOutbox(router, logger)
		factory := memory.NewFactory(box)
		return &storage{
			factory:     factory,
			outbox:      box,
			idempotency: memory.NewIdempotencyStore(cfg.IdempotencyTTL),
			bookings:    factory.BookingsRepo,
			checks:      map[string]func(ctx context.Context) error{},
			close:       func(context.Context) error { return nil },
		}, nil
	}
}

func openMongo(ctx context.Context, cfg config.Config, logger *slog.Logger) (*storage, error) {
	client, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := mongostore.EnsureIndexes(ctx, client.DB); err != nil {
		_ = client.Close(ctx)
		return nil, err
	}
	idem, err := mongostore.NewIdempotencyStore(ctx, client.DB, cfg.IdempotencyTTL)
	if err != nil {
		_ = client.Close(ctx)
		return nil, fmt.Errorf("mongo idempotency store: %w", err)
	}
	consumed, err := inbox.NewStore(ctx, client.DB, cfg.KafkaConsumerGroup, inboxRetention)
	if err != nil {
		_ = client.Close(ctx)
		return nil, fmt.Errorf("mongo inbox store: %w", err)
	}
	factory := mongostore.NewFactory(client.DB)
	logger.Info("storage ready", "driver", config.DriverMongo, "database", cfg.MongoDB)
	return &storage{
		factory:     factory,
		outbox:      factory.Outbox,
		idempotency: idem,
		relay:       factory.Outbox,
		inbox:       consumed,
		bookings:    factory.Bookings,
		checks:      map[string]func(ctx context.Context) error{"mongo": client.Ping},
		close:       client.Close,
	}, nil
}

func openPostgres(ctx context.Context, cfg config.Config, logger *slog.Logger) (*storage, error) {
	db, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if purged, err := postgres.PurgeInbox(ctx, db, time.Now().Add(-inboxRetention)); err != nil {
		logger.Warn("inbox purge failed", "error", err)
	} else if purged > 0 {
		logger.Info("inbox purged", "rows", purged)
	}
	factory := postgres.NewFactory(db)
	logger.Info("storage ready", "driver", config.DriverPostgres)
	return &storage{
		factory:     factory,
		outbox:      factory.Outbox,
		idempotency: postgres.NewIdempotencyStore(db, cfg.IdempotencyTTL),
		relay:       factory.Outbox,
		inbox:       postgres.NewInboxStore(db, cfg.KafkaConsumerGroup),
		bookings:    factory.Bookings,
		checks:      map[string]func(ctx context.Context) error{"postgres": db.PingContext},
		close:       func(context.Context) error { return db.Close() },
	}, nil
}
