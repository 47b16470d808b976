package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	appavailability "rentfleet/internal/app/availability"
	"rentfleet/internal/app/commands"
	availabilityapp "rentfleet/internal/app/handlers/availability"
	"rentfleet/internal/app/middleware"
	appoutbox "rentfleet/internal/app/outbox"
	"rentfleet/internal/app/policies"
	"rentfleet/internal/app/queries"
	domainbooking "rentfleet/internal/domain/booking"
	"rentfleet/internal/domain/shared/daterange"
	"rentfleet/internal/infra/broker/kafka"
	"rentfleet/internal/infra/config"
	ginserver "rentfleet/internal/infra/http/gin"
	"rentfleet/internal/infra/notify"
	"rentfleet/internal/infra/obs"
	infraoutbox "rentfleet/internal/infra/outbox"
	"rentfleet/internal/infra/validation"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(); err != nil {
		obs.NewLogger("prod").Warn("dotenv ignored", "error", err)
	}
	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger("prod").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLoggerTo(os.Stdout, cfg.Env, cfg.LogLevel)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("rentfleet stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("rentfleet stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	metrics := obs.NewMetrics("rentfleet")
	router := appoutbox.NewRouter(logger)

	st, err := openStorage(ctx, cfg, router, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.close(closeCtx); err != nil {
			logger.Error("storage close failed", "error", err)
		}
	}()

	var producer *kafka.Producer
	if cfg.KafkaEnabled() {
		producer, err = kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		defer producer.Close()
	}

	engine := &appavailability.Service{
		UoW:             st.factory,
		Logger:          logger,
		Metrics:         metrics,
		MaxInstances:    cfg.MaxInstances,
		BulkConcurrency: cfg.BulkConcurrency,
	}
	bookingValidator := &appavailability.BookingValidator{UoW: st.factory, Bookings: st.bookings, Logger: logger, Metrics: metrics}
	conflictNotifier := &appavailability.ConflictNotifier{
		UoW:      st.factory,
		Notifier: selectNotifier(cfg, producer, logger),
		Logger:   logger,
		Metrics:  metrics,
	}
	conflictNotifier.Register(router)

	if err := seedBookings(ctx, st.bookings, bookingFixturesPath(), logger); err != nil {
		logger.Warn("booking fixtures load failed", "error", err)
	}

	structValidator := validation.New()
	commandBus := commands.NewInMemoryBus()
	availabilityapp.RegisterCommands(commandBus, engine, bookingValidator)
	queryBus := queries.NewInMemoryBus()
	availabilityapp.RegisterQueries(queryBus, engine, bookingValidator)

	commandBusWithMiddleware := middleware.ChainCommands(
		commandBus,
		middleware.Logging(logger),
		middleware.Metrics(metrics),
		middleware.Validation(structValidator),
		middleware.Idempotency(st.idempotency, middleware.JSONResultCodec{}),
		middleware.OutboxFlush(st.outbox, logger),
	)
	queryBusWithMiddleware := middleware.ChainQueries(
		queryBus,
		middleware.QueryLogging(logger),
		middleware.QueryMetrics(metrics),
		middleware.QueryValidation(structValidator),
	)

	handlers := ginserver.Handlers{
		Availability: ginserver.AvailabilityHandler{
			Commands: commandBusWithMiddleware,
			Queries:  queryBusWithMiddleware,
			Logger:   logger,
		},
	}
	if cfg.MetricsEnabled {
		handlers.Metrics = metrics.Handler()
	}
	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger, Metrics: metrics}, obs.HealthHandlers{
		Checks:  st.checks,
		Timeout: 2 * time.Second,
	}, handlers)

	g, gctx := errgroup.WithContext(ctx)

	if st.relay != nil {
		var publisher infraoutbox.Producer = infraoutbox.LocalProducer{Router: router}
		if producer != nil {
			publisher = producer
		}
		worker := &infraoutbox.Worker{
			Store:       st.relay,
			Producer:    publisher,
			Interval:    cfg.OutboxPollInterval,
			TopicPrefix: cfg.KafkaTopicPrefix,
			ID:          workerID(),
			Backoff:     cfg.RetryBackoff,
			Logger:      logger,
			Metrics:     metrics,
		}
		g.Go(func() error { return worker.Run(gctx) })
	}

	if cfg.KafkaEnabled() {
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaConsumerGroup, nil, kafka.RelayHandler{
			Router: router,
			Inbox:  st.inbox,
			Logger: logger,
		}, logger)
		if err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
		defer consumer.Close()
		topics := []string{infraoutbox.TopicFor(cfg.KafkaTopicPrefix, "availability")}
		g.Go(func() error { return consumer.Run(gctx, topics) })
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "driver", cfg.StorageDriver, "kafka", cfg.KafkaEnabled())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// selectNotifier publishes to the notifications topic when Kafka is configured
// and otherwise logs the notification.
func selectNotifier(cfg config.Config, producer *kafka.Producer, logger *slog.Logger) policies.Notifier {
	if producer != nil && cfg.NotificationsTopic != "" {
		return notify.KafkaEmitter{Publisher: producer, Topic: cfg.Topic(cfg.NotificationsTopic)}
	}
	return notify.LogEmitter{Logger: logger}
}

func workerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "rentfleet"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

type bookingFixture struct {
	ID            string `json:"id"`
	BookingNumber string `json:"booking_number"`
	ListingID     string `json:"listing_id"`
	RenterID      string `json:"renter_id"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	Status        string `json:"status"`
}

// seedBookings loads the bookings projection from a JSON file, which lets a
// standalone instance answer conflict checks without the booking service.
func seedBookings(ctx context.Context, repo domainbooking.Writer, path string, logger *slog.Logger) error {
	if repo == nil || path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Debug("booking fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	var fixtures []bookingFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}
	for _, fx := range fixtures {
		b, err := fx.toBooking()
		if err != nil {
			logger.Error("fixture invalid", "booking_id", fx.ID, "error", err)
			continue
		}
		if err := repo.Put(ctx, b); err != nil {
			logger.Error("cannot store fixture booking", "booking_id", fx.ID, "error", err)
			continue
		}
	}
	logger.Info("booking fixtures imported", "path", path, "count", len(fixtures))
	return nil
}

func (fx bookingFixture) toBooking() (*domainbooking.Booking, error) {
	status, ok := domainbooking.ParseStatus(fx.Status)
	if !ok {
		return nil, fmt.Errorf("unknown status %q", fx.Status)
	}
	start, err := daterange.ParseDay(fx.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := daterange.ParseDay(fx.EndDate)
	if err != nil {
		return nil, err
	}
	r, err := daterange.New(start, end)
	if err != nil {
		return nil, err
	}
	return &domainbooking.Booking{
		ID:            domainbooking.BookingID(fx.ID),
		BookingNumber: fx.BookingNumber,
		ListingID:     fx.ListingID,
		RenterID:      fx.RenterID,
		Range:         r,
		Status:        status,
	}, nil
}

func bookingFixturesPath() string {
	if p := os.Getenv("BOOKINGS_FIXTURES"); p != "" {
		return p
	}
	candidate := filepath.Join("data", "bookings.json")
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}
