package middleware

import (
	"context"
	"log/slog"
	"time"

	"rentfleet/internal/app/commands"
	"rentfleet/internal/app/queries"
	domainavailability "rentfleet/internal/domain/availability"
)

// Observer receives the outcome of every dispatched message.
type Observer interface {
	ObserveMessage(bus, key string, elapsed time.Duration, err error)
}

// Logging writes one record per command. Expected business failures are
// logged at info, everything else at error.
func Logging(logger *slog.Logger) CommandMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			start := time.Now()
			res, err := nextFn(ctx, cmd)
			logOutcome(ctx, logger, "command", cmd.Key(), time.Since(start), err)
			return res, err
		})
	}
}

func QueryLogging(logger *slog.Logger) QueryMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			start := time.Now()
			res, err := nextFn(ctx, q)
			logOutcome(ctx, logger, "query", q.Key(), time.Since(start), err)
			return res, err
		})
	}
}

func Metrics(o Observer) CommandMiddleware {
	if o == nil {
		panic("middleware: observer required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			start := time.Now()
			res, err := nextFn(ctx, cmd)
			o.ObserveMessage("command", cmd.Key(), time.Since(start), err)
			return res, err
		})
	}
}

func QueryMetrics(o Observer) QueryMiddleware {
	if o == nil {
		panic("middleware: observer required")
	}
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			start := time.Now()
			res, err := nextFn(ctx, q)
			o.ObserveMessage("query", q.Key(), time.Since(start), err)
			return res, err
		})
	}
}

func logOutcome(ctx context.Context, logger *slog.Logger, bus, key string, elapsed time.Duration, err error) {
	attrs := []any{
		slog.String("bus", bus),
		slog.String("key", key),
		slog.Duration("duration", elapsed),
	}
	if err == nil {
		logger.DebugContext(ctx, "message handled", attrs...)
		return
	}
	kind := domainavailability.KindOf(err)
	attrs = append(attrs, slog.String("kind", string(kind)), slog.Any("error", err))
	if kind == domainavailability.KindInternal {
		logger.ErrorContext(ctx, "message failed", attrs...)
		return
	}
	logger.InfoContext(ctx, "message rejected", attrs...)
}
