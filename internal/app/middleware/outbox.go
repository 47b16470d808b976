package middleware

import (
	"context"
	"log/slog"

	"rentfleet/internal/app/commands"
	"rentfleet/internal/app/outbox"
)

// OutboxFlush delivers staged records once a command has committed. The
// command result stands even if delivery fails; durable outboxes are retried
// by the relay worker.
func OutboxFlush(box outbox.Outbox, logger *slog.Logger) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := nextFn(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if err := box.Flush(ctx); err != nil {
				logger.WarnContext(ctx, "outbox flush failed",
					slog.String("key", cmd.Key()), slog.Any("error", err))
			}
			return res, nil
		})
	}
}
