package kafka

import (
	"context"
	"errors"
	"log/slog"

	"github.com/IBM/sarama"

	appoutbox "rentfleet/internal/app/outbox"
	infraoutbox "rentfleet/internal/infra/outbox"
)

// Inbox remembers handled event ids per consumer.
type Inbox interface {
	// Seen records id and reports whether it was already recorded.
	Seen(ctx context.Context, eventID string) (bool, error)
	// Forget drops id so a failed delivery can be retried.
	Forget(ctx context.Context, eventID string) error
}

// RelayHandler turns relayed CloudEvents back into event records and routes
// them. Duplicates are skipped; malformed messages are logged and dropped.
type RelayHandler struct {
	Router *appoutbox.Router
	Inbox  Inbox
	Logger *slog.Logger
}

func (h RelayHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	log := h.Logger
	if log == nil {
		log = slog.Default()
	}
	rec, err := infraoutbox.Unwrap(msg.Value)
	if err != nil {
		log.WarnContext(ctx, "dropping malformed event", slog.String("topic", msg.Topic), slog.Any("error", err))
		return nil
	}
	if h.Inbox != nil {
		seen, err := h.Inbox.Seen(ctx, rec.ID)
		if err != nil {
			return err
		}
		if seen {
			log.DebugContext(ctx, "duplicate event skipped", slog.String("event_id", rec.ID))
			return nil
		}
	}
	if err := h.Router.Dispatch(ctx, rec); err != nil {
		if h.Inbox != nil {
			if ferr := h.Inbox.Forget(ctx, rec.ID); ferr != nil {
				return errors.Join(err, ferr)
			}
		}
		return err
	}
	return nil
}
