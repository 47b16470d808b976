package outbox

import (
	"context"

	appoutbox "rentfleet/internal/app/outbox"
)

// LocalProducer delivers relayed events to an in-process router. It stands in
// for the broker when a durable driver runs without Kafka.
type LocalProducer struct {
	Router *appoutbox.Router
}

func (p LocalProducer) Publish(ctx context.Context, _ string, _ string, payload []byte, _ map[string]string) error {
	rec, err := Unwrap(payload)
	if err != nil {
		return err
	}
	return p.Router.Dispatch(ctx, rec)
}
