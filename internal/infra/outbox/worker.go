package outbox

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Record is a durable outbox row as seen by the relay.
type Record struct {
	ID         string
	Name       string
	Payload    []byte
	OccurredAt time.Time
	Aggregate  string
	Headers    map[string]string
	Attempts   int
}

// Store is implemented by each durable driver's outbox table or collection.
// Claim returns nil when nothing is due.
type Store interface {
	Claim(ctx context.Context, workerID string) (*Record, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error
}

type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// Observer counts relay outcomes.
type Observer interface {
	OutboxRelayed(ok bool)
}

type Worker struct {
	Store       Store
	Producer    Producer
	Interval    time.Duration
	BatchSize   int
	TopicPrefix string
	Source      string
	ID          string
	Backoff     []time.Duration
	Logger      *slog.Logger
	Metrics     Observer
	Now         func() time.Time
}

var ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")

// Run relays due records every interval until ctx ends. Store errors are
// logged and retried on the next tick.
func (w *Worker) Run(ctx context.Context) error {
	if w.Store == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.Drain(ctx); err != nil && ctx.Err() == nil {
				w.logger().ErrorContext(ctx, "outbox relay failed", slog.Any("error", err))
			}
		}
	}
}

// Drain relays up to BatchSize records and reports how many were claimed.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	n := 0
	for n < w.batchSize() {
		claimed, err := w.processOnce(ctx)
		if err != nil {
			return n, err
		}
		if !claimed {
			break
		}
		n++
	}
	return n, nil
}

func (w *Worker) processOnce(ctx context.Context) (bool, error) {
	rec, err := w.Store.Claim(ctx, w.ID)
	if err != nil || rec == nil {
		return false, err
	}
	payload, headers, err := Wrap(*rec, w.source())
	if err == nil {
		err = w.Producer.Publish(ctx, w.TopicFor(rec.Name), rec.Aggregate, payload, headers)
	}
	if err != nil {
		w.observe(false)
		w.logger().WarnContext(ctx, "outbox publish failed",
			slog.String("event_id", rec.ID),
			slog.String("event", rec.Name),
			slog.Int("attempts", rec.Attempts+1),
			slog.Any("error", err))
		return true, w.Store.MarkFailed(ctx, rec.ID, w.nextRetry(rec.Attempts), err.Error())
	}
	w.observe(true)
	return true, w.Store.MarkSent(ctx, rec.ID)
}

// TopicFor maps an event name to its topic: "availability.block.created"
// goes to "<prefix>availability.events.v1".
func (w *Worker) TopicFor(name string) string {
	return TopicFor(w.TopicPrefix, name)
}

func TopicFor(prefix, name string) string {
	base := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		base = name[:idx]
	}
	return prefix + base + ".events.v1"
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return w.Interval
}

func (w *Worker) batchSize() int {
	if w.BatchSize <= 0 {
		return 50
	}
	return w.BatchSize
}

func (w *Worker) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

func (w *Worker) nextRetry(attempts int) time.Time {
	if attempts < len(w.Backoff) {
		return w.now().Add(w.Backoff[attempts])
	}
	if len(w.Backoff) > 0 {
		return w.now().Add(w.Backoff[len(w.Backoff)-1])
	}
	return w.now().Add(5 * time.Second)
}

func (w *Worker) source() string {
	if w.Source != "" {
		return w.Source
	}
	return "app://rentfleet"
}

func (w *Worker) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}

func (w *Worker) observe(ok bool) {
	if w.Metrics != nil {
		w.Metrics.OutboxRelayed(ok)
	}
}
