package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"rentfleet/internal/domain/shared/events"
)

type EventRecord struct {
	ID         string
	Name       string
	Payload    []byte
	OccurredAt time.Time
	Aggregate  string
	Headers    map[string]string
}

type Outbox interface {
	Add(ctx context.Context, record EventRecord) error
	Flush(ctx context.Context) error
}

type EventEncoder interface {
	Encode(ev events.DomainEvent) (EventRecord, error)
}

type JSONEventEncoder struct {
	IDGenerator func() string
}

func (e JSONEventEncoder) Encode(ev events.DomainEvent) (EventRecord, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return EventRecord{}, fmt.Errorf("outbox: encode %s: %w", ev.EventName(), err)
	}
	idGen := e.IDGenerator
	if idGen == nil {
		idGen = uuid.NewString
	}
	return EventRecord{
		ID:         idGen(),
		Name:       ev.EventName(),
		Payload:    payload,
		OccurredAt: ev.OccurredAt(),
		Aggregate:  ev.AggregateID(),
		Headers:    map[string]string{},
	}, nil
}

func RecordDomainEvents(ctx context.Context, box Outbox, encoder EventEncoder, evs []events.DomainEvent) error {
	if box == nil || len(evs) == 0 {
		return nil
	}
	if encoder == nil {
		encoder = JSONEventEncoder{}
	}
	for _, ev := range evs {
		rec, err := encoder.Encode(ev)
		if err != nil {
			return err
		}
		if err := box.Add(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// HandlerFunc consumes one committed event record.
type HandlerFunc func(ctx context.Context, rec EventRecord) error

// Router fans committed records out to the handlers registered for their name.
// Every relay (in-process flush, Kafka consumer) delivers through a Router.
type Router struct {
	mu       sync.RWMutex
	handlers map[string][]HandlerFunc
	logger   *slog.Logger
}

func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{handlers: make(map[string][]HandlerFunc), logger: logger}
}

func (r *Router) Handle(name string, h HandlerFunc) {
	if name == "" || h == nil {
		panic("outbox: empty route registration")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = append(r.handlers[name], h)
}

// Routes reports whether any handler is registered for name.
func (r *Router) Routes(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[name]) > 0
}

// Dispatch runs every handler for rec.Name and joins their errors.
// Records without handlers are skipped.
func (r *Router) Dispatch(ctx context.Context, rec EventRecord) error {
	r.mu.RLock()
	hs := append([]HandlerFunc(nil), r.handlers[rec.Name]...)
	r.mu.RUnlock()

	var errs []error
	for _, h := range hs {
		if err := h(ctx, rec); err != nil {
			r.logger.WarnContext(ctx, "outbox handler failed",
				slog.String("event", rec.Name),
				slog.String("event_id", rec.ID),
				slog.Any("error", err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Decode unmarshals a record payload into a typed event.
func Decode[T any](rec EventRecord) (T, error) {
	var out T
	if err := json.Unmarshal(rec.Payload, &out); err != nil {
		return out, fmt.Errorf("outbox: decode %s %s: %w", rec.Name, rec.ID, err)
	}
	return out, nil
}
