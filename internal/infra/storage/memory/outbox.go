package memory

import (
	"context"
	"log/slog"
	"sync"

	appoutbox "rentfleet/internal/app/outbox"
)

// Outbox holds committed records until Flush hands them to the router.
// Handler failures are logged by the router and do not fail Flush.
type Outbox struct {
	mu      sync.Mutex
	records []appoutbox.EventRecord
	router  *appoutbox.Router
	logger  *slog.Logger
}

func NewOutbox(router *appoutbox.Router, logger *slog.Logger) *Outbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Outbox{router: router, logger: logger}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, record)
	return nil
}

func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	pending := o.records
	o.records = nil
	o.mu.Unlock()

	if o.router == nil {
		return nil
	}
	for _, rec := range pending {
		if err := o.router.Dispatch(ctx, rec); err != nil {
			o.logger.WarnContext(ctx, "memory outbox: delivery failed", slog.String("event_id", rec.ID), slog.String("event", rec.Name))
		}
	}
	return nil
}

// Pending returns a copy of records not yet flushed.
func (o *Outbox) Pending() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]appoutbox.EventRecord(nil), o.records...)
}

// stagedOutbox buffers records of one unit until it commits.
type stagedOutbox struct {
	records []appoutbox.EventRecord
}

func (s *stagedOutbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	s.records = append(s.records, record)
	return nil
}

func (s *stagedOutbox) Flush(context.Context) error { return nil }

var (
	_ appoutbox.Outbox = (*Outbox)(nil)
	_ appoutbox.Outbox = (*stagedOutbox)(nil)
)
