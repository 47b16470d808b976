package availability

import (
	"context"
	"fmt"
	"log/slog"

	"rentfleet/internal/app/handlers/support"
	"rentfleet/internal/app/outbox"
	"rentfleet/internal/app/policies"
	"rentfleet/internal/app/uow"
	domainavailability "rentfleet/internal/domain/availability"
	domainbooking "rentfleet/internal/domain/booking"
)

const NotificationAvailabilityConflict = "AVAILABILITY_CONFLICT"

// ConflictNotifier warns a block's creator about pending bookings the block
// overlaps. It runs after commit from an outbox relay and is best-effort:
// lookup and delivery failures are logged and never returned.
type ConflictNotifier struct {
	UoW      uow.UoWFactory
	Notifier policies.Notifier
	Logger   *slog.Logger
	Metrics  Metrics
}

// Register subscribes the notifier to block creation records.
func (n *ConflictNotifier) Register(router *outbox.Router) {
	router.Handle(domainavailability.EventBlockCreated, n.HandleRecord)
}

// HandleRecord decodes a block_created record and notifies. It always returns
// nil so relays acknowledge the record.
func (n *ConflictNotifier) HandleRecord(ctx context.Context, rec outbox.EventRecord) error {
	ev, err := outbox.Decode[domainavailability.BlockCreated](rec)
	if err != nil {
		n.logger().ErrorContext(ctx, "conflict notifier: bad record", slog.String("event_id", rec.ID), slog.Any("error", err))
		return nil
	}
	n.NotifyPendingConflicts(ctx, ev)
	return nil
}

// NotifyPendingConflicts emits one notification per pending booking
// overlapping the block and returns how many were delivered.
func (n *ConflictNotifier) NotifyPendingConflicts(ctx context.Context, ev domainavailability.BlockCreated) int {
	log := n.logger().With(slog.String("block_id", string(ev.BlockID)), slog.String("listing_id", ev.ListingID))
	if n.Notifier == nil {
		log.WarnContext(ctx, "conflict notifier: no notifier configured")
		return 0
	}

	pending, err := n.pendingBookings(ctx, ev)
	if err != nil {
		log.ErrorContext(ctx, "conflict notifier: pending booking lookup failed", slog.Any("error", err))
		return 0
	}

	sent := 0
	for _, b := range pending {
		ref := b.BookingNumber
		if ref == "" {
			ref = string(b.ID)
		}
		message := fmt.Sprintf("Your availability block (%s) overlaps pending booking %s", ev.Range.String(), ref)
		metadata := map[string]string{
			"blockId":       string(ev.BlockID),
			"bookingId":     string(b.ID),
			"bookingNumber": b.BookingNumber,
		}
		if err := n.Notifier.Emit(ctx, ev.CreatedBy, NotificationAvailabilityConflict, message, metadata); err != nil {
			metricsOrNop(n.Metrics).NotificationSent(false)
			log.WarnContext(ctx, "conflict notifier: emit failed",
				slog.String("booking_id", string(b.ID)),
				slog.Any("error", err))
			continue
		}
		metricsOrNop(n.Metrics).NotificationSent(true)
		sent++
	}
	if sent > 0 {
		log.InfoContext(ctx, "conflict notifications sent", slog.Int("count", sent))
	}
	return sent
}

func (n *ConflictNotifier) pendingBookings(ctx context.Context, ev domainavailability.BlockCreated) ([]*domainbooking.Booking, error) {
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, n.UoW)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	found, err := unit.Bookings().Overlapping(ctx, ev.ListingID, ev.Range, domainbooking.StatusPending)
	if err != nil {
		return nil, err
	}
	out := found[:0]
	for _, b := range found {
		if b.IsPending() && b.Range.Overlaps(ev.Range) {
			out = append(out, b)
		}
	}
	sortBookings(out)
	return out, nil
}

func (n *ConflictNotifier) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}
