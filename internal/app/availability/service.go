package availability

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"rentfleet/internal/app/handlers/support"
	"rentfleet/internal/app/outbox"
	"rentfleet/internal/app/uow"
	domainavailability "rentfleet/internal/domain/availability"
	"rentfleet/internal/domain/shared/daterange"
)

const (
	DefaultMaxInstances    = 366
	DefaultBulkConcurrency = 8
)

// Service is the availability engine: block and pattern lifecycle plus
// overlap checks. Every write runs in its own unit of work holding the
// listing lock unless the caller already placed a unit in the context.
type Service struct {
	UoW     uow.UoWFactory
	Encoder outbox.EventEncoder
	Logger  *slog.Logger
	Metrics Metrics
	Now     func() time.Time
	NewID   func() string

	// MaxInstances caps occurrences materialized per call.
	MaxInstances int
	// BulkConcurrency bounds listings processed in parallel by CreateBulkBlocks.
	BulkConcurrency int
}

type CreateBlockInput struct {
	ListingID   string
	ListingType domainavailability.ListingType
	StartDate   time.Time
	EndDate     time.Time
	Reason      string
	CreatedBy   string
}

// CreateBlock persists a one-off block unless it would cover a committed
// booking of the listing. Other blocks may overlap freely.
func (s *Service) CreateBlock(ctx context.Context, in CreateBlockInput) (*domainavailability.AvailabilityBlock, error) {
	block, err := domainavailability.NewBlock(domainavailability.CreateBlockParams{
		ID:          domainavailability.BlockID(s.newID()),
		ListingID:   in.ListingID,
		ListingType: in.ListingType,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Reason:      in.Reason,
		CreatedBy:   in.CreatedBy,
		Now:         s.now(),
	})
	if err != nil {
		return nil, err
	}

	evs := block.Drain()
	err = support.RunInUnit(ctx, s.UoW, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		if err := unit.LockListing(ctx, block.ListingID); err != nil {
			return err
		}
		conflicts, err := DetectConflicts(ctx, unit, block.ListingID, block.Range, CheckOptions{Sources: SourceBookings})
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			s.metrics().ConflictDetected(domainavailability.KindBookingConflict)
			return domainavailability.BookingConflict(conflicts)
		}
		if err := unit.Blocks().Create(ctx, block); err != nil {
			return err
		}
		return outbox.RecordDomainEvents(ctx, unit.Outbox(), s.encoder(), evs)
	})
	if err != nil {
		return nil, err
	}

	s.metrics().BlockCreated(block.ListingType)
	s.logger().InfoContext(ctx, "availability block created",
		slog.String("block_id", string(block.ID)),
		slog.String("listing_id", block.ListingID),
		slog.String("range", block.Range.String()))
	return block, nil
}

// CheckOverlap is the read-only conflict query.
func (s *Service) CheckOverlap(ctx context.Context, listingID string, r daterange.DateRange, opts CheckOptions) ([]domainavailability.Conflict, error) {
	r, err := normalizeRange(r)
	if err != nil {
		return nil, err
	}
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, s.UoW)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	return DetectConflicts(ctx, unit, listingID, r, opts)
}

// ListBlocks returns the merged calendar of one-off blocks and pattern
// occurrences of a listing within window.
func (s *Service) ListBlocks(ctx context.Context, listingID string, window daterange.DateRange) (domainavailability.Calendar, error) {
	window, err := normalizeRange(window)
	if err != nil {
		return domainavailability.Calendar{}, err
	}
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, s.UoW)
	if err != nil {
		return domainavailability.Calendar{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	blocks, err := unit.Blocks().Overlapping(ctx, listingID, window)
	if err != nil {
		return domainavailability.Calendar{}, err
	}
	patterns, err := unit.Recurring().ActiveIn(ctx, listingID, window)
	if err != nil {
		return domainavailability.Calendar{}, err
	}
	return domainavailability.BuildCalendar(listingID, window, blocks, patterns, s.maxInstances()), nil
}

func normalizeRange(r daterange.DateRange) (daterange.DateRange, error) {
	start, end := daterange.Day(r.Start), daterange.Day(r.End)
	if start.IsZero() || end.IsZero() {
		return daterange.DateRange{}, &domainavailability.Error{Kind: domainavailability.ErrInvalidDateRange, Message: "start and end dates are required"}
	}
	if end.Before(start) {
		return daterange.DateRange{}, domainavailability.InvalidDateRange(start, end)
	}
	return daterange.DateRange{Start: start, End: end}, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) encoder() outbox.EventEncoder {
	if s.Encoder != nil {
		return s.Encoder
	}
	return outbox.JSONEventEncoder{}
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Service) metrics() Metrics {
	return metricsOrNop(s.Metrics)
}

func (s *Service) maxInstances() int {
	if s.MaxInstances > 0 {
		return s.MaxInstances
	}
	return DefaultMaxInstances
}

func (s *Service) bulkConcurrency() int {
	if s.BulkConcurrency > 0 {
		return s.BulkConcurrency
	}
	return DefaultBulkConcurrency
}
