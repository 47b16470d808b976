package availability

import (
	"context"
	"time"

	appavailability "rentfleet/internal/app/availability"
	"rentfleet/internal/app/dto"
	"rentfleet/internal/app/queries"
	domainavailability "rentfleet/internal/domain/availability"
	"rentfleet/internal/domain/shared/daterange"
)

const (
	listBlocksKey         = "availability.blocks"
	recurringInstancesKey = "availability.recurring.instances"
	checkOverlapKey       = "availability.conflicts"
	checkAvailabilityKey  = "availability.check"
)

type ListBlocksQuery struct {
	ListingID string    `validate:"required"`
	From      time.Time `validate:"required"`
	To        time.Time `validate:"required"`
}

func (q ListBlocksQuery) Key() string { return listBlocksKey }

type ListBlocksHandler struct {
	Engine *appavailability.Service
}

func (h *ListBlocksHandler) Handle(ctx context.Context, q ListBlocksQuery) (dto.Calendar, error) {
	cal, err := h.Engine.ListBlocks(ctx, q.ListingID, daterange.DateRange{Start: q.From, End: q.To})
	if err != nil {
		return dto.Calendar{}, err
	}
	return dto.MapCalendar(cal), nil
}

type RecurringInstancesQuery struct {
	ID    string    `validate:"required"`
	From  time.Time `validate:"required"`
	To    time.Time `validate:"required"`
	Limit int       `validate:"gte=0"`
}

func (q RecurringInstancesQuery) Key() string { return recurringInstancesKey }

type RecurringInstancesHandler struct {
	Engine *appavailability.Service
}

func (h *RecurringInstancesHandler) Handle(ctx context.Context, q RecurringInstancesQuery) ([]dto.Block, error) {
	blocks, err := h.Engine.GenerateRecurringInstances(ctx, domainavailability.RecurringBlockID(q.ID), q.From, q.To, q.Limit)
	if err != nil {
		return nil, err
	}
	return dto.MapBlocks(blocks), nil
}

type CheckOverlapQuery struct {
	ListingID      string    `validate:"required"`
	From           time.Time `validate:"required"`
	To             time.Time `validate:"required"`
	ExcludeBlockID string
	BookingsOnly   bool
	BlocksOnly     bool `validate:"excluded_with=BookingsOnly"`
}

func (q CheckOverlapQuery) Key() string { return checkOverlapKey }

type CheckOverlapHandler struct {
	Engine *appavailability.Service
}

func (h *CheckOverlapHandler) Handle(ctx context.Context, q CheckOverlapQuery) ([]dto.Conflict, error) {
	opts := appavailability.CheckOptions{ExcludeBlockID: q.ExcludeBlockID}
	switch {
	case q.BookingsOnly:
		opts.Sources = appavailability.SourceBookings
	case q.BlocksOnly:
		opts.Sources = appavailability.SourceBlocks
	}
	conflicts, err := h.Engine.CheckOverlap(ctx, q.ListingID, daterange.DateRange{Start: q.From, End: q.To}, opts)
	if err != nil {
		return nil, err
	}
	return dto.MapConflicts(conflicts), nil
}

// CheckAvailabilityQuery is the booking-time gate. A taken range surfaces
// as an ErrNotAvailable error, not as a negative result.
type CheckAvailabilityQuery struct {
	ListingID string    `validate:"required"`
	StartDate time.Time `validate:"required"`
	EndDate   time.Time `validate:"required"`
}

func (q CheckAvailabilityQuery) Key() string { return checkAvailabilityKey }

type CheckAvailabilityHandler struct {
	Validator *appavailability.BookingValidator
}

func (h *CheckAvailabilityHandler) Handle(ctx context.Context, q CheckAvailabilityQuery) (*dto.AvailabilityCheck, error) {
	r := daterange.DateRange{Start: q.StartDate, End: q.EndDate}
	if err := h.Validator.Validate(ctx, q.ListingID, r); err != nil {
		return nil, err
	}
	return &dto.AvailabilityCheck{
		ListingID: q.ListingID,
		StartDate: daterange.Day(q.StartDate).Format(daterange.Layout),
		EndDate:   daterange.Day(q.EndDate).Format(daterange.Layout),
		Available: true,
	}, nil
}

// RegisterQueries wires every availability query handler onto bus.
func RegisterQueries(bus *queries.InMemoryBus, engine *appavailability.Service, validator *appavailability.BookingValidator) {
	queries.RegisterHandler[ListBlocksQuery, dto.Calendar](bus, listBlocksKey, &ListBlocksHandler{Engine: engine})
	queries.RegisterHandler[RecurringInstancesQuery, []dto.Block](bus, recurringInstancesKey, &RecurringInstancesHandler{Engine: engine})
	queries.RegisterHandler[CheckOverlapQuery, []dto.Conflict](bus, checkOverlapKey, &CheckOverlapHandler{Engine: engine})
	queries.RegisterHandler[CheckAvailabilityQuery, *dto.AvailabilityCheck](bus, checkAvailabilityKey, &CheckAvailabilityHandler{Validator: validator})
}

var (
	_ queries.Handler[ListBlocksQuery, dto.Calendar]                  = (*ListBlocksHandler)(nil)
	_ queries.Handler[RecurringInstancesQuery, []dto.Block]           = (*RecurringInstancesHandler)(nil)
	_ queries.Handler[CheckOverlapQuery, []dto.Conflict]              = (*CheckOverlapHandler)(nil)
	_ queries.Handler[CheckAvailabilityQuery, *dto.AvailabilityCheck] = (*CheckAvailabilityHandler)(nil)
)
