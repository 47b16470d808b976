package availability

import (
	"context"
	"strings"
	"time"

	"rentfleet/internal/domain/shared/daterange"
	"rentfleet/internal/domain/shared/events"
)

type ListingType string

const (
	ListingVehicle ListingType = "vehicle"
	ListingDriver  ListingType = "driver"
)

func ParseListingType(raw string) (ListingType, bool) {
	t := ListingType(strings.ToLower(strings.TrimSpace(raw)))
	return t, t.Valid()
}

func (t ListingType) Valid() bool {
	return t == ListingVehicle || t == ListingDriver
}

type BlockID string

// AvailabilityBlock is a concrete unavailability window on one listing.
// Occurrences generated from a RecurringBlock share this shape with
// IsRecurring set; they are derived, the pattern stays authoritative.
type AvailabilityBlock struct {
	ID               BlockID
	ListingID        string
	ListingType      ListingType
	Range            daterange.DateRange
	Reason           string
	CreatedBy        string
	IsRecurring      bool
	RecurringBlockID RecurringBlockID
	CreatedAt        time.Time
	events.EventRecorder
}

// BlockRepository persists one-off blocks. Overlapping is inclusive on both ends.
type BlockRepository interface {
	Create(ctx context.Context, block *AvailabilityBlock) error
	ByID(ctx context.Context, id BlockID) (*AvailabilityBlock, error)
	Overlapping(ctx context.Context, listingID string, r daterange.DateRange) ([]*AvailabilityBlock, error)
	Delete(ctx context.Context, id BlockID) error
}

type CreateBlockParams struct {
	ID          BlockID
	ListingID   string
	ListingType ListingType
	StartDate   time.Time
	EndDate     time.Time
	Reason      string
	CreatedBy   string
	Now         time.Time
}

// NewBlock validates params and records BlockCreated.
func NewBlock(params CreateBlockParams) (*AvailabilityBlock, error) {
	start, end := daterange.Day(params.StartDate), daterange.Day(params.EndDate)
	if start.IsZero() || end.IsZero() {
		return nil, newError(ErrInvalidDateRange, "start and end dates are required")
	}
	if end.Before(start) {
		return nil, InvalidDateRange(start, end)
	}
	if err := validateOwner(params.ListingID, params.ListingType); err != nil {
		return nil, err
	}
	now := params.Now.UTC()
	b := &AvailabilityBlock{
		ID:          params.ID,
		ListingID:   params.ListingID,
		ListingType: params.ListingType,
		Range:       daterange.DateRange{Start: start, End: end},
		Reason:      strings.TrimSpace(params.Reason),
		CreatedBy:   params.CreatedBy,
		CreatedAt:   now,
	}
	b.Record(BlockCreated{
		BlockID:     b.ID,
		ListingID:   b.ListingID,
		ListingType: b.ListingType,
		Range:       b.Range,
		Reason:      b.Reason,
		CreatedBy:   b.CreatedBy,
		At:          now,
	})
	return b, nil
}

func validateOwner(listingID string, t ListingType) error {
	if strings.TrimSpace(listingID) == "" {
		return newError(ErrInvalidRequest, "listing id required")
	}
	if !t.Valid() {
		return newError(ErrInvalidRequest, "listing type %q must be vehicle or driver", t)
	}
	return nil
}

// AsConflict describes the block as an existing commitment.
func (b *AvailabilityBlock) AsConflict() Conflict {
	return Conflict{
		Type:             ConflictBlock,
		ID:               string(b.ID),
		Reason:           b.Reason,
		Range:            b.Range,
		RecurringBlockID: string(b.RecurringBlockID),
	}
}
