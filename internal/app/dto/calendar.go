package dto

import (
	"time"

	"rentfleet/internal/domain/availability"
	"rentfleet/internal/domain/shared/daterange"
)

type Block struct {
	ID               string    `json:"id"`
	ListingID        string    `json:"listing_id"`
	ListingType      string    `json:"listing_type"`
	StartDate        string    `json:"start_date"`
	EndDate          string    `json:"end_date"`
	Reason           string    `json:"reason,omitempty"`
	CreatedBy        string    `json:"created_by,omitempty"`
	IsRecurring      bool      `json:"is_recurring"`
	RecurringBlockID string    `json:"recurring_block_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type Calendar struct {
	ListingID string  `json:"listing_id"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	Blocks    []Block `json:"blocks"`
}

func MapBlock(b *availability.AvailabilityBlock) Block {
	if b == nil {
		return Block{}
	}
	return Block{
		ID:               string(b.ID),
		ListingID:        b.ListingID,
		ListingType:      string(b.ListingType),
		StartDate:        b.Range.Start.Format(daterange.Layout),
		EndDate:          b.Range.End.Format(daterange.Layout),
		Reason:           b.Reason,
		CreatedBy:        b.CreatedBy,
		IsRecurring:      b.IsRecurring,
		RecurringBlockID: string(b.RecurringBlockID),
		CreatedAt:        b.CreatedAt,
	}
}

func MapBlocks(bs []availability.AvailabilityBlock) []Block {
	out := make([]Block, 0, len(bs))
	for i := range bs {
		out = append(out, MapBlock(&bs[i]))
	}
	return out
}

func MapCalendar(cal availability.Calendar) Calendar {
	return Calendar{
		ListingID: cal.ListingID,
		From:      cal.Window.Start.Format(daterange.Layout),
		To:        cal.Window.End.Format(daterange.Layout),
		Blocks:    MapBlocks(cal.Blocks),
	}
}
