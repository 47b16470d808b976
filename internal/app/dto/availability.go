package dto

import (
	"time"

	appavailability "rentfleet/internal/app/availability"
	"rentfleet/internal/domain/availability"
	"rentfleet/internal/domain/booking"
	"rentfleet/internal/domain/shared/daterange"
)

type Conflict struct {
	Type             string `json:"type"`
	ID               string `json:"id"`
	BookingNumber    string `json:"booking_number,omitempty"`
	Reason           string `json:"reason,omitempty"`
	StartDate        string `json:"start_date"`
	EndDate          string `json:"end_date"`
	RecurringBlockID string `json:"recurring_block_id,omitempty"`
}

func MapConflicts(cs []availability.Conflict) []Conflict {
	out := make([]Conflict, 0, len(cs))
	for _, c := range cs {
		out = append(out, Conflict{
			Type:             string(c.Type),
			ID:               c.ID,
			BookingNumber:    c.BookingNumber,
			Reason:           c.Reason,
			StartDate:        c.Range.Start.Format(daterange.Layout),
			EndDate:          c.Range.End.Format(daterange.Layout),
			RecurringBlockID: c.RecurringBlockID,
		})
	}
	return out
}

type RecurringBlock struct {
	ID          string    `json:"id"`
	ListingID   string    `json:"listing_id"`
	ListingType string    `json:"listing_type"`
	DaysOfWeek  []int     `json:"days_of_week"`
	StartDate   string    `json:"start_date"`
	EndDate     string    `json:"end_date,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	CreatedBy   string    `json:"created_by,omitempty"`
	SplitFromID string    `json:"split_from_id,omitempty"`
	Closed      bool      `json:"closed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func MapRecurringBlock(p *availability.RecurringBlock) RecurringBlock {
	if p == nil {
		return RecurringBlock{}
	}
	out := RecurringBlock{
		ID:          string(p.ID),
		ListingID:   p.ListingID,
		ListingType: string(p.ListingType),
		DaysOfWeek:  p.DaysOfWeek.Indices(),
		StartDate:   p.StartDate.Format(daterange.Layout),
		Reason:      p.Reason,
		CreatedBy:   p.CreatedBy,
		SplitFromID: string(p.SplitFromID),
		Closed:      p.Closed,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.EndDate != nil {
		out.EndDate = p.EndDate.Format(daterange.Layout)
	}
	return out
}

type RecurringDeleted struct {
	ID    string `json:"id"`
	Scope string `json:"scope"`
}

type BulkFailure struct {
	ListingID string     `json:"listing_id"`
	Reason    string     `json:"reason"`
	Message   string     `json:"message"`
	Conflicts []Conflict `json:"conflicts,omitempty"`
}

type BulkResult struct {
	Successful []Block       `json:"successful"`
	Failed     []BulkFailure `json:"failed"`
}

func MapBulkResult(res *appavailability.BulkResult) BulkResult {
	out := BulkResult{Successful: []Block{}, Failed: []BulkFailure{}}
	if res == nil {
		return out
	}
	for _, b := range res.Successful {
		out.Successful = append(out.Successful, MapBlock(b))
	}
	for _, f := range res.Failed {
		out.Failed = append(out.Failed, BulkFailure{
			ListingID: f.ListingID,
			Reason:    string(f.Reason),
			Message:   f.Message,
			Conflicts: MapConflicts(f.Conflicts),
		})
	}
	return out
}

type AvailabilityCheck struct {
	ListingID string `json:"listing_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Available bool   `json:"available"`
}

type Booking struct {
	ID            string `json:"id"`
	BookingNumber string `json:"booking_number,omitempty"`
	ListingID     string `json:"listing_id"`
	RenterID      string `json:"renter_id,omitempty"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	Status        string `json:"status"`
}

func MapBooking(b *booking.Booking) Booking {
	if b == nil {
		return Booking{}
	}
	return Booking{
		ID:            string(b.ID),
		BookingNumber: b.BookingNumber,
		ListingID:     b.ListingID,
		RenterID:      b.RenterID,
		StartDate:     daterange.Day(b.Range.Start).Format(daterange.Layout),
		EndDate:       daterange.Day(b.Range.End).Format(daterange.Layout),
		Status:        string(b.Status),
	}
}
