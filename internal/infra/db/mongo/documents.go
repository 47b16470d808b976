package mongo

import (
	"time"

	domainavailability "rentfleet/internal/domain/availability"
	domainbooking "rentfleet/internal/domain/booking"
	"rentfleet/internal/domain/shared/daterange"
)

const (
	blocksCollection    = "availability_blocks"
	recurringCollection = "recurring_blocks"
	bookingsCollection  = "bookings"
	locksCollection     = "listing_locks"
	outboxCollection    = "app_outbox"
)

type blockDocument struct {
	ID          string    `bson:"_id"`
	ListingID   string    `bson:"listing_id"`
	ListingType string    `bson:"listing_type"`
	StartDate   time.Time `bson:"start_date"`
	EndDate     time.Time `bson:"end_date"`
	Reason      string    `bson:"reason,omitempty"`
	CreatedBy   string    `bson:"created_by"`
	CreatedAt   time.Time `bson:"created_at"`
}

func newBlockDocument(b *domainavailability.AvailabilityBlock) blockDocument {
	return blockDocument{
		ID:          string(b.ID),
		ListingID:   b.ListingID,
		ListingType: string(b.ListingType),
		StartDate:   b.Range.Start,
		EndDate:     b.Range.End,
		Reason:      b.Reason,
		CreatedBy:   b.CreatedBy,
		CreatedAt:   b.CreatedAt.UTC(),
	}
}

func (d blockDocument) toAggregate() *domainavailability.AvailabilityBlock {
	return &domainavailability.AvailabilityBlock{
		ID:          domainavailability.BlockID(d.ID),
		ListingID:   d.ListingID,
		ListingType: domainavailability.ListingType(d.ListingType),
		Range:       daterange.DateRange{Start: daterange.Day(d.StartDate), End: daterange.Day(d.EndDate)},
		Reason:      d.Reason,
		CreatedBy:   d.CreatedBy,
		CreatedAt:   d.CreatedAt.UTC(),
	}
}

type recurringDocument struct {
	ID          string     `bson:"_id"`
	ListingID   string     `bson:"listing_id"`
	ListingType string     `bson:"listing_type"`
	DaysOfWeek  []int      `bson:"days_of_week"`
	StartDate   time.Time  `bson:"start_date"`
	EndDate     *time.Time `bson:"end_date"`
	Reason      string     `bson:"reason,omitempty"`
	CreatedBy   string     `bson:"created_by"`
	SplitFromID string     `bson:"split_from_id,omitempty"`
	Closed      bool       `bson:"closed,omitempty"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
}

func newRecurringDocument(p *domainavailability.RecurringBlock) recurringDocument {
	return recurringDocument{
		ID:          string(p.ID),
		ListingID:   p.ListingID,
		ListingType: string(p.ListingType),
		DaysOfWeek:  p.DaysOfWeek.Indices(),
		StartDate:   p.StartDate,
		EndDate:     p.EndDate,
		Reason:      p.Reason,
		CreatedBy:   p.CreatedBy,
		SplitFromID: string(p.SplitFromID),
		Closed:      p.Closed,
		CreatedAt:   p.CreatedAt.UTC(),
		UpdatedAt:   p.UpdatedAt.UTC(),
	}
}

func (d recurringDocument) toAggregate() (*domainavailability.RecurringBlock, error) {
	days, err := domainavailability.NewWeekdays(d.DaysOfWeek...)
	if err != nil {
		return nil, err
	}
	p := &domainavailability.RecurringBlock{
		ID:          domainavailability.RecurringBlockID(d.ID),
		ListingID:   d.ListingID,
		ListingType: domainavailability.ListingType(d.ListingType),
		DaysOfWeek:  days,
		StartDate:   daterange.Day(d.StartDate),
		Reason:      d.Reason,
		CreatedBy:   d.CreatedBy,
		SplitFromID: domainavailability.RecurringBlockID(d.SplitFromID),
		Closed:      d.Closed,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
	if d.EndDate != nil {
		end := daterange.Day(*d.EndDate)
		p.EndDate = &end
	}
	return p, nil
}

// bookingDocument mirrors the booking service's projection; this engine never writes it.
type bookingDocument struct {
	ID            string    `bson:"_id"`
	BookingNumber string    `bson:"booking_number"`
	ListingID     string    `bson:"listing_id"`
	RenterID      string    `bson:"renter_id"`
	StartDate     time.Time `bson:"start_date"`
	EndDate       time.Time `bson:"end_date"`
	Status        string    `bson:"status"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	return bookingDocument{
		ID:            string(b.ID),
		BookingNumber: b.BookingNumber,
		ListingID:     b.ListingID,
		RenterID:      b.RenterID,
		StartDate:     b.Range.Start,
		EndDate:       b.Range.End,
		Status:        string(b.Status),
	}
}

func (d bookingDocument) toAggregate() *domainbooking.Booking {
	status, ok := domainbooking.ParseStatus(d.Status)
	if !ok {
		status = domainbooking.Status(d.Status)
	}
	return &domainbooking.Booking{
		ID:            domainbooking.BookingID(d.ID),
		BookingNumber: d.BookingNumber,
		ListingID:     d.ListingID,
		RenterID:      d.RenterID,
		Range:         daterange.DateRange{Start: daterange.Day(d.StartDate), End: daterange.Day(d.EndDate)},
		Status:        status,
	}
}
