package booking

import (
	"context"
	"errors"
	"strings"

	"rentfleet/internal/domain/shared/daterange"
)

var ErrBookingNotFound = errors.New("booking: not found")

type BookingID string

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusAccepted  Status = "ACCEPTED"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusDisputed  Status = "DISPUTED"
)

// CommittedStatuses hold the listing: a block may not be placed over them.
var CommittedStatuses = []Status{StatusAccepted, StatusActive}

// ParseStatus accepts any case and surrounding whitespace.
func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case StatusPending, StatusAccepted, StatusActive, StatusCompleted, StatusCancelled, StatusDisputed:
		return s, true
	}
	return "", false
}

func (s Status) Committed() bool {
	return s == StatusAccepted || s == StatusActive
}

// Booking is owned by the booking service; this engine only reads it.
type Booking struct {
	ID            BookingID
	BookingNumber string
	ListingID     string
	RenterID      string
	Range         daterange.DateRange
	Status        Status
}

func (b *Booking) IsCommitted() bool {
	return b.Status.Committed()
}

func (b *Booking) IsPending() bool {
	return b.Status == StatusPending
}

// HoldsListing reports whether the booking claims its dates: a pending
// request or a committed stay. Terminal statuses release them.
func (b *Booking) HoldsListing() bool {
	return b.IsPending() || b.IsCommitted()
}

// Reader exposes range queries over bookings of a listing.
// Implementations return bookings whose range overlaps r (inclusive) and whose
// status is one of statuses; an empty status list matches every status.
type Reader interface {
	Overlapping(ctx context.Context, listingID string, r daterange.DateRange, statuses ...Status) ([]*Booking, error)
}

// Writer upserts a booking into the projection by id.
type Writer interface {
	Put(ctx context.Context, b *Booking) error
}
