package availability

import (
	"context"
	"fmt"
	"sort"

	"rentfleet/internal/app/uow"
	domainavailability "rentfleet/internal/domain/availability"
	domainbooking "rentfleet/internal/domain/booking"
	"rentfleet/internal/domain/shared/daterange"
)

// Source selects which commitments the detector consults.
type Source uint8

const (
	SourceBookings Source = 1 << iota
	SourceBlocks

	SourceAll = SourceBookings | SourceBlocks
)

// CheckOptions narrows an overlap check. A zero Sources means SourceAll.
// ExcludeBlockID drops one block; when it names a recurring pattern every
// occurrence of that pattern is dropped too. ExcludeBookingID drops one booking.
type CheckOptions struct {
	ExcludeBlockID   string
	ExcludeBookingID string
	Sources          Source
}

func (o CheckOptions) sources() Source {
	if o.Sources == 0 {
		return SourceAll
	}
	return o.Sources
}

// DetectConflicts lists the committed bookings and blocks (one-off and
// pattern occurrences) of listingID overlapping r, both ends inclusive.
// Blocks come first ordered by start date, then bookings by start date; ties
// break on id. It reads through unit and never writes.
func DetectConflicts(ctx context.Context, unit uow.UnitOfWork, listingID string, r daterange.DateRange, opts CheckOptions) ([]domainavailability.Conflict, error) {
	src := opts.sources()
	var bookings, blocks []domainavailability.Conflict

	if src&SourceBookings != 0 {
		found, err := unit.Bookings().Overlapping(ctx, listingID, r, domainbooking.CommittedStatuses...)
		if err != nil {
			return nil, fmt.Errorf("detect conflicts: bookings of %s: %w", listingID, err)
		}
		for _, b := range found {
			if !b.IsCommitted() || !b.Range.Overlaps(r) {
				continue
			}
			if opts.ExcludeBookingID != "" && string(b.ID) == opts.ExcludeBookingID {
				continue
			}
			bookings = append(bookings, domainavailability.Conflict{
				Type:          domainavailability.ConflictBooking,
				ID:            string(b.ID),
				BookingNumber: b.BookingNumber,
				Range:         b.Range,
			})
		}
	}

	if src&SourceBlocks != 0 {
		found, err := unit.Blocks().Overlapping(ctx, listingID, r)
		if err != nil {
			return nil, fmt.Errorf("detect conflicts: blocks of %s: %w", listingID, err)
		}
		for _, b := range found {
			if opts.ExcludeBlockID != "" && string(b.ID) == opts.ExcludeBlockID {
				continue
			}
			if !b.Range.Overlaps(r) {
				continue
			}
			blocks = append(blocks, b.AsConflict())
		}

		patterns, err := unit.Recurring().ActiveIn(ctx, listingID, r)
		if err != nil {
			return nil, fmt.Errorf("detect conflicts: recurring blocks of %s: %w", listingID, err)
		}
		for _, p := range patterns {
			if opts.ExcludeBlockID != "" && string(p.ID) == opts.ExcludeBlockID {
				continue
			}
			window, ok := p.Span(r.End).Intersect(r)
			if !ok {
				continue
			}
			for occ := range domainavailability.Instances(p, window.Start, window.End) {
				if opts.ExcludeBlockID != "" && string(occ.ID) == opts.ExcludeBlockID {
					continue
				}
				blocks = append(blocks, occ.AsConflict())
			}
		}
	}

	sortConflicts(blocks)
	sortConflicts(bookings)
	return append(blocks, bookings...), nil
}

func sortConflicts(cs []domainavailability.Conflict) {
	sort.SliceStable(cs, func(i, j int) bool {
		if !cs[i].Range.Start.Equal(cs[j].Range.Start) {
			return cs[i].Range.Start.Before(cs[j].Range.Start)
		}
		return cs[i].ID < cs[j].ID
	})
}

func sortBookings(bs []*domainbooking.Booking) {
	sort.SliceStable(bs, func(i, j int) bool {
		if !bs[i].Range.Start.Equal(bs[j].Range.Start) {
			return bs[i].Range.Start.Before(bs[j].Range.Start)
		}
		return bs[i].ID < bs[j].ID
	})
}
