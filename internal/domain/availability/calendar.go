package availability

import (
	"sort"

	"rentfleet/internal/domain/shared/daterange"
)

// Calendar is the merged view of one listing's unavailability in a window:
// one-off blocks plus occurrences generated from patterns.
type Calendar struct {
	ListingID string
	Window    daterange.DateRange
	Blocks    []AvailabilityBlock
}

// BuildCalendar merges blocks and pattern occurrences falling in window,
// sorted by start date then id. At most limit occurrences are expanded per
// pattern when limit > 0.
func BuildCalendar(listingID string, window daterange.DateRange, blocks []*AvailabilityBlock, patterns []*RecurringBlock, limit int) Calendar {
	cal := Calendar{ListingID: listingID, Window: window}
	for _, b := range blocks {
		if b == nil || b.ListingID != listingID || !b.Range.Overlaps(window) {
			continue
		}
		cal.Blocks = append(cal.Blocks, *b)
	}
	for _, p := range patterns {
		if p == nil || p.ListingID != listingID {
			continue
		}
		cal.Blocks = append(cal.Blocks, Take(Instances(p, window.Start, window.End), limit)...)
	}
	sort.SliceStable(cal.Blocks, func(i, j int) bool {
		a, b := cal.Blocks[i], cal.Blocks[j]
		if !a.Range.Start.Equal(b.Range.Start) {
			return a.Range.Start.Before(b.Range.Start)
		}
		return a.ID < b.ID
	})
	return cal
}
