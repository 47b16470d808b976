package availability

import (
	"iter"
	"time"

	"rentfleet/internal/domain/shared/daterange"
)

// OccurrenceID is the deterministic id of a pattern occurrence on day.
func OccurrenceID(id RecurringBlockID, day time.Time) BlockID {
	return BlockID(string(id) + "@" + daterange.Day(day).Format(daterange.Layout))
}

// Instances lazily yields one single-day block per date in
// [max(from, pattern start), min(to, pattern end or to)] whose weekday is in
// the pattern. The sequence is pure: it never touches storage and can be
// ranged over any number of times with identical results. Work is bounded by
// the number of yielded entries, so callers may stop early on long windows.
func Instances(p *RecurringBlock, from, to time.Time) iter.Seq[AvailabilityBlock] {
	return func(yield func(AvailabilityBlock) bool) {
		if p == nil || p.DaysOfWeek.Empty() {
			return
		}
		lo, hi := daterange.Day(from), daterange.Day(to)
		if lo.IsZero() || hi.IsZero() {
			return
		}
		if p.StartDate.After(lo) {
			lo = p.StartDate
		}
		if p.EndDate != nil && p.EndDate.Before(hi) {
			hi = *p.EndDate
		}
		if lo.After(hi) {
			return
		}

		day := lo
		if !p.DaysOfWeek.Has(day.Weekday()) {
			day = day.AddDate(0, 0, p.DaysOfWeek.next(day.Weekday()))
		}
		for !day.After(hi) {
			occ := AvailabilityBlock{
				ID:               OccurrenceID(p.ID, day),
				ListingID:        p.ListingID,
				ListingType:      p.ListingType,
				Range:            daterange.SingleDay(day),
				Reason:           p.Reason,
				CreatedBy:        p.CreatedBy,
				IsRecurring:      true,
				RecurringBlockID: p.ID,
				CreatedAt:        p.CreatedAt,
			}
			if !yield(occ) {
				return
			}
			day = day.AddDate(0, 0, p.DaysOfWeek.next(day.Weekday()))
		}
	}
}

// Take collects at most limit entries from seq; limit <= 0 collects everything.
func Take[T any](seq iter.Seq[T], limit int) []T {
	out := make([]T, 0)
	if limit > 0 {
		out = make([]T, 0, min(limit, 64))
	}
	for v := range seq {
		out = append(out, v)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
