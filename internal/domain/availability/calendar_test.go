package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"rentfleet/internal/domain/shared/daterange"
)

func TestBuildCalendarMergesBlocksAndOccurrences(t *testing.T) {
	p := mwfPattern(t)
	window := daterange.DateRange{Start: day("2024-01-08"), End: day("2024-01-14")}
	blocks := []*AvailabilityBlock{
		{ID: "b-in", ListingID: "veh-1", Range: daterange.DateRange{Start: day("2024-01-09"), End: day("2024-01-09")}},
		{ID: "b-out", ListingID: "veh-1", Range: daterange.DateRange{Start: day("2024-02-01"), End: day("2024-02-02")}},
		{ID: "b-other", ListingID: "veh-2", Range: daterange.DateRange{Start: day("2024-01-09"), End: day("2024-01-09")}},
	}

	cal := BuildCalendar("veh-1", window, blocks, []*RecurringBlock{p}, 0)

	ids := make([]BlockID, 0, len(cal.Blocks))
	for _, b := range cal.Blocks {
		ids = append(ids, b.ID)
	}
	assert.Equal(t, []BlockID{
		OccurrenceID("rb-1", day("2024-01-08")),
		"b-in",
		OccurrenceID("rb-1", day("2024-01-10")),
		OccurrenceID("rb-1", day("2024-01-12")),
	}, ids)

	assert.False(t, free(cal, daterange.SingleDay(day("2024-01-10"))))
	assert.True(t, free(cal, daterange.SingleDay(day("2024-01-11"))))
	assert.True(t, free(cal, daterange.SingleDay(time.Date(2024, 1, 13, 12, 0, 0, 0, time.UTC))))
}

func free(cal Calendar, r daterange.DateRange) bool {
	for _, b := range cal.Blocks {
		if b.Range.Overlaps(r) {
			return false
		}
	}
	return true
}
