package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentfleet/internal/domain/shared/daterange"
)

func day(s string) time.Time {
	t, err := daterange.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func dayp(s string) *time.Time {
	t := day(s)
	return &t
}

func mwfPattern(t *testing.T) *RecurringBlock {
	t.Helper()
	p, err := NewRecurringBlock(CreateRecurringParams{
		ID:          "rb-1",
		ListingID:   "veh-1",
		ListingType: ListingVehicle,
		DaysOfWeek:  WeekdaysOf(time.Monday, time.Wednesday, time.Friday),
		StartDate:   day("2024-01-01"),
		EndDate:     dayp("2024-03-31"),
		Reason:      "fleet service",
		CreatedBy:   "provider-1",
		Now:         day("2023-12-20"),
	})
	require.NoError(t, err)
	return p
}

func occursOn(p *RecurringBlock, s string) bool {
	d := day(s)
	return len(Take(Instances(p, d, d), 0)) == 1
}

func dates(seq []AvailabilityBlock) []string {
	out := make([]string, 0, len(seq))
	for _, b := range seq {
		out = append(out, b.Range.Start.Format(daterange.Layout))
	}
	return out
}

func TestInstancesJanuary2024(t *testing.T) {
	p := mwfPattern(t)

	got := Take(Instances(p, day("2024-01-01"), day("2024-01-31")), 0)

	want := []string{
		"2024-01-01", "2024-01-03", "2024-01-05",
		"2024-01-08", "2024-01-10", "2024-01-12",
		"2024-01-15", "2024-01-17", "2024-01-19",
		"2024-01-22", "2024-01-24", "2024-01-26",
		"2024-01-29", "2024-01-31",
	}
	assert.Equal(t, want, dates(got))
	for _, b := range got {
		assert.True(t, b.IsRecurring)
		assert.Equal(t, RecurringBlockID("rb-1"), b.RecurringBlockID)
		assert.Equal(t, b.Range.Start, b.Range.End)
		assert.True(t, p.DaysOfWeek.Has(b.Range.Start.Weekday()))
		assert.Equal(t, OccurrenceID("rb-1", b.Range.Start), b.ID)
	}
}

func TestInstancesAreDeterministicAndRestartable(t *testing.T) {
	p := mwfPattern(t)
	seq := Instances(p, day("2024-02-01"), day("2024-03-15"))

	first := Take(seq, 0)
	second := Take(seq, 0)
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}

func TestInstancesClipToPatternAndWindow(t *testing.T) {
	p := mwfPattern(t)

	got := Take(Instances(p, day("2023-12-01"), day("2024-12-31")), 0)
	require.NotEmpty(t, got)
	assert.Equal(t, "2024-01-01", dates(got)[0])
	assert.Equal(t, "2024-03-29", dates(got)[len(got)-1])

	assert.Empty(t, Take(Instances(p, day("2024-04-01"), day("2024-04-30")), 0))
	assert.Empty(t, Take(Instances(p, day("2024-01-31"), day("2024-01-02")), 0))
}

func TestInstancesOpenEndedPatternStopsEarly(t *testing.T) {
	p := mwfPattern(t)
	p.EndDate = nil

	count := 0
	for range Instances(p, day("2024-01-01"), day("2124-01-01")) {
		count++
		if count == 10 {
			break
		}
	}
	assert.Equal(t, 10, count)

	limited := Take(Instances(p, day("2024-01-01"), day("2124-01-01")), 3)
	assert.Equal(t, []string{"2024-01-01", "2024-01-03", "2024-01-05"}, dates(limited))
}

func TestInstancesSingleWeekday(t *testing.T) {
	p := mwfPattern(t)
	p.DaysOfWeek = WeekdaysOf(time.Sunday)

	got := Take(Instances(p, day("2024-01-01"), day("2024-01-31")), 0)
	assert.Equal(t, []string{"2024-01-07", "2024-01-14", "2024-01-21", "2024-01-28"}, dates(got))
}

func TestInstancesNilOrEmptyPattern(t *testing.T) {
	assert.Empty(t, Take(Instances(nil, day("2024-01-01"), day("2024-01-31")), 0))

	p := mwfPattern(t)
	p.DaysOfWeek = 0
	assert.Empty(t, Take(Instances(p, day("2024-01-01"), day("2024-01-31")), 0))
}
