package availability

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecurringBlockValidation(t *testing.T) {
	base := CreateRecurringParams{
		ID:          "rb",
		ListingID:   "drv-1",
		ListingType: ListingDriver,
		DaysOfWeek:  WeekdaysOf(time.Tuesday),
		StartDate:   day("2024-01-01"),
	}

	_, err := NewRecurringBlock(base)
	require.NoError(t, err)

	empty := base
	empty.DaysOfWeek = 0
	_, err = NewRecurringBlock(empty)
	assert.ErrorIs(t, err, ErrInvalidRecurrence)

	inverted := base
	inverted.EndDate = dayp("2023-12-01")
	_, err = NewRecurringBlock(inverted)
	assert.ErrorIs(t, err, ErrInvalidDateRange)

	badType := base
	badType.ListingType = "boat"
	_, err = NewRecurringBlock(badType)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestNewWeekdaysRejectsOutOfRange(t *testing.T) {
	_, err := NewWeekdays(1, 7)
	assert.ErrorIs(t, err, ErrInvalidRecurrence)

	w, err := NewWeekdays(5, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 5}, w.Indices())
}

func TestSplitAtFutureKeepsHistory(t *testing.T) {
	p := mwfPattern(t)
	p.ClearEvents()
	tueThu := WeekdaysOf(time.Tuesday, time.Thursday)

	next, err := p.SplitAt(day("2024-02-15"), Patch{DaysOfWeek: &tueThu}, "rb-2", day("2024-02-01"))
	require.NoError(t, err)

	require.NotNil(t, p.EndDate)
	assert.Equal(t, day("2024-02-14"), *p.EndDate)
	assert.True(t, p.EndDate.Before(next.StartDate))
	assert.Equal(t, day("2024-02-15"), next.StartDate)
	require.NotNil(t, next.EndDate)
	assert.Equal(t, day("2024-03-31"), *next.EndDate)
	assert.Equal(t, RecurringBlockID("rb-1"), next.SplitFromID)
	assert.Equal(t, p.Reason, next.Reason)

	occurs := func(s string) bool { return occursOn(p, s) || occursOn(next, s) }
	assert.False(t, occurs("2024-02-10"), "saturday stays excluded")
	assert.True(t, occursOn(p, "2024-02-07"), "wednesday before boundary")
	assert.True(t, occursOn(next, "2024-02-20"), "tuesday after boundary")
	assert.True(t, occursOn(p, "2024-01-31"), "january wednesday untouched")
	assert.False(t, occurs("2024-02-21"), "wednesday after boundary no longer generated")

	evs := p.PendingEvents()
	require.Len(t, evs, 1)
	assert.Equal(t, EventRecurringBlockSplit, evs[0].EventName())
}

func TestSplitAtRejectsBoundaryOutsidePattern(t *testing.T) {
	p := mwfPattern(t)

	_, err := p.SplitAt(day("2024-01-01"), Patch{}, "x", time.Now())
	assert.ErrorIs(t, err, ErrInvalidDateRange)

	_, err = p.SplitAt(day("2024-04-01"), Patch{}, "x", time.Now())
	assert.ErrorIs(t, err, ErrInvalidDateRange)
	assert.Equal(t, day("2024-03-31"), *p.EndDate, "failed split leaves the pattern untouched")
}

func TestSplitAtValidatesMergedFields(t *testing.T) {
	p := mwfPattern(t)
	none := Weekdays(0)

	_, err := p.SplitAt(day("2024-02-15"), Patch{DaysOfWeek: &none}, "x", time.Now())
	assert.ErrorIs(t, err, ErrInvalidRecurrence)
	assert.Equal(t, day("2024-03-31"), *p.EndDate)
}

func TestUpdateInPlace(t *testing.T) {
	p := mwfPattern(t)
	reason := "  winter tyres "
	sat := WeekdaysOf(time.Saturday)

	require.NoError(t, p.Update(Patch{DaysOfWeek: &sat, Reason: &reason, ClearEndDate: true}, day("2024-01-05")))
	assert.Equal(t, sat, p.DaysOfWeek)
	assert.Equal(t, "winter tyres", p.Reason)
	assert.Nil(t, p.EndDate)

	bad := day("2023-01-01")
	err := p.Update(Patch{EndDate: &bad}, time.Now())
	assert.ErrorIs(t, err, ErrInvalidDateRange)
	assert.Nil(t, p.EndDate)
}

func TestTruncateFrom(t *testing.T) {
	p := mwfPattern(t)
	outcome, err := p.TruncateFrom(day("2024-02-15"), time.Now())
	require.NoError(t, err)
	assert.Equal(t, TruncateClosed, outcome)
	assert.Equal(t, day("2024-02-14"), *p.EndDate)
	assert.True(t, p.Closed)
	for _, b := range Take(Instances(p, day("2024-01-01"), day("2024-12-31")), 0) {
		assert.True(t, b.Range.Start.Before(day("2024-02-15")))
	}
	assert.True(t, occursOn(p, "2024-02-14"))

	_, err = p.TruncateFrom(day("2024-02-01"), time.Now())
	assert.ErrorIs(t, err, ErrInvalidDateRange)
	assert.Equal(t, day("2024-02-14"), *p.EndDate)

	q := mwfPattern(t)
	outcome, err = q.TruncateFrom(day("2024-01-01"), time.Now())
	require.NoError(t, err)
	assert.Equal(t, TruncateRemoveRow, outcome)

	r := mwfPattern(t)
	outcome, err = r.TruncateFrom(day("2024-06-01"), time.Now())
	require.NoError(t, err)
	assert.Equal(t, TruncateNoop, outcome)
	assert.Equal(t, day("2024-03-31"), *r.EndDate)
	assert.False(t, r.Closed)
}

func TestClosedRowKeepsItsDates(t *testing.T) {
	p := mwfPattern(t)
	_, err := p.SplitAt(day("2024-02-15"), Patch{}, "rb-2", day("2024-02-01"))
	require.NoError(t, err)
	require.True(t, p.Closed)

	err = p.Update(Patch{ClearEndDate: true}, time.Now())
	assert.ErrorIs(t, err, ErrInvalidDateRange)
	assert.Equal(t, day("2024-02-14"), *p.EndDate)

	later := day("2024-03-31")
	assert.ErrorIs(t, p.Update(Patch{EndDate: &later}, time.Now()), ErrInvalidDateRange)
	earlier := day("2023-12-01")
	assert.ErrorIs(t, p.Update(Patch{StartDate: &earlier}, time.Now()), ErrInvalidDateRange)

	_, err = p.SplitAt(day("2024-02-01"), Patch{}, "rb-3", time.Now())
	assert.ErrorIs(t, err, ErrInvalidDateRange)

	sat := WeekdaysOf(time.Saturday)
	same := day("2024-02-14")
	require.NoError(t, p.Update(Patch{DaysOfWeek: &sat, EndDate: &same}, time.Now()))
	assert.Equal(t, sat, p.DaysOfWeek)
	assert.Equal(t, day("2024-02-14"), *p.EndDate)
}

func TestFollowsPredecessor(t *testing.T) {
	p := mwfPattern(t)
	next, err := p.SplitAt(day("2024-02-15"), Patch{}, "rb-2", day("2024-02-01"))
	require.NoError(t, err)

	back := day("2024-01-01")
	assert.ErrorIs(t, next.FollowsPredecessor(p, Patch{StartDate: &back}), ErrInvalidDateRange)
	edge := day("2024-02-14")
	assert.ErrorIs(t, next.FollowsPredecessor(p, Patch{StartDate: &edge}), ErrInvalidDateRange)

	ahead := day("2024-02-20")
	assert.NoError(t, next.FollowsPredecessor(p, Patch{StartDate: &ahead}))
	assert.NoError(t, next.FollowsPredecessor(p, Patch{}))
	assert.NoError(t, next.FollowsPredecessor(nil, Patch{StartDate: &back}))
}

func TestParseScope(t *testing.T) {
	s, err := ParseScope("FUTURE")
	require.NoError(t, err)
	assert.Equal(t, ScopeFuture, s)

	s, err = ParseScope("")
	require.NoError(t, err)
	assert.Equal(t, ScopeAll, s)

	_, err = ParseScope("past")
	assert.ErrorIs(t, err, ErrInvalidScope)
}

func TestNewBlock(t *testing.T) {
	b, err := NewBlock(CreateBlockParams{
		ID:          "blk-1",
		ListingID:   "veh-1",
		ListingType: ListingVehicle,
		StartDate:   time.Date(2024, 1, 10, 15, 0, 0, 0, time.UTC),
		EndDate:     day("2024-01-15"),
		Reason:      "maintenance",
		CreatedBy:   "provider-1",
		Now:         day("2024-01-01"),
	})
	require.NoError(t, err)
	assert.Equal(t, day("2024-01-10"), b.Range.Start)
	evs := b.PendingEvents()
	require.Len(t, evs, 1)
	assert.Equal(t, EventBlockCreated, evs[0].EventName())
	assert.Equal(t, "veh-1", evs[0].AggregateID())

	_, err = NewBlock(CreateBlockParams{ListingID: "veh-1", ListingType: ListingVehicle, StartDate: day("2024-01-15"), EndDate: day("2024-01-10")})
	assert.ErrorIs(t, err, ErrInvalidDateRange)
	var typed *Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, KindInvalidDateRange, KindOf(err))
}

func TestSpanClipsOpenEndedPatterns(t *testing.T) {
	p := mwfPattern(t)
	assert.Equal(t, day("2024-03-31"), p.Span(day("2024-12-31")).End)
	assert.Equal(t, day("2024-02-10"), p.Span(day("2024-02-10")).End)

	p.EndDate = nil
	span := p.Span(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	assert.Equal(t, day("2024-01-01"), span.Start)
	assert.Equal(t, day("2025-06-01"), span.End)
}
