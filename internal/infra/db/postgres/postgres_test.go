package postgres

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appoutbox "rentfleet/internal/app/outbox"
	"rentfleet/internal/app/uow"
	domainavailability "rentfleet/internal/domain/availability"
	domainbooking "rentfleet/internal/domain/booking"
	"rentfleet/internal/domain/shared/daterange"
)

func day(s string) time.Time {
	t, err := daterange.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestSelectBlocksUsesInclusiveOverlap(t *testing.T) {
	r := daterange.DateRange{Start: day("2024-01-10"), End: day("2024-01-15")}

	query, args, err := selectBlocks("veh-1", r).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT id, listing_id, listing_type, start_date, end_date, reason, created_by, created_at FROM availability_blocks "+
			"WHERE (listing_id = $1 AND start_date <= $2 AND end_date >= $3) ORDER BY start_date, id",
		query)
	assert.Equal(t, []any{"veh-1", r.End, r.Start}, args)
}

func TestSelectActiveKeepsOpenEndedPatterns(t *testing.T) {
	r := daterange.DateRange{Start: day("2024-01-01"), End: day("2024-01-31")}

	query, args, err := selectActive("drv-1", r).ToSql()
	require.NoError(t, err)

	assert.Contains(t, query, "(end_date IS NULL OR end_date >= $3)")
	assert.Contains(t, query, "start_date <= $2")
	assert.Equal(t, []any{"drv-1", r.End, r.Start}, args)
}

func TestSelectBookingsFiltersStatuses(t *testing.T) {
	r := daterange.SingleDay(day("2024-01-10"))

	query, args, err := selectBookings("veh-1", r, domainbooking.CommittedStatuses).ToSql()
	require.NoError(t, err)
	assert.Contains(t, query, "status IN ($4,$5)")
	assert.Equal(t, []any{"veh-1", r.End, r.Start, "ACCEPTED", "ACTIVE"}, args)

	query, _, err = selectBookings("veh-1", r, nil).ToSql()
	require.NoError(t, err)
	assert.NotContains(t, query, "status IN")
}

func TestRecurringValuesEncodeWeekdaysAndOpenEnd(t *testing.T) {
	p := &domainavailability.RecurringBlock{
		ID:          "rb-1",
		ListingID:   "veh-1",
		ListingType: domainavailability.ListingVehicle,
		DaysOfWeek:  domainavailability.WeekdaysOf(time.Friday, time.Monday),
		StartDate:   day("2024-01-01"),
	}

	vals := recurringValues(p)
	require.Len(t, vals, len(recurringColumns))

	days, ok := vals[3].(pq.Int64Array)
	require.True(t, ok)
	assert.Equal(t, pq.Int64Array{1, 5}, days)
	assert.Nil(t, vals[5])
	assert.Equal(t, false, vals[len(vals)-1])

	end := day("2024-03-31")
	p.EndDate = &end
	assert.Equal(t, end, recurringValues(p)[5])
}

func TestUpdateRecurringSkipsImmutableColumns(t *testing.T) {
	p := &domainavailability.RecurringBlock{ID: "rb-1", DaysOfWeek: domainavailability.WeekdaysOf(time.Sunday)}

	query, args, err := updateRecurring(p).ToSql()
	require.NoError(t, err)
	assert.NotContains(t, query, "created_at =")
	assert.Contains(t, query, "updated_at = $")
	assert.Contains(t, query, "closed = $")
	assert.Contains(t, query, "WHERE id = $")
	assert.Equal(t, "rb-1", args[len(args)-1])
}

func TestClaimOutboxSkipsLockedRows(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	query, args, err := claimOutbox("worker-1", now, now.Add(-time.Minute)).ToSql()
	require.NoError(t, err)

	assert.Contains(t, query, "UPDATE app_outbox SET state = $1, claimed_by = $2, claimed_at = $3")
	assert.Contains(t, query, "FOR UPDATE SKIP LOCKED")
	assert.Contains(t, query, "RETURNING id, name, payload")
	assert.Equal(t, "worker-1", args[1])
	assert.Len(t, args, 8)
}

func TestInsertOutboxEncodesHeaders(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	rec := appoutbox.EventRecord{ID: "ev-1", Name: "availability.block_created", Payload: []byte(`{}`), Aggregate: "veh-1"}

	b, err := insertOutbox(rec, now)
	require.NoError(t, err)
	_, args, err := b.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "{}", args[5])
	assert.Equal(t, stateNew, args[6])
}

func TestWrapErrClassifiesDriverErrors(t *testing.T) {
	serialization := wrapErr("commit", &pq.Error{Code: codeSerializationFailure})
	assert.ErrorIs(t, serialization, uow.ErrRetryable)

	deadlock := wrapErr("lock", fmt.Errorf("exec: %w", &pq.Error{Code: codeDeadlockDetected}))
	assert.ErrorIs(t, deadlock, uow.ErrRetryable)

	dup := wrapErr("insert", &pq.Error{Code: codeUniqueViolation})
	assert.ErrorIs(t, dup, ErrDuplicateKey)
	assert.NotErrorIs(t, dup, uow.ErrRetryable)

	plain := errors.New("boom")
	other := wrapErr("query", plain)
	assert.ErrorIs(t, other, plain)
	assert.NotErrorIs(t, other, uow.ErrRetryable)
}

func TestFactoryRequiresDatabase(t *testing.T) {
	_, err := (&Factory{}).Begin(t.Context(), uow.TxOptions{})
	assert.ErrorIs(t, err, ErrUnitOfWorkNotConfigured)
}
