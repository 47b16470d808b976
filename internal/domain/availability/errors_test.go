package availability

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"rentfleet/internal/domain/shared/daterange"
)

func TestRenderDetails(t *testing.T) {
	conflicts := []Conflict{
		{Type: ConflictBlock, ID: "b1", Reason: "maintenance", Range: daterange.DateRange{Start: day("2024-01-10"), End: day("2024-01-15")}},
		{Type: ConflictBooking, ID: "bk-1", BookingNumber: "BK-1029"},
		{Type: ConflictBlock, ID: "b2", Range: daterange.SingleDay(day("2024-02-07"))},
		{Type: ConflictBlock, ID: "b3", Reason: "holiday", Range: daterange.DateRange{Start: day("2024-01-30"), End: day("2024-02-02")}},
		{Type: ConflictBlock, ID: "b4", Range: daterange.DateRange{Start: day("2024-12-30"), End: day("2025-01-02")}},
		{Type: ConflictBooking, ID: "bk-2"},
		{Type: ConflictBooking, ID: "bk-3", BookingNumber: "BK-1029"},
	}

	got := RenderDetails(conflicts)
	assert.Equal(t, "Blocked: maintenance (Jan 10-15); Booking BK-1029; Blocked (Feb 7); Blocked: holiday (Jan 30-Feb 2); Blocked (Dec 30, 2024-Jan 2, 2025); Booking bk-2", got)
	assert.Empty(t, RenderDetails(nil))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(NotFound("recurring block", "x")))
	assert.Equal(t, KindBookingConflict, KindOf(fmt.Errorf("wrap: %w", BookingConflict(nil))))
	assert.Equal(t, KindNotAvailable, KindOf(NotAvailable(nil)))
	assert.Equal(t, KindInvalidDateRange, KindOf(daterange.ErrInvalidRange))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestErrorCarriesConflicts(t *testing.T) {
	c := []Conflict{{Type: ConflictBooking, ID: "bk", BookingNumber: "BK-1"}}
	err := fmt.Errorf("create block: %w", BookingConflict(c))

	assert.ErrorIs(t, err, ErrBookingConflict)
	assert.Equal(t, c, ConflictsOf(err))
	assert.Contains(t, err.Error(), "cannot block these dates")
	assert.Nil(t, ConflictsOf(errors.New("plain")))
}
