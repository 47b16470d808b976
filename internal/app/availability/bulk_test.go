package availability

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainavailability "rentfleet/internal/domain/availability"
	domainbooking "rentfleet/internal/domain/booking"
)

func TestCreateBulkBlocksPartialFailure(t *testing.T) {
	e := newTestEngine(t)
	e.seedBooking(t, "bk-1", "BK-1029", "veh-2", "2024-01-12", "2024-01-12", domainbooking.StatusActive)

	res, err := e.svc.CreateBulkBlocks(context.Background(), BulkInput{
		ListingIDs:  []string{"veh-1", "veh-2", "veh-3"},
		ListingType: domainavailability.ListingVehicle,
		StartDate:   day("2024-01-10"),
		EndDate:     day("2024-01-15"),
		Reason:      "fleet recall",
		CreatedBy:   "provider-1",
	})
	require.NoError(t, err)

	require.Len(t, res.Successful, 2)
	assert.Equal(t, "veh-1", res.Successful[0].ListingID)
	assert.Equal(t, "veh-3", res.Successful[1].ListingID)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "veh-2", res.Failed[0].ListingID)
	assert.Equal(t, domainavailability.KindBookingConflict, res.Failed[0].Reason)
	require.Len(t, res.Failed[0].Conflicts, 1)
	assert.Equal(t, "BK-1029", res.Failed[0].Conflicts[0].BookingNumber)

	assert.Equal(t, 2, e.metrics.bulkOK)
	assert.Equal(t, 1, e.metrics.bulkFail)
	assert.Len(t, e.box.Pending(), 2)
}

func TestCreateBulkBlocksReportsTrimmedListingIDs(t *testing.T) {
	e := newTestEngine(t)
	e.seedBooking(t, "bk-1", "BK-1", "veh-2", "2024-01-12", "2024-01-12", domainbooking.StatusActive)

	res, err := e.svc.CreateBulkBlocks(context.Background(), BulkInput{
		ListingIDs:  []string{" veh-1 ", "\tveh-2"},
		ListingType: domainavailability.ListingVehicle,
		StartDate:   day("2024-01-10"),
		EndDate:     day("2024-01-15"),
		CreatedBy:   "provider-1",
	})
	require.NoError(t, err)

	require.Len(t, res.Successful, 1)
	assert.Equal(t, "veh-1", res.Successful[0].ListingID)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "veh-2", res.Failed[0].ListingID)
	assert.Equal(t, domainavailability.KindBookingConflict, res.Failed[0].Reason)
}

func TestCreateBulkBlocksAccountsForEveryListing(t *testing.T) {
	for _, concurrency := range []int{1, 3, 16} {
		t.Run(fmt.Sprintf("concurrency %d", concurrency), func(t *testing.T) {
			e := newTestEngine(t)
			e.svc.BulkConcurrency = concurrency
			ids := make([]string, 0, 20)
			for i := range 20 {
				id := fmt.Sprintf("veh-%02d", i)
				ids = append(ids, id)
				if i%4 == 0 {
					e.seedBooking(t, "bk-"+id, "", id, "2024-01-10", "2024-01-10", domainbooking.StatusAccepted)
				}
			}
			ids = append(ids, "veh-01")

			res, err := e.svc.CreateBulkBlocks(context.Background(), BulkInput{
				ListingIDs:  ids,
				ListingType: domainavailability.ListingVehicle,
				StartDate:   day("2024-01-10"),
				EndDate:     day("2024-01-11"),
				CreatedBy:   "provider-1",
			})
			require.NoError(t, err)
			assert.Equal(t, len(ids), len(res.Successful)+len(res.Failed))
			assert.Len(t, res.Failed, 5)
			for i := 1; i < len(res.Failed); i++ {
				assert.Less(t, res.Failed[i-1].ListingID, res.Failed[i].ListingID)
			}
			assert.Equal(t, "veh-01", res.Successful[len(res.Successful)-1].ListingID)
		})
	}
}

func TestCreateBulkBlocksInvalidInput(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.svc.CreateBulkBlocks(context.Background(), BulkInput{ListingType: domainavailability.ListingVehicle})
	assert.ErrorIs(t, err, domainavailability.ErrInvalidRequest)

	res, err := e.svc.CreateBulkBlocks(context.Background(), BulkInput{
		ListingIDs:  []string{"veh-1", ""},
		ListingType: domainavailability.ListingVehicle,
		StartDate:   day("2024-01-15"),
		EndDate:     day("2024-01-10"),
	})
	require.NoError(t, err)
	assert.Empty(t, res.Successful)
	require.Len(t, res.Failed, 2)
	assert.Equal(t, domainavailability.KindInvalidDateRange, res.Failed[0].Reason)
	assert.Equal(t, domainavailability.KindInvalidDateRange, res.Failed[1].Reason)
}
