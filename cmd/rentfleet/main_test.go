package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentfleet/internal/app/outbox"
	domainbooking "rentfleet/internal/domain/booking"
	"rentfleet/internal/domain/shared/daterange"
	"rentfleet/internal/infra/config"
	"rentfleet/internal/infra/notify"
	"rentfleet/internal/infra/storage/memory"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSeedBookingsSkipsInvalidFixtures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookings.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id":"bk-1","booking_number":"BK-1","listing_id":"veh-1","start_date":"2024-01-10","end_date":"2024-01-12","status":"accepted"},
		{"id":"bk-2","listing_id":"veh-1","start_date":"2024-01-20","end_date":"2024-01-18","status":"ACTIVE"},
		{"id":"bk-3","listing_id":"veh-1","start_date":"2024-02-01","end_date":"2024-02-02","status":"unknown"}
	]`), 0o600))
	repo := memory.NewBookingRepository()

	require.NoError(t, seedBookings(context.Background(), repo, path, discard()))

	from, _ := daterange.ParseDay("2024-01-01")
	to, _ := daterange.ParseDay("2024-12-31")
	got, err := repo.Overlapping(context.Background(), "veh-1", daterange.DateRange{Start: from, End: to})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domainbooking.BookingID("bk-1"), got[0].ID)
	assert.Equal(t, domainbooking.StatusAccepted, got[0].Status)
}

func TestSeedBookingsMissingFileIsNotAnError(t *testing.T) {
	err := seedBookings(context.Background(), memory.NewBookingRepository(), filepath.Join(t.TempDir(), "none.json"), discard())
	assert.NoError(t, err)
}

func TestSelectNotifierFallsBackToLog(t *testing.T) {
	n := selectNotifier(config.Config{NotificationsTopic: "notifications"}, nil, discard())
	assert.IsType(t, notify.LogEmitter{}, n)
}

func TestOpenStorageDefaultsToMemory(t *testing.T) {
	cfg := config.Config{StorageDriver: config.DriverMemory}
	st, err := openStorage(context.Background(), cfg, outbox.NewRouter(nil), discard())
	require.NoError(t, err)

	assert.IsType(t, &memory.Factory{}, st.factory)
	assert.Nil(t, st.relay)
	assert.NotNil(t, st.bookings)
	assert.NoError(t, st.close(context.Background()))
}
