package obs

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainavailability "rentfleet/internal/domain/availability"
)

func TestNewLoggerToJSONOutsideDev(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerTo(&buf, "prod", "warn")
	log.Info("hidden")
	log.Warn("shown", slog.String("listing_id", "veh-1"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"listing_id":"veh-1"`)
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics("test")
	m.BlockCreated(domainavailability.ListingVehicle)
	m.BlockCreated(domainavailability.ListingVehicle)
	m.ConflictDetected(domainavailability.KindBookingConflict)
	m.BulkCompleted(3, 1)
	m.NotificationSent(false)
	m.ObserveMessage("command", "availability.block.create", time.Millisecond, domainavailability.BookingConflict(nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.blocksCreated.WithLabelValues("vehicle")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.conflicts.WithLabelValues("BOOKING_CONFLICT")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.bulkItems.WithLabelValues("successful")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("failed")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.busDuration))
}

func TestRequestIDAndReadiness(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := Middleware{Metrics: NewMetrics("test")}
	health := HealthHandlers{Checks: map[string]func(context.Context) error{
		"mongo": func(context.Context) error { return errors.New("down") },
	}}
	r := gin.New()
	r.Use(m.RequestID(), m.LoggerMiddleware())
	r.GET("/readyz", health.Readyz)
	r.GET("/livez", health.Livez)
	r.GET("/id", func(c *gin.Context) { c.String(http.StatusOK, RequestIDFromContext(c.Request.Context())) })

	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Body.String())
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "down")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
