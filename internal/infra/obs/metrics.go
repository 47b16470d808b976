package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	domainavailability "rentfleet/internal/domain/availability"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	blocksCreated   *prometheus.CounterVec
	conflicts       *prometheus.CounterVec
	bulkItems       *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	busDuration     *prometheus.HistogramVec
	httpDuration    *prometheus.HistogramVec
	outboxDelivered *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		blocksCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_blocks_created_total",
			Help:      "Availability blocks persisted, by listing type.",
		}, []string{"listing_type"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_conflicts_total",
			Help:      "Requests rejected because of overlapping commitments, by error kind.",
		}, []string{"kind"}),
		bulkItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_bulk_items_total",
			Help:      "Per-listing outcomes of bulk block requests.",
		}, []string{"outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_conflict_notifications_total",
			Help:      "Pending-booking conflict notifications, by delivery result.",
		}, []string{"result"}),
		busDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bus_message_duration_seconds",
			Help:      "Command and query handling latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"bus", "key", "kind"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		outboxDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_records_total",
			Help:      "Outbox records relayed, by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.blocksCreated, m.conflicts, m.bulkItems, m.notifications,
		m.busDuration, m.httpDuration, m.outboxDelivered,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) BlockCreated(t domainavailability.ListingType) {
	m.blocksCreated.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) ConflictDetected(kind domainavailability.Kind) {
	m.conflicts.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) BulkCompleted(succeeded, failed int) {
	m.bulkItems.WithLabelValues("successful").Add(float64(succeeded))
	m.bulkItems.WithLabelValues("failed").Add(float64(failed))
}

func (m *Metrics) NotificationSent(ok bool) {
	result := "sent"
	if !ok {
		result = "failed"
	}
	m.notifications.WithLabelValues(result).Inc()
}

// ObserveMessage records one bus dispatch; kind is the error kind or "ok".
func (m *Metrics) ObserveMessage(bus, key string, elapsed time.Duration, err error) {
	kind := "ok"
	if err != nil {
		kind = string(domainavailability.KindOf(err))
	}
	m.busDuration.WithLabelValues(bus, key, kind).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// OutboxRelayed counts records the relay delivered or failed to deliver.
func (m *Metrics) OutboxRelayed(ok bool) {
	result := "sent"
	if !ok {
		result = "failed"
	}
	m.outboxDelivered.WithLabelValues(result).Inc()
}
