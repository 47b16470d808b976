package availability

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rentfleet/internal/app/outbox"
	domainavailability "rentfleet/internal/domain/availability"
	domainbooking "rentfleet/internal/domain/booking"
	"rentfleet/internal/domain/shared/daterange"
	"rentfleet/internal/infra/storage/memory"
)

type testEngine struct {
	svc      *Service
	factory  *memory.Factory
	box      *memory.Outbox
	router   *outbox.Router
	metrics  *countingMetrics
	notifier *recordingNotifier
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	router := outbox.NewRouter(nil)
	box := memory.NewOutbox(router, nil)
	factory := memory.NewFactory(box)
	var seq atomic.Int64
	m := &countingMetrics{}
	e := &testEngine{
		svc: &Service{
			UoW:     factory,
			Metrics: m,
			Now:     func() time.Time { return day("2024-01-01") },
			NewID:   func() string { return fmt.Sprintf("id-%03d", seq.Add(1)) },
		},
		factory:  factory,
		box:      box,
		router:   router,
		metrics:  m,
		notifier: &recordingNotifier{},
	}
	return e
}

func (e *testEngine) seedBooking(t *testing.T, id, number, listingID, start, end string, status domainbooking.Status) {
	t.Helper()
	require.NoError(t, e.factory.BookingsRepo.Put(context.Background(), &domainbooking.Booking{
		ID:            domainbooking.BookingID(id),
		BookingNumber: number,
		ListingID:     listingID,
		RenterID:      "renter-1",
		Range:         rng(start, end),
		Status:        status,
	}))
}

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

func rng(start, end string) daterange.DateRange {
	return daterange.DateRange{Start: day(start), End: day(end)}
}

func blockInput(listingID, start, end, reason string) CreateBlockInput {
	return CreateBlockInput{
		ListingID:   listingID,
		ListingType: domainavailability.ListingVehicle,
		StartDate:   day(start),
		EndDate:     day(end),
		Reason:      reason,
		CreatedBy:   "provider-1",
	}
}

type countingMetrics struct {
	mu        sync.Mutex
	created   int
	conflicts map[domainavailability.Kind]int
	bulkOK    int
	bulkFail  int
	sent      int
	failed    int
}

func (m *countingMetrics) BlockCreated(domainavailability.ListingType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created++
}

func (m *countingMetrics) ConflictDetected(k domainavailability.Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conflicts == nil {
		m.conflicts = map[domainavailability.Kind]int{}
	}
	m.conflicts[k]++
}

func (m *countingMetrics) BulkCompleted(ok, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bulkOK += ok
	m.bulkFail += failed
}

func (m *countingMetrics) NotificationSent(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.sent++
	} else {
		m.failed++
	}
}

type emitted struct {
	UserID   string
	Kind     string
	Message  string
	Metadata map[string]string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []emitted
	err  error
}

func (n *recordingNotifier) Emit(_ context.Context, userID, kind, message string, metadata map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, emitted{UserID: userID, Kind: kind, Message: message, Metadata: metadata})
	return nil
}

func outboxRecord(name string, payload []byte) outbox.EventRecord {
	return outbox.EventRecord{ID: "evt-test", Name: name, Payload: payload}
}
