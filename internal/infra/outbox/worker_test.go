package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appoutbox "rentfleet/internal/app/outbox"
)

type fakeStore struct {
	mu      sync.Mutex
	due     []*Record
	sent    []string
	failed  map[string]time.Time
	claimer string
}

func (s *fakeStore) Claim(_ context.Context, workerID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.due) == 0 {
		return nil, nil
	}
	rec := s.due[0]
	s.due = s.due[1:]
	s.claimer = workerID
	return rec, nil
}

func (s *fakeStore) MarkSent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, id)
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, id string, next time.Time, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed == nil {
		s.failed = map[string]time.Time{}
	}
	s.failed[id] = next
	return nil
}

type published struct {
	topic, key string
	payload    []byte
	headers    map[string]string
}

type fakeProducer struct {
	msgs []published
	err  error
}

func (p *fakeProducer) Publish(_ context.Context, topic, key string, payload []byte, headers map[string]string) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{topic, key, payload, headers})
	return nil
}

type relayCounter struct{ ok, failed int }

func (c *relayCounter) OutboxRelayed(ok bool) {
	if ok {
		c.ok++
		return
	}
	c.failed++
}

var occurred = time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

func record(id string) *Record {
	return &Record{
		ID:         id,
		Name:       "availability.block.created",
		Payload:    []byte(`{"block_id":"blk-1"}`),
		OccurredAt: occurred,
		Aggregate:  "veh-1",
		Headers:    map[string]string{"traceparent": "00-abc-def-01"},
	}
}

func TestDrainPublishesCloudEvents(t *testing.T) {
	store := &fakeStore{due: []*Record{record("ev-1"), record("ev-2")}}
	prod := &fakeProducer{}
	counter := &relayCounter{}
	w := &Worker{Store: store, Producer: prod, TopicPrefix: "dev.", ID: "w-1", Metrics: counter}

	n, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"ev-1", "ev-2"}, store.sent)
	assert.Equal(t, "w-1", store.claimer)
	assert.Equal(t, 2, counter.ok)

	require.Len(t, prod.msgs, 2)
	msg := prod.msgs[0]
	assert.Equal(t, "dev.availability.events.v1", msg.topic)
	assert.Equal(t, "veh-1", msg.key)
	assert.Equal(t, "application/cloudevents+json", msg.headers["content-type"])

	rec, err := Unwrap(msg.payload)
	require.NoError(t, err)
	assert.Equal(t, "ev-1", rec.ID)
	assert.Equal(t, "availability.block.created", rec.Name)
	assert.Equal(t, "veh-1", rec.Aggregate)
	assert.JSONEq(t, `{"block_id":"blk-1"}`, string(rec.Payload))
	assert.True(t, occurred.Equal(rec.OccurredAt))
	assert.Equal(t, "00-abc-def-01", rec.Headers["traceparent"])
}

func TestDrainSchedulesRetryWithBackoff(t *testing.T) {
	first := record("ev-1")
	second := record("ev-2")
	second.Attempts = 5
	store := &fakeStore{due: []*Record{first, second}}
	counter := &relayCounter{}
	w := &Worker{
		Store:    store,
		Producer: &fakeProducer{err: errors.New("broker down")},
		Backoff:  []time.Duration{time.Second, time.Minute},
		Now:      func() time.Time { return occurred },
		Metrics:  counter,
	}

	n, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, store.sent)
	assert.Equal(t, occurred.Add(time.Second), store.failed["ev-1"])
	assert.Equal(t, occurred.Add(time.Minute), store.failed["ev-2"], "attempts past the table reuse the last step")
	assert.Equal(t, 2, counter.failed)
}

func TestDrainRejectsNonJSONPayload(t *testing.T) {
	bad := record("ev-bad")
	bad.Payload = []byte("not json")
	store := &fakeStore{due: []*Record{bad}}
	prod := &fakeProducer{}
	w := &Worker{Store: store, Producer: prod}

	_, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Empty(t, prod.msgs)
	assert.Contains(t, store.failed, "ev-bad")
}

func TestDrainHonorsBatchSize(t *testing.T) {
	store := &fakeStore{due: []*Record{record("a"), record("b"), record("c")}}
	w := &Worker{Store: store, Producer: &fakeProducer{}, BatchSize: 2}

	n, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, store.due, 1)
}

func TestLocalProducerDispatchesToRouter(t *testing.T) {
	router := appoutbox.NewRouter(nil)
	var got []appoutbox.EventRecord
	router.Handle("availability.block.created", func(_ context.Context, rec appoutbox.EventRecord) error {
		got = append(got, rec)
		return nil
	})
	store := &fakeStore{due: []*Record{record("ev-1")}}
	w := &Worker{Store: store, Producer: LocalProducer{Router: router}}

	_, err := w.Drain(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ev-1", got[0].ID)
	assert.Equal(t, []string{"ev-1"}, store.sent)
}

func TestRunRequiresDependencies(t *testing.T) {
	assert.ErrorIs(t, (&Worker{}).Run(context.Background()), ErrWorkerNotConfigured)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := &Worker{Store: &fakeStore{}, Producer: &fakeProducer{}}
	assert.ErrorIs(t, w.Run(ctx), context.Canceled)
}

func TestUnwrapRejectsGarbage(t *testing.T) {
	_, err := Unwrap([]byte(`{"specversion":"0.3","id":"x","type":"y"}`))
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
	_, err = Unwrap([]byte(`nope`))
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
}
