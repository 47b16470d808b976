package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentfleet/internal/app/commands"
	"rentfleet/internal/app/outbox"
	"rentfleet/internal/app/queries"
	domainavailability "rentfleet/internal/domain/availability"
)

type result struct {
	ID string `json:"id"`
}

type blockCmd struct {
	key string
}

func (c blockCmd) Key() string            { return "availability.block.create" }
func (c blockCmd) IdempotencyKey() string { return c.key }
func (c blockCmd) ResultPrototype() any   { return &result{} }

type otherCmd struct{ key string }

func (c otherCmd) Key() string            { return "availability.bulk.create" }
func (c otherCmd) IdempotencyKey() string { return c.key }
func (c otherCmd) ResultPrototype() any   { return &result{} }

type memStore struct {
	mu   sync.Mutex
	recs map[string]IdempotencyRecord
}

func (s *memStore) Get(_ context.Context, key string) (IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[key]
	return rec, ok, nil
}

func (s *memStore) Save(_ context.Context, rec IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recs == nil {
		s.recs = map[string]IdempotencyRecord{}
	}
	s.recs[rec.Key] = rec
	return nil
}

type countingBus struct {
	calls int
	err   error
}

func (b *countingBus) Dispatch(_ context.Context, cmd commands.Command) (any, error) {
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	return &result{ID: "blk-" + cmd.Key()}, nil
}

func TestIdempotencyReplaysSuccessfulResult(t *testing.T) {
	base := &countingBus{}
	store := &memStore{}
	bus := ChainCommands(base, Idempotency(store, nil))

	first, err := commands.Dispatch[blockCmd, *result](context.Background(), bus, blockCmd{key: "k1"})
	require.NoError(t, err)
	second, err := commands.Dispatch[blockCmd, *result](context.Background(), bus, blockCmd{key: "k1"})
	require.NoError(t, err)

	assert.Equal(t, 1, base.calls)
	assert.Equal(t, first, second)
	assert.Contains(t, store.recs, "availability.block.create:k1")

	_, err = commands.Dispatch[otherCmd, *result](context.Background(), bus, otherCmd{key: "k1"})
	require.NoError(t, err)
	assert.Equal(t, 2, base.calls, "same key on another command is not a replay")

	_, err = commands.Dispatch[blockCmd, *result](context.Background(), bus, blockCmd{})
	require.NoError(t, err)
	assert.Equal(t, 3, base.calls, "empty key bypasses the store")
}

func TestIdempotencyDoesNotRecordFailures(t *testing.T) {
	base := &countingBus{err: domainavailability.BookingConflict(nil)}
	store := &memStore{}
	bus := ChainCommands(base, Idempotency(store, JSONResultCodec{}))

	_, err := bus.Dispatch(context.Background(), blockCmd{key: "k"})
	assert.ErrorIs(t, err, domainavailability.ErrBookingConflict)
	assert.Empty(t, store.recs)

	base.err = nil
	res, err := bus.Dispatch(context.Background(), blockCmd{key: "k"})
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Equal(t, 2, base.calls)
}

type recordingObserver struct {
	keys []string
	errs []error
}

func (o *recordingObserver) ObserveMessage(bus, key string, _ time.Duration, err error) {
	o.keys = append(o.keys, bus+":"+key)
	o.errs = append(o.errs, err)
}

type stubValidator struct{ err error }

func (v stubValidator) Validate(context.Context, any) error { return v.err }

func TestChainOrderAndObservation(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	obs := &recordingObserver{}
	invalid := domainavailability.InvalidRequest("listing id is required")
	base := &countingBus{}
	bus := ChainCommands(base, Logging(logger), Metrics(obs), Validation(stubValidator{err: invalid}))

	_, err := bus.Dispatch(context.Background(), blockCmd{})
	assert.ErrorIs(t, err, domainavailability.ErrInvalidRequest)
	assert.Zero(t, base.calls, "validation short-circuits before the handler")
	require.Len(t, obs.keys, 1)
	assert.Equal(t, "command:availability.block.create", obs.keys[0])
	assert.Contains(t, buf.String(), `"kind":"INVALID_REQUEST"`)
	assert.Contains(t, buf.String(), `"msg":"message rejected"`)
}

func TestQueryMiddleware(t *testing.T) {
	qb := queries.NewInMemoryBus()
	queries.RegisterHandler[pingQuery, string](qb, "ping", queries.HandlerFunc[pingQuery, string](
		func(context.Context, pingQuery) (string, error) { return "pong", nil }))
	obs := &recordingObserver{}
	bus := ChainQueries(qb, QueryLogging(nil), QueryMetrics(obs), QueryValidation(stubValidator{}))

	out, err := queries.Ask[pingQuery, string](context.Background(), bus, pingQuery{})
	require.NoError(t, err)
	assert.Equal(t, "pong", out)
	assert.Equal(t, []string{"query:ping"}, obs.keys)

	_, err = bus.Ask(context.Background(), missingQuery{})
	assert.ErrorIs(t, err, queries.ErrHandlerNotFound)
	assert.True(t, errors.Is(obs.errs[1], queries.ErrHandlerNotFound))
}

type pingQuery struct{}

func (pingQuery) Key() string { return "ping" }

type missingQuery struct{}

func (missingQuery) Key() string { return "missing" }

type flushRecorder struct {
	flushed int
	err     error
}

func (f *flushRecorder) Add(context.Context, outbox.EventRecord) error { return nil }

func (f *flushRecorder) Flush(context.Context) error {
	f.flushed++
	return f.err
}

func TestOutboxFlushOnlyAfterSuccess(t *testing.T) {
	box := &flushRecorder{}
	base := &countingBus{}
	bus := ChainCommands(base, OutboxFlush(box, nil))

	_, err := bus.Dispatch(context.Background(), blockCmd{})
	require.NoError(t, err)
	assert.Equal(t, 1, box.flushed)

	box.err = errors.New("broker down")
	res, err := bus.Dispatch(context.Background(), blockCmd{})
	require.NoError(t, err, "committed result survives a failed flush")
	assert.NotNil(t, res)
	assert.Equal(t, 2, box.flushed)

	base.err = errors.New("boom")
	_, err = bus.Dispatch(context.Background(), blockCmd{})
	require.Error(t, err)
	assert.Equal(t, 2, box.flushed)
}
