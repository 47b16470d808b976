package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"rentfleet/internal/app/middleware"
)

// IdempotencyStore keeps command results in app_idempotency. Rows older than
// TTL read as misses and are overwritten on the next save.
type IdempotencyStore struct {
	db  *sql.DB
	TTL time.Duration
	Now func() time.Time
}

func NewIdempotencyStore(db *sql.DB, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &IdempotencyStore{db: db, TTL: ttl, Now: time.Now}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	query, args, err := psql.Select("key", "command_key", "payload", "occurred_at").
		From("app_idempotency").
		Where(sq.Eq{"key": key}).
		Where(sq.Gt{"occurred_at": s.Now().UTC().Add(-s.TTL)}).
		ToSql()
	if err != nil {
		return middleware.IdempotencyRecord{}, false, fmt.Errorf("postgres: build idempotency lookup: %w", err)
	}
	var rec middleware.IdempotencyRecord
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&rec.Key, &rec.CommandKey, &rec.Payload, &rec.OccurredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return middleware.IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return middleware.IdempotencyRecord{}, false, wrapErr("idempotency lookup", err)
	}
	rec.OccurredAt = rec.OccurredAt.UTC()
	return rec, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	query, args, err := psql.Insert("app_idempotency").
		Columns("key", "command_key", "payload", "occurred_at").
		Values(rec.Key, rec.CommandKey, rec.Payload, rec.OccurredAt.UTC()).
		Suffix("ON CONFLICT (key) DO UPDATE SET command_key = EXCLUDED.command_key, payload = EXCLUDED.payload, occurred_at = EXCLUDED.occurred_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("postgres: build idempotency save: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return wrapErr("idempotency save", err)
	}
	return nil
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
