package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// InboxStore records consumed event ids per consumer in app_inbox.
type InboxStore struct {
	db       *sql.DB
	consumer string
}

func NewInboxStore(db *sql.DB, consumer string) *InboxStore {
	return &InboxStore{db: db, consumer: consumer}
}

func (s *InboxStore) Seen(ctx context.Context, eventID string) (bool, error) {
	query, args, err := psql.Insert("app_inbox").
		Columns("event_id", "consumer", "received_at").
		Values(eventID, s.consumer, time.Now().UTC()).
		Suffix("ON CONFLICT (event_id, consumer) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("postgres: build inbox insert: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, wrapErr("inbox insert", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapErr("inbox insert", err)
	}
	return n == 0, nil
}

func (s *InboxStore) Forget(ctx context.Context, eventID string) error {
	query, args, err := psql.Delete("app_inbox").
		Where(sq.Eq{"event_id": eventID, "consumer": s.consumer}).
		ToSql()
	if err != nil {
		return fmt.Errorf("postgres: build inbox delete: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return wrapErr("inbox delete", err)
	}
	return nil
}

// PurgeInbox drops entries received before cutoff.
func PurgeInbox(ctx context.Context, db *sql.DB, cutoff time.Time) (int64, error) {
	query, args, err := psql.Delete("app_inbox").Where(sq.Lt{"received_at": cutoff.UTC()}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("postgres: build inbox purge: %w", err)
	}
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, wrapErr("inbox purge", err)
	}
	return res.RowsAffected()
}
