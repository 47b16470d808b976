package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	appoutbox "rentfleet/internal/app/outbox"
	infraoutbox "rentfleet/internal/infra/outbox"
)

const (
	stateNew     = "NEW"
	stateClaimed = "CLAIMED"
	stateSent    = "SENT"
	stateFailed  = "FAILED"
)

// OutboxStore is the app_outbox table. Add joins the unit's transaction; the
// relay worker drains rows with Claim.
type OutboxStore struct {
	db *sql.DB
	// ClaimTimeout returns stuck CLAIMED rows to the pool.
	ClaimTimeout time.Duration
	Now          func() time.Time
}

func NewOutboxStore(db *sql.DB) *OutboxStore {
	return &OutboxStore{db: db, ClaimTimeout: time.Minute, Now: time.Now}
}

func (s *OutboxStore) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func insertOutbox(record appoutbox.EventRecord, now time.Time) (sq.InsertBuilder, error) {
	headers := record.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	raw, err := json.Marshal(headers)
	if err != nil {
		return sq.InsertBuilder{}, err
	}
	return psql.Insert("app_outbox").
		Columns("id", "name", "payload", "occurred_at", "aggregate", "headers", "state", "next_attempt_at", "created_at").
		Values(record.ID, record.Name, record.Payload, record.OccurredAt.UTC(), record.Aggregate, string(raw), stateNew, now, now), nil
}

func (s *OutboxStore) Add(ctx context.Context, record appoutbox.EventRecord) error {
	b, err := insertOutbox(record, s.now())
	if err != nil {
		return fmt.Errorf("postgres: encode outbox headers: %w", err)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("postgres: build insert outbox: %w", err)
	}
	if _, err := executor(ctx, s.db).ExecContext(ctx, query, args...); err != nil {
		return wrapErr("insert outbox record", err)
	}
	return nil
}

// Flush is a no-op; delivery belongs to the relay worker.
func (s *OutboxStore) Flush(context.Context) error {
	return nil
}

func claimOutbox(workerID string, now, staleBefore time.Time) sq.UpdateBuilder {
	pick := psql.Select("id").
		From("app_outbox").
		Where(sq.Or{
			sq.And{sq.Eq{"state": []string{stateNew, stateFailed}}, sq.LtOrEq{"next_attempt_at": now}},
			sq.And{sq.Eq{"state": stateClaimed}, sq.LtOrEq{"claimed_at": staleBefore}},
		}).
		OrderBy("next_attempt_at").
		Limit(1).
		Suffix("FOR UPDATE SKIP LOCKED")
	return psql.Update("app_outbox").
		Set("state", stateClaimed).
		Set("claimed_by", workerID).
		Set("claimed_at", now).
		Where(sq.Expr("id = (?)", pick)).
		Suffix("RETURNING id, name, payload, occurred_at, aggregate, headers, attempts")
}

func (s *OutboxStore) Claim(ctx context.Context, workerID string) (*infraoutbox.Record, error) {
	now := s.now()
	query, args, err := claimOutbox(workerID, now, now.Add(-s.ClaimTimeout)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("postgres: build claim: %w", err)
	}
	var (
		rec     infraoutbox.Record
		headers []byte
	)
	err = s.db.QueryRowContext(ctx, query, args...).
		Scan(&rec.ID, &rec.Name, &rec.Payload, &rec.OccurredAt, &rec.Aggregate, &headers, &rec.Attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("claim outbox record", err)
	}
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &rec.Headers); err != nil {
			return nil, fmt.Errorf("postgres: decode outbox headers %s: %w", rec.ID, err)
		}
	}
	rec.OccurredAt = rec.OccurredAt.UTC()
	return &rec, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	query, args, err := psql.Update("app_outbox").
		Set("state", stateSent).
		Set("sent_at", s.now()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("postgres: build mark sent: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return wrapErr("mark sent", err)
	}
	return nil
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	query, args, err := psql.Update("app_outbox").
		Set("state", stateFailed).
		Set("next_attempt_at", next.UTC()).
		Set("last_error", errMsg).
		Set("attempts", sq.Expr("attempts + 1")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("postgres: build mark failed: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return wrapErr("mark failed", err)
	}
	return nil
}

var (
	_ appoutbox.Outbox  = (*OutboxStore)(nil)
	_ infraoutbox.Store = (*OutboxStore)(nil)
)
