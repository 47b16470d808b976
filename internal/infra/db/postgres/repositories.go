package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	domainavailability "rentfleet/internal/domain/availability"
	domainbooking "rentfleet/internal/domain/booking"
	"rentfleet/internal/domain/shared/daterange"
)

var (
	blockColumns     = []string{"id", "listing_id", "listing_type", "start_date", "end_date", "reason", "created_by", "created_at"}
	recurringColumns = []string{"id", "listing_id", "listing_type", "days_of_week", "start_date", "end_date", "reason", "created_by", "split_from_id", "created_at", "updated_at", "closed"}
	bookingColumns   = []string{"id", "booking_number", "listing_id", "renter_id", "start_date", "end_date", "status"}
)

// overlaps matches inclusive [start_date, end_date] spans intersecting r.
func overlaps(listingID string, r daterange.DateRange) sq.And {
	return sq.And{
		sq.Eq{"listing_id": listingID},
		sq.LtOrEq{"start_date": r.End},
		sq.GtOrEq{"end_date": r.Start},
	}
}

type scanner interface {
	Scan(dest ...any) error
}

type BlockRepository struct {
	db *sql.DB
}

func NewBlockRepository(db *sql.DB) *BlockRepository {
	return &BlockRepository{db: db}
}

func insertBlock(b *domainavailability.AvailabilityBlock) sq.InsertBuilder {
	return psql.Insert("availability_blocks").
		Columns(blockColumns...).
		Values(string(b.ID), b.ListingID, string(b.ListingType), b.Range.Start, b.Range.End, b.Reason, b.CreatedBy, b.CreatedAt.UTC())
}

func (r *BlockRepository) Create(ctx context.Context, b *domainavailability.AvailabilityBlock) error {
	query, args, err := insertBlock(b).ToSql()
	if err != nil {
		return fmt.Errorf("postgres: build insert block: %w", err)
	}
	if _, err := executor(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		return wrapErr("insert block", err)
	}
	return nil
}

func (r *BlockRepository) ByID(ctx context.Context, id domainavailability.BlockID) (*domainavailability.AvailabilityBlock, error) {
	query, args, err := psql.Select(blockColumns...).From("availability_blocks").Where(sq.Eq{"id": string(id)}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("postgres: build select block: %w", err)
	}
	b, err := scanBlock(executor(ctx, r.db).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domainavailability.NotFound("block", string(id))
	}
	if err != nil {
		return nil, wrapErr("select block", err)
	}
	return b, nil
}

func selectBlocks(listingID string, r daterange.DateRange) sq.SelectBuilder {
	return psql.Select(blockColumns...).
		From("availability_blocks").
		Where(overlaps(listingID, r)).
		OrderBy("start_date", "id")
}

func (r *BlockRepository) Overlapping(ctx context.Context, listingID string, dr daterange.DateRange) ([]*domainavailability.AvailabilityBlock, error) {
	query, args, err := selectBlocks(listingID, dr).ToSql()
	if err != nil {
		return nil, fmt.Errorf("postgres: build overlapping blocks: %w", err)
	}
	rows, err := executor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("query blocks", err)
	}
	defer rows.Close()
	var out []*domainavailability.AvailabilityBlock
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, wrapErr("scan block", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *BlockRepository) Delete(ctx context.Context, id domainavailability.BlockID) error {
	query, args, err := psql.Delete("availability_blocks").Where(sq.Eq{"id": string(id)}).ToSql()
	if err != nil {
		return fmt.Errorf("postgres: build delete block: %w", err)
	}
	res, err := executor(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return wrapErr("delete block", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domainavailability.NotFound("block", string(id))
	}
	return nil
}

func scanBlock(s scanner) (*domainavailability.AvailabilityBlock, error) {
	var (
		b                  domainavailability.AvailabilityBlock
		id, listingType    string
		start, end, create time.Time
	)
	if err := s.Scan(&id, &b.ListingID, &listingType, &start, &end, &b.Reason, &b.CreatedBy, &create); err != nil {
		return nil, err
	}
	b.ID = domainavailability.BlockID(id)
	b.ListingType = domainavailability.ListingType(listingType)
	b.Range = daterange.DateRange{Start: daterange.Day(start), End: daterange.Day(end)}
	b.CreatedAt = create.UTC()
	return &b, nil
}

type RecurringRepository struct {
	db *sql.DB
}

func NewRecurringRepository(db *sql.DB) *RecurringRepository {
	return &RecurringRepository{db: db}
}

func recurringValues(p *domainavailability.RecurringBlock) []any {
	days := make([]int64, 0, 7)
	for _, d := range p.DaysOfWeek.Indices() {
		days = append(days, int64(d))
	}
	var end any
	if p.EndDate != nil {
		end = *p.EndDate
	}
	return []any{
		string(p.ID), p.ListingID, string(p.ListingType), pq.Int64Array(days), p.StartDate, end,
		p.Reason, p.CreatedBy, string(p.SplitFromID), p.CreatedAt.UTC(), p.UpdatedAt.UTC(), p.Closed,
	}
}

func (r *RecurringRepository) Create(ctx context.Context, p *domainavailability.RecurringBlock) error {
	query, args, err := psql.Insert("recurring_blocks").Columns(recurringColumns...).Values(recurringValues(p)...).ToSql()
	if err != nil {
		return fmt.Errorf("postgres: build insert recurring block: %w", err)
	}
	if _, err := executor(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		return wrapErr("insert recurring block", err)
	}
	return nil
}

func (r *RecurringRepository) ByID(ctx context.Context, id domainavailability.RecurringBlockID) (*domainavailability.RecurringBlock, error) {
	query, args, err := psql.Select(recurringColumns...).From("recurring_blocks").Where(sq.Eq{"id": string(id)}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("postgres: build select recurring block: %w", err)
	}
	p, err := scanPattern(executor(ctx, r.db).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domainavailability.NotFound("recurring block", string(id))
	}
	if err != nil {
		return nil, wrapErr("select recurring block", err)
	}
	return p, nil
}

func updateRecurring(p *domainavailability.RecurringBlock) sq.UpdateBuilder {
	vals := recurringValues(p)
	b := psql.Update("recurring_blocks").Where(sq.Eq{"id": string(p.ID)})
	// id stays; created_at is immutable
	for i, col := range recurringColumns {
		if col == "id" || col == "created_at" {
			continue
		}
		b = b.Set(col, vals[i])
	}
	return b
}

func (r *RecurringRepository) Update(ctx context.Context, p *domainavailability.RecurringBlock) error {
	query, args, err := updateRecurring(p).ToSql()
	if err != nil {
		return fmt.Errorf("postgres: build update recurring block: %w", err)
	}
	res, err := executor(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return wrapErr("update recurring block", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domainavailability.NotFound("recurring block", string(p.ID))
	}
	return nil
}

func (r *RecurringRepository) Delete(ctx context.Context, id domainavailability.RecurringBlockID) error {
	query, args, err := psql.Delete("recurring_blocks").Where(sq.Eq{"id": string(id)}).ToSql()
	if err != nil {
		return fmt.Errorf("postgres: build delete recurring block: %w", err)
	}
	res, err := executor(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return wrapErr("delete recurring block", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domainavailability.NotFound("recurring block", string(id))
	}
	return nil
}

func selectActive(listingID string, r daterange.DateRange) sq.SelectBuilder {
	return psql.Select(recurringColumns...).
		From("recurring_blocks").
		Where(sq.Eq{"listing_id": listingID}).
		Where(sq.LtOrEq{"start_date": r.End}).
		Where(sq.Or{sq.Eq{"end_date": nil}, sq.GtOrEq{"end_date": r.Start}}).
		OrderBy("start_date", "id")
}

func (r *RecurringRepository) ActiveIn(ctx context.Context, listingID string, dr daterange.DateRange) ([]*domainavailability.RecurringBlock, error) {
	query, args, err := selectActive(listingID, dr).ToSql()
	if err != nil {
		return nil, fmt.Errorf("postgres: build active recurring blocks: %w", err)
	}
	rows, err := executor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("query recurring blocks", err)
	}
	defer rows.Close()
	var out []*domainavailability.RecurringBlock
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, wrapErr("scan recurring block", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPattern(s scanner) (*domainavailability.RecurringBlock, error) {
	var (
		p                          domainavailability.RecurringBlock
		id, listingType, splitFrom string
		days                       pq.Int64Array
		start, created, updated    time.Time
		end                        sql.NullTime
	)
	if err := s.Scan(&id, &p.ListingID, &listingType, &days, &start, &end, &p.Reason, &p.CreatedBy, &splitFrom, &created, &updated, &p.Closed); err != nil {
		return nil, err
	}
	idx := make([]int, 0, len(days))
	for _, d := range days {
		idx = append(idx, int(d))
	}
	w, err := domainavailability.NewWeekdays(idx...)
	if err != nil {
		return nil, err
	}
	p.ID = domainavailability.RecurringBlockID(id)
	p.ListingType = domainavailability.ListingType(listingType)
	p.DaysOfWeek = w
	p.StartDate = daterange.Day(start)
	if end.Valid {
		e := daterange.Day(end.Time)
		p.EndDate = &e
	}
	p.SplitFromID = domainavailability.RecurringBlockID(splitFrom)
	p.CreatedAt = created.UTC()
	p.UpdatedAt = updated.UTC()
	return &p, nil
}

// BookingRepository reads the bookings projection maintained by the booking service.
type BookingRepository struct {
	db *sql.DB
}

func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Put upserts a booking row; used to seed the projection.
func (r *BookingRepository) Put(ctx context.Context, b *domainbooking.Booking) error {
	query, args, err := psql.Insert("bookings").
		Columns(bookingColumns...).
		Values(string(b.ID), b.BookingNumber, b.ListingID, b.RenterID, b.Range.Start, b.Range.End, string(b.Status)).
		Suffix("ON CONFLICT (id) DO UPDATE SET booking_number = EXCLUDED.booking_number, listing_id = EXCLUDED.listing_id, " +
			"renter_id = EXCLUDED.renter_id, start_date = EXCLUDED.start_date, end_date = EXCLUDED.end_date, status = EXCLUDED.status").
		ToSql()
	if err != nil {
		return fmt.Errorf("postgres: build upsert booking: %w", err)
	}
	if _, err := executor(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		return wrapErr("upsert booking", err)
	}
	return nil
}

func selectBookings(listingID string, r daterange.DateRange, statuses []domainbooking.Status) sq.SelectBuilder {
	b := psql.Select(bookingColumns...).From("bookings").Where(overlaps(listingID, r))
	if len(statuses) > 0 {
		vals := make([]string, 0, len(statuses))
		for _, s := range statuses {
			vals = append(vals, string(s))
		}
		b = b.Where(sq.Eq{"status": vals})
	}
	return b.OrderBy("start_date", "id")
}

func (r *BookingRepository) Overlapping(ctx context.Context, listingID string, dr daterange.DateRange, statuses ...domainbooking.Status) ([]*domainbooking.Booking, error) {
	query, args, err := selectBookings(listingID, dr, statuses).ToSql()
	if err != nil {
		return nil, fmt.Errorf("postgres: build overlapping bookings: %w", err)
	}
	rows, err := executor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("query bookings", err)
	}
	defer rows.Close()
	var out []*domainbooking.Booking
	for rows.Next() {
		var (
			b          domainbooking.Booking
			id, status string
			start, end time.Time
		)
		if err := rows.Scan(&id, &b.BookingNumber, &b.ListingID, &b.RenterID, &start, &end, &status); err != nil {
			return nil, wrapErr("scan booking", err)
		}
		b.ID = domainbooking.BookingID(id)
		b.Range = daterange.DateRange{Start: daterange.Day(start), End: daterange.Day(end)}
		if parsed, ok := domainbooking.ParseStatus(status); ok {
			b.Status = parsed
		} else {
			b.Status = domainbooking.Status(status)
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

var (
	_ domainavailability.BlockRepository     = (*BlockRepository)(nil)
	_ domainavailability.RecurringRepository = (*RecurringRepository)(nil)
	_ domainbooking.Reader                   = (*BookingRepository)(nil)
)
