package availability

import (
	"context"
	"strings"
	"time"

	"rentfleet/internal/domain/shared/daterange"
	"rentfleet/internal/domain/shared/events"
)

type RecurringBlockID string

// Scope selects whether a pattern mutation rewrites history or only applies from a date on.
type Scope string

const (
	ScopeAll    Scope = "all"
	ScopeFuture Scope = "future"
)

func ParseScope(raw string) (Scope, error) {
	switch s := Scope(strings.ToLower(strings.TrimSpace(raw))); s {
	case ScopeAll, ScopeFuture:
		return s, nil
	case "":
		return ScopeAll, nil
	default:
		return "", newError(ErrInvalidScope, "unknown scope %q", raw)
	}
}

// RecurringBlock is a weekly unavailability pattern. EndDate nil means open-ended.
// A Closed row is history left behind by a future-scoped update or delete; its
// dates never change again.
type RecurringBlock struct {
	ID          RecurringBlockID
	ListingID   string
	ListingType ListingType
	DaysOfWeek  Weekdays
	StartDate   time.Time
	EndDate     *time.Time
	Reason      string
	CreatedBy   string
	SplitFromID RecurringBlockID
	Closed      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	events.EventRecorder
}

// RecurringRepository persists patterns.
type RecurringRepository interface {
	Create(ctx context.Context, pattern *RecurringBlock) error
	ByID(ctx context.Context, id RecurringBlockID) (*RecurringBlock, error)
	Update(ctx context.Context, pattern *RecurringBlock) error
	Delete(ctx context.Context, id RecurringBlockID) error
	// ActiveIn returns patterns of the listing whose own date span overlaps r.
	ActiveIn(ctx context.Context, listingID string, r daterange.DateRange) ([]*RecurringBlock, error)
}

type CreateRecurringParams struct {
	ID          RecurringBlockID
	ListingID   string
	ListingType ListingType
	DaysOfWeek  Weekdays
	StartDate   time.Time
	EndDate     *time.Time
	Reason      string
	CreatedBy   string
	Now         time.Time
}

func NewRecurringBlock(params CreateRecurringParams) (*RecurringBlock, error) {
	if err := validateOwner(params.ListingID, params.ListingType); err != nil {
		return nil, err
	}
	now := params.Now.UTC()
	p := &RecurringBlock{
		ID:          params.ID,
		ListingID:   params.ListingID,
		ListingType: params.ListingType,
		DaysOfWeek:  params.DaysOfWeek,
		StartDate:   daterange.Day(params.StartDate),
		EndDate:     dayPtr(params.EndDate),
		Reason:      strings.TrimSpace(params.Reason),
		CreatedBy:   params.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.Record(RecurringBlockCreated{Pattern: p.snapshot(), At: now})
	return p, nil
}

func (p *RecurringBlock) Validate() error {
	if p.DaysOfWeek.Empty() {
		return newError(ErrInvalidRecurrence, "days of week must not be empty")
	}
	if p.DaysOfWeek&^allWeekdays != 0 {
		return newError(ErrInvalidRecurrence, "weekday outside 0..6")
	}
	if p.StartDate.IsZero() {
		return newError(ErrInvalidDateRange, "start date is required")
	}
	if p.EndDate != nil && p.EndDate.Before(p.StartDate) {
		return InvalidDateRange(p.StartDate, *p.EndDate)
	}
	return nil
}

// Span is the pattern's own date span clipped to limit when open-ended.
func (p *RecurringBlock) Span(limit time.Time) daterange.DateRange {
	end := daterange.Day(limit)
	if p.EndDate != nil && (end.IsZero() || p.EndDate.Before(end)) {
		end = *p.EndDate
	}
	return daterange.DateRange{Start: p.StartDate, End: end}
}

// Covers reports whether the pattern's span overlaps r.
func (p *RecurringBlock) Covers(r daterange.DateRange) bool {
	if p.StartDate.After(r.End) {
		return false
	}
	return p.EndDate == nil || !p.EndDate.Before(r.Start)
}

// Patch holds optional field updates; nil leaves a field unchanged.
type Patch struct {
	DaysOfWeek   *Weekdays
	StartDate    *time.Time
	EndDate      *time.Time
	ClearEndDate bool
	Reason       *string
}

func (pt Patch) apply(p *RecurringBlock) {
	if pt.DaysOfWeek != nil {
		p.DaysOfWeek = *pt.DaysOfWeek
	}
	if pt.StartDate != nil {
		p.StartDate = daterange.Day(*pt.StartDate)
	}
	if pt.ClearEndDate {
		p.EndDate = nil
	} else if pt.EndDate != nil {
		p.EndDate = dayPtr(pt.EndDate)
	}
	if pt.Reason != nil {
		p.Reason = strings.TrimSpace(*pt.Reason)
	}
}

// Update rewrites the pattern in place (scope "all"). A closed row keeps its
// dates; only weekdays and reason may change.
func (p *RecurringBlock) Update(pt Patch, now time.Time) error {
	next := p.clone()
	pt.apply(next)
	if err := next.Validate(); err != nil {
		return err
	}
	if p.Closed && !sameSpan(p, next) {
		return newError(ErrInvalidDateRange, "recurring block %s is closed; its dates cannot change", p.ID)
	}
	p.DaysOfWeek, p.StartDate, p.EndDate, p.Reason = next.DaysOfWeek, next.StartDate, next.EndDate, next.Reason
	p.UpdatedAt = now.UTC()
	p.Record(RecurringBlockUpdated{Pattern: p.snapshot(), At: p.UpdatedAt})
	return nil
}

// FollowsPredecessor rejects a patch that would move the start of a split
// successor onto or before the last day of the row it was split from.
func (p *RecurringBlock) FollowsPredecessor(prev *RecurringBlock, pt Patch) error {
	if prev == nil || prev.EndDate == nil || pt.StartDate == nil {
		return nil
	}
	start := daterange.Day(*pt.StartDate)
	if !start.After(*prev.EndDate) {
		return newError(ErrInvalidDateRange, "start date %s must be after %s, the end of recurring block %s",
			start.Format(daterange.Layout), prev.EndDate.Format(daterange.Layout), prev.ID)
	}
	return nil
}

// SplitAt closes the pattern the day before at and returns a new pattern
// starting at at with pt merged over the original fields. The new segment
// always starts at at; a StartDate in pt is ignored. The caller must ensure
// at falls strictly after StartDate and not after a bounded EndDate.
func (p *RecurringBlock) SplitAt(at time.Time, pt Patch, newID RecurringBlockID, now time.Time) (*RecurringBlock, error) {
	at = daterange.Day(at)
	if p.Closed {
		return nil, newError(ErrInvalidDateRange, "recurring block %s is closed; its dates cannot change", p.ID)
	}
	if !at.After(p.StartDate) {
		return nil, newError(ErrInvalidDateRange, "split date %s must be after pattern start %s", at.Format(daterange.Layout), p.StartDate.Format(daterange.Layout))
	}
	if p.EndDate != nil && at.After(*p.EndDate) {
		return nil, newError(ErrInvalidDateRange, "split date %s is after pattern end %s", at.Format(daterange.Layout), p.EndDate.Format(daterange.Layout))
	}
	now = now.UTC()

	next := p.clone()
	next.ID = newID
	next.SplitFromID = p.ID
	next.CreatedAt = now
	next.UpdatedAt = now
	pt.StartDate = nil
	pt.apply(next)
	next.StartDate = at
	if err := next.Validate(); err != nil {
		return nil, err
	}

	closed := daterange.AddDays(at, -1)
	p.EndDate = &closed
	p.Closed = true
	p.UpdatedAt = now
	p.Record(RecurringBlockSplit{Closed: p.snapshot(), Successor: next.snapshot(), At: now})
	next.Record(RecurringBlockCreated{Pattern: next.snapshot(), At: now})
	return next, nil
}

// TruncateOutcome tells the caller what a future-scoped delete left behind.
type TruncateOutcome int

const (
	TruncateNoop TruncateOutcome = iota
	TruncateClosed
	TruncateRemoveRow
)

// TruncateFrom stops generation from day on. When nothing would remain the
// row should be removed instead; a day past a bounded end changes nothing.
// Shortening an already closed row is rejected.
func (p *RecurringBlock) TruncateFrom(day time.Time, now time.Time) (TruncateOutcome, error) {
	day = daterange.Day(day)
	if !day.After(p.StartDate) {
		p.Record(RecurringBlockDeleted{PatternID: p.ID, ListingID: p.ListingID, At: now.UTC()})
		return TruncateRemoveRow, nil
	}
	if p.EndDate != nil && day.After(*p.EndDate) {
		return TruncateNoop, nil
	}
	if p.Closed {
		return TruncateNoop, newError(ErrInvalidDateRange, "recurring block %s is closed; its dates cannot change", p.ID)
	}
	closed := daterange.AddDays(day, -1)
	p.EndDate = &closed
	p.Closed = true
	p.UpdatedAt = now.UTC()
	p.Record(RecurringBlockTruncated{Pattern: p.snapshot(), From: day, At: p.UpdatedAt})
	return TruncateClosed, nil
}

// MarkDeleted records removal of the whole pattern.
func (p *RecurringBlock) MarkDeleted(now time.Time) {
	p.Record(RecurringBlockDeleted{PatternID: p.ID, ListingID: p.ListingID, At: now.UTC()})
}

func (p *RecurringBlock) clone() *RecurringBlock {
	c := &RecurringBlock{
		ID:          p.ID,
		ListingID:   p.ListingID,
		ListingType: p.ListingType,
		DaysOfWeek:  p.DaysOfWeek,
		StartDate:   p.StartDate,
		EndDate:     dayPtr(p.EndDate),
		Reason:      p.Reason,
		CreatedBy:   p.CreatedBy,
		SplitFromID: p.SplitFromID,
		Closed:      p.Closed,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	return c
}

func sameSpan(a, b *RecurringBlock) bool {
	if !a.StartDate.Equal(b.StartDate) {
		return false
	}
	if a.EndDate == nil || b.EndDate == nil {
		return a.EndDate == nil && b.EndDate == nil
	}
	return a.EndDate.Equal(*b.EndDate)
}

func (p *RecurringBlock) snapshot() PatternSnapshot {
	return PatternSnapshot{
		ID:          p.ID,
		ListingID:   p.ListingID,
		ListingType: p.ListingType,
		DaysOfWeek:  p.DaysOfWeek,
		StartDate:   p.StartDate,
		EndDate:     dayPtr(p.EndDate),
		Reason:      p.Reason,
		CreatedBy:   p.CreatedBy,
		SplitFromID: p.SplitFromID,
		Closed:      p.Closed,
	}
}

func dayPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	d := daterange.Day(*t)
	return &d
}
