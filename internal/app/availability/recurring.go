package availability

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"rentfleet/internal/app/handlers/support"
	"rentfleet/internal/app/outbox"
	"rentfleet/internal/app/uow"
	domainavailability "rentfleet/internal/domain/availability"
	"rentfleet/internal/domain/shared/daterange"
	"rentfleet/internal/domain/shared/events"
)

type CreateRecurringInput struct {
	ListingID   string
	ListingType domainavailability.ListingType
	DaysOfWeek  []int
	StartDate   time.Time
	EndDate     *time.Time
	Reason      string
	CreatedBy   string
}

// CreateRecurringBlock persists a weekly pattern. Bookings are not checked
// eagerly; occurrences are resolved against them at booking time.
func (s *Service) CreateRecurringBlock(ctx context.Context, in CreateRecurringInput) (*domainavailability.RecurringBlock, error) {
	days, err := domainavailability.NewWeekdays(in.DaysOfWeek...)
	if err != nil {
		return nil, err
	}
	pattern, err := domainavailability.NewRecurringBlock(domainavailability.CreateRecurringParams{
		ID:          domainavailability.RecurringBlockID(s.newID()),
		ListingID:   in.ListingID,
		ListingType: in.ListingType,
		DaysOfWeek:  days,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Reason:      in.Reason,
		CreatedBy:   in.CreatedBy,
		Now:         s.now(),
	})
	if err != nil {
		return nil, err
	}

	evs := pattern.Drain()
	err = support.RunInUnit(ctx, s.UoW, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		if err := unit.LockListing(ctx, pattern.ListingID); err != nil {
			return err
		}
		if err := unit.Recurring().Create(ctx, pattern); err != nil {
			return err
		}
		return outbox.RecordDomainEvents(ctx, unit.Outbox(), s.encoder(), evs)
	})
	if err != nil {
		return nil, err
	}
	s.logger().InfoContext(ctx, "recurring block created",
		slog.String("recurring_block_id", string(pattern.ID)),
		slog.String("listing_id", pattern.ListingID),
		slog.Any("days_of_week", pattern.DaysOfWeek.Indices()))
	return pattern, nil
}

// GenerateRecurringInstances materializes at most limit occurrences of a
// pattern inside [from, to]. A limit outside 1..MaxInstances is clamped to
// MaxInstances.
func (s *Service) GenerateRecurringInstances(ctx context.Context, id domainavailability.RecurringBlockID, from, to time.Time, limit int) ([]domainavailability.AvailabilityBlock, error) {
	window, err := normalizeRange(daterange.DateRange{Start: from, End: to})
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.maxInstances() {
		limit = s.maxInstances()
	}
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, s.UoW)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	pattern, err := unit.Recurring().ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return domainavailability.Take(domainavailability.Instances(pattern, window.Start, window.End), limit), nil
}

type UpdateRecurringInput struct {
	ID         domainavailability.RecurringBlockID
	Scope      domainavailability.Scope
	UpdateDate time.Time
	Patch      domainavailability.Patch
}

// UpdateRecurringBlock rewrites the whole pattern (ScopeAll) or splits it at
// UpdateDate so earlier occurrences stay as they were (ScopeFuture). It
// returns the row that carries the new fields.
func (s *Service) UpdateRecurringBlock(ctx context.Context, in UpdateRecurringInput) (*domainavailability.RecurringBlock, error) {
	if in.Scope == "" {
		in.Scope = domainavailability.ScopeAll
	}
	if in.Scope != domainavailability.ScopeAll && in.Scope != domainavailability.ScopeFuture {
		return nil, &domainavailability.Error{Kind: domainavailability.ErrInvalidScope, Message: "scope must be all or future"}
	}
	at := daterange.Day(in.UpdateDate)
	if in.Scope == domainavailability.ScopeFuture && at.IsZero() {
		return nil, &domainavailability.Error{Kind: domainavailability.ErrInvalidRequest, Message: "update date is required for future scope"}
	}

	var result *domainavailability.RecurringBlock
	err := support.RunInUnit(ctx, s.UoW, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		pattern, err := s.lockedPattern(ctx, unit, in.ID)
		if err != nil {
			return err
		}
		now := s.now()

		if in.Scope == domainavailability.ScopeAll || !at.After(pattern.StartDate) {
			if err := s.checkPredecessor(ctx, unit, pattern, in.Patch); err != nil {
				return err
			}
			if err := pattern.Update(in.Patch, now); err != nil {
				return err
			}
			if err := unit.Recurring().Update(ctx, pattern); err != nil {
				return err
			}
			result = pattern
			return outbox.RecordDomainEvents(ctx, unit.Outbox(), s.encoder(), pattern.Drain())
		}

		next, err := pattern.SplitAt(at, in.Patch, domainavailability.RecurringBlockID(s.newID()), now)
		if err != nil {
			return err
		}
		if err := unit.Recurring().Update(ctx, pattern); err != nil {
			return err
		}
		if err := unit.Recurring().Create(ctx, next); err != nil {
			return err
		}
		result = next
		return outbox.RecordDomainEvents(ctx, unit.Outbox(), s.encoder(), drainAll(pattern, next))
	})
	if err != nil {
		return nil, err
	}
	s.logger().InfoContext(ctx, "recurring block updated",
		slog.String("recurring_block_id", string(in.ID)),
		slog.String("scope", string(in.Scope)),
		slog.String("result_id", string(result.ID)))
	return result, nil
}

// DeleteRecurringBlock removes the pattern (ScopeAll) or stops it from
// generating occurrences on or after deleteDate (ScopeFuture).
func (s *Service) DeleteRecurringBlock(ctx context.Context, id domainavailability.RecurringBlockID, scope domainavailability.Scope, deleteDate time.Time) error {
	if scope == "" {
		scope = domainavailability.ScopeAll
	}
	if scope != domainavailability.ScopeAll && scope != domainavailability.ScopeFuture {
		return &domainavailability.Error{Kind: domainavailability.ErrInvalidScope, Message: "scope must be all or future"}
	}
	from := daterange.Day(deleteDate)
	if scope == domainavailability.ScopeFuture && from.IsZero() {
		return &domainavailability.Error{Kind: domainavailability.ErrInvalidRequest, Message: "delete date is required for future scope"}
	}

	outcome := domainavailability.TruncateRemoveRow
	err := support.RunInUnit(ctx, s.UoW, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		pattern, err := s.lockedPattern(ctx, unit, id)
		if err != nil {
			return err
		}
		now := s.now()
		if scope == domainavailability.ScopeAll {
			pattern.MarkDeleted(now)
		} else {
			if outcome, err = pattern.TruncateFrom(from, now); err != nil {
				return err
			}
		}

		switch outcome {
		case domainavailability.TruncateNoop:
			return nil
		case domainavailability.TruncateClosed:
			if err := unit.Recurring().Update(ctx, pattern); err != nil {
				return err
			}
		default:
			if err := unit.Recurring().Delete(ctx, pattern.ID); err != nil {
				return err
			}
		}
		return outbox.RecordDomainEvents(ctx, unit.Outbox(), s.encoder(), pattern.Drain())
	})
	if err != nil {
		return err
	}
	s.logger().InfoContext(ctx, "recurring block deleted",
		slog.String("recurring_block_id", string(id)),
		slog.String("scope", string(scope)),
		slog.Int("outcome", int(outcome)))
	return nil
}

// lockedPattern loads the pattern, takes its listing lock and reloads it so
// the returned row reflects every write committed before the lock.
func (s *Service) lockedPattern(ctx context.Context, unit uow.UnitOfWork, id domainavailability.RecurringBlockID) (*domainavailability.RecurringBlock, error) {
	pattern, err := unit.Recurring().ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := unit.LockListing(ctx, pattern.ListingID); err != nil {
		return nil, err
	}
	return unit.Recurring().ByID(ctx, id)
}

// checkPredecessor keeps a split successor from starting on or before the
// last day of the closed row it was split from.
func (s *Service) checkPredecessor(ctx context.Context, unit uow.UnitOfWork, pattern *domainavailability.RecurringBlock, pt domainavailability.Patch) error {
	if pattern.SplitFromID == "" || pt.StartDate == nil {
		return nil
	}
	prev, err := unit.Recurring().ByID(ctx, pattern.SplitFromID)
	if errors.Is(err, domainavailability.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return pattern.FollowsPredecessor(prev, pt)
}

func drainAll(patterns ...*domainavailability.RecurringBlock) []events.DomainEvent {
	var out []events.DomainEvent
	for _, p := range patterns {
		out = append(out, p.Drain()...)
	}
	return out
}
