package support

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"rentfleet/internal/app/uow"
)

// BeginReadOnlyUnit reuses the unit already in ctx or starts a read-only one.
// The returned cleanup is nil when the unit belongs to the caller.
func BeginReadOnlyUnit(ctx context.Context, factory uow.UoWFactory) (uow.UnitOfWork, context.Context, func(), error) {
	unit, ok := uow.FromContext(ctx)
	if ok {
		return unit, ctx, nil, nil
	}
	if factory == nil {
		return nil, ctx, nil, uow.ErrUnitOfWorkMissing
	}
	newUnit, err := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, ctx, nil, err
	}
	execCtx := bind(ctx, newUnit)
	cleanup := func() {
		_ = newUnit.Rollback(execCtx)
	}
	return newUnit, execCtx, cleanup, nil
}

// MaxAttempts bounds how often RunInUnit restarts a unit that failed with
// uow.ErrRetryable.
const MaxAttempts = 3

// RetryBaseDelay is the pause before the second attempt. Each further attempt
// doubles it, and every pause adds a random share of itself on top so
// writers that collided on a listing do not collide again in lockstep.
var RetryBaseDelay = 15 * time.Millisecond

// RunInUnit executes fn inside the unit already carried by ctx, or inside a
// fresh unit it commits on success and rolls back on error or panic. Fresh
// units that fail with uow.ErrRetryable are run again after a short pause,
// so fn must not leak state between attempts.
func RunInUnit(ctx context.Context, factory uow.UoWFactory, opts uow.TxOptions, fn func(ctx context.Context, unit uow.UnitOfWork) error) error {
	if unit, ok := uow.FromContext(ctx); ok {
		return fn(ctx, unit)
	}
	if factory == nil {
		return uow.ErrUnitOfWorkMissing
	}
	for attempt := 1; ; attempt++ {
		err := runOnce(ctx, factory, opts, fn)
		if err == nil || !errors.Is(err, uow.ErrRetryable) || attempt >= MaxAttempts {
			return err
		}
		if waitErr := wait(ctx, retryDelay(attempt)); waitErr != nil {
			return errors.Join(err, waitErr)
		}
	}
}

func retryDelay(attempt int) time.Duration {
	if RetryBaseDelay <= 0 {
		return 0
	}
	d := RetryBaseDelay << (attempt - 1)
	return d + rand.N(d)
}

func wait(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func runOnce(ctx context.Context, factory uow.UoWFactory, opts uow.TxOptions, fn func(ctx context.Context, unit uow.UnitOfWork) error) error {
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return err
	}
	execCtx := bind(ctx, unit)
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(execCtx)
		}
	}()

	if err := fn(execCtx, unit); err != nil {
		return err
	}
	if opts.ReadOnly {
		return nil
	}
	if err := unit.Commit(execCtx); err != nil {
		return err
	}
	committed = true
	return nil
}

func bind(ctx context.Context, unit uow.UnitOfWork) context.Context {
	if injector, ok := unit.(uow.ContextInjector); ok {
		ctx = injector.InjectContext(ctx)
	}
	return uow.ContextWithUnitOfWork(ctx, unit)
}
