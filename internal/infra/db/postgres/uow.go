package postgres

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	appoutbox "rentfleet/internal/app/outbox"
	"rentfleet/internal/app/uow"
	domainavailability "rentfleet/internal/domain/availability"
	domainbooking "rentfleet/internal/domain/booking"
)

// Factory opens serializable transactions for units of work.
type Factory struct {
	DB *sql.DB

	Blocks    *BlockRepository
	Recurring *RecurringRepository
	Bookings  *BookingRepository
	Outbox    *OutboxStore
}

func NewFactory(db *sql.DB) *Factory {
	return &Factory{
		DB:        db,
		Blocks:    NewBlockRepository(db),
		Recurring: NewRecurringRepository(db),
		Bookings:  NewBookingRepository(db),
		Outbox:    NewOutboxStore(db),
	}
}

var ErrUnitOfWorkNotConfigured = errors.New("postgres: unit of work factory missing database")

func (f *Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f == nil || f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	tx, err := f.DB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable, ReadOnly: opts.ReadOnly})
	if err != nil {
		return nil, wrapErr("begin", err)
	}
	return &Unit{factory: f, tx: tx, readOnly: opts.ReadOnly, locked: map[string]struct{}{}}, nil
}

type Unit struct {
	factory  *Factory
	tx       *sql.Tx
	readOnly bool

	mu     sync.Mutex
	locked map[string]struct{}
	done   bool
}

func (u *Unit) Blocks() domainavailability.BlockRepository        { return u.factory.Blocks }
func (u *Unit) Recurring() domainavailability.RecurringRepository { return u.factory.Recurring }
func (u *Unit) Bookings() domainbooking.Reader                    { return u.factory.Bookings }
func (u *Unit) Outbox() appoutbox.Outbox                          { return u.factory.Outbox }

const lockListingSQL = "SELECT pg_advisory_xact_lock(hashtext($1))"

// LockListing takes a transaction-scoped advisory lock keyed by the listing id.
func (u *Unit) LockListing(ctx context.Context, listingID string) error {
	if u.readOnly {
		return nil
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.locked[listingID]; ok {
		return nil
	}
	if _, err := u.tx.ExecContext(ctx, lockListingSQL, listingID); err != nil {
		return wrapErr("lock listing "+listingID, err)
	}
	u.locked[listingID] = struct{}{}
	return nil
}

func (u *Unit) Commit(context.Context) error {
	if !u.finish() {
		return errUnitFinished
	}
	if err := u.tx.Commit(); err != nil {
		return wrapErr("commit", err)
	}
	return nil
}

func (u *Unit) Rollback(context.Context) error {
	if !u.finish() {
		return nil
	}
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return wrapErr("rollback", err)
	}
	return nil
}

// InjectContext binds the transaction so repositories run inside it.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return withTx(ctx, u.tx)
}

var errUnitFinished = errors.New("postgres: unit of work already finished")

func (u *Unit) finish() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return false
	}
	u.done = true
	return true
}

var (
	_ uow.UoWFactory      = (*Factory)(nil)
	_ uow.ContextInjector = (*Unit)(nil)
)
