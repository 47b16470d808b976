package uow

import (
	"context"
	"errors"

	"rentfleet/internal/app/outbox"
	domainavailability "rentfleet/internal/domain/availability"
	domainbooking "rentfleet/internal/domain/booking"
)

// UnitOfWork coordinates repositories inside a transaction boundary.
type UnitOfWork interface {
	Blocks() domainavailability.BlockRepository
	Recurring() domainavailability.RecurringRepository
	Bookings() domainbooking.Reader
	// Outbox stages event records that become visible to relays only after Commit.
	Outbox() outbox.Outbox

	// LockListing serializes check-then-write sequences on one listing until
	// the unit ends. Locking the same listing twice in one unit is a no-op.
	LockListing(ctx context.Context, listingID string) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// ErrRetryable marks driver failures (write conflicts, serialization
// failures) after which the whole unit may be run again from scratch.
var ErrRetryable = errors.New("uow: transaction conflict, retry")

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}

// ContextInjector is implemented by units that carry driver state (sessions,
// transactions) repositories pick up from the context.
type ContextInjector interface {
	InjectContext(ctx context.Context) context.Context
}
