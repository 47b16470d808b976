package memory

import (
	"context"
	"errors"
	"slices"
	"sync"

	appoutbox "rentfleet/internal/app/outbox"
	"rentfleet/internal/app/uow"
	domainavailability "rentfleet/internal/domain/availability"
	domainbooking "rentfleet/internal/domain/booking"
	"rentfleet/internal/domain/shared/daterange"
)

// Factory wires in-memory repositories into a unit-of-work boundary.
type Factory struct {
	BlocksRepo    *BlockRepository
	RecurringRepo *RecurringRepository
	BookingsRepo  *BookingRepository
	Outbox        appoutbox.Outbox
	Locks         *ListingLocks
}

// NewFactory builds a factory over fresh repositories.
func NewFactory(box appoutbox.Outbox) *Factory {
	return &Factory{
		BlocksRepo:    NewBlockRepository(),
		RecurringRepo: NewRecurringRepository(),
		BookingsRepo:  NewBookingRepository(),
		Outbox:        box,
		Locks:         NewListingLocks(),
	}
}

// ErrFactoryMisconfigured indicates missing repositories.
var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

var errUnitClosed = errors.New("memory: unit of work already finished")

// Begin starts a unit. Writes hit the shared repositories immediately and
// are undone on Rollback; outbox records are published on Commit.
func (f *Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f == nil || f.BlocksRepo == nil || f.RecurringRepo == nil || f.BookingsRepo == nil || f.Locks == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{factory: f, readOnly: opts.ReadOnly, staged: &stagedOutbox{}, held: make(map[string]func())}, nil
}

// Unit is a uow.UnitOfWork backed by in-memory stores.
type Unit struct {
	factory  *Factory
	readOnly bool
	staged   *stagedOutbox

	mu     sync.Mutex
	undo   []func()
	held   map[string]func()
	closed bool
}

func (u *Unit) Blocks() domainavailability.BlockRepository {
	return unitBlocks{u: u}
}

func (u *Unit) Recurring() domainavailability.RecurringRepository {
	return unitRecurring{u: u}
}

func (u *Unit) Bookings() domainbooking.Reader {
	return u.factory.BookingsRepo
}

func (u *Unit) Outbox() appoutbox.Outbox {
	return u.staged
}

func (u *Unit) LockListing(ctx context.Context, listingID string) error {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return errUnitClosed
	}
	if _, ok := u.held[listingID]; ok {
		u.mu.Unlock()
		return nil
	}
	u.mu.Unlock()

	release, err := u.factory.Locks.Lock(ctx, listingID)
	if err != nil {
		return err
	}
	u.mu.Lock()
	u.held[listingID] = release
	u.mu.Unlock()
	return nil
}

func (u *Unit) Commit(ctx context.Context) error {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return errUnitClosed
	}
	u.closed = true
	records := u.staged.records
	u.undo = nil
	u.mu.Unlock()
	defer u.releaseLocks()

	if u.factory.Outbox == nil {
		return nil
	}
	for _, rec := range records {
		if err := u.factory.Outbox.Add(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return nil
	}
	u.closed = true
	undo := u.undo
	u.undo = nil
	u.staged.records = nil
	u.mu.Unlock()
	defer u.releaseLocks()

	for _, fn := range slices.Backward(undo) {
		fn()
	}
	return nil
}

func (u *Unit) releaseLocks() {
	u.mu.Lock()
	held := u.held
	u.held = make(map[string]func())
	u.mu.Unlock()
	for _, release := range held {
		release()
	}
}

var errReadOnlyUnit = errors.New("memory: write in read-only unit")

func (u *Unit) writable() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return errUnitClosed
	}
	if u.readOnly {
		return errReadOnlyUnit
	}
	return nil
}

// track records how to revert a write that already succeeded.
func (u *Unit) track(undo func()) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.undo = append(u.undo, undo)
}

type unitBlocks struct{ u *Unit }

func (r unitBlocks) Create(ctx context.Context, b *domainavailability.AvailabilityBlock) error {
	repo := r.u.factory.BlocksRepo
	if err := r.u.writable(); err != nil {
		return err
	}
	if err := repo.Create(ctx, b); err != nil {
		return err
	}
	id := b.ID
	r.u.track(func() { _ = repo.Delete(context.Background(), id) })
	return nil
}

func (r unitBlocks) ByID(ctx context.Context, id domainavailability.BlockID) (*domainavailability.AvailabilityBlock, error) {
	return r.u.factory.BlocksRepo.ByID(ctx, id)
}

func (r unitBlocks) Overlapping(ctx context.Context, listingID string, dr daterange.DateRange) ([]*domainavailability.AvailabilityBlock, error) {
	return r.u.factory.BlocksRepo.Overlapping(ctx, listingID, dr)
}

func (r unitBlocks) Delete(ctx context.Context, id domainavailability.BlockID) error {
	repo := r.u.factory.BlocksRepo
	if err := r.u.writable(); err != nil {
		return err
	}
	prev, err := repo.ByID(ctx, id)
	if err != nil {
		return err
	}
	if err := repo.Delete(ctx, id); err != nil {
		return err
	}
	r.u.track(func() { _ = repo.Create(context.Background(), prev) })
	return nil
}

type unitRecurring struct{ u *Unit }

func (r unitRecurring) Create(ctx context.Context, p *domainavailability.RecurringBlock) error {
	repo := r.u.factory.RecurringRepo
	if err := r.u.writable(); err != nil {
		return err
	}
	if err := repo.Create(ctx, p); err != nil {
		return err
	}
	id := p.ID
	r.u.track(func() { _ = repo.Delete(context.Background(), id) })
	return nil
}

func (r unitRecurring) ByID(ctx context.Context, id domainavailability.RecurringBlockID) (*domainavailability.RecurringBlock, error) {
	return r.u.factory.RecurringRepo.ByID(ctx, id)
}

func (r unitRecurring) Update(ctx context.Context, p *domainavailability.RecurringBlock) error {
	repo := r.u.factory.RecurringRepo
	if err := r.u.writable(); err != nil {
		return err
	}
	prev, err := repo.ByID(ctx, p.ID)
	if err != nil {
		return err
	}
	if err := repo.Update(ctx, p); err != nil {
		return err
	}
	r.u.track(func() { _ = repo.Update(context.Background(), prev) })
	return nil
}

func (r unitRecurring) Delete(ctx context.Context, id domainavailability.RecurringBlockID) error {
	repo := r.u.factory.RecurringRepo
	if err := r.u.writable(); err != nil {
		return err
	}
	prev, err := repo.ByID(ctx, id)
	if err != nil {
		return err
	}
	if err := repo.Delete(ctx, id); err != nil {
		return err
	}
	r.u.track(func() { _ = repo.Create(context.Background(), prev) })
	return nil
}

func (r unitRecurring) ActiveIn(ctx context.Context, listingID string, dr daterange.DateRange) ([]*domainavailability.RecurringBlock, error) {
	return r.u.factory.RecurringRepo.ActiveIn(ctx, listingID, dr)
}

var _ uow.UoWFactory = (*Factory)(nil)
