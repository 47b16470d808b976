package mongo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	appoutbox "rentfleet/internal/app/outbox"
	"rentfleet/internal/app/uow"
	domainavailability "rentfleet/internal/domain/availability"
	domainbooking "rentfleet/internal/domain/booking"
)

// Factory wires Mongo transactions into the generic UnitOfWork interface.
type Factory struct {
	DB *mongo.Database

	Blocks    *BlockRepository
	Recurring *RecurringRepository
	Bookings  *BookingRepository
	Outbox    *OutboxStore
}

func NewFactory(db *mongo.Database) *Factory {
	return &Factory{
		DB:        db,
		Blocks:    NewBlockRepository(db),
		Recurring: NewRecurringRepository(db),
		Bookings:  NewBookingRepository(db),
		Outbox:    NewOutboxStore(db),
	}
}

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Begin starts a session. Writable units run a snapshot transaction with
// majority writes; read-only units read through the session without one.
func (f *Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f == nil || f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	unit := &Unit{factory: f, session: session, readOnly: opts.ReadOnly, locked: map[string]struct{}{}}
	if opts.ReadOnly {
		return unit, nil
	}
	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return unit, nil
}

type Unit struct {
	factory  *Factory
	session  mongo.Session
	readOnly bool

	mu     sync.Mutex
	locked map[string]struct{}
	done   bool
}

func (u *Unit) Blocks() domainavailability.BlockRepository        { return u.factory.Blocks }
func (u *Unit) Recurring() domainavailability.RecurringRepository { return u.factory.Recurring }
func (u *Unit) Bookings() domainbooking.Reader                    { return u.factory.Bookings }
func (u *Unit) Outbox() appoutbox.Outbox                          { return u.factory.Outbox }

// LockListing bumps the listing's lock document inside the transaction. A
// concurrent transaction touching the same document fails with a write
// conflict, surfaced as uow.ErrRetryable.
func (u *Unit) LockListing(ctx context.Context, listingID string) error {
	if u.readOnly {
		return nil
	}
	u.mu.Lock()
	if _, ok := u.locked[listingID]; ok {
		u.mu.Unlock()
		return nil
	}
	u.mu.Unlock()

	col := u.factory.DB.Collection(locksCollection)
	update := bson.M{
		"$inc": bson.M{"version": 1},
		"$set": bson.M{"locked_at": time.Now().UTC()},
	}
	if _, err := col.UpdateByID(u.bind(ctx), listingID, update, options.Update().SetUpsert(true)); err != nil {
		return wrapWrite("lock listing "+listingID, err)
	}
	u.mu.Lock()
	u.locked[listingID] = struct{}{}
	u.mu.Unlock()
	return nil
}

func (u *Unit) Commit(ctx context.Context) error {
	if !u.finish() {
		return errUnitFinished
	}
	defer u.session.EndSession(ctx)
	if u.readOnly {
		return nil
	}
	if err := u.session.CommitTransaction(ctx); err != nil {
		if isTransient(err) {
			return fmt.Errorf("mongo: commit: %w: %w", uow.ErrRetryable, err)
		}
		return fmt.Errorf("mongo: commit: %w", err)
	}
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	if !u.finish() {
		return nil
	}
	defer u.session.EndSession(ctx)
	if u.readOnly {
		return nil
	}
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures the Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

func (u *Unit) bind(ctx context.Context) context.Context {
	if mongo.SessionFromContext(ctx) != nil {
		return ctx
	}
	return u.InjectContext(ctx)
}

var errUnitFinished = errors.New("mongo: unit of work already finished")

func (u *Unit) finish() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return false
	}
	u.done = true
	return true
}

// EnsureIndexes creates the range and relay indexes the repositories rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	rangeIdx := mongo.IndexModel{Keys: bson.D{
		{Key: "listing_id", Value: 1},
		{Key: "start_date", Value: 1},
		{Key: "end_date", Value: 1},
	}}
	for _, name := range []string{blocksCollection, recurringCollection} {
		if _, err := db.Collection(name).Indexes().CreateOne(ctx, rangeIdx); err != nil {
			return fmt.Errorf("mongo: index %s: %w", name, err)
		}
	}
	bookingIdx := mongo.IndexModel{Keys: bson.D{
		{Key: "listing_id", Value: 1},
		{Key: "status", Value: 1},
		{Key: "start_date", Value: 1},
		{Key: "end_date", Value: 1},
	}}
	if _, err := db.Collection(bookingsCollection).Indexes().CreateOne(ctx, bookingIdx); err != nil {
		return fmt.Errorf("mongo: index %s: %w", bookingsCollection, err)
	}
	relayIdx := mongo.IndexModel{Keys: bson.D{{Key: "state", Value: 1}, {Key: "next_attempt_at", Value: 1}}}
	if _, err := db.Collection(outboxCollection).Indexes().CreateOne(ctx, relayIdx); err != nil {
		return fmt.Errorf("mongo: index %s: %w", outboxCollection, err)
	}
	return nil
}

var (
	_ uow.UoWFactory      = (*Factory)(nil)
	_ uow.ContextInjector = (*Unit)(nil)
)
