package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainavailability "rentfleet/internal/domain/availability"
	domainbooking "rentfleet/internal/domain/booking"
	"rentfleet/internal/domain/shared/daterange"
)

// Repositories read and write through whatever session the context carries,
// so the same instances serve every unit of work.

var byStart = options.Find().SetSort(bson.D{{Key: "start_date", Value: 1}, {Key: "_id", Value: 1}})

// overlapFilter matches inclusive [start_date, end_date] spans intersecting r.
func overlapFilter(listingID string, r daterange.DateRange) bson.M {
	return bson.M{
		"listing_id": listingID,
		"start_date": bson.M{"$lte": r.End},
		"end_date":   bson.M{"$gte": r.Start},
	}
}

type BlockRepository struct {
	col *mongo.Collection
}

func NewBlockRepository(db *mongo.Database) *BlockRepository {
	return &BlockRepository{col: db.Collection(blocksCollection)}
}

func (r *BlockRepository) Create(ctx context.Context, b *domainavailability.AvailabilityBlock) error {
	if _, err := r.col.InsertOne(ctx, newBlockDocument(b)); err != nil {
		return wrapWrite("insert block", err)
	}
	return nil
}

func (r *BlockRepository) ByID(ctx context.Context, id domainavailability.BlockID) (*domainavailability.AvailabilityBlock, error) {
	var doc blockDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainavailability.NotFound("block", string(id))
		}
		return nil, fmt.Errorf("mongo: find block: %w", err)
	}
	return doc.toAggregate(), nil
}

func (r *BlockRepository) Overlapping(ctx context.Context, listingID string, dr daterange.DateRange) ([]*domainavailability.AvailabilityBlock, error) {
	cur, err := r.col.Find(ctx, overlapFilter(listingID, dr), byStart)
	if err != nil {
		return nil, fmt.Errorf("mongo: query blocks: %w", err)
	}
	var docs []blockDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decode blocks: %w", err)
	}
	out := make([]*domainavailability.AvailabilityBlock, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

func (r *BlockRepository) Delete(ctx context.Context, id domainavailability.BlockID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return wrapWrite("delete block", err)
	}
	if res.DeletedCount == 0 {
		return domainavailability.NotFound("block", string(id))
	}
	return nil
}

type RecurringRepository struct {
	col *mongo.Collection
}

func NewRecurringRepository(db *mongo.Database) *RecurringRepository {
	return &RecurringRepository{col: db.Collection(recurringCollection)}
}

func (r *RecurringRepository) Create(ctx context.Context, p *domainavailability.RecurringBlock) error {
	if _, err := r.col.InsertOne(ctx, newRecurringDocument(p)); err != nil {
		return wrapWrite("insert recurring block", err)
	}
	return nil
}

func (r *RecurringRepository) ByID(ctx context.Context, id domainavailability.RecurringBlockID) (*domainavailability.RecurringBlock, error) {
	var doc recurringDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainavailability.NotFound("recurring block", string(id))
		}
		return nil, fmt.Errorf("mongo: find recurring block: %w", err)
	}
	return doc.toAggregate()
}

func (r *RecurringRepository) Update(ctx context.Context, p *domainavailability.RecurringBlock) error {
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": string(p.ID)}, newRecurringDocument(p))
	if err != nil {
		return wrapWrite("replace recurring block", err)
	}
	if res.MatchedCount == 0 {
		return domainavailability.NotFound("recurring block", string(p.ID))
	}
	return nil
}

func (r *RecurringRepository) Delete(ctx context.Context, id domainavailability.RecurringBlockID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return wrapWrite("delete recurring block", err)
	}
	if res.DeletedCount == 0 {
		return domainavailability.NotFound("recurring block", string(id))
	}
	return nil
}

func (r *RecurringRepository) ActiveIn(ctx context.Context, listingID string, dr daterange.DateRange) ([]*domainavailability.RecurringBlock, error) {
	filter := bson.M{
		"listing_id": listingID,
		"start_date": bson.M{"$lte": dr.End},
		"$or": bson.A{
			bson.M{"end_date": nil},
			bson.M{"end_date": bson.M{"$gte": dr.Start}},
		},
	}
	cur, err := r.col.Find(ctx, filter, byStart)
	if err != nil {
		return nil, fmt.Errorf("mongo: query recurring blocks: %w", err)
	}
	var docs []recurringDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decode recurring blocks: %w", err)
	}
	out := make([]*domainavailability.RecurringBlock, 0, len(docs))
	for _, d := range docs {
		p, err := d.toAggregate()
		if err != nil {
			return nil, fmt.Errorf("mongo: recurring block %s: %w", d.ID, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// BookingRepository reads the bookings projection maintained by the booking service.
type BookingRepository struct {
	col *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	return &BookingRepository{col: db.Collection(bookingsCollection)}
}

// Put upserts a booking row; used to seed the projection.
func (r *BookingRepository) Put(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return wrapWrite("upsert booking", err)
	}
	return nil
}

func (r *BookingRepository) Overlapping(ctx context.Context, listingID string, dr daterange.DateRange, statuses ...domainbooking.Status) ([]*domainbooking.Booking, error) {
	filter := overlapFilter(listingID, dr)
	if len(statuses) > 0 {
		vals := make([]string, 0, len(statuses))
		for _, s := range statuses {
			vals = append(vals, string(s))
		}
		filter["status"] = bson.M{"$in": vals}
	}
	cur, err := r.col.Find(ctx, filter, byStart)
	if err != nil {
		return nil, fmt.Errorf("mongo: query bookings: %w", err)
	}
	var docs []bookingDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decode bookings: %w", err)
	}
	out := make([]*domainbooking.Booking, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

var (
	_ domainavailability.BlockRepository     = (*BlockRepository)(nil)
	_ domainavailability.RecurringRepository = (*RecurringRepository)(nil)
	_ domainbooking.Reader                   = (*BookingRepository)(nil)
)
