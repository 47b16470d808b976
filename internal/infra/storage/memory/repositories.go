package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	domainavailability "rentfleet/internal/domain/availability"
	domainbooking "rentfleet/internal/domain/booking"
	"rentfleet/internal/domain/shared/daterange"
)

// BlockRepository keeps one-off blocks in memory, indexed by listing.
type BlockRepository struct {
	mu        sync.RWMutex
	items     map[domainavailability.BlockID]*domainavailability.AvailabilityBlock
	byListing map[string]map[domainavailability.BlockID]struct{}
}

func NewBlockRepository() *BlockRepository {
	return &BlockRepository{
		items:     make(map[domainavailability.BlockID]*domainavailability.AvailabilityBlock),
		byListing: make(map[string]map[domainavailability.BlockID]struct{}),
	}
}

func (r *BlockRepository) Create(ctx context.Context, block *domainavailability.AvailabilityBlock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[block.ID]; exists {
		return fmt.Errorf("memory: block %s already exists", block.ID)
	}
	r.items[block.ID] = copyBlock(block)
	ids, ok := r.byListing[block.ListingID]
	if !ok {
		ids = make(map[domainavailability.BlockID]struct{})
		r.byListing[block.ListingID] = ids
	}
	ids[block.ID] = struct{}{}
	return nil
}

func (r *BlockRepository) ByID(ctx context.Context, id domainavailability.BlockID) (*domainavailability.AvailabilityBlock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.items[id]
	if !ok {
		return nil, domainavailability.NotFound("block", string(id))
	}
	return copyBlock(b), nil
}

func (r *BlockRepository) Overlapping(ctx context.Context, listingID string, dr daterange.DateRange) ([]*domainavailability.AvailabilityBlock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainavailability.AvailabilityBlock
	for id := range r.byListing[listingID] {
		b := r.items[id]
		if b.Range.Overlaps(dr) {
			out = append(out, copyBlock(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Range.Start.Equal(out[j].Range.Start) {
			return out[i].Range.Start.Before(out[j].Range.Start)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *BlockRepository) Delete(ctx context.Context, id domainavailability.BlockID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.items[id]
	if !ok {
		return domainavailability.NotFound("block", string(id))
	}
	delete(r.items, id)
	delete(r.byListing[b.ListingID], id)
	return nil
}

// RecurringRepository keeps weekly patterns in memory.
type RecurringRepository struct {
	mu    sync.RWMutex
	items map[domainavailability.RecurringBlockID]*domainavailability.RecurringBlock
}

func NewRecurringRepository() *RecurringRepository {
	return &RecurringRepository{items: make(map[domainavailability.RecurringBlockID]*domainavailability.RecurringBlock)}
}

func (r *RecurringRepository) Create(ctx context.Context, p *domainavailability.RecurringBlock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[p.ID]; exists {
		return fmt.Errorf("memory: recurring block %s already exists", p.ID)
	}
	r.items[p.ID] = copyPattern(p)
	return nil
}

func (r *RecurringRepository) ByID(ctx context.Context, id domainavailability.RecurringBlockID) (*domainavailability.RecurringBlock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[id]
	if !ok {
		return nil, domainavailability.NotFound("recurring block", string(id))
	}
	return copyPattern(p), nil
}

func (r *RecurringRepository) Update(ctx context.Context, p *domainavailability.RecurringBlock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[p.ID]; !ok {
		return domainavailability.NotFound("recurring block", string(p.ID))
	}
	r.items[p.ID] = copyPattern(p)
	return nil
}

func (r *RecurringRepository) Delete(ctx context.Context, id domainavailability.RecurringBlockID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return domainavailability.NotFound("recurring block", string(id))
	}
	delete(r.items, id)
	return nil
}

func (r *RecurringRepository) ActiveIn(ctx context.Context, listingID string, dr daterange.DateRange) ([]*domainavailability.RecurringBlock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainavailability.RecurringBlock
	for _, p := range r.items {
		if p.ListingID == listingID && p.Covers(dr) {
			out = append(out, copyPattern(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// BookingRepository is a read model of bookings owned by the booking service.
// Put seeds or replaces entries.
type BookingRepository struct {
	mu    sync.RWMutex
	items map[domainbooking.BookingID]*domainbooking.Booking
}

func NewBookingRepository() *BookingRepository {
	return &BookingRepository{items: make(map[domainbooking.BookingID]*domainbooking.Booking)}
}

func (r *BookingRepository) Put(ctx context.Context, b *domainbooking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *b
	r.items[b.ID] = &cp
	return nil
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.items[id]
	if !ok {
		return nil, domainbooking.ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *BookingRepository) Overlapping(ctx context.Context, listingID string, dr daterange.DateRange, statuses ...domainbooking.Status) ([]*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainbooking.Booking
	for _, b := range r.items {
		if b.ListingID != listingID || !b.Range.Overlaps(dr) || !statusIn(b.Status, statuses) {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Range.Start.Equal(out[j].Range.Start) {
			return out[i].Range.Start.Before(out[j].Range.Start)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func statusIn(s domainbooking.Status, set []domainbooking.Status) bool {
	if len(set) == 0 {
		return true
	}
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// copyBlock and copyPattern drop pending events: stored rows never carry them.
func copyBlock(b *domainavailability.AvailabilityBlock) *domainavailability.AvailabilityBlock {
	return &domainavailability.AvailabilityBlock{
		ID:               b.ID,
		ListingID:        b.ListingID,
		ListingType:      b.ListingType,
		Range:            b.Range,
		Reason:           b.Reason,
		CreatedBy:        b.CreatedBy,
		IsRecurring:      b.IsRecurring,
		RecurringBlockID: b.RecurringBlockID,
		CreatedAt:        b.CreatedAt,
	}
}

func copyPattern(p *domainavailability.RecurringBlock) *domainavailability.RecurringBlock {
	cp := &domainavailability.RecurringBlock{
		ID:          p.ID,
		ListingID:   p.ListingID,
		ListingType: p.ListingType,
		DaysOfWeek:  p.DaysOfWeek,
		StartDate:   p.StartDate,
		Reason:      p.Reason,
		CreatedBy:   p.CreatedBy,
		SplitFromID: p.SplitFromID,
		Closed:      p.Closed,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.EndDate != nil {
		end := *p.EndDate
		cp.EndDate = &end
	}
	return cp
}

var (
	_ domainavailability.BlockRepository     = (*BlockRepository)(nil)
	_ domainavailability.RecurringRepository = (*RecurringRepository)(nil)
	_ domainbooking.Reader                   = (*BookingRepository)(nil)
)
