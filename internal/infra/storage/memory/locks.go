package memory

import (
	"context"
	"sync"
)

// ListingLocks is a keyed mutex. Entries are dropped once nobody holds or
// waits on them.
type ListingLocks struct {
	mu    sync.Mutex
	locks map[string]*listingLock
}

type listingLock struct {
	ch   chan struct{}
	refs int
}

func NewListingLocks() *ListingLocks {
	return &ListingLocks{locks: make(map[string]*listingLock)}
}

// Lock blocks until key is free or ctx ends. The returned release must be
// called exactly once.
func (l *ListingLocks) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*listingLock)
	}
	lk, ok := l.locks[key]
	if !ok {
		lk = &listingLock{ch: make(chan struct{}, 1)}
		l.locks[key] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.ch <- struct{}{}:
		return func() {
			<-lk.ch
			l.unref(key, lk)
		}, nil
	case <-ctx.Done():
		l.unref(key, lk)
		return nil, ctx.Err()
	}
}

func (l *ListingLocks) unref(key string, lk *listingLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, key)
	}
}
