package service

import "sync"

// MerchantLocks serializes work per merchant while letting different
// merchants proceed in parallel. Entries are reference counted and removed
// once no goroutine holds or waits for them.
type MerchantLocks struct {
	mu    sync.Mutex
	locks map[string]*merchantLock
}

type merchantLock struct {
	mu   sync.Mutex
	refs int
}

// NewMerchantLocks returns an empty lock table.
func NewMerchantLocks() *MerchantLocks {
	return &MerchantLocks{locks: make(map[string]*merchantLock)}
}

// Lock blocks until the caller holds merchantID's lock and returns the
// matching unlock function.
func (l *MerchantLocks) Lock(merchantID string) (unlock func()) {
	l.mu.Lock()
	ml, ok := l.locks[merchantID]
	if !ok {
		ml = &merchantLock{}
		l.locks[merchantID] = ml
	}
	ml.refs++
	l.mu.Unlock()

	ml.mu.Lock()

	return func() {
		ml.mu.Unlock()

		l.mu.Lock()
		ml.refs--
		if ml.refs == 0 {
			delete(l.locks, merchantID)
		}
		l.mu.Unlock()
	}
}

// Len returns the number of merchants currently locked or waited on.
func (l *MerchantLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.locks)
}
