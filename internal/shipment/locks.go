package shipment

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLockHeld means another generation attempt holds the order's lock.
var ErrLockHeld = errors.New("lock already held")

// lockTable provides one exclusive lock per orderId so unrelated
// orders never serialize behind each other. Acquisition waits at most
// the given timeout instead of queuing indefinitely. Entries are
// reference counted and dropped once the last holder or waiter is
// gone, so the table does not grow with every order ever locked.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	ch   chan struct{}
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*lockEntry)}
}

func (t *lockTable) checkout(key string) *lockEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.locks[key]
	if !ok {
		e = &lockEntry{ch: make(chan struct{}, 1)}
		t.locks[key] = e
	}
	e.refs++
	return e
}

func (t *lockTable) checkin(key string, e *lockEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(t.locks, key)
	}
}

// acquire takes the lock for key, waiting up to timeout. The returned
// release function must be called on every exit path.
func (t *lockTable) acquire(ctx context.Context, key string, timeout time.Duration) (release func(), err error) {
	e := t.checkout(key)

	select {
	case e.ch <- struct{}{}:
		return func() { <-e.ch; t.checkin(key, e) }, nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case e.ch <- struct{}{}:
		return func() { <-e.ch; t.checkin(key, e) }, nil
	case <-timer.C:
		t.checkin(key, e)
		return nil, ErrLockHeld
	case <-ctx.Done():
		t.checkin(key, e)
		return nil, ctx.Err()
	}
}
