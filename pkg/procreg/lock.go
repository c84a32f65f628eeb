package procreg

import (
	"context"
	"sync"
	"time"
)

// lockTable provides per-key mutual exclusion in a namespace independent
// of registry entries and meta. Lock entries are created on demand and
// removed once the last waiter releases, so an idle table holds nothing.
type lockTable struct {
	mu    sync.Mutex
	locks map[any]*lockEntry
}

type lockEntry struct {
	mu sync.Mutex
	// refs counts the holder plus queued waiters; guarded by lockTable.mu.
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[any]*lockEntry)}
}

// acquire blocks until the key's lock is held and returns the release
// function. Contended callers queue in sync.Mutex order, which the Go
// runtime keeps non-starving.
func (t *lockTable) acquire(key any) (release func()) {
	t.mu.Lock()
	e, ok := t.locks[key]
	if !ok {
		e = &lockEntry{}
		t.locks[key] = e
	}
	e.refs++
	t.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()
		t.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(t.locks, key)
		}
		t.mu.Unlock()
	}
}

// Lock runs fn while holding the lock for key and returns fn's result.
// At most one fn per key is in flight system-wide; concurrent callers on
// the same key block until the holder releases. fn runs on the calling
// goroutine.
//
// The lock is released on every exit path, including a panic in fn; the
// panic then propagates to the caller. Lock is the only registry operation
// that can suspend its caller indefinitely, and no deadlock detection is
// performed: fn must not re-lock the same key or build lock cycles.
func (r *Registry) Lock(key any, fn func() (any, error)) (any, error) {
	if r.stopped.Load() {
		return nil, ErrRegistryStopped
	}
	start := time.Now()
	release := r.locks.acquire(key)
	defer release()
	r.metrics.RecordLockWait(context.Background(), r.name, time.Since(start))

	return fn()
}
