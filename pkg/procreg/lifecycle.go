package procreg

import (
	"context"
	"sync"

	"github.com/randalmurphal/procreg/pkg/procreg/observability"
	"github.com/randalmurphal/procreg/pkg/procreg/proc"
)

// tracker owns the cleanup bookkeeping for registered processes. Each
// owner hashes to exactly one tracker shard, independent of which key
// partitions hold its entries, so watch bookkeeping for unrelated owners
// never contends.
type tracker struct {
	shards []trackerShard
}

type trackerShard struct {
	mu      sync.Mutex
	watched map[string]struct{}
}

func newTracker(n int) *tracker {
	t := &tracker{shards: make([]trackerShard, n)}
	for i := range t.shards {
		t.shards[i].watched = make(map[string]struct{})
	}
	return t
}

func (t *tracker) shard(ownerID string) *trackerShard {
	return &t.shards[Route(ownerID, len(t.shards))]
}

// claim records a watch for the owner. Returns false when a watch already
// exists, so each owner gets at most one watch goroutine per registry.
func (t *tracker) claim(ownerID string) bool {
	s := t.shard(ownerID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.watched[ownerID]; ok {
		return false
	}
	s.watched[ownerID] = struct{}{}
	return true
}

// forget drops the watch record. Safe to call repeatedly.
func (t *tracker) forget(ownerID string) {
	s := t.shard(ownerID)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watched, ownerID)
}

// ensureWatch subscribes to the owner's exit, once per owner per registry.
// The goroutine parks until the owner exits or the registry stops.
func (r *Registry) ensureWatch(owner proc.Process) {
	if !r.tracker.claim(owner.ID()) {
		return
	}
	go func() {
		select {
		case <-owner.Done():
			r.purgeOwner(owner)
		case <-r.stopCh:
		}
	}()
}

// purgeOwner removes every entry the owner holds across all key partitions
// and fires an unregister event for each. Idempotent: a second run for the
// same owner finds nothing to remove. Purging one owner never blocks
// registrations by other owners beyond ordinary partition locking.
func (r *Registry) purgeOwner(owner proc.Process) {
	r.tracker.forget(owner.ID())

	removed := 0
	for _, p := range r.parts {
		for _, rm := range p.purgeOwner(owner.ID()) {
			removed++
			r.notify(Event{
				Kind:         EventUnregister,
				Registry:     r.name,
				Key:          rm.key,
				PartitionRef: p.ref,
			})
		}
	}
	if removed > 0 {
		observability.LogCleanup(r.logger, owner.ID(), removed)
		r.metrics.RecordCleanup(context.Background(), r.name, removed)
	}
}
