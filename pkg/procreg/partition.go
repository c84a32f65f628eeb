package procreg

import (
	"sync"

	"github.com/google/uuid"

	"github.com/randalmurphal/procreg/pkg/procreg/match"
	"github.com/randalmurphal/procreg/pkg/procreg/proc"
)

// Entry is one live registration as seen by readers.
type Entry struct {
	// Owner is the process that registered the entry.
	Owner proc.Process
	// Value is the payload stored with the key.
	Value any
}

// slot is the stored form of an entry.
type slot struct {
	ref   uuid.UUID
	owner proc.Process
	value any
}

// removal records one entry removed during an owner purge.
type removal struct {
	key  any
	slot slot
}

// partition is an independently-serialized shard of the registry. Writes
// take the exclusive lock; reads copy a snapshot under the shared lock so
// they never block behind a writer for longer than the copy.
type partition struct {
	index int
	ref   uuid.UUID

	mu      sync.RWMutex
	entries map[any][]slot
	byOwner map[string]map[any]int // owner ID -> key -> entry count
}

func newPartition(index int) *partition {
	return &partition{
		index:   index,
		ref:     uuid.New(),
		entries: make(map[any][]slot),
		byOwner: make(map[string]map[any]int),
	}
}

// register inserts an entry. In unique mode any live entry for the key,
// regardless of owner, rejects the insert; duplicate mode always appends.
func (p *partition) register(mode Keys, key any, owner proc.Process, value any) (uuid.UUID, *AlreadyRegisteredError) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if mode == KeysUnique {
		if existing := p.entries[key]; len(existing) > 0 {
			return uuid.Nil, &AlreadyRegisteredError{Key: key, Owner: existing[0].owner}
		}
	}

	s := slot{ref: uuid.New(), owner: owner, value: value}
	p.entries[key] = append(p.entries[key], s)
	p.indexOwner(owner.ID(), key, 1)
	return s.ref, nil
}

// unregister removes every entry matching (owner, key) and returns them.
func (p *partition) unregister(key any, ownerID string) []slot {
	p.mu.Lock()
	defer p.mu.Unlock()

	slots := p.entries[key]
	if len(slots) == 0 {
		return nil
	}

	var removed, kept []slot
	for _, s := range slots {
		if s.owner.ID() == ownerID {
			removed = append(removed, s)
		} else {
			kept = append(kept, s)
		}
	}
	if len(removed) == 0 {
		return nil
	}
	p.setEntries(key, kept)
	p.indexOwner(ownerID, key, -len(removed))
	return removed
}

// purgeOwner removes every entry the owner holds in this partition.
// Idempotent: purging an absent owner removes nothing.
func (p *partition) purgeOwner(ownerID string) []removal {
	p.mu.Lock()
	defer p.mu.Unlock()

	keys, ok := p.byOwner[ownerID]
	if !ok {
		return nil
	}

	var removed []removal
	for key := range keys {
		var kept []slot
		for _, s := range p.entries[key] {
			if s.owner.ID() == ownerID {
				removed = append(removed, removal{key: key, slot: s})
			} else {
				kept = append(kept, s)
			}
		}
		p.setEntries(key, kept)
	}
	delete(p.byOwner, ownerID)
	return removed
}

// lookup returns a snapshot of the entries under key. The snapshot may
// include entries whose owner exited but whose purge has not run yet.
func (p *partition) lookup(key any) []Entry {
	p.mu.RLock()
	defer p.mu.RUnlock()

	slots := p.entries[key]
	if len(slots) == 0 {
		return nil
	}
	out := make([]Entry, len(slots))
	for i, s := range slots {
		out[i] = Entry{Owner: s.owner, Value: s.value}
	}
	return out
}

// keysOf returns the keys the owner holds in this partition, one occurrence
// per registered entry.
func (p *partition) keysOf(ownerID string) []any {
	p.mu.RLock()
	defer p.mu.RUnlock()

	keys := p.byOwner[ownerID]
	if len(keys) == 0 {
		return nil
	}
	out := make([]any, 0, len(keys))
	for key, count := range keys {
		for i := 0; i < count; i++ {
			out = append(out, key)
		}
	}
	return out
}

// valuesOf returns the values the owner stored under key.
func (p *partition) valuesOf(key any, ownerID string) []any {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []any
	for _, s := range p.entries[key] {
		if s.owner.ID() == ownerID {
			out = append(out, s.value)
		}
	}
	return out
}

// updateValue replaces the value stored under (owner, key) in place.
// Only meaningful in unique mode, where a key has at most one slot.
func (p *partition) updateValue(key any, ownerID string, f func(any) any) (newV, oldV any, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	slots := p.entries[key]
	for i, s := range slots {
		if s.owner.ID() == ownerID {
			oldV = s.value
			newV = f(oldV)
			slots[i].value = newV
			return newV, oldV, nil
		}
	}
	return nil, nil, ErrNotFound
}

// matchKey evaluates a compiled pattern program against the entries under
// key and returns the matches.
func (p *partition) matchKey(key any, prog *match.Program) []Entry {
	p.mu.RLock()
	slots := make([]slot, len(p.entries[key]))
	copy(slots, p.entries[key])
	p.mu.RUnlock()

	var out []Entry
	for _, s := range slots {
		if _, ok := prog.Eval(s.value); ok {
			out = append(out, Entry{Owner: s.owner, Value: s.value})
		}
	}
	return out
}

// each calls fn for every (key, slot) in a snapshot of the partition, so
// fn runs without holding the partition lock.
func (p *partition) each(fn func(key any, s slot)) {
	p.mu.RLock()
	snapshot := make([]removal, 0, len(p.entries))
	for key, slots := range p.entries {
		for _, s := range slots {
			snapshot = append(snapshot, removal{key: key, slot: s})
		}
	}
	p.mu.RUnlock()

	for _, item := range snapshot {
		fn(item.key, item.slot)
	}
}

// count returns the number of live entries in this partition.
func (p *partition) count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	n := 0
	for _, slots := range p.entries {
		n += len(slots)
	}
	return n
}

// countOwned returns the number of entries the owner holds here.
func (p *partition) countOwned(ownerID string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	n := 0
	for _, count := range p.byOwner[ownerID] {
		n += count
	}
	return n
}

// setEntries stores or clears the slot list for key. Callers hold p.mu.
func (p *partition) setEntries(key any, slots []slot) {
	if len(slots) == 0 {
		delete(p.entries, key)
		return
	}
	p.entries[key] = slots
}

// indexOwner adjusts the owner index by delta entries for key.
// Callers hold p.mu.
func (p *partition) indexOwner(ownerID string, key any, delta int) {
	keys := p.byOwner[ownerID]
	if keys == nil {
		if delta <= 0 {
			return
		}
		keys = make(map[any]int)
		p.byOwner[ownerID] = keys
	}
	keys[key] += delta
	if keys[key] <= 0 {
		delete(keys, key)
	}
	if len(keys) == 0 {
		delete(p.byOwner, ownerID)
	}
}
