package procreg

import "sync"

// MetaStore is a flat concurrent key-value map attached to a registry.
// It has no relation to partitioning or process lifetime: entries survive
// every owner exit and are removed only by DeleteMeta or Stop.
type MetaStore struct {
	mu   sync.RWMutex
	data map[any]any
}

func newMetaStore(seed []MetaEntry) *MetaStore {
	m := &MetaStore{data: make(map[any]any, len(seed))}
	for _, e := range seed {
		m.data[e.Key] = e.Value
	}
	return m
}

// Put stores or replaces a value.
func (m *MetaStore) Put(key, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

// Get returns the value for key and whether it exists.
func (m *MetaStore) Get(key any) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

// Delete removes a key.
func (m *MetaStore) Delete(key any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
}

// Len returns the number of meta entries.
func (m *MetaStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
