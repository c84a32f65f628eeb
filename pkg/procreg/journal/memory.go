package journal

import "sync"

// MemoryStore is an in-memory journal for testing.
// Records are lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string][]Record // registry -> records, append order
	closed bool
}

// NewMemoryStore creates a new in-memory journal.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]Record)}
}

// Append implements Store.
func (m *MemoryStore) Append(rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	m.data[rec.Registry] = append(m.data[rec.Registry], rec)
	return nil
}

// List implements Store.
func (m *MemoryStore) List(registry string, limit int) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	records := m.data[registry]
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}

	// Return a copy to prevent modification
	out := make([]Record, len(records))
	copy(out, records)
	return out, nil
}

// Purge implements Store.
func (m *MemoryStore) Purge(registry string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	delete(m.data, registry)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.data = nil
	return nil
}

// Len returns the total number of records across all registries.
// Useful for testing.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, records := range m.data {
		count += len(records)
	}
	return count
}
