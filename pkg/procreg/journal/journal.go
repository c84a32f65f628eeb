// Package journal provides an audit journal of registry register and
// unregister events, with in-memory and SQLite backends.
//
// A journal records history for debugging and audit; it is not a
// persistence layer and is never replayed into a registry.
package journal

import (
	"errors"
	"time"
)

// Record is one journaled registry event. Keys and values are stored in
// formatted form: the journal is an audit trail, not a typed store.
type Record struct {
	Registry  string
	Kind      string // "register" or "unregister"
	Key       string
	Partition string
	Value     string // empty for unregister events
	Time      time.Time
}

// Store persists journal records.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append adds a record. Records are retained in append order.
	Append(rec Record) error

	// List returns up to limit records for a registry, oldest first.
	// limit <= 0 means no limit. Returns an empty slice (not an error)
	// when the registry has no records.
	List(registry string, limit int) ([]Record, error)

	// Purge removes all records for a registry.
	// Returns nil if the registry has no records.
	Purge(registry string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Sentinel errors for journal operations.
var (
	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("journal store closed")
)
