package journal

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists journal records to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore creates a new SQLite journal.
// The path should be a file path (e.g., "./events.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			registry TEXT NOT NULL,
			kind TEXT NOT NULL,
			key TEXT NOT NULL,
			partition TEXT NOT NULL,
			value TEXT NOT NULL,
			timestamp TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_events_registry
		ON events(registry)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Append implements Store.
func (s *SQLiteStore) Append(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`
		INSERT INTO events (registry, kind, key, partition, value, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.Registry, rec.Kind, rec.Key, rec.Partition, rec.Value,
		rec.Time.UTC().Format(time.RFC3339Nano))

	if err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

// List implements Store.
func (s *SQLiteStore) List(registry string, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	query := `
		SELECT kind, key, partition, value, timestamp
		FROM events
		WHERE registry = ?
		ORDER BY seq
	`
	args := []any{registry}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		rec := Record{Registry: registry}
		var timestamp string
		if err := rows.Scan(&rec.Kind, &rec.Key, &rec.Partition, &rec.Value, &timestamp); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Time, _ = time.Parse(time.RFC3339Nano, timestamp)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	return records, nil
}

// Purge implements Store.
func (s *SQLiteStore) Purge(registry string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec(`DELETE FROM events WHERE registry = ?`, registry); err != nil {
		return fmt.Errorf("purge records: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
