// Package logstore keeps the capped, newest-first logs of model calls and
// task changes.
package logstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/hpungsan/objective/internal/errors"
)

// DefaultCapacity is the number of entries retained when no capacity is configured.
const DefaultCapacity = 1000

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// table describes how one log kind maps onto its SQLite table.
type table[T any] struct {
	name    string
	columns []string
	values  func(T) []any
	scan    func(scanner) (T, error)
}

// Store is an append-only log capped at a fixed number of entries.
// Appends are serialized so the insert and the eviction of old entries
// never interleave with another writer on the same store.
type Store[T any] struct {
	db       *sql.DB
	t        table[T]
	capacity int

	mu sync.Mutex
}

func newStore[T any](db *sql.DB, t table[T], capacity int) *Store[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store[T]{db: db, t: t, capacity: capacity}
}

// Capacity returns the maximum number of retained entries.
func (s *Store[T]) Capacity() int {
	return s.capacity
}

// Append inserts entry at the head of the log, then evicts the oldest
// entries beyond capacity.
func (s *Store[T]) Append(ctx context.Context, entry T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStorage("append "+s.t.name, err)
	}
	defer tx.Rollback()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(s.t.columns)), ", ")
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.t.name, strings.Join(s.t.columns, ", "), placeholders)
	if _, err := tx.ExecContext(ctx, insert, s.t.values(entry)...); err != nil {
		return errors.NewStorage("append "+s.t.name, err)
	}

	evict := fmt.Sprintf(
		"DELETE FROM %[1]s WHERE seq NOT IN (SELECT seq FROM %[1]s ORDER BY seq DESC LIMIT ?)",
		s.t.name)
	if _, err := tx.ExecContext(ctx, evict, s.capacity); err != nil {
		return errors.NewStorage("append "+s.t.name, err)
	}

	if err := tx.Commit(); err != nil {
		return errors.NewStorage("append "+s.t.name, err)
	}
	return nil
}

// AppendBatch inserts entries in order within one transaction, so the last
// entry becomes the head of the log. Eviction runs once at the end.
func (s *Store[T]) AppendBatch(ctx context.Context, entries []T) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStorage("append "+s.t.name, err)
	}
	defer tx.Rollback()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(s.t.columns)), ", ")
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.t.name, strings.Join(s.t.columns, ", "), placeholders)
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return errors.NewStorage("append "+s.t.name, err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		if _, err := stmt.ExecContext(ctx, s.t.values(entry)...); err != nil {
			return errors.NewStorage("append "+s.t.name, err)
		}
	}

	evict := fmt.Sprintf(
		"DELETE FROM %[1]s WHERE seq NOT IN (SELECT seq FROM %[1]s ORDER BY seq DESC LIMIT ?)",
		s.t.name)
	if _, err := tx.ExecContext(ctx, evict, s.capacity); err != nil {
		return errors.NewStorage("append "+s.t.name, err)
	}

	if err := tx.Commit(); err != nil {
		return errors.NewStorage("append "+s.t.name, err)
	}
	return nil
}

// List returns up to limit entries, most recent first.
// A limit <= 0 returns every retained entry.
func (s *Store[T]) List(ctx context.Context, limit int) ([]T, error) {
	if limit <= 0 || limit > s.capacity {
		limit = s.capacity
	}

	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY seq DESC LIMIT ?",
		strings.Join(s.t.columns, ", "), s.t.name)
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, errors.NewStorage("list "+s.t.name, err)
	}
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		entry, err := s.t.scan(rows)
		if err != nil {
			return nil, errors.NewStorage("list "+s.t.name, err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorage("list "+s.t.name, err)
	}
	return out, nil
}

// Count returns the number of retained entries.
func (s *Store[T]) Count(ctx context.Context) (int, error) {
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", s.t.name)
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, errors.NewStorage("count "+s.t.name, err)
	}
	return n, nil
}

// Clear removes every entry.
func (s *Store[T]) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+s.t.name); err != nil {
		return errors.NewStorage("clear "+s.t.name, err)
	}
	return nil
}
