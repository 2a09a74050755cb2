// Package memstore provides an in-process record.Client.
//
// Collections must be created before use; operations on any other
// collection fail with a SchemaMissing error, the same way a hosted store
// reports an absent table.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jacentio/storefront/record"
)

// Store is a concurrency-safe in-memory record store.
// Records are returned in insertion order.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*table

	// Now stamps created_at and updated_at. Defaults to time.Now.
	Now func() time.Time

	// NewID assigns ids to inserted records that carry none. Defaults to uuid.NewString.
	NewID func() string
}

type table struct {
	rows []record.Record
	byID map[string]int
}

// New creates a store with the given collections.
func New(collections ...string) *Store {
	s := &Store{
		tables: make(map[string]*table),
		Now:    time.Now,
		NewID:  uuid.NewString,
	}
	for _, c := range collections {
		s.CreateCollection(c)
	}
	return s
}

// CreateCollection adds an empty collection. Existing collections are left untouched.
func (s *Store) CreateCollection(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[name]; !ok {
		s.tables[name] = &table{byID: make(map[string]int)}
	}
}

// DropCollection removes a collection and all of its records.
func (s *Store) DropCollection(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tables, name)
}

// Len returns the number of records in a collection.
func (s *Store) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[collection]
	if !ok {
		return 0
	}
	return len(t.rows)
}

// Insert implements record.Client.
func (s *Store) Insert(ctx context.Context, collection string, rec record.Record) (record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, record.NewError(record.Transient, "insert", collection, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table("insert", collection)
	if err != nil {
		return nil, err
	}

	row := rec.Clone()
	if row == nil {
		row = record.Record{}
	}
	id := row.ID()
	if id == "" {
		id = s.NewID()
		row["id"] = id
	}
	if _, exists := t.byID[id]; exists {
		return nil, record.NewError(record.Permanent, "insert", collection, record.ErrAlreadyExists)
	}

	now := s.Now().UTC().Format(time.RFC3339Nano)
	row["created_at"] = now
	row["updated_at"] = now

	t.byID[id] = len(t.rows)
	t.rows = append(t.rows, row)
	return row.Clone(), nil
}

// Update implements record.Client.
func (s *Store) Update(ctx context.Context, collection, id string, partial record.Record) (record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, record.NewError(record.Transient, "update", collection, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table("update", collection)
	if err != nil {
		return nil, err
	}
	i, ok := t.byID[id]
	if !ok {
		return nil, record.NewError(record.Permanent, "update", collection, record.ErrNotFound)
	}

	row := t.rows[i].Clone()
	for k, v := range partial.Clone() {
		if k == "id" || k == "created_at" {
			continue
		}
		row[k] = v
	}
	row["updated_at"] = s.Now().UTC().Format(time.RFC3339Nano)
	t.rows[i] = row
	return row.Clone(), nil
}

// Delete implements record.Client.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return record.NewError(record.Transient, "delete", collection, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table("delete", collection)
	if err != nil {
		return err
	}
	i, ok := t.byID[id]
	if !ok {
		return nil
	}
	t.rows = append(t.rows[:i:i], t.rows[i+1:]...)
	t.reindex()
	return nil
}

// Upsert implements record.Client.
func (s *Store) Upsert(ctx context.Context, collection string, rec record.Record, conflict ...string) (record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, record.NewError(record.Transient, "upsert", collection, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table("upsert", collection)
	if err != nil {
		return nil, err
	}
	if len(conflict) == 0 {
		conflict = []string{"id"}
	}

	filters := make([]record.Filter, 0, len(conflict))
	for _, f := range conflict {
		v, ok := rec[f]
		if !ok {
			return nil, record.NewError(record.Permanent, "upsert", collection,
				fmt.Errorf("conflict field %q missing from record", f))
		}
		filters = append(filters, record.Eq(f, v))
	}

	now := s.Now().UTC().Format(time.RFC3339Nano)
	row := rec.Clone()
	for i, existing := range t.rows {
		if !existing.Matches(filters...) {
			continue
		}
		row["id"] = existing.ID()
		row["created_at"] = existing["created_at"]
		row["updated_at"] = now
		t.rows[i] = row
		return row.Clone(), nil
	}

	id := row.ID()
	if id == "" {
		id = s.NewID()
		row["id"] = id
	}
	if _, exists := t.byID[id]; exists {
		return nil, record.NewError(record.Permanent, "upsert", collection, record.ErrDuplicateValue)
	}
	row["created_at"] = now
	row["updated_at"] = now
	t.byID[id] = len(t.rows)
	t.rows = append(t.rows, row)
	return row.Clone(), nil
}

// SelectWhere implements record.Client.
func (s *Store) SelectWhere(ctx context.Context, collection string, filters ...record.Filter) ([]record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, record.NewError(record.Transient, "select", collection, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.table("select", collection)
	if err != nil {
		return nil, err
	}
	var out []record.Record
	for _, row := range t.rows {
		if row.Matches(filters...) {
			out = append(out, row.Clone())
		}
	}
	return out, nil
}

// table must be called with s.mu held.
func (s *Store) table(op, collection string) (*table, error) {
	t, ok := s.tables[collection]
	if !ok {
		return nil, record.NewError(record.SchemaMissing, op, collection,
			fmt.Errorf("relation %q does not exist: %w", collection, record.ErrCollectionMissing))
	}
	return t, nil
}

func (t *table) reindex() {
	t.byID = make(map[string]int, len(t.rows))
	for i, row := range t.rows {
		t.byID[row.ID()] = i
	}
}
