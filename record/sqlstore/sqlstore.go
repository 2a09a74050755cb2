// Package sqlstore provides a relational record.Client on gorm.
//
// Collections are tables with at least id, created_at and updated_at text
// columns. Rows are read and written as maps, so the store needs no model
// structs. Nested values such as business hours or option lists are stored
// as JSON text; columns named as nested when the store is created are decoded
// on read and every other column comes back as stored.
package sqlstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jacentio/storefront/record"
)

// Store implements record.Client over a gorm connection.
type Store struct {
	db     *gorm.DB
	nested map[string]bool

	now   func() time.Time
	newID func() string
}

// Open connects to PostgreSQL. nested names the columns holding JSON lists
// or objects.
func Open(dsn string, nested ...string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}
	return New(db, nested...), nil
}

// New wraps an existing gorm connection.
func New(db *gorm.DB, nested ...string) *Store {
	cols := make(map[string]bool, len(nested))
	for _, c := range nested {
		cols[c] = true
	}
	return &Store{db: db, nested: cols, now: time.Now, newID: uuid.NewString}
}

var _ record.Client = (*Store)(nil)

// Insert writes a new row, assigning an id when none is given.
func (s *Store) Insert(ctx context.Context, table string, rec record.Record) (record.Record, error) {
	row, err := encodeRow(rec)
	if err != nil {
		return nil, record.NewError(record.Permanent, "insert", table, err)
	}
	if id := rec.ID(); id == "" {
		row["id"] = s.newID()
	}
	now := s.now().UTC().Format(time.RFC3339Nano)
	row["created_at"] = now
	row["updated_at"] = now

	if err := s.db.WithContext(ctx).Table(table).Create(row).Error; err != nil {
		return nil, translate("insert", table, err)
	}
	return s.decodeRow(row), nil
}

// Update applies partial to the row with id and returns the stored row.
func (s *Store) Update(ctx context.Context, table, id string, partial record.Record) (record.Record, error) {
	row, err := encodeRow(partial.Without("id", "created_at"))
	if err != nil {
		return nil, record.NewError(record.Permanent, "update", table, err)
	}
	row["updated_at"] = s.now().UTC().Format(time.RFC3339Nano)

	db := s.db.WithContext(ctx)
	res := db.Table(table).Where("id = ?", id).Updates(row)
	if res.Error != nil {
		return nil, translate("update", table, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, record.NewError(record.Permanent, "update", table, record.ErrNotFound)
	}
	return s.take(db, "update", table, id)
}

// Delete removes the row with id. Deleting a missing row is not an error.
func (s *Store) Delete(ctx context.Context, table, id string) error {
	db := s.db.WithContext(ctx)
	sql := "DELETE FROM " + db.Statement.Quote(table) + " WHERE id = ?"
	if err := db.Exec(sql, id).Error; err != nil {
		return translate("delete", table, err)
	}
	return nil
}

// Upsert replaces the row sharing rec's conflict fields, or inserts rec.
// The lookup and write run in one transaction.
func (s *Store) Upsert(ctx context.Context, table string, rec record.Record, conflict ...string) (record.Record, error) {
	if len(conflict) == 0 {
		conflict = []string{"id"}
	}
	for _, f := range conflict {
		if rec.String(f) == "" {
			return nil, record.NewError(record.Permanent, "upsert", table,
				fmt.Errorf("conflict field %q must be set", f))
		}
	}

	var out record.Record
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Table(table)
		for _, f := range conflict {
			q = q.Where(tx.Statement.Quote(f)+" = ?", rec[f])
		}
		var found []map[string]interface{}
		if err := q.Limit(1).Find(&found).Error; err != nil {
			return err
		}

		row, err := encodeRow(rec.Without("id", "created_at"))
		if err != nil {
			return err
		}
		now := s.now().UTC().Format(time.RFC3339Nano)
		row["updated_at"] = now

		if len(found) == 1 {
			id := fmt.Sprint(found[0]["id"])
			if err := tx.Table(table).Where("id = ?", id).Updates(row).Error; err != nil {
				return err
			}
			out, err = s.take(tx, "upsert", table, id)
			return err
		}

		row["id"] = rec.ID()
		if row["id"] == "" {
			row["id"] = s.newID()
		}
		row["created_at"] = now
		if err := tx.Table(table).Create(row).Error; err != nil {
			return err
		}
		out = s.decodeRow(row)
		return nil
	})
	if err != nil {
		return nil, translate("upsert", table, err)
	}
	return out, nil
}

// SelectWhere returns rows matching every filter, oldest first.
func (s *Store) SelectWhere(ctx context.Context, table string, filters ...record.Filter) ([]record.Record, error) {
	db := s.db.WithContext(ctx)
	q := db.Table(table)
	for _, f := range filters {
		q = q.Where(db.Statement.Quote(f.Field)+" = ?", f.Value)
	}
	var rows []map[string]interface{}
	if err := q.Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, translate("select", table, err)
	}
	out := make([]record.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.decodeRow(row))
	}
	return out, nil
}

func (s *Store) take(db *gorm.DB, op, table, id string) (record.Record, error) {
	row := map[string]interface{}{}
	if err := db.Table(table).Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, record.NewError(record.Permanent, op, table, record.ErrNotFound)
		}
		return nil, translate(op, table, err)
	}
	return s.decodeRow(row), nil
}

// encodeRow converts a record into column values. Slices and maps become
// JSON text and times become RFC 3339 strings.
func encodeRow(rec record.Record) (map[string]interface{}, error) {
	row := make(map[string]interface{}, len(rec)+3)
	for k, v := range rec {
		switch tv := v.(type) {
		case nil, string, bool, int, int32, int64, float32, float64:
			row[k] = tv
		case time.Time:
			row[k] = tv.UTC().Format(time.RFC3339Nano)
		default:
			b, err := json.Marshal(tv)
			if err != nil {
				return nil, fmt.Errorf("encode %s: %w", k, err)
			}
			row[k] = string(b)
		}
	}
	return row, nil
}

// decodeRow converts column values back into a record. Text in nested
// columns is decoded as JSON; everything else is kept as returned by the
// driver.
func (s *Store) decodeRow(row map[string]interface{}) record.Record {
	rec := make(record.Record, len(row))
	for k, v := range row {
		switch tv := v.(type) {
		case []byte:
			rec[k] = s.decodeText(k, string(tv))
		case string:
			rec[k] = s.decodeText(k, tv)
		case time.Time:
			rec[k] = tv.UTC().Format(time.RFC3339Nano)
		default:
			rec[k] = tv
		}
	}
	return rec
}

func (s *Store) decodeText(column, text string) any {
	if !s.nested[column] {
		return text
	}
	t := strings.TrimSpace(text)
	if len(t) < 2 || (t[0] != '[' && t[0] != '{') {
		return text
	}
	var v any
	if err := json.Unmarshal([]byte(t), &v); err != nil {
		return text
	}
	return v
}
