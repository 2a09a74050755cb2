package sqlstore

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/jacentio/storefront/record"
)

// translate maps driver errors onto record.Error.
func translate(op, table string, err error) error {
	if err == nil {
		return nil
	}
	var rerr *record.Error
	if errors.As(err, &rerr) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return record.NewError(record.Permanent, op, table, record.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return record.NewError(sqlStateKind(pgErr.Code), op, table, err)
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique constraint failed") {
		return record.NewError(record.Permanent, op, table, errors.Join(record.ErrDuplicateValue, err))
	}
	return record.Classify(op, table, err)
}

// sqlStateKind classifies a PostgreSQL SQLSTATE code.
func sqlStateKind(code string) record.Kind {
	switch code {
	case "42P01", "42703", "3F000": // undefined table, column, schema
		return record.SchemaMissing
	case "40001", "40P01": // serialization failure, deadlock
		return record.Transient
	}
	if len(code) < 2 {
		return record.Permanent
	}
	switch code[:2] {
	case "08", "53", "57":
		return record.Transient
	}
	return record.Permanent
}
