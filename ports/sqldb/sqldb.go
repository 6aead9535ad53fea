// Package sqldb is the SQL execution port shared by the SQLite and
// PostgreSQL adapters. Queries use "?" placeholders; adapters rebind them
// for their driver.
package sqldb

import (
	"context"
	"errors"
)

// ErrNoRows is returned by Row.Scan when the query matched nothing.
var ErrNoRows = errors.New("no rows in result set")

type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

type Row interface {
	Scan(dest ...any) error
}

// Execer runs statements. It is implemented by both DB and Tx.
type Execer interface {
	// Exec returns the number of affected rows.
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) Row
}

// Tx is an Execer bound to one open transaction.
type Tx interface {
	Execer
}

// DB is a connection pool.
type DB interface {
	Execer
	// Transactional runs fn inside one transaction. The transaction commits
	// when fn returns nil and rolls back otherwise.
	Transactional(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Dialect() Dialect
	// IsUniqueViolation reports whether err is a unique or primary key
	// constraint failure.
	IsUniqueViolation(err error) bool
	Close() error
}

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// JSON wraps a placeholder for a JSON column value.
func (d Dialect) JSON(placeholder string) string {
	if d == DialectPostgres {
		return placeholder + "::jsonb"
	}
	return placeholder
}

// JSONText selects a JSON column as text.
func (d Dialect) JSONText(column string) string {
	if d == DialectPostgres {
		return column + "::text"
	}
	return column
}

// Collect scans every row with scan and closes rows.
func Collect[T any](rows Rows, scan func(Rows) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
