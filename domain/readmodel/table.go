package readmodel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/getdevflow/core-sub003/core/es"
	"github.com/getdevflow/core-sub003/ports/kv"
	"github.com/getdevflow/core-sub003/ports/sqldb"
)

// ErrNotFound is returned by read model finders.
var ErrNotFound = errors.New("read model not found")

// Table is one tenant scoped read model table keyed by an id column.
type Table struct {
	DB     sqldb.DB
	Name   string
	IDCol  string
	Tenant es.Tenant
	Log    *slog.Logger
}

func NewTable(db sqldb.DB, tenant es.Tenant, name, idCol string, log *slog.Logger) *Table {
	if log == nil {
		log = slog.Default()
	}
	return &Table{
		DB:     db,
		Name:   tenant.Table(name),
		IDCol:  idCol,
		Tenant: tenant,
		Log:    log.With(slog.String("table", tenant.Table(name))),
	}
}

// Insert adds a row. cols and args are in the same order.
func (t *Table) Insert(ctx context.Context, cols []string, args ...any) error {
	ph := make([]string, len(cols))
	for i, c := range cols {
		ph[i] = "?"
		if c == "meta" {
			ph[i] = t.DB.Dialect().JSON("?")
		}
	}
	q := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		t.Name, strings.Join(cols, ", "), strings.Join(ph, ", "),
	)
	if _, err := t.DB.Exec(ctx, q, args...); err != nil {
		return fmt.Errorf("insert into %s: %w", t.Name, err)
	}
	return nil
}

// Set updates columns of the row with id. set maps column to value; meta is
// written as JSON.
func (t *Table) Set(ctx context.Context, id es.ID, set ...Assign) error {
	if len(set) == 0 {
		return nil
	}
	parts := make([]string, len(set))
	args := make([]any, 0, len(set)+1)
	for i, a := range set {
		ph := "?"
		if a.Col == "meta" {
			ph = t.DB.Dialect().JSON("?")
		}
		parts[i] = a.Col + " = " + ph
		args = append(args, a.Value)
	}
	args = append(args, string(id))
	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", t.Name, strings.Join(parts, ", "), t.IDCol)
	n, err := t.DB.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update %s %s=%s: %w", t.Name, t.IDCol, id, err)
	}
	if n == 0 {
		return fmt.Errorf("update %s %s=%s: %w", t.Name, t.IDCol, id, ErrNotFound)
	}
	return nil
}

// Delete removes the row with id. A missing row is not an error.
func (t *Table) Delete(ctx context.Context, id es.ID) error {
	q := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", t.Name, t.IDCol)
	if _, err := t.DB.Exec(ctx, q, string(id)); err != nil {
		return fmt.Errorf("delete from %s %s=%s: %w", t.Name, t.IDCol, id, err)
	}
	return nil
}

// IDWhere returns the id of the row matching where, for index fallbacks.
func (t *Table) IDWhere(ctx context.Context, where string, args ...any) (es.ID, error) {
	var id string
	err := t.DB.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM %s WHERE %s", t.IDCol, t.Name, where), args...).Scan(&id)
	switch {
	case errors.Is(err, sqldb.ErrNoRows):
		return "", kv.ErrNotFound
	case err != nil:
		return "", fmt.Errorf("select %s: %w", t.Name, err)
	}
	return es.ID(id), nil
}

// Row selects cols of the row with id.
func (t *Table) Row(ctx context.Context, cols []string, id es.ID) sqldb.Row {
	sel := make([]string, len(cols))
	for i, c := range cols {
		sel[i] = t.Column(c)
	}
	return t.DB.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", strings.Join(sel, ", "), t.Name, t.IDCol),
		string(id),
	)
}

// Column selects a column for reading; JSON columns come back as text.
func (t *Table) Column(col string) string {
	if col == "meta" {
		return t.DB.Dialect().JSONText(col)
	}
	return col
}

// Assign is one column update.
type Assign struct {
	Col   string
	Value any
}

func Col(col string, value any) Assign { return Assign{Col: col, Value: value} }
