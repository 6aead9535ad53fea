package readmodel

import (
	"context"
	"errors"
	"fmt"

	"github.com/getdevflow/core-sub003/core/es"
	"github.com/getdevflow/core-sub003/ports/kv"
)

// Claims collects the unique values one batch of events takes. A value held
// by another aggregate, in the table or earlier in the batch, is an
// invariant violation of the claiming aggregate.
type Claims struct {
	table   *Table
	aggType string
	taken   map[string]es.ID
}

func (t *Table) Claims(aggType string) *Claims {
	return &Claims{table: t, aggType: aggType, taken: make(map[string]es.ID)}
}

// Take claims value of key for id. where selects the rows holding value.
func (c *Claims) Take(ctx context.Context, id es.ID, key, value, where string, args ...any) error {
	k := key + "\x00" + value
	if other, ok := c.taken[k]; ok && other != id {
		return c.violation(id, key, value)
	}
	c.taken[k] = id

	holder, err := c.table.IDWhere(ctx, where, args...)
	switch {
	case errors.Is(err, kv.ErrNotFound):
		return nil
	case err != nil:
		return err
	case holder != id:
		return c.violation(id, key, value)
	}
	return nil
}

func (c *Claims) violation(id es.ID, key, value string) error {
	return &es.InvariantViolation{
		AggregateType: c.aggType,
		AggregateID:   id,
		Rule:          fmt.Sprintf("%s %q is already taken", key, value),
	}
}
