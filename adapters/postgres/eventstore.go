package postgres

import (
	"log/slog"

	"github.com/getdevflow/core-sub003/ports/sqldb"
)

// NewEventStore returns the event store backend on db.
func NewEventStore(db *DB, log *slog.Logger) *sqldb.EventStore {
	return sqldb.NewEventStore(db, log)
}
