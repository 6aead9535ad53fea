package sqldb

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/getdevflow/core-sub003/core/es"
)

// EventTable is the event store table. It is shared by all tenants; rows are
// separated by the site column.
const EventTable = "event_store"

// EventStore is the es.EventStore backend on top of a DB. Append runs the
// per-aggregate playhead check and the inserts in one transaction; the
// UNIQUE(site, aggregate_id, aggregate_playhead) constraint catches writers
// that pass the check concurrently.
type EventStore struct {
	db  DB
	log *slog.Logger
}

func NewEventStore(db DB, log *slog.Logger) *EventStore {
	if log == nil {
		log = slog.Default()
	}
	return &EventStore{
		db:  db,
		log: log.With(slog.String("store", "sql"), slog.String("dialect", string(db.Dialect()))),
	}
}

func (s *EventStore) Append(ctx context.Context, records []es.Record) error {
	if len(records) == 0 {
		return nil
	}

	d := s.db.Dialect()
	insert := fmt.Sprintf(
		`INSERT INTO %s (
		   event_id,
		   transaction_id,
		   event_type,
		   event_classname,
		   site,
		   payload,
		   metadata,
		   aggregate_id,
		   aggregate_type,
		   aggregate_playhead,
		   recorded_at
		 ) VALUES (?, ?, ?, ?, ?, %s, %s, ?, ?, ?, ?)`,
		EventTable, d.JSON("?"), d.JSON("?"),
	)

	return s.db.Transactional(ctx, func(ctx context.Context, tx Tx) error {
		for _, g := range es.GroupRecords(records) {
			site := g.Records[0].Site

			var next int64
			if err := tx.QueryRow(
				ctx,
				"SELECT COALESCE(MAX(aggregate_playhead) + 1, 0) FROM "+EventTable+" WHERE site = ? AND aggregate_id = ?",
				site, string(g.AggregateID),
			).Scan(&next); err != nil {
				return fmt.Errorf("read playhead agg_id=%s: %w", g.AggregateID, err)
			}
			if err := es.ExpectNext(g, es.Playhead(next)); err != nil {
				return err
			}

			for _, r := range g.Records {
				_, err := tx.Exec(ctx, insert,
					r.EventID,
					r.TransactionID.String(),
					r.EventType,
					r.EventClass,
					r.Site,
					string(r.Payload),
					string(r.Metadata),
					string(r.AggregateID),
					r.AggregateType,
					int64(r.Playhead),
					r.RecordedAt,
				)
				if err != nil {
					if s.db.IsUniqueViolation(err) {
						return fmt.Errorf(
							"%w: agg_id=%s playhead %d written concurrently",
							es.ErrConcurrencyConflict, r.AggregateID, r.Playhead,
						)
					}
					return fmt.Errorf("insert event_id=%s: %w", r.EventID, err)
				}
			}
		}
		s.log.Debug("append", slog.Int("num_events", len(records)))
		return nil
	})
}

func (s *EventStore) Load(ctx context.Context, site string, id es.ID, from es.Playhead) ([]es.Record, error) {
	d := s.db.Dialect()
	rows, err := s.db.Query(ctx, fmt.Sprintf(
		`SELECT
		   event_id,
		   transaction_id,
		   event_type,
		   event_classname,
		   site,
		   %s,
		   %s,
		   aggregate_id,
		   aggregate_type,
		   aggregate_playhead,
		   recorded_at
		 FROM %s
		 WHERE site = ? AND aggregate_id = ? AND aggregate_playhead >= ?
		 ORDER BY aggregate_playhead ASC`,
		d.JSONText("payload"), d.JSONText("metadata"), EventTable,
	), site, string(id), int64(from))
	if err != nil {
		return nil, fmt.Errorf("query events agg_id=%s: %w", id, err)
	}
	return Collect(rows, scanRecord)
}

func scanRecord(rows Rows) (es.Record, error) {
	var (
		r                 es.Record
		tx, aggID         string
		payload, metadata string
		playhead          int64
	)
	if err := rows.Scan(
		&r.EventID,
		&tx,
		&r.EventType,
		&r.EventClass,
		&r.Site,
		&payload,
		&metadata,
		&aggID,
		&r.AggregateType,
		&playhead,
		&r.RecordedAt,
	); err != nil {
		return es.Record{}, fmt.Errorf("scan event: %w", err)
	}
	if playhead < 0 {
		return es.Record{}, fmt.Errorf("event_id=%s has negative playhead %d", r.EventID, playhead)
	}
	r.TransactionID = es.TransactionID(tx)
	r.AggregateID = es.ID(aggID)
	r.Payload = json.RawMessage(payload)
	r.Metadata = json.RawMessage(metadata)
	r.Playhead = es.Playhead(playhead)
	return r, nil
}

var _ es.EventStore = (*EventStore)(nil)
