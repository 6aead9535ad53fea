package es

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/getdevflow/core-sub003/core/ds"
)

// EventStore is the storage backend behind Store.
//
// Append persists all records in a single storage transaction. For every
// aggregate in the batch the backend compares the first record's playhead
// with the next playhead it holds (max+1, or 0 for an unknown aggregate) and
// returns a *ConflictError on mismatch. A failed Append leaves nothing
// visible.
//
// Load returns the records of one aggregate within site whose playhead is at
// least from, ascending by playhead.
type EventStore interface {
	Append(ctx context.Context, records []Record) error
	Load(ctx context.Context, site string, id ID, from Playhead) ([]Record, error)
}

// TransactionalStore is what repositories need from a store.
type TransactionalStore interface {
	Commit(ctx context.Context, events ...DomainEvent) (*Transaction, error)
	AggregateHistoryFor(ctx context.Context, id ID) (*EventStream, error)
}

// Transaction is the result of one commit.
type Transaction struct {
	ID     TransactionID
	Events []DomainEvent
}

func (t *Transaction) Empty() bool { return t == nil || len(t.Events) == 0 }

// AggregateIDs lists the aggregates touched, in order of first appearance.
func (t *Transaction) AggregateIDs() []ID {
	ids := ds.NewSet[ID]()
	for _, ev := range t.Events {
		ids.Add(ev.AggregateID())
	}
	return ids.Values()
}

// Stream returns the committed events of one aggregate.
func (t *Transaction) Stream(id ID) *EventStream {
	s := NewEventStream(id)
	for _, ev := range t.Events {
		if ev.AggregateID() == id {
			s.Events = append(s.Events, ev)
		}
	}
	return s
}

// Streams returns one stream per touched aggregate.
func (t *Transaction) Streams() []*EventStream {
	ids := t.AggregateIDs()
	out := make([]*EventStream, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.Stream(id))
	}
	return out
}

// Store is the transactional event store. It encodes domain events into
// records for its backend and decodes them back on read.
type Store struct {
	backend  EventStore
	registry *EventRegistry
	tenant   Tenant
	log      *slog.Logger
	metrics  ESMetrics
	newTxID  TransactionIDGenerator
}

func NewStore(backend EventStore, registry *EventRegistry, opts ...StoreOption) *Store {
	options := newStoreOpts(opts...)
	return &Store{
		backend:  backend,
		registry: registry,
		tenant:   options.tenant,
		metrics:  options.metrics,
		newTxID:  options.txIDGenerator,
		log: options.log.With(
			slog.String("store", fmt.Sprintf("%T", backend)),
			slog.String("site", options.tenant.Site),
		),
	}
}

func (s *Store) Tenant() Tenant            { return s.tenant }
func (s *Store) Registry() *EventRegistry { return s.registry }

// Commit appends events under a fresh transaction id. An empty call returns
// an empty transaction without touching storage.
func (s *Store) Commit(ctx context.Context, events ...DomainEvent) (*Transaction, error) {
	tx := &Transaction{ID: s.newTxID()}
	if len(events) == 0 {
		return tx, nil
	}
	if err := s.Append(ctx, tx.ID, events...); err != nil {
		return nil, err
	}
	tx.Events = append([]DomainEvent(nil), events...)
	return tx, nil
}

// Append persists events under txID as one storage transaction.
func (s *Store) Append(ctx context.Context, txID TransactionID, events ...DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	if err := validateBatch(events); err != nil {
		return err
	}

	records := make([]Record, 0, len(events))
	for _, ev := range events {
		rec, err := encodeRecord(ev, txID, s.tenant.Site)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
		}
		records = append(records, rec)
	}

	t := s.metrics.StoreAppendDuration(s.tenant.Site)
	err := s.backend.Append(ctx, records)
	t.ObserveDuration()
	if err != nil {
		if errors.Is(err, ErrConcurrencyConflict) {
			s.log.Debug("append conflict", slog.String("tx", txID.String()), slog.Any("error", err))
			return err
		}
		s.log.Error(
			"append failed",
			slog.String("tx", txID.String()),
			slog.Int("num_events", len(records)),
			slog.Any("error", err),
		)
		return fmt.Errorf("%w: append tx=%s: %w", ErrPersistence, txID, err)
	}

	for _, stream := range (&Transaction{Events: events}).Streams() {
		s.metrics.EventsAppended(stream.AggregateType(), stream.Len())
	}
	s.log.Debug("appended", slog.String("tx", txID.String()), slog.Int("num_events", len(records)))
	return nil
}

// AggregateHistoryFor returns the full stream of id; the stream is empty
// when nothing was ever recorded.
func (s *Store) AggregateHistoryFor(ctx context.Context, id ID) (*EventStream, error) {
	return s.LoadFromPlayhead(ctx, id, 0)
}

// LoadFromPlayhead returns the stream suffix starting at from, inclusive.
func (s *Store) LoadFromPlayhead(ctx context.Context, id ID, from Playhead) (*EventStream, error) {
	if id.IsZero() {
		return nil, errors.New("aggregate id is empty")
	}

	t := s.metrics.StoreLoadDuration(s.tenant.Site)
	records, err := s.backend.Load(ctx, s.tenant.Site, id, from)
	t.ObserveDuration()
	if err != nil {
		s.log.Error("load failed", slog.String("agg_id", id.String()), slog.Any("error", err))
		return nil, fmt.Errorf("%w: load agg_id=%s: %w", ErrPersistence, id, err)
	}

	stream := NewEventStream(id)
	next := from
	for _, rec := range records {
		if rec.AggregateID != id {
			err = corruptf("event_id=%s belongs to %s, loading %s", rec.EventID, rec.AggregateID, id)
		} else if rec.Playhead != next {
			err = corruptf("agg_id=%s expected playhead %d, got %d", id, next, rec.Playhead)
		}
		var ev DomainEvent
		if err == nil {
			ev, err = decodeRecord(s.registry, rec)
		}
		if err != nil {
			s.log.Error("corrupt stream", slog.String("agg_id", id.String()), slog.Any("error", err))
			return nil, err
		}
		stream.Events = append(stream.Events, ev)
		next++
	}

	s.log.Debug(
		"loaded",
		slog.String("agg_id", id.String()),
		from.SlogAttrWithKey("from"),
		slog.Int("num_events", stream.Len()),
	)
	return stream, nil
}

// validateBatch requires every event to be well formed and the events of
// each aggregate to have consecutive playheads.
func validateBatch(events []DomainEvent) error {
	last := map[ID]DomainEvent{}
	for _, ev := range events {
		if err := ev.validate(); err != nil {
			return err
		}
		prev, seen := last[ev.AggregateID()]
		if seen {
			if ev.Playhead() != prev.Playhead().Next() {
				return fmt.Errorf(
					"%w: agg_id=%s playhead %d follows %d",
					ErrInvalidEvent, ev.AggregateID(), ev.Playhead(), prev.Playhead(),
				)
			}
			if ev.AggregateType() != prev.AggregateType() {
				return fmt.Errorf("%w: agg_id=%s mixes aggregate types", ErrInvalidEvent, ev.AggregateID())
			}
		}
		last[ev.AggregateID()] = ev
	}
	return nil
}

var _ TransactionalStore = (*Store)(nil)
