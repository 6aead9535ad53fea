package es

import (
	"errors"
	"fmt"
	"time"

	"github.com/getdevflow/core-sub003/core/es/assert"
)

// State is the lifecycle stage of an aggregate instance.
type State uint8

const (
	StateNew State = iota
	StateCreated
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateCreated:
		return "created"
	case StateDeleted:
		return "deleted"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Aggregate is the contract between event-sourced domain objects and the
// repository. Implementations embed BaseAggregate and provide AggregateType
// and Apply.
//
// Apply folds one event into the aggregate's fields. It is called for live
// events by RecordEvent and for historical events by Reconstitute, and must not
// record anything itself. A type switch over the family's events is the
// expected shape; unknown events return an error.
type Aggregate interface {
	AggregateType() string
	Apply(ev Event) error

	AggregateID() ID
	Playhead() Playhead
	State() State
	Uncommitted() []DomainEvent
	HasRecordedEvents() bool
	ClearUncommitted()

	base() *BaseAggregate
}

// BaseAggregate tracks identity, playhead and the uncommitted buffer.
type BaseAggregate struct {
	id          ID
	playhead    Playhead
	state       State
	uncommitted []DomainEvent
}

func (b *BaseAggregate) AggregateID() ID         { return b.id }
func (b *BaseAggregate) Playhead() Playhead      { return b.playhead }
func (b *BaseAggregate) State() State            { return b.state }
func (b *BaseAggregate) HasRecordedEvents() bool { return len(b.uncommitted) > 0 }
func (b *BaseAggregate) ClearUncommitted()       { b.uncommitted = nil }
func (b *BaseAggregate) base() *BaseAggregate    { return b }

// Uncommitted returns a copy of the recorded but not yet committed events in
// recording order.
func (b *BaseAggregate) Uncommitted() []DomainEvent {
	out := make([]DomainEvent, len(b.uncommitted))
	copy(out, b.uncommitted)
	return out
}

func (b *BaseAggregate) advance(ev Event) {
	b.playhead++
	if d, ok := ev.(DeletionEvent); ok && d.IsDeletion() {
		b.state = StateDeleted
	} else if b.state == StateNew {
		b.state = StateCreated
	}
}

// === Helpers ===

// Create assigns id to a new aggregate and records its creation event.
func Create(agg Aggregate, id ID, created Event) error {
	b := agg.base()
	if b.state != StateNew || b.playhead != 0 {
		return violation(agg, "aggregate already created")
	}
	if id.IsZero() {
		return violation(agg, "id must not be empty")
	}
	b.id = id
	if err := RecordEvent(agg, created); err != nil {
		b.id = ""
		return err
	}
	return nil
}

// RecordEvent constructs the domain event for ev at the aggregate's playhead,
// folds it into state and appends it to the uncommitted buffer. When Apply
// fails nothing changes. A deleted aggregate accepts no further events.
func RecordEvent(agg Aggregate, ev Event) error {
	b := agg.base()
	if b.id.IsZero() {
		return fmt.Errorf("%w: record %T on aggregate without id", ErrInvalidEvent, ev)
	}
	if b.state == StateDeleted {
		return violation(agg, "aggregate is deleted")
	}
	if v, ok := ev.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: %T: %w", ErrInvalidEvent, ev, err)
		}
	}

	de := NewDomainEvent(agg.AggregateType(), b.id, b.playhead, ev)
	if err := agg.Apply(ev); err != nil {
		return fmt.Errorf("apply %s: %w", ev.EventType(), err)
	}
	b.advance(ev)
	b.uncommitted = append(b.uncommitted, de)
	return nil
}

// Change is the shape of every change method: check the conditions, do
// nothing when next equals current, otherwise record newEvent(next). Changes
// on a deleted aggregate are rejected even when next equals current.
func Change[V comparable](agg Aggregate, current, next V, newEvent func(V) Event, conds ...assert.Cond) error {
	if agg.State() == StateDeleted {
		return violation(agg, "aggregate is deleted")
	}
	if err := Check(agg, conds...); err != nil {
		return err
	}
	if current == next {
		return nil
	}
	return RecordEvent(agg, newEvent(next))
}

// Check evaluates conds in order and converts the first failure into an
// InvariantViolation.
func Check(agg Aggregate, conds ...assert.Cond) error {
	if len(conds) == 0 {
		return nil
	}
	err := assert.All(conds...).Check()
	if err == nil {
		return nil
	}
	var f *assert.Failure
	if errors.As(err, &f) {
		return violation(agg, f.Rule)
	}
	return violation(agg, err.Error())
}

// GuardDeletion rejects deleting agg under a different id.
func GuardDeletion(agg Aggregate, id ID) error {
	if agg.AggregateID() != id {
		return violation(agg, fmt.Sprintf("cannot delete with id %s", id))
	}
	return nil
}

// Delete records ev after GuardDeletion passes. Deleting a deleted aggregate
// is a no-op.
func Delete(agg Aggregate, id ID, ev DeletionEvent) error {
	if err := GuardDeletion(agg, id); err != nil {
		return err
	}
	if agg.State() == StateDeleted {
		return nil
	}
	return RecordEvent(agg, ev)
}

// Reconstitute folds stream into a fresh aggregate. The uncommitted buffer
// stays empty.
func Reconstitute(agg Aggregate, stream *EventStream) error {
	b := agg.base()
	if b.state != StateNew || b.playhead != 0 || len(b.uncommitted) != 0 {
		return errors.New("reconstitute requires a fresh aggregate")
	}
	if stream.Empty() {
		return ErrAggregateNotFound
	}
	aggType := agg.AggregateType()
	b.id = stream.AggregateID
	for _, ev := range stream.Events {
		if ev.AggregateType() != aggType {
			return fmt.Errorf(
				"%w: agg_id=%s is a %s, not a %s",
				ErrAggregateTypeMismatch, stream.AggregateID, ev.AggregateType(), aggType,
			)
		}
		if ev.AggregateID() != stream.AggregateID {
			return corruptf("event %s belongs to %s, stream is %s", ev.EventID(), ev.AggregateID(), stream.AggregateID)
		}
		if ev.Playhead() != b.playhead {
			return corruptf("agg_id=%s expected playhead %d, got %d", b.id, b.playhead, ev.Playhead())
		}
		if err := agg.Apply(ev.Payload()); err != nil {
			return fmt.Errorf("%w: agg_id=%s playhead=%d: %w", ErrCorruptEventStream, b.id, ev.Playhead(), err)
		}
		b.advance(ev.Payload())
	}
	return nil
}

func violation(agg Aggregate, rule string) error {
	return &InvariantViolation{
		AggregateType: agg.AggregateType(),
		AggregateID:   agg.AggregateID(),
		Rule:          rule,
	}
}

// UnknownEvent is the error Apply implementations return from the default
// branch of their type switch.
func UnknownEvent(agg Aggregate, ev Event) error {
	return fmt.Errorf("%w: %s cannot apply %T", ErrUnknownEventType, agg.AggregateType(), ev)
}

// StampNow returns the current time truncated to seconds in UTC, the
// resolution read models keep for created and modified timestamps.
func StampNow() time.Time { return time.Now().UTC().Truncate(time.Second) }
