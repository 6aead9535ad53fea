package es

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/getdevflow/core-sub003/core/reflector"
)

// RecordedAtLayout is the string form of event timestamps in storage and
// metadata.
const RecordedAtLayout = time.RFC3339Nano

// Event is the payload of a domain event. Implementations are plain value
// structs whose fields are the data that changed; EventType returns the
// stable tag used for dispatch and persistence.
type Event interface {
	EventType() string
}

// DeletionEvent marks the logical end of an aggregate's life.
type DeletionEvent interface {
	Event
	IsDeletion() bool
}

// Metadata is owned by infrastructure and duplicated into storage for
// indexability.
type Metadata struct {
	AggregateType     string   `json:"aggregate_type"`
	AggregateID       ID       `json:"aggregate_id"`
	AggregatePlayhead Playhead `json:"aggregate_playhead"`
	EventID           string   `json:"event_id"`
	EventType         string   `json:"event_type"`
	RecordedAt        string   `json:"recorded_at"`
}

// DomainEvent is one immutable fact about one aggregate.
type DomainEvent struct {
	eventID     string
	aggregateID ID
	playhead    Playhead
	payload     Event
	meta        Metadata
	recordedAt  time.Time
}

// NewDomainEvent wraps payload as the event at playhead of the given
// aggregate, fixing its id, timestamp and metadata.
func NewDomainEvent(aggType string, aggID ID, playhead Playhead, payload Event) DomainEvent {
	return newDomainEvent(aggType, aggID, playhead, payload, DefaultIDGenerator()(), time.Now())
}

func newDomainEvent(aggType string, aggID ID, playhead Playhead, payload Event, eventID string, now time.Time) DomainEvent {
	recordedAt := now.UTC()
	return DomainEvent{
		eventID:     eventID,
		aggregateID: aggID,
		playhead:    playhead,
		payload:     payload,
		recordedAt:  recordedAt,
		meta: Metadata{
			AggregateType:     aggType,
			AggregateID:       aggID,
			AggregatePlayhead: playhead,
			EventID:           eventID,
			EventType:         payload.EventType(),
			RecordedAt:        recordedAt.Format(RecordedAtLayout),
		},
	}
}

func (e DomainEvent) EventID() string       { return e.eventID }
func (e DomainEvent) AggregateID() ID       { return e.aggregateID }
func (e DomainEvent) AggregateType() string { return e.meta.AggregateType }
func (e DomainEvent) EventType() string     { return e.meta.EventType }
func (e DomainEvent) Playhead() Playhead    { return e.playhead }
func (e DomainEvent) Payload() Event        { return e.payload }
func (e DomainEvent) Metadata() Metadata    { return e.meta }
func (e DomainEvent) RecordedAt() time.Time { return e.recordedAt }

// IsDeletion reports whether the payload is a DeletionEvent.
func (e DomainEvent) IsDeletion() bool {
	d, ok := e.payload.(DeletionEvent)
	return ok && d.IsDeletion()
}

func (e DomainEvent) validate() error {
	switch {
	case e.eventID == "":
		return fmt.Errorf("%w: event id is empty", ErrInvalidEvent)
	case e.aggregateID.IsZero():
		return fmt.Errorf("%w: aggregate id is empty", ErrInvalidEvent)
	case e.payload == nil:
		return fmt.Errorf("%w: payload is nil", ErrInvalidEvent)
	case e.meta.AggregateType == "":
		return fmt.Errorf("%w: aggregate type is empty", ErrInvalidEvent)
	case e.meta.EventType == "":
		return fmt.Errorf("%w: event type is empty", ErrInvalidEvent)
	}
	return nil
}

// === Registry ===

type decodeFunc func(data []byte) (Event, error)

// EventRegistry resolves stored event kinds back to concrete payload types.
type EventRegistry struct {
	mu      sync.RWMutex
	decoder map[string]decodeFunc
	types   map[string]string
}

func NewRegistry() *EventRegistry {
	return &EventRegistry{
		decoder: map[string]decodeFunc{},
		types:   map[string]string{},
	}
}

// Registrar is implemented by types that know their event set, usually one
// per aggregate family.
type Registrar interface {
	RegisterEvents(r *EventRegistry)
}

// Register adds the event sets of the given registrars.
func (r *EventRegistry) Register(rs ...Registrar) *EventRegistry {
	for _, x := range rs {
		x.RegisterEvents(r)
	}
	return r
}

// RegisterEvent makes T decodable. T must be a named value type; the payload
// of a decoded event is a T, never a *T.
func RegisterEvent[T Event](r *EventRegistry) {
	reflector.MustBeNamed[T]()
	var zero T
	kind := KindOf(zero)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoder[kind] = func(data []byte) (Event, error) {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
	r.types[kind] = zero.EventType()
}

// Kinds returns the number of registered event kinds.
func (r *EventRegistry) Kinds() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.decoder)
}

func (r *EventRegistry) decode(kind, eventType string, data []byte) (Event, error) {
	r.mu.RLock()
	dec, ok := r.decoder[kind]
	want := r.types[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, kind)
	}
	if want != eventType {
		return nil, fmt.Errorf("event kind %s has type %q, row says %q", kind, want, eventType)
	}
	return dec(data)
}

// KindOf returns the fully qualified Go type name used as the event_classname
// column.
func KindOf(ev Event) string {
	return reflector.NameOf(ev)
}
