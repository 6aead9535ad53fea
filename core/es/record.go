package es

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record is the persisted row of one event. Backends store and return
// records verbatim; encoding and decoding happens in Store.
type Record struct {
	EventID       string          `json:"event_id"`
	TransactionID TransactionID   `json:"transaction_id"`
	EventType     string          `json:"event_type"`
	EventClass    string          `json:"event_classname"`
	Site          string          `json:"site"`
	Payload       json.RawMessage `json:"payload"`
	Metadata      json.RawMessage `json:"metadata"`
	AggregateID   ID              `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	Playhead      Playhead        `json:"aggregate_playhead"`
	RecordedAt    string          `json:"recorded_at"`
}

func encodeRecord(ev DomainEvent, tx TransactionID, site string) (Record, error) {
	payload, err := json.Marshal(ev.Payload())
	if err != nil {
		return Record{}, fmt.Errorf("marshal payload %s: %w", ev.EventType(), err)
	}
	meta, err := json.Marshal(ev.Metadata())
	if err != nil {
		return Record{}, fmt.Errorf("marshal metadata %s: %w", ev.EventType(), err)
	}
	m := ev.Metadata()
	return Record{
		EventID:       ev.EventID(),
		TransactionID: tx,
		EventType:     ev.EventType(),
		EventClass:    KindOf(ev.Payload()),
		Site:          site,
		Payload:       payload,
		Metadata:      meta,
		AggregateID:   ev.AggregateID(),
		AggregateType: m.AggregateType,
		Playhead:      ev.Playhead(),
		RecordedAt:    m.RecordedAt,
	}, nil
}

// decodeRecord rebuilds the typed event. Metadata is taken from the stored
// JSON and must agree with the indexed columns.
func decodeRecord(reg *EventRegistry, rec Record) (DomainEvent, error) {
	payload, err := reg.decode(rec.EventClass, rec.EventType, rec.Payload)
	if err != nil {
		return DomainEvent{}, corruptf("event_id=%s payload: %v", rec.EventID, err)
	}

	var meta Metadata
	if err := json.Unmarshal(rec.Metadata, &meta); err != nil {
		return DomainEvent{}, corruptf("event_id=%s metadata: %v", rec.EventID, err)
	}
	switch {
	case meta.EventID != rec.EventID:
		return DomainEvent{}, corruptf("event_id=%s metadata names event %q", rec.EventID, meta.EventID)
	case meta.AggregateID != rec.AggregateID:
		return DomainEvent{}, corruptf("event_id=%s metadata names aggregate %q", rec.EventID, meta.AggregateID)
	case meta.AggregatePlayhead != rec.Playhead:
		return DomainEvent{}, corruptf("event_id=%s metadata playhead %d, row %d", rec.EventID, meta.AggregatePlayhead, rec.Playhead)
	case meta.EventType != rec.EventType:
		return DomainEvent{}, corruptf("event_id=%s metadata event type %q, row %q", rec.EventID, meta.EventType, rec.EventType)
	case meta.AggregateType != rec.AggregateType:
		return DomainEvent{}, corruptf("event_id=%s metadata aggregate type %q, row %q", rec.EventID, meta.AggregateType, rec.AggregateType)
	}

	recordedAt, err := time.Parse(RecordedAtLayout, meta.RecordedAt)
	if err != nil {
		return DomainEvent{}, corruptf("event_id=%s recorded_at: %v", rec.EventID, err)
	}

	return DomainEvent{
		eventID:     meta.EventID,
		aggregateID: meta.AggregateID,
		playhead:    meta.AggregatePlayhead,
		payload:     payload,
		meta:        meta,
		recordedAt:  recordedAt.UTC(),
	}, nil
}
