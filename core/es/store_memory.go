package es

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// InMemoryStore is a simple, correct (optimistic) backend for tests/dev.
type InMemoryStore struct {
	mu      sync.Mutex
	log     *slog.Logger
	streams map[streamKey][]Record
	ids     map[string]struct{}
}

type streamKey struct {
	site string
	id   ID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		log:     slog.Default().With(slog.String("store", "memory")),
		streams: map[streamKey][]Record{},
		ids:     map[string]struct{}{},
	}
}

func (s *InMemoryStore) Load(_ context.Context, site string, id ID, from Playhead) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stream := s.streams[streamKey{site, id}]
	out := make([]Record, 0, len(stream))
	for _, r := range stream {
		if r.Playhead < from {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Append checks the whole batch before mutating anything.
func (s *InMemoryStore) Append(_ context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	groups := GroupRecords(records)
	seen := map[string]struct{}{}
	for _, g := range groups {
		key := streamKey{g.Records[0].Site, g.AggregateID}
		if err := ExpectNext(g, Playhead(len(s.streams[key]))); err != nil {
			return err
		}
		for _, r := range g.Records {
			if _, dup := s.ids[r.EventID]; dup {
				return fmt.Errorf("duplicate event id %s", r.EventID)
			}
			if _, dup := seen[r.EventID]; dup {
				return fmt.Errorf("duplicate event id %s", r.EventID)
			}
			seen[r.EventID] = struct{}{}
		}
	}

	for _, g := range groups {
		key := streamKey{g.Records[0].Site, g.AggregateID}
		s.streams[key] = append(s.streams[key], g.Records...)
	}
	for id := range seen {
		s.ids[id] = struct{}{}
	}

	s.log.Debug("append", slog.Int("num_events", len(records)), slog.Int("num_streams", len(groups)))
	return nil
}

// Put stores raw records without any checks. Tests use it to plant corrupt
// rows.
func (s *InMemoryStore) Put(records ...Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		key := streamKey{r.Site, r.AggregateID}
		s.streams[key] = append(s.streams[key], r)
		s.ids[r.EventID] = struct{}{}
	}
}

var _ EventStore = (*InMemoryStore)(nil)
