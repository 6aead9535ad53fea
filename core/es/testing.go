package es

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// === Helpers ===

// TestingEnv bundles an in-memory store and registry for tests.
type TestingEnv struct {
	t        *testing.T
	Backend  *InMemoryStore
	Registry *EventRegistry
	Store    *Store
}

func StartTestEnv(t *testing.T, registrars ...Registrar) *TestingEnv {
	backend := NewInMemoryStore()
	registry := NewRegistry().Register(registrars...)
	return &TestingEnv{
		t:        t,
		Backend:  backend,
		Registry: registry,
		Store:    NewStore(backend, registry, WithLog(slog.Default())),
	}
}

// Commit commits events and fails the test on error.
func (e *TestingEnv) Commit(ctx context.Context, events ...DomainEvent) *Transaction {
	tx, err := e.Store.Commit(ctx, events...)
	require.NoError(e.t, err)
	return tx
}

// History loads the full stream of id and fails the test on error.
func (e *TestingEnv) History(ctx context.Context, id ID) *EventStream {
	s, err := e.Store.AggregateHistoryFor(ctx, id)
	require.NoError(e.t, err)
	return s
}

// RecordingProjection remembers every Project call.
type RecordingProjection struct {
	mu    sync.Mutex
	name  string
	calls [][]DomainEvent
	err   error
}

func NewRecordingProjection(name string) *RecordingProjection {
	return &RecordingProjection{name: name}
}

func (p *RecordingProjection) Name() string { return p.name }

func (p *RecordingProjection) Project(_ context.Context, events ...DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.calls = append(p.calls, append([]DomainEvent(nil), events...))
	return nil
}

// FailWith makes subsequent Project calls return err.
func (p *RecordingProjection) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Calls returns the batches seen so far.
func (p *RecordingProjection) Calls() [][]DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]DomainEvent(nil), p.calls...)
}

// Events returns every projected event in order.
func (p *RecordingProjection) Events() []DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []DomainEvent
	for _, c := range p.calls {
		out = append(out, c...)
	}
	return out
}
