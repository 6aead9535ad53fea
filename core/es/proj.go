package es

import (
	"context"
	"fmt"
	"log/slog"
)

// Projection folds committed events into a read model. Project receives the
// events of one commit in commit order and runs synchronously, once, right
// after the commit. An event the projection has no handler for is a
// configuration error reported as ErrUnhandledEvent.
type Projection interface {
	Name() string
	Project(ctx context.Context, events ...DomainEvent) error
}

// Guard is implemented by projections that keep unique keys. The repository
// calls Guard with the events of a save before committing them; an error
// aborts the save and nothing is committed.
type Guard interface {
	Guard(ctx context.Context, events ...DomainEvent) error
}

// GuardEvents runs p's guard when it has one.
func GuardEvents(ctx context.Context, p Projection, events ...DomainEvent) error {
	g, ok := p.(Guard)
	if !ok || len(events) == 0 {
		return nil
	}
	return g.Guard(ctx, events...)
}

// Unhandled is returned from the default branch of a projection's type
// switch.
func Unhandled(projection string, ev DomainEvent) error {
	return fmt.Errorf(
		"%w: projection %s has no handler for %s (%T)",
		ErrUnhandledEvent, projection, ev.EventType(), ev.Payload(),
	)
}

// Each calls handle for every event in order and stops at the first error.
func Each(ctx context.Context, events []DomainEvent, handle func(context.Context, DomainEvent) error) error {
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := handle(ctx, ev); err != nil {
			return fmt.Errorf("%s playhead=%d: %w", ev.EventType(), ev.Playhead(), err)
		}
	}
	return nil
}

// === func ===

type projectionFunc struct {
	name   string
	handle func(context.Context, DomainEvent) error
}

// NewProjection adapts a per-event handler.
func NewProjection(name string, handle func(context.Context, DomainEvent) error) Projection {
	return &projectionFunc{name: name, handle: handle}
}

func (p *projectionFunc) Name() string { return p.name }
func (p *projectionFunc) Project(ctx context.Context, events ...DomainEvent) error {
	return Each(ctx, events, p.handle)
}

// === fan-out ===

type multiProjection struct {
	name string
	ps   []Projection
}

// Projections runs each projection over the full batch, in the given order.
func Projections(name string, ps ...Projection) Projection {
	return &multiProjection{name: name, ps: ps}
}

func (m *multiProjection) Name() string { return m.name }
func (m *multiProjection) Project(ctx context.Context, events ...DomainEvent) error {
	for _, p := range m.ps {
		if err := p.Project(ctx, events...); err != nil {
			return fmt.Errorf("projection %s: %w", p.Name(), err)
		}
	}
	return nil
}

func (m *multiProjection) Guard(ctx context.Context, events ...DomainEvent) error {
	for _, p := range m.ps {
		if err := GuardEvents(ctx, p, events...); err != nil {
			return err
		}
	}
	return nil
}

// === instrumentation ===

type instrumentedProjection struct {
	inner   Projection
	log     *slog.Logger
	metrics ESMetrics
}

// InstrumentProjection logs and times every Project call of p.
func InstrumentProjection(p Projection, opts ...InstrumentOption) Projection {
	options := newInstrumentOpts(opts...)
	return &instrumentedProjection{
		inner:   p,
		log:     options.log.With(slog.String("projection", p.Name())),
		metrics: options.metrics,
	}
}

func (i *instrumentedProjection) Name() string { return i.inner.Name() }

func (i *instrumentedProjection) Guard(ctx context.Context, events ...DomainEvent) error {
	return GuardEvents(ctx, i.inner, events...)
}

func (i *instrumentedProjection) Project(ctx context.Context, events ...DomainEvent) error {
	t := i.metrics.ProjectionDuration(i.inner.Name())
	err := i.inner.Project(ctx, events...)
	t.ObserveDuration()
	if err != nil {
		i.metrics.ProjectionFailed(i.inner.Name())
		i.log.Error("projection failed", slog.Int("num_events", len(events)), slog.Any("error", err))
		return err
	}
	i.log.Debug("projected", slog.Int("num_events", len(events)))
	return nil
}
