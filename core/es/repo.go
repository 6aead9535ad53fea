package es

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/getdevflow/core-sub003/core/perkey"
)

// Repository loads aggregates of one type by replaying their history and
// saves them by committing their uncommitted events and projecting the
// result.
type Repository[T Aggregate] struct {
	log        *slog.Logger
	store      TransactionalStore
	newAgg     func() T
	aggType    string
	projection Projection
	metrics    ESMetrics
	locks      *perkey.Locker[ID]
}

// NewRepository creates a repository for the aggregates built by newAgg.
// newAgg must return a fresh, empty instance on every call.
func NewRepository[T Aggregate](store TransactionalStore, newAgg func() T, opts ...RepositoryOption) *Repository[T] {
	options := newRepoOpts(opts...)
	aggType := newAgg().AggregateType()

	var projection Projection
	switch len(options.projections) {
	case 0:
	case 1:
		projection = options.projections[0]
	default:
		projection = Projections(aggType, options.projections...)
	}

	return &Repository[T]{
		log:        options.log.With(slog.String("repo", aggType)),
		store:      store,
		newAgg:     newAgg,
		aggType:    aggType,
		projection: projection,
		metrics:    options.metrics,
		locks:      perkey.New[ID](),
	}
}

func (r *Repository[T]) AggregateType() string { return r.aggType }

// Load returns the aggregate with the given id. An instance already tracked
// by uow is returned as is; otherwise the full history is replayed and the
// new instance registered in uow.
func (r *Repository[T]) Load(ctx context.Context, uow *UnitOfWork, id ID) (agg T, err error) {
	if id.IsZero() {
		return agg, errors.New("aggregate id is empty")
	}

	log := r.log.With(slog.Group("agg", slog.String("type", r.aggType), slog.String("id", id.String())))

	if tracked, ok := uow.get(id); ok {
		typed, ok := tracked.(T)
		if !ok {
			return agg, fmt.Errorf("%w: agg_id=%s is tracked as %s", ErrAggregateTypeMismatch, id, tracked.AggregateType())
		}
		r.metrics.IdentityMapHit(r.aggType)
		log.Debug("identity map hit", typed.Playhead().SlogAttr())
		return typed, nil
	}
	r.metrics.IdentityMapMiss(r.aggType)

	defer r.metrics.RepoLoadDuration(r.aggType).ObserveDuration()

	stream, err := r.store.AggregateHistoryFor(ctx, id)
	if err != nil {
		return agg, err
	}
	if stream.Empty() {
		return agg, fmt.Errorf("%w: %s agg_id=%s", ErrAggregateNotFound, r.aggType, id)
	}

	fresh := r.newAgg()
	if err := Reconstitute(fresh, stream); err != nil {
		return agg, err
	}
	uow.Register(fresh)

	log.Debug("loaded", fresh.Playhead().SlogAttr(), slog.String("state", fresh.State().String()))
	return fresh, nil
}

// Save commits the uncommitted events of agg, clears its buffer, projects the
// committed events and evicts agg from uow. With nothing recorded the commit
// is an empty no-op transaction and no projection runs.
//
// On a concurrency conflict agg is evicted as well; callers reload and retry.
// When the projection fails the events stay committed and the error is
// returned together with the transaction. A projection Guard rejecting the
// events fails the save before anything is committed; agg keeps its buffer.
func (r *Repository[T]) Save(ctx context.Context, uow *UnitOfWork, agg T) (*Transaction, error) {
	id := agg.AggregateID()
	events := agg.Uncommitted()

	defer r.metrics.RepoSaveDuration(r.aggType).ObserveDuration()

	if r.projection != nil {
		if err := GuardEvents(ctx, r.projection, events...); err != nil {
			return nil, fmt.Errorf("failed to save agg_type=%s agg_id=%s: %w", r.aggType, id, err)
		}
	}

	tx, err := r.store.Commit(ctx, events...)
	if err != nil {
		if errors.Is(err, ErrConcurrencyConflict) {
			r.metrics.ConcurrencyConflict(r.aggType)
			uow.Evict(id)
		}
		return nil, fmt.Errorf("failed to save agg_type=%s agg_id=%s: %w", r.aggType, id, err)
	}
	agg.ClearUncommitted()
	uow.Evict(id)

	if !tx.Empty() && r.projection != nil {
		if err := r.projection.Project(ctx, tx.Events...); err != nil {
			return tx, fmt.Errorf("project agg_type=%s agg_id=%s tx=%s: %w", r.aggType, id, tx.ID, err)
		}
	}

	r.log.Debug(
		"saved",
		slog.Group(
			"agg",
			slog.String("type", r.aggType),
			slog.String("id", id.String()),
			agg.Playhead().SlogAttr(),
		),
		slog.String("tx", tx.ID.String()),
		slog.Int("num_events", len(tx.Events)),
	)
	return tx, nil
}

// Transact runs load, fn and save for id with a private unit of work.
// Calls for the same id through this repository never overlap. Conflicts
// with other writers are returned, not retried.
func (r *Repository[T]) Transact(ctx context.Context, id ID, fn func(T) error) (tx *Transaction, err error) {
	err = r.locks.Do(ctx, id, func() error {
		uow := NewUnitOfWork()
		agg, err := r.Load(ctx, uow, id)
		if err != nil {
			return err
		}
		if err := fn(agg); err != nil {
			return err
		}
		tx, err = r.Save(ctx, uow, agg)
		return err
	})
	return tx, err
}
