package es

import (
	"errors"
	"fmt"
)

var (
	ErrAggregateNotFound     = errors.New("aggregate not found")
	ErrConcurrencyConflict   = errors.New("concurrency conflict")
	ErrCorruptEventStream    = errors.New("corrupt event stream")
	ErrPersistence           = errors.New("persistence failure")
	ErrInvariantViolation    = errors.New("invariant violation")
	ErrUnknownEventType      = errors.New("unknown event type")
	ErrUnhandledEvent        = errors.New("unhandled event")
	ErrAggregateTypeMismatch = errors.New("aggregate type mismatch")
	ErrInvalidEvent          = errors.New("invalid event")
)

// InvariantViolation is returned by aggregate mutations that reject a
// proposed change. Nothing is recorded when it is returned.
type InvariantViolation struct {
	AggregateType string
	AggregateID   ID
	Rule          string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("%s: %s agg_id=%s: %s", ErrInvariantViolation, e.AggregateType, e.AggregateID, e.Rule)
}

func (e *InvariantViolation) Is(target error) bool { return target == ErrInvariantViolation }

// ConflictError reports that a competing writer advanced the stream between
// load and append.
type ConflictError struct {
	AggregateID ID
	Expected    Playhead // first playhead of the rejected batch
	Actual      Playhead // next playhead according to the store
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf(
		"%s: agg_id=%s expected playhead %d, store is at %d",
		ErrConcurrencyConflict, e.AggregateID, e.Expected, e.Actual,
	)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConcurrencyConflict }

func corruptf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptEventStream, fmt.Sprintf(format, args...))
}
