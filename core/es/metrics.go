package es

import "github.com/getdevflow/core-sub003/core/metrics"

// ESMetrics defines the metrics interface for the event store, repositories
// and projections. Implementations should be thread-safe.
type ESMetrics interface {
	// Store operations, labelled by site
	StoreLoadDuration(site string) metrics.Timer
	StoreAppendDuration(site string) metrics.Timer
	EventsAppended(aggType string, count int)

	// Repository operations
	RepoLoadDuration(aggType string) metrics.Timer
	RepoSaveDuration(aggType string) metrics.Timer
	ConcurrencyConflict(aggType string)

	// Identity map
	IdentityMapHit(aggType string)
	IdentityMapMiss(aggType string)

	// Projections
	ProjectionDuration(projection string) metrics.Timer
	ProjectionFailed(projection string)
}

type nopESMetrics struct{}

func (nopESMetrics) StoreLoadDuration(string) metrics.Timer   { return metrics.NopTimer() }
func (nopESMetrics) StoreAppendDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopESMetrics) EventsAppended(string, int)               {}

func (nopESMetrics) RepoLoadDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopESMetrics) RepoSaveDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopESMetrics) ConcurrencyConflict(string)            {}

func (nopESMetrics) IdentityMapHit(string)  {}
func (nopESMetrics) IdentityMapMiss(string) {}

func (nopESMetrics) ProjectionDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopESMetrics) ProjectionFailed(string)                 {}

// NopESMetrics returns a no-op ESMetrics implementation.
func NopESMetrics() ESMetrics { return nopESMetrics{} }
