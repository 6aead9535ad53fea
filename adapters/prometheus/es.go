package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/getdevflow/core-sub003/core/es"
	"github.com/getdevflow/core-sub003/core/metrics"
)

// esMetrics implements es.ESMetrics using Prometheus.
type esMetrics struct {
	// Store metrics
	storeLoadDuration   *prometheus.HistogramVec
	storeAppendDuration *prometheus.HistogramVec
	eventsAppended      *prometheus.CounterVec

	// Repository metrics
	repoLoadDuration     *prometheus.HistogramVec
	repoSaveDuration     *prometheus.HistogramVec
	concurrencyConflicts *prometheus.CounterVec

	identityMap *prometheus.CounterVec

	// Projection metrics
	projectionDuration *prometheus.HistogramVec
	projectionFailures *prometheus.CounterVec
}

// NewESMetrics creates a new Prometheus implementation of ESMetrics.
func NewESMetrics(reg prometheus.Registerer) es.ESMetrics {
	m := &esMetrics{
		storeLoadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "devflow_es_store_load_duration_seconds",
			Help:    "Event store load latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"site"}),

		storeAppendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "devflow_es_store_append_duration_seconds",
			Help:    "Event store append latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"site"}),

		eventsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devflow_es_events_appended_total",
			Help: "Total number of events appended",
		}, []string{"aggregate_type"}),

		repoLoadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "devflow_es_repo_load_duration_seconds",
			Help:    "Repository load latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"aggregate_type"}),

		repoSaveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "devflow_es_repo_save_duration_seconds",
			Help:    "Repository save latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"aggregate_type"}),

		concurrencyConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devflow_es_concurrency_conflicts_total",
			Help: "Total number of optimistic concurrency conflicts",
		}, []string{"aggregate_type"}),

		identityMap: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devflow_es_identity_map_lookups_total",
			Help: "Identity map lookups by result",
		}, []string{"aggregate_type", "hit"}),

		projectionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "devflow_es_projection_duration_seconds",
			Help:    "Projection latency per transaction in seconds",
			Buckets: defaultBuckets,
		}, []string{"projection"}),

		projectionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devflow_es_projection_failures_total",
			Help: "Total number of failed projection runs",
		}, []string{"projection"}),
	}

	reg.MustRegister(
		m.storeLoadDuration,
		m.storeAppendDuration,
		m.eventsAppended,
		m.repoLoadDuration,
		m.repoSaveDuration,
		m.concurrencyConflicts,
		m.identityMap,
		m.projectionDuration,
		m.projectionFailures,
	)

	return m
}

func (m *esMetrics) StoreLoadDuration(site string) metrics.Timer {
	return metrics.StartTimer(m.storeLoadDuration.WithLabelValues(site))
}

func (m *esMetrics) StoreAppendDuration(site string) metrics.Timer {
	return metrics.StartTimer(m.storeAppendDuration.WithLabelValues(site))
}

func (m *esMetrics) EventsAppended(aggType string, count int) {
	m.eventsAppended.WithLabelValues(aggType).Add(float64(count))
}

func (m *esMetrics) RepoLoadDuration(aggType string) metrics.Timer {
	return metrics.StartTimer(m.repoLoadDuration.WithLabelValues(aggType))
}

func (m *esMetrics) RepoSaveDuration(aggType string) metrics.Timer {
	return metrics.StartTimer(m.repoSaveDuration.WithLabelValues(aggType))
}

func (m *esMetrics) ConcurrencyConflict(aggType string) {
	m.concurrencyConflicts.WithLabelValues(aggType).Inc()
}

func (m *esMetrics) IdentityMapHit(aggType string) {
	m.identityMap.WithLabelValues(aggType, boolToStr(true)).Inc()
}

func (m *esMetrics) IdentityMapMiss(aggType string) {
	m.identityMap.WithLabelValues(aggType, boolToStr(false)).Inc()
}

func (m *esMetrics) ProjectionDuration(projection string) metrics.Timer {
	return metrics.StartTimer(m.projectionDuration.WithLabelValues(projection))
}

func (m *esMetrics) ProjectionFailed(projection string) {
	m.projectionFailures.WithLabelValues(projection).Inc()
}

var _ es.ESMetrics = (*esMetrics)(nil)
