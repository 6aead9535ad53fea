package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/getdevflow/core-sub003/ports/kv"
)

// indexMetrics implements kv.IndexMetrics using Prometheus.
type indexMetrics struct {
	lookups *prometheus.CounterVec
}

func NewIndexMetrics(reg prometheus.Registerer) kv.IndexMetrics {
	m := &indexMetrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devflow_index_lookups_total",
			Help: "Lookup index reads by result",
		}, []string{"index", "hit"}),
	}
	reg.MustRegister(m.lookups)
	return m
}

func (m *indexMetrics) IndexLookup(index string, hit bool) {
	m.lookups.WithLabelValues(index, boolToStr(hit)).Inc()
}

var _ kv.IndexMetrics = (*indexMetrics)(nil)
