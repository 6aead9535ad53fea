// Package prometheus provides Prometheus implementations of the metrics
// interfaces of the event store and the lookup indexes.
package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Default histogram buckets for latency metrics (in seconds).
var defaultBuckets = []float64{
	.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10,
}

// AllMetrics holds every Prometheus implementation, registered on one
// registry.
type AllMetrics struct {
	ES    *esMetrics
	Index *indexMetrics
}

func NewAllMetrics(reg prometheus.Registerer) *AllMetrics {
	return &AllMetrics{
		ES:    NewESMetrics(reg).(*esMetrics),
		Index: NewIndexMetrics(reg).(*indexMetrics),
	}
}

// Handler serves the metrics gathered by reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

func boolToStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
