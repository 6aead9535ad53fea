// Package metrics holds the instrument interfaces the core packages record
// into. Backends such as the Prometheus adapter implement them.
package metrics

import "time"

// Counter is a monotonically increasing metric.
type Counter interface {
	Inc()
	// Add increments the counter by delta. delta must be >= 0.
	Add(delta float64)
}

// Histogram samples observations, e.g. latencies in seconds.
type Histogram interface {
	Observe(value float64)
}

// Timer measures one operation. Usage:
//
//	defer m.StoreLoadDuration(site).ObserveDuration()
type Timer interface {
	ObserveDuration()
}

type histogramTimer struct {
	h     Histogram
	start time.Time
}

func (t histogramTimer) ObserveDuration() { t.h.Observe(time.Since(t.start).Seconds()) }

// StartTimer returns a Timer that observes the elapsed seconds into h.
func StartTimer(h Histogram) Timer {
	return histogramTimer{h: h, start: time.Now()}
}
