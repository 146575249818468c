// Package metrics keeps the in-process counters every pipeline stage
// increments. Counters are exported to Prometheus and simultaneously held in
// a mutex-guarded map so the snapshot endpoint can return them as plain
// name→value pairs.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mu       sync.Mutex
	counters = make(map[string]int64)

	pipelineCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "defeso_pipeline_events_total",
			Help: "Named pipeline counters (uploads, classifications, extractions, eligibility, scheduler)",
		},
		[]string{"name"},
	)
)

// Increment bumps a named counter by one.
func Increment(name string) {
	Add(name, 1)
}

// Add bumps a named counter by delta.
func Add(name string, delta int64) {
	if delta <= 0 {
		return
	}
	mu.Lock()
	counters[name] += delta
	mu.Unlock()
	pipelineCounter.WithLabelValues(name).Add(float64(delta))
}

// Snapshot returns a copy of the current counter values.
func Snapshot() map[string]int64 {
	mu.Lock()
	defer mu.Unlock()
	out := make(map[string]int64, len(counters))
	for name, value := range counters {
		out[name] = value
	}
	return out
}

// Reset clears every counter. Test helper only; the Prometheus side is
// monotonic and is left untouched.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	counters = make(map[string]int64)
}
