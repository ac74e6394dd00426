package execution

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codesync_executions_total",
			Help: "Dispatched executions by language, backend and status.",
		},
		[]string{"language", "backend", "status"},
	)
	executionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codesync_execution_duration_seconds",
			Help:    "Wall time of dispatched executions, including backend round trips.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"backend"},
	)
)

// Collectors returns the execution metrics for registration with a server
// registry.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{executionsTotal, executionDuration}
}

func observeExecution(language, backend, status string, elapsed time.Duration) {
	executionsTotal.WithLabelValues(language, backend, status).Inc()
	executionDuration.WithLabelValues(backend).Observe(elapsed.Seconds())
}
