package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"roastline-hq/roastline/pkg/limits/ratelimit"
)

// RetentionMetrics tracks usage pruning.
type RetentionMetrics struct {
	runs        *prometheus.CounterVec
	rowsDeleted prometheus.Counter
	lastSuccess prometheus.Gauge
}

func newRetentionMetrics(namespace string, registry prometheus.Registerer) *RetentionMetrics {
	factory := promauto.With(registry)
	return &RetentionMetrics{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "prune_runs_total",
			Help:      "Usage prune sweeps by result",
		}, []string{"result"}),
		rowsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "rows_deleted_total",
			Help:      "Daily usage rows removed by pruning",
		}),
		lastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful prune",
		}),
	}
}

func (m *RetentionMetrics) observe(result ratelimit.PruneResult) {
	if !result.OK() {
		m.runs.WithLabelValues("error").Inc()
		return
	}
	m.runs.WithLabelValues("success").Inc()
	m.rowsDeleted.Add(float64(result.RowsDeleted))
	m.lastSuccess.SetToCurrentTime()
}
