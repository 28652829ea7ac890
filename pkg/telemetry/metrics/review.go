package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ReviewMetrics tracks calls to the reviewer.
//
// Metrics:
//   - roastline_review_requests_total{model, status}
//   - roastline_review_duration_seconds{model}
//   - roastline_review_cost_cents_total{model}
type ReviewMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	cost     *prometheus.CounterVec
}

func newReviewMetrics(namespace string, buckets []float64, registry prometheus.Registerer) *ReviewMetrics {
	factory := promauto.With(registry)
	return &ReviewMetrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "review",
			Name:      "requests_total",
			Help:      "Reviewer calls by model and status",
		}, []string{"model", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "review",
			Name:      "duration_seconds",
			Help:      "Reviewer call latency including retries",
			Buckets:   buckets,
		}, []string{"model"}),
		cost: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "review",
			Name:      "cost_cents_total",
			Help:      "Cost of completed reviews in cents",
		}, []string{"model"}),
	}
}

func (m *ReviewMetrics) observe(model string, ok bool, latency time.Duration, costCents float64) {
	status := "success"
	if !ok {
		status = "error"
	}
	m.requests.WithLabelValues(model, status).Inc()
	m.duration.WithLabelValues(model).Observe(latency.Seconds())
	if ok && costCents > 0 {
		m.cost.WithLabelValues(model).Add(costCents)
	}
}
