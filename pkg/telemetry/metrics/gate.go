package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// GateMetrics counts admission decisions.
//
// Metrics:
//   - roastline_gate_decisions_total{stage, result}
//   - roastline_gate_denials_total{stage}
type GateMetrics struct {
	decisions *prometheus.CounterVec
	denials   *prometheus.CounterVec
}

func newGateMetrics(namespace string, registry prometheus.Registerer) *GateMetrics {
	factory := promauto.With(registry)
	return &GateMetrics{
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "decisions_total",
			Help:      "Admission checks evaluated, by stage and result",
		}, []string{"stage", "result"}),
		denials: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "denials_total",
			Help:      "Roast requests refused, by the stage that refused them",
		}, []string{"stage"}),
	}
}

func (m *GateMetrics) observe(stage string, allowed bool) {
	result := "allow"
	if !allowed {
		result = "deny"
		m.denials.WithLabelValues(stage).Inc()
	}
	m.decisions.WithLabelValues(stage, result).Inc()
}
