package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BudgetMetrics mirrors the monthly ledger.
//
// Metrics:
//   - roastline_budget_spent_cents
//   - roastline_budget_limit_cents
//   - roastline_budget_utilization_ratio
//   - roastline_budget_recorded_cents_total
type BudgetMetrics struct {
	spent       prometheus.Gauge
	limit       prometheus.Gauge
	utilization prometheus.Gauge
	recorded    prometheus.Counter
}

func newBudgetMetrics(namespace string, registry prometheus.Registerer) *BudgetMetrics {
	factory := promauto.With(registry)
	return &BudgetMetrics{
		spent: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "budget",
			Name:      "spent_cents",
			Help:      "Spend recorded for the current month, as of the last budget check",
		}),
		limit: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "budget",
			Name:      "limit_cents",
			Help:      "Configured monthly budget",
		}),
		utilization: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "budget",
			Name:      "utilization_ratio",
			Help:      "Spent over limit; 1 when the limit is zero",
		}),
		recorded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "budget",
			Name:      "recorded_cents_total",
			Help:      "Review cost added to the ledger since start",
		}),
	}
}

func (m *BudgetMetrics) set(spentCents, limitCents float64) {
	m.spent.Set(spentCents)
	m.limit.Set(limitCents)
	if limitCents <= 0 {
		m.utilization.Set(1)
		return
	}
	m.utilization.Set(spentCents / limitCents)
}

func (m *BudgetMetrics) addCost(cents float64) {
	if cents > 0 {
		m.recorded.Add(cents)
	}
}
