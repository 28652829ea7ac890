package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"roastline-hq/roastline/pkg/limits"
	"roastline-hq/roastline/pkg/limits/ratelimit"
	"roastline-hq/roastline/pkg/retention"
)

// Config configures metric names and buckets.
type Config struct {
	// Namespace prefixes every metric. Default: "roastline"
	Namespace string

	// ReviewDurationBuckets are the review latency buckets in seconds.
	ReviewDurationBuckets []float64

	// ProcessMetrics adds the Go runtime and process collectors.
	ProcessMetrics bool
}

// Collector owns a private registry and every metric the service exports.
// It implements limits.Observer and retention.Observer.
type Collector struct {
	registry *prometheus.Registry

	gate      *GateMetrics
	review    *ReviewMetrics
	budget    *BudgetMetrics
	http      *HTTPMetrics
	retention *RetentionMetrics
}

var (
	_ limits.Observer    = (*Collector)(nil)
	_ retention.Observer = (*Collector)(nil)
)

// NewCollector creates a collector with its own registry.
func NewCollector(cfg Config) *Collector {
	if cfg.Namespace == "" {
		cfg.Namespace = "roastline"
	}
	if len(cfg.ReviewDurationBuckets) == 0 {
		// Reviews take seconds, and the retry path can add up to a minute.
		cfg.ReviewDurationBuckets = []float64{0.5, 1, 2, 5, 10, 20, 30, 60}
	}

	registry := prometheus.NewRegistry()
	if cfg.ProcessMetrics {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return &Collector{
		registry:  registry,
		gate:      newGateMetrics(cfg.Namespace, registry),
		review:    newReviewMetrics(cfg.Namespace, cfg.ReviewDurationBuckets, registry),
		budget:    newBudgetMetrics(cfg.Namespace, registry),
		http:      newHTTPMetrics(cfg.Namespace, registry),
		retention: newRetentionMetrics(cfg.Namespace, registry),
	}
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveDecision counts one gate check outcome.
func (c *Collector) ObserveDecision(stage limits.Stage, allowed bool) {
	c.gate.observe(string(stage), allowed)
}

// ObserveReview records a reviewer call.
func (c *Collector) ObserveReview(model string, ok bool, latency time.Duration, costCents float64) {
	c.review.observe(model, ok, latency, costCents)
	if ok {
		c.budget.addCost(costCents)
	}
}

// ObserveBudget publishes the month's spend and limit.
func (c *Collector) ObserveBudget(spentCents, limitCents float64) {
	c.budget.set(spentCents, limitCents)
}

// ObservePrune records a usage retention sweep.
func (c *Collector) ObservePrune(result ratelimit.PruneResult) {
	c.retention.observe(result)
}

// ObserveHTTPRequest records one served request. route is the mux pattern,
// never the raw path.
func (c *Collector) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	c.http.observe(method, route, status, duration)
}
