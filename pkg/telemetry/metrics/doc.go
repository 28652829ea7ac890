// Package metrics exports Prometheus metrics for the roast service.
//
// # Metrics Categories
//
//   - Gate: admission checks and denials by stage
//   - Review: reviewer calls, latency and cost by model
//   - Budget: the month's spend, limit and utilization
//   - HTTP: requests served by route and status code
//   - Retention: usage prune sweeps and rows removed
//
// # Usage
//
// The Collector owns a private registry, so several collectors can live in
// one process (tests do this). It is passed to the gate as its Observer and
// to the retention pruner, then served on /metrics:
//
//	collector := metrics.NewCollector(metrics.Config{ProcessMetrics: true})
//	gate := limits.NewGate(limits.Config{..., Observer: collector})
//	pruner.SetObserver(collector)
//	mux.Handle("GET /metrics", collector.Handler())
package metrics
