// Package telemetry groups the service's observability packages.
//
//   - logging: slog setup, context fields, secret redaction, log rotation
//   - metrics: Prometheus collector for the gate, reviews, budget and HTTP
//   - health: /health, /ready and /version endpoints
package telemetry
