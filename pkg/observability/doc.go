// Package observability provides structured logging, Prometheus metrics,
// health probes, and graceful shutdown management for the portal service.
//
// Logging uses a slog-backed Logger with JSON output and chainable field
// helpers. Metrics are registered on an explicit registry so tests can
// construct isolated instances. The HealthChecker exposes liveness and
// readiness handlers suitable for k8s probes; readiness degrades rather than
// fails when the optional Redis session backend is down.
package observability
