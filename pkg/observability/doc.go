// Package observability provides structured logging and Prometheus metrics.
//
// The Logger wraps stdlib slog with JSON output and field chaining. Metrics
// cover authorization decisions, elevation protocol outcomes, shared-store
// faults, and audit write health so operators can tell a store outage apart
// from a legitimate deny.
package observability
