package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Authorization metrics
	AuthzChecksTotal *prometheus.CounterVec
	AuthzErrorsTotal *prometheus.CounterVec

	// Elevation metrics
	ElevationAttemptsTotal *prometheus.CounterVec
	ElevationGrantsTotal   prometheus.Counter

	// Shared-store metrics
	StoreFaultsTotal *prometheus.CounterVec

	// Audit metrics
	AuditWritesTotal *prometheus.CounterVec
	AuditWriteErrors prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		AuthzChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "openreach_authz_checks_total",
				Help: "Total number of authorization checks",
			},
			[]string{"check", "decision"},
		),
		AuthzErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "openreach_authz_errors_total",
				Help: "Total number of authorization checks that failed with an infrastructure error",
			},
			[]string{"check"},
		),
		ElevationAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "openreach_elevation_attempts_total",
				Help: "Total number of elevation protocol outcomes",
			},
			[]string{"state"},
		),
		ElevationGrantsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "openreach_elevation_grants_total",
				Help: "Total number of granted elevations",
			},
		),
		StoreFaultsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "openreach_shared_store_faults_total",
				Help: "Total number of shared-store failures (fail-open events)",
			},
			[]string{"operation"},
		),
		AuditWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "openreach_audit_writes_total",
				Help: "Total number of audit log writes",
			},
			[]string{"status"},
		),
		AuditWriteErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "openreach_audit_write_errors_total",
				Help: "Total number of failed audit log writes",
			},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.AuthzChecksTotal,
			m.AuthzErrorsTotal,
			m.ElevationAttemptsTotal,
			m.ElevationGrantsTotal,
			m.StoreFaultsTotal,
			m.AuditWritesTotal,
			m.AuditWriteErrors,
		)
	}

	return m
}

// Handler returns an HTTP handler for the /metrics endpoint
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
