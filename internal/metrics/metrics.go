// Package metrics exposes Prometheus counters for scan activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// MetricsNamespace is the namespace for all service metrics.
	MetricsNamespace = "sherlock"

	// MetricsSubsystem is the subsystem for scanner metrics.
	MetricsSubsystem = "scanner"
)

// Metrics holds all Prometheus metrics for the scan service.
type Metrics struct {
	ScansStartedTotal   prometheus.Counter
	ScansCompletedTotal prometheus.Counter
	ScansFailedTotal    prometheus.Counter
	OutcomesTotal       *prometheus.CounterVec
}

// New creates and registers all scanner metrics.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		ScansStartedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "scans_started_total",
			Help:      "Total number of scans that began executing",
		}),
		ScansCompletedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "scans_completed_total",
			Help:      "Total number of scans that finished successfully",
		}),
		ScansFailedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "scans_failed_total",
			Help:      "Total number of scans that ended in failure",
		}),
		OutcomesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "site_outcomes_total",
			Help:      "Per-site probe outcomes recorded, by status",
		}, []string{"status"}),
	}
}

// ScanStarted counts a scan entering the running state.
func (m *Metrics) ScanStarted() { m.ScansStartedTotal.Inc() }

// ScanCompleted counts a successful scan.
func (m *Metrics) ScanCompleted() { m.ScansCompletedTotal.Inc() }

// ScanFailed counts a failed scan.
func (m *Metrics) ScanFailed() { m.ScansFailedTotal.Inc() }

// OutcomeRecorded counts one persisted site outcome.
func (m *Metrics) OutcomeRecorded(status string) {
	m.OutcomesTotal.WithLabelValues(status).Inc()
}
