package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/jonesrussell/sherlock-center/internal/metrics"
)

func TestMetrics_Counters(t *testing.T) {
	t.Helper()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.ScanStarted()
	m.ScanStarted()
	m.ScanCompleted()
	m.ScanFailed()
	m.OutcomeRecorded("claimed")
	m.OutcomeRecorded("claimed")
	m.OutcomeRecorded("available")

	if got := testutil.ToFloat64(m.ScansStartedTotal); got != 2 {
		t.Errorf("scans started = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ScansCompletedTotal); got != 1 {
		t.Errorf("scans completed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ScansFailedTotal); got != 1 {
		t.Errorf("scans failed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.OutcomesTotal.WithLabelValues("claimed")); got != 2 {
		t.Errorf("claimed outcomes = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.OutcomesTotal.WithLabelValues("available")); got != 1 {
		t.Errorf("available outcomes = %v, want 1", got)
	}
}
