package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestDecisionMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDecisionMetrics(reg)

	m.ObserveDecision("appointment", "accepted", "all checks passed")
	m.ObserveDecision("appointment", "accepted", "all checks passed")
	m.ObserveDecision("appointment", "queued", "daily limit reached")
	m.ObserveLatency("appointment", 0.02)

	if got := counterValue(t, m.decisionsTotal.WithLabelValues("appointment", "accepted", "all checks passed")); got != 2 {
		t.Fatalf("expected 2 accepted, got %v", got)
	}
	if got := counterValue(t, m.decisionsTotal.WithLabelValues("appointment", "queued", "daily limit reached")); got != 1 {
		t.Fatalf("expected 1 queued, got %v", got)
	}
}

func TestDecisionMetricsResolutionStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDecisionMetrics(reg)

	m.ObserveResolution("approve", true)
	m.ObserveResolution("approve", false)
	m.ObserveDispatch("sms", "sent")

	if got := counterValue(t, m.resolutionsTotal.WithLabelValues("approve", "failed")); got != 1 {
		t.Fatalf("expected 1 failed resolution, got %v", got)
	}
	if got := counterValue(t, m.dispatchTotal.WithLabelValues("sms", "sent")); got != 1 {
		t.Fatalf("expected 1 sms dispatch, got %v", got)
	}
}

func TestDecisionMetricsNilSafe(t *testing.T) {
	var m *DecisionMetrics
	m.ObserveDecision("referral", "queued", "auto-accept disabled")
	m.ObserveResolution("cancel", true)
	m.ObserveDispatch("email", "failed")
	m.ObserveLatency("referral", 0.1)
}
