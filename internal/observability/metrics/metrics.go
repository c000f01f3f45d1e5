package metrics

import "github.com/prometheus/client_golang/prometheus"

// DecisionMetrics exposes counters/histograms for auto-accept decisions,
// queue resolutions and reminder dispatch.
type DecisionMetrics struct {
	decisionsTotal   *prometheus.CounterVec
	resolutionsTotal *prometheus.CounterVec
	dispatchTotal    *prometheus.CounterVec
	decisionLatency  *prometheus.HistogramVec
}

func NewDecisionMetrics(reg prometheus.Registerer) *DecisionMetrics {
	m := &DecisionMetrics{
		decisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "autoaccept",
			Name:      "decisions_total",
			Help:      "Total auto-accept verdicts by outcome and reason",
		}, []string{"resource_type", "action", "reason"}),
		resolutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "decision_queue",
			Name:      "resolutions_total",
			Help:      "Total decision queue resolutions",
		}, []string{"decision", "status"}),
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "comms",
			Name:      "dispatch_total",
			Help:      "Total scheduled communication dispatch attempts",
		}, []string{"channel", "status"}),
		decisionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "autoaccept",
			Name:      "process_latency_seconds",
			Help:      "Latency of processing one candidate end to end",
			Buckets:   prometheus.DefBuckets,
		}, []string{"resource_type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.decisionsTotal, m.resolutionsTotal, m.dispatchTotal, m.decisionLatency)
	return m
}

func (m *DecisionMetrics) ObserveDecision(resourceType, action, reason string) {
	if m == nil {
		return
	}
	m.decisionsTotal.WithLabelValues(resourceType, action, reason).Inc()
}

func (m *DecisionMetrics) ObserveResolution(decision string, ok bool) {
	if m == nil {
		return
	}
	status := "resolved"
	if !ok {
		status = "failed"
	}
	m.resolutionsTotal.WithLabelValues(decision, status).Inc()
}

func (m *DecisionMetrics) ObserveDispatch(channel, status string) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(channel, status).Inc()
}

func (m *DecisionMetrics) ObserveLatency(resourceType string, seconds float64) {
	if m == nil {
		return
	}
	m.decisionLatency.WithLabelValues(resourceType).Observe(seconds)
}
