package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records checkout submission results.
type CheckoutMetrics struct {
	outcomes  *prometheus.CounterVec
	creations *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_outcomes_total",
		Help: "Checkout submissions by terminal outcome.",
	}, []string{"outcome"})
	creations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_record_creations_total",
		Help: "Remote order record creation calls by result.",
	}, []string{"result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_submit_duration_seconds",
		Help:    "Duration of checkout submissions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	reg.MustRegister(outcomes, creations, duration)
	return &CheckoutMetrics{
		outcomes:  outcomes,
		creations: creations,
		duration:  duration,
	}
}

// ObserveSubmit records the outcome and how long the submission took.
func (c *CheckoutMetrics) ObserveSubmit(outcome string, elapsed time.Duration) {
	if c == nil || c.outcomes == nil {
		return
	}
	label := normalizeLabel(outcome)
	c.outcomes.WithLabelValues(label).Inc()
	c.duration.WithLabelValues(label).Observe(elapsed.Seconds())
}

// ObserveRecordCreation counts a single remote order record creation.
func (c *CheckoutMetrics) ObserveRecordCreation(ok bool) {
	if c == nil || c.creations == nil {
		return
	}
	result := "failure"
	if ok {
		result = "success"
	}
	c.creations.WithLabelValues(result).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
