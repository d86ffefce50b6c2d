// Package metrics holds the prometheus instrumentation shared across the
// HTTP layer and the reminder engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Reminder outcome label values.
const (
	OutcomeSent             = "sent"
	OutcomeFailed           = "failed"
	OutcomeSkippedTooSoon   = "skipped_too_soon"
	OutcomeSkippedExhausted = "skipped_exhausted"
)

type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	RemindersTotal      *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "burnbox_http_requests_total",
			Help: "Total HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "burnbox_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		RemindersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "burnbox_reminders_total",
			Help: "Reminder pass outcomes per candidate.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(m.HTTPRequestsTotal, m.HTTPRequestDuration, m.RemindersTotal)

	return m
}

// ObserveReminder increments the reminder outcome counter. Nil receivers are
// allowed so callers without a registry can skip instrumentation.
func (m *Metrics) ObserveReminder(outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.RemindersTotal.WithLabelValues(outcome).Add(float64(n))
}
