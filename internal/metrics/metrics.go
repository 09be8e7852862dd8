// Package metrics provides Prometheus instrumentation for outbound SDK calls.
//
// *Metrics implements retry.Observer. All methods are nil-safe; pass nil when
// no instrumentation is desired.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/retry"
)

// Metrics holds all Prometheus metric descriptors of the SDK.
type Metrics struct {
	attemptsTotal   *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	retryDelay      *prometheus.HistogramVec
	exhaustedTotal  *prometheus.CounterVec
}

// New creates a Metrics instance and registers all descriptors with reg.
// Use prometheus.DefaultRegisterer in production and prometheus.NewRegistry()
// in tests to avoid cross-test pollution.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secretai_call_attempts_total",
				Help: "Total number of call attempts by operation and outcome class.",
			},
			[]string{"operation", "class"},
		),
		attemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "secretai_call_attempt_duration_seconds",
				Help:    "Duration of single call attempts in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		retryDelay: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "secretai_retry_delay_seconds",
				Help:    "Wait chosen before the next attempt in seconds.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 30, 60},
			},
			[]string{"operation"},
		),
		exhaustedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secretai_calls_exhausted_total",
				Help: "Total number of calls that used every attempt without success.",
			},
			[]string{"operation"},
		),
	}
	reg.MustRegister(
		m.attemptsTotal,
		m.attemptDuration,
		m.retryDelay,
		m.exhaustedTotal,
	)
	return m
}

// RecordAttempt records the outcome and duration of one attempt.
func (m *Metrics) RecordAttempt(operation string, class retry.Class, dur time.Duration) {
	if m == nil {
		return
	}
	m.attemptsTotal.WithLabelValues(operation, class.String()).Inc()
	m.attemptDuration.WithLabelValues(operation).Observe(dur.Seconds())
}

// RecordDelay records a wait scheduled before a retry.
func (m *Metrics) RecordDelay(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.retryDelay.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordExhausted counts a call that ran out of attempts.
func (m *Metrics) RecordExhausted(operation string) {
	if m == nil {
		return
	}
	m.exhaustedTotal.WithLabelValues(operation).Inc()
}

// ObserveAttempt implements retry.Observer.
func (m *Metrics) ObserveAttempt(_ context.Context, ev retry.Event) {
	if m == nil {
		return
	}
	m.RecordAttempt(ev.Op, ev.Class, ev.Elapsed)
	switch {
	case ev.Exhausted():
		m.RecordExhausted(ev.Op)
	case ev.Class == retry.Retryable && ev.Delay > 0:
		m.RecordDelay(ev.Op, ev.Delay)
	}
}

var _ retry.Observer = (*Metrics)(nil)
