package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "xeenon_tools"

// Metrics owns a private registry; nothing is registered on the global one.
type Metrics struct {
	registry      *prometheus.Registry
	toolCalls     *prometheus.CounterVec
	toolDurations *prometheus.HistogramVec
	submissions   *prometheus.CounterVec
	submitRetries prometheus.Counter
	feeFallbacks  prometheus.Counter
	httpRequests  *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		toolDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Duration of tool invocations in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tx_submissions_total",
			Help:      "Transaction submissions by outcome.",
		}, []string{"outcome"}),
		submitRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tx_submit_retries_total",
			Help:      "Resends of a signed transaction after a retriable network failure.",
		}),
		feeFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "priority_fee_fallbacks_total",
			Help:      "Submissions that used the default priority fee because estimation failed.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served by route and status.",
		}, []string{"route", "status"}),
	}
	registry.MustRegister(
		m.toolCalls,
		m.toolDurations,
		m.submissions,
		m.submitRetries,
		m.feeFallbacks,
		m.httpRequests,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// The recorders below accept a nil receiver so collaborators can run without
// metrics wired.

func (m *Metrics) ObserveToolCall(tool, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
	m.toolDurations.WithLabelValues(tool).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncSubmitRetry() {
	if m == nil {
		return
	}
	m.submitRetries.Inc()
}

func (m *Metrics) IncFeeFallback() {
	if m == nil {
		return
	}
	m.feeFallbacks.Inc()
}

func (m *Metrics) ObserveHTTPRequest(route string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, http.StatusText(status)).Inc()
}
