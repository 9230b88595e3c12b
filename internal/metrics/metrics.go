package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ShopMetrics counters for triage, webhooks, batches and side effects.
// A nil *ShopMetrics is valid and records nothing.
type ShopMetrics struct {
	triage            *prometheus.CounterVec
	webhookEvents     *prometheus.CounterVec
	batchItems        *prometheus.CounterVec
	sideEffectFailure *prometheus.CounterVec
	generation        *prometheus.HistogramVec
	jobDuration       *prometheus.HistogramVec
	httpRequests      *prometheus.HistogramVec
}

// NewShopMetrics registers the metrics on reg.
func NewShopMetrics(reg prometheus.Registerer) *ShopMetrics {
	if reg == nil {
		return &ShopMetrics{}
	}
	m := &ShopMetrics{
		triage: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_triage_total",
			Help: "Priority analyses by resulting priority and decision source.",
		}, []string{"priority", "source"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stripe_webhook_events_total",
			Help: "Stripe webhook events by type and outcome.",
		}, []string{"type", "outcome"}),
		batchItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_batch_items_total",
			Help: "Batch action items by action and result.",
		}, []string{"action", "result"}),
		sideEffectFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "best_effort_failures_total",
			Help: "Swallowed failures of non-blocking side effects.",
		}, []string{"effect"}),
		generation: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "genai_call_duration_seconds",
			Help:    "Duration of generative model calls.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 45, 90},
		}, []string{"kind", "outcome"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "job_duration_seconds",
			Help:    "Duration of periodic worker jobs.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		httpRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route, method and status class.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
	reg.MustRegister(m.triage, m.webhookEvents, m.batchItems, m.sideEffectFailure, m.generation, m.jobDuration, m.httpRequests)
	return m
}

func (m *ShopMetrics) IncTriage(priority, source string) {
	if m == nil || m.triage == nil {
		return
	}
	m.triage.WithLabelValues(normalizeLabel(priority), normalizeLabel(source)).Inc()
}

func (m *ShopMetrics) IncWebhookEvent(eventType, outcome string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

func (m *ShopMetrics) AddBatchItems(action string, success, failed int) {
	if m == nil || m.batchItems == nil {
		return
	}
	m.batchItems.WithLabelValues(normalizeLabel(action), "success").Add(float64(success))
	m.batchItems.WithLabelValues(normalizeLabel(action), "failed").Add(float64(failed))
}

func (m *ShopMetrics) IncSideEffectFailure(effect string) {
	if m == nil || m.sideEffectFailure == nil {
		return
	}
	m.sideEffectFailure.WithLabelValues(normalizeLabel(effect)).Inc()
}

func (m *ShopMetrics) ObserveGeneration(kind string, ok bool, duration time.Duration) {
	if m == nil || m.generation == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.generation.WithLabelValues(normalizeLabel(kind), outcome).Observe(duration.Seconds())
}

func (m *ShopMetrics) ObserveJob(job string, duration time.Duration) {
	if m == nil || m.jobDuration == nil {
		return
	}
	m.jobDuration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// ObserveHTTPRequest records one request. route is the gin route
// template so unbounded paths never become label values.
func (m *ShopMetrics) ObserveHTTPRequest(route, method string, status int, duration time.Duration) {
	if m == nil || m.httpRequests == nil {
		return
	}
	m.httpRequests.WithLabelValues(normalizeLabel(route), method, statusClass(status)).Observe(duration.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
