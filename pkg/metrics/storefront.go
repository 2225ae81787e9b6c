package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "smokeshop"

// Outcome labels shared by the counters below.
const (
	OutcomeSuccess      = "success"
	OutcomeRetry        = "retry"
	OutcomeDeadLettered = "dead_lettered"
	OutcomeDeclined     = "declined"
	OutcomePending      = "pending"
	OutcomeRejected     = "rejected"
	OutcomeDuplicate    = "duplicate"
	OutcomeError        = "error"
)

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route pattern and status code.",
	}, []string{"method", "route", "status"})
	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
	checkoutAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_attempts_total",
		Help:      "Checkout attempts by payment outcome.",
	}, []string{"outcome"})
	reconciliations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_reconciliations_total",
		Help:      "Orders settled by the reconciliation job, by final status.",
	}, []string{"status"})
	outboxPublishes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_publish_total",
		Help:      "Outbox publish attempts by event type and outcome.",
	}, []string{"event_type", "outcome"})
	webhookEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_events_total",
		Help:      "Inbound webhook deliveries by provider and outcome.",
	}, []string{"provider", "outcome"})
	emailsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "emails_sent_total",
		Help:      "Transactional emails by template and outcome.",
	}, []string{"template", "outcome"})

	registerOnce sync.Once
)

// Register attaches the storefront collectors to reg. Safe to call more than once.
func Register(reg prometheus.Registerer) {
	if reg == nil {
		return
	}
	registerOnce.Do(func() {
		reg.MustRegister(httpRequests, httpDuration, checkoutAttempts, reconciliations, outboxPublishes, webhookEvents, emailsSent)
	})
}

// ObserveHTTPRequest records a served request.
func ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	route = normalizeLabel(route)
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveCheckout counts one checkout attempt.
func ObserveCheckout(outcome string) {
	checkoutAttempts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveReconciliation counts an order moved by the reconciliation job.
func ObserveReconciliation(status string) {
	reconciliations.WithLabelValues(normalizeLabel(status)).Inc()
}

// ObserveOutboxPublish counts one outbox publish attempt.
func ObserveOutboxPublish(eventType, outcome string) {
	outboxPublishes.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// ObserveWebhook counts one webhook delivery.
func ObserveWebhook(provider, outcome string) {
	webhookEvents.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

// ObserveEmail counts one transactional email.
func ObserveEmail(template, outcome string) {
	emailsSent.WithLabelValues(normalizeLabel(template), normalizeLabel(outcome)).Inc()
}
