// Package gwmetrics holds the Prometheus collectors for the reader gateway.
package gwmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookRequestsTotal counts Stripe webhook requests by event type and status.
	WebhookRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "readergate",
		Name:      "webhook_requests_total",
		Help:      "Total Stripe webhook requests by event type and HTTP status.",
	}, []string{"event_type", "status"})

	// WebhookDuration tracks Stripe webhook processing latency.
	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "readergate",
		Name:      "webhook_duration_seconds",
		Help:      "Stripe webhook processing duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event_type"})

	// AccessDecisionsTotal counts access gate outcomes for protected reader requests.
	AccessDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "readergate",
		Name:      "access_decisions_total",
		Help:      "Access gate decisions by outcome.",
	}, []string{"decision"})

	// VerificationsTotal counts entitlement verification outcomes across all entry points.
	VerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "readergate",
		Name:      "verifications_total",
		Help:      "Purchase verification outcomes by entry point and result.",
	}, []string{"entry_point", "result"})
)
