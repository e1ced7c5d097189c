package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookRequestsTotal counts webhook requests by provider, event type and HTTP status.
	WebhookRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatpro",
		Subsystem: "billing",
		Name:      "webhook_requests_total",
		Help:      "Total webhook requests by provider, event type and HTTP status.",
	}, []string{"provider", "event_type", "status"})

	// WebhookDuration tracks webhook processing latency.
	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "chatpro",
		Subsystem: "billing",
		Name:      "webhook_duration_seconds",
		Help:      "Webhook processing duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider"})

	// EntitlementResolutions counts resolver decisions by winning source.
	EntitlementResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatpro",
		Subsystem: "entitlement",
		Name:      "resolutions_total",
		Help:      "Entitlement decisions by source.",
	}, []string{"source"})

	// EntitlementSourceErrors counts oracle reads that failed and were treated as no entitlement.
	EntitlementSourceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatpro",
		Subsystem: "entitlement",
		Name:      "source_errors_total",
		Help:      "Entitlement source lookups that failed and degraded to no entitlement.",
	}, []string{"source"})

	// UsageDecisions counts gate outcomes (allowed, denied, unlimited, failed_open).
	UsageDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatpro",
		Subsystem: "usage",
		Name:      "decisions_total",
		Help:      "Usage gate decisions by resource and outcome.",
	}, []string{"resource", "outcome"})

	// SideEffectFailures counts best-effort archive/publish failures.
	SideEffectFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatpro",
		Subsystem: "billing",
		Name:      "side_effect_failures_total",
		Help:      "Best-effort webhook side effects that failed.",
	}, []string{"kind"})
)
