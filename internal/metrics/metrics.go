// Package metrics registers the prometheus collectors exposed on
// /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WebhookEvents counts inbound webhook deliveries by provider and
// outcome (processed, ignored, already_processed, or an error class).
var WebhookEvents = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "billing_webhook_events_total",
		Help: "Inbound payment webhook deliveries by provider and outcome.",
	},
	[]string{"provider", "outcome"},
)

// SubscriptionsExpired counts rows transitioned to expired by the sweeper.
var SubscriptionsExpired = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "billing_subscriptions_expired_total",
		Help: "Subscriptions marked expired by the sweep job.",
	},
)
