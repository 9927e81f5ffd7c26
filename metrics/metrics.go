package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collabhub_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "collabhub_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Conversation metrics
	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collabhub_messages_sent_total",
			Help: "Total messages committed",
		},
	)

	DeltasPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collabhub_deltas_published_total",
			Help: "Deltas published to the broker",
		},
		[]string{"result"}, // "ok" or "error"
	)

	// Live sync metrics
	ActiveSubscriptions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "collabhub_active_subscriptions",
			Help: "Live subscriptions currently running",
		},
		[]string{"kind"}, // "messages" or "conversations"
	)

	Resyncs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collabhub_subscription_resyncs_total",
			Help: "Full snapshot reloads after a subscription was interrupted",
		},
		[]string{"kind"},
	)

	GapRepairs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collabhub_message_gap_repairs_total",
			Help: "Message sequence gaps repaired from the store",
		},
	)

	// Social graph metrics
	RatingsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collabhub_ratings_submitted_total",
			Help: "Total ratings recorded",
		},
	)

	RatingConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collabhub_rating_conflicts_total",
			Help: "Rating aggregate updates that lost a compare-and-swap race",
		},
	)

	// Push metrics
	PushNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collabhub_push_notifications_total",
			Help: "Push notifications sent to devices",
		},
		[]string{"result"},
	)

	// Generation metrics
	GenerationFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collabhub_website_generation_fallbacks_total",
			Help: "Website code requests answered with the default template after an upstream failure",
		},
	)
)
