package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CheckoutSessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_checkout_sessions_total",
			Help: "Checkout session requests by product type and result",
		},
		[]string{"product_type", "result"},
	)

	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_webhook_events_total",
			Help: "Provider webhook deliveries by event type and result",
		},
		[]string{"event_type", "result"},
	)

	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_jobs_processed_total",
			Help: "Background jobs by type and final status",
		},
		[]string{"job_type", "status"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "storefront_job_duration_seconds",
			Help: "Duration of background job processing in seconds",
		},
		[]string{"job_type"},
	)

	JobQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storefront_job_queue_depth",
			Help: "Jobs waiting in or taken from the Redis queue",
		},
		[]string{"list"},
	)

	JobStatusCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storefront_job_status_count",
			Help: "Job counters kept in Redis by status",
		},
		[]string{"status"},
	)

	SubscriptionsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_subscriptions_expired_total",
			Help: "Active subscriptions moved to inactive by the expiry sweeper",
		},
	)
)

// Handler exposes the default registry in the Prometheus text format.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
