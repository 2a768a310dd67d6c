package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chamberlink_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chamberlink_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Messaging metrics
	ThreadsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chamberlink_threads_created_total",
			Help: "Total threads created",
		},
	)

	MessagesAppended = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chamberlink_messages_appended_total",
			Help: "Total messages appended",
		},
	)

	ReceiptsUpdated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chamberlink_receipts_updated_total",
			Help: "Total read receipt updates",
		},
	)

	AppendRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chamberlink_append_retries_total",
			Help: "Total append retries after a transient store failure",
		},
	)

	// Realtime metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chamberlink_events_published_total",
			Help: "Total events published to the hub",
		},
		[]string{"kind"},
	)

	ActiveSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chamberlink_active_subscribers",
			Help: "Currently registered thread subscribers",
		},
	)

	SubscribersDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chamberlink_subscribers_dropped_total",
			Help: "Subscribers dropped for not draining their event queue",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chamberlink_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)
)
