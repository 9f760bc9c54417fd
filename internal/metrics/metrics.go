package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "echochamber_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "echochamber_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	MessagesPosted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "echochamber_messages_posted_total",
			Help: "Total messages posted",
		},
	)

	Clears = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "echochamber_clears_total",
			Help: "Total delete-all operations",
		},
		[]string{"result"}, // "ok" or "error"
	)

	// Push metrics
	ActiveSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "echochamber_ws_subscribers",
			Help: "Open WebSocket snapshot subscriptions",
		},
	)

	SnapshotsPushed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "echochamber_snapshots_pushed_total",
			Help: "Total snapshots written to WebSocket subscribers",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "echochamber_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	BlockedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "echochamber_blocked_requests_total",
			Help: "Total blocked requests",
		},
		[]string{"reason"},
	)

	// Infrastructure metrics
	BackendLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "echochamber_backend_latency_seconds",
			Help:    "Message store operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1},
		},
		[]string{"backend", "op"},
	)
)
