package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	OrdersSubmittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_submitted_total",
			Help: "Total number of accepted order submissions",
		},
	)

	OrderExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_executions_total",
			Help: "Total number of finished order executions by terminal status",
		},
		[]string{"status"},
	)

	OrderExecutionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "order_execution_duration_seconds",
			Help:    "Duration of a full order execution including retries",
			Buckets: prometheus.DefBuckets,
		},
	)

	OrderExecutionAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "order_execution_attempts",
			Help:    "Number of attempts a finished execution needed",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	LifecycleEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_events_total",
			Help: "Total number of lifecycle events appended to the active store",
		},
		[]string{"status"},
	)

	StreamEventsDeliveredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_events_delivered_total",
			Help: "Total number of lifecycle events delivered to stream connections",
		},
		[]string{"status"},
	)

	ActiveStreamConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_stream_connections",
			Help: "Number of open lifecycle streaming connections",
		},
	)

	VenueQuotesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "venue_quotes_total",
			Help: "Total number of venue quotes served",
		},
		[]string{"venue"},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by route and status code",
		},
		[]string{"method", "route", "code"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

func Register() {
	prometheus.MustRegister(OrdersSubmittedTotal)
	prometheus.MustRegister(OrderExecutionsTotal)
	prometheus.MustRegister(OrderExecutionDuration)
	prometheus.MustRegister(OrderExecutionAttempts)
	prometheus.MustRegister(LifecycleEventsTotal)
	prometheus.MustRegister(StreamEventsDeliveredTotal)
	prometheus.MustRegister(ActiveStreamConnections)
	prometheus.MustRegister(VenueQuotesTotal)
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
}
