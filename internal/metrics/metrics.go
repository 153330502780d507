package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_http_requests_total",
			Help: "Total HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "herald_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	notificationsAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_notifications_accepted_total",
			Help: "Total notifications accepted for processing by channel",
		},
		[]string{"channel"},
	)

	notificationsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_notifications_processed_total",
			Help: "Total notifications processed by terminal status and channel",
		},
		[]string{"status", "channel"},
	)

	notificationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "herald_notification_latency_seconds",
			Help:    "Time from intake to terminal status",
			Buckets: []float64{.1, .5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"channel"},
	)

	retryAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "herald_retry_attempts_total",
			Help: "Total queue message retry attempts",
		},
	)

	deadLettered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "herald_dead_lettered_total",
			Help: "Total messages forwarded to the dead-letter queue",
		},
	)

	queueMessagesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "herald_queue_messages_in_flight",
			Help: "Current messages being processed from the request queue",
		},
	)

	poolDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "herald_worker_pool_depth",
			Help: "Jobs waiting in the async worker pool",
		},
	)

	idempotencyHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "herald_idempotency_hits_total",
			Help: "Requests short-circuited by the processed-message ledger",
		},
	)

	rateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_rate_limit_rejections_total",
			Help: "Requests rejected by rate limiter",
		},
		[]string{"client_id"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordNotificationAccepted records an intake event
func RecordNotificationAccepted(channel string) {
	notificationsAccepted.WithLabelValues(channel).Inc()
}

// RecordNotificationProcessed records a terminal processing result
func RecordNotificationProcessed(status, channel string) {
	notificationsProcessed.WithLabelValues(status, channel).Inc()
}

// RecordNotificationLatency records intake-to-terminal time
func RecordNotificationLatency(channel string, latency time.Duration) {
	notificationLatency.WithLabelValues(channel).Observe(latency.Seconds())
}

// RecordRetryAttempt records one queue message retry
func RecordRetryAttempt() {
	retryAttempts.Inc()
}

// RecordDeadLettered records a message forwarded to the DLQ
func RecordDeadLettered() {
	deadLettered.Inc()
}

// SetQueueMessagesInFlight sets the current in-flight message count
func SetQueueMessagesInFlight(count int) {
	queueMessagesInFlight.Set(float64(count))
}

// SetPoolDepth sets the async worker pool backlog size
func SetPoolDepth(count int) {
	poolDepth.Set(float64(count))
}

// RecordIdempotencyHit records a ledger-deduplicated request
func RecordIdempotencyHit() {
	idempotencyHits.Inc()
}

// RecordRateLimitRejection records a rate limit rejection
func RecordRateLimitRejection(clientID string) {
	rateLimitRejections.WithLabelValues(clientID).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns HTTP middleware that records request metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		RecordRequest(r.Method, r.URL.Path, wrapped.status, time.Since(start))
	})
}
