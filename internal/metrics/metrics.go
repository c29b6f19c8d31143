package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000},
		},
		[]string{"method", "endpoint"},
	)

	// Database metrics
	dbConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	dbConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	dbQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	// Business metrics
	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Total number of admin login attempts",
		},
		[]string{"status"}, // success, failure
	)

	contactSubmissionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "contact_submissions_total",
			Help: "Total number of contact form submissions",
		},
	)

	visitsRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visits_recorded_total",
			Help: "Total number of page visits recorded",
		},
		[]string{"status"}, // success, failure
	)

	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Total number of submission notification emails",
		},
		[]string{"status"}, // sent, failed, dropped
	)

	sessionsPurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_purged_total",
			Help: "Total number of expired sessions removed",
		},
	)

	workerJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_total",
			Help: "Total number of background jobs processed",
		},
		[]string{"status"}, // success, failure, rejected
	)

	workerQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Number of background jobs waiting in the queue",
		},
	)
)

// PrometheusMiddleware creates a middleware that records Prometheus metrics
func PrometheusMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		statusCode := strconv.Itoa(wrapped.statusCode)
		endpoint := EndpointLabel(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, endpoint, statusCode).Inc()
		httpRequestDuration.WithLabelValues(r.Method, endpoint, statusCode).Observe(duration)
		httpResponseSize.WithLabelValues(r.Method, endpoint).Observe(float64(wrapped.size))
	})
}

var (
	endpointsMu sync.RWMutex
	endpoints   = map[string]struct{}{"/": {}}
)

// RegisterEndpoint adds a mounted route path to the endpoint label set.
func RegisterEndpoint(path string) {
	endpointsMu.Lock()
	endpoints[path] = struct{}{}
	endpointsMu.Unlock()
}

// EndpointLabel maps a request path onto a bounded label set: registered
// routes keep their path, static assets share one label and everything
// else is "other".
func EndpointLabel(path string) string {
	endpointsMu.RLock()
	_, ok := endpoints[path]
	endpointsMu.RUnlock()
	switch {
	case ok:
		return path
	case strings.HasPrefix(path, "/static/"):
		return "/static"
	default:
		return "other"
	}
}

// responseWriter wraps http.ResponseWriter to capture status code and response size
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

// RecordAuthAttempt records an authentication attempt
func RecordAuthAttempt(success bool) {
	authAttemptsTotal.WithLabelValues(outcome(success, "success", "failure")).Inc()
}

// RecordContactSubmission records a new contact form submission
func RecordContactSubmission() {
	contactSubmissionsTotal.Inc()
}

// RecordVisit records a visit insert attempt
func RecordVisit(success bool) {
	visitsRecordedTotal.WithLabelValues(outcome(success, "success", "failure")).Inc()
}

// RecordNotification records the outcome of a notification email
func RecordNotification(status string) {
	notificationsTotal.WithLabelValues(status).Inc()
}

// RecordSessionsPurged records removed expired sessions
func RecordSessionsPurged(n int64) {
	sessionsPurgedTotal.Add(float64(n))
}

// RecordWorkerJob records a background job result
func RecordWorkerJob(status string) {
	workerJobsTotal.WithLabelValues(status).Inc()
}

// SetWorkerQueueDepth updates the queued job gauge
func SetWorkerQueueDepth(n int) {
	workerQueueDepth.Set(float64(n))
}

// RecordDBQuery records a database query
func RecordDBQuery(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	dbQueriesTotal.WithLabelValues(operation, status).Inc()
	dbQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnections updates database connection metrics
func UpdateDBConnections(active, idle int) {
	dbConnectionsActive.Set(float64(active))
	dbConnectionsIdle.Set(float64(idle))
}

func outcome(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
