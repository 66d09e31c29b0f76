package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
	httpErrorsTotal    *prometheus.CounterVec

	gradingMutationsTotal  *prometheus.CounterVec
	gradingLockRejections  *prometheus.CounterVec
	notificationsPublished *prometheus.CounterVec
	notificationsDropped   prometheus.Counter
	sseClientsActive       prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors exposed on /metrics.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		gradingMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_mutations_total",
			Help: "Gradebook write operations by outcome.",
		}, []string{"operation", "outcome"})

		gradingLockRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_locked_rejections_total",
			Help: "Writes rejected because the course gradebook is finalized or archived.",
		}, []string{"operation"})

		notificationsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "Notifications delivered to subscribers by type.",
		}, []string{"type"})

		notificationsDropped = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notifications_dropped_total",
			Help: "Notifications discarded because the dispatch queue was full.",
		})

		sseClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sse_clients_active",
			Help: "Currently connected notification stream clients.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			gradingMutationsTotal,
			gradingLockRejections,
			notificationsPublished,
			notificationsDropped,
			sseClientsActive,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the error response counter.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// GradingMutations counts ledger writes by operation and outcome.
func GradingMutations() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingMutationsTotal
}

// GradingLockRejections counts writes refused by the finalize barrier.
func GradingLockRejections() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingLockRejections
}

func NotificationsPublishedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsPublished
}

func NotificationsDroppedTotal() prometheus.Counter {
	RegisterMetrics()
	return notificationsDropped
}

func SSEClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return sseClientsActive
}
