package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	httpRequestsTotal    *prometheus.CounterVec
	httpLatencySeconds   *prometheus.HistogramVec
	httpErrorsTotal      *prometheus.CounterVec
	submissionsTotal     *prometheus.CounterVec
	gradingQueueDepth    *prometheus.GaugeVec
	gradingQueueRejected *prometheus.CounterVec
	gradingWorkersActive *prometheus.GaugeVec
	rosterRowsTotal      *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grader_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grader_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grader_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		submissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grader_submissions_total",
			Help: "Processed submissions by outcome.",
		}, []string{"outcome"})

		gradingQueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "grader_queue_depth",
			Help: "Number of tasks waiting in a worker queue.",
		}, []string{"pool"})

		gradingQueueRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grader_queue_rejected_total",
			Help: "Tasks rejected because the worker queue was full.",
		}, []string{"pool"})

		gradingWorkersActive = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "grader_workers_active",
			Help: "Workers currently executing a task.",
		}, []string{"pool"})

		rosterRowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grader_roster_rows_total",
			Help: "Roster rows processed by result.",
		}, []string{"result"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			submissionsTotal,
			gradingQueueDepth,
			gradingQueueRejected,
			gradingWorkersActive,
			rosterRowsTotal,
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

// Submissions counts processed submissions labelled graded, grading_failed or dropped.
func Submissions() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionsTotal
}

func QueueDepth() *prometheus.GaugeVec {
	RegisterMetrics()
	return gradingQueueDepth
}

func QueueRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingQueueRejected
}

func WorkersActive() *prometheus.GaugeVec {
	RegisterMetrics()
	return gradingWorkersActive
}

// RosterRows counts imported roster rows labelled imported or skipped.
func RosterRows() *prometheus.CounterVec {
	RegisterMetrics()
	return rosterRowsTotal
}
