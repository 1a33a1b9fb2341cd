// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rshade/greenreport/internal/report"
)

const namespace = "greenreport"

//nolint:gochecknoglobals // Collectors register once with the default registry.
var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	ReportGenerations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "report_generations_total",
		Help:      "Report generations by report type and outcome",
	}, []string{"report_type", "outcome"})

	ReportGenerationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "report_generation_duration_seconds",
		Help:      "End-to-end report generation duration in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
	}, []string{"report_type"})

	ModelCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "model_call_duration_seconds",
		Help:      "Hosted model call duration in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"model", "outcome"})

	ParseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "report_parse_failures_total",
		Help:      "Model replies that could not be structured",
	})

	DBQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "db_query_duration_seconds",
		Help:      "Database query duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	DBActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_active_connections",
		Help:      "Number of active database connections",
	})

	DBIdleConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_idle_connections",
		Help:      "Number of idle database connections",
	})

	IngestMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_messages_total",
		Help:      "Sensor messages consumed, by result",
	}, []string{"result"})

	IngestFlushedReadings = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_flushed_readings_total",
		Help:      "Readings written by ingest flushes",
	})

	IngestFlushDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ingest_flush_duration_seconds",
		Help:      "Duration of ingest batch flushes",
		Buckets:   prometheus.DefBuckets,
	})
)

// Ingest message results.
const (
	IngestAccepted = "accepted"
	IngestRejected = "rejected"
)

// ObserveDBQuery records the duration of a database operation.
func ObserveDBQuery(operation string, start time.Time) {
	DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Recorder forwards report pipeline measurements to the collectors.
type Recorder struct{}

// NewRecorder returns a Recorder.
func NewRecorder() Recorder { return Recorder{} }

// ObserveGeneration counts a generation and records its duration.
func (Recorder) ObserveGeneration(kind report.Kind, outcome string, d time.Duration) {
	ReportGenerations.WithLabelValues(string(kind), outcome).Inc()
	ReportGenerationDuration.WithLabelValues(string(kind)).Observe(d.Seconds())
}

// ObserveModelCall records a model call.
func (Recorder) ObserveModelCall(model, outcome string, d time.Duration) {
	ModelCallDuration.WithLabelValues(model, outcome).Observe(d.Seconds())
}

// ParseFailed counts a reply that could not be structured.
func (Recorder) ParseFailed() {
	ParseFailures.Inc()
}
