// Package metrics defines Prometheus metrics for cobuy.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cobuy_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cobuy_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cobuy_errors_total",
			Help: "Total errors by type",
		},
		[]string{"type"},
	)

	TrainingRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cobuy_training_runs_total",
			Help: "Training runs by outcome (success, insufficient_data, failed)",
		},
		[]string{"result"},
	)

	TrainingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cobuy_training_duration_seconds",
			Help:    "Wall time of one training run",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	TrainQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cobuy_train_queue_depth",
			Help: "Current background training queue depth",
		},
	)

	RecommendationsServed = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cobuy_recommendations_served",
			Help:    "Number of suggestions returned per recommendation request",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
		},
	)

	ArtifactLoadFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cobuy_artifact_load_failures_total",
			Help: "Artifact loads that failed for reasons other than a missing model",
		},
	)

	SalesNotifications = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cobuy_sales_notifications_total",
			Help: "sales_committed notifications received from the database",
		},
	)

	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cobuy_websocket_connections",
			Help: "Active WebSocket connections",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal, ErrorsTotal,
		TrainingRunsTotal, TrainingDuration, TrainQueueDepth,
		RecommendationsServed, ArtifactLoadFailures, SalesNotifications,
		WSConnections,
	)
}
