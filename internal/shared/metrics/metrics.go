package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "folioops_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "folioops_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	numberCommits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "folioops_number_commits_total",
		Help: "Committed document numbers by kind and result",
	}, []string{"kind", "result"})

	numberCommitDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "folioops_number_commit_duration_seconds",
		Help:    "Duration of number allocation transactions",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	estimateConversions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "folioops_estimate_conversions_total",
		Help: "Estimate to project conversion attempts by result",
	}, []string{"result"})

	sseClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "folioops_sse_clients",
		Help: "Connected numbering event stream clients",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveCommit records one number allocation.
func ObserveCommit(kind, result string, duration time.Duration) {
	numberCommits.WithLabelValues(kind, result).Inc()
	numberCommitDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObserveConversion records one conversion attempt.
func ObserveConversion(result string) {
	estimateConversions.WithLabelValues(result).Inc()
}

func SSEClientConnected() {
	sseClients.Inc()
}

func SSEClientDisconnected() {
	sseClients.Dec()
}
