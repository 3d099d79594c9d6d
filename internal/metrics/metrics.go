// Package metrics exposes Prometheus collectors for the job pipeline.
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
	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "comfy_worker_job_duration_seconds",
		Help:    "Duration of jobs executed by the worker",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	}, []string{"status"})

	jobStatusTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "comfy_worker_jobs_total",
		Help: "Jobs finished grouped by status and error code",
	}, []string{"status", "code"})

	probeAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "comfy_worker_probe_attempts",
		Help:    "Readiness probe attempts until the engine answered or the budget ran out",
		Buckets: []float64{1, 2, 5, 10, 50, 100, 250, 500},
	})

	reconnectTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "comfy_worker_ws_reconnects_total",
		Help: "Event stream reconnect attempts grouped by outcome",
	}, []string{"outcome"})

	artifactsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "comfy_worker_artifacts_total",
		Help: "Collected artifacts grouped by output encoding or failure",
	}, []string{"type"})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "comfy_api_http_requests_total",
		Help: "Job API requests grouped by method, route and status",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "comfy_api_http_request_duration_seconds",
		Help:    "Job API request duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// ObserveJob records the duration and outcome of a finished job.
// code is empty for successful jobs.
func ObserveJob(status, code string, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	if code == "" {
		code = "none"
	}
	jobDuration.WithLabelValues(status).Observe(duration.Seconds())
	jobStatusTotal.WithLabelValues(status, code).Inc()
}

// ObserveProbe records how many attempts the readiness probe used.
func ObserveProbe(attempts int) {
	probeAttempts.Observe(float64(attempts))
}

// ObserveReconnect counts one reconnect attempt ("success", "failed", "unreachable").
func ObserveReconnect(outcome string) {
	reconnectTotal.WithLabelValues(outcome).Inc()
}

// ObserveArtifact counts one collected artifact ("base64", "s3_url", "failed").
func ObserveArtifact(kind string) {
	artifactsTotal.WithLabelValues(kind).Inc()
}

// ObserveHTTP records one API request. path must be the route pattern, not the raw URL.
func ObserveHTTP(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
