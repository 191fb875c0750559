// Package telemetry holds the service's Prometheus families and the zap
// logger construction. Metrics are package-global and registered eagerly;
// callers touch them through the exported variables so instrumentation
// stays a one-liner at the call site.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP surface.
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sortbench_requests_total",
		Help: "HTTP requests by route and status code",
	}, []string{"route", "status"})
	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sortbench_request_duration_seconds",
		Help:    "Wall-clock request duration by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	// Job lifecycle.
	JobsRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sortbench_jobs_running",
		Help: "Jobs currently executing on this instance",
	})
	JobsSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sortbench_jobs_submitted_total",
		Help: "Jobs accepted by POST /jobs",
	})
	JobsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sortbench_jobs_completed_total",
		Help: "Jobs reaching a terminal state, by result",
	}, []string{"result"})
	JobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sortbench_job_duration_seconds",
		Help:    "Started-to-finished job duration, by result",
		Buckets: []float64{0.01, 0.05, 0.25, 1, 5, 15, 30, 60, 120, 300},
	}, []string{"result"})

	// Engine execution.
	RunDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sortbench_run_duration_seconds",
		Help:    "Engine invocation duration by mode, distribution and element type",
		Buckets: []float64{0.001, 0.005, 0.025, 0.1, 0.5, 1, 2.5, 10, 30, 60, 120},
	}, []string{"mode", "dist", "type"})

	// Durable-mode worker pool.
	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sortbench_queue_depth",
		Help: "Pending jobs visible to the worker pool",
	})
	WorkersBusy = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sortbench_workers_busy",
		Help: "Workers currently executing a leased job",
	})

	// Sync-run result cache.
	CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sortbench_cache_hits_total",
		Help: "POST /run responses served from the result cache",
	})
	CacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sortbench_cache_misses_total",
		Help: "POST /run cache lookups that fell through to the engine",
	})
)

func init() {
	// Fail fast on duplicate registration.
	prometheus.MustRegister(
		RequestsTotal, RequestDuration,
		JobsRunning, JobsSubmitted, JobsCompleted, JobDuration,
		RunDuration,
		QueueDepth, WorkersBusy,
		CacheHits, CacheMisses,
	)
}

// MetricsHandler serves the Prometheus exposition format.
func MetricsHandler() http.Handler { return promhttp.Handler() }
