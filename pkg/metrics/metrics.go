// Package metrics provides Prometheus instrumentation for the worker pool
// and its small admin HTTP surface.
//
// Wire the job metrics straight from the worker loop — no middleware
// needed there, since the pool never serves HTTP:
//
//	start := time.Now()
//	err := handler.Handle(conn, args)
//	metrics.RecordJob(queueName, outcome, start)
//
// The admin server (cmd/foremanctl) additionally uses Middleware() to
// instrument its own handful of routes (/metrics, /healthz, /dead-letter),
// and mounts Handler() at /metrics for Prometheus to scrape.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ─────────────────────────────────────────────
// Built-in worker metrics
// ─────────────────────────────────────────────

var (
	// JobsProcessed counts every job outcome, split by queue and outcome
	// ("success", "retried", "deadlettered", and "unknown_job" for names
	// with no registered handler).
	JobsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "foreman",
			Subsystem: "worker",
			Name:      "jobs_total",
			Help:      "Total jobs processed, by queue and outcome.",
		},
		[]string{"queue", "outcome"},
	)

	// JobDuration tracks how long handler invocations take, by queue.
	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "foreman",
			Subsystem: "worker",
			Name:      "job_duration_seconds",
			Help:      "Duration of handler invocations in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"queue"},
	)

	// QueueDepth is a per-queue gauge for the size of each logical queue.
	// It is registered here but nothing in this module sets it; a host
	// application that wants it populated sets it from Connection.Size.
	// Like Size itself, a zero reading does not imply no worker is
	// currently executing a job popped earlier.
	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "foreman",
			Subsystem: "worker",
			Name:      "queue_depth",
			Help:      "Last-observed number of envelopes in a queue.",
		},
		[]string{"queue"},
	)

	// ActiveWorkers reports how many worker goroutines are running, per
	// queue: the pool increments it when a worker starts and decrements it
	// when the worker exits, so a worker blocked in pop counts as well as
	// one executing a handler.
	ActiveWorkers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "foreman",
			Subsystem: "worker",
			Name:      "active",
			Help:      "Number of running workers.",
		},
		[]string{"queue"},
	)

	// DBQueryDuration tracks dead-letter-mirror query latency.
	DBQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "foreman",
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Duration of dead-letter-mirror queries in seconds.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .5, 1},
		},
		[]string{"operation"},
	)

	// AdminRequestDuration / AdminRequestTotal instrument the admin HTTP
	// surface itself (not job execution).
	AdminRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "foreman",
			Subsystem: "admin",
			Name:      "request_duration_seconds",
			Help:      "Duration of admin HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	AdminRequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "foreman",
			Subsystem: "admin",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
)

// ─────────────────────────────────────────────
// Registry
// ─────────────────────────────────────────────

// DefaultRegistry is the Prometheus registry Foreman publishes under.
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(collectors.NewGoCollector())
	DefaultRegistry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	DefaultRegistry.MustRegister(
		JobsProcessed,
		JobDuration,
		QueueDepth,
		ActiveWorkers,
		DBQueryDuration,
		AdminRequestDuration,
		AdminRequestTotal,
	)
}

// Register lets host applications add their own prometheus.Collector to
// Foreman's registry.
func Register(c prometheus.Collector) error {
	return DefaultRegistry.Register(c)
}

// MustRegister panics if registration fails.
func MustRegister(c ...prometheus.Collector) {
	DefaultRegistry.MustRegister(c...)
}

// ─────────────────────────────────────────────
// Job-loop helpers
// ─────────────────────────────────────────────

// RecordJob records a single job outcome and the time its handler took.
func RecordJob(queue, outcome string, start time.Time) {
	JobsProcessed.WithLabelValues(queue, outcome).Inc()
	JobDuration.WithLabelValues(queue).Observe(time.Since(start).Seconds())
}

// ObserveDBQuery records a dead-letter-mirror query duration.
func ObserveDBQuery(operation string, start time.Time) {
	DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// ─────────────────────────────────────────────
// Admin HTTP middleware
// ─────────────────────────────────────────────

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware instruments the admin HTTP surface (duration + count per
// method/path/status). It has nothing to do with job execution.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rr := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rr, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rr.status)

			AdminRequestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(duration)
			AdminRequestTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		})
	}
}

// Handler exposes the Prometheus metrics page. Mount at GET /metrics.
func Handler() http.HandlerFunc {
	h := promhttp.HandlerFor(DefaultRegistry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	return h.ServeHTTP
}
