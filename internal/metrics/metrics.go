package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SnapshotWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classquiz_progress_snapshot_writes_total",
			Help: "Progress snapshot writes by result",
		},
		[]string{"result"},
	)

	AttemptsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classquiz_attempts_started_total",
			Help: "Attempt sessions opened, by how they were initialised",
		},
		[]string{"mode"}, // fresh|resumed|live
	)

	AttemptsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classquiz_attempts_submitted_total",
			Help: "Attempt submissions by result",
		},
		[]string{"result"},
	)

	AttemptsGraded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "classquiz_attempts_graded_total",
			Help: "Theory marks applied to submitted attempts",
		},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "classquiz_active_sessions",
			Help: "In-progress attempt sessions held in memory",
		},
	)

	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"method", "endpoint"},
	)
)

func init() {
	prometheus.MustRegister(
		SnapshotWrites,
		AttemptsStarted,
		AttemptsSubmitted,
		AttemptsGraded,
		ActiveSessions,
		RequestCounter,
		RequestDuration,
	)
}

// Middleware records request counts and latency per chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			endpoint = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RequestCounter.WithLabelValues(r.Method, endpoint, strconv.Itoa(status)).Inc()
		RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

func Handler() http.Handler { return promhttp.Handler() }
