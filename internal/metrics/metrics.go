package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sharebox_http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sharebox_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sharebox_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Domain
var (
	AccessDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sharebox_access_decisions_total",
			Help: "Access decisions by requested action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	UploadChunks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sharebox_upload_chunks_total",
		Help: "Chunks accepted into staging.",
	})

	Uploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sharebox_uploads_total",
			Help: "Finished chunked uploads by result.",
		},
		[]string{"result"},
	)

	UploadBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sharebox_upload_bytes_total",
		Help: "Bytes written by completed uploads.",
	})

	ActivityWriteFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sharebox_activity_write_failures_total",
		Help: "Best-effort activity records that could not be stored.",
	})

	ReplicaFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sharebox_replica_failures_total",
			Help: "Replica operations that failed, by operation.",
		},
		[]string{"op"},
	)

	StagingCleaned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sharebox_staging_cleaned_total",
		Help: "Abandoned upload staging directories removed.",
	})
)

var registerOnce sync.Once

// Init registers all collectors with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			AccessDecisions, UploadChunks, Uploads, UploadBytes,
			ActivityWriteFailures, ReplicaFailures, StagingCleaned,
		)
	})
}

// Handler serves the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument records request count, latency and in-flight requests.
// The matched mux pattern is used as the route label to keep cardinality bounded.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code        int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.code = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
