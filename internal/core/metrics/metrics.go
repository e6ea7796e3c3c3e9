package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
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
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 15},
		},
		[]string{"method", "endpoint"},
	)

	TutorOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutor_turns_total",
			Help: "Completed tutor turns by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	StageErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutor_stage_errors_total",
			Help: "Terminal tutor failures by pipeline stage and code",
		},
		[]string{"stage", "code"},
	)

	ExtractionFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tutor_pdf_extraction_failures_total",
			Help: "PDF documents that could not be turned into text",
		},
	)

	ModelLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tutor_model_latency_seconds",
			Help:    "Latency of the language model call",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40},
		},
	)
)

var registerOnce sync.Once

// Init registers all collectors with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestCounter, RequestDuration, TutorOutcomes, StageErrors, ExtractionFailures, ModelLatency)
	})
}

// Middleware records request count and duration keyed by the chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := r.URL.Path
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

func Handler() http.Handler {
	return promhttp.Handler()
}
