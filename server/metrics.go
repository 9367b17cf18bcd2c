package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/YuminosukeSato/mlwiz/automl"
	"github.com/YuminosukeSato/mlwiz/pkg/errors"
)

// Metrics holds the server's collectors. Each Server owns its registry so
// several servers can live in one process (tests do this).
type Metrics struct {
	registry *prometheus.Registry

	requestDuration  *prometheus.HistogramVec
	requestCounter   *prometheus.CounterVec
	evaluations      *prometheus.CounterVec
	candidateSeconds *prometheus.HistogramVec
	candidateFailure *prometheus.CounterVec
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		requestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		evaluations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mlwiz_evaluations_total",
				Help: "Completed evaluations by problem type",
			},
			[]string{"problem_type"},
		),
		candidateSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mlwiz_candidate_fit_duration_seconds",
				Help:    "Time to fit, predict and score one candidate model",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"model"},
		),
		candidateFailure: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mlwiz_candidate_failures_total",
				Help: "Candidate models that failed, by error kind",
			},
			[]string{"model", "kind"},
		),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveCandidate is an automl observer recording per-candidate metrics.
func (m *Metrics) ObserveCandidate(_ automl.ProblemType, e automl.Entry) {
	m.candidateSeconds.WithLabelValues(e.Name).Observe(e.Duration.Seconds())
	if !e.OK() {
		m.candidateFailure.WithLabelValues(e.Name, errors.KindOf(e.Err)).Inc()
	}
}

// RecordEvaluation counts a finished evaluation.
func (m *Metrics) RecordEvaluation(pt automl.ProblemType) {
	m.evaluations.WithLabelValues(pt.String()).Inc()
}

// Middleware records request duration and count per route template.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}

		next.ServeHTTP(sw, r)

		labels := prometheus.Labels{
			"method": r.Method,
			"route":  routeName(r),
			"status": strconv.Itoa(sw.statusCode()),
		}
		m.requestDuration.With(labels).Observe(time.Since(start).Seconds())
		m.requestCounter.With(labels).Inc()
	})
}

func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) statusCode() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}
