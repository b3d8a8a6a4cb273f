package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"quizplay-service/internal/domain"
)

// Metrics holds the service collectors. It implements app.AttemptObserver and
// backend.RequestObserver.
type Metrics struct {
	registry *prometheus.Registry

	attemptsStarted  prometheus.Counter
	startFailures    prometheus.Counter
	attemptsFinished *prometheus.CounterVec
	attemptsOpen     prometheus.Gauge
	backendRequests  *prometheus.CounterVec
	backendDuration  *prometheus.HistogramVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		attemptsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_attempts_started_total",
			Help: "Attempts successfully started",
		}),
		startFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_attempt_start_failures_total",
			Help: "Attempts whose start request failed",
		}),
		attemptsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_attempts_finished_total",
			Help: "Attempts submitted, by trigger and outcome",
		}, []string{"trigger", "outcome"}),
		attemptsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quiz_attempts_open",
			Help: "Attempts currently hosted by this instance",
		}),
		backendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_backend_requests_total",
			Help: "Requests sent to the quiz backend",
		}, []string{"endpoint", "status"}),
		backendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quiz_backend_request_duration_seconds",
			Help:    "Duration of quiz backend requests",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
		}, []string{"endpoint"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		}, []string{"method", "endpoint"}),
	}
	m.registry.MustRegister(
		m.attemptsStarted, m.startFailures, m.attemptsFinished, m.attemptsOpen,
		m.backendRequests, m.backendDuration, m.httpRequests, m.httpDuration,
	)
	return m
}

// Registry exposes the underlying registry (tests).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) AttemptOpened()      { m.attemptsOpen.Inc() }
func (m *Metrics) AttemptReleased()    { m.attemptsOpen.Dec() }
func (m *Metrics) AttemptStarted()     { m.attemptsStarted.Inc() }
func (m *Metrics) AttemptStartFailed() { m.startFailures.Inc() }

func (m *Metrics) AttemptFinished(trigger domain.FinishTrigger, err error) {
	outcome := "ok"
	switch {
	case errors.Is(err, domain.ErrAttemptClosed):
		outcome = "torn_down"
	case err != nil:
		outcome = "error"
	}
	m.attemptsFinished.WithLabelValues(string(trigger), outcome).Inc()
}

func (m *Metrics) ObserveBackendRequest(endpoint string, status int, elapsed time.Duration) {
	m.backendRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	m.backendDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// Middleware records request counts and latency, labelled by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		endpoint := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			endpoint = rctx.RoutePattern()
		}
		m.httpRequests.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
