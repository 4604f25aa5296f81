package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/ticket-sla/internal/sla"
)

// Metrics holds the service collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry         *prometheus.Registry
	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	errors           *prometheus.CounterVec
	sweepRuns        *prometheus.CounterVec
	sweepTickets     *prometheus.CounterVec
	sweepDuration    prometheus.Histogram
	slaStatus        *prometheus.GaugeVec
	evaluationErrors *prometheus.CounterVec
}

// NewMetrics registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "HTTP error responses by route, method and error code",
		}, []string{"route", "method", "code"}),
		sweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sla_sweep_runs_total",
			Help: "SLA sweep runs by result",
		}, []string{"result"}),
		sweepTickets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sla_sweep_tickets_total",
			Help: "Tickets processed by the SLA sweep by outcome",
		}, []string{"outcome"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sla_sweep_duration_seconds",
			Help:    "Wall time of a full SLA sweep",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		slaStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sla_tickets",
			Help: "Unanswered tickets by SLA status as of the last sweep",
		}, []string{"status"}),
		evaluationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sla_evaluation_errors_total",
			Help: "SLA engine failures by operation",
		}, []string{"op"}),
	}
	m.registry.MustRegister(
		m.requests,
		m.requestDuration,
		m.errors,
		m.sweepRuns,
		m.sweepTickets,
		m.sweepDuration,
		m.slaStatus,
		m.evaluationErrors,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// RecordSweep records one finished sweep.
func (m *Metrics) RecordSweep(checked, changed, failed int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.sweepRuns.WithLabelValues(result).Inc()
	m.sweepTickets.WithLabelValues("checked").Add(float64(checked))
	m.sweepTickets.WithLabelValues("changed").Add(float64(changed))
	m.sweepTickets.WithLabelValues("failed").Add(float64(failed))
	m.sweepDuration.Observe(duration.Seconds())
}

// SetStatusCounts publishes the per status ticket counts.
func (m *Metrics) SetStatusCounts(counts map[sla.Status]int) {
	if m == nil {
		return
	}
	for _, st := range []sla.Status{sla.StatusNormal, sla.StatusWarn, sla.StatusOverdue} {
		m.slaStatus.WithLabelValues(string(st)).Set(float64(counts[st]))
	}
}

// RecordEvaluationError counts an SLA engine failure.
func (m *Metrics) RecordEvaluationError(op string) {
	if m == nil {
		return
	}
	m.evaluationErrors.WithLabelValues(op).Inc()
}
