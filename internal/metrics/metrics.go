// Package metrics exports Prometheus metrics for the onboarding service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "localboxs"

// Step outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Metrics holds the onboarding Prometheus metrics.
type Metrics struct {
	registry *prometheus.Registry

	// Pipeline metrics
	OnboardTotal    *prometheus.CounterVec
	OnboardDuration prometheus.Histogram
	StepTotal       *prometheus.CounterVec
	StepDuration    *prometheus.HistogramVec
	Compensations   *prometheus.CounterVec

	// Degradation metrics
	BotSetupSkipped prometheus.Counter

	// Reconciler metrics
	ReconcileRuns    prometheus.Counter
	ReconcileDrifted prometheus.Gauge
	ReconcilePruned  prometheus.Counter

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	HTTPInFlight prometheus.Gauge
}

// New registers the metrics on a fresh registry that also carries the Go
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{registry: reg}
	factory := promauto.With(reg)
	initPipelineMetrics(m, factory)
	initReconcileMetrics(m, factory)
	initHTTPMetrics(m, factory)
	return m
}

func initPipelineMetrics(m *Metrics, f promauto.Factory) {
	m.OnboardTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "onboard_requests_total",
		Help:      "Onboarding requests by HTTP status code",
	}, []string{"status"})

	m.OnboardDuration = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "onboard_duration_seconds",
		Help:      "End to end onboarding duration",
		Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 300},
	})

	m.StepTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "onboard_steps_total",
		Help:      "Pipeline steps by name and outcome",
	}, []string{"step", "outcome"})

	m.StepDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "onboard_step_duration_seconds",
		Help:      "Duration of each pipeline step",
		Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 30, 90},
	}, []string{"step"})

	m.Compensations = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "onboard_compensations_total",
		Help:      "Compensating actions run after a required step failed",
	}, []string{"step", "outcome"})

	m.BotSetupSkipped = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "onboard_bot_setup_skipped_total",
		Help:      "Onboardings that completed without bot or workflow setup",
	})
}

func initReconcileMetrics(m *Metrics, f promauto.Factory) {
	m.ReconcileRuns = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_runs_total",
		Help:      "Registry drift reconciliation runs",
	})

	m.ReconcileDrifted = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "reconcile_drifted_entries",
		Help:      "Registry entries whose inbox was missing on the last run",
	})

	m.ReconcilePruned = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_pruned_total",
		Help:      "Registry entries pruned because their inbox was missing",
	})
}

func initHTTPMetrics(m *Metrics, f promauto.Factory) {
	m.HTTPRequests = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status code",
	}, []string{"method", "route", "status"})

	m.HTTPDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration by method and route",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	m.HTTPInFlight = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_requests_in_flight",
		Help:      "HTTP requests currently being served",
	})
}

// Middleware records request count, duration and in-flight requests.
// Unmatched paths share the "unmatched" route label.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.HTTPInFlight.Inc()
		defer m.HTTPInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry for /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordStep counts one step outcome and its duration. Nil-safe.
func (m *Metrics) RecordStep(step, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.StepTotal.WithLabelValues(step, outcome).Inc()
	if outcome != OutcomeSkipped {
		m.StepDuration.WithLabelValues(step).Observe(d.Seconds())
	}
}

// RecordCompensation counts one compensating action. Nil-safe.
func (m *Metrics) RecordCompensation(step string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeFailed
	}
	m.Compensations.WithLabelValues(step, outcome).Inc()
}

// RecordOnboard counts a finished request. Nil-safe.
func (m *Metrics) RecordOnboard(status int, botSkipped bool, d time.Duration) {
	if m == nil {
		return
	}
	m.OnboardTotal.WithLabelValues(statusLabel(status)).Inc()
	m.OnboardDuration.Observe(d.Seconds())
	if botSkipped {
		m.BotSetupSkipped.Inc()
	}
}

// RecordReconcile records one reconciler run. Nil-safe.
func (m *Metrics) RecordReconcile(drifted, pruned int) {
	if m == nil {
		return
	}
	m.ReconcileRuns.Inc()
	m.ReconcileDrifted.Set(float64(drifted))
	m.ReconcilePruned.Add(float64(pruned))
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	default:
		return "2xx"
	}
}
