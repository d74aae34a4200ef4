package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the delivery engine's Prometheus collectors on a private
// registry. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	selections          *prometheus.CounterVec
	banditUpdates       *prometheus.CounterVec
	rewards             *prometheus.HistogramVec
	retentionTransition *prometheus.CounterVec
	evaluatorFailures   *prometheus.CounterVec
	sweepRuns           *prometheus.CounterVec
	sweepExpired        prometheus.Counter
	opLatency           *prometheus.HistogramVec

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	httpInflight prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		selections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "delivery_style_selections_total",
			Help: "Teaching styles chosen for new encounters.",
		}, []string{"style", "forced"}),
		banditUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "delivery_bandit_updates_total",
			Help: "Posterior updates by source (immediate or retention) and outcome.",
		}, []string{"source", "style", "success"}),
		rewards: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "delivery_reward",
			Help:    "Reward values fed to the bandit.",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		}, []string{"kind"}),
		retentionTransition: f.NewCounterVec(prometheus.CounterOpts{
			Name: "delivery_retention_check_transitions_total",
			Help: "Retention check state transitions.",
		}, []string{"to"}),
		evaluatorFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "delivery_evaluator_failures_total",
			Help: "Comprehension evaluator calls that returned no usable score.",
		}, []string{"kind"}),
		sweepRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "delivery_sweep_runs_total",
			Help: "Expiry sweep runs by result.",
		}, []string{"result"}),
		sweepExpired: f.NewCounter(prometheus.CounterOpts{
			Name: "delivery_sweep_expired_checks_total",
			Help: "Retention checks expired by the sweep.",
		}),
		opLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "delivery_operation_duration_seconds",
			Help:    "Engine operation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "outcome"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "delivery_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "delivery_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		httpInflight: f.NewGauge(prometheus.GaugeOpts{
			Name: "delivery_http_inflight_requests",
			Help: "Requests currently being served.",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveSelection(style string, forced bool) {
	if m == nil {
		return
	}
	m.selections.WithLabelValues(style, strconv.FormatBool(forced)).Inc()
}

func (m *Metrics) ObserveBanditUpdate(source, style string, success bool, reward float64) {
	if m == nil {
		return
	}
	m.banditUpdates.WithLabelValues(source, style, strconv.FormatBool(success)).Inc()
	m.rewards.WithLabelValues(source).Observe(reward)
}

func (m *Metrics) ObserveRetentionTransition(to string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.retentionTransition.WithLabelValues(to).Add(float64(n))
}

func (m *Metrics) ObserveEvaluatorFailure(kind string) {
	if m == nil {
		return
	}
	m.evaluatorFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveSweep(expired int64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.sweepRuns.WithLabelValues("error").Inc()
		return
	}
	m.sweepRuns.WithLabelValues("ok").Inc()
	m.sweepExpired.Add(float64(expired))
}

func (m *Metrics) ObserveOperation(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.opLatency.WithLabelValues(op, outcome).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncInflight() {
	if m == nil {
		return
	}
	m.httpInflight.Inc()
}

func (m *Metrics) DecInflight() {
	if m == nil {
		return
	}
	m.httpInflight.Dec()
}

func (m *Metrics) ObserveHTTP(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(method, route).Observe(dur.Seconds())
}
