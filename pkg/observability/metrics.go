package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/aretw0/carecall/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for call activity.
type Metrics struct {
	registry *prometheus.Registry

	StepVisits     *prometheus.CounterVec
	NoMatches      *prometheus.CounterVec
	CallsCompleted *prometheus.CounterVec
	Fallbacks      *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
}

// NewMetrics registers the carecall collectors, plus the Go and process
// collectors, on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		StepVisits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "carecall_step_visits_total",
				Help: "Total number of script steps entered",
			},
			[]string{"scenario_id", "step_id"},
		),
		NoMatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "carecall_no_match_total",
				Help: "Replies that matched no accepted category",
			},
			[]string{"scenario_id", "step_id"},
		),
		CallsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "carecall_calls_completed_total",
				Help: "Calls that reached the end of their script",
			},
			[]string{"scenario_id"},
		),
		Fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "carecall_remote_fallbacks_total",
				Help: "Sessions that abandoned the remote responder",
			},
			[]string{"operation"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "carecall_http_request_duration_seconds",
				Help:    "Duration of backend API requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method", "code"},
		),
	}

	m.registry.MustRegister(
		m.StepVisits,
		m.NoMatches,
		m.CallsCompleted,
		m.Fallbacks,
		m.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the registry for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route, method, code string, elapsed time.Duration) {
	m.HTTPDuration.WithLabelValues(route, method, code).Observe(elapsed.Seconds())
}

// Hooks returns lifecycle hooks that count events.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepEnter: func(_ context.Context, e *domain.StepEvent) {
			m.StepVisits.WithLabelValues(e.ScenarioID, e.StepID).Inc()
		},
		OnNoMatch: func(_ context.Context, e *domain.StepEvent) {
			m.NoMatches.WithLabelValues(e.ScenarioID, e.StepID).Inc()
		},
		OnComplete: func(_ context.Context, e *domain.StepEvent) {
			m.CallsCompleted.WithLabelValues(e.ScenarioID).Inc()
		},
		OnFallback: func(_ context.Context, e *domain.FallbackEvent) {
			m.Fallbacks.WithLabelValues(e.Operation).Inc()
		},
	}
}
