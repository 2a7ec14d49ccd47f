// Package metrics exports resolver and broadcast counters for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tokgrab/internal/media"
)

const namespace = "tokgrab"

// Metrics holds the bot's collectors on a private registry, so several
// instances (one per test) never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	// ProviderOutcomes counts every provider attempt by outcome kind.
	ProviderOutcomes *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec

	// Resolutions counts finished Resolve calls: resolved, exhausted, canceled.
	Resolutions        *prometheus.CounterVec
	ResolutionDuration prometheus.Histogram

	Deliveries      *prometheus.CounterVec
	InflightUpdates prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	latency := []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30}

	return &Metrics{
		registry: reg,
		ProviderOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_outcomes_total",
			Help:      "Provider attempts by outcome.",
		}, []string{"provider", "outcome"}),
		ProviderDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_duration_seconds",
			Help:      "Latency of a single provider attempt.",
			Buckets:   latency,
		}, []string{"provider"}),
		Resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Finished link resolutions by result and winning provider.",
		}, []string{"result", "provider"}),
		ResolutionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolution_duration_seconds",
			Help:      "End-to-end latency of a link resolution.",
			Buckets:   latency,
		}),
		Deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_deliveries_total",
			Help:      "Broadcast dispatches by status.",
		}, []string{"status"}),
		InflightUpdates: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inflight_updates",
			Help:      "Updates currently being handled.",
		}),
	}
}

// Registry returns the registry backing the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveOutcome implements resolver.Observer.
func (m *Metrics) ObserveOutcome(out media.Outcome, elapsed time.Duration) {
	m.ProviderOutcomes.WithLabelValues(out.Provider, out.Kind.String()).Inc()
	m.ProviderDuration.WithLabelValues(out.Provider).Observe(elapsed.Seconds())
}

// ObserveResult implements resolver.Observer.
func (m *Metrics) ObserveResult(res media.Result, elapsed time.Duration) {
	result := "resolved"
	if !res.OK() {
		switch res.Reason {
		case media.Canceled:
			result = "canceled"
		default:
			result = "exhausted"
		}
	}
	m.Resolutions.WithLabelValues(result, res.Provider).Inc()
	m.ResolutionDuration.Observe(elapsed.Seconds())
}

// ObserveDelivery implements broadcast.Recorder.
func (m *Metrics) ObserveDelivery(success bool) {
	status := "success"
	if !success {
		status = "failed"
	}
	m.Deliveries.WithLabelValues(status).Inc()
}

// UpdateStarted and UpdateFinished track in-flight update handlers.
func (m *Metrics) UpdateStarted()  { m.InflightUpdates.Inc() }
func (m *Metrics) UpdateFinished() { m.InflightUpdates.Dec() }
