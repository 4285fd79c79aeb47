// Package metrics exposes client-side sync counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dropwatch"

// Load outcomes.
const (
	OutcomeCommitted = "committed"
	OutcomeFailed    = "failed"
	OutcomeStale     = "stale"
)

// Metrics holds all Prometheus metrics for the client.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	PushEvents   *prometheus.CounterVec
	LoadsStarted prometheus.Counter
	LoadOutcomes *prometheus.CounterVec
	LoadDuration prometheus.Histogram
	Connected    prometheus.Gauge
	ViewSize     prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New creates the metrics and registers them with reg. reg is also used to
// serve Handler; pass a fresh prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		PushEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_events_total",
			Help:      "Push channel events received, by event name.",
		}, []string{"event"}),
		LoadsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_started_total",
			Help:      "Snapshot loads started.",
		}),
		LoadOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Snapshot loads finished, by outcome.",
		}, []string{"outcome"}),
		LoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_duration_seconds",
			Help:      "Wall time of a stats+posts load.",
			Buckets:   prometheus.DefBuckets,
		}),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "push_connected",
			Help:      "1 while the push channel is live.",
		}),
		ViewSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "view_posts",
			Help:      "Posts in the current view.",
		}),
		gatherer: reg,
	}

	reg.MustRegister(m.PushEvents, m.LoadsStarted, m.LoadOutcomes, m.LoadDuration, m.Connected, m.ViewSize)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// PushEvent counts one push event.
func (m *Metrics) PushEvent(name string) {
	if m == nil {
		return
	}
	m.PushEvents.WithLabelValues(name).Inc()
}

// LoadStarted counts a load start.
func (m *Metrics) LoadStarted() {
	if m == nil {
		return
	}
	m.LoadsStarted.Inc()
}

// LoadFinished records a load outcome and its duration in seconds.
func (m *Metrics) LoadFinished(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.LoadOutcomes.WithLabelValues(outcome).Inc()
	m.LoadDuration.Observe(seconds)
}

// SetConnected records the push connection state.
func (m *Metrics) SetConnected(online bool) {
	if m == nil {
		return
	}
	if online {
		m.Connected.Set(1)
	} else {
		m.Connected.Set(0)
	}
}

// SetViewSize records the number of posts in the view.
func (m *Metrics) SetViewSize(n int) {
	if m == nil {
		return
	}
	m.ViewSize.Set(float64(n))
}
