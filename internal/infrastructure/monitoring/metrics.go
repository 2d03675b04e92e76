package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the request pipeline and
// the browser. All methods are safe on a nil receiver so components can
// run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	// Pipeline metrics
	OpensTotal      *prometheus.CounterVec
	OpenDuration    *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec
	TransportErrors *prometheus.CounterVec
	ErrorDispatches *prometheus.CounterVec
	Redirects       *prometheus.CounterVec

	// Browser metrics
	Navigations  *prometheus.CounterVec
	HistoryDepth prometheus.Gauge

	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds running totals for JSON reporting
type Snapshot struct {
	Opens           int64   `json:"opens"`
	TransportErrors int64   `json:"transport_errors"`
	Redirects       int64   `json:"redirects"`
	Navigations     int64   `json:"navigations"`
	FailedNavs      int64   `json:"failed_navigations"`
	TotalSeconds    float64 `json:"total_seconds"`
}

// NewMetrics creates collectors registered on a private registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		OpensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "navigator_pipeline_opens_total",
				Help: "Requests completed by the pipeline",
			},
			[]string{"scheme", "status"},
		),
		OpenDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "navigator_pipeline_open_duration_seconds",
				Help:    "Time spent in the pipeline per request, redirects included",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"scheme"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "navigator_response_size_bytes",
				Help:    "Declared response body size",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"scheme"},
		),
		TransportErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "navigator_transport_errors_total",
				Help: "Transport failures by scheme",
			},
			[]string{"scheme"},
		),
		ErrorDispatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "navigator_error_dispatches_total",
				Help: "Error chain dispatches by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		Redirects: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "navigator_redirects_total",
				Help: "Redirect hops followed, by status kind",
			},
			[]string{"kind"},
		),
		Navigations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "navigator_navigations_total",
				Help: "Browser navigation verbs by outcome",
			},
			[]string{"verb", "outcome"},
		),
		HistoryDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "navigator_history_depth",
				Help: "Entries currently held in browser history",
			},
		),
	}
}

// Registry returns the registry holding every collector
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordOpen records a completed pipeline open
func (m *Metrics) RecordOpen(scheme, status string, duration time.Duration, size int64) {
	if m == nil {
		return
	}
	m.OpensTotal.WithLabelValues(scheme, status).Inc()
	m.OpenDuration.WithLabelValues(scheme).Observe(duration.Seconds())
	if size >= 0 {
		m.ResponseSize.WithLabelValues(scheme).Observe(float64(size))
	}

	m.mu.Lock()
	m.snapshot.Opens++
	m.snapshot.TotalSeconds += duration.Seconds()
	m.mu.Unlock()
}

// RecordTransportError records a transport failure
func (m *Metrics) RecordTransportError(scheme string) {
	if m == nil {
		return
	}
	m.TransportErrors.WithLabelValues(scheme).Inc()

	m.mu.Lock()
	m.snapshot.TransportErrors++
	m.mu.Unlock()
}

// RecordDispatch records an error chain dispatch; outcome is "handled",
// "declined" or "failed"
func (m *Metrics) RecordDispatch(kind, outcome string) {
	if m == nil {
		return
	}
	m.ErrorDispatches.WithLabelValues(kind, outcome).Inc()
}

// RecordRedirect records a followed redirect hop
func (m *Metrics) RecordRedirect(kind string) {
	if m == nil {
		return
	}
	m.Redirects.WithLabelValues(kind).Inc()

	m.mu.Lock()
	m.snapshot.Redirects++
	m.mu.Unlock()
}

// RecordNavigation records a browser verb
func (m *Metrics) RecordNavigation(verb string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Navigations.WithLabelValues(verb, outcome).Inc()

	m.mu.Lock()
	m.snapshot.Navigations++
	if err != nil {
		m.snapshot.FailedNavs++
	}
	m.mu.Unlock()
}

// SetHistoryDepth updates the history gauge
func (m *Metrics) SetHistoryDepth(n int) {
	if m == nil {
		return
	}
	m.HistoryDepth.Set(float64(n))
}

// Snapshot returns the running totals
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
