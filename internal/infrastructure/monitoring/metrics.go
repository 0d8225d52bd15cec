package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing, so components can take it as an optional dependency.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Icon resolution metrics
	Resolutions     *prometheus.CounterVec
	ProbeOutcomes   *prometheus.CounterVec
	ResolveDuration prometheus.Histogram
	FetchFailures   *prometheus.CounterVec
	Unavailable     *prometheus.CounterVec

	// Handle cache metrics
	HandlesLive prometheus.Gauge
	Revocations prometheus.Counter

	// Storage metrics
	StorageErrors *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge

	gatherer prometheus.Gatherer

	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current values for the JSON health endpoint
type Snapshot struct {
	TotalRequests int64            `json:"total_requests"`
	TotalErrors   int64            `json:"total_errors"`
	Resolutions   map[string]int64 `json:"resolutions"`
	HandlesLive   int64            `json:"handles_live"`
}

// NewMetrics creates a metrics collector registered on reg. Passing a fresh
// prometheus.NewRegistry() keeps tests independent of the global registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		gatherer: reg,
		snapshot: Snapshot{Resolutions: make(map[string]int64)},

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kyvyrn_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kyvyrn_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		Resolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kyvyrn_icon_resolutions_total",
				Help: "Icons installed, by origin",
			},
			[]string{"origin"},
		),
		ProbeOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kyvyrn_icon_probe_outcomes_total",
				Help: "Probe results by probe and outcome (hit, miss)",
			},
			[]string{"probe", "outcome"},
		),
		ResolveDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kyvyrn_icon_resolve_duration_seconds",
				Help:    "Time spent resolving and materializing one icon",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		FetchFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kyvyrn_icon_fetch_failures_total",
				Help: "Winning candidates whose bytes could not be used",
			},
			[]string{"origin"},
		),
		Unavailable: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kyvyrn_icon_unavailable_total",
				Help: "Coordinator operations that ended without an icon",
			},
			[]string{"operation"},
		),

		HandlesLive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "kyvyrn_icon_handles_live",
				Help: "Live display handles held by the cache",
			},
		),
		Revocations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "kyvyrn_icon_handle_revocations_total",
				Help: "Display handles revoked after replacement or eviction",
			},
		),

		StorageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kyvyrn_icon_storage_errors_total",
				Help: "Storage collaborator failures by operation",
			},
			[]string{"op"},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "kyvyrn_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
	}

	return m
}

// Handler serves the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordResolution records an installed icon and how long it took
func (m *Metrics) RecordResolution(origin string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(origin).Inc()
	m.ResolveDuration.Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.Resolutions[origin]++
	m.mu.Unlock()
}

// RecordProbe records a single probe outcome
func (m *Metrics) RecordProbe(probe string, hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.ProbeOutcomes.WithLabelValues(probe, outcome).Inc()
}

// RecordFetchFailure records a candidate that fell back to the rasterizer
func (m *Metrics) RecordFetchFailure(origin string) {
	if m == nil {
		return
	}
	m.FetchFailures.WithLabelValues(origin).Inc()
}

// RecordUnavailable records a coordinator operation that produced no icon
func (m *Metrics) RecordUnavailable(operation string) {
	if m == nil {
		return
	}
	m.Unavailable.WithLabelValues(operation).Inc()
}

// SetHandlesLive sets the number of live handles
func (m *Metrics) SetHandlesLive(count int) {
	if m == nil {
		return
	}
	m.HandlesLive.Set(float64(count))

	m.mu.Lock()
	m.snapshot.HandlesLive = int64(count)
	m.mu.Unlock()
}

// IncRevocations increments the revoked handle counter
func (m *Metrics) IncRevocations() {
	if m == nil {
		return
	}
	m.Revocations.Inc()
}

// RecordStorageError records a failed storage operation
func (m *Metrics) RecordStorageError(op string) {
	if m == nil {
		return
	}
	m.StorageErrors.WithLabelValues(op).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}

// Snapshot returns a copy of the current values
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{Resolutions: map[string]int64{}}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := m.snapshot
	out.Resolutions = make(map[string]int64, len(m.snapshot.Resolutions))
	for k, v := range m.snapshot.Resolutions {
		out.Resolutions[k] = v
	}
	return out
}
