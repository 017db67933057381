package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes application metrics that are safe to scrape via Prometheus.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	upstreamRequests    *prometheus.CounterVec
	cacheLookups        *prometheus.CounterVec
	fidExtractions      *prometheus.CounterVec
	refreshRunsTotal    prometheus.Counter
	refreshRunDuration  prometheus.Histogram
	activeSessions      prometheus.Gauge
}

// New creates a fresh Metrics registry with HTTP, upstream and navigation metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "explorer",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed by the explorer API",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "explorer",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests served by the explorer API",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	upstreamRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "explorer",
		Name:      "upstream_requests_total",
		Help:      "Requests sent to third-party APIs by service and status",
	}, []string{"service", "status"})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "explorer",
		Name:      "cache_lookups_total",
		Help:      "Recent-items cache lookups by result (hit, miss, stale)",
	}, []string{"result"})

	fidExtractions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "explorer",
		Name:      "fid_extractions_total",
		Help:      "FID extraction attempts by winning method",
	}, []string{"method", "success"})

	refreshRunsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "explorer",
		Name:      "refresh_runs_total",
		Help:      "Total number of background recent-mint refresh runs",
	})

	refreshRunDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "explorer",
		Name:      "refresh_run_duration_seconds",
		Help:      "Duration of background refresh runs from start to finish",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
	})

	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "explorer",
		Name:      "navigation_sessions_active",
		Help:      "Number of open navigation WebSocket sessions",
	})

	registry.MustRegister(
		httpRequests,
		httpRequestDuration,
		upstreamRequests,
		cacheLookups,
		fidExtractions,
		refreshRunsTotal,
		refreshRunDuration,
		activeSessions,
	)

	return &Metrics{
		registry:            registry,
		httpRequests:        httpRequests,
		httpRequestDuration: httpRequestDuration,
		upstreamRequests:    upstreamRequests,
		cacheLookups:        cacheLookups,
		fidExtractions:      fidExtractions,
		refreshRunsTotal:    refreshRunsTotal,
		refreshRunDuration:  refreshRunDuration,
		activeSessions:      activeSessions,
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// ObserveUpstream records one call to a third-party API. Status 0 means the
// request never produced a response (network failure, cancellation).
func (m *Metrics) ObserveUpstream(service string, status int) {
	if m == nil {
		return
	}
	m.upstreamRequests.With(prometheus.Labels{
		"service": service,
		"status":  strconv.Itoa(status),
	}).Inc()
}

// ObserveCacheLookup counts a cache lookup outcome.
func (m *Metrics) ObserveCacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveFIDExtraction counts an extraction by the method that produced the result.
func (m *Metrics) ObserveFIDExtraction(method string, success bool) {
	if m == nil {
		return
	}
	m.fidExtractions.WithLabelValues(method, strconv.FormatBool(success)).Inc()
}

// IncRefreshRun increments the refresh run counter.
func (m *Metrics) IncRefreshRun() {
	if m == nil {
		return
	}
	m.refreshRunsTotal.Inc()
}

// ObserveRefreshRunDuration observes a refresh run duration.
func (m *Metrics) ObserveRefreshRunDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.refreshRunDuration.Observe(duration.Seconds())
}

// SessionOpened and SessionClosed track live navigation sessions.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
