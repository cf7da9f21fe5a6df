package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors on a private registry so
// tests can construct isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	providerCalls   *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	cacheOps        *prometheus.CounterVec
	purgedEntries   *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "vitacheck",
				Name:      "request_duration_seconds",
				Help:      "Analysis request latency in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"status"},
		),

		providerCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vitacheck",
				Name:      "provider_calls_total",
				Help:      "Upstream provider calls by outcome",
			},
			[]string{"provider", "outcome"},
		),

		providerLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "vitacheck",
				Name:      "provider_latency_seconds",
				Help:      "Upstream provider call latency in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"provider"},
		),

		cacheOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vitacheck",
				Name:      "cache_ops_total",
				Help:      "Cache lookups by store and result",
			},
			[]string{"store", "result"},
		),

		purgedEntries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vitacheck",
				Name:      "purged_entries_total",
				Help:      "Entries removed by the retention sweeper",
			},
			[]string{"kind"},
		),
	}

	m.registry.MustRegister(
		m.requestDuration,
		m.providerCalls,
		m.providerLatency,
		m.cacheOps,
		m.purgedEntries,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one finished analysis request.
func (m *Metrics) ObserveRequest(status int, elapsed time.Duration) {
	m.requestDuration.WithLabelValues(strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Provider call outcomes. A normalized not-found still counts as ok for
// interactions providers; the caller decides the outcome label.
const (
	OutcomeOK      = "ok"
	OutcomeMiss    = "miss"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// ObserveProvider records one upstream call.
func (m *Metrics) ObserveProvider(provider, outcome string, elapsed time.Duration) {
	m.providerCalls.WithLabelValues(provider, outcome).Inc()
	m.providerLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// RecordCache counts one cache lookup.
func (m *Metrics) RecordCache(storeName string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheOps.WithLabelValues(storeName, result).Inc()
}

// RecordPurge counts entries removed by a retention sweep.
func (m *Metrics) RecordPurge(kind string, n int64) {
	if n > 0 {
		m.purgedEntries.WithLabelValues(kind).Add(float64(n))
	}
}
