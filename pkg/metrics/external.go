package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ExternalMetrics tracks calls to third-party services (weather, mandi,
// vision, translation, SMS, object storage) and the cache in front of them.
type ExternalMetrics struct {
	CallsTotal   *prometheus.CounterVec
	CallDuration *prometheus.HistogramVec
	CacheLookups *prometheus.CounterVec
	Fallbacks    *prometheus.CounterVec
}

// NewExternalMetrics creates and registers external call metrics.
func NewExternalMetrics(namespace string) *ExternalMetrics {
	m := &ExternalMetrics{
		CallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "external",
				Name:      "calls_total",
				Help:      "Total number of calls to external services",
			},
			[]string{"service", "status"},
		),
		CallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "external",
				Name:      "call_duration_seconds",
				Help:      "Duration of calls to external services",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20},
			},
			[]string{"service"},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Cache lookups by result",
			},
			[]string{"cache", "result"}, // result: hit, miss, error
		),
		Fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "external",
				Name:      "fallbacks_total",
				Help:      "Responses served from fallback data after an external failure",
			},
			[]string{"service"},
		),
	}

	MustRegister(m.CallsTotal, m.CallDuration, m.CacheLookups, m.Fallbacks)

	return m
}

// Observe records one external call. Safe on a nil receiver.
func (m *ExternalMetrics) Observe(service string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.CallsTotal.WithLabelValues(service, statusLabel(err)).Inc()
	m.CallDuration.WithLabelValues(service).Observe(time.Since(started).Seconds())
}

// CacheResult records a cache lookup outcome. Safe on a nil receiver.
func (m *ExternalMetrics) CacheResult(cache, result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(cache, result).Inc()
}

// Fallback counts a degraded response. Safe on a nil receiver.
func (m *ExternalMetrics) Fallback(service string) {
	if m == nil {
		return
	}
	m.Fallbacks.WithLabelValues(service).Inc()
}
