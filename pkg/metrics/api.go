package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// APIMetrics contains Prometheus metrics for the HTTP API and page rendering.
type APIMetrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	TemplateRenderTime   *prometheus.HistogramVec
	TemplateRenderErrors *prometheus.CounterVec
	Recommendations      *prometheus.CounterVec
	AuthFailures         *prometheus.CounterVec
}

// NewAPIMetrics creates and registers API metrics.
func NewAPIMetrics(namespace string) *APIMetrics {
	m := &APIMetrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),
		TemplateRenderTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "template",
				Name:      "render_duration_seconds",
				Help:      "Duration of page rendering",
				Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
			},
			[]string{"template"},
		),
		TemplateRenderErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "template",
				Name:      "render_errors_total",
				Help:      "Total number of page rendering errors",
			},
			[]string{"template"},
		),
		Recommendations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "recommend",
				Name:      "reports_total",
				Help:      "Recommendation reports served, by market data availability",
			},
			[]string{"market"},
		),
		AuthFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "failures_total",
				Help:      "Rejected authentication and authorization attempts",
			},
			[]string{"reason"},
		),
	}

	MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.TemplateRenderTime,
		m.TemplateRenderErrors,
		m.Recommendations,
		m.AuthFailures,
	)

	return m
}

// ObserveRequest records a finished HTTP request. Safe on a nil receiver.
func (m *APIMetrics) ObserveRequest(method, route string, status int, started time.Time) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(time.Since(started).Seconds())
}

// AuthFailure counts a rejected request. Safe on a nil receiver.
func (m *APIMetrics) AuthFailure(reason string) {
	if m == nil {
		return
	}
	m.AuthFailures.WithLabelValues(reason).Inc()
}

// Recommendation counts a served report by market data coverage
// ("complete", "partial" or "unavailable"). Safe on a nil receiver.
func (m *APIMetrics) Recommendation(market string) {
	if m == nil {
		return
	}
	m.Recommendations.WithLabelValues(market).Inc()
}

// ObserveRender records a page render. Safe on a nil receiver.
func (m *APIMetrics) ObserveRender(template string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.TemplateRenderTime.WithLabelValues(template).Observe(time.Since(started).Seconds())
	if err != nil {
		m.TemplateRenderErrors.WithLabelValues(template).Inc()
	}
}
