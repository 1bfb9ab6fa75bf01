package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SimulatorMetrics contains Prometheus metrics for the field sensor simulator.
type SimulatorMetrics struct {
	ReadingsPublished  prometheus.Counter
	PublishFailures    *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
	ActiveSensors      prometheus.Gauge
}

// NewSimulatorMetrics creates and registers simulator metrics.
func NewSimulatorMetrics(namespace string) *SimulatorMetrics {
	m := &SimulatorMetrics{
		ReadingsPublished: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "readings_published_total",
				Help:      "Total number of synthetic sensor readings published",
			},
		),
		PublishFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "publish_failures_total",
				Help:      "Total number of failed publishes",
			},
			[]string{"reason"},
		),
		GenerationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "generation_duration_seconds",
				Help:      "Time to generate and publish one reading",
				Buckets:   prometheus.DefBuckets,
			},
		),
		ActiveSensors: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "active_sensors",
				Help:      "Number of simulated sensors",
			},
		),
	}

	MustRegister(m.ReadingsPublished, m.PublishFailures, m.GenerationDuration, m.ActiveSensors)

	return m
}
