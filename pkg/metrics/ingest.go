package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// IngestMetrics contains Prometheus metrics for the sensor ingest worker.
type IngestMetrics struct {
	ConsumerMessagesTotal *prometheus.CounterVec
	ProcessingDuration    *prometheus.HistogramVec
	AlertsRaised          *prometheus.CounterVec
	SMSSent               *prometheus.CounterVec
	DBOperationsTotal     *prometheus.CounterVec
	ActiveConsumers       prometheus.Gauge
}

// NewIngestMetrics creates and registers ingest worker metrics.
func NewIngestMetrics(namespace string) *IngestMetrics {
	m := &IngestMetrics{
		ConsumerMessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "consumer",
				Name:      "messages_total",
				Help:      "Total number of messages consumed",
			},
			[]string{"queue", "status"}, // status: success, rejected, requeued
		),
		ProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "consumer",
				Name:      "processing_duration_seconds",
				Help:      "Duration of message processing",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"queue"},
		),
		AlertsRaised: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sensor",
				Name:      "alerts_raised_total",
				Help:      "Sensor alerts raised by severity and metric",
			},
			[]string{"severity", "metric"},
		),
		SMSSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sms",
				Name:      "messages_total",
				Help:      "SMS notifications delivered by outcome",
			},
			[]string{"status"},
		),
		DBOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "operations_total",
				Help:      "Total number of database operations issued by the worker",
			},
			[]string{"operation", "status"},
		),
		ActiveConsumers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "consumer",
				Name:      "active_consumers",
				Help:      "Number of running queue consumers",
			},
		),
	}

	MustRegister(
		m.ConsumerMessagesTotal,
		m.ProcessingDuration,
		m.AlertsRaised,
		m.SMSSent,
		m.DBOperationsTotal,
		m.ActiveConsumers,
	)

	return m
}

// DBOperation counts a database call. Safe on a nil receiver.
func (m *IngestMetrics) DBOperation(op string, err error) {
	if m == nil {
		return
	}
	m.DBOperationsTotal.WithLabelValues(op, statusLabel(err)).Inc()
}

// Consumed counts a handled delivery and its processing time. Safe on a nil
// receiver.
func (m *IngestMetrics) Consumed(queue, status string, started time.Time) {
	if m == nil {
		return
	}
	m.ConsumerMessagesTotal.WithLabelValues(queue, status).Inc()
	m.ProcessingDuration.WithLabelValues(queue).Observe(time.Since(started).Seconds())
}

// Alert counts a raised sensor alert. Safe on a nil receiver.
func (m *IngestMetrics) Alert(severity, metric string) {
	if m == nil {
		return
	}
	m.AlertsRaised.WithLabelValues(severity, metric).Inc()
}

// SMS counts a notification delivery attempt. Safe on a nil receiver.
func (m *IngestMetrics) SMS(err error) {
	if m == nil {
		return
	}
	m.SMSSent.WithLabelValues(statusLabel(err)).Inc()
}

// ConsumerStarted adjusts the running consumer gauge. Safe on a nil receiver.
func (m *IngestMetrics) ConsumerStarted(running bool) {
	if m == nil {
		return
	}
	if running {
		m.ActiveConsumers.Inc()
		return
	}
	m.ActiveConsumers.Dec()
}
