package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MQMetrics covers the RabbitMQ client shared by the ingest worker and the
// simulator. Every helper is safe on a nil receiver so clients can run
// without a collector.
type MQMetrics struct {
	Published     *prometheus.CounterVec
	PublishTime   *prometheus.HistogramVec
	Reconnects    prometheus.Counter
	Connected     prometheus.Gauge
	Rejections    *prometheus.CounterVec
	QueueMessages *prometheus.GaugeVec
}

// NewMQMetrics creates and registers MQ client metrics.
func NewMQMetrics(namespace string) *MQMetrics {
	m := &MQMetrics{
		Published: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "mq",
				Name:      "publishes_total",
				Help:      "Confirmed publishes by outcome",
			},
			[]string{"queue", "outcome"}, // outcome: confirmed, max_retries_exceeded, canceled, shutdown
		),
		PublishTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "mq",
				Name:      "publish_duration_seconds",
				Help:      "Time from the first publish attempt to the final outcome",
				Buckets:   []float64{.005, .01, .05, .1, .5, 1, 2.5, 5, 10},
			},
			[]string{"queue"},
		),
		Reconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "mq",
				Name:      "dial_attempts_total",
				Help:      "Attempts to open a connection to the broker",
			},
		),
		Connected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "mq",
				Name:      "connected",
				Help:      "1 while the client holds an open broker connection",
			},
		),
		Rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "mq",
				Name:      "messages_rejected_total",
				Help:      "Messages dropped without requeue because they could not be decoded or validated",
			},
			[]string{"queue", "reason"},
		),
		QueueMessages: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "mq",
				Name:      "queue_messages",
				Help:      "Messages waiting in the queue when it was last declared",
			},
			[]string{"queue"},
		),
	}

	MustRegister(m.Published, m.PublishTime, m.Reconnects, m.Connected, m.Rejections, m.QueueMessages)

	return m
}

// Publish records how a confirmed publish ended.
func (m *MQMetrics) Publish(queue, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.Published.WithLabelValues(queue, outcome).Inc()
	m.PublishTime.WithLabelValues(queue).Observe(time.Since(started).Seconds())
}

// Dialing counts a connection attempt.
func (m *MQMetrics) Dialing() {
	if m == nil {
		return
	}
	m.Reconnects.Inc()
}

// SetConnected flips the connection gauge.
func (m *MQMetrics) SetConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.Connected.Set(1)
		return
	}
	m.Connected.Set(0)
}

// Declared records the backlog reported when the queue was declared.
func (m *MQMetrics) Declared(queue string, messages int) {
	if m == nil {
		return
	}
	m.QueueMessages.WithLabelValues(queue).Set(float64(messages))
}

// Rejected counts a poison message.
func (m *MQMetrics) Rejected(queue, reason string) {
	if m == nil {
		return
	}
	m.Rejections.WithLabelValues(queue, reason).Inc()
}
