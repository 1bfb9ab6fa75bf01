// Package ingest runs the queue workers behind the IoT sensor pipeline: one
// persists readings and raises alerts, the other delivers SMS notifications.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"agrismart.dev/agrismart/pkg/metrics"
	"agrismart.dev/agrismart/pkg/mq"
)

// outcome is what happens to a delivery after it was handled.
type outcome int

const (
	ack outcome = iota
	// reject drops a message that can never succeed.
	reject
	// requeue returns a message after a transient failure.
	requeue
)

func (o outcome) String() string {
	switch o {
	case ack:
		return "success"
	case reject:
		return "rejected"
	default:
		return "requeued"
	}
}

// handlerFunc processes one delivery.
type handlerFunc func(ctx context.Context, d amqp.Delivery) outcome

// worker drains one queue through a handler.
type worker struct {
	logger    *slog.Logger
	client    mq.ClientInterface
	handle    handlerFunc
	metrics   *metrics.IngestMetrics
	mqMetrics *metrics.MQMetrics
	done      chan struct{}
	running   atomic.Bool
}

func newWorker(logger *slog.Logger, client mq.ClientInterface, handle handlerFunc, m *metrics.IngestMetrics, mqm *metrics.MQMetrics) *worker {
	return &worker{
		logger:    logger.With(slog.String("queue", client.Queue())),
		client:    client,
		handle:    handle,
		metrics:   m,
		mqMetrics: mqm,
		done:      make(chan struct{}),
	}
}

// Start waits for the queue and begins consuming in the background.
func (w *worker) Start(ctx context.Context) error {
	w.logger.Info("starting consumer")

	if err := w.client.WaitReady(ctx); err != nil {
		return fmt.Errorf("queue %s not ready: %w", w.client.Queue(), err)
	}

	deliveries, err := w.client.Consume()
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	w.logger.Info("consumer started, waiting for messages")
	w.metrics.ConsumerStarted(true)
	w.running.Store(true)
	go w.processMessages(ctx, deliveries)
	return nil
}

func (w *worker) processMessages(ctx context.Context, deliveries <-chan amqp.Delivery) {
	defer close(w.done)
	defer w.metrics.ConsumerStarted(false)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("context canceled, stopping message processing")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("deliveries channel closed")
				return
			}
			w.handleDelivery(ctx, delivery)
		}
	}
}

func (w *worker) handleDelivery(ctx context.Context, d amqp.Delivery) {
	started := time.Now()
	result := w.handle(ctx, d)

	var err error
	switch result {
	case ack:
		err = d.Ack(false)
	case reject:
		w.mqMetrics.Rejected(w.client.Queue(), "invalid")
		err = d.Nack(false, false)
	case requeue:
		err = d.Nack(false, true)
	}
	if err != nil {
		w.logger.Error("failed to settle message", "outcome", result.String(), "error", err)
	}
	w.metrics.Consumed(w.client.Queue(), result.String(), started)
}

// Stop closes the queue client and waits for the loop to exit.
func (w *worker) Stop() error {
	w.logger.Info("stopping consumer")

	if err := w.client.Close(); err != nil {
		return fmt.Errorf("failed to close mq client: %w", err)
	}
	if !w.running.Load() {
		return nil
	}

	select {
	case <-w.done:
	case <-time.After(10 * time.Second):
		return errors.New("timed out waiting for consumer to stop")
	}

	w.logger.Info("consumer stopped")
	return nil
}
