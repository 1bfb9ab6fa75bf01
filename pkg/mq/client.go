// Package mq provides the RabbitMQ client used to move sensor readings and SMS
// jobs between the AgriSmart workers, with automatic reconnection, confirmed
// publishes and JSON payloads.
package mq

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"agrismart.dev/agrismart/pkg/metrics"
)

const (
	// Wait between dial attempts.
	reconnectDelay = 5 * time.Second

	// Wait before reopening a channel the broker closed.
	reopenDelay = 2 * time.Second

	// Push retry schedule: doubles from initialBackoff up to maxBackoff.
	initialBackoff   = 100 * time.Millisecond
	maxBackoff       = 10 * time.Second
	maxRetryAttempts = 5

	// Unacknowledged deliveries a consumer may hold.
	defaultPrefetch = 4
)

var (
	errNotConnected       = errors.New("not connected to a server")
	errAlreadyClosed      = errors.New("already closed: not connected to the server")
	errShutdown           = errors.New("client is shutting down")
	errMaxRetriesExceeded = errors.New("maximum retry attempts exceeded")
	errNacked             = errors.New("publish was nacked by the broker")
)

// Client is bound to one durable queue. It keeps a connection and a
// confirm-mode channel open in the background and re-establishes both when
// the broker drops them.
type Client struct {
	log       *slog.Logger
	queueName string
	metrics   *metrics.MQMetrics

	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	confirms <-chan amqp.Confirmation
	ready    bool
	prefetch int

	// Confirmations arrive in publish order, so confirmed publishes are
	// serialized.
	publishMu sync.Mutex

	firstReady chan struct{}
	readyOnce  sync.Once
	done       chan struct{}
	closeOnce  sync.Once
}

// New creates a client bound to queueName and starts connecting to addr in
// the background. Use WaitReady to block until the queue is usable.
func New(queueName, addr string, l *slog.Logger) *Client {
	c := &Client{
		log:        l.With(slog.String("queue", queueName)),
		queueName:  queueName,
		prefetch:   defaultPrefetch,
		firstReady: make(chan struct{}),
		done:       make(chan struct{}),
	}
	go c.maintain(addr)
	return c
}

// SetMetrics attaches a collector. Call it before publishing.
func (c *Client) SetMetrics(m *metrics.MQMetrics) {
	c.metrics = m
}

// SetPrefetch changes how many unacknowledged deliveries Consume allows.
// Values below one are ignored.
func (c *Client) SetPrefetch(n int) {
	if n < 1 {
		return
	}
	c.mu.Lock()
	c.prefetch = n
	c.mu.Unlock()
}

// Queue returns the queue name the client publishes to and consumes from.
func (c *Client) Queue() string {
	return c.queueName
}

// WaitReady blocks until the channel has been set up once, the context is
// done, or the client is closed.
func (c *Client) WaitReady(ctx context.Context) error {
	select {
	case <-c.firstReady:
		return nil
	case <-c.done:
		return errShutdown
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops reconnecting and closes the channel and connection. Closing a
// client that is not connected returns an error but still stops it.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.done) })

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready {
		return errAlreadyClosed
	}
	c.ready = false
	c.metrics.SetConnected(false)

	if err := c.channel.Close(); err != nil {
		return err
	}
	return c.conn.Close()
}

// session returns the current channel when the client is ready.
func (c *Client) session() (*amqp.Channel, <-chan amqp.Confirmation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel, c.confirms, c.ready
}

func (c *Client) setReady(ready bool) {
	c.mu.Lock()
	c.ready = ready
	c.mu.Unlock()
}

// stopped reports whether Close has been called.
func (c *Client) stopped() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
