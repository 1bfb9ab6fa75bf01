package mq

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ClientInterface is the slice of Client the ingest consumers and the
// simulator use. mock.MockClient implements it for unit tests.
type ClientInterface interface {
	// Push publishes and blocks until the broker confirms, retrying with
	// backoff while the client reconnects.
	Push(ctx context.Context, data []byte) error
	// UnsafePush publishes once without waiting for a confirmation.
	UnsafePush(ctx context.Context, data []byte) error
	// Consume returns manual-ack deliveries for the bound queue.
	Consume() (<-chan amqp.Delivery, error)
	// WaitReady blocks until the queue is first usable.
	WaitReady(ctx context.Context) error
	Queue() string
	Close() error
}

var _ ClientInterface = (*Client)(nil)
