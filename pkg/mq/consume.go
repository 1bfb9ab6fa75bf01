package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Consume starts a manual-ack consumer on the queue. Every delivery must be
// acked or nacked, otherwise the prefetch window fills and delivery stops.
// The returned channel closes when the underlying AMQP channel does.
func (c *Client) Consume() (<-chan amqp.Delivery, error) {
	c.mu.Lock()
	ch, ready, prefetch := c.channel, c.ready, c.prefetch
	c.mu.Unlock()

	if !ready {
		return nil, errNotConnected
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set prefetch: %w", err)
	}
	return ch.Consume(c.queueName, "", false, false, false, false, nil)
}
