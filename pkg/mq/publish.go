package mq

import (
	"context"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Push publishes data and waits for the broker to confirm it. Failed
// attempts are retried with exponential backoff until maxRetryAttempts is
// reached, the context is done, or the client is closed.
func (c *Client) Push(ctx context.Context, data []byte) error {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	started := time.Now()
	delay := initialBackoff

	for attempt := 1; ; attempt++ {
		err := c.publishConfirmed(ctx, data)
		switch {
		case err == nil:
			c.metrics.Publish(c.queueName, "confirmed", started)
			return nil
		case errors.Is(err, errShutdown):
			c.metrics.Publish(c.queueName, "shutdown", started)
			return err
		case ctx.Err() != nil:
			c.metrics.Publish(c.queueName, "canceled", started)
			return ctx.Err()
		case attempt == maxRetryAttempts:
			c.log.Error("giving up on publish", "error", err, "attempts", attempt)
			c.metrics.Publish(c.queueName, "max_retries_exceeded", started)
			return errMaxRetriesExceeded
		}

		c.log.Warn("publish failed, retrying", "error", err, "attempt", attempt, "delay", delay)
		if err := c.backoff(ctx, delay); err != nil {
			c.metrics.Publish(c.queueName, "canceled", started)
			return err
		}
		delay = min(delay*2, maxBackoff)
	}
}

// UnsafePush publishes data without waiting for a confirmation. The broker
// may never receive the message.
func (c *Client) UnsafePush(ctx context.Context, data []byte) error {
	ch, _, ready := c.session()
	if !ready {
		return errNotConnected
	}
	return publish(ctx, ch, c.queueName, data)
}

func (c *Client) publishConfirmed(ctx context.Context, data []byte) error {
	if c.stopped() {
		return errShutdown
	}
	ch, confirms, ready := c.session()
	if !ready {
		return errNotConnected
	}
	if err := publish(ctx, ch, c.queueName, data); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return errShutdown
	case confirm, ok := <-confirms:
		if !ok {
			return errNotConnected
		}
		if !confirm.Ack {
			return errNacked
		}
		return nil
	}
}

func (c *Client) backoff(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return errShutdown
	case <-t.C:
		return nil
	}
}

func publish(ctx context.Context, ch *amqp.Channel, queue string, data []byte) error {
	return ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  ContentTypeJSON,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         data,
	})
}
