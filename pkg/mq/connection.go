package mq

import (
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// maintain dials until it gets a connection and then keeps a channel open on
// it. It returns once the client is closed.
func (c *Client) maintain(addr string) {
	for {
		c.setReady(false)
		c.metrics.Dialing()
		c.log.Info("attempting to connect")

		conn, connClosed, err := c.dial(addr)
		if err != nil {
			c.log.Error("failed to connect, retrying", "error", err, "delay", reconnectDelay)
			if !c.pause(reconnectDelay, nil) {
				return
			}
			continue
		}

		if c.serve(conn, connClosed) {
			return
		}
	}
}

func (c *Client) dial(addr string) (*amqp.Connection, <-chan *amqp.Error, error) {
	conn, err := amqp.Dial(addr)
	if err != nil {
		c.metrics.SetConnected(false)
		return nil, nil, err
	}

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.metrics.SetConnected(true)
	c.log.Info("connected")
	return conn, closed, nil
}

// serve keeps a channel open on conn. It returns true when the client was
// closed and false when the connection dropped and must be redialed.
func (c *Client) serve(conn *amqp.Connection, connClosed <-chan *amqp.Error) bool {
	for {
		c.setReady(false)

		chanClosed, err := c.open(conn)
		if err != nil {
			c.log.Error("failed to open channel, retrying", "error", err, "delay", reopenDelay)
			if !c.pause(reopenDelay, connClosed) {
				return c.stopped()
			}
			continue
		}

		select {
		case <-c.done:
			return true
		case <-connClosed:
			c.log.Info("connection closed, reconnecting")
			c.metrics.SetConnected(false)
			return false
		case <-chanClosed:
			c.log.Info("channel closed, reopening")
		}
	}
}

// open declares the queue on a fresh confirm-mode channel and publishes it
// as the client's current session.
func (c *Client) open(conn *amqp.Connection) (<-chan *amqp.Error, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, err
	}
	q, err := ch.QueueDeclare(c.queueName, true, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}

	closed := ch.NotifyClose(make(chan *amqp.Error, 1))
	confirms := ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	c.mu.Lock()
	c.channel = ch
	c.confirms = confirms
	c.ready = true
	c.mu.Unlock()

	c.readyOnce.Do(func() { close(c.firstReady) })
	c.metrics.Declared(c.queueName, q.Messages)
	c.log.Info("channel ready", "pending_messages", q.Messages)
	return closed, nil
}

// pause waits for d. It returns false early when the client is closed or
// interrupt fires.
func (c *Client) pause(d time.Duration, interrupt <-chan *amqp.Error) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-c.done:
		return false
	case <-interrupt:
		return false
	case <-t.C:
		return true
	}
}
