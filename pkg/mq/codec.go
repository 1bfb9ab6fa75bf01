package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ContentTypeJSON is set on every message published by Client.
const ContentTypeJSON = "application/json"

// ErrEmptyBody is returned by Decode for a delivery without payload.
var ErrEmptyBody = errors.New("message body is empty")

// PushJSON encodes v and publishes it with confirmation.
func PushJSON(ctx context.Context, client ClientInterface, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode message for %s: %w", client.Queue(), err)
	}
	return client.Push(ctx, body)
}

// Decode unmarshals a delivery body into v. Unknown fields are ignored so
// producers can add attributes ahead of consumers.
func Decode(d amqp.Delivery, v any) error {
	if len(d.Body) == 0 {
		return ErrEmptyBody
	}
	if err := json.Unmarshal(d.Body, v); err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	return nil
}
