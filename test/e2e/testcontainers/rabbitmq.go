// Package testcontainers starts the PostgreSQL, MongoDB and RabbitMQ
// containers the e2e suites run against.
package testcontainers

import (
	"cmp"
	"context"
	"fmt"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// RabbitMQConfig configures StartRabbitMQ. Credentials default to
// guest/guest.
type RabbitMQConfig struct {
	User          string
	Password      string
	ContainerName string
}

const amqpPort = "5672/tcp"

// StartRabbitMQ runs rabbitmq:3-alpine and returns it with an amqp:// URL
// for the mapped port.
func StartRabbitMQ(ctx context.Context, cfg *RabbitMQConfig) (testcontainers.Container, string, error) {
	var c RabbitMQConfig
	if cfg != nil {
		c = *cfg
	}
	c.User = cmp.Or(c.User, "guest")
	c.Password = cmp.Or(c.Password, "guest")

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Name:         c.ContainerName,
			Image:        "rabbitmq:3-alpine",
			ExposedPorts: []string{amqpPort},
			Env: map[string]string{
				"RABBITMQ_DEFAULT_USER": c.User,
				"RABBITMQ_DEFAULT_PASS": c.Password,
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort(amqpPort),
				wait.ForLog("Server startup complete"),
			),
		},
		Started: true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to start rabbitmq container: %w", err)
	}

	endpoint, err := container.PortEndpoint(ctx, amqpPort, "")
	if err != nil {
		return nil, "", terminate(ctx, container, fmt.Errorf("failed to resolve rabbitmq endpoint: %w", err))
	}
	return container, fmt.Sprintf("amqp://%s:%s@%s/", c.User, c.Password, endpoint), nil
}
