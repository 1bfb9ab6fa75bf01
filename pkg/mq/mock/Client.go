// Package mock provides an in-memory mq.ClientInterface for tests.
package mock

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"agrismart.dev/agrismart/pkg/mq"
)

// MockClient records published payloads and hands out a preset delivery
// channel. Set the exported fields before the client is shared.
type MockClient struct {
	QueueName      string
	PushError      error
	ConsumeChannel <-chan amqp.Delivery
	ConsumeError   error
	WaitReadyError error
	CloseError     error

	// CloseCalls counts calls to Close.
	CloseCalls int

	mu     sync.Mutex
	pushed [][]byte
}

var _ mq.ClientInterface = (*MockClient)(nil)

// NewMockClient returns a client whose calls all succeed.
func NewMockClient() *MockClient {
	return &MockClient{
		QueueName:      "mock-queue",
		ConsumeChannel: make(chan amqp.Delivery),
	}
}

// Pushed returns the payloads passed to Push and UnsafePush, in call order.
func (m *MockClient) Pushed() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.pushed...)
}

func (m *MockClient) record(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pushed = append(m.pushed, data)
	return m.PushError
}

func (m *MockClient) Push(_ context.Context, data []byte) error       { return m.record(data) }
func (m *MockClient) UnsafePush(_ context.Context, data []byte) error { return m.record(data) }

func (m *MockClient) Consume() (<-chan amqp.Delivery, error) {
	return m.ConsumeChannel, m.ConsumeError
}

func (m *MockClient) WaitReady(context.Context) error { return m.WaitReadyError }

func (m *MockClient) Queue() string { return m.QueueName }

func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalls++
	return m.CloseError
}
