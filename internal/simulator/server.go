package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agrismart.dev/agrismart/pkg/generator"
	"agrismart.dev/agrismart/pkg/metrics"
	"agrismart.dev/agrismart/pkg/mq"
)

// SensorLister returns the ids of registered sensors.
type SensorLister interface {
	ListSensorIDs(ctx context.Context) ([]string, error)
}

// ServerConfig holds the configuration for the simulator server.
type ServerConfig struct {
	// Logger is the structured logger
	Logger *slog.Logger
	// RabbitMQURL is the connection string for RabbitMQ
	RabbitMQURL string
	// Queue receives the sensor readings
	Queue string
	// Interval is the time between publishing rounds
	Interval time.Duration
	// SensorIDs, when set, are simulated instead of the registered sensors
	SensorIDs []string
	// Sensors lists registered sensors when SensorIDs is empty
	Sensors SensorLister
	// DemoSensors is how many fake, unregistered sensors to invent when
	// neither SensorIDs nor Sensors yields any
	DemoSensors int
	// Metrics is the optional Prometheus metrics collector
	Metrics *metrics.SimulatorMetrics
	// MQMetrics is the optional Prometheus metrics collector for MQ operations
	MQMetrics *metrics.MQMetrics
}

// Server runs the publishing loop.
type Server struct {
	logger *slog.Logger
	config *ServerConfig
	client mq.ClientInterface
}

var (
	errInvalidInterval = errors.New("interval must be greater than 0")
	errLoggerRequired  = errors.New("logger is required")
	errNoSensors       = errors.New("no sensors to simulate")
)

// NewServer creates a new simulator server with the given configuration.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errLoggerRequired
	}

	if cfg.Interval <= 0 {
		return nil, errInvalidInterval
	}

	if cfg.RabbitMQURL == "" {
		return nil, errors.New("rabbitmq URL cannot be empty")
	}

	if cfg.Queue == "" {
		return nil, errors.New("queue name cannot be empty")
	}

	if len(cfg.SensorIDs) == 0 && cfg.Sensors == nil && cfg.DemoSensors <= 0 {
		return nil, errNoSensors
	}

	return &Server{logger: cfg.Logger, config: cfg}, nil
}

// resolveSensors picks the explicit ids, then the registered sensors, then
// invented demo sensors.
func (s *Server) resolveSensors(ctx context.Context) ([]string, error) {
	if len(s.config.SensorIDs) > 0 {
		return s.config.SensorIDs, nil
	}
	if s.config.Sensors != nil {
		ids, err := s.config.Sensors.ListSensorIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list sensors: %w", err)
		}
		if len(ids) > 0 {
			return ids, nil
		}
		s.logger.Warn("no registered sensors found")
	}
	if s.config.DemoSensors <= 0 {
		return nil, errNoSensors
	}

	s.logger.Warn("simulating unregistered demo sensors, the ingest worker will drop their readings",
		"count", s.config.DemoSensors)
	ids := make([]string, 0, s.config.DemoSensors)
	for range s.config.DemoSensors {
		if sensor := generator.NewFieldSensor(); sensor != nil {
			ids = append(ids, sensor.SensorID)
		}
	}
	if len(ids) == 0 {
		return nil, errNoSensors
	}
	return ids, nil
}

// Run publishes readings every interval until the context is canceled or a
// shutdown signal arrives.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	ids, err := s.resolveSensors(ctx)
	if err != nil {
		return err
	}

	if s.client == nil {
		client := mq.New(s.config.Queue, s.config.RabbitMQURL, s.logger.With(slog.String("component", "mq-client")))
		if s.config.MQMetrics != nil {
			client.SetMetrics(s.config.MQMetrics)
		}
		s.client = client
	}
	defer s.closeClient()

	publisher, err := NewPublisher(s.client, ids, s.config.Metrics)
	if err != nil {
		return err
	}

	s.logger.Info("simulator started",
		"sensor_count", len(ids),
		"interval", s.config.Interval,
		"queue", s.config.Queue,
	)

	go func() {
		select {
		case sig := <-sigChan:
			s.logger.Info("received shutdown signal", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("simulator shutting down")
			return nil
		case now := <-ticker.C:
			if err := publisher.PublishAll(ctx, now); err != nil && ctx.Err() == nil {
				// Keep publishing; the MQ client reconnects in the background.
				s.logger.Error("failed to publish readings", "error", err)
				continue
			}
			s.logger.Debug("published readings", "sensor_count", len(ids))
		}
	}
}

func (s *Server) closeClient() {
	if s.client == nil {
		return
	}
	if err := s.client.Close(); err != nil {
		s.logger.Error("failed to close MQ client", "error", err)
		return
	}
	s.logger.Info("MQ client closed")
}
