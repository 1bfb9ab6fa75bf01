package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"agrismart.dev/agrismart/pkg/metrics"
	"agrismart.dev/agrismart/pkg/mq"
)

// HealthService is the gRPC health service name reported by the worker.
const HealthService = "agrismart.ingest"

// Server runs the reading and SMS consumers with a gRPC health endpoint and
// a Prometheus scrape endpoint.
type Server struct {
	logger        *slog.Logger
	readings      *ReadingConsumer
	sms           *SMSConsumer
	clients       []mq.ClientInterface
	grpcServer    *grpc.Server
	health        *health.Server
	metricsServer *http.Server
	config        *ServerConfig
}

// ServerConfig holds the configuration for the Server.
type ServerConfig struct {
	Logger *slog.Logger
	Store  ReadingStore
	Phones PhoneBook
	// SMS delivers notifications. When nil or unconfigured, critical alerts
	// are stored without SMS.
	SMS SMSSender

	RabbitMQURL string
	SensorQueue string
	SMSQueue    string
	Prefetch    int

	Thresholds Thresholds

	GRPCPort    int
	MetricsPort int

	Metrics   *metrics.IngestMetrics
	MQMetrics *metrics.MQMetrics
}

// NewServer creates a new Server instance.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Store == nil {
		return nil, errors.New("store cannot be nil")
	}

	if cfg.RabbitMQURL == "" {
		return nil, errors.New("rabbitmq URL cannot be empty")
	}

	if cfg.SensorQueue == "" {
		return nil, errors.New("sensor queue name cannot be empty")
	}

	if cfg.GRPCPort <= 0 {
		return nil, errors.New("gRPC port must be positive")
	}

	if cfg.MetricsPort < 0 {
		return nil, errors.New("metrics port cannot be negative")
	}

	if cfg.smsEnabled() {
		if cfg.SMSQueue == "" {
			return nil, errors.New("sms queue name cannot be empty")
		}
		if cfg.Phones == nil {
			return nil, errors.New("phone book cannot be nil")
		}
	}

	return &Server{
		logger: cfg.Logger,
		config: cfg,
	}, nil
}

func (c *ServerConfig) smsEnabled() bool {
	return c.SMS != nil && c.SMS.Configured()
}

func (s *Server) newClient(queue string) *mq.Client {
	client := mq.New(queue, s.config.RabbitMQURL, s.logger)
	if s.config.MQMetrics != nil {
		client.SetMetrics(s.config.MQMetrics)
	}
	if s.config.Prefetch > 0 {
		client.SetPrefetch(s.config.Prefetch)
	}
	s.clients = append(s.clients, client)
	return client
}

// Run starts the consumers and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting ingest server")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	if err := s.startConsumers(ctx); err != nil {
		_ = s.Shutdown()
		return err
	}

	s.grpcServer = grpc.NewServer()
	s.health = health.NewServer()
	healthpb.RegisterHealthServer(s.grpcServer, s.health)

	grpcAddr := fmt.Sprintf(":%d", s.config.GRPCPort)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("failed to listen on %s: %w", grpcAddr, err)
	}

	s.logger.Info("starting gRPC health server", "address", grpcAddr)

	errs := make(chan error, 2)
	go func() {
		if err := s.grpcServer.Serve(lis); err != nil {
			errs <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	if s.config.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", metrics.Handler())
		s.metricsServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", s.config.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			s.logger.Info("starting metrics server", "address", s.metricsServer.Addr)
			if err := s.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	s.health.SetServingStatus(HealthService, healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.logger.Info("ingest server started successfully")

	var runErr error
	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context canceled")
	case runErr = <-errs:
		s.logger.Error("ingest server error", "error", runErr)
	}
	cancel()

	if err := s.Shutdown(); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

func (s *Server) startConsumers(ctx context.Context) error {
	var notify mq.ClientInterface
	if s.config.smsEnabled() {
		notify = s.newClient(s.config.SMSQueue)

		smsConsumer, err := NewSMSConsumer(&SMSConsumerConfig{
			Logger:    s.logger,
			Client:    s.newClient(s.config.SMSQueue),
			Sender:    s.config.SMS,
			Metrics:   s.config.Metrics,
			MQMetrics: s.config.MQMetrics,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize sms consumer: %w", err)
		}
		s.sms = smsConsumer
	} else {
		s.logger.Warn("sms gateway not configured, critical alerts will not be texted")
	}

	readings, err := NewReadingConsumer(&ReadingConsumerConfig{
		Logger:     s.logger,
		Store:      s.config.Store,
		Client:     s.newClient(s.config.SensorQueue),
		Notify:     notify,
		Phones:     s.config.Phones,
		Thresholds: s.config.Thresholds,
		Metrics:    s.config.Metrics,
		MQMetrics:  s.config.MQMetrics,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize reading consumer: %w", err)
	}
	s.readings = readings

	if s.sms != nil {
		if err := s.sms.Start(ctx); err != nil {
			return fmt.Errorf("failed to start sms consumer: %w", err)
		}
	}
	if err := s.readings.Start(ctx); err != nil {
		return fmt.Errorf("failed to start reading consumer: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server. Consumers are stopped before
// the publisher they feed.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down ingest server")

	var errs []error

	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.logger.Info("stopping gRPC server")
		s.grpcServer.GracefulStop()
	}

	if s.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown error: %w", err))
		}
		cancel()
	}

	stopped := map[mq.ClientInterface]bool{}
	if s.readings != nil {
		if err := s.readings.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("reading consumer shutdown error: %w", err))
		}
		stopped[s.readings.client] = true
	}
	if s.sms != nil {
		if err := s.sms.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("sms consumer shutdown error: %w", err))
		}
		stopped[s.sms.client] = true
	}
	for _, c := range s.clients {
		if stopped[c] {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s client: %w", c.Queue(), err))
		}
	}
	s.clients = nil
	s.readings, s.sms = nil, nil

	if err := errors.Join(errs...); err != nil {
		s.logger.Error("ingest server shutdown completed with errors", "error", err)
		return err
	}

	s.logger.Info("ingest server shutdown completed successfully")
	return nil
}
