// Package api serves the AgriSmart JSON API and the server-rendered pages.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"agrismart.dev/agrismart/internal/auth"
	"agrismart.dev/agrismart/pkg/metrics"
)

// Server represents the API and page HTTP server.
type Server struct {
	logger     *slog.Logger
	httpServer *http.Server
	handler    http.Handler
	config     *ServerConfig
	auth       *auth.Manager
	limiter    *ipLimiter
	accounts   *accountCache
	metrics    *metrics.APIMetrics

	// Work handlers leave running after they respond, such as photo
	// archiving. Shutdown waits for it.
	background sync.WaitGroup
}

// ServerConfig holds the configuration for the Server.
type ServerConfig struct {
	Logger *slog.Logger

	// Stores
	Users     UserStore
	Farm      FarmStore
	Reference ReferenceStore
	Sensors   SensorStore

	// Services
	Auth        *auth.Manager
	Recommender Recommender
	Weather     WeatherService
	Localizer   SchemeLocalizer
	// Disease, SMS and Archive are optional; nil reports the feature as
	// not configured.
	Disease DiseaseDetector
	SMS     SMSSender
	Archive ImageArchiver

	Metrics *metrics.APIMetrics

	// HTTP server configuration
	HTTPPort       int
	AllowedOrigins []string

	// Weather location used when a request does not name one.
	DefaultLat float64
	DefaultLng float64

	// Sign-in attempts allowed per client IP.
	AuthRate  rate.Limit
	AuthBurst int
}

// NewServer creates a new Server instance.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.HTTPPort <= 0 {
		return nil, errors.New("HTTP port must be positive")
	}

	switch {
	case cfg.Users == nil:
		return nil, errors.New("user store cannot be nil")
	case cfg.Farm == nil:
		return nil, errors.New("farm store cannot be nil")
	case cfg.Reference == nil:
		return nil, errors.New("reference store cannot be nil")
	case cfg.Sensors == nil:
		return nil, errors.New("sensor store cannot be nil")
	case cfg.Auth == nil:
		return nil, errors.New("auth manager cannot be nil")
	case cfg.Recommender == nil:
		return nil, errors.New("recommender cannot be nil")
	case cfg.Weather == nil:
		return nil, errors.New("weather service cannot be nil")
	case cfg.Localizer == nil:
		return nil, errors.New("localizer cannot be nil")
	}

	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"http://localhost:3000"}
	}
	if cfg.AuthRate <= 0 {
		cfg.AuthRate = rate.Every(6 * time.Second)
	}
	if cfg.AuthBurst <= 0 {
		cfg.AuthBurst = 10
	}

	s := &Server{
		logger:   cfg.Logger,
		config:   cfg,
		auth:     cfg.Auth,
		limiter:  newIPLimiter(cfg.AuthRate, cfg.AuthBurst),
		accounts: newAccountCache(),
		metrics:  cfg.Metrics,
	}
	s.handler = s.setupRoutes()
	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run starts the HTTP server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting api server")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.HTTPPort),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("starting HTTP server", "address", s.httpServer.Addr)

	httpErr := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- fmt.Errorf("HTTP server error: %w", err)
		}
		close(httpErr)
	}()

	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case <-ctx.Done():
		s.logger.Info("context canceled")
	case err := <-httpErr:
		if err != nil {
			s.logger.Error("HTTP server error", "error", err)
			return err
		}
	}

	return s.Shutdown()
}

// Shutdown gracefully shuts down the server and waits for background work
// started by handlers.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down api server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var shutdownErr error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown HTTP server", "error", err)
			shutdownErr = fmt.Errorf("HTTP server shutdown error: %w", err)
		}
	}
	s.waitBackground(ctx)
	if shutdownErr != nil {
		return shutdownErr
	}

	s.logger.Info("api server shutdown completed successfully")
	return nil
}

// waitBackground blocks until background work finishes or ctx ends.
func (s *Server) waitBackground(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.background.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("background work still running at shutdown", "error", ctx.Err())
	}
}
