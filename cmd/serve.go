package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"agrismart.dev/agrismart/internal/api"
	"agrismart.dev/agrismart/internal/archive"
	"agrismart.dev/agrismart/internal/auth"
	"agrismart.dev/agrismart/internal/cache"
	"agrismart.dev/agrismart/internal/gemini"
	"agrismart.dev/agrismart/internal/localize"
	"agrismart.dev/agrismart/internal/mandi"
	"agrismart.dev/agrismart/internal/mongostore"
	"agrismart.dev/agrismart/internal/openmeteo"
	"agrismart.dev/agrismart/internal/pgstore"
	"agrismart.dev/agrismart/internal/recommend"
	"agrismart.dev/agrismart/internal/weather"
	"agrismart.dev/agrismart/pkg/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server",
	Long: `Run the web server that:
- Serves the JSON API for farmers and admins
- Renders the HTML pages
- Stores farm records in MongoDB and reference data in PostgreSQL
- Calls the market price, weather, vision and SMS providers`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Serve-specific flags
	serveCmd.Flags().Int("http-port", 8080, "HTTP server port")
	serveCmd.Flags().String("redis-addr", "", "Redis address for the price and translation cache (disabled when empty)")
	serveCmd.Flags().StringSlice("allowed-origins", nil, "CORS allowed origins")
	serveCmd.Flags().Bool("skip-seed", false, "Do not seed reference data after migrating")

	// Bind flags to viper
	_ = viper.BindPFlag("http.port", serveCmd.Flags().Lookup("http-port"))
	_ = viper.BindPFlag("redis.addr", serveCmd.Flags().Lookup("redis-addr"))
	_ = viper.BindPFlag("cors.allowed_origins", serveCmd.Flags().Lookup("allowed-origins"))
	_ = viper.BindPFlag("postgres.skip_seed", serveCmd.Flags().Lookup("skip-seed"))
}

func runServe(_ *cobra.Command, _ []string) error {
	logger := GetLogger()
	logger.Info("starting agrismart web server")

	ctx := context.Background()

	authManager, err := auth.NewManager(&auth.Config{
		Secret:       viper.GetString("auth.jwt_secret"),
		AdminUserIDs: viper.GetStringSlice("auth.admin_user_ids"),
		CookieSecure: viper.GetBool("auth.cookie_secure"),
		TTL:          viper.GetDuration("auth.session_ttl"),
	})
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		return err
	}

	// Farm records
	mongoStore, mongoClient, err := mongostore.Connect(ctx, &mongostore.Config{
		Logger:   logger,
		URI:      viper.GetString("mongo.uri"),
		Database: viper.GetString("mongo.database"),
	})
	if err != nil {
		logger.Error("failed to connect to mongodb", "error", err)
		return err
	}
	defer func() { _ = mongostore.Disconnect(mongoClient, logger) }()

	// Reference data and sensors
	db, err := pgstore.NewDB(postgresConfig(logger, viper.GetBool("postgres.skip_seed")))
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		return err
	}
	defer func() { _ = pgstore.CloseDB(db, logger) }()

	pgStore, err := pgstore.New(db, logger)
	if err != nil {
		return err
	}

	priceCache, closeCache, err := newCache(ctx, logger)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		return err
	}
	defer closeCache()

	external := metrics.NewExternalMetrics(metrics.Namespace)

	prices, err := mandi.New(&mandi.Config{
		Logger:  logger,
		Cache:   priceCache,
		Metrics: external,
		APIKey:  viper.GetString("mandi.api_key"),
		BaseURL: viper.GetString("mandi.base_url"),
	})
	if err != nil {
		return fmt.Errorf("failed to create mandi client: %w", err)
	}

	engine, err := recommend.NewEngine(logger, prices)
	if err != nil {
		return fmt.Errorf("failed to create recommendation engine: %w", err)
	}

	forecaster, err := openmeteo.New(&openmeteo.Config{
		Logger:  logger,
		Metrics: external,
		BaseURL: viper.GetString("weather.base_url"),
		Days:    viper.GetInt("weather.days"),
	})
	if err != nil {
		return fmt.Errorf("failed to create forecast client: %w", err)
	}

	weatherService, err := weather.NewService(&weather.Config{
		Logger:     logger,
		Forecaster: forecaster,
		Store:      mongoStore,
		Metrics:    external,
	})
	if err != nil {
		return fmt.Errorf("failed to create weather service: %w", err)
	}

	vision, err := gemini.New(ctx, &gemini.Config{
		Logger:  logger,
		Metrics: external,
		APIKey:  viper.GetString("genai.api_key"),
		Model:   viper.GetString("genai.model"),
	})
	if err != nil {
		return fmt.Errorf("failed to create genai client: %w", err)
	}
	if !vision.Configured() {
		logger.Warn("genai api key not set, disease detection and translation disabled")
	}

	localizer, err := localize.New(&localize.Config{
		Logger:     logger,
		Translator: vision,
		Cache:      priceCache,
		Metrics:    external,
	})
	if err != nil {
		return fmt.Errorf("failed to create localizer: %w", err)
	}

	sender, err := newSMSSender(logger, external)
	if err != nil {
		return fmt.Errorf("failed to create sms sender: %w", err)
	}

	config := &api.ServerConfig{
		Logger:         logger,
		Users:          mongoStore,
		Farm:           mongoStore,
		Reference:      pgStore,
		Sensors:        pgStore,
		Auth:           authManager,
		Recommender:    engine,
		Weather:        weatherService,
		Localizer:      localizer,
		Disease:        vision,
		SMS:            sender,
		Metrics:        metrics.NewAPIMetrics(metrics.Namespace),
		HTTPPort:       viper.GetInt("http.port"),
		AllowedOrigins: viper.GetStringSlice("cors.allowed_origins"),
		DefaultLat:     viper.GetFloat64("weather.default_lat"),
		DefaultLng:     viper.GetFloat64("weather.default_lng"),
	}

	if bucket := viper.GetString("storage.bucket"); bucket != "" {
		images, err := archive.New(ctx, &archive.Config{
			Logger:  logger,
			Metrics: external,
			Bucket:  bucket,
			Prefix:  viper.GetString("storage.prefix"),
		})
		if err != nil {
			logger.Error("failed to create image archive", "error", err)
			return err
		}
		defer func() { _ = images.Close() }()
		config.Archive = images
	}

	// Create and run server
	server, err := api.NewServer(config)
	if err != nil {
		logger.Error("failed to create web server", "error", err)
		return err
	}

	logger.Info("web server configuration",
		"http_port", config.HTTPPort,
		"mongo_database", viper.GetString("mongo.database"),
		"db_host", viper.GetString("postgres.host"),
		"db_name", viper.GetString("postgres.name"),
		"cache", viper.GetString("redis.addr") != "",
		"disease_detection", vision.Configured(),
		"sms", sender.Configured(),
		"image_archive", config.Archive != nil,
	)

	if err := server.Run(ctx); err != nil {
		logger.Error("web server error", "error", err)
		return err
	}

	logger.Info("web server stopped")
	return nil
}

// newCache connects to Redis when redis.addr is set and falls back to a
// cache that never hits.
func newCache(ctx context.Context, logger *slog.Logger) (cache.Cache, func(), error) {
	addr := viper.GetString("redis.addr")
	if addr == "" {
		logger.Info("redis address not set, caching disabled")
		return cache.Noop{}, func() {}, nil
	}

	r, err := cache.NewRedis(ctx, &cache.Config{
		Logger:   logger,
		Addr:     addr,
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
		Prefix:   "agrismart:",
	})
	if err != nil {
		return nil, nil, err
	}
	return r, func() {
		if err := r.Close(); err != nil {
			logger.Warn("failed to close redis client", "error", err)
		}
	}, nil
}
