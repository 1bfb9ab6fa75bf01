package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"agrismart.dev/agrismart/internal/ingest"
	"agrismart.dev/agrismart/internal/mongostore"
	"agrismart.dev/agrismart/internal/pgstore"
	"agrismart.dev/agrismart/pkg/metrics"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run the sensor ingest worker",
	Long: `Run the ingest worker that:
- Consumes sensor readings from RabbitMQ
- Persists readings to PostgreSQL
- Raises threshold alerts and queues SMS notifications for critical ones
- Delivers queued SMS notifications
- Serves a gRPC health endpoint`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	// Ingest-specific flags
	ingestCmd.Flags().Int("prefetch", 10, "Unacknowledged deliveries per consumer")
	ingestCmd.Flags().Int("grpc-port", 9090, "gRPC health server port")
	ingestCmd.Flags().Int("metrics-port", 9100, "Prometheus metrics port (0 disables)")

	// Bind flags to viper
	_ = viper.BindPFlag("rabbitmq.prefetch", ingestCmd.Flags().Lookup("prefetch"))
	_ = viper.BindPFlag("ingest.grpc_port", ingestCmd.Flags().Lookup("grpc-port"))
	_ = viper.BindPFlag("metrics.port", ingestCmd.Flags().Lookup("metrics-port"))
}

func runIngest(_ *cobra.Command, _ []string) error {
	logger := GetLogger()
	logger.Info("starting ingest service")

	ctx := context.Background()

	db, err := pgstore.NewDB(postgresConfig(logger, true))
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		return err
	}
	defer func() { _ = pgstore.CloseDB(db, logger) }()

	store, err := pgstore.New(db, logger)
	if err != nil {
		return err
	}

	external := metrics.NewExternalMetrics(metrics.Namespace)
	sender, err := newSMSSender(logger, external)
	if err != nil {
		return err
	}

	config := &ingest.ServerConfig{
		Logger:      logger,
		Store:       store,
		SMS:         sender,
		RabbitMQURL: viper.GetString("rabbitmq.url"),
		SensorQueue: viper.GetString("rabbitmq.sensor_queue"),
		SMSQueue:    viper.GetString("rabbitmq.sms_queue"),
		Prefetch:    viper.GetInt("rabbitmq.prefetch"),
		GRPCPort:    viper.GetInt("ingest.grpc_port"),
		MetricsPort: viper.GetInt("metrics.port"),
		Metrics:     metrics.NewIngestMetrics(metrics.Namespace),
		MQMetrics:   metrics.NewMQMetrics(metrics.Namespace),
	}

	// Phone numbers live on the farmer profiles in MongoDB, which is only
	// needed when texts can actually be sent.
	if sender.Configured() {
		profiles, client, err := mongostore.Connect(ctx, &mongostore.Config{
			Logger:   logger,
			URI:      viper.GetString("mongo.uri"),
			Database: viper.GetString("mongo.database"),
		})
		if err != nil {
			logger.Error("failed to connect to mongodb", "error", err)
			return err
		}
		defer func() { _ = mongostore.Disconnect(client, logger) }()
		config.Phones = ingest.ProfilePhones{Profiles: profiles}
	}

	// Create and run server
	server, err := ingest.NewServer(config)
	if err != nil {
		logger.Error("failed to create ingest server", "error", err)
		return err
	}

	logger.Info("ingest server configuration",
		"db_host", viper.GetString("postgres.host"),
		"db_name", viper.GetString("postgres.name"),
		"rabbitmq_url", config.RabbitMQURL,
		"sensor_queue", config.SensorQueue,
		"sms_queue", config.SMSQueue,
		"sms", sender.Configured(),
		"grpc_port", config.GRPCPort,
		"metrics_port", config.MetricsPort,
	)

	if err := server.Run(ctx); err != nil {
		logger.Error("ingest server error", "error", err)
		return err
	}

	logger.Info("ingest server stopped")
	return nil
}
