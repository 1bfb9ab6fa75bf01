package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"agrismart.dev/agrismart/internal/pgstore"
	"agrismart.dev/agrismart/internal/simulator"
	"agrismart.dev/agrismart/pkg/metrics"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the sensor simulator",
	Long: `Run the sensor simulator that:
- Generates synthetic soil readings for registered sensors
- Invents demo sensors when none are registered
- Publishes the readings to RabbitMQ`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	// Simulate-specific flags
	simulateCmd.Flags().Duration("interval", 30*time.Second, "Interval between publishing rounds")
	simulateCmd.Flags().StringSlice("sensor-ids", nil, "Sensor ids to simulate instead of the registered ones")
	simulateCmd.Flags().Int("demo-sensors", 3, "Demo sensors to invent when none are registered")
	simulateCmd.Flags().Bool("use-db", true, "List registered sensors from PostgreSQL")

	// Bind flags to viper
	_ = viper.BindPFlag("simulate.interval", simulateCmd.Flags().Lookup("interval"))
	_ = viper.BindPFlag("simulate.sensor_ids", simulateCmd.Flags().Lookup("sensor-ids"))
	_ = viper.BindPFlag("simulate.demo_sensors", simulateCmd.Flags().Lookup("demo-sensors"))
	_ = viper.BindPFlag("simulate.use_db", simulateCmd.Flags().Lookup("use-db"))
}

func runSimulate(_ *cobra.Command, _ []string) error {
	logger := GetLogger()
	logger.Info("starting sensor simulator")

	config := &simulator.ServerConfig{
		Logger:      logger,
		RabbitMQURL: viper.GetString("rabbitmq.url"),
		Queue:       viper.GetString("rabbitmq.sensor_queue"),
		Interval:    viper.GetDuration("simulate.interval"),
		SensorIDs:   viper.GetStringSlice("simulate.sensor_ids"),
		DemoSensors: viper.GetInt("simulate.demo_sensors"),
		Metrics:     metrics.NewSimulatorMetrics(metrics.Namespace),
		MQMetrics:   metrics.NewMQMetrics(metrics.Namespace),
	}

	if len(config.SensorIDs) == 0 && viper.GetBool("simulate.use_db") {
		db, err := pgstore.NewDB(postgresConfig(logger, true))
		if err != nil {
			// Demo sensors still exercise the pipeline without a database.
			logger.Warn("postgres unavailable, falling back to demo sensors", "error", err)
		} else {
			defer func() { _ = pgstore.CloseDB(db, logger) }()
			store, err := pgstore.New(db, logger)
			if err != nil {
				return err
			}
			config.Sensors = store
		}
	}

	// Create and run server
	server, err := simulator.NewServer(config)
	if err != nil {
		logger.Error("failed to create simulator", "error", err)
		return err
	}

	logger.Info("simulator configuration",
		"rabbitmq_url", config.RabbitMQURL,
		"queue", config.Queue,
		"interval", config.Interval,
		"sensor_ids", len(config.SensorIDs),
		"registered_sensors", config.Sensors != nil,
		"demo_sensors", config.DemoSensors,
	)

	if err := server.Run(context.Background()); err != nil {
		logger.Error("simulator error", "error", err)
		return err
	}

	logger.Info("simulator stopped")
	return nil
}
