// Package main provides the unified CLI entry point for the AgriSmart services.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "agrismart",
		Short: "Farm management and advisory platform",
		Long: `AgriSmart helps small farmers run their fields with three components:
- serve: HTTP API and server-rendered pages
- ingest: consumes IoT sensor readings and delivers SMS alerts
- simulate: publishes synthetic soil sensor readings`,
		Version: "1.0.0",
	}
)

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or /etc/agrismart/config.yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "json", "log format (json, text)")

	// Connections shared by several commands
	flags.String("db-host", "localhost", "PostgreSQL host")
	flags.Int("db-port", 5432, "PostgreSQL port")
	flags.String("db-user", "postgres", "PostgreSQL user")
	flags.String("db-password", "", "PostgreSQL password")
	flags.String("db-name", "agrismart", "PostgreSQL database name")
	flags.String("db-sslmode", "disable", "PostgreSQL SSL mode")
	flags.String("mongo-uri", "mongodb://localhost:27017", "MongoDB connection URI")
	flags.String("mongo-database", "agrismart", "MongoDB database name")
	flags.String("rabbitmq-url", "amqp://localhost:5672", "RabbitMQ URL")
	flags.String("sensor-queue", "sensor-readings", "RabbitMQ queue name for sensor readings")
	flags.String("sms-queue", "sms-jobs", "RabbitMQ queue name for SMS jobs")

	// Bind flags to viper
	if err := viper.BindPFlag("log.level", flags.Lookup("log-level")); err != nil {
		log.Fatalf("failed to bind log-level flag: %v", err)
	}
	_ = viper.BindPFlag("log.format", flags.Lookup("log-format"))
	_ = viper.BindPFlag("postgres.host", flags.Lookup("db-host"))
	_ = viper.BindPFlag("postgres.port", flags.Lookup("db-port"))
	_ = viper.BindPFlag("postgres.user", flags.Lookup("db-user"))
	_ = viper.BindPFlag("postgres.password", flags.Lookup("db-password"))
	_ = viper.BindPFlag("postgres.name", flags.Lookup("db-name"))
	_ = viper.BindPFlag("postgres.sslmode", flags.Lookup("db-sslmode"))
	_ = viper.BindPFlag("mongo.uri", flags.Lookup("mongo-uri"))
	_ = viper.BindPFlag("mongo.database", flags.Lookup("mongo-database"))
	_ = viper.BindPFlag("rabbitmq.url", flags.Lookup("rabbitmq-url"))
	_ = viper.BindPFlag("rabbitmq.sensor_queue", flags.Lookup("sensor-queue"))
	_ = viper.BindPFlag("rabbitmq.sms_queue", flags.Lookup("sms-queue"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if err := InitConfig(cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Log config file being used
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}
