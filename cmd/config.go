package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"agrismart.dev/agrismart/internal/pgstore"
	"agrismart.dev/agrismart/internal/sms"
	"agrismart.dev/agrismart/pkg/logger"
	"agrismart.dev/agrismart/pkg/metrics"
)

// InitConfig initializes Viper configuration.
// Values come from flags, AGRISMART_* environment variables (a .env file in
// the working directory is loaded first) and config.yaml, in that order.
func InitConfig(cfgFile string) error {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return fmt.Errorf("failed to load .env: %w", err)
		}
	}

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in current directory and /etc/agrismart/
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/agrismart/")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	setDefaults()

	// Environment variables
	viper.SetEnvPrefix("AGRISMART")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		var configNotFoundErr viper.ConfigFileNotFoundError
		if errors.As(err, &configNotFoundErr) {
			// Config file not found; rely on env vars and defaults
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// setDefaults covers keys that have no flag. AutomaticEnv only resolves keys
// viper already knows about through Get, so secrets stay reachable from env.
func setDefaults() {
	viper.SetDefault("redis.addr", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("auth.jwt_secret", "")
	viper.SetDefault("auth.admin_user_ids", []string{})
	viper.SetDefault("auth.cookie_secure", false)
	viper.SetDefault("auth.session_ttl", 7*24*time.Hour)
	viper.SetDefault("mandi.api_key", "")
	viper.SetDefault("mandi.base_url", "")
	viper.SetDefault("weather.base_url", "")
	viper.SetDefault("weather.days", 7)
	viper.SetDefault("weather.default_lat", 18.52)
	viper.SetDefault("weather.default_lng", 73.86)
	viper.SetDefault("genai.api_key", "")
	viper.SetDefault("genai.model", "")
	viper.SetDefault("sms.url", "")
	viper.SetDefault("sms.api_key", "")
	viper.SetDefault("sms.from", "AGRSMT")
	viper.SetDefault("storage.bucket", "")
	viper.SetDefault("storage.prefix", "disease-images")
	viper.SetDefault("cors.allowed_origins", []string{})
}

// GetLogger creates a slog.Logger based on configuration.
func GetLogger() *slog.Logger {
	return logger.New(&logger.Config{
		Output:  os.Stdout,
		Service: rootCmd.Use,
		Level:   logger.ParseLevel(viper.GetString("log.level")),
		Text:    strings.EqualFold(viper.GetString("log.format"), "text"),
	})
}

func postgresConfig(log *slog.Logger, skipSeed bool) *pgstore.DBConfig {
	return &pgstore.DBConfig{
		Logger:   log,
		Host:     viper.GetString("postgres.host"),
		Port:     viper.GetInt("postgres.port"),
		User:     viper.GetString("postgres.user"),
		Password: viper.GetString("postgres.password"),
		DBName:   viper.GetString("postgres.name"),
		SSLMode:  viper.GetString("postgres.sslmode"),
		SkipSeed: skipSeed,
	}
}

// newSMSSender returns an unconfigured sender when sms.url is empty.
func newSMSSender(log *slog.Logger, m *metrics.ExternalMetrics) (*sms.Sender, error) {
	return sms.New(&sms.Config{
		Logger:  log,
		Metrics: m,
		URL:     viper.GetString("sms.url"),
		APIKey:  viper.GetString("sms.api_key"),
		From:    viper.GetString("sms.from"),
	})
}
