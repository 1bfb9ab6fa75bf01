// Package cache stores JSON-encoded values with a TTL. Lookups that fail for
// any reason are reported as misses so callers can fall through to the source.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the JSON value cache used by the price and translation clients.
type Cache interface {
	// Get decodes the value under key into dst and reports whether it existed.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
}

// Config holds the Redis connection settings.
type Config struct {
	Logger   *slog.Logger
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Redis is a Cache backed by a Redis server.
type Redis struct {
	client *redis.Client
	logger *slog.Logger
	prefix string
}

// NewRedis connects to Redis and pings it.
func NewRedis(ctx context.Context, cfg *Config) (*Redis, error) {
	if cfg == nil {
		return nil, errors.New("cache config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "agrismart:"
	}

	cfg.Logger.Info("redis cache connected", "addr", cfg.Addr)
	return &Redis{client: client, logger: cfg.Logger, prefix: prefix}, nil
}

// Get implements Cache.
func (r *Redis) Get(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		r.logger.Warn("dropping undecodable cache entry", "key", key, "error", err)
		_ = r.client.Del(ctx, r.prefix+key).Err()
		return false, nil
	}
	return true, nil
}

// Set implements Cache.
func (r *Redis) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}
	if err := r.client.Set(ctx, r.prefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Noop never stores anything. It stands in when Redis is not configured.
type Noop struct{}

// Get implements Cache.
func (Noop) Get(context.Context, string, any) (bool, error) { return false, nil }

// Set implements Cache.
func (Noop) Set(context.Context, string, any, time.Duration) error { return nil }
