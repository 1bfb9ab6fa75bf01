// Package mongostore persists farm records (accounts, profiles, fields, crop
// cycles, activities, soil tests and weather history) in MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"agrismart.dev/agrismart/internal/models"
)

// Collection names.
const (
	UsersCollection         = "users"
	FarmersCollection       = "farmers"
	FieldsCollection        = "fields"
	CropCyclesCollection    = "crop_cycles"
	ActivitiesCollection    = "field_activities"
	SoilAnalysisCollection  = "soil_analysis"
	WeatherDataCollection   = "weather_data"
	WeatherAlertsCollection = "weather_alerts"
)

// Config holds the MongoDB connection settings.
type Config struct {
	Logger         *slog.Logger
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// Store implements the farm record stores on one database.
type Store struct {
	db     *mongo.Database
	logger *slog.Logger
}

// Connect opens a client, pings the primary and returns the store.
func Connect(ctx context.Context, cfg *Config) (*Store, *mongo.Client, error) {
	if cfg == nil {
		return nil, nil, errors.New("mongo config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, nil, errors.New("logger cannot be nil")
	}
	if cfg.URI == "" {
		return nil, nil, errors.New("mongo URI cannot be empty")
	}
	if cfg.Database == "" {
		return nil, nil, errors.New("mongo database cannot be empty")
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerAPIOptions(serverAPI).
		SetConnectTimeout(timeout).
		SetMaxPoolSize(50)

	cfg.Logger.Info("connecting to mongodb", "database", cfg.Database)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	store := New(client.Database(cfg.Database), cfg.Logger)
	if err := store.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}

	cfg.Logger.Info("mongodb connection established")
	return store, client, nil
}

// New wraps an existing database handle.
func New(db *mongo.Database, l *slog.Logger) *Store {
	return &Store{db: db, logger: l}
}

// Disconnect closes the client, waiting at most ten seconds.
func Disconnect(client *mongo.Client, logger *slog.Logger) error {
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("closing mongodb connection")
	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect mongodb: %w", err)
	}
	return nil
}

// EnsureIndexes creates the indexes the queries rely on. It is idempotent.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		UsersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		FarmersCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		FieldsCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		CropCyclesCollection: {
			{Keys: bson.D{{Key: "field_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		ActivitiesCollection: {
			{Keys: bson.D{{Key: "crop_cycle_id", Value: 1}, {Key: "date", Value: -1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
		},
		SoilAnalysisCollection: {
			{Keys: bson.D{{Key: "field_id", Value: 1}, {Key: "test_date", Value: -1}}},
		},
		WeatherDataCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "fetched_at", Value: -1}}},
		},
		WeatherAlertsCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}

	for coll, idx := range specs {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

func (s *Store) coll(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// translate maps driver errors onto the model sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return models.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return models.ErrDuplicate
	default:
		return err
	}
}

func newest(field string) *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: field, Value: -1}})
}

func stamp(created, updated *time.Time) {
	now := time.Now().UTC()
	if created.IsZero() {
		*created = now
	}
	*updated = now
}
