// Package archive keeps copies of uploaded crop photos in a Cloud Storage
// bucket so diagnoses can be reviewed later.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"

	"agrismart.dev/agrismart/pkg/metrics"
)

const serviceName = "gcs"

// Config configures a Bucket.
type Config struct {
	Logger  *slog.Logger
	Metrics *metrics.ExternalMetrics
	Bucket  string
	Prefix  string
}

// Bucket writes objects to one Cloud Storage bucket.
type Bucket struct {
	client  *storage.Client
	logger  *slog.Logger
	metrics *metrics.ExternalMetrics
	bucket  string
	prefix  string
}

// New opens a storage client with application default credentials.
func New(ctx context.Context, cfg *Config) (*Bucket, error) {
	if cfg == nil {
		return nil, errors.New("archive config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("bucket name cannot be empty")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "disease-images"
	}

	return &Bucket{
		client:  client,
		logger:  cfg.Logger.With("bucket", cfg.Bucket),
		metrics: cfg.Metrics,
		bucket:  cfg.Bucket,
		prefix:  prefix,
	}, nil
}

// ObjectName builds the key of an image uploaded by userID at t.
func ObjectName(prefix, userID string, t time.Time, ext string) string {
	return path.Join(prefix, userID, t.UTC().Format("2006/01/02"), uuid.NewString()+ext)
}

// Store uploads data and returns the gs:// URI of the object.
func (b *Bucket) Store(ctx context.Context, userID string, data []byte, contentType string) (uri string, err error) {
	started := time.Now()
	defer func() { b.metrics.Observe(serviceName, started, err) }()

	ext := ".jpg"
	if contentType == "image/png" {
		ext = ".png"
	}
	name := ObjectName(b.prefix, userID, started, ext)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	w := b.client.Bucket(b.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{"user_id": userID}

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize object: %w", err)
	}

	b.logger.Debug("image archived", "object", name, "bytes", len(data))
	return fmt.Sprintf("gs://%s/%s", b.bucket, name), nil
}

// Close releases the storage client.
func (b *Bucket) Close() error {
	return b.client.Close()
}
