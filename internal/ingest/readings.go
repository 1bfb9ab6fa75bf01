package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"agrismart.dev/agrismart/internal/models"
	"agrismart.dev/agrismart/pkg/metrics"
	"agrismart.dev/agrismart/pkg/mq"
	"agrismart.dev/agrismart/pkg/telemetry"
)

// ReadingStore is the Postgres side of the pipeline.
type ReadingStore interface {
	SensorByID(ctx context.Context, sensorID string) (*models.IoTSensor, error)
	SaveReading(ctx context.Context, r *models.SensorReading) error
	OpenAlertExists(ctx context.Context, sensorID, metric string) (bool, error)
	CreateAlerts(ctx context.Context, alerts []models.SensorAlert) error
}

// PhoneBook resolves the notification number of a sensor owner.
type PhoneBook interface {
	PhoneForUser(ctx context.Context, userID string) (string, error)
}

// ReadingConsumer persists readings from the sensor queue, raises threshold
// alerts and queues SMS jobs for critical ones.
type ReadingConsumer struct {
	*worker
	logger     *slog.Logger
	store      ReadingStore
	phones     PhoneBook
	notify     mq.ClientInterface
	thresholds Thresholds
	metrics    *metrics.IngestMetrics
}

// ReadingConsumerConfig holds the configuration for the ReadingConsumer.
type ReadingConsumerConfig struct {
	Logger *slog.Logger
	Store  ReadingStore
	// Client consumes the sensor reading queue.
	Client mq.ClientInterface
	// Notify publishes SMS jobs. Critical alerts are only stored when nil.
	Notify     mq.ClientInterface
	Phones     PhoneBook
	Thresholds Thresholds
	Metrics    *metrics.IngestMetrics
	MQMetrics  *metrics.MQMetrics
}

// NewReadingConsumer creates a new ReadingConsumer instance.
func NewReadingConsumer(cfg *ReadingConsumerConfig) (*ReadingConsumer, error) {
	if cfg == nil {
		return nil, errors.New("reading consumer config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Store == nil {
		return nil, errors.New("store cannot be nil")
	}

	if cfg.Client == nil {
		return nil, errors.New("mq client cannot be nil")
	}

	if cfg.Notify != nil && cfg.Phones == nil {
		return nil, errors.New("phone book cannot be nil when notifications are enabled")
	}

	thresholds := cfg.Thresholds
	if thresholds == nil {
		thresholds = DefaultThresholds()
	}

	c := &ReadingConsumer{
		logger:     cfg.Logger,
		store:      cfg.Store,
		phones:     cfg.Phones,
		notify:     cfg.Notify,
		thresholds: thresholds,
		metrics:    cfg.Metrics,
	}
	c.worker = newWorker(cfg.Logger, cfg.Client, c.handleReading, cfg.Metrics, cfg.MQMetrics)
	return c, nil
}

func (c *ReadingConsumer) handleReading(ctx context.Context, d amqp.Delivery) outcome {
	var reading telemetry.SensorReading
	if err := mq.Decode(d, &reading); err != nil {
		c.logger.Warn("dropping undecodable reading", "error", err)
		return reject
	}
	if err := reading.Validate(); err != nil {
		c.logger.Warn("dropping invalid reading", "sensor_id", reading.SensorID, "error", err)
		return reject
	}

	log := c.logger.With(slog.String("sensor_id", reading.SensorID))
	log.Debug("received sensor reading",
		"recorded_at", reading.RecordedAt,
		"soil_moisture", reading.SoilMoisture,
	)

	sensor, err := c.store.SensorByID(ctx, reading.SensorID)
	c.metrics.DBOperation("sensor_lookup", ignoreNotFound(err))
	switch {
	case errors.Is(err, models.ErrNotFound):
		log.Warn("dropping reading from unregistered sensor")
		return reject
	case err != nil:
		log.Error("failed to look up sensor", "error", err)
		return requeue
	}

	err = c.store.SaveReading(ctx, &models.SensorReading{
		SensorID:        reading.SensorID,
		RecordedAt:      reading.RecordedAt.UTC(),
		SoilMoisture:    reading.SoilMoisture,
		SoilTemperature: reading.SoilTemperature,
		AirTemperature:  reading.AirTemperature,
		Humidity:        reading.Humidity,
		Battery:         reading.Battery,
	})
	c.metrics.DBOperation("save_reading", err)
	if err != nil {
		log.Error("failed to save sensor reading", "error", err)
		return requeue
	}

	alerts, err := c.raise(ctx, reading)
	if err != nil {
		log.Error("failed to store alerts", "error", err)
		return requeue
	}

	for _, a := range alerts {
		if a.Severity != models.SeverityCritical {
			continue
		}
		if err := c.queueSMS(ctx, sensor, a); err != nil {
			// The reading and alert are stored, so a failed notification
			// must not replay them.
			log.Error("failed to queue alert notification", "alert_id", a.ID, "error", err)
		}
	}
	return ack
}

// raise stores the alerts a reading triggers, skipping metrics that already
// have an open alert on this sensor.
func (c *ReadingConsumer) raise(ctx context.Context, reading telemetry.SensorReading) ([]models.SensorAlert, error) {
	var fresh []models.SensorAlert
	for _, a := range c.thresholds.Evaluate(reading) {
		open, err := c.store.OpenAlertExists(ctx, a.SensorID, a.Metric)
		c.metrics.DBOperation("open_alert_exists", err)
		if err != nil {
			return nil, err
		}
		if !open {
			fresh = append(fresh, a)
		}
	}
	if len(fresh) == 0 {
		return nil, nil
	}

	err := c.store.CreateAlerts(ctx, fresh)
	c.metrics.DBOperation("create_alerts", err)
	if err != nil {
		return nil, err
	}
	for _, a := range fresh {
		c.metrics.Alert(string(a.Severity), a.Metric)
	}
	return fresh, nil
}

func (c *ReadingConsumer) queueSMS(ctx context.Context, sensor *models.IoTSensor, a models.SensorAlert) error {
	if c.notify == nil {
		return nil
	}
	phone, err := c.phones.PhoneForUser(ctx, sensor.UserID)
	if errors.Is(err, models.ErrNotFound) || (err == nil && phone == "") {
		c.logger.Info("sensor owner has no phone number, skipping SMS", "sensor_id", sensor.SensorID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up phone: %w", err)
	}

	name := sensor.Name
	if name == "" {
		name = sensor.SensorID
	}
	job := telemetry.SMSJob{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		To:        phone,
		SensorID:  sensor.SensorID,
		AlertID:   a.ID,
		Message:   fmt.Sprintf("AgriSmart alert (%s): %s", name, a.Message),
	}
	return mq.PushJSON(ctx, c.notify, job)
}

func ignoreNotFound(err error) error {
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	return err
}
