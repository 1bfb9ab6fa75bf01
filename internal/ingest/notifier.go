package ingest

import (
	"context"
	"errors"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"agrismart.dev/agrismart/internal/models"
	"agrismart.dev/agrismart/pkg/metrics"
	"agrismart.dev/agrismart/pkg/mq"
	"agrismart.dev/agrismart/pkg/telemetry"
)

// SMSSender delivers one text message.
type SMSSender interface {
	Configured() bool
	Send(ctx context.Context, phone, message string) (string, error)
}

// SMSConsumer delivers queued SMS jobs through the gateway. A failed send is
// retried once through the queue, then dropped.
type SMSConsumer struct {
	*worker
	logger  *slog.Logger
	sender  SMSSender
	metrics *metrics.IngestMetrics
}

// SMSConsumerConfig holds the configuration for the SMSConsumer.
type SMSConsumerConfig struct {
	Logger    *slog.Logger
	Client    mq.ClientInterface
	Sender    SMSSender
	Metrics   *metrics.IngestMetrics
	MQMetrics *metrics.MQMetrics
}

// NewSMSConsumer creates a new SMSConsumer instance.
func NewSMSConsumer(cfg *SMSConsumerConfig) (*SMSConsumer, error) {
	if cfg == nil {
		return nil, errors.New("sms consumer config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Client == nil {
		return nil, errors.New("mq client cannot be nil")
	}

	if cfg.Sender == nil || !cfg.Sender.Configured() {
		return nil, errors.New("sms sender must be configured")
	}

	c := &SMSConsumer{
		logger:  cfg.Logger,
		sender:  cfg.Sender,
		metrics: cfg.Metrics,
	}
	c.worker = newWorker(cfg.Logger, cfg.Client, c.handleJob, cfg.Metrics, cfg.MQMetrics)
	return c, nil
}

func (c *SMSConsumer) handleJob(ctx context.Context, d amqp.Delivery) outcome {
	var job telemetry.SMSJob
	if err := mq.Decode(d, &job); err != nil {
		c.logger.Warn("dropping undecodable sms job", "error", err)
		return reject
	}
	if err := job.Validate(); err != nil {
		c.logger.Warn("dropping invalid sms job", "job_id", job.ID, "error", err)
		return reject
	}

	id, err := c.sender.Send(ctx, job.To, job.Message)
	c.metrics.SMS(err)
	if err != nil {
		if d.Redelivered {
			c.logger.Error("giving up on sms job", "job_id", job.ID, "error", err)
			return reject
		}
		c.logger.Warn("sms delivery failed, retrying", "job_id", job.ID, "error", err)
		return requeue
	}

	c.logger.Info("sms delivered", "job_id", job.ID, "message_id", id, "alert_id", job.AlertID)
	return ack
}

// ProfileStore loads farmer profiles.
type ProfileStore interface {
	ProfileByUser(ctx context.Context, userID primitive.ObjectID) (*models.FarmerProfile, error)
}

// ProfilePhones reads notification numbers from farmer profiles.
type ProfilePhones struct {
	Profiles ProfileStore
}

// PhoneForUser returns the profile phone of a user given by hex id.
func (p ProfilePhones) PhoneForUser(ctx context.Context, userID string) (string, error) {
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return "", models.ErrNotFound
	}
	profile, err := p.Profiles.ProfileByUser(ctx, id)
	if err != nil {
		return "", err
	}
	return profile.Phone, nil
}
