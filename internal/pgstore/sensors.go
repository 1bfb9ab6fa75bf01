package pgstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"agrismart.dev/agrismart/internal/models"
)

// ListSensors returns the sensors registered by a user.
func (s *Store) ListSensors(ctx context.Context, userID string) ([]models.IoTSensor, error) {
	var out []models.IoTSensor
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list sensors: %w", err)
	}
	return out, nil
}

// ListSensorIDs returns every registered sensor id.
func (s *Store) ListSensorIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&models.IoTSensor{}).Order("id").Pluck("sensor_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list sensor ids: %w", err)
	}
	return ids, nil
}

// SensorByID loads a sensor by its device id.
func (s *Store) SensorByID(ctx context.Context, sensorID string) (*models.IoTSensor, error) {
	var sensor models.IoTSensor
	if err := s.db.WithContext(ctx).Where("sensor_id = ?", sensorID).First(&sensor).Error; err != nil {
		return nil, translate(err)
	}
	return &sensor, nil
}

// CreateSensor registers a sensor. Device ids are unique.
func (s *Store) CreateSensor(ctx context.Context, sensor *models.IoTSensor) error {
	return translate(s.db.WithContext(ctx).Create(sensor).Error)
}

// SaveReading stores a reading and bumps the sensor's last_seen. A reading
// already stored for the same sensor and timestamp is left as is, so a
// redelivered message does not add a row.
func (s *Store) SaveReading(ctx context.Context, r *models.SensorReading) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sensor_id"}, {Name: "recorded_at"}},
			DoNothing: true,
		}).Create(r).Error
		if err != nil {
			return fmt.Errorf("failed to create sensor reading: %w", err)
		}
		return tx.Model(&models.IoTSensor{}).
			Where("sensor_id = ? AND (last_seen IS NULL OR last_seen < ?)", r.SensorID, r.RecordedAt).
			Update("last_seen", r.RecordedAt).Error
	})
}

// RecentReadings returns the newest readings of a sensor.
func (s *Store) RecentReadings(ctx context.Context, sensorID string, limit int) ([]models.SensorReading, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var out []models.SensorReading
	err := s.db.WithContext(ctx).
		Where("sensor_id = ?", sensorID).
		Order("recorded_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list readings: %w", err)
	}
	return out, nil
}

// CreateAlerts inserts alerts raised from one reading.
func (s *Store) CreateAlerts(ctx context.Context, alerts []models.SensorAlert) error {
	if len(alerts) == 0 {
		return nil
	}
	return translate(s.db.WithContext(ctx).Create(&alerts).Error)
}

// OpenAlertExists reports whether the sensor already has an unresolved
// alert for metric, so repeated readings do not pile up duplicates.
func (s *Store) OpenAlertExists(ctx context.Context, sensorID, metric string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.SensorAlert{}).
		Where("sensor_id = ? AND metric = ? AND resolved = false", sensorID, metric).
		Count(&n).Error
	return n > 0, err
}

// SensorAlerts returns alerts of the user's sensors joined with the sensor.
// A nil resolved matches both states.
func (s *Store) SensorAlerts(ctx context.Context, userID string, resolved *bool) ([]models.SensorAlert, error) {
	q := s.db.WithContext(ctx).
		Joins("Sensor").
		Where(`"Sensor"."user_id" = ?`, userID)
	if resolved != nil {
		q = q.Where("sensor_alerts.resolved = ?", *resolved)
	}

	var out []models.SensorAlert
	if err := q.Order("sensor_alerts.created_at DESC").Limit(200).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list sensor alerts: %w", err)
	}
	return out, nil
}

// AlertByID loads an alert with its sensor.
func (s *Store) AlertByID(ctx context.Context, id uint) (*models.SensorAlert, error) {
	var a models.SensorAlert
	if err := s.db.WithContext(ctx).Joins("Sensor").First(&a, "sensor_alerts.id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

// AcknowledgeAlert marks an alert as seen.
func (s *Store) AcknowledgeAlert(ctx context.Context, id uint) error {
	now := time.Now().UTC()
	return affected(s.db.WithContext(ctx).Model(&models.SensorAlert{}).
		Where("id = ?", id).
		Updates(map[string]any{"acknowledged": true, "acknowledged_at": now}))
}

// ResolveAlert closes an alert; resolving implies acknowledging.
func (s *Store) ResolveAlert(ctx context.Context, id uint) error {
	now := time.Now().UTC()
	return affected(s.db.WithContext(ctx).Model(&models.SensorAlert{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"acknowledged":    true,
			"acknowledged_at": gorm.Expr("COALESCE(acknowledged_at, ?)", now),
			"resolved":        true,
			"resolved_at":     now,
		}))
}

// CountOpenAlerts returns the number of unresolved alerts.
func (s *Store) CountOpenAlerts(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.SensorAlert{}).Where("resolved = false").Count(&n).Error
	return n, err
}
