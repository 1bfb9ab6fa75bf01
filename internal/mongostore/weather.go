package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"agrismart.dev/agrismart/internal/models"
)

// AlertRetention is how long weather alerts stay visible.
const AlertRetention = 24 * time.Hour

// SaveWeather stores a reading and its alerts, then prunes the user's alerts
// older than AlertRetention.
func (s *Store) SaveWeather(ctx context.Context, r *models.WeatherReading, alerts []models.WeatherAlert) error {
	if r.FetchedAt.IsZero() {
		r.FetchedAt = time.Now().UTC()
	}
	res, err := s.coll(WeatherDataCollection).InsertOne(ctx, r)
	if err != nil {
		return fmt.Errorf("failed to save weather reading: %w", err)
	}
	r.ID = res.InsertedID.(primitive.ObjectID)

	if len(alerts) > 0 {
		docs := make([]any, len(alerts))
		for i := range alerts {
			if alerts[i].CreatedAt.IsZero() {
				alerts[i].CreatedAt = r.FetchedAt
			}
			alerts[i].UserID = r.UserID
			docs[i] = alerts[i]
		}
		if _, err := s.coll(WeatherAlertsCollection).InsertMany(ctx, docs); err != nil {
			return fmt.Errorf("failed to save weather alerts: %w", err)
		}
	}

	cutoff := time.Now().UTC().Add(-AlertRetention)
	pruned, err := s.coll(WeatherAlertsCollection).DeleteMany(ctx, bson.M{
		"user_id":    r.UserID,
		"created_at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return fmt.Errorf("failed to prune weather alerts: %w", err)
	}
	if pruned.DeletedCount > 0 {
		s.logger.Debug("pruned weather alerts", "user_id", r.UserID.Hex(), "count", pruned.DeletedCount)
	}
	return nil
}

// RecentAlerts returns a user's alerts from the last AlertRetention.
func (s *Store) RecentAlerts(ctx context.Context, userID primitive.ObjectID) ([]models.WeatherAlert, error) {
	cutoff := time.Now().UTC().Add(-AlertRetention)
	cur, err := s.coll(WeatherAlertsCollection).Find(ctx, bson.M{
		"user_id":    userID,
		"created_at": bson.M{"$gte": cutoff},
	}, newest("created_at"))
	if err != nil {
		return nil, fmt.Errorf("failed to list weather alerts: %w", err)
	}
	out := []models.WeatherAlert{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode weather alerts: %w", err)
	}
	return out, nil
}
