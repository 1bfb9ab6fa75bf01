package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"agrismart.dev/agrismart/internal/models"
)

// ListActivities returns activities matching f, most recent date first.
func (s *Store) ListActivities(ctx context.Context, f models.ActivityFilter) ([]models.FieldActivity, error) {
	q := bson.M{"user_id": f.UserID}
	if f.FieldID != nil {
		q["field_id"] = *f.FieldID
	}
	if f.CropCycleID != nil {
		q["crop_cycle_id"] = *f.CropCycleID
	}

	cur, err := s.coll(ActivitiesCollection).Find(ctx, q, newest("date"))
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	out := []models.FieldActivity{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode activities: %w", err)
	}
	return out, nil
}

// CreateActivity inserts a and sets its id.
func (s *Store) CreateActivity(ctx context.Context, a *models.FieldActivity) error {
	stamp(&a.CreatedAt, &a.UpdatedAt)
	res, err := s.coll(ActivitiesCollection).InsertOne(ctx, a)
	if err != nil {
		return translate(err)
	}
	a.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

// ActivityCostSummary totals the cost of a cycle's activities per type.
func (s *Store) ActivityCostSummary(ctx context.Context, userID, cycleID primitive.ObjectID) (*models.CostSummary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID, "crop_cycle_id": cycleID}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$activity_type",
			"total": bson.M{"$sum": "$cost"},
			"count": bson.M{"$sum": 1},
		}}},
	}

	cur, err := s.coll(ActivitiesCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate activity costs: %w", err)
	}
	var rows []struct {
		Type  string  `bson:"_id"`
		Total float64 `bson:"total"`
		Count int     `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode activity costs: %w", err)
	}

	sum := &models.CostSummary{CropCycleID: cycleID, ByType: make(map[string]float64, len(rows))}
	for _, r := range rows {
		sum.ByType[r.Type] = r.Total
		sum.Total += r.Total
		sum.Activities += r.Count
	}
	return sum, nil
}
