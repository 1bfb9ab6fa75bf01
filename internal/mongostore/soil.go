package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"agrismart.dev/agrismart/internal/models"
)

// ListSoilAnalyses returns a user's soil tests, optionally for one field.
func (s *Store) ListSoilAnalyses(ctx context.Context, userID primitive.ObjectID, fieldID *primitive.ObjectID) ([]models.SoilAnalysis, error) {
	q := bson.M{"user_id": userID}
	if fieldID != nil {
		q["field_id"] = *fieldID
	}
	cur, err := s.coll(SoilAnalysisCollection).Find(ctx, q, newest("test_date"))
	if err != nil {
		return nil, fmt.Errorf("failed to list soil analyses: %w", err)
	}
	out := []models.SoilAnalysis{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode soil analyses: %w", err)
	}
	return out, nil
}

// CreateSoilAnalysis inserts a and sets its id.
func (s *Store) CreateSoilAnalysis(ctx context.Context, a *models.SoilAnalysis) error {
	stamp(&a.CreatedAt, &a.UpdatedAt)
	res, err := s.coll(SoilAnalysisCollection).InsertOne(ctx, a)
	if err != nil {
		return translate(err)
	}
	a.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

// LatestSoilAnalysis returns the most recent test of a field.
func (s *Store) LatestSoilAnalysis(ctx context.Context, fieldID primitive.ObjectID) (*models.SoilAnalysis, error) {
	var a models.SoilAnalysis
	opts := options.FindOne().SetSort(bson.D{{Key: "test_date", Value: -1}})
	if err := s.coll(SoilAnalysisCollection).FindOne(ctx, bson.M{"field_id": fieldID}, opts).Decode(&a); err != nil {
		return nil, translate(err)
	}
	return &a, nil
}
