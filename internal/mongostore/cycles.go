package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"agrismart.dev/agrismart/internal/models"
)

// ListCycles returns the crop cycles matching f, newest first.
func (s *Store) ListCycles(ctx context.Context, f models.CycleFilter) ([]models.CropCycle, error) {
	q := bson.M{"user_id": f.UserID}
	if f.FieldID != nil {
		q["field_id"] = *f.FieldID
	}
	if f.Status != "" {
		q["status"] = f.Status
	}

	cur, err := s.coll(CropCyclesCollection).Find(ctx, q, newest("created_at"))
	if err != nil {
		return nil, fmt.Errorf("failed to list crop cycles: %w", err)
	}
	out := []models.CropCycle{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode crop cycles: %w", err)
	}
	return out, nil
}

// CycleByID returns one crop cycle regardless of owner.
func (s *Store) CycleByID(ctx context.Context, id primitive.ObjectID) (*models.CropCycle, error) {
	var c models.CropCycle
	if err := s.coll(CropCyclesCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// ActiveCycle returns the cycle occupying a field, or models.ErrNotFound.
func (s *Store) ActiveCycle(ctx context.Context, fieldID primitive.ObjectID) (*models.CropCycle, error) {
	var c models.CropCycle
	err := s.coll(CropCyclesCollection).FindOne(ctx, bson.M{
		"field_id": fieldID,
		"status":   bson.M{"$in": models.ActiveStatuses},
	}).Decode(&c)
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// CreateCycle inserts c and sets its id.
func (s *Store) CreateCycle(ctx context.Context, c *models.CropCycle) error {
	stamp(&c.CreatedAt, &c.UpdatedAt)
	res, err := s.coll(CropCyclesCollection).InsertOne(ctx, c)
	if err != nil {
		return translate(err)
	}
	c.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

// UpdateCycle replaces the stored cycle with c.
func (s *Store) UpdateCycle(ctx context.Context, c *models.CropCycle) error {
	c.UpdatedAt = time.Now().UTC()
	res, err := s.coll(CropCyclesCollection).ReplaceOne(ctx, bson.M{"_id": c.ID}, c)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteCycle removes a cycle together with its field activities.
func (s *Store) DeleteCycle(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.coll(CropCyclesCollection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translate(err)
	}
	if res.DeletedCount == 0 {
		return models.ErrNotFound
	}

	removed, err := s.coll(ActivitiesCollection).DeleteMany(ctx, bson.M{"crop_cycle_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete activities of cycle: %w", err)
	}
	s.logger.Debug("crop cycle deleted", "cycle_id", id.Hex(), "activities", removed.DeletedCount)
	return nil
}

// CountCycles returns the number of crop cycles across all users.
func (s *Store) CountCycles(ctx context.Context) (int64, error) {
	return s.coll(CropCyclesCollection).CountDocuments(ctx, bson.M{})
}
