package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"agrismart.dev/agrismart/internal/models"
)

// ListFields returns the fields of a user, newest first, each with its
// active crop cycle attached when it has one.
func (s *Store) ListFields(ctx context.Context, userID primitive.ObjectID) ([]models.Field, error) {
	cur, err := s.coll(FieldsCollection).Find(ctx, bson.M{"user_id": userID}, newest("created_at"))
	if err != nil {
		return nil, fmt.Errorf("failed to list fields: %w", err)
	}
	fields := []models.Field{}
	if err := cur.All(ctx, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode fields: %w", err)
	}
	if len(fields) == 0 {
		return fields, nil
	}

	ids := make([]primitive.ObjectID, len(fields))
	for i := range fields {
		ids[i] = fields[i].ID
	}
	cur, err = s.coll(CropCyclesCollection).Find(ctx, bson.M{
		"field_id": bson.M{"$in": ids},
		"status":   bson.M{"$in": models.ActiveStatuses},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load active cycles: %w", err)
	}
	var active []models.CropCycle
	if err := cur.All(ctx, &active); err != nil {
		return nil, fmt.Errorf("failed to decode active cycles: %w", err)
	}

	byField := make(map[primitive.ObjectID]*models.CropCycle, len(active))
	for i := range active {
		byField[active[i].FieldID] = &active[i]
	}
	for i := range fields {
		fields[i].ActiveCycle = byField[fields[i].ID]
	}
	return fields, nil
}

// FieldByID returns one field regardless of owner.
func (s *Store) FieldByID(ctx context.Context, id primitive.ObjectID) (*models.Field, error) {
	var f models.Field
	if err := s.coll(FieldsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&f); err != nil {
		return nil, translate(err)
	}
	return &f, nil
}

// CreateField inserts f and sets its id.
func (s *Store) CreateField(ctx context.Context, f *models.Field) error {
	stamp(&f.CreatedAt, &f.UpdatedAt)
	res, err := s.coll(FieldsCollection).InsertOne(ctx, f)
	if err != nil {
		return translate(err)
	}
	f.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

// UpdateField replaces the stored field with f.
func (s *Store) UpdateField(ctx context.Context, f *models.Field) error {
	f.UpdatedAt = time.Now().UTC()
	res, err := s.coll(FieldsCollection).ReplaceOne(ctx, bson.M{"_id": f.ID}, f)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteField removes a field. Callers check for active cycles first.
func (s *Store) DeleteField(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.coll(FieldsCollection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translate(err)
	}
	if res.DeletedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// CountFields returns the number of fields across all users.
func (s *Store) CountFields(ctx context.Context) (int64, error) {
	return s.coll(FieldsCollection).CountDocuments(ctx, bson.M{})
}
