package mongostore

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"agrismart.dev/agrismart/internal/models"
)

// CreateUser inserts u. Emails are stored lower-cased and are unique.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	stamp(&u.CreatedAt, &u.UpdatedAt)

	res, err := s.coll(UsersCollection).InsertOne(ctx, u)
	if err != nil {
		return translate(err)
	}
	u.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

// UserByEmail finds an account by email.
func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.coll(UsersCollection).
		FindOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))}).
		Decode(&u)
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// UserByID finds an account by id.
func (s *Store) UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.coll(UsersCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// SetAdminFlag records the allow-list membership seen at sign-in.
func (s *Store) SetAdminFlag(ctx context.Context, id primitive.ObjectID, admin bool) error {
	_, err := s.coll(UsersCollection).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"is_admin": admin}},
	)
	return translate(err)
}

// ListUsers returns all accounts, newest first.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	cur, err := s.coll(UsersCollection).Find(ctx, bson.M{},
		newest("created_at").SetProjection(bson.M{"password_hash": 0}))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	out := []models.User{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return out, nil
}

// DeleteUser removes an account and its profile. Farm records are kept for
// the audit trail of the fields they describe.
func (s *Store) DeleteUser(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.coll(UsersCollection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translate(err)
	}
	if res.DeletedCount == 0 {
		return models.ErrNotFound
	}
	if _, err := s.coll(FarmersCollection).DeleteOne(ctx, bson.M{"user_id": id}); err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	return nil
}

// CountUsers returns the number of accounts.
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	return s.coll(UsersCollection).CountDocuments(ctx, bson.M{})
}

// ProfileByUser returns the farmer profile of a user.
func (s *Store) ProfileByUser(ctx context.Context, userID primitive.ObjectID) (*models.FarmerProfile, error) {
	var p models.FarmerProfile
	if err := s.coll(FarmersCollection).FindOne(ctx, bson.M{"user_id": userID}).Decode(&p); err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// UpsertProfile creates or replaces the profile of p.UserID.
func (s *Store) UpsertProfile(ctx context.Context, p *models.FarmerProfile) error {
	stamp(&p.CreatedAt, &p.UpdatedAt)

	set := bson.M{
		"name":            p.Name,
		"phone":           p.Phone,
		"location":        p.Location,
		"farm_size_acres": p.FarmSizeAcres,
		"updated_at":      p.UpdatedAt,
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	err := s.coll(FarmersCollection).FindOneAndUpdate(ctx,
		bson.M{"user_id": p.UserID},
		bson.M{"$set": set, "$setOnInsert": bson.M{"created_at": p.CreatedAt}},
		opts,
	).Decode(p)
	return translate(err)
}
