// Package models holds the persistence records of AgriSmart. Farm records
// (users, profiles, fields, crop cycles, activities, soil tests, weather)
// live in MongoDB; reference and telemetry data (schemes, crops, market
// prices, sensors) live in PostgreSQL.
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is an account that can sign in.
type User struct {
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	Name         string             `bson:"name" json:"name"`
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	// IsAdmin mirrors the configured admin allow-list at the last sign-in.
	// Authorization never reads it.
	IsAdmin bool `bson:"is_admin" json:"is_admin"`
}

// Location is where a farmer lives and works.
type Location struct {
	State    string `bson:"state" json:"state"`
	District string `bson:"district" json:"district"`
	Village  string `bson:"village" json:"village"`
}

// FarmerProfile carries the contact and farm details of a user.
type FarmerProfile struct {
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
	Location      Location           `bson:"location" json:"location"`
	Name          string             `bson:"name" json:"name"`
	Phone         string             `bson:"phone" json:"phone"`
	FarmSizeAcres float64            `bson:"farm_size_acres" json:"farm_size_acres"`
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID        primitive.ObjectID `bson:"user_id" json:"user_id"`
}
