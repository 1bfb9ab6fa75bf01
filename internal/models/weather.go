package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WeatherReading is one stored observation for a user's location.
type WeatherReading struct {
	FetchedAt     time.Time          `bson:"fetched_at" json:"fetched_at"`
	Condition     string             `bson:"condition" json:"condition"`
	Lat           float64            `bson:"lat" json:"lat"`
	Lng           float64            `bson:"lng" json:"lng"`
	Temperature   float64            `bson:"temperature" json:"temperature"`
	Humidity      float64            `bson:"humidity" json:"humidity"`
	WindSpeed     float64            `bson:"wind_speed" json:"wind_speed"`
	Precipitation float64            `bson:"precipitation" json:"precipitation"`
	WeatherCode   int                `bson:"weather_code" json:"weather_code"`
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID        primitive.ObjectID `bson:"user_id" json:"user_id"`
}

// WeatherAlert is a threshold breach derived from a reading. Alerts are
// recomputed on every fetch and expire after a day.
type WeatherAlert struct {
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	Type      string             `bson:"type" json:"type"`
	Severity  string             `bson:"severity" json:"severity"`
	Message   string             `bson:"message" json:"message"`
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
}
