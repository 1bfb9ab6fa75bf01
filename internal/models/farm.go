package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CycleStatus is the lifecycle stage of a crop cycle.
type CycleStatus string

const (
	StatusPlanning  CycleStatus = "planning"
	StatusPlanted   CycleStatus = "planted"
	StatusGrowing   CycleStatus = "growing"
	StatusHarvested CycleStatus = "harvested"
	StatusFailed    CycleStatus = "failed"
)

// ActiveStatuses are the statuses that occupy a field. A field holds at
// most one cycle in any of them.
var ActiveStatuses = []CycleStatus{StatusPlanning, StatusPlanted, StatusGrowing}

// Valid reports whether s is a known status.
func (s CycleStatus) Valid() bool {
	switch s {
	case StatusPlanning, StatusPlanted, StatusGrowing, StatusHarvested, StatusFailed:
		return true
	}
	return false
}

// Active reports whether s occupies the field.
func (s CycleStatus) Active() bool {
	return s == StatusPlanning || s == StatusPlanted || s == StatusGrowing
}

// SoilTypes and IrrigationTypes enumerate the accepted field attributes.
var (
	SoilTypes = []string{
		"alluvial", "black", "red", "laterite", "desert",
		"mountain", "clay", "loamy", "sandy", "silt",
	}
	IrrigationTypes = []string{
		"drip", "sprinkler", "flood", "canal", "borewell", "rainfed",
	}
	ActivityTypes = []string{
		"sowing", "irrigation", "fertilizer", "pesticide",
		"weeding", "harvesting", "other",
	}
)

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lng float64 `bson:"lng" json:"lng"`
}

// Field is a parcel of land owned by one user.
type Field struct {
	CreatedAt      time.Time    `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `bson:"updated_at" json:"updated_at"`
	Coordinates    *Coordinates `bson:"coordinates,omitempty" json:"coordinates,omitempty"`
	ActiveCycle    *CropCycle   `bson:"-" json:"active_cycle,omitempty"`
	Name           string       `bson:"name" json:"name"`
	SoilType       string       `bson:"soil_type" json:"soil_type"`
	IrrigationType string       `bson:"irrigation_type" json:"irrigation_type"`
	// Boundary is a closed ring of [lng, lat] pairs.
	Boundary             [][2]float64       `bson:"boundary,omitempty" json:"boundary,omitempty"`
	AreaHectares         float64            `bson:"area_hectares" json:"area_hectares"`
	BoundaryAreaHectares float64            `bson:"boundary_area_hectares,omitempty" json:"boundary_area_hectares,omitempty"`
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID               primitive.ObjectID `bson:"user_id" json:"user_id"`
}

// CropCycle is one planting-to-harvest run on a field.
type CropCycle struct {
	CreatedAt           time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt           time.Time          `bson:"updated_at" json:"updated_at"`
	PlantingDate        *time.Time         `bson:"planting_date,omitempty" json:"planting_date,omitempty"`
	ExpectedHarvestDate *time.Time         `bson:"expected_harvest_date,omitempty" json:"expected_harvest_date,omitempty"`
	ActualHarvestDate   *time.Time         `bson:"actual_harvest_date,omitempty" json:"actual_harvest_date,omitempty"`
	CropName            string             `bson:"crop_name" json:"crop_name"`
	Variety             string             `bson:"variety" json:"variety"`
	Status              CycleStatus        `bson:"status" json:"status"`
	Notes               string             `bson:"notes" json:"notes"`
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FieldID             primitive.ObjectID `bson:"field_id" json:"field_id"`
	UserID              primitive.ObjectID `bson:"user_id" json:"user_id"`
}

// FieldActivity is a dated piece of work (and its cost) within a cycle.
type FieldActivity struct {
	Date         time.Time          `bson:"date" json:"date"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
	ActivityType string             `bson:"activity_type" json:"activity_type"`
	Notes        string             `bson:"notes" json:"notes"`
	Cost         float64            `bson:"cost" json:"cost"`
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID       primitive.ObjectID `bson:"user_id" json:"user_id"`
	CropCycleID  primitive.ObjectID `bson:"crop_cycle_id" json:"crop_cycle_id"`
	FieldID      primitive.ObjectID `bson:"field_id" json:"field_id"`
}

// SoilAnalysis is a lab or kit test of a field's soil. Nutrients are kg/ha.
type SoilAnalysis struct {
	TestDate      time.Time          `bson:"test_date" json:"test_date"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
	Nitrogen      float64            `bson:"nitrogen" json:"nitrogen"`
	Phosphorus    float64            `bson:"phosphorus" json:"phosphorus"`
	Potassium     float64            `bson:"potassium" json:"potassium"`
	PH            float64            `bson:"ph" json:"ph"`
	OrganicMatter float64            `bson:"organic_matter" json:"organic_matter"`
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID        primitive.ObjectID `bson:"user_id" json:"user_id"`
	FieldID       primitive.ObjectID `bson:"field_id" json:"field_id"`
}

// CycleFilter narrows a crop cycle listing. Zero values match anything.
type CycleFilter struct {
	FieldID *primitive.ObjectID
	Status  CycleStatus
	UserID  primitive.ObjectID
}

// ActivityFilter narrows a field activity listing.
type ActivityFilter struct {
	FieldID     *primitive.ObjectID
	CropCycleID *primitive.ObjectID
	UserID      primitive.ObjectID
}

// CostSummary totals activity costs of one crop cycle.
type CostSummary struct {
	ByType      map[string]float64 `json:"by_type"`
	Total       float64            `json:"total"`
	Activities  int                `json:"activities"`
	CropCycleID primitive.ObjectID `json:"crop_cycle_id"`
}
