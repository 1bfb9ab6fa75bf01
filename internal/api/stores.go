package api

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"agrismart.dev/agrismart/internal/gemini"
	"agrismart.dev/agrismart/internal/localize"
	"agrismart.dev/agrismart/internal/models"
	"agrismart.dev/agrismart/internal/recommend"
	"agrismart.dev/agrismart/internal/weather"
)

// UserStore persists accounts and farmer profiles.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	SetAdminFlag(ctx context.Context, id primitive.ObjectID, admin bool) error
	ListUsers(ctx context.Context) ([]models.User, error)
	DeleteUser(ctx context.Context, id primitive.ObjectID) error
	CountUsers(ctx context.Context) (int64, error)

	ProfileByUser(ctx context.Context, userID primitive.ObjectID) (*models.FarmerProfile, error)
	UpsertProfile(ctx context.Context, p *models.FarmerProfile) error
}

// FarmStore persists fields and everything recorded on them.
type FarmStore interface {
	ListFields(ctx context.Context, userID primitive.ObjectID) ([]models.Field, error)
	FieldByID(ctx context.Context, id primitive.ObjectID) (*models.Field, error)
	CreateField(ctx context.Context, f *models.Field) error
	UpdateField(ctx context.Context, f *models.Field) error
	DeleteField(ctx context.Context, id primitive.ObjectID) error
	CountFields(ctx context.Context) (int64, error)

	ListCycles(ctx context.Context, f models.CycleFilter) ([]models.CropCycle, error)
	CycleByID(ctx context.Context, id primitive.ObjectID) (*models.CropCycle, error)
	ActiveCycle(ctx context.Context, fieldID primitive.ObjectID) (*models.CropCycle, error)
	CreateCycle(ctx context.Context, c *models.CropCycle) error
	UpdateCycle(ctx context.Context, c *models.CropCycle) error
	DeleteCycle(ctx context.Context, id primitive.ObjectID) error
	CountCycles(ctx context.Context) (int64, error)

	ListActivities(ctx context.Context, f models.ActivityFilter) ([]models.FieldActivity, error)
	CreateActivity(ctx context.Context, a *models.FieldActivity) error
	ActivityCostSummary(ctx context.Context, userID, cycleID primitive.ObjectID) (*models.CostSummary, error)

	ListSoilAnalyses(ctx context.Context, userID primitive.ObjectID, fieldID *primitive.ObjectID) ([]models.SoilAnalysis, error)
	CreateSoilAnalysis(ctx context.Context, a *models.SoilAnalysis) error
	LatestSoilAnalysis(ctx context.Context, fieldID primitive.ObjectID) (*models.SoilAnalysis, error)
}

// ReferenceStore serves schemes, the crop encyclopedia and market prices.
type ReferenceStore interface {
	ListSchemes(ctx context.Context, f models.SchemeFilter) ([]models.Scheme, error)
	SchemeByID(ctx context.Context, id uint) (*models.Scheme, error)
	CreateScheme(ctx context.Context, sc *models.Scheme) error
	UpdateScheme(ctx context.Context, sc *models.Scheme) error
	DeleteScheme(ctx context.Context, id uint) error
	CountSchemes(ctx context.Context) (int64, error)

	ListCrops(ctx context.Context, f models.CropFilter) ([]models.Crop, error)
	CropByID(ctx context.Context, id uint) (*models.Crop, error)
	CreateCrop(ctx context.Context, c *models.Crop) error
	UpdateCrop(ctx context.Context, c *models.Crop) error
	DeleteCrop(ctx context.Context, id uint) error

	ListMarketPrices(ctx context.Context, f models.MarketFilter) ([]models.MarketPrice, error)
	CreateMarketPrice(ctx context.Context, p *models.MarketPrice) error
	CreateMarketPrices(ctx context.Context, prices []models.MarketPrice) error
	DeleteMarketPrice(ctx context.Context, id uint) error
	PriceTrend(ctx context.Context, commodity string, since time.Time) ([]models.PricePoint, error)
	CountMarketPrices(ctx context.Context) (int64, error)
}

// SensorStore serves registered sensors and their alerts.
type SensorStore interface {
	ListSensors(ctx context.Context, userID string) ([]models.IoTSensor, error)
	CreateSensor(ctx context.Context, sensor *models.IoTSensor) error
	SensorAlerts(ctx context.Context, userID string, resolved *bool) ([]models.SensorAlert, error)
	AlertByID(ctx context.Context, id uint) (*models.SensorAlert, error)
	AcknowledgeAlert(ctx context.Context, id uint) error
	ResolveAlert(ctx context.Context, id uint) error
	CountOpenAlerts(ctx context.Context) (int64, error)
}

// Recommender builds recommendation reports.
type Recommender interface {
	Recommend(ctx context.Context, in recommend.Input) (*recommend.Report, error)
}

// WeatherService fetches and records local weather.
type WeatherService interface {
	Report(ctx context.Context, userID primitive.ObjectID, lat, lng float64) *weather.Report
	RecentAlerts(ctx context.Context, userID primitive.ObjectID) ([]models.WeatherAlert, error)
}

// SchemeLocalizer renders schemes in a language.
type SchemeLocalizer interface {
	Schemes(ctx context.Context, schemes []models.Scheme, lang string) []localize.Scheme
}

// DiseaseDetector diagnoses crop photos.
type DiseaseDetector interface {
	Configured() bool
	DetectDisease(ctx context.Context, image []byte) (*gemini.Diagnosis, error)
}

// SMSSender delivers text messages.
type SMSSender interface {
	Configured() bool
	Send(ctx context.Context, phone, message string) (string, error)
}

// ImageArchiver keeps a copy of uploaded photos.
type ImageArchiver interface {
	Store(ctx context.Context, userID string, data []byte, contentType string) (string, error)
}
