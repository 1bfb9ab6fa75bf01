// Package weather fetches local conditions, derives farm alerts from them and
// records both.
package weather

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"agrismart.dev/agrismart/internal/models"
	"agrismart.dev/agrismart/internal/openmeteo"
	"agrismart.dev/agrismart/pkg/metrics"
)

// Sources reported in a Report.
const (
	SourceOpenMeteo = "open-meteo"
	SourceFallback  = "fallback"
)

// Forecaster fetches a forecast at a point.
type Forecaster interface {
	Forecast(ctx context.Context, lat, lng float64) (*openmeteo.Forecast, error)
}

// Store persists readings and alerts.
type Store interface {
	SaveWeather(ctx context.Context, r *models.WeatherReading, alerts []models.WeatherAlert) error
	RecentAlerts(ctx context.Context, userID primitive.ObjectID) ([]models.WeatherAlert, error)
}

// Current is the present weather at the requested point.
type Current struct {
	Condition     string  `json:"condition"`
	Temperature   float64 `json:"temperature"`
	Humidity      float64 `json:"humidity"`
	WindSpeed     float64 `json:"wind_speed"`
	Precipitation float64 `json:"precipitation"`
	WeatherCode   int     `json:"weather_code"`
}

// Day is one day of the outlook.
type Day struct {
	Date          string  `json:"date"`
	Condition     string  `json:"condition"`
	TempMax       float64 `json:"temp_max"`
	TempMin       float64 `json:"temp_min"`
	Precipitation float64 `json:"precipitation"`
}

// Report is what the weather endpoint returns.
type Report struct {
	Source   string                `json:"source"`
	Alerts   []models.WeatherAlert `json:"alerts"`
	Forecast []Day                 `json:"forecast"`
	Current  Current               `json:"current"`
	Lat      float64               `json:"lat"`
	Lng      float64               `json:"lng"`
}

// Config configures a Service.
type Config struct {
	Logger     *slog.Logger
	Forecaster Forecaster
	Store      Store
	Metrics    *metrics.ExternalMetrics
}

// Service serves weather reports for users.
type Service struct {
	logger     *slog.Logger
	forecaster Forecaster
	store      Store
	metrics    *metrics.ExternalMetrics
}

// NewService creates a Service.
func NewService(cfg *Config) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("weather config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Forecaster == nil {
		return nil, errors.New("forecaster cannot be nil")
	}
	if cfg.Store == nil {
		return nil, errors.New("store cannot be nil")
	}
	return &Service{
		logger:     cfg.Logger,
		forecaster: cfg.Forecaster,
		store:      cfg.Store,
		metrics:    cfg.Metrics,
	}, nil
}

// Report fetches conditions at (lat, lng) for a user. When the forecast API
// fails it returns Fallback data and stores nothing. A storage failure is
// logged but does not fail the report.
func (s *Service) Report(ctx context.Context, userID primitive.ObjectID, lat, lng float64) *Report {
	f, err := s.forecaster.Forecast(ctx, lat, lng)
	if err != nil {
		s.logger.Warn("weather API failed, serving fallback", "error", err)
		s.metrics.Fallback("open-meteo")
		return Fallback(lat, lng)
	}

	r := build(f, lat, lng)

	reading := &models.WeatherReading{
		UserID:        userID,
		Lat:           lat,
		Lng:           lng,
		Temperature:   r.Current.Temperature,
		Humidity:      r.Current.Humidity,
		WindSpeed:     r.Current.WindSpeed,
		Precipitation: r.Current.Precipitation,
		WeatherCode:   r.Current.WeatherCode,
		Condition:     r.Current.Condition,
		FetchedAt:     time.Now().UTC(),
	}
	if err := s.store.SaveWeather(ctx, reading, r.Alerts); err != nil {
		s.logger.Error("failed to store weather reading", "user_id", userID.Hex(), "error", err)
	}
	return r
}

// RecentAlerts returns the user's alerts of the last day.
func (s *Service) RecentAlerts(ctx context.Context, userID primitive.ObjectID) ([]models.WeatherAlert, error) {
	return s.store.RecentAlerts(ctx, userID)
}

func build(f *openmeteo.Forecast, lat, lng float64) *Report {
	r := &Report{
		Source: SourceOpenMeteo,
		Lat:    lat,
		Lng:    lng,
		Current: Current{
			Condition:     Condition(f.Current.WeatherCode),
			Temperature:   f.Current.Temperature,
			Humidity:      f.Current.Humidity,
			WindSpeed:     f.Current.WindSpeed,
			Precipitation: f.Current.Precipitation,
			WeatherCode:   f.Current.WeatherCode,
		},
		Forecast: make([]Day, 0, len(f.Daily)),
	}
	for _, d := range f.Daily {
		r.Forecast = append(r.Forecast, Day{
			Date:          d.Date,
			Condition:     Condition(d.WeatherCode),
			TempMax:       d.TempMax,
			TempMin:       d.TempMin,
			Precipitation: d.PrecipitationSum,
		})
	}

	var tomorrow *float64
	if len(f.Daily) > 1 {
		p := f.Daily[1].PrecipitationSum
		tomorrow = &p
	}
	r.Alerts = Alerts(r.Current, tomorrow)
	if r.Alerts == nil {
		r.Alerts = []models.WeatherAlert{}
	}
	return r
}

// Fallback is the sample report served when the forecast API is down.
func Fallback(lat, lng float64) *Report {
	today := time.Now().UTC()
	current := Current{
		Condition:   PartlyCloudy,
		Temperature: 28,
		Humidity:    65,
		WindSpeed:   12,
		WeatherCode: 2,
	}
	r := &Report{
		Source:  SourceFallback,
		Lat:     lat,
		Lng:     lng,
		Current: current,
	}
	for i := range 3 {
		r.Forecast = append(r.Forecast, Day{
			Date:      today.AddDate(0, 0, i).Format(time.DateOnly),
			Condition: PartlyCloudy,
			TempMax:   32,
			TempMin:   22,
		})
	}
	r.Alerts = Alerts(current, nil)
	return r
}
