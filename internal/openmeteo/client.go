// Package openmeteo is a minimal client for the Open-Meteo forecast API.
package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"agrismart.dev/agrismart/pkg/metrics"
)

// DefaultBaseURL is the public forecast endpoint.
const DefaultBaseURL = "https://api.open-meteo.com/v1/forecast"

const serviceName = "open-meteo"

// Current is the observation at the time of the request.
type Current struct {
	Time          string  `json:"time"`
	Temperature   float64 `json:"temperature_2m"`
	Humidity      float64 `json:"relative_humidity_2m"`
	Precipitation float64 `json:"precipitation"`
	WindSpeed     float64 `json:"wind_speed_10m"`
	WeatherCode   int     `json:"weather_code"`
}

// Day is one day of the daily forecast.
type Day struct {
	Date             string  `json:"date"`
	TempMax          float64 `json:"temp_max"`
	TempMin          float64 `json:"temp_min"`
	PrecipitationSum float64 `json:"precipitation_sum"`
	WeatherCode      int     `json:"weather_code"`
}

// Forecast is the current observation plus the daily outlook, today first.
type Forecast struct {
	Current  Current `json:"current"`
	Daily    []Day   `json:"daily"`
	Timezone string  `json:"timezone"`
}

type response struct {
	Timezone string  `json:"timezone"`
	Current  Current `json:"current"`
	Daily    struct {
		Time             []string  `json:"time"`
		WeatherCode      []int     `json:"weather_code"`
		TempMax          []float64 `json:"temperature_2m_max"`
		TempMin          []float64 `json:"temperature_2m_min"`
		PrecipitationSum []float64 `json:"precipitation_sum"`
	} `json:"daily"`
}

// Config configures a Client.
type Config struct {
	Logger  *slog.Logger
	Metrics *metrics.ExternalMetrics
	HTTP    *http.Client
	BaseURL string
	Days    int
}

// Client fetches forecasts.
type Client struct {
	logger  *slog.Logger
	metrics *metrics.ExternalMetrics
	http    *http.Client
	baseURL string
	days    int
}

// New creates a Client.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("open-meteo config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	c := &Client{
		logger:  cfg.Logger.With("client", serviceName),
		metrics: cfg.Metrics,
		http:    cfg.HTTP,
		baseURL: cfg.BaseURL,
		days:    cfg.Days,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 8 * time.Second}
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.days <= 0 {
		c.days = 3
	}
	return c, nil
}

// Forecast fetches the current conditions and daily outlook at a point.
func (c *Client) Forecast(ctx context.Context, lat, lng float64) (f *Forecast, err error) {
	started := time.Now()
	defer func() { c.metrics.Observe(serviceName, started, err) }()

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(lng, 'f', 4, 64))
	q.Set("current", "temperature_2m,relative_humidity_2m,precipitation,weather_code,wind_speed_10m")
	q.Set("daily", "weather_code,temperature_2m_max,temperature_2m_min,precipitation_sum")
	q.Set("wind_speed_unit", "kmh")
	q.Set("timezone", "auto")
	q.Set("forecast_days", strconv.Itoa(c.days))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build forecast request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("forecast request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("open-meteo returned status %d", resp.StatusCode)
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode forecast: %w", err)
	}

	f = &Forecast{Current: body.Current, Timezone: body.Timezone}
	d := body.Daily
	for i, date := range d.Time {
		day := Day{Date: date}
		if i < len(d.WeatherCode) {
			day.WeatherCode = d.WeatherCode[i]
		}
		if i < len(d.TempMax) {
			day.TempMax = d.TempMax[i]
		}
		if i < len(d.TempMin) {
			day.TempMin = d.TempMin[i]
		}
		if i < len(d.PrecipitationSum) {
			day.PrecipitationSum = d.PrecipitationSum[i]
		}
		f.Daily = append(f.Daily, day)
	}

	c.logger.Debug("forecast fetched", "lat", lat, "lng", lng, "days", len(f.Daily))
	return f, nil
}
