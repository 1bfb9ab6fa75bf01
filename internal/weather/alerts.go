package weather

import (
	"fmt"

	"agrismart.dev/agrismart/internal/models"
)

// Alert types.
const (
	AlertRain               = "rain"
	AlertOptimalTemperature = "optimal_temperature"
	AlertHeat               = "heat"
	AlertLowHumidity        = "low_humidity"
	AlertHighWind           = "high_wind"
	AlertRainForecast       = "rain_forecast"
)

// Severities.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Thresholds.
const (
	HeatAbove           = 35.0
	OptimalMin          = 20.0
	OptimalMax          = 30.0
	LowHumidityBelow    = 30.0
	HighWindAbove       = 30.0
	RainForecastAboveMM = 5.0
)

// Alerts derives the alerts for the current conditions and, when known,
// tomorrow's precipitation sum.
func Alerts(c Current, tomorrowPrecip *float64) []models.WeatherAlert {
	var out []models.WeatherAlert
	add := func(kind, severity, msg string) {
		out = append(out, models.WeatherAlert{Type: kind, Severity: severity, Message: msg})
	}

	if c.Precipitation > 0 || Rainy(c.Condition) {
		add(AlertRain, SeverityMedium,
			"Rain now. Postpone spraying and fertilizer application.")
	}
	if c.Temperature >= OptimalMin && c.Temperature <= OptimalMax {
		add(AlertOptimalTemperature, SeverityLow,
			fmt.Sprintf("%.1f°C is good for field work and sowing.", c.Temperature))
	}
	if c.Temperature > HeatAbove {
		add(AlertHeat, SeverityHigh,
			fmt.Sprintf("Heat stress at %.1f°C. Irrigate in the evening and shade nurseries.", c.Temperature))
	}
	if c.Humidity < LowHumidityBelow {
		add(AlertLowHumidity, SeverityMedium,
			fmt.Sprintf("Humidity is %.0f%%. Check soil moisture and irrigate if needed.", c.Humidity))
	}
	if c.WindSpeed > HighWindAbove {
		add(AlertHighWind, SeverityHigh,
			fmt.Sprintf("Wind at %.0f km/h. Avoid spraying and secure tall crops.", c.WindSpeed))
	}
	if tomorrowPrecip != nil && *tomorrowPrecip > RainForecastAboveMM {
		add(AlertRainForecast, SeverityMedium,
			fmt.Sprintf("%.1f mm of rain expected tomorrow. Plan harvesting and drainage.", *tomorrowPrecip))
	}
	return out
}
