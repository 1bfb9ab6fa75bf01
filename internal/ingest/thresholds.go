package ingest

import (
	"fmt"

	"agrismart.dev/agrismart/internal/models"
	"agrismart.dev/agrismart/pkg/telemetry"
)

// Metric names stored on alerts.
const (
	MetricSoilMoisture    = "soil_moisture"
	MetricSoilTemperature = "soil_temperature"
	MetricBattery         = "battery"
)

// Band raises an alert of Severity when a value crosses Limit. Below bands
// fire when the value is under the limit, others when it is above.
type Band struct {
	Severity models.AlertSeverity
	Limit    float64
	Below    bool
}

func (b Band) crossed(v float64) bool {
	if b.Below {
		return v < b.Limit
	}
	return v > b.Limit
}

// Thresholds lists the bands per metric, most severe first.
type Thresholds map[string][]Band

// DefaultThresholds are tuned for open-field crops in Indian conditions.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MetricSoilMoisture: {
			{Severity: models.SeverityCritical, Limit: 10, Below: true},
			{Severity: models.SeverityHigh, Limit: 20, Below: true},
			{Severity: models.SeverityMedium, Limit: 85},
		},
		MetricSoilTemperature: {
			{Severity: models.SeverityCritical, Limit: 45},
			{Severity: models.SeverityHigh, Limit: 38},
			{Severity: models.SeverityMedium, Limit: 5, Below: true},
		},
		MetricBattery: {
			{Severity: models.SeverityHigh, Limit: 5, Below: true},
			{Severity: models.SeverityLow, Limit: 20, Below: true},
		},
	}
}

var metricOrder = []string{MetricSoilMoisture, MetricSoilTemperature, MetricBattery}

var metricLabels = map[string]string{
	MetricSoilMoisture:    "Soil moisture",
	MetricSoilTemperature: "Soil temperature",
	MetricBattery:         "Battery",
}

var metricUnits = map[string]string{
	MetricSoilMoisture:    "%",
	MetricSoilTemperature: "°C",
	MetricBattery:         "%",
}

func readingValue(r telemetry.SensorReading, metric string) float64 {
	switch metric {
	case MetricSoilMoisture:
		return r.SoilMoisture
	case MetricSoilTemperature:
		return r.SoilTemperature
	default:
		return r.Battery
	}
}

// Evaluate returns at most one alert per metric, graded by the first band
// the reading crosses.
func (t Thresholds) Evaluate(r telemetry.SensorReading) []models.SensorAlert {
	var alerts []models.SensorAlert
	for _, metric := range metricOrder {
		v := readingValue(r, metric)
		for _, band := range t[metric] {
			if !band.crossed(v) {
				continue
			}
			dir := "above"
			if band.Below {
				dir = "below"
			}
			alerts = append(alerts, models.SensorAlert{
				SensorID: r.SensorID,
				Severity: band.Severity,
				Metric:   metric,
				Value:    v,
				Message: fmt.Sprintf("%s %.1f%s is %s %.0f%s",
					metricLabels[metric], v, metricUnits[metric], dir, band.Limit, metricUnits[metric]),
			})
			break
		}
	}
	return alerts
}
