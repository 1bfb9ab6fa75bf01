// Package telemetry defines the JSON messages exchanged over RabbitMQ between
// the simulator, the ingest worker and the SMS notifier.
package telemetry

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Queue names used when none are configured.
const (
	DefaultSensorQueue = "sensor-readings"
	DefaultSMSQueue    = "sms-notifications"
)

var (
	errMissingSensorID = errors.New("sensor_id is required")
	errMissingTime     = errors.New("recorded_at is required")
	errMissingPhone    = errors.New("recipient phone is required")
	errMissingMessage  = errors.New("message is required")
)

// SensorReading is one sample from a field sensor.
type SensorReading struct {
	RecordedAt      time.Time `json:"recorded_at"`
	SensorID        string    `json:"sensor_id"`
	SoilMoisture    float64   `json:"soil_moisture"`    // volumetric water content, %
	SoilTemperature float64   `json:"soil_temperature"` // °C
	AirTemperature  float64   `json:"air_temperature"`  // °C
	Humidity        float64   `json:"humidity"`         // relative, %
	Battery         float64   `json:"battery"`          // %
}

// Validate rejects readings the ingest worker cannot store.
func (r SensorReading) Validate() error {
	if strings.TrimSpace(r.SensorID) == "" {
		return errMissingSensorID
	}
	if r.RecordedAt.IsZero() {
		return errMissingTime
	}
	for name, v := range map[string]float64{
		"soil_moisture":    r.SoilMoisture,
		"soil_temperature": r.SoilTemperature,
		"air_temperature":  r.AirTemperature,
		"humidity":         r.Humidity,
		"battery":          r.Battery,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s is not a finite number", name)
		}
	}
	if r.SoilMoisture < 0 || r.SoilMoisture > 100 {
		return fmt.Errorf("soil_moisture %.1f out of range", r.SoilMoisture)
	}
	if r.Humidity < 0 || r.Humidity > 100 {
		return fmt.Errorf("humidity %.1f out of range", r.Humidity)
	}
	if r.Battery < 0 || r.Battery > 100 {
		return fmt.Errorf("battery %.1f out of range", r.Battery)
	}
	return nil
}

// SMSJob asks the notifier to deliver one text message.
type SMSJob struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
	To        string    `json:"to"`
	Message   string    `json:"message"`
	SensorID  string    `json:"sensor_id,omitempty"`
	AlertID   uint      `json:"alert_id,omitempty"`
}

// Validate rejects jobs that cannot be delivered.
func (j SMSJob) Validate() error {
	if strings.TrimSpace(j.To) == "" {
		return errMissingPhone
	}
	if strings.TrimSpace(j.Message) == "" {
		return errMissingMessage
	}
	return nil
}
