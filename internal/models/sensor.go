package models

import (
	"time"
)

// AlertSeverity grades a sensor alert.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// IoTSensor is a sensor registered on a field. UserID and FieldID are the hex
// ObjectIDs of the owning Mongo records.
type IoTSensor struct {
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	LastSeen  *time.Time `gorm:"index:idx_last_seen" json:"last_seen,omitempty"`
	SensorID  string     `gorm:"uniqueIndex;not null" json:"sensor_id"`
	UserID    string     `gorm:"index;not null" json:"user_id"`
	FieldID   string     `gorm:"index;not null" json:"field_id"`
	Name      string     `json:"name"`
	Kind      string     `gorm:"not null;default:soil" json:"kind"`
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	ID        uint       `gorm:"primaryKey" json:"id"`
}

// TableName specifies the table name for IoTSensor model.
func (IoTSensor) TableName() string {
	return "iot_sensors"
}

// SensorReading is a stored sample.
type SensorReading struct {
	RecordedAt      time.Time `gorm:"uniqueIndex:idx_sensor_recorded;not null" json:"recorded_at"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	SensorID        string    `gorm:"uniqueIndex:idx_sensor_recorded;not null" json:"sensor_id"`
	SoilMoisture    float64   `json:"soil_moisture"`
	SoilTemperature float64   `json:"soil_temperature"`
	AirTemperature  float64   `json:"air_temperature"`
	Humidity        float64   `json:"humidity"`
	Battery         float64   `json:"battery"`
	ID              uint      `gorm:"primaryKey" json:"id"`
}

// TableName specifies the table name for SensorReading model.
func (SensorReading) TableName() string {
	return "sensor_readings"
}

// SensorAlert is a threshold breach raised from a reading.
type SensorAlert struct {
	CreatedAt      time.Time     `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
	AcknowledgedAt *time.Time    `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time    `json:"resolved_at,omitempty"`
	Sensor         *IoTSensor    `gorm:"foreignKey:SensorID;references:SensorID" json:"sensor,omitempty"`
	SensorID       string        `gorm:"index;not null" json:"sensor_id"`
	Severity       AlertSeverity `gorm:"not null" json:"severity"`
	Metric         string        `gorm:"not null" json:"metric"`
	Message        string        `json:"message"`
	Value          float64       `json:"value"`
	ID             uint          `gorm:"primaryKey" json:"id"`
	Acknowledged   bool          `gorm:"not null;default:false" json:"acknowledged"`
	Resolved       bool          `gorm:"not null;default:false;index" json:"resolved"`
}

// TableName specifies the table name for SensorAlert model.
func (SensorAlert) TableName() string {
	return "sensor_alerts"
}
