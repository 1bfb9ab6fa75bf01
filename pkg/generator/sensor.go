// Package generator produces synthetic field sensor data for the simulator
// and for test fixtures.
package generator

import (
	"math"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"agrismart.dev/agrismart/pkg/telemetry"
)

// FieldSensor describes a simulated sensor installed in a field.
type FieldSensor struct {
	InstalledAt time.Time
	SensorID    string  `fake:"{uuid}"`
	Location    string  `fake:"{city}, {state}"`
	Firmware    string  `fake:"{appversion}"`
	Latitude    float64 `fake:"{latitude}"`
	Longitude   float64 `fake:"{longitude}"`
}

// NewFieldSensor returns a sensor with fake identity and placement.
func NewFieldSensor() *FieldSensor {
	var s FieldSensor
	if err := gofakeit.Struct(&s); err != nil {
		return nil
	}
	s.InstalledAt = time.Now().Add(-time.Duration(rand.Intn(60*24)) * time.Hour) // #nosec G404
	return &s
}

// SoilGenerator keeps per-sensor state so successive readings drift the way
// a real sensor does: moisture dries out between irrigation events, soil
// temperature lags the air, and the battery only goes down.
type SoilGenerator struct {
	sensorID     string
	baselineTemp float64
	moisture     float64
	dryingRate   float64
	battery      float64
	noise        float64
}

// NewSoilGenerator seeds a generator for sensorID.
func NewSoilGenerator(sensorID string) *SoilGenerator {
	return &SoilGenerator{
		sensorID:     sensorID,
		baselineTemp: 24.0 + rand.Float64()*8,  // 24-32°C
		moisture:     25.0 + rand.Float64()*20, // 25-45 %
		dryingRate:   0.2 + rand.Float64()*0.4, // % per reading
		battery:      70.0 + rand.Float64()*30, // 70-100 %
		noise:        0.5 + rand.Float64()*1.5,
	}
}

// SensorID returns the sensor the generator produces readings for.
func (g *SoilGenerator) SensorID() string {
	return g.sensorID
}

// AirTemperature follows a daily cycle peaking mid-afternoon.
func (g *SoilGenerator) AirTemperature(t time.Time) float64 {
	hour := float64(t.Hour())
	dailyCycle := 6 * math.Sin((hour-8)*math.Pi/12)
	noise := (rand.Float64() - 0.5) * g.noise

	// Heat spikes (3% chance)
	anomaly := 0.0
	if rand.Float64() < 0.03 {
		anomaly = rand.Float64() * 10
	}

	return g.baselineTemp + dailyCycle + noise + anomaly
}

// SoilTemperature is damped and delayed relative to the air.
func (g *SoilGenerator) SoilTemperature(t time.Time) float64 {
	hour := float64(t.Hour())
	lagged := 2.5 * math.Sin((hour-11)*math.Pi/12)
	return g.baselineTemp - 2 + lagged + (rand.Float64()-0.5)*g.noise*0.3
}

// Humidity moves inversely with air temperature.
func (g *SoilGenerator) Humidity(airTemp float64) float64 {
	h := 65 - (airTemp-g.baselineTemp)*2.5 + (rand.Float64()-0.5)*g.noise*2
	return math.Max(15, math.Min(98, h))
}

// SoilMoisture dries out each call and occasionally jumps back up when the
// field is irrigated or it rains.
func (g *SoilGenerator) SoilMoisture(airTemp float64) float64 {
	evaporation := g.dryingRate * (1 + math.Max(0, airTemp-30)/10)
	g.moisture -= evaporation

	// Irrigation or rain (4% chance)
	if rand.Float64() < 0.04 {
		g.moisture += 15 + rand.Float64()*15
	}

	g.moisture = math.Max(3, math.Min(60, g.moisture))
	return g.moisture + (rand.Float64()-0.5)*g.noise*0.5
}

// Battery drains slowly and never recovers.
func (g *SoilGenerator) Battery() float64 {
	g.battery -= 0.02 + rand.Float64()*0.03
	g.battery = math.Max(0, g.battery)
	return g.battery
}

// Reading produces one correlated reading stamped with t.
func (g *SoilGenerator) Reading(t time.Time) telemetry.SensorReading {
	air := g.AirTemperature(t)

	return telemetry.SensorReading{
		SensorID:        g.sensorID,
		RecordedAt:      t.UTC(),
		AirTemperature:  round(air, 2),
		SoilTemperature: round(g.SoilTemperature(t), 2),
		Humidity:        round(g.Humidity(air), 2),
		SoilMoisture:    round(math.Max(0, math.Min(100, g.SoilMoisture(air))), 2),
		Battery:         round(g.Battery(), 1),
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
