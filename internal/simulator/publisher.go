// Package simulator publishes synthetic field sensor readings to RabbitMQ so
// the ingest pipeline can be exercised without hardware.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agrismart.dev/agrismart/pkg/generator"
	"agrismart.dev/agrismart/pkg/metrics"
	"agrismart.dev/agrismart/pkg/mq"
)

// Publisher owns one generator per sensor and publishes a reading for each
// on every tick.
type Publisher struct {
	client     mq.ClientInterface
	generators []*generator.SoilGenerator
	metrics    *metrics.SimulatorMetrics
}

// NewPublisher creates a publisher for the given sensor ids.
func NewPublisher(client mq.ClientInterface, sensorIDs []string, m *metrics.SimulatorMetrics) (*Publisher, error) {
	if client == nil {
		return nil, errors.New("mq client cannot be nil")
	}
	if len(sensorIDs) == 0 {
		return nil, errors.New("at least one sensor id is required")
	}

	gens := make([]*generator.SoilGenerator, 0, len(sensorIDs))
	for _, id := range sensorIDs {
		gens = append(gens, generator.NewSoilGenerator(id))
	}
	if m != nil {
		m.ActiveSensors.Set(float64(len(gens)))
	}
	return &Publisher{client: client, generators: gens, metrics: m}, nil
}

// Sensors returns the simulated sensor ids.
func (p *Publisher) Sensors() []string {
	ids := make([]string, len(p.generators))
	for i, g := range p.generators {
		ids[i] = g.SensorID()
	}
	return ids
}

// PublishAll sends one reading per sensor stamped with now. It keeps going
// after a failed publish and returns the joined errors.
func (p *Publisher) PublishAll(ctx context.Context, now time.Time) error {
	var errs []error
	for _, g := range p.generators {
		if err := p.publish(ctx, g, now); err != nil {
			errs = append(errs, fmt.Errorf("sensor %s: %w", g.SensorID(), err))
		}
		if ctx.Err() != nil {
			break
		}
	}
	return errors.Join(errs...)
}

func (p *Publisher) publish(ctx context.Context, g *generator.SoilGenerator, now time.Time) error {
	started := time.Now()
	reading := g.Reading(now)

	err := mq.PushJSON(ctx, p.client, reading)
	if p.metrics != nil {
		p.metrics.GenerationDuration.Observe(time.Since(started).Seconds())
		if err != nil {
			p.metrics.PublishFailures.WithLabelValues("push_error").Inc()
		} else {
			p.metrics.ReadingsPublished.Inc()
		}
	}
	return err
}
