package ingest_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"agrismart.dev/agrismart/internal/models"
)

// memStore is an in-memory ReadingStore.
type memStore struct {
	mu       sync.Mutex
	sensors  map[string]*models.IoTSensor
	readings []models.SensorReading
	alerts   []models.SensorAlert
	saveErr  error
	// alertErrs fail the next calls to CreateAlerts, one per entry.
	alertErrs []error
}

func newMemStore(sensors ...models.IoTSensor) *memStore {
	s := &memStore{sensors: map[string]*models.IoTSensor{}}
	for i := range sensors {
		s.sensors[sensors[i].SensorID] = &sensors[i]
	}
	return s
}

func (s *memStore) SensorByID(_ context.Context, id string) (*models.IoTSensor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sensor, found := s.sensors[id]
	if !found {
		return nil, models.ErrNotFound
	}
	cp := *sensor
	return &cp, nil
}

func (s *memStore) SaveReading(_ context.Context, r *models.SensorReading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	// Same unique key as the sensor_readings table.
	for _, have := range s.readings {
		if have.SensorID == r.SensorID && have.RecordedAt.Equal(r.RecordedAt) {
			return nil
		}
	}
	s.readings = append(s.readings, *r)
	return nil
}

func (s *memStore) OpenAlertExists(_ context.Context, sensorID, metric string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.alerts {
		if a.SensorID == sensorID && a.Metric == metric && !a.Resolved {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) CreateAlerts(_ context.Context, alerts []models.SensorAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.alertErrs) > 0 {
		err := s.alertErrs[0]
		s.alertErrs = s.alertErrs[1:]
		return err
	}
	for i := range alerts {
		alerts[i].ID = uint(len(s.alerts) + 1)
		s.alerts = append(s.alerts, alerts[i])
	}
	return nil
}

func (s *memStore) readingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.readings)
}

func (s *memStore) alertList() []models.SensorAlert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.SensorAlert(nil), s.alerts...)
}

// phoneBook maps user ids to numbers.
type phoneBook map[string]string

func (p phoneBook) PhoneForUser(_ context.Context, userID string) (string, error) {
	phone, found := p[userID]
	if !found {
		return "", models.ErrNotFound
	}
	return phone, nil
}

// acks records how each delivery tag was settled.
type acks struct {
	mu       sync.Mutex
	outcomes map[uint64]string
}

func newAcks() *acks {
	return &acks{outcomes: map[uint64]string{}}
}

func (a *acks) set(tag uint64, outcome string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.outcomes[tag] = outcome
	return nil
}

func (a *acks) Ack(tag uint64, _ bool) error { return a.set(tag, "ack") }

func (a *acks) Nack(tag uint64, _ bool, requeue bool) error {
	if requeue {
		return a.set(tag, "requeue")
	}
	return a.set(tag, "reject")
}

func (a *acks) Reject(tag uint64, requeue bool) error { return a.Nack(tag, false, requeue) }

func (a *acks) outcome(tag uint64) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outcomes[tag]
}

// feed turns payloads into deliveries settled through a.
type feed struct {
	ch   chan amqp.Delivery
	acks *acks
	tag  uint64
}

func newFeed() *feed {
	return &feed{ch: make(chan amqp.Delivery, 16), acks: newAcks()}
}

func (f *feed) raw(body []byte, redelivered bool) uint64 {
	f.tag++
	f.ch <- amqp.Delivery{
		Acknowledger: f.acks,
		DeliveryTag:  f.tag,
		Body:         body,
		Redelivered:  redelivered,
	}
	return f.tag
}

func (f *feed) send(v any) uint64 {
	body, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return f.raw(body, false)
}

// fakeSender records sent messages.
type fakeSender struct {
	mu         sync.Mutex
	sent       []string
	fail       bool
	configured bool
}

func (f *fakeSender) Configured() bool { return f.configured }

func (f *fakeSender) Send(_ context.Context, phone, message string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", errors.New("gateway unavailable")
	}
	f.sent = append(f.sent, phone+": "+message)
	return "msg-1", nil
}

func (f *fakeSender) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}
