package api

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"agrismart.dev/agrismart/internal/models"
)

var sensorKinds = []string{"soil", "weather", "water"}

type sensorRequest struct {
	SensorID  string  `json:"sensor_id"`
	FieldID   string  `json:"field_id"`
	Name      string  `json:"name"`
	Kind      string  `json:"kind"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (s *Server) handleListSensors(w http.ResponseWriter, r *http.Request, _ httprouter.Params, c *caller) {
	sensors, err := s.config.Sensors.ListSensors(r.Context(), c.ID.Hex())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if sensors == nil {
		sensors = []models.IoTSensor{}
	}
	ok(w, http.StatusOK, envelope{"sensors": sensors})
}

func (s *Server) handleCreateSensor(w http.ResponseWriter, r *http.Request, _ httprouter.Params, c *caller) {
	var in sensorRequest
	if err := decode(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}

	sensorID := strings.TrimSpace(in.SensorID)
	if sensorID == "" || len(sensorID) > 64 {
		s.fail(w, r, invalid("sensor_id is required and at most 64 characters"))
		return
	}
	kind := strings.ToLower(strings.TrimSpace(in.Kind))
	if kind == "" {
		kind = "soil"
	}
	if !slices.Contains(sensorKinds, kind) {
		s.fail(w, r, invalid("kind must be one of %s", strings.Join(sensorKinds, ", ")))
		return
	}
	if in.Latitude < -90 || in.Latitude > 90 || in.Longitude < -180 || in.Longitude > 180 {
		s.fail(w, r, invalid("latitude or longitude out of range"))
		return
	}
	fieldID, err := primitive.ObjectIDFromHex(strings.TrimSpace(in.FieldID))
	if err != nil {
		s.fail(w, r, invalid("field_id is required"))
		return
	}
	f, err := s.ownedField(r.Context(), c, fieldID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	sensor := &models.IoTSensor{
		SensorID:  sensorID,
		UserID:    c.ID.Hex(),
		FieldID:   f.ID.Hex(),
		Name:      strings.TrimSpace(in.Name),
		Kind:      kind,
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
	}
	if err := s.config.Sensors.CreateSensor(r.Context(), sensor); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			s.fail(w, r, invalid("sensor_id is already registered"))
			return
		}
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, envelope{"sensor": sensor})
}

func (s *Server) handleSensorAlerts(w http.ResponseWriter, r *http.Request, _ httprouter.Params, c *caller) {
	var resolved *bool
	if v := strings.TrimSpace(r.URL.Query().Get("resolved")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.fail(w, r, invalid("resolved must be true or false"))
			return
		}
		resolved = &b
	}

	alerts, err := s.config.Sensors.SensorAlerts(r.Context(), c.ID.Hex(), resolved)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if alerts == nil {
		alerts = []models.SensorAlert{}
	}
	ok(w, http.StatusOK, envelope{"alerts": alerts})
}

// ownedAlert loads an alert and checks its sensor belongs to the caller.
func (s *Server) ownedAlert(ctx context.Context, c *caller, ps httprouter.Params) (*models.SensorAlert, error) {
	id, err := uintParam(ps, "id")
	if err != nil {
		return nil, err
	}
	alert, err := s.config.Sensors.AlertByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert.Sensor == nil || alert.Sensor.UserID != c.ID.Hex() {
		return nil, errForbidden
	}
	return alert, nil
}

func (s *Server) handleAcknowledgeAlert(w http.ResponseWriter, r *http.Request, ps httprouter.Params, c *caller) {
	s.updateAlert(w, r, ps, c, s.config.Sensors.AcknowledgeAlert)
}

func (s *Server) handleResolveAlert(w http.ResponseWriter, r *http.Request, ps httprouter.Params, c *caller) {
	s.updateAlert(w, r, ps, c, s.config.Sensors.ResolveAlert)
}

func (s *Server) updateAlert(w http.ResponseWriter, r *http.Request, ps httprouter.Params, c *caller, update func(context.Context, uint) error) {
	alert, err := s.ownedAlert(r.Context(), c, ps)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := update(r.Context(), alert.ID); err != nil {
		s.fail(w, r, err)
		return
	}
	alert, err = s.config.Sensors.AlertByID(r.Context(), alert.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, envelope{"alert": alert})
}
