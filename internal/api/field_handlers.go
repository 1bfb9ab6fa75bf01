package api

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"agrismart.dev/agrismart/internal/models"
)

type fieldRequest struct {
	Name           *string             `json:"name"`
	AreaHectares   *float64            `json:"area_hectares"`
	SoilType       *string             `json:"soil_type"`
	IrrigationType *string             `json:"irrigation_type"`
	Coordinates    *models.Coordinates `json:"coordinates"`
	Boundary       [][2]float64        `json:"boundary"`
}

// apply validates the supplied attributes and copies them onto f. On create
// name and area are mandatory.
func (in *fieldRequest) apply(f *models.Field, create bool) error {
	if create && in.Name == nil {
		return invalid("name is required")
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return invalid("name is required")
		}
		f.Name = name
	}

	if create && in.AreaHectares == nil {
		return invalid("area_hectares must be greater than 0")
	}
	if in.AreaHectares != nil {
		if *in.AreaHectares <= 0 {
			return invalid("area_hectares must be greater than 0")
		}
		f.AreaHectares = *in.AreaHectares
	}

	if in.SoilType != nil {
		v := strings.ToLower(strings.TrimSpace(*in.SoilType))
		if v != "" && !slices.Contains(models.SoilTypes, v) {
			return invalid("soil_type must be one of %s", strings.Join(models.SoilTypes, ", "))
		}
		f.SoilType = v
	}

	if in.IrrigationType != nil {
		v := strings.ToLower(strings.TrimSpace(*in.IrrigationType))
		if v != "" && !slices.Contains(models.IrrigationTypes, v) {
			return invalid("irrigation_type must be one of %s", strings.Join(models.IrrigationTypes, ", "))
		}
		f.IrrigationType = v
	}

	if in.Coordinates != nil {
		if in.Coordinates.Lat < -90 || in.Coordinates.Lat > 90 {
			return invalid("coordinates.lat must be between -90 and 90")
		}
		if in.Coordinates.Lng < -180 || in.Coordinates.Lng > 180 {
			return invalid("coordinates.lng must be between -180 and 180")
		}
		c := *in.Coordinates
		f.Coordinates = &c
	}

	if in.Boundary != nil {
		if len(in.Boundary) == 0 {
			f.Boundary, f.BoundaryAreaHectares = nil, 0
			return nil
		}
		ring, area, err := closeBoundary(in.Boundary)
		if err != nil {
			return err
		}
		f.Boundary, f.BoundaryAreaHectares = ring, area
	}
	return nil
}

// ownedField loads a field and checks it belongs to the caller.
func (s *Server) ownedField(ctx context.Context, c *caller, id primitive.ObjectID) (*models.Field, error) {
	f, err := s.config.Farm.FieldByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.UserID != c.ID {
		return nil, errForbidden
	}
	return f, nil
}

// activeCycle returns the active cycle of a field, or nil.
func (s *Server) activeCycle(ctx context.Context, fieldID primitive.ObjectID) (*models.CropCycle, error) {
	cycle, err := s.config.Farm.ActiveCycle(ctx, fieldID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	return cycle, err
}

func (s *Server) handleListFields(w http.ResponseWriter, r *http.Request, _ httprouter.Params, c *caller) {
	fields, err := s.config.Farm.ListFields(r.Context(), c.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if fields == nil {
		fields = []models.Field{}
	}
	ok(w, http.StatusOK, envelope{"fields": fields})
}

func (s *Server) handleCreateField(w http.ResponseWriter, r *http.Request, _ httprouter.Params, c *caller) {
	var in fieldRequest
	if err := decode(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}

	f := &models.Field{UserID: c.ID}
	if err := in.apply(f, true); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.config.Farm.CreateField(r.Context(), f); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, envelope{"field": f})
}

func (s *Server) handleGetField(w http.ResponseWriter, r *http.Request, ps httprouter.Params, c *caller) {
	id, err := idParam(ps, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	f, err := s.ownedField(r.Context(), c, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if f.ActiveCycle, err = s.activeCycle(r.Context(), f.ID); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, envelope{"field": f})
}

func (s *Server) handleUpdateField(w http.ResponseWriter, r *http.Request, ps httprouter.Params, c *caller) {
	id, err := idParam(ps, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var in fieldRequest
	if err := decode(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	f, err := s.ownedField(r.Context(), c, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := in.apply(f, false); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.config.Farm.UpdateField(r.Context(), f); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, envelope{"field": f})
}

func (s *Server) handleDeleteField(w http.ResponseWriter, r *http.Request, ps httprouter.Params, c *caller) {
	id, err := idParam(ps, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	f, err := s.ownedField(r.Context(), c, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	active, err := s.activeCycle(r.Context(), f.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if active != nil {
		s.fail(w, r, ErrFieldInUse)
		return
	}

	if err := s.config.Farm.DeleteField(r.Context(), f.ID); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, envelope{"message": "field deleted"})
}
