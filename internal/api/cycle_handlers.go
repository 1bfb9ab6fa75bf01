package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"agrismart.dev/agrismart/internal/models"
)

type cycleRequest struct {
	FieldID             string  `json:"field_id"`
	CropName            string  `json:"crop_name"`
	Variety             *string `json:"variety"`
	PlantingDate        *Date   `json:"planting_date"`
	ExpectedHarvestDate *Date   `json:"expected_harvest_date"`
	ActualHarvestDate   *Date   `json:"actual_harvest_date"`
	Status              *string `json:"status"`
	Notes               *string `json:"notes"`
}

func parseStatus(v string) (models.CycleStatus, error) {
	st := models.CycleStatus(strings.ToLower(strings.TrimSpace(v)))
	if !st.Valid() {
		return "", invalid("status must be one of planning, planted, growing, harvested, failed")
	}
	return st, nil
}

// ownedCycle loads a crop cycle and checks it belongs to the caller.
func (s *Server) ownedCycle(ctx context.Context, c *caller, id primitive.ObjectID) (*models.CropCycle, error) {
	cycle, err := s.config.Farm.CycleByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cycle.UserID != c.ID {
		return nil, errForbidden
	}
	return cycle, nil
}

func (s *Server) handleListCycles(w http.ResponseWriter, r *http.Request, _ httprouter.Params, c *caller) {
	fieldID, err := queryID(r, "field_id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	filter := models.CycleFilter{UserID: c.ID, FieldID: fieldID}
	if v := r.URL.Query().Get("status"); v != "" {
		if filter.Status, err = parseStatus(v); err != nil {
			s.fail(w, r, err)
			return
		}
	}

	cycles, err := s.config.Farm.ListCycles(r.Context(), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if cycles == nil {
		cycles = []models.CropCycle{}
	}
	ok(w, http.StatusOK, envelope{"crop_cycles": cycles})
}

func (s *Server) handleGetCycle(w http.ResponseWriter, r *http.Request, ps httprouter.Params, c *caller) {
	id, err := idParam(ps, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	cycle, err := s.ownedCycle(r.Context(), c, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, envelope{"crop_cycle": cycle})
}

func (s *Server) handleCreateCycle(w http.ResponseWriter, r *http.Request, _ httprouter.Params, c *caller) {
	var in cycleRequest
	if err := decode(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}

	fieldID, err := primitive.ObjectIDFromHex(strings.TrimSpace(in.FieldID))
	if err != nil {
		s.fail(w, r, invalid("field_id is required"))
		return
	}
	crop := strings.TrimSpace(in.CropName)
	if crop == "" {
		s.fail(w, r, invalid("crop_name is required"))
		return
	}
	status := models.StatusPlanning
	if in.Status != nil {
		if status, err = parseStatus(*in.Status); err != nil {
			s.fail(w, r, err)
			return
		}
	}

	f, err := s.ownedField(r.Context(), c, fieldID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if status.Active() {
		active, err := s.activeCycle(r.Context(), f.ID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if active != nil {
			s.fail(w, r, ErrActiveCycleExists)
			return
		}
	}

	cycle := &models.CropCycle{
		UserID:              c.ID,
		FieldID:             f.ID,
		CropName:            crop,
		Status:              status,
		PlantingDate:        timePtr(in.PlantingDate),
		ExpectedHarvestDate: timePtr(in.ExpectedHarvestDate),
		ActualHarvestDate:   timePtr(in.ActualHarvestDate),
	}
	if in.Variety != nil {
		cycle.Variety = strings.TrimSpace(*in.Variety)
	}
	if in.Notes != nil {
		cycle.Notes = strings.TrimSpace(*in.Notes)
	}
	if err := checkDates(cycle); err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.config.Farm.CreateCycle(r.Context(), cycle); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, envelope{"crop_cycle": cycle})
}

func (s *Server) handleUpdateCycle(w http.ResponseWriter, r *http.Request, ps httprouter.Params, c *caller) {
	id, err := idParam(ps, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var in cycleRequest
	if err := decode(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	cycle, err := s.ownedCycle(r.Context(), c, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if in.Status != nil {
		status, err := parseStatus(*in.Status)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if status.Active() {
			active, err := s.activeCycle(r.Context(), cycle.FieldID)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			if active != nil && active.ID != cycle.ID {
				s.fail(w, r, ErrActiveCycleExists)
				return
			}
		}
		if status == models.StatusHarvested && cycle.ActualHarvestDate == nil && in.ActualHarvestDate == nil {
			now := time.Now().UTC()
			cycle.ActualHarvestDate = &now
		}
		cycle.Status = status
	}

	if in.Variety != nil {
		cycle.Variety = strings.TrimSpace(*in.Variety)
	}
	if in.Notes != nil {
		cycle.Notes = strings.TrimSpace(*in.Notes)
	}
	if in.PlantingDate != nil {
		cycle.PlantingDate = timePtr(in.PlantingDate)
	}
	if in.ExpectedHarvestDate != nil {
		cycle.ExpectedHarvestDate = timePtr(in.ExpectedHarvestDate)
	}
	if in.ActualHarvestDate != nil {
		cycle.ActualHarvestDate = timePtr(in.ActualHarvestDate)
	}
	if err := checkDates(cycle); err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.config.Farm.UpdateCycle(r.Context(), cycle); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, envelope{"crop_cycle": cycle})
}

func (s *Server) handleDeleteCycle(w http.ResponseWriter, r *http.Request, ps httprouter.Params, c *caller) {
	id, err := idParam(ps, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	cycle, err := s.ownedCycle(r.Context(), c, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.config.Farm.DeleteCycle(r.Context(), cycle.ID); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, envelope{"message": "crop cycle deleted"})
}

func checkDates(c *models.CropCycle) error {
	if c.PlantingDate == nil {
		return nil
	}
	if c.ExpectedHarvestDate != nil && c.ExpectedHarvestDate.Before(*c.PlantingDate) {
		return invalid("expected_harvest_date cannot be before planting_date")
	}
	if c.ActualHarvestDate != nil && c.ActualHarvestDate.Before(*c.PlantingDate) {
		return invalid("actual_harvest_date cannot be before planting_date")
	}
	return nil
}
