package api

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"agrismart.dev/agrismart/internal/models"
)

type activityRequest struct {
	CropCycleID  string  `json:"crop_cycle_id"`
	FieldID      string  `json:"field_id"`
	ActivityType string  `json:"activity_type"`
	Date         *Date   `json:"date"`
	Cost         float64 `json:"cost"`
	Notes        string  `json:"notes"`
}

func (s *Server) handleListActivities(w http.ResponseWriter, r *http.Request, _ httprouter.Params, c *caller) {
	fieldID, err := queryID(r, "field_id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	cycleID, err := queryID(r, "crop_cycle_id")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	activities, err := s.config.Farm.ListActivities(r.Context(), models.ActivityFilter{
		UserID:      c.ID,
		FieldID:     fieldID,
		CropCycleID: cycleID,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if activities == nil {
		activities = []models.FieldActivity{}
	}
	ok(w, http.StatusOK, envelope{"field_activities": activities})
}

func (s *Server) handleCreateActivity(w http.ResponseWriter, r *http.Request, _ httprouter.Params, c *caller) {
	var in activityRequest
	if err := decode(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}

	cycleID, err := primitive.ObjectIDFromHex(strings.TrimSpace(in.CropCycleID))
	if err != nil {
		s.fail(w, r, invalid("crop_cycle_id is required"))
		return
	}
	kind := strings.ToLower(strings.TrimSpace(in.ActivityType))
	if !slices.Contains(models.ActivityTypes, kind) {
		s.fail(w, r, invalid("activity_type must be one of %s", strings.Join(models.ActivityTypes, ", ")))
		return
	}
	if in.Cost < 0 {
		s.fail(w, r, invalid("cost cannot be negative"))
		return
	}

	cycle, err := s.ownedCycle(r.Context(), c, cycleID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if v := strings.TrimSpace(in.FieldID); v != "" {
		fieldID, err := primitive.ObjectIDFromHex(v)
		if err != nil || fieldID != cycle.FieldID {
			s.fail(w, r, invalid("crop cycle does not belong to the given field"))
			return
		}
	}

	date := time.Now().UTC()
	if in.Date != nil {
		date = in.Date.Time
	}

	a := &models.FieldActivity{
		UserID:       c.ID,
		CropCycleID:  cycle.ID,
		FieldID:      cycle.FieldID,
		ActivityType: kind,
		Date:         date,
		Cost:         in.Cost,
		Notes:        strings.TrimSpace(in.Notes),
	}
	if err := s.config.Farm.CreateActivity(r.Context(), a); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, envelope{"field_activity": a})
}

func (s *Server) handleActivitySummary(w http.ResponseWriter, r *http.Request, _ httprouter.Params, c *caller) {
	cycleID, err := queryID(r, "crop_cycle_id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if cycleID == nil {
		s.fail(w, r, invalid("crop_cycle_id is required"))
		return
	}
	cycle, err := s.ownedCycle(r.Context(), c, *cycleID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	summary, err := s.config.Farm.ActivityCostSummary(r.Context(), c.ID, cycle.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, envelope{"summary": summary})
}
