package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"agrismart.dev/agrismart/internal/models"
)

type soilRequest struct {
	FieldID       string   `json:"field_id"`
	Nitrogen      *float64 `json:"nitrogen"`
	Phosphorus    *float64 `json:"phosphorus"`
	Potassium     *float64 `json:"potassium"`
	PH            *float64 `json:"ph"`
	OrganicMatter float64  `json:"organic_matter"`
	TestDate      *Date    `json:"test_date"`
}

func (in *soilRequest) validate() error {
	for _, v := range []struct {
		name string
		val  *float64
	}{
		{"nitrogen", in.Nitrogen},
		{"phosphorus", in.Phosphorus},
		{"potassium", in.Potassium},
	} {
		if v.val == nil {
			return invalid("%s is required", v.name)
		}
		if *v.val < 0 {
			return invalid("%s cannot be negative", v.name)
		}
	}
	if in.PH == nil {
		return invalid("ph is required")
	}
	if *in.PH < 0 || *in.PH > 14 {
		return invalid("ph must be between 0 and 14")
	}
	if in.OrganicMatter < 0 {
		return invalid("organic_matter cannot be negative")
	}
	return nil
}

func (s *Server) handleListSoil(w http.ResponseWriter, r *http.Request, _ httprouter.Params, c *caller) {
	fieldID, err := queryID(r, "field_id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	analyses, err := s.config.Farm.ListSoilAnalyses(r.Context(), c.ID, fieldID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if analyses == nil {
		analyses = []models.SoilAnalysis{}
	}
	ok(w, http.StatusOK, envelope{"soil_analyses": analyses})
}

func (s *Server) handleCreateSoil(w http.ResponseWriter, r *http.Request, _ httprouter.Params, c *caller) {
	var in soilRequest
	if err := decode(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	fieldID, err := primitive.ObjectIDFromHex(strings.TrimSpace(in.FieldID))
	if err != nil {
		s.fail(w, r, invalid("field_id is required"))
		return
	}
	if err := in.validate(); err != nil {
		s.fail(w, r, err)
		return
	}
	f, err := s.ownedField(r.Context(), c, fieldID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	tested := time.Now().UTC()
	if in.TestDate != nil {
		tested = in.TestDate.Time
	}
	a := &models.SoilAnalysis{
		UserID:        c.ID,
		FieldID:       f.ID,
		Nitrogen:      *in.Nitrogen,
		Phosphorus:    *in.Phosphorus,
		Potassium:     *in.Potassium,
		PH:            *in.PH,
		OrganicMatter: in.OrganicMatter,
		TestDate:      tested,
	}
	if err := s.config.Farm.CreateSoilAnalysis(r.Context(), a); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, envelope{"soil_analysis": a})
}
