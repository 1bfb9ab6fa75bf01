package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"agrismart.dev/agrismart/internal/models"
	"agrismart.dev/agrismart/internal/recommend"
)

type recommendRequest struct {
	Nitrogen    *float64 `json:"nitrogen"`
	Phosphorus  *float64 `json:"phosphorus"`
	Potassium   *float64 `json:"potassium"`
	PH          *float64 `json:"ph"`
	Rainfall    *float64 `json:"rainfall"`
	Temperature *float64 `json:"temperature"`
	Location    string   `json:"location"`
	Season      string   `json:"season"`
	// FieldID fills missing soil values from the field's latest analysis.
	FieldID string `json:"field_id"`
}

func (in *recommendRequest) soilComplete() bool {
	return in.Nitrogen != nil && in.Phosphorus != nil && in.Potassium != nil && in.PH != nil
}

func (in *recommendRequest) fill(a *models.SoilAnalysis) {
	if in.Nitrogen == nil {
		in.Nitrogen = &a.Nitrogen
	}
	if in.Phosphorus == nil {
		in.Phosphorus = &a.Phosphorus
	}
	if in.Potassium == nil {
		in.Potassium = &a.Potassium
	}
	if in.PH == nil {
		in.PH = &a.PH
	}
}

// input checks the required soil values are present.
func (in *recommendRequest) input() (recommend.Input, error) {
	switch {
	case in.Nitrogen == nil:
		return recommend.Input{}, invalid("nitrogen is required")
	case in.Phosphorus == nil:
		return recommend.Input{}, invalid("phosphorus is required")
	case in.Potassium == nil:
		return recommend.Input{}, invalid("potassium is required")
	case in.PH == nil:
		return recommend.Input{}, invalid("ph is required")
	}
	return recommend.Input{
		Nitrogen:    *in.Nitrogen,
		Phosphorus:  *in.Phosphorus,
		Potassium:   *in.Potassium,
		PH:          *in.PH,
		Rainfall:    in.Rainfall,
		Temperature: in.Temperature,
		Location:    strings.TrimSpace(in.Location),
		Season:      strings.TrimSpace(in.Season),
	}, nil
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request, _ httprouter.Params, c *caller) {
	var in recommendRequest
	if err := decode(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}

	if v := strings.TrimSpace(in.FieldID); v != "" && !in.soilComplete() {
		fieldID, err := primitive.ObjectIDFromHex(v)
		if err != nil {
			s.fail(w, r, invalid("field_id is not a valid id"))
			return
		}
		f, err := s.ownedField(r.Context(), c, fieldID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		latest, err := s.config.Farm.LatestSoilAnalysis(r.Context(), f.ID)
		if errors.Is(err, models.ErrNotFound) {
			s.fail(w, r, invalid("field has no soil analysis"))
			return
		}
		if err != nil {
			s.fail(w, r, err)
			return
		}
		in.fill(latest)
	}

	input, err := in.input()
	if err != nil {
		s.fail(w, r, err)
		return
	}

	report, err := s.config.Recommender.Recommend(r.Context(), input)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.metrics.Recommendation(report.Coverage())

	ok(w, http.StatusOK, envelope{
		"crop_recommendations":       report.CropRecommendations,
		"fertilizer_recommendations": report.FertilizerRecommendations,
		"market_insights":            report.MarketInsights,
	})
}
