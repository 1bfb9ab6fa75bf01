package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"agrismart.dev/agrismart/internal/models"
	"agrismart.dev/agrismart/internal/sms"
)

type profileRequest struct {
	Name          string          `json:"name"`
	Phone         string          `json:"phone"`
	Location      models.Location `json:"location"`
	FarmSizeAcres float64         `json:"farm_size_acres"`
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request, _ httprouter.Params, c *caller) {
	p, err := s.config.Users.ProfileByUser(r.Context(), c.ID)
	if errors.Is(err, models.ErrNotFound) {
		p = &models.FarmerProfile{UserID: c.ID}
	} else if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, envelope{"profile": p})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request, _ httprouter.Params, c *caller) {
	var in profileRequest
	if err := decode(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}

	if in.FarmSizeAcres < 0 {
		s.fail(w, r, invalid("farm_size_acres cannot be negative"))
		return
	}

	phone := strings.TrimSpace(in.Phone)
	if phone != "" {
		normalized, err := sms.NormalizePhone(phone)
		if err != nil {
			s.fail(w, r, invalid("phone must be 10 digits, optionally prefixed with +91"))
			return
		}
		phone = normalized
	}

	p := &models.FarmerProfile{
		UserID:        c.ID,
		Name:          strings.TrimSpace(in.Name),
		Phone:         phone,
		FarmSizeAcres: in.FarmSizeAcres,
		Location: models.Location{
			State:    strings.TrimSpace(in.Location.State),
			District: strings.TrimSpace(in.Location.District),
			Village:  strings.TrimSpace(in.Location.Village),
		},
	}
	if err := s.config.Users.UpsertProfile(r.Context(), p); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, envelope{"profile": p})
}
