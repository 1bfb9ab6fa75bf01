package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"agrismart.dev/agrismart/internal/models"
)

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request, _ httprouter.Params, c *caller) {
	lat, err := queryFloat(r, "lat")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	lng, err := queryFloat(r, "lng")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	la, lo := s.config.DefaultLat, s.config.DefaultLng
	if lat != nil {
		la = *lat
	}
	if lng != nil {
		lo = *lng
	}
	if la < -90 || la > 90 || lo < -180 || lo > 180 {
		s.fail(w, r, invalid("lat must be between -90 and 90 and lng between -180 and 180"))
		return
	}

	report := s.config.Weather.Report(r.Context(), c.ID, la, lo)
	ok(w, http.StatusOK, envelope{"weather": report})
}

func (s *Server) handleWeatherAlerts(w http.ResponseWriter, r *http.Request, _ httprouter.Params, c *caller) {
	alerts, err := s.config.Weather.RecentAlerts(r.Context(), c.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if alerts == nil {
		alerts = []models.WeatherAlert{}
	}
	ok(w, http.StatusOK, envelope{"alerts": alerts})
}
