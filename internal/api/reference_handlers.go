package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"agrismart.dev/agrismart/internal/localize"
	"agrismart.dev/agrismart/internal/models"
)

const (
	defaultPriceLimit = 100
	maxPriceLimit     = 1000
	trendWindow       = 30 * 24 * time.Hour
)

func (s *Server) handleSchemes(w http.ResponseWriter, r *http.Request, _ httprouter.Params, _ *caller) {
	q := r.URL.Query()
	lang := strings.ToLower(strings.TrimSpace(q.Get("lang")))
	if lang == "" {
		lang = localize.English
	}
	if !localize.Supported(lang) {
		s.fail(w, r, invalid("lang must be one of en, hi, mr"))
		return
	}

	schemes, err := s.config.Reference.ListSchemes(r.Context(), models.SchemeFilter{
		Category: strings.TrimSpace(q.Get("category")),
		State:    strings.TrimSpace(q.Get("state")),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, envelope{
		"schemes":  s.config.Localizer.Schemes(r.Context(), schemes, lang),
		"language": lang,
	})
}

func (s *Server) handleListCrops(w http.ResponseWriter, r *http.Request, _ httprouter.Params, _ *caller) {
	q := r.URL.Query()
	crops, err := s.config.Reference.ListCrops(r.Context(), models.CropFilter{
		Search: strings.TrimSpace(q.Get("search")),
		Season: strings.TrimSpace(q.Get("season")),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if crops == nil {
		crops = []models.Crop{}
	}
	ok(w, http.StatusOK, envelope{"crops": crops})
}

func (s *Server) handleGetCrop(w http.ResponseWriter, r *http.Request, ps httprouter.Params, _ *caller) {
	id, err := uintParam(ps, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	crop, err := s.config.Reference.CropByID(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, envelope{"crop": crop})
}

// marketFilter reads the shared market price query parameters.
func marketFilter(r *http.Request) (models.MarketFilter, error) {
	q := r.URL.Query()
	limit, err := queryLimit(r, defaultPriceLimit, maxPriceLimit)
	if err != nil {
		return models.MarketFilter{}, err
	}
	return models.MarketFilter{
		Commodity: strings.TrimSpace(q.Get("commodity")),
		State:     strings.TrimSpace(q.Get("state")),
		Market:    strings.TrimSpace(q.Get("market")),
		Limit:     limit,
	}, nil
}

func (s *Server) handleMarketPrices(w http.ResponseWriter, r *http.Request, _ httprouter.Params, _ *caller) {
	filter, err := marketFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	prices, err := s.config.Reference.ListMarketPrices(r.Context(), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if prices == nil {
		prices = []models.MarketPrice{}
	}
	ok(w, http.StatusOK, envelope{"market_prices": prices})
}

func (s *Server) handlePriceTrends(w http.ResponseWriter, r *http.Request, _ httprouter.Params, _ *caller) {
	commodity := strings.TrimSpace(r.URL.Query().Get("commodity"))
	if commodity == "" {
		s.fail(w, r, invalid("commodity is required"))
		return
	}
	since := time.Now().UTC().Add(-trendWindow)
	points, err := s.config.Reference.PriceTrend(r.Context(), commodity, since)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if points == nil {
		points = []models.PricePoint{}
	}
	ok(w, http.StatusOK, envelope{"commodity": commodity, "trend": points})
}
