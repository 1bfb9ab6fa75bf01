package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"golang.org/x/sync/errgroup"

	"agrismart.dev/agrismart/internal/models"
)

// Stats are the back-office counters.
type Stats struct {
	Users        int64 `json:"users"`
	Fields       int64 `json:"fields"`
	CropCycles   int64 `json:"crop_cycles"`
	Schemes      int64 `json:"schemes"`
	MarketPrices int64 `json:"market_prices"`
	OpenAlerts   int64 `json:"open_sensor_alerts"`
}

// stats gathers the counters concurrently.
func (s *Server) stats(ctx context.Context) (*Stats, error) {
	var st Stats
	g, ctx := errgroup.WithContext(ctx)
	count := func(dst *int64, fn func(context.Context) (int64, error)) {
		g.Go(func() error {
			n, err := fn(ctx)
			*dst = n
			return err
		})
	}
	count(&st.Users, s.config.Users.CountUsers)
	count(&st.Fields, s.config.Farm.CountFields)
	count(&st.CropCycles, s.config.Farm.CountCycles)
	count(&st.Schemes, s.config.Reference.CountSchemes)
	count(&st.MarketPrices, s.config.Reference.CountMarketPrices)
	count(&st.OpenAlerts, s.config.Sensors.CountOpenAlerts)
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request, _ httprouter.Params, _ *caller) {
	st, err := s.stats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, envelope{"stats": st})
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request, _ httprouter.Params, _ *caller) {
	users, err := s.config.Users.ListUsers(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	ok(w, http.StatusOK, envelope{"users": users})
}

func (s *Server) handleAdminDeleteUser(w http.ResponseWriter, r *http.Request, ps httprouter.Params, c *caller) {
	id, err := idParam(ps, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if id == c.ID {
		s.fail(w, r, invalid("you cannot delete your own account"))
		return
	}
	if err := s.config.Users.DeleteUser(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.accounts.forget(id)
	ok(w, http.StatusOK, envelope{"message": "user deleted"})
}

type schemeRequest struct {
	Name           string   `json:"name"`
	NameHi         string   `json:"name_hi"`
	NameMr         string   `json:"name_mr"`
	Description    string   `json:"description"`
	DescriptionHi  string   `json:"description_hi"`
	DescriptionMr  string   `json:"description_mr"`
	Category       string   `json:"category"`
	State          string   `json:"state"`
	ApplicationURL string   `json:"application_url"`
	Eligibility    []string `json:"eligibility"`
	Benefits       []string `json:"benefits"`
}

func (in *schemeRequest) apply(sc *models.Scheme) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return invalid("name is required")
	}
	sc.Name = name
	sc.NameHi = strings.TrimSpace(in.NameHi)
	sc.NameMr = strings.TrimSpace(in.NameMr)
	sc.Description = strings.TrimSpace(in.Description)
	sc.DescriptionHi = strings.TrimSpace(in.DescriptionHi)
	sc.DescriptionMr = strings.TrimSpace(in.DescriptionMr)
	sc.Category = strings.TrimSpace(in.Category)
	sc.State = strings.TrimSpace(in.State)
	sc.ApplicationURL = strings.TrimSpace(in.ApplicationURL)
	sc.Eligibility = models.JSONStrings(in.Eligibility)
	sc.Benefits = models.JSONStrings(in.Benefits)
	return nil
}

func (s *Server) handleAdminSchemes(w http.ResponseWriter, r *http.Request, _ httprouter.Params, _ *caller) {
	schemes, err := s.config.Reference.ListSchemes(r.Context(), models.SchemeFilter{})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if schemes == nil {
		schemes = []models.Scheme{}
	}
	ok(w, http.StatusOK, envelope{"schemes": schemes})
}

func (s *Server) handleAdminCreateScheme(w http.ResponseWriter, r *http.Request, _ httprouter.Params, _ *caller) {
	var in schemeRequest
	if err := decode(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	var sc models.Scheme
	if err := in.apply(&sc); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.config.Reference.CreateScheme(r.Context(), &sc); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, envelope{"scheme": sc})
}

func (s *Server) handleAdminUpdateScheme(w http.ResponseWriter, r *http.Request, ps httprouter.Params, _ *caller) {
	id, err := uintParam(ps, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var in schemeRequest
	if err := decode(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	sc, err := s.config.Reference.SchemeByID(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := in.apply(sc); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.config.Reference.UpdateScheme(r.Context(), sc); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, envelope{"scheme": sc})
}

func (s *Server) handleAdminDeleteScheme(w http.ResponseWriter, r *http.Request, ps httprouter.Params, _ *caller) {
	id, err := uintParam(ps, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.config.Reference.DeleteScheme(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, envelope{"message": "scheme deleted"})
}

type cropRequest struct {
	CommonName     string               `json:"common_name"`
	ScientificName string               `json:"scientific_name"`
	Climate        string               `json:"climate"`
	Soil           string               `json:"soil"`
	Season         string               `json:"season"`
	Description    string               `json:"description"`
	Diseases       []models.CropDisease `json:"diseases"`
}

func (in *cropRequest) apply(c *models.Crop) error {
	name := strings.TrimSpace(in.CommonName)
	if name == "" {
		return invalid("common_name is required")
	}
	c.CommonName = name
	c.ScientificName = strings.TrimSpace(in.ScientificName)
	c.Climate = strings.TrimSpace(in.Climate)
	c.Soil = strings.TrimSpace(in.Soil)
	c.Season = strings.TrimSpace(in.Season)
	c.Description = strings.TrimSpace(in.Description)
	c.Diseases = models.JSONDiseases(in.Diseases)
	return nil
}

func (s *Server) handleAdminCrops(w http.ResponseWriter, r *http.Request, _ httprouter.Params, _ *caller) {
	crops, err := s.config.Reference.ListCrops(r.Context(), models.CropFilter{})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if crops == nil {
		crops = []models.Crop{}
	}
	ok(w, http.StatusOK, envelope{"crops": crops})
}

func (s *Server) handleAdminCreateCrop(w http.ResponseWriter, r *http.Request, _ httprouter.Params, _ *caller) {
	var in cropRequest
	if err := decode(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	var c models.Crop
	if err := in.apply(&c); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.config.Reference.CreateCrop(r.Context(), &c); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, envelope{"crop": c})
}

func (s *Server) handleAdminUpdateCrop(w http.ResponseWriter, r *http.Request, ps httprouter.Params, _ *caller) {
	id, err := uintParam(ps, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var in cropRequest
	if err := decode(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	c, err := s.config.Reference.CropByID(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := in.apply(c); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.config.Reference.UpdateCrop(r.Context(), c); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, envelope{"crop": c})
}

func (s *Server) handleAdminDeleteCrop(w http.ResponseWriter, r *http.Request, ps httprouter.Params, _ *caller) {
	id, err := uintParam(ps, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.config.Reference.DeleteCrop(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, envelope{"message": "crop deleted"})
}

type marketPriceRequest struct {
	Commodity   string  `json:"commodity"`
	Variety     string  `json:"variety"`
	Market      string  `json:"market"`
	District    string  `json:"district"`
	State       string  `json:"state"`
	MinPrice    float64 `json:"min_price"`
	MaxPrice    float64 `json:"max_price"`
	ModalPrice  float64 `json:"modal_price"`
	ArrivalDate *Date   `json:"arrival_date"`
}

func (in *marketPriceRequest) price() (*models.MarketPrice, error) {
	if in.ArrivalDate == nil {
		return nil, invalid("arrival_date is required")
	}
	p := &models.MarketPrice{
		Commodity:   strings.TrimSpace(in.Commodity),
		Variety:     strings.TrimSpace(in.Variety),
		Market:      strings.TrimSpace(in.Market),
		District:    strings.TrimSpace(in.District),
		State:       strings.TrimSpace(in.State),
		MinPrice:    in.MinPrice,
		MaxPrice:    in.MaxPrice,
		ModalPrice:  in.ModalPrice,
		ArrivalDate: in.ArrivalDate.Time,
	}
	if err := validatePrice(p); err != nil {
		return nil, err
	}
	return p, nil
}

func validatePrice(p *models.MarketPrice) error {
	switch {
	case p.Commodity == "":
		return invalid("commodity is required")
	case p.Market == "":
		return invalid("market is required")
	case p.MinPrice < 0 || p.MaxPrice < 0 || p.ModalPrice < 0:
		return invalid("prices cannot be negative")
	case p.MaxPrice > 0 && p.MinPrice > p.MaxPrice:
		return invalid("min_price cannot exceed max_price")
	case p.ArrivalDate.IsZero():
		return invalid("arrival_date is required")
	}
	return nil
}

func (s *Server) handleAdminMarketPrices(w http.ResponseWriter, r *http.Request, _ httprouter.Params, _ *caller) {
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

func (s *Server) handleAdminCreateMarketPrice(w http.ResponseWriter, r *http.Request, _ httprouter.Params, _ *caller) {
	var in marketPriceRequest
	if err := decode(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := in.price()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.config.Reference.CreateMarketPrice(r.Context(), p); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, envelope{"market_price": p})
}

func (s *Server) handleAdminDeleteMarketPrice(w http.ResponseWriter, r *http.Request, ps httprouter.Params, _ *caller) {
	id, err := uintParam(ps, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.config.Reference.DeleteMarketPrice(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, envelope{"message": "market price deleted"})
}
