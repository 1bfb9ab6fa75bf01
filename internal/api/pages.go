package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"agrismart.dev/agrismart/internal/auth"
	"agrismart.dev/agrismart/internal/localize"
	"agrismart.dev/agrismart/internal/models"
	"agrismart.dev/agrismart/pkg/logger"
)

const pagePriceLimit = 50

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if _, _, err := s.identify(r); err == nil {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	s.renderLogin(w, r, http.StatusOK, authForm{})
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.renderRegister(w, r, http.StatusOK, authForm{})
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	in := credentials{Email: r.PostFormValue("email"), Password: r.PostFormValue("password")}
	u, err := s.login(r.Context(), in)
	if err != nil {
		status, msg := formError(err)
		if errors.Is(err, errBadCredentials) {
			s.metrics.AuthFailure("bad_credentials")
		} else if status == http.StatusInternalServerError {
			logger.FromContext(r.Context(), s.logger).Error("login failed", "error", err)
		}
		s.renderLogin(w, r, status, authForm{Error: msg, Email: in.Email})
		return
	}
	if _, err := s.startSession(w, u); err != nil {
		logger.FromContext(r.Context(), s.logger).Error("failed to start session", "error", err)
		s.renderLogin(w, r, http.StatusInternalServerError, authForm{Error: "Something went wrong, please try again."})
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) handleRegisterForm(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	in := credentials{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
		Name:     r.PostFormValue("name"),
	}
	u, err := s.register(r.Context(), in)
	if err != nil {
		status, msg := formError(err)
		if status == http.StatusInternalServerError {
			logger.FromContext(r.Context(), s.logger).Error("registration failed", "error", err)
		}
		s.renderRegister(w, r, status, authForm{Error: msg, Email: in.Email, Name: in.Name})
		return
	}
	if _, err := s.startSession(w, u); err != nil {
		logger.FromContext(r.Context(), s.logger).Error("failed to start session", "error", err)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// formError turns an auth failure into a page status and message.
func formError(err error) (int, string) {
	var ve *validationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.msg
	case errors.Is(err, errBadCredentials):
		return http.StatusUnauthorized, "Invalid email or password."
	case errors.Is(err, auth.ErrWeakPassword):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "Something went wrong, please try again."
	}
}

func (s *Server) handleLogoutForm(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.auth.ClearCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleDashboardPage(w http.ResponseWriter, r *http.Request, _ httprouter.Params, c *caller) {
	ctx := r.Context()
	fields, err := s.config.Farm.ListFields(ctx, c.ID)
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	alerts, err := s.config.Weather.RecentAlerts(ctx, c.ID)
	if err != nil {
		// Alerts are decoration on the dashboard.
		logger.FromContext(ctx, s.logger).Warn("failed to load weather alerts", "error", err)
	}

	data := dashboardData{Fields: fields, Alerts: alerts}
	if p, err := s.config.Users.ProfileByUser(ctx, c.ID); err == nil {
		data.Name = p.Name
	}
	s.renderDashboard(w, r, data)
}

func (s *Server) handleFieldPage(w http.ResponseWriter, r *http.Request, ps httprouter.Params, c *caller) {
	ctx := r.Context()
	id, err := idParam(ps, "id")
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	f, err := s.ownedField(ctx, c, id)
	if err != nil {
		s.pageError(w, r, err)
		return
	}

	data := fieldPageData{Field: f}
	if data.Cycles, err = s.config.Farm.ListCycles(ctx, models.CycleFilter{UserID: c.ID, FieldID: &f.ID}); err != nil {
		s.pageError(w, r, err)
		return
	}
	if data.Activities, err = s.config.Farm.ListActivities(ctx, models.ActivityFilter{UserID: c.ID, FieldID: &f.ID}); err != nil {
		s.pageError(w, r, err)
		return
	}
	if data.Soil, err = s.config.Farm.ListSoilAnalyses(ctx, c.ID, &f.ID); err != nil {
		s.pageError(w, r, err)
		return
	}
	s.renderField(w, r, data)
}

func (s *Server) handleMarketPage(w http.ResponseWriter, r *http.Request, _ httprouter.Params, _ *caller) {
	commodity := strings.TrimSpace(r.URL.Query().Get("commodity"))
	prices, err := s.config.Reference.ListMarketPrices(r.Context(), models.MarketFilter{
		Commodity: commodity,
		Limit:     pagePriceLimit,
	})
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	s.renderMarket(w, r, commodity, prices)
}

func (s *Server) handleSchemesPage(w http.ResponseWriter, r *http.Request, _ httprouter.Params, _ *caller) {
	lang := strings.ToLower(r.URL.Query().Get("lang"))
	if !localize.Supported(lang) {
		lang = localize.English
	}
	schemes, err := s.config.Reference.ListSchemes(r.Context(), models.SchemeFilter{})
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	s.renderSchemes(w, r, lang, s.config.Localizer.Schemes(r.Context(), schemes, lang))
}

func (s *Server) handleAdminPage(w http.ResponseWriter, r *http.Request, _ httprouter.Params, c *caller) {
	if !c.Admin {
		s.metrics.AuthFailure("not_admin")
		s.renderForbidden(w, r)
		return
	}
	st, err := s.stats(r.Context())
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	users, err := s.config.Users.ListUsers(r.Context())
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	s.renderAdmin(w, r, st, users)
}

// pageError renders the HTML counterpart of fail.
func (s *Server) pageError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		s.renderNotFound(w, r)
	case errors.Is(err, errForbidden):
		s.renderForbidden(w, r)
	default:
		logger.FromContext(r.Context(), s.logger).Error("failed to load page", "path", r.URL.Path, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
