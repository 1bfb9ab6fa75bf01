package api

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/a-h/templ"

	"agrismart.dev/agrismart/internal/localize"
	"agrismart.dev/agrismart/internal/models"
	"agrismart.dev/agrismart/pkg/logger"
)

// renderLogin renders the sign-in page.
func (s *Server) renderLogin(w http.ResponseWriter, r *http.Request, status int, form authForm) {
	s.render(w, r, status, "login", loginPage(form))
}

// renderRegister renders the registration page.
func (s *Server) renderRegister(w http.ResponseWriter, r *http.Request, status int, form authForm) {
	s.render(w, r, status, "register", registerPage(form))
}

// renderDashboard renders a farmer's dashboard.
func (s *Server) renderDashboard(w http.ResponseWriter, r *http.Request, data dashboardData) {
	s.render(w, r, http.StatusOK, "dashboard", dashboardPage(data))
}

// renderField renders a field with its cycles, activities and soil tests.
func (s *Server) renderField(w http.ResponseWriter, r *http.Request, data fieldPageData) {
	s.render(w, r, http.StatusOK, "field", fieldPage(data))
}

func (s *Server) renderMarket(w http.ResponseWriter, r *http.Request, commodity string, prices []models.MarketPrice) {
	s.render(w, r, http.StatusOK, "market", marketPage(commodity, prices))
}

func (s *Server) renderSchemes(w http.ResponseWriter, r *http.Request, lang string, schemes []localize.Scheme) {
	s.render(w, r, http.StatusOK, "schemes", schemesPage(lang, schemes))
}

// renderAdmin renders the back office.
func (s *Server) renderAdmin(w http.ResponseWriter, r *http.Request, st *Stats, users []models.User) {
	s.render(w, r, http.StatusOK, "admin", adminPage(st, users))
}

func (s *Server) renderForbidden(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusForbidden, "forbidden", forbiddenPage())
}

func (s *Server) renderNotFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusNotFound, "not_found", notFoundPage())
}

// render writes a page. The component is rendered into a buffer first so a
// failed render still yields a clean 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, c templ.Component) {
	var buf bytes.Buffer
	//nolint:contextcheck // Context is passed to Templ's Render method
	err := trackRender(r.Context(), s, name, func(ctx context.Context) error {
		return c.Render(ctx, &buf)
	})
	if err != nil {
		logger.FromContext(r.Context(), s.logger).Error("failed to render page", "template", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// trackRender wraps page rendering with metrics tracking.
func trackRender(ctx context.Context, s *Server, name string, renderFunc func(context.Context) error) error {
	started := time.Now()
	err := renderFunc(ctx)
	s.metrics.ObserveRender(name, started, err)
	return err
}
