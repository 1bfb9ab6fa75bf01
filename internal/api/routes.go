package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"agrismart.dev/agrismart/pkg/metrics"
)

// setupRoutes wires every route and wraps the router in the shared
// middleware chain.
func (s *Server) setupRoutes() http.Handler {
	router := httprouter.New()
	router.RedirectTrailingSlash = true
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		RespondWithError(w, http.StatusNotFound, "not found")
	})
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		RespondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	handle := func(method, path string, h httprouter.Handle) {
		router.Handle(method, path, s.instrument(path, h))
	}

	handle(http.MethodGet, "/health", s.handleHealth)
	router.Handler(http.MethodGet, "/metrics", metrics.Handler())

	// Authentication
	handle(http.MethodPost, "/api/auth/register", s.throttled(s.handleRegister))
	handle(http.MethodPost, "/api/auth/login", s.throttled(s.handleLogin))
	handle(http.MethodPost, "/api/auth/logout", s.handleLogout)
	handle(http.MethodGet, "/api/auth/me", s.authed(s.handleMe))

	// Profile
	handle(http.MethodGet, "/api/profile", s.authed(s.handleGetProfile))
	handle(http.MethodPut, "/api/profile", s.authed(s.handleUpdateProfile))

	// Fields
	handle(http.MethodGet, "/api/fields", s.authed(s.handleListFields))
	handle(http.MethodPost, "/api/fields", s.authed(s.handleCreateField))
	handle(http.MethodGet, "/api/fields/:id", s.authed(s.handleGetField))
	handle(http.MethodPut, "/api/fields/:id", s.authed(s.handleUpdateField))
	handle(http.MethodDelete, "/api/fields/:id", s.authed(s.handleDeleteField))

	// Crop cycles
	handle(http.MethodGet, "/api/crop-cycles", s.authed(s.handleListCycles))
	handle(http.MethodPost, "/api/crop-cycles", s.authed(s.handleCreateCycle))
	handle(http.MethodGet, "/api/crop-cycles/:id", s.authed(s.handleGetCycle))
	handle(http.MethodPut, "/api/crop-cycles/:id", s.authed(s.handleUpdateCycle))
	handle(http.MethodDelete, "/api/crop-cycles/:id", s.authed(s.handleDeleteCycle))

	// Field activities
	handle(http.MethodGet, "/api/field-activities", s.authed(s.handleListActivities))
	handle(http.MethodPost, "/api/field-activities", s.authed(s.handleCreateActivity))
	handle(http.MethodGet, "/api/field-activities/summary", s.authed(s.handleActivitySummary))

	// Soil analysis
	handle(http.MethodGet, "/api/soil-analysis", s.authed(s.handleListSoil))
	handle(http.MethodPost, "/api/soil-analysis", s.authed(s.handleCreateSoil))

	// Recommendations
	handle(http.MethodPost, "/api/recommend", s.authed(s.handleRecommend))

	// Reference data
	handle(http.MethodGet, "/api/schemes", s.authed(s.handleSchemes))
	handle(http.MethodGet, "/api/encyclopedia", s.authed(s.handleListCrops))
	handle(http.MethodGet, "/api/encyclopedia/:id", s.authed(s.handleGetCrop))
	handle(http.MethodGet, "/api/market-prices", s.authed(s.handleMarketPrices))
	handle(http.MethodGet, "/api/market-prices/trends", s.authed(s.handlePriceTrends))

	// Weather
	handle(http.MethodGet, "/api/weather", s.authed(s.handleWeather))
	handle(http.MethodGet, "/api/weather/alerts", s.authed(s.handleWeatherAlerts))

	// AI and notifications
	handle(http.MethodPost, "/api/ai/disease-detection", s.authed(s.handleDiseaseDetection))
	handle(http.MethodPost, "/api/notifications/sms", s.authed(s.handleSendSMS))

	// Sensors
	handle(http.MethodGet, "/api/sensors", s.authed(s.handleListSensors))
	handle(http.MethodPost, "/api/sensors", s.authed(s.handleCreateSensor))
	handle(http.MethodGet, "/api/sensors/alerts", s.authed(s.handleSensorAlerts))
	handle(http.MethodPost, "/api/sensors/alerts/:id/acknowledge", s.authed(s.handleAcknowledgeAlert))
	handle(http.MethodPost, "/api/sensors/alerts/:id/resolve", s.authed(s.handleResolveAlert))

	// Admin
	handle(http.MethodGet, "/api/admin/stats", s.admin(s.handleAdminStats))
	handle(http.MethodGet, "/api/admin/users", s.admin(s.handleAdminUsers))
	handle(http.MethodDelete, "/api/admin/users/:id", s.admin(s.handleAdminDeleteUser))
	handle(http.MethodGet, "/api/admin/schemes", s.admin(s.handleAdminSchemes))
	handle(http.MethodPost, "/api/admin/schemes", s.admin(s.handleAdminCreateScheme))
	handle(http.MethodPut, "/api/admin/schemes/:id", s.admin(s.handleAdminUpdateScheme))
	handle(http.MethodDelete, "/api/admin/schemes/:id", s.admin(s.handleAdminDeleteScheme))
	handle(http.MethodGet, "/api/admin/crops", s.admin(s.handleAdminCrops))
	handle(http.MethodPost, "/api/admin/crops", s.admin(s.handleAdminCreateCrop))
	handle(http.MethodPut, "/api/admin/crops/:id", s.admin(s.handleAdminUpdateCrop))
	handle(http.MethodDelete, "/api/admin/crops/:id", s.admin(s.handleAdminDeleteCrop))
	handle(http.MethodGet, "/api/admin/market-prices", s.admin(s.handleAdminMarketPrices))
	handle(http.MethodPost, "/api/admin/market-prices", s.admin(s.handleAdminCreateMarketPrice))
	handle(http.MethodDelete, "/api/admin/market-prices/:id", s.admin(s.handleAdminDeleteMarketPrice))
	handle(http.MethodGet, "/api/admin/market-prices/export", s.admin(s.handleExportMarketPrices))
	handle(http.MethodPost, "/api/admin/market-prices/import", s.admin(s.handleImportMarketPrices))

	// Pages
	handle(http.MethodGet, "/", s.handleRoot)
	handle(http.MethodGet, "/login", s.handleLoginPage)
	handle(http.MethodPost, "/login", s.throttled(s.handleLoginForm))
	handle(http.MethodGet, "/register", s.handleRegisterPage)
	handle(http.MethodPost, "/register", s.throttled(s.handleRegisterForm))
	handle(http.MethodPost, "/logout", s.handleLogoutForm)
	handle(http.MethodGet, "/dashboard", s.page(s.handleDashboardPage))
	handle(http.MethodGet, "/fields/:id", s.page(s.handleFieldPage))
	handle(http.MethodGet, "/market", s.page(s.handleMarketPage))
	handle(http.MethodGet, "/schemes", s.page(s.handleSchemesPage))
	handle(http.MethodGet, "/admin", s.page(s.handleAdminPage))

	c := cors.New(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: true,
	})

	var h http.Handler = router
	h = c.Handler(h)
	h = securityHeaders(h)
	h = s.recoverPanics(h)
	h = s.logRequests(h)
	h = s.requestContext(h)
	return h
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	ok(w, http.StatusOK, envelope{"status": "ok"})
}
