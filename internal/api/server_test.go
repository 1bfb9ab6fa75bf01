package api_test

import (
	"math"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"agrismart.dev/agrismart/internal/api"
)

var _ = Describe("API Server", func() {
	Describe("NewServer", func() {
		var h *harness

		BeforeEach(func() {
			h = newHarness()
		})

		Context("with valid configuration", func() {
			It("should create a server", func() {
				server, err := api.NewServer(baseConfig(h))
				Expect(err).NotTo(HaveOccurred())
				Expect(server).NotTo(BeNil())
				Expect(server.Handler()).NotTo(BeNil())
			})

			It("should accept a server without optional integrations", func() {
				cfg := baseConfig(h)
				cfg.Disease, cfg.SMS, cfg.Archive = nil, nil, nil
				server, err := api.NewServer(cfg)
				Expect(err).NotTo(HaveOccurred())
				Expect(server).NotTo(BeNil())
			})
		})

		Context("with invalid configuration", func() {
			It("should return error when config is nil", func() {
				server, err := api.NewServer(nil)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("config cannot be nil"))
				Expect(server).To(BeNil())
			})

			DescribeTable("should reject missing dependencies",
				func(mutate func(*api.ServerConfig), msg string) {
					cfg := baseConfig(h)
					mutate(cfg)
					server, err := api.NewServer(cfg)
					Expect(err).To(MatchError(ContainSubstring(msg)))
					Expect(server).To(BeNil())
				},
				Entry("logger", func(c *api.ServerConfig) { c.Logger = nil }, "logger"),
				Entry("port", func(c *api.ServerConfig) { c.HTTPPort = 0 }, "HTTP port"),
				Entry("users", func(c *api.ServerConfig) { c.Users = nil }, "user store"),
				Entry("farm", func(c *api.ServerConfig) { c.Farm = nil }, "farm store"),
				Entry("reference", func(c *api.ServerConfig) { c.Reference = nil }, "reference store"),
				Entry("sensors", func(c *api.ServerConfig) { c.Sensors = nil }, "sensor store"),
				Entry("auth", func(c *api.ServerConfig) { c.Auth = nil }, "auth manager"),
				Entry("recommender", func(c *api.ServerConfig) { c.Recommender = nil }, "recommender"),
				Entry("weather", func(c *api.ServerConfig) { c.Weather = nil }, "weather service"),
				Entry("localizer", func(c *api.ServerConfig) { c.Localizer = nil }, "localizer"),
			)
		})
	})

	Describe("Shutdown", func() {
		It("should be a no-op before Run", func() {
			server, err := api.NewServer(baseConfig(newHarness()))
			Expect(err).NotTo(HaveOccurred())
			Expect(server.Shutdown()).To(Succeed())
		})
	})

	Describe("RespondWithJSON", func() {
		It("should turn an unencodable value into a 500 with a body", func() {
			rec := httptest.NewRecorder()
			api.RespondWithJSON(rec, http.StatusOK, map[string]float64{"lat": math.NaN()})
			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
			Expect(rec.Body.String()).To(MatchJSON(`{"success":false,"error":"internal server error"}`))
		})
	})
})
