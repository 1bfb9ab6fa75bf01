package openmeteo_test

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"agrismart.dev/agrismart/internal/openmeteo"
)

const sample = `{
	"timezone": "Asia/Kolkata",
	"current": {"time":"2026-10-19T10:00","temperature_2m":31.4,"relative_humidity_2m":48,"precipitation":0.2,"weather_code":61,"wind_speed_10m":12.5},
	"daily": {
		"time": ["2026-10-19","2026-10-20","2026-10-21"],
		"weather_code": [61,63,1],
		"temperature_2m_max": [33.1,30.2,32.0],
		"temperature_2m_min": [22.4,21.9,22.8],
		"precipitation_sum": [1.2,8.4,0]
	}
}`

var _ = Describe("Client", func() {
	var (
		logger *slog.Logger
		server *httptest.Server
		status int
	)

	BeforeEach(func() {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
		status = http.StatusOK
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("latitude") == "" || r.URL.Query().Get("forecast_days") != "3" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.WriteHeader(status)
			fmt.Fprint(w, sample)
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("rejects a missing logger", func() {
		_, err := openmeteo.New(&openmeteo.Config{})
		Expect(err).To(MatchError(ContainSubstring("logger cannot be nil")))
	})

	It("decodes current conditions and zips the daily arrays", func() {
		c, err := openmeteo.New(&openmeteo.Config{Logger: logger, BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())

		f, err := c.Forecast(context.Background(), 18.52, 73.85)
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Current.Temperature).To(Equal(31.4))
		Expect(f.Current.WeatherCode).To(Equal(61))
		Expect(f.Daily).To(HaveLen(3))
		Expect(f.Daily[1]).To(Equal(openmeteo.Day{
			Date: "2026-10-20", WeatherCode: 63, TempMax: 30.2, TempMin: 21.9, PrecipitationSum: 8.4,
		}))
	})

	It("returns an error on a non-200 response", func() {
		status = http.StatusServiceUnavailable
		c, err := openmeteo.New(&openmeteo.Config{Logger: logger, BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())

		_, err = c.Forecast(context.Background(), 18.52, 73.85)
		Expect(err).To(MatchError(ContainSubstring("status 503")))
	})
})
