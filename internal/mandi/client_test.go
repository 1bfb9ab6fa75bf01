package mandi_test

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"agrismart.dev/agrismart/internal/mandi"
)

type memCache struct {
	values map[string]any
}

func (m *memCache) Get(_ context.Context, key string, dst any) (bool, error) {
	v, ok := m.values[key]
	if !ok {
		return false, nil
	}
	*(dst.(*mandi.Quote)) = v.(mandi.Quote)
	return true, nil
}

func (m *memCache) Set(_ context.Context, key string, v any, _ time.Duration) error {
	m.values[key] = *(v.(*mandi.Quote))
	return nil
}

var _ = Describe("Client", func() {
	var (
		logger *slog.Logger
		server *httptest.Server
		calls  atomic.Int32
		body   string
		status int
		filter string
	)

	BeforeEach(func() {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
		calls.Store(0)
		status = http.StatusOK
		body = `{"records":[
			{"state":"Punjab","district":"Ludhiana","market":"Khanna","commodity":"Wheat","arrival_date":"18/10/2026","min_price":"2300","max_price":"2500","modal_price":"2425"},
			{"state":"Haryana","district":"Karnal","market":"Karnal","commodity":"Wheat","arrival_date":"17/10/2026","min_price":2200,"max_price":2400,"modal_price":2350}
		]}`
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			filter = r.URL.Query().Get("filters[commodity]")
			if r.URL.Query().Get("api-key") != "test-key" || r.URL.Query().Get("filters[commodity]") == "" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.WriteHeader(status)
			fmt.Fprint(w, body)
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	newClient := func(key string, c *memCache) *mandi.Client {
		cfg := &mandi.Config{Logger: logger, APIKey: key, BaseURL: server.URL}
		if c != nil {
			cfg.Cache = c
		}
		client, err := mandi.New(cfg)
		Expect(err).NotTo(HaveOccurred())
		return client
	}

	It("rejects a nil config", func() {
		c, err := mandi.New(nil)
		Expect(err).To(MatchError(ContainSubstring("config cannot be nil")))
		Expect(c).To(BeNil())
	})

	It("takes the modal price of the first record", func() {
		q, err := newClient("test-key", nil).CurrentPrice(context.Background(), "Wheat")
		Expect(err).NotTo(HaveOccurred())
		Expect(q.ModalPrice).To(Equal(2425.0))
		Expect(q.Market).To(Equal("Khanna"))
	})

	It("accepts numeric price encodings", func() {
		records, err := newClient("test-key", nil).Records(context.Background(), "Wheat", 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(2))
		Expect(float64(records[1].ModalPrice)).To(Equal(2350.0))
	})

	It("fails without an API key and never calls out", func() {
		_, err := newClient("", nil).CurrentPrice(context.Background(), "Wheat")
		Expect(err).To(MatchError(mandi.ErrNotConfigured))
		Expect(calls.Load()).To(BeZero())
	})

	It("reports missing commodities", func() {
		body = `{"records":[]}`
		_, err := newClient("test-key", nil).CurrentPrice(context.Background(), "Quinoa")
		Expect(err).To(MatchError(mandi.ErrNoRecords))
	})

	It("surfaces upstream errors", func() {
		status = http.StatusBadGateway
		_, err := newClient("test-key", nil).CurrentPrice(context.Background(), "Wheat")
		Expect(err).To(MatchError(ContainSubstring("status 502")))
	})

	It("serves repeated lookups from the cache", func() {
		c := &memCache{values: map[string]any{}}
		client := newClient("test-key", c)

		for range 3 {
			q, err := client.CurrentPrice(context.Background(), "Wheat")
			Expect(err).NotTo(HaveOccurred())
			Expect(q.ModalPrice).To(Equal(2425.0))
		}
		Expect(calls.Load()).To(Equal(int32(1)))
	})
	It("looks crops up under their mandi commodity name", func() {
		body = `{"records":[
			{"state":"Maharashtra","market":"Latur","commodity":"Bengal Gram(Gram)(Whole)","arrival_date":"18/10/2026","modal_price":"5600"}
		]}`
		q, err := newClient("test-key", nil).CurrentPrice(context.Background(), "Chickpea")
		Expect(err).NotTo(HaveOccurred())
		Expect(filter).To(Equal("Bengal Gram(Gram)(Whole)"))
		Expect(q.ModalPrice).To(Equal(5600.0))
	})

	It("ignores rows of a qualified commodity name", func() {
		body = `{"records":[
			{"market":"Indore","commodity":"Wheat(Atta)","modal_price":"3100"},
			{"market":"Khanna","commodity":"Wheat","modal_price":"2425"}
		]}`
		q, err := newClient("test-key", nil).CurrentPrice(context.Background(), "wheat")
		Expect(err).NotTo(HaveOccurred())
		Expect(q.Market).To(Equal("Khanna"))
	})

	DescribeTable("Commodity",
		func(crop, want string) {
			Expect(mandi.Commodity(crop)).To(Equal(want))
		},
		Entry("pigeonpea", "Pigeonpea", "Arhar (Tur/Red Gram)(Whole)"),
		Entry("lentil", "lentil", "Lentil (Masur)(Whole)"),
		Entry("soybean", " Soybean ", "Soyabean"),
		Entry("unmapped crop", "Onion", "Onion"),
	)
})
