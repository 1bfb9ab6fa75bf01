// Package mandi queries the data.gov.in daily mandi (wholesale market) price
// resource for current commodity prices.
package mandi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"agrismart.dev/agrismart/internal/cache"
	"agrismart.dev/agrismart/pkg/metrics"
)

const (
	// DefaultBaseURL is the "current daily price of various commodities"
	// resource on the Open Government Data platform.
	DefaultBaseURL = "https://api.data.gov.in/resource/9ef84268-d588-465a-a308-a864a43d0070"

	serviceName = "mandi"
	cacheTTL    = time.Hour
)

var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("mandi API key not configured")
	// ErrNoRecords is returned when the resource has no price for a commodity.
	ErrNoRecords = errors.New("no price records for commodity")
)

// Record is one row of the resource. Prices are INR per quintal.
type Record struct {
	State       string `json:"state"`
	District    string `json:"district"`
	Market      string `json:"market"`
	Commodity   string `json:"commodity"`
	Variety     string `json:"variety"`
	ArrivalDate string `json:"arrival_date"`
	MinPrice    Price  `json:"min_price"`
	MaxPrice    Price  `json:"max_price"`
	ModalPrice  Price  `json:"modal_price"`
}

// Price accepts both the quoted and the bare numeric encodings the
// resource emits.
type Price float64

// UnmarshalJSON implements json.Unmarshaler.
func (p *Price) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" || s == "NR" {
		*p = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid price %q: %w", s, err)
	}
	*p = Price(f)
	return nil
}

// Quote is the current price of one commodity.
type Quote struct {
	Commodity   string  `json:"commodity"`
	Market      string  `json:"market"`
	State       string  `json:"state"`
	ArrivalDate string  `json:"arrival_date"`
	ModalPrice  float64 `json:"modal_price"`
}

// Config configures a Client.
type Config struct {
	Logger  *slog.Logger
	Cache   cache.Cache
	Metrics *metrics.ExternalMetrics
	HTTP    *http.Client
	APIKey  string
	BaseURL string
}

// Client talks to the mandi price resource.
type Client struct {
	logger  *slog.Logger
	cache   cache.Cache
	metrics *metrics.ExternalMetrics
	http    *http.Client
	apiKey  string
	baseURL string
}

// New creates a Client. An empty API key yields a client whose lookups
// fail with ErrNotConfigured.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("mandi config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	c := &Client{
		logger:  cfg.Logger.With("client", serviceName),
		cache:   cfg.Cache,
		metrics: cfg.Metrics,
		http:    cfg.HTTP,
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
	}
	if c.cache == nil {
		c.cache = cache.Noop{}
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 8 * time.Second}
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	return c, nil
}

// Records fetches up to limit price rows for a commodity, most recent first.
func (c *Client) Records(ctx context.Context, commodity string, limit int) (records []Record, err error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	if limit <= 0 {
		limit = 10
	}

	started := time.Now()
	defer func() { c.metrics.Observe(serviceName, started, err) }()

	q := url.Values{}
	q.Set("api-key", c.apiKey)
	q.Set("format", "json")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("filters[commodity]", commodity)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build mandi request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mandi request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mandi API returned status %d", resp.StatusCode)
	}

	var body struct {
		Records []Record `json:"records"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode mandi response: %w", err)
	}
	return body.Records, nil
}

// CurrentPrice returns the modal price of the first record for a crop or
// commodity, translating crop names through Commodity. Successful lookups
// are cached for an hour.
func (c *Client) CurrentPrice(ctx context.Context, crop string) (*Quote, error) {
	commodity := Commodity(crop)
	key := "mandi:" + strings.ToLower(commodity)

	var cached Quote
	found, err := c.cache.Get(ctx, key, &cached)
	switch {
	case err != nil:
		c.metrics.CacheResult(serviceName, "error")
		c.logger.Warn("price cache lookup failed", "commodity", commodity, "error", err)
	case found:
		c.metrics.CacheResult(serviceName, "hit")
		return &cached, nil
	default:
		c.metrics.CacheResult(serviceName, "miss")
	}

	records, err := c.Records(ctx, commodity, 10)
	if err != nil {
		return nil, err
	}
	quote, err := firstQuote(commodity, records)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, key, quote, cacheTTL); err != nil {
		c.logger.Warn("failed to cache price", "commodity", commodity, "error", err)
	}
	return quote, nil
}

// firstQuote takes the first record of commodity, in the order the resource
// returned them. Rows without a modal price are skipped.
func firstQuote(commodity string, records []Record) (*Quote, error) {
	for _, r := range records {
		if r.ModalPrice <= 0 || !strings.EqualFold(strings.TrimSpace(r.Commodity), commodity) {
			continue
		}
		return &Quote{
			Commodity:   r.Commodity,
			Market:      r.Market,
			State:       r.State,
			ArrivalDate: r.ArrivalDate,
			ModalPrice:  float64(r.ModalPrice),
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoRecords, commodity)
}

// commodityNames maps crop names to the commodity names the resource
// reports them under. Crops missing here are looked up by their own name.
var commodityNames = map[string]string{
	"chickpea":   "Bengal Gram(Gram)(Whole)",
	"gram":       "Bengal Gram(Gram)(Whole)",
	"pigeonpea":  "Arhar (Tur/Red Gram)(Whole)",
	"tur":        "Arhar (Tur/Red Gram)(Whole)",
	"lentil":     "Lentil (Masur)(Whole)",
	"soybean":    "Soyabean",
	"watermelon": "Water Melon",
	"paddy":      "Paddy(Dhan)(Common)",
	"mustard":    "Mustard",
	"groundnut":  "Groundnut",
}

// Commodity returns the resource's commodity name for a crop.
func Commodity(crop string) string {
	crop = strings.TrimSpace(crop)
	if name, ok := commodityNames[strings.ToLower(crop)]; ok {
		return name
	}
	return crop
}
