// Package gemini wraps the Gemini generative models used for crop disease
// diagnosis from photos and for translating scheme text.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"agrismart.dev/agrismart/pkg/metrics"
)

// DefaultModel handles both vision and text prompts.
const DefaultModel = "gemini-2.5-flash"

// ErrNotConfigured is returned by a Client built without an API key.
var ErrNotConfigured = errors.New("gemini API key not configured")

// Generator is the subset of *genai.Models the client calls.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config configures a Client.
type Config struct {
	Logger  *slog.Logger
	Metrics *metrics.ExternalMetrics
	// Generator overrides the genai backend. When nil one is created from APIKey.
	Generator Generator
	APIKey    string
	Model     string
	Timeout   time.Duration
}

// Client issues prompts against one model.
type Client struct {
	logger  *slog.Logger
	metrics *metrics.ExternalMetrics
	models  Generator
	model   string
	timeout time.Duration
}

// New creates a Client. Without an API key or Generator the client is
// returned unconfigured and every call yields ErrNotConfigured.
func New(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("gemini config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	c := &Client{
		logger:  cfg.Logger.With("client", "gemini"),
		metrics: cfg.Metrics,
		models:  cfg.Generator,
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.timeout <= 0 {
		c.timeout = 45 * time.Second
	}

	if c.models == nil && cfg.APIKey != "" {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create GenAI client: %w", err)
		}
		c.models = client.Models
	}
	return c, nil
}

// Configured reports whether calls can reach a model.
func (c *Client) Configured() bool {
	return c != nil && c.models != nil
}

func (c *Client) generate(ctx context.Context, service string, parts []*genai.Part, cfg *genai.GenerateContentConfig) (text string, err error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	started := time.Now()
	defer func() { c.metrics.Observe(service, started, err) }()

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	resp, err := c.models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}

	text = strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("GenAI returned an empty response")
	}
	return text, nil
}
