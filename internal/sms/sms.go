// Package sms delivers text messages through an HTTP SMS gateway.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"agrismart.dev/agrismart/pkg/metrics"
)

const serviceName = "sms"

// MaxMessageLength is the longest body accepted, ten concatenated segments.
const MaxMessageLength = 1530

var (
	// ErrNotConfigured is returned when no gateway URL is set.
	ErrNotConfigured = errors.New("sms gateway not configured")
	// ErrInvalidPhone is returned for numbers that are not Indian mobiles.
	ErrInvalidPhone = errors.New("phone must be 10 digits, optionally prefixed with +91")
	// ErrEmptyMessage is returned for a blank body.
	ErrEmptyMessage = errors.New("message cannot be empty")
)

var phonePattern = regexp.MustCompile(`^(?:\+91)?([0-9]{10})$`)

// NormalizePhone validates an Indian mobile number and returns it in
// E.164 form.
func NormalizePhone(phone string) (string, error) {
	p := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(phone))
	m := phonePattern.FindStringSubmatch(p)
	if m == nil {
		return "", ErrInvalidPhone
	}
	return "+91" + m[1], nil
}

// Config configures a Sender.
type Config struct {
	Logger  *slog.Logger
	Metrics *metrics.ExternalMetrics
	HTTP    *http.Client
	URL     string
	APIKey  string
	From    string
}

// Sender posts messages to the gateway.
type Sender struct {
	logger  *slog.Logger
	metrics *metrics.ExternalMetrics
	http    *http.Client
	url     string
	apiKey  string
	from    string
}

// New creates a Sender. An empty URL yields an unconfigured sender.
func New(cfg *Config) (*Sender, error) {
	if cfg == nil {
		return nil, errors.New("sms config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	s := &Sender{
		logger:  cfg.Logger.With("client", serviceName),
		metrics: cfg.Metrics,
		http:    cfg.HTTP,
		url:     cfg.URL,
		apiKey:  cfg.APIKey,
		from:    cfg.From,
	}
	if s.http == nil {
		s.http = &http.Client{Timeout: 10 * time.Second}
	}
	if s.from == "" {
		s.from = "AGRSMT"
	}
	return s, nil
}

// Configured reports whether messages can be sent.
func (s *Sender) Configured() bool {
	return s != nil && s.url != ""
}

type gatewayRequest struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Message string `json:"message"`
}

type gatewayResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	Error     string `json:"error"`
}

// Send delivers message to phone and returns the gateway message id.
func (s *Sender) Send(ctx context.Context, phone, message string) (id string, err error) {
	if !s.Configured() {
		return "", ErrNotConfigured
	}
	to, err := NormalizePhone(phone)
	if err != nil {
		return "", err
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}
	if len(message) > MaxMessageLength {
		message = message[:MaxMessageLength]
	}

	started := time.Now()
	defer func() { s.metrics.Observe(serviceName, started, err) }()

	body, err := json.Marshal(gatewayRequest{To: to, From: s.from, Message: message})
	if err != nil {
		return "", fmt.Errorf("failed to encode sms request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("sms gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var out gatewayResponse
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if out.Error != "" {
			return "", fmt.Errorf("sms gateway returned status %d: %s", resp.StatusCode, out.Error)
		}
		return "", fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
	}

	s.logger.Info("sms sent", "to", mask(to), "message_id", out.MessageID)
	return out.MessageID, nil
}

// mask hides all but the last four digits of a number for logging.
func mask(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
