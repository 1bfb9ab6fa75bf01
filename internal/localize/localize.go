// Package localize renders government schemes in Hindi or Marathi, preferring
// curated translations and falling back to machine translation.
package localize

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"agrismart.dev/agrismart/internal/cache"
	"agrismart.dev/agrismart/internal/models"
	"agrismart.dev/agrismart/pkg/metrics"
)

// Supported languages.
const (
	English = "en"
	Hindi   = "hi"
	Marathi = "mr"
)

const (
	// MaxConcurrent bounds in-flight translation calls per request.
	MaxConcurrent = 8
	cacheTTL      = 24 * time.Hour
	cacheName     = "translation"
)

// Supported reports whether lang is one of the served languages.
func Supported(lang string) bool {
	return lang == English || lang == Hindi || lang == Marathi
}

// Translator renders text in a language.
type Translator interface {
	Translate(ctx context.Context, text, lang string) (string, error)
}

// Scheme is a scheme as shown to a farmer in one language.
type Scheme struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Category       string   `json:"category"`
	State          string   `json:"state"`
	ApplicationURL string   `json:"application_url"`
	Language       string   `json:"language"`
	Eligibility    []string `json:"eligibility"`
	Benefits       []string `json:"benefits"`
	ID             uint     `json:"id"`
}

// Config configures a Localizer.
type Config struct {
	Logger     *slog.Logger
	Translator Translator
	Cache      cache.Cache
	Metrics    *metrics.ExternalMetrics
}

// Localizer translates schemes.
type Localizer struct {
	logger     *slog.Logger
	translator Translator
	cache      cache.Cache
	metrics    *metrics.ExternalMetrics
}

// New creates a Localizer. A nil Translator serves curated text only.
func New(cfg *Config) (*Localizer, error) {
	if cfg == nil {
		return nil, errors.New("localize config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	l := &Localizer{
		logger:     cfg.Logger,
		translator: cfg.Translator,
		cache:      cfg.Cache,
		metrics:    cfg.Metrics,
	}
	if l.cache == nil {
		l.cache = cache.Noop{}
	}
	return l, nil
}

type job struct {
	dst  *string
	text string
}

// Schemes renders schemes in lang. Text that cannot be translated stays in
// English; the call itself never fails.
func (l *Localizer) Schemes(ctx context.Context, schemes []models.Scheme, lang string) []Scheme {
	out := make([]Scheme, len(schemes))
	var jobs []job

	for i, s := range schemes {
		out[i] = Scheme{
			ID:             s.ID,
			Name:           s.Name,
			Description:    s.Description,
			Category:       s.Category,
			State:          s.State,
			ApplicationURL: s.ApplicationURL,
			Language:       lang,
			Eligibility:    nonNil(models.StringsOf(s.Eligibility)),
			Benefits:       nonNil(models.StringsOf(s.Benefits)),
		}
		if lang == English || lang == "" {
			out[i].Language = English
			continue
		}

		o := &out[i]
		if name := curated(s.NameHi, s.NameMr, lang); name != "" {
			o.Name = name
		} else {
			jobs = append(jobs, job{dst: &o.Name, text: s.Name})
		}
		if desc := curated(s.DescriptionHi, s.DescriptionMr, lang); desc != "" {
			o.Description = desc
		} else {
			jobs = append(jobs, job{dst: &o.Description, text: s.Description})
		}
		for j := range o.Eligibility {
			jobs = append(jobs, job{dst: &o.Eligibility[j], text: o.Eligibility[j]})
		}
		for j := range o.Benefits {
			jobs = append(jobs, job{dst: &o.Benefits[j], text: o.Benefits[j]})
		}
	}

	if len(jobs) > 0 {
		l.run(ctx, jobs, lang)
	}
	return out
}

func (l *Localizer) run(ctx context.Context, jobs []job, lang string) {
	var g errgroup.Group
	g.SetLimit(MaxConcurrent)

	for _, j := range jobs {
		if strings.TrimSpace(j.text) == "" {
			continue
		}
		g.Go(func() error {
			if t, ok := l.translate(ctx, j.text, lang); ok {
				*j.dst = t
			}
			return nil
		})
	}
	_ = g.Wait()
}

// translate returns the cached or freshly translated text and whether a
// translation was obtained.
func (l *Localizer) translate(ctx context.Context, text, lang string) (string, bool) {
	key := cacheKey(text, lang)

	var cached string
	found, err := l.cache.Get(ctx, key, &cached)
	switch {
	case err != nil:
		l.metrics.CacheResult(cacheName, "error")
	case found:
		l.metrics.CacheResult(cacheName, "hit")
		return cached, true
	default:
		l.metrics.CacheResult(cacheName, "miss")
	}

	if l.translator == nil {
		return "", false
	}
	t, err := l.translator.Translate(ctx, text, lang)
	if err != nil {
		l.logger.Debug("translation failed, keeping English", "lang", lang, "error", err)
		l.metrics.Fallback(cacheName)
		return "", false
	}

	if err := l.cache.Set(ctx, key, t, cacheTTL); err != nil {
		l.logger.Warn("failed to cache translation", "error", err)
	}
	return t, true
}

func cacheKey(text, lang string) string {
	sum := sha256.Sum256([]byte(text))
	return "tr:" + lang + ":" + hex.EncodeToString(sum[:12])
}

func curated(hi, mr, lang string) string {
	switch lang {
	case Hindi:
		return strings.TrimSpace(hi)
	case Marathi:
		return strings.TrimSpace(mr)
	}
	return ""
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
