package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Report is the full recommendation for one soil test.
type Report struct {
	CropRecommendations       []CropRecommendation       `json:"crop_recommendations"`
	FertilizerRecommendations []FertilizerRecommendation `json:"fertilizer_recommendations"`
	MarketInsights            []MarketInsight            `json:"market_insights"`
}

// Coverage summarizes how many insights carry a price: "complete",
// "partial" or "unavailable".
func (r *Report) Coverage() string {
	n := 0
	for _, m := range r.MarketInsights {
		if m.Available() {
			n++
		}
	}
	switch {
	case n == 0:
		return "unavailable"
	case n == len(r.MarketInsights):
		return "complete"
	default:
		return "partial"
	}
}

// ErrInvalidInput wraps validation failures of an Input.
var ErrInvalidInput = errors.New("invalid recommendation input")

// Validate checks the soil values are physically possible.
func (in Input) Validate() error {
	switch {
	case in.Nitrogen < 0:
		return fmt.Errorf("%w: nitrogen cannot be negative", ErrInvalidInput)
	case in.Phosphorus < 0:
		return fmt.Errorf("%w: phosphorus cannot be negative", ErrInvalidInput)
	case in.Potassium < 0:
		return fmt.Errorf("%w: potassium cannot be negative", ErrInvalidInput)
	case in.PH < 0 || in.PH > 14:
		return fmt.Errorf("%w: ph must be between 0 and 14", ErrInvalidInput)
	case in.Rainfall != nil && *in.Rainfall < 0:
		return fmt.Errorf("%w: rainfall cannot be negative", ErrInvalidInput)
	}
	return nil
}

// Engine produces reports from the crop table and a price source.
type Engine struct {
	logger   *slog.Logger
	prices   PriceSource
	profiles []Profile
}

// NewEngine creates an Engine. A nil price source marks every insight
// Unavailable.
func NewEngine(logger *slog.Logger, prices PriceSource) (*Engine, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Engine{logger: logger, prices: prices, profiles: Profiles}, nil
}

// Recommend scores crops, derives fertilizer advice and attaches market
// insights for the recommended crops. Only invalid input fails it.
func (e *Engine) Recommend(ctx context.Context, in Input) (*Report, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	crops := RankCrops(e.profiles, in, TopCrops)
	names := make([]string, len(crops))
	for i, c := range crops {
		names[i] = c.Crop
	}

	return &Report{
		CropRecommendations:       crops,
		FertilizerRecommendations: Fertilizers(in),
		MarketInsights:            Insights(ctx, e.prices, e.logger, names),
	}, nil
}
