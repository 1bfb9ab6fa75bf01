package recommend

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"agrismart.dev/agrismart/internal/mandi"
)

// Demand labels.
const (
	DemandHigh        = "High"
	DemandNormal      = "Normal"
	DemandUnavailable = "Unavailable"
)

// HighDemandPrice is the modal price (INR/quintal) above which demand is high.
const HighDemandPrice = 3000.0

// PriceSource returns the current market quote for a commodity.
type PriceSource interface {
	CurrentPrice(ctx context.Context, commodity string) (*mandi.Quote, error)
}

// MarketInsight is the market view for one recommended crop.
type MarketInsight struct {
	CurrentPrice *float64 `json:"current_price"`
	Crop         string   `json:"crop"`
	Demand       string   `json:"demand"`
	Market       string   `json:"market,omitempty"`
	State        string   `json:"state,omitempty"`
	ArrivalDate  string   `json:"arrival_date,omitempty"`
}

// Available reports whether a price was found.
func (m MarketInsight) Available() bool {
	return m.CurrentPrice != nil
}

// DemandFor labels a modal price.
func DemandFor(price float64) string {
	if price > HighDemandPrice {
		return DemandHigh
	}
	return DemandNormal
}

// maxPriceLookups bounds concurrent calls to the price API per report.
const maxPriceLookups = 4

// Insights looks up prices for crops concurrently. The result has one entry
// per crop in the same order; a failed lookup yields an Unavailable entry.
func Insights(ctx context.Context, src PriceSource, logger *slog.Logger, crops []string) []MarketInsight {
	out := make([]MarketInsight, len(crops))
	for i, c := range crops {
		out[i] = MarketInsight{Crop: c, Demand: DemandUnavailable}
	}
	if src == nil {
		return out
	}

	var g errgroup.Group
	g.SetLimit(maxPriceLookups)
	for i, crop := range crops {
		g.Go(func() error {
			q, err := src.CurrentPrice(ctx, crop)
			if err != nil {
				logger.Warn("market price unavailable", "crop", crop, "error", err)
				return nil
			}
			price := q.ModalPrice
			out[i] = MarketInsight{
				Crop:         crop,
				CurrentPrice: &price,
				Demand:       DemandFor(price),
				Market:       q.Market,
				State:        q.State,
				ArrivalDate:  q.ArrivalDate,
			}
			return nil
		})
	}
	// Lookups never return errors; failures are folded into the entries.
	_ = g.Wait()
	return out
}
