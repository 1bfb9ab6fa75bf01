package pgstore

import (
	"context"
	"fmt"
	"time"

	"agrismart.dev/agrismart/internal/models"
)

const (
	defaultPriceLimit = 100
	maxPriceLimit     = 1000
	insertBatchSize   = 200
)

// ListMarketPrices returns the newest quotations first.
func (s *Store) ListMarketPrices(ctx context.Context, f models.MarketFilter) ([]models.MarketPrice, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultPriceLimit
	}
	if limit > maxPriceLimit {
		limit = maxPriceLimit
	}

	q := s.db.WithContext(ctx).Model(&models.MarketPrice{})
	if f.Commodity != "" {
		q = q.Where("commodity ILIKE ?", f.Commodity)
	}
	if f.State != "" {
		q = q.Where("state ILIKE ?", f.State)
	}
	if f.Market != "" {
		q = q.Where("market ILIKE ?", f.Market)
	}

	var out []models.MarketPrice
	if err := q.Order("arrival_date DESC, id DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list market prices: %w", err)
	}
	return out, nil
}

// CreateMarketPrice inserts one quotation.
func (s *Store) CreateMarketPrice(ctx context.Context, p *models.MarketPrice) error {
	return translate(s.db.WithContext(ctx).Create(p).Error)
}

// CreateMarketPrices inserts quotations in batches inside one transaction.
func (s *Store) CreateMarketPrices(ctx context.Context, prices []models.MarketPrice) error {
	if len(prices) == 0 {
		return nil
	}
	return translate(s.db.WithContext(ctx).CreateInBatches(&prices, insertBatchSize).Error)
}

// DeleteMarketPrice removes one quotation.
func (s *Store) DeleteMarketPrice(ctx context.Context, id uint) error {
	return affected(s.db.WithContext(ctx).Delete(&models.MarketPrice{}, id))
}

// PriceTrend averages the modal price of commodity per day since since.
func (s *Store) PriceTrend(ctx context.Context, commodity string, since time.Time) ([]models.PricePoint, error) {
	var out []models.PricePoint
	err := s.db.WithContext(ctx).
		Model(&models.MarketPrice{}).
		Select("date_trunc('day', arrival_date) AS day, AVG(modal_price) AS avg_price, COUNT(*) AS quotations").
		Where("commodity ILIKE ? AND arrival_date >= ?", commodity, since).
		Group("day").
		Order("day").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute price trend: %w", err)
	}
	return out, nil
}

// CountMarketPrices returns the number of stored quotations.
func (s *Store) CountMarketPrices(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.MarketPrice{}).Count(&n).Error
	return n, err
}
