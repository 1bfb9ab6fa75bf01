package pgstore

import (
	"context"
	"fmt"

	"agrismart.dev/agrismart/internal/models"
)

// ListSchemes returns schemes ordered by name. A state filter also matches
// nationwide schemes.
func (s *Store) ListSchemes(ctx context.Context, f models.SchemeFilter) ([]models.Scheme, error) {
	q := s.db.WithContext(ctx).Model(&models.Scheme{})
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.State != "" {
		q = q.Where("state ILIKE ? OR state = ?", f.State, "All India")
	}

	var out []models.Scheme
	if err := q.Order("name").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list schemes: %w", err)
	}
	return out, nil
}

// SchemeByID loads one scheme.
func (s *Store) SchemeByID(ctx context.Context, id uint) (*models.Scheme, error) {
	var sc models.Scheme
	if err := s.db.WithContext(ctx).First(&sc, id).Error; err != nil {
		return nil, translate(err)
	}
	return &sc, nil
}

// CreateScheme inserts sc and fills its ID.
func (s *Store) CreateScheme(ctx context.Context, sc *models.Scheme) error {
	return translate(s.db.WithContext(ctx).Create(sc).Error)
}

// UpdateScheme saves every column of sc.
func (s *Store) UpdateScheme(ctx context.Context, sc *models.Scheme) error {
	return affected(s.db.WithContext(ctx).Model(sc).Select("*").Omit("id", "created_at").Updates(sc))
}

// DeleteScheme removes a scheme.
func (s *Store) DeleteScheme(ctx context.Context, id uint) error {
	return affected(s.db.WithContext(ctx).Delete(&models.Scheme{}, id))
}

// CountSchemes returns the number of schemes.
func (s *Store) CountSchemes(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Scheme{}).Count(&n).Error
	return n, err
}
