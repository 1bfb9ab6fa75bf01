package pgstore

import (
	"context"
	"fmt"
	"strings"

	"agrismart.dev/agrismart/internal/models"
)

// ListCrops searches the encyclopedia by common or scientific name.
func (s *Store) ListCrops(ctx context.Context, f models.CropFilter) ([]models.Crop, error) {
	q := s.db.WithContext(ctx).Model(&models.Crop{})
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + escapeLike(term) + "%"
		q = q.Where("common_name ILIKE ? OR scientific_name ILIKE ?", like, like)
	}
	if f.Season != "" {
		q = q.Where("season ILIKE ?", f.Season)
	}

	var out []models.Crop
	if err := q.Order("common_name").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list crops: %w", err)
	}
	return out, nil
}

// CropByID loads one encyclopedia entry.
func (s *Store) CropByID(ctx context.Context, id uint) (*models.Crop, error) {
	var c models.Crop
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// CreateCrop inserts c. A second entry with the same common name fails
// with ErrDuplicate.
func (s *Store) CreateCrop(ctx context.Context, c *models.Crop) error {
	return translate(s.db.WithContext(ctx).Create(c).Error)
}

// UpdateCrop saves every column of c.
func (s *Store) UpdateCrop(ctx context.Context, c *models.Crop) error {
	return affected(s.db.WithContext(ctx).Model(c).Select("*").Omit("id", "created_at").Updates(c))
}

// DeleteCrop removes an encyclopedia entry.
func (s *Store) DeleteCrop(ctx context.Context, id uint) error {
	return affected(s.db.WithContext(ctx).Delete(&models.Crop{}, id))
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
