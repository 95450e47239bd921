package store

import (
	"context"

	"github.com/pkg/errors"
	"github.com/user/vidtube-go/internal/model"
	"gorm.io/gorm/clause"
)

// ListCategories returns all categories ordered by name
func (s *GormStore) ListCategories(ctx context.Context) ([]*model.Category, error) {
	var categories []*model.Category
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list categories")
	}
	return categories, nil
}

// SeedCategories inserts the named categories that do not exist yet and
// returns how many were created.
func (s *GormStore) SeedCategories(ctx context.Context, names []string) (int64, error) {
	if len(names) == 0 {
		return 0, nil
	}
	categories := make([]*model.Category, 0, len(names))
	for _, name := range names {
		categories = append(categories, &model.Category{Name: name})
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&categories)
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to seed categories")
	}
	return result.RowsAffected, nil
}
