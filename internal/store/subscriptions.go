package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/user/vidtube-go/internal/apperr"
	"github.com/user/vidtube-go/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Subscribe makes viewerID follow creatorID. Subscribing twice is a no-op.
func (s *GormStore) Subscribe(ctx context.Context, viewerID, creatorID uuid.UUID) (*model.Subscription, error) {
	if viewerID == creatorID {
		return nil, apperr.BadRequest("cannot subscribe to yourself")
	}

	var sub model.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := exists(tx, "users", creatorID)
		if err != nil {
			return errors.Wrap(err, "failed to check creator")
		}
		if !ok {
			return apperr.NotFound("creator not found")
		}

		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "viewer_id"}, {Name: "creator_id"}},
			DoNothing: true,
		}).Create(&model.Subscription{ViewerID: viewerID, CreatorID: creatorID}).Error
		if err != nil {
			return errors.Wrap(err, "failed to create subscription")
		}

		return tx.Where("viewer_id = ? AND creator_id = ?", viewerID, creatorID).First(&sub).Error
	})
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// Unsubscribe removes the subscription if it exists
func (s *GormStore) Unsubscribe(ctx context.Context, viewerID, creatorID uuid.UUID) error {
	if viewerID == creatorID {
		return apperr.BadRequest("cannot unsubscribe from yourself")
	}
	err := s.db.WithContext(ctx).
		Where("viewer_id = ? AND creator_id = ?", viewerID, creatorID).
		Delete(&model.Subscription{}).Error
	if err != nil {
		return errors.Wrap(err, "failed to delete subscription")
	}
	return nil
}
