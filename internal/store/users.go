package store

import (
	"context"

	"github.com/pkg/errors"
	"github.com/user/vidtube-go/internal/apperr"
	"github.com/user/vidtube-go/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertUser inserts a user or refreshes the name and image of the user with
// the same external id. On return user holds the stored row.
func (s *GormStore) UpsertUser(ctx context.Context, user *model.User) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "image_url", "updated_at"}),
		}).Create(user).Error
		if err != nil {
			return errors.Wrap(err, "failed to upsert user")
		}

		var stored model.User
		if err := tx.Where("external_id = ?", user.ExternalID).First(&stored).Error; err != nil {
			return errors.Wrap(err, "failed to reload user")
		}
		*user = stored
		return nil
	})
}

// GetUserByExternalID returns the local user mirroring an identity-provider account
func (s *GormStore) GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("external_id = ?", externalID).First(&user).Error
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, errors.Wrap(err, "failed to get user")
	}
	return &user, nil
}

// DeleteUserByExternalID deletes a user and, through cascades, everything
// they own. Stored objects of their videos are enqueued for cleanup in the
// same transaction. Deleting an unknown user is a no-op.
func (s *GormStore) DeleteUserByExternalID(ctx context.Context, externalID string) ([]*model.CleanupTask, error) {
	var tasks []*model.CleanupTask
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user model.User
		if err := tx.Where("external_id = ?", externalID).First(&user).Error; err != nil {
			if isNotFound(err) {
				return nil
			}
			return errors.Wrap(err, "failed to get user")
		}

		var videos []*model.Video
		err := tx.Select("id", "thumbnail_key", "preview_key").
			Where("user_id = ?", user.ID).
			Find(&videos).Error
		if err != nil {
			return errors.Wrap(err, "failed to list user videos")
		}
		now := nowUTC()
		for _, v := range videos {
			id := v.ID
			tasks = append(tasks, model.NewDeleteObjectTasks(&id, v.StoredObjectKeys(), now)...)
		}
		if len(tasks) > 0 {
			if err := tx.Create(&tasks).Error; err != nil {
				return errors.Wrap(err, "failed to enqueue cleanup tasks")
			}
		}

		if err := tx.Delete(&model.User{}, "id = ?", user.ID).Error; err != nil {
			return errors.Wrap(err, "failed to delete user")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}
