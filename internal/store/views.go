package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/user/vidtube-go/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecordView stores that userID watched videoID. Repeated views keep one row
// and refresh its updated_at.
func (s *GormStore) RecordView(ctx context.Context, userID, videoID uuid.UUID) (*model.VideoView, error) {
	var view model.VideoView
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := visibleVideo(tx, userID, videoID); err != nil {
			return err
		}

		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "video_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"updated_at"}),
		}).Create(&model.VideoView{UserID: userID, VideoID: videoID}).Error
		if err != nil {
			return errors.Wrap(err, "failed to record view")
		}

		return tx.Where("user_id = ? AND video_id = ?", userID, videoID).First(&view).Error
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}
