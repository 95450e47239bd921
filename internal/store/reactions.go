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

// reactionTable describes where reactions to one kind of target live
type reactionTable struct {
	table        string
	targetColumn string
	visible      func(tx *gorm.DB, viewerID, targetID uuid.UUID) error
	newRow       func(userID, targetID uuid.UUID, t model.ReactionType) interface{}
	emptyRow     interface{}
}

var (
	videoReactions = reactionTable{
		table:        "video_reactions",
		targetColumn: "video_id",
		visible:      visibleVideo,
		newRow: func(userID, targetID uuid.UUID, t model.ReactionType) interface{} {
			return &model.VideoReaction{UserID: userID, VideoID: targetID, Type: t}
		},
		emptyRow: &model.VideoReaction{},
	}
	commentReactions = reactionTable{
		table:        "comment_reactions",
		targetColumn: "comment_id",
		visible:      visibleComment,
		newRow: func(userID, targetID uuid.UUID, t model.ReactionType) interface{} {
			return &model.CommentReaction{UserID: userID, CommentID: targetID, Type: t}
		},
		emptyRow: &model.CommentReaction{},
	}
)

// ToggleVideoReaction applies a like or dislike press to a video and returns
// the reaction left in place, nil when the press removed it. Private videos
// of other users are NOT_FOUND.
func (s *GormStore) ToggleVideoReaction(ctx context.Context, userID, videoID uuid.UUID, pressed model.ReactionType) (*model.ReactionType, error) {
	return s.toggleReaction(ctx, videoReactions, userID, videoID, pressed)
}

// ToggleCommentReaction applies a like or dislike press to a comment and
// returns the reaction left in place, nil when the press removed it.
func (s *GormStore) ToggleCommentReaction(ctx context.Context, userID, commentID uuid.UUID, pressed model.ReactionType) (*model.ReactionType, error) {
	return s.toggleReaction(ctx, commentReactions, userID, commentID, pressed)
}

func (s *GormStore) toggleReaction(ctx context.Context, rt reactionTable, userID, targetID uuid.UUID, pressed model.ReactionType) (*model.ReactionType, error) {
	if !pressed.Valid() {
		return nil, apperr.BadRequest("invalid reaction type")
	}

	var next *model.ReactionType
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rt.visible(tx, userID, targetID); err != nil {
			return err
		}

		var stored []string
		err := tx.Table(rt.table).
			Where("user_id = ? AND "+rt.targetColumn+" = ?", userID, targetID).
			Limit(1).
			Pluck("type", &stored).Error
		if err != nil {
			return errors.Wrap(err, "failed to get reaction")
		}
		var current *model.ReactionType
		if len(stored) > 0 {
			c := model.ReactionType(stored[0])
			current = &c
		}

		next = model.NextReaction(current, pressed)
		if next == nil {
			err := tx.Where("user_id = ? AND "+rt.targetColumn+" = ?", userID, targetID).
				Delete(rt.emptyRow).Error
			if err != nil {
				return errors.Wrap(err, "failed to remove reaction")
			}
			return nil
		}

		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: rt.targetColumn}},
			DoUpdates: clause.AssignmentColumns([]string{"type", "updated_at"}),
		}).Create(rt.newRow(userID, targetID, *next)).Error
		if err != nil {
			return errors.Wrap(err, "failed to save reaction")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}
