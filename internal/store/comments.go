package store

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/user/vidtube-go/internal/apperr"
	"github.com/user/vidtube-go/internal/model"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const commentColumns = "comments.*, users.name AS owner_name, users.image_url AS owner_image_url, " +
	"(SELECT COUNT(*) FROM comment_reactions WHERE comment_reactions.comment_id = comments.id AND comment_reactions.type = ?) AS like_count, " +
	"(SELECT COUNT(*) FROM comment_reactions WHERE comment_reactions.comment_id = comments.id AND comment_reactions.type = ?) AS dislike_count, " +
	"(SELECT COUNT(*) FROM comments AS replies WHERE replies.parent_id = comments.id) AS reply_count, " +
	"viewer_reaction.type AS viewer_reaction"

type commentRow struct {
	model.Comment
	OwnerName      string
	OwnerImageURL  string
	LikeCount      int64
	DislikeCount   int64
	ReplyCount     int64
	ViewerReaction *string
}

func (r *commentRow) item() CommentItem {
	item := CommentItem{
		Comment:      r.Comment,
		User:         Owner{ID: r.UserID, Name: r.OwnerName, ImageURL: r.OwnerImageURL},
		LikeCount:    r.LikeCount,
		DislikeCount: r.DislikeCount,
		ReplyCount:   r.ReplyCount,
	}
	if r.ViewerReaction != nil {
		reaction := model.ReactionType(*r.ViewerReaction)
		item.ViewerReaction = &reaction
	}
	return item
}

// ListComments lists the top-level comments of a video, or the replies to a
// comment when filter.ParentID is set. The top-level listing also carries the
// total number of comments on the video, replies included.
func (s *GormStore) ListComments(ctx context.Context, viewerID uuid.UUID, filter CommentFilter, cursor *Cursor, limit int) (*Page[CommentItem], error) {
	if filter.VideoID == nil && filter.ParentID == nil {
		return nil, apperr.BadRequest("videoId or parentId is required")
	}
	limit = clampLimit(limit, DefaultCommentPageSize)

	if err := s.visibleCommentTarget(ctx, viewerID, filter); err != nil {
		return nil, err
	}

	reactionFilter, reactionArgs := viewerFilter(viewerID, "comment_reactions.user_id")
	q := s.db.WithContext(ctx).
		Table("comments").
		Select(commentColumns, string(model.ReactionLike), string(model.ReactionDislike)).
		Joins("JOIN users ON users.id = comments.user_id").
		Joins("LEFT JOIN (SELECT comment_reactions.comment_id, comment_reactions.type FROM comment_reactions WHERE "+
			reactionFilter+") AS viewer_reaction ON viewer_reaction.comment_id = comments.id",
			reactionArgs...)

	if filter.ParentID != nil {
		q = q.Where("comments.parent_id = ?", *filter.ParentID)
		if filter.VideoID != nil {
			q = q.Where("comments.video_id = ?", *filter.VideoID)
		}
	} else {
		q = q.Where("comments.video_id = ? AND comments.parent_id IS NULL", *filter.VideoID)
	}
	q = applyCursor(q, "comments", cursor).Limit(limit + 1)

	var (
		rows  []commentRow
		total *int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := q.WithContext(gctx).Scan(&rows).Error; err != nil {
			return errors.Wrap(err, "failed to list comments")
		}
		return nil
	})
	if filter.ParentID == nil {
		g.Go(func() error {
			var count int64
			err := s.db.WithContext(gctx).Model(&model.Comment{}).
				Where("video_id = ?", *filter.VideoID).
				Count(&count).Error
			if err != nil {
				return errors.Wrap(err, "failed to count comments")
			}
			total = &count
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	items := make([]CommentItem, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].item())
	}
	page := trimPage(items, limit, func(c CommentItem) string {
		return Cursor{ID: c.ID, UpdatedAt: c.UpdatedAt}.Encode()
	})
	page.TotalCount = total
	return page, nil
}

// visibleCommentTarget rejects listings on a video the viewer may not see
func (s *GormStore) visibleCommentTarget(ctx context.Context, viewerID uuid.UUID, filter CommentFilter) error {
	tx := s.db.WithContext(ctx)
	if filter.VideoID != nil {
		if err := visibleVideo(tx, viewerID, *filter.VideoID); err != nil {
			return err
		}
	}
	if filter.ParentID != nil {
		return visibleComment(tx, viewerID, *filter.ParentID)
	}
	return nil
}

// CreateComment adds a comment or a reply. Replies must target a top-level
// comment on the same video, and the video must be visible to the author.
func (s *GormStore) CreateComment(ctx context.Context, comment *model.Comment) error {
	comment.Content = strings.TrimSpace(comment.Content)
	if comment.Content == "" {
		return apperr.BadRequest("content is required")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := visibleVideo(tx, comment.UserID, comment.VideoID); err != nil {
			return err
		}

		if comment.ParentID != nil {
			var parent model.Comment
			if err := tx.Where("id = ?", *comment.ParentID).First(&parent).Error; err != nil {
				if isNotFound(err) {
					return apperr.NotFound("parent comment not found")
				}
				return errors.Wrap(err, "failed to get parent comment")
			}
			if parent.VideoID != comment.VideoID {
				return apperr.BadRequest("parent comment belongs to another video")
			}
			if parent.IsReply() {
				return apperr.BadRequest("cannot reply to a reply")
			}
		}

		if err := tx.Create(comment).Error; err != nil {
			return errors.Wrap(err, "failed to create comment")
		}
		return nil
	})
}

func getOwnedComment(tx *gorm.DB, ownerID, commentID uuid.UUID) (*model.Comment, error) {
	var comment model.Comment
	err := tx.Where("id = ? AND user_id = ?", commentID, ownerID).First(&comment).Error
	if err != nil {
		if isNotFound(err) {
			return nil, ownershipError(tx, "comments", commentID, "comment")
		}
		return nil, errors.Wrap(err, "failed to get comment")
	}
	return &comment, nil
}

// UpdateComment edits the content of a comment owned by ownerID
func (s *GormStore) UpdateComment(ctx context.Context, ownerID, commentID uuid.UUID, content string) (*model.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.BadRequest("content is required")
	}

	var comment *model.Comment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := getOwnedComment(tx, ownerID, commentID)
		if err != nil {
			return err
		}
		if err := tx.Model(existing).Updates(map[string]interface{}{"content": content}).Error; err != nil {
			return errors.Wrap(err, "failed to update comment")
		}
		comment, err = getOwnedComment(tx, ownerID, commentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// DeleteComment deletes a comment owned by ownerID. Replies cascade.
func (s *GormStore) DeleteComment(ctx context.Context, ownerID, commentID uuid.UUID) (*model.Comment, error) {
	var comment *model.Comment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		comment, err = getOwnedComment(tx, ownerID, commentID)
		if err != nil {
			return err
		}
		if err := tx.Delete(&model.Comment{}, "id = ?", commentID).Error; err != nil {
			return errors.Wrap(err, "failed to delete comment")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}
