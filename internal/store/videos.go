package store

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/user/vidtube-go/internal/apperr"
	"github.com/user/vidtube-go/internal/model"
	"gorm.io/gorm"
)

const (
	videoCardColumns = "videos.*, users.name AS owner_name, users.image_url AS owner_image_url, " +
		"(SELECT COUNT(*) FROM video_views WHERE video_views.video_id = videos.id) AS view_count, " +
		"(SELECT COUNT(*) FROM video_reactions WHERE video_reactions.video_id = videos.id AND video_reactions.type = ?) AS like_count, " +
		"(SELECT COUNT(*) FROM video_reactions WHERE video_reactions.video_id = videos.id AND video_reactions.type = ?) AS dislike_count"

	videoDetailColumns = videoCardColumns + ", " +
		"viewer_reaction.type AS viewer_reaction, " +
		"(SELECT COUNT(*) FROM subscriptions WHERE subscriptions.creator_id = videos.user_id) AS subscriber_count, " +
		"CASE WHEN viewer_subscription.creator_id IS NULL THEN 0 ELSE 1 END AS is_subscribed"
)

type videoRow struct {
	model.Video
	OwnerName       string
	OwnerImageURL   string
	ViewCount       int64
	LikeCount       int64
	DislikeCount    int64
	ViewerReaction  *string
	SubscriberCount int64
	IsSubscribed    bool
}

func (r *videoRow) owner() Owner {
	return Owner{ID: r.UserID, Name: r.OwnerName, ImageURL: r.OwnerImageURL}
}

func (r *videoRow) card() VideoCard {
	return VideoCard{
		Video:        r.Video,
		User:         r.owner(),
		ViewCount:    r.ViewCount,
		LikeCount:    r.LikeCount,
		DislikeCount: r.DislikeCount,
	}
}

func (r *videoRow) detail() *VideoDetail {
	d := &VideoDetail{
		Video: r.Video,
		User: Creator{
			Owner:           r.owner(),
			SubscriberCount: r.SubscriberCount,
			IsSubscribed:    r.IsSubscribed,
		},
		ViewCount:    r.ViewCount,
		LikeCount:    r.LikeCount,
		DislikeCount: r.DislikeCount,
	}
	if r.ViewerReaction != nil {
		reaction := model.ReactionType(*r.ViewerReaction)
		d.ViewerReaction = &reaction
	}
	return d
}

func cardCursor(c VideoCard) string {
	return Cursor{ID: c.ID, UpdatedAt: c.UpdatedAt}.Encode()
}

// viewerFilter returns the predicate that scopes a viewer-specific derived
// table. For anonymous callers it is constant false so the LEFT JOIN
// matches nothing and the query shape stays the same.
func viewerFilter(viewerID uuid.UUID, column string) (string, []interface{}) {
	if viewerID == uuid.Nil {
		return "1 = 0", nil
	}
	return column + " = ?", []interface{}{viewerID}
}

func (s *GormStore) videoCards(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("videos").
		Select(videoCardColumns, string(model.ReactionLike), string(model.ReactionDislike)).
		Joins("JOIN users ON users.id = videos.user_id")
}

func (s *GormStore) scanCards(q *gorm.DB, limit int, what string) (*Page[VideoCard], error) {
	var rows []videoRow
	if err := q.Limit(limit + 1).Scan(&rows).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to list %s", what)
	}
	cards := make([]VideoCard, 0, len(rows))
	for i := range rows {
		cards = append(cards, rows[i].card())
	}
	return trimPage(cards, limit, cardCursor), nil
}

// ListVideos lists public videos, optionally by category and search query
func (s *GormStore) ListVideos(ctx context.Context, filter VideoFilter, cursor *Cursor, limit int) (*Page[VideoCard], error) {
	limit = clampLimit(limit, DefaultVideoPageSize)

	q := s.videoCards(ctx).Where("videos.visibility = ?", string(model.VisibilityPublic))
	if filter.CategoryID != nil {
		q = q.Where("videos.category_id = ?", *filter.CategoryID)
	}
	if query := strings.TrimSpace(filter.Query); query != "" {
		pattern := containsPattern(strings.ToLower(query))
		q = q.Where("(LOWER(videos.title) LIKE ? ESCAPE '!' OR LOWER(COALESCE(videos.description, '')) LIKE ? ESCAPE '!')", pattern, pattern)
	}
	q = applyCursor(q, "videos", cursor)

	return s.scanCards(q, limit, "videos")
}

// likeEscaper escapes LIKE wildcards with '!', which needs no quoting in
// any of the supported dialects.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// containsPattern matches query as a literal substring
func containsPattern(query string) string {
	return "%" + likeEscaper.Replace(query) + "%"
}

// ListTrendingVideos lists public videos ordered by view count
func (s *GormStore) ListTrendingVideos(ctx context.Context, cursor *TrendingCursor, limit int) (*Page[VideoCard], error) {
	limit = clampLimit(limit, DefaultVideoPageSize)

	inner := s.videoCards(ctx).Where("videos.visibility = ?", string(model.VisibilityPublic))
	q := s.db.WithContext(ctx).Table("(?) AS trending", inner)
	if cursor != nil {
		q = q.Where("(trending.view_count < ? OR (trending.view_count = ? AND trending.id < ?))",
			cursor.ViewCount, cursor.ViewCount, cursor.ID)
	}
	q = q.Order("trending.view_count DESC").Order("trending.id DESC")

	var rows []videoRow
	if err := q.Limit(limit + 1).Scan(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list trending videos")
	}
	cards := make([]VideoCard, 0, len(rows))
	for i := range rows {
		cards = append(cards, rows[i].card())
	}
	return trimPage(cards, limit, func(c VideoCard) string {
		return TrendingCursor{ID: c.ID, ViewCount: c.ViewCount}.Encode()
	}), nil
}

// ListSubscribedVideos lists public videos of creators viewerID subscribes to
func (s *GormStore) ListSubscribedVideos(ctx context.Context, viewerID uuid.UUID, cursor *Cursor, limit int) (*Page[VideoCard], error) {
	limit = clampLimit(limit, DefaultVideoPageSize)

	q := s.videoCards(ctx).
		Where("videos.visibility = ?", string(model.VisibilityPublic)).
		Where("videos.user_id IN (SELECT subscriptions.creator_id FROM subscriptions WHERE subscriptions.viewer_id = ?)", viewerID)
	q = applyCursor(q, "videos", cursor)

	return s.scanCards(q, limit, "subscribed videos")
}

// ListSuggestedVideos lists public videos related to videoID, excluding it
func (s *GormStore) ListSuggestedVideos(ctx context.Context, videoID uuid.UUID, cursor *Cursor, limit int) (*Page[VideoCard], error) {
	limit = clampLimit(limit, DefaultVideoPageSize)

	var source model.Video
	err := s.db.WithContext(ctx).Select("id", "category_id").Where("id = ?", videoID).First(&source).Error
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("video not found")
		}
		return nil, errors.Wrap(err, "failed to get video")
	}

	q := s.videoCards(ctx).
		Where("videos.visibility = ?", string(model.VisibilityPublic)).
		Where("videos.id <> ?", videoID)
	if source.CategoryID != nil {
		q = q.Where("videos.category_id = ?", *source.CategoryID)
	}
	q = applyCursor(q, "videos", cursor)

	return s.scanCards(q, limit, "suggested videos")
}

// ListStudioVideos lists every video owned by ownerID regardless of visibility
func (s *GormStore) ListStudioVideos(ctx context.Context, ownerID uuid.UUID, cursor *Cursor, limit int) (*Page[VideoCard], error) {
	limit = clampLimit(limit, DefaultVideoPageSize)

	q := s.videoCards(ctx).Where("videos.user_id = ?", ownerID)
	q = applyCursor(q, "videos", cursor)

	return s.scanCards(q, limit, "studio videos")
}

// GetVideoDetail returns one video with counts, the creator's subscriber
// count, and the viewer's reaction and subscription. Private videos are
// only visible to their owner.
func (s *GormStore) GetVideoDetail(ctx context.Context, viewerID, videoID uuid.UUID) (*VideoDetail, error) {
	reactionFilter, reactionArgs := viewerFilter(viewerID, "video_reactions.user_id")
	subscriptionFilter, subscriptionArgs := viewerFilter(viewerID, "subscriptions.viewer_id")

	var rows []videoRow
	err := s.db.WithContext(ctx).
		Table("videos").
		Select(videoDetailColumns, string(model.ReactionLike), string(model.ReactionDislike)).
		Joins("JOIN users ON users.id = videos.user_id").
		Joins("LEFT JOIN (SELECT video_reactions.video_id, video_reactions.type FROM video_reactions WHERE video_reactions.video_id = ? AND "+
			reactionFilter+") AS viewer_reaction ON viewer_reaction.video_id = videos.id",
			append([]interface{}{videoID}, reactionArgs...)...).
		Joins("LEFT JOIN (SELECT subscriptions.creator_id FROM subscriptions WHERE "+
			subscriptionFilter+") AS viewer_subscription ON viewer_subscription.creator_id = videos.user_id",
			subscriptionArgs...).
		Where("videos.id = ?", videoID).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get video")
	}
	if len(rows) == 0 {
		return nil, apperr.NotFound("video not found")
	}
	row := &rows[0]
	if row.Visibility != model.VisibilityPublic && row.UserID != viewerID {
		return nil, apperr.NotFound("video not found")
	}
	return row.detail(), nil
}

// GetOwnedVideo returns a video owned by ownerID
func (s *GormStore) GetOwnedVideo(ctx context.Context, ownerID, videoID uuid.UUID) (*model.Video, error) {
	return getOwnedVideo(s.db.WithContext(ctx), ownerID, videoID)
}

// visibleVideo fails with NOT_FOUND unless videoID exists and viewerID may
// see it: public videos, or any video the viewer owns.
func visibleVideo(tx *gorm.DB, viewerID, videoID uuid.UUID) error {
	var count int64
	err := tx.Table("videos").
		Where("id = ? AND (visibility = ? OR user_id = ?)", videoID, string(model.VisibilityPublic), viewerID).
		Count(&count).Error
	if err != nil {
		return errors.Wrap(err, "failed to check video")
	}
	if count == 0 {
		return apperr.NotFound("video not found")
	}
	return nil
}

// visibleComment applies visibleVideo to the video a comment belongs to
func visibleComment(tx *gorm.DB, viewerID, commentID uuid.UUID) error {
	var count int64
	err := tx.Table("comments").
		Joins("JOIN videos ON videos.id = comments.video_id").
		Where("comments.id = ? AND (videos.visibility = ? OR videos.user_id = ?)", commentID, string(model.VisibilityPublic), viewerID).
		Count(&count).Error
	if err != nil {
		return errors.Wrap(err, "failed to check comment")
	}
	if count == 0 {
		return apperr.NotFound("comment not found")
	}
	return nil
}

func getOwnedVideo(tx *gorm.DB, ownerID, videoID uuid.UUID) (*model.Video, error) {
	var video model.Video
	err := tx.Where("id = ? AND user_id = ?", videoID, ownerID).First(&video).Error
	if err != nil {
		if isNotFound(err) {
			return nil, ownershipError(tx, "videos", videoID, "video")
		}
		return nil, errors.Wrap(err, "failed to get video")
	}
	return &video, nil
}

// CreateVideo inserts a new video
func (s *GormStore) CreateVideo(ctx context.Context, video *model.Video) error {
	if video.MuxStatus == "" {
		video.MuxStatus = model.MuxStatusWaiting
	}
	if video.Visibility == "" {
		video.Visibility = model.VisibilityPublic
	}
	if err := s.db.WithContext(ctx).Create(video).Error; err != nil {
		return errors.Wrap(err, "failed to create video")
	}
	return nil
}

// UpdateVideo edits the metadata of a video owned by ownerID
func (s *GormStore) UpdateVideo(ctx context.Context, ownerID, videoID uuid.UUID, update VideoUpdate) (*model.Video, error) {
	fields := map[string]interface{}{}
	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return nil, apperr.BadRequest("title is required")
		}
		fields["title"] = title
	}
	if update.Description != nil {
		fields["description"] = *update.Description
	}
	if update.ClearCategory {
		fields["category_id"] = nil
	} else if update.CategoryID != nil {
		fields["category_id"] = *update.CategoryID
	}
	if update.Visibility != nil {
		if !update.Visibility.Valid() {
			return nil, apperr.BadRequest("invalid visibility")
		}
		fields["visibility"] = string(*update.Visibility)
	}

	var video *model.Video
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if update.CategoryID != nil && !update.ClearCategory {
			ok, err := exists(tx, "categories", *update.CategoryID)
			if err != nil {
				return errors.Wrap(err, "failed to check category")
			}
			if !ok {
				return apperr.BadRequest("category does not exist")
			}
		}

		existing, err := getOwnedVideo(tx, ownerID, videoID)
		if err != nil {
			return err
		}
		if len(fields) > 0 {
			if err := tx.Model(existing).Updates(fields).Error; err != nil {
				return errors.Wrap(err, "failed to update video")
			}
		}
		video, err = getOwnedVideo(tx, ownerID, videoID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return video, nil
}

// DeleteVideo deletes a video owned by ownerID. Cleanup tasks for its
// stored objects are written in the same transaction and returned.
func (s *GormStore) DeleteVideo(ctx context.Context, ownerID, videoID uuid.UUID) (*model.Video, []*model.CleanupTask, error) {
	var (
		video *model.Video
		tasks []*model.CleanupTask
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		video, err = getOwnedVideo(tx, ownerID, videoID)
		if err != nil {
			return err
		}
		tasks, err = deleteVideoTx(tx, video)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return video, tasks, nil
}

func deleteVideoTx(tx *gorm.DB, video *model.Video) ([]*model.CleanupTask, error) {
	tasks := model.NewDeleteObjectTasks(&video.ID, video.StoredObjectKeys(), nowUTC())
	if len(tasks) > 0 {
		if err := tx.Create(&tasks).Error; err != nil {
			return nil, errors.Wrap(err, "failed to enqueue cleanup tasks")
		}
	}
	if err := tx.Delete(&model.Video{}, "id = ?", video.ID).Error; err != nil {
		return nil, errors.Wrap(err, "failed to delete video")
	}
	return tasks, nil
}

// SetVideoThumbnail points a video owned by ownerID at a newly stored
// thumbnail. The previous thumbnail object, if any, is enqueued for cleanup.
func (s *GormStore) SetVideoThumbnail(ctx context.Context, ownerID, videoID uuid.UUID, key, url string) (*model.Video, []*model.CleanupTask, error) {
	var (
		video *model.Video
		tasks []*model.CleanupTask
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := getOwnedVideo(tx, ownerID, videoID)
		if err != nil {
			return err
		}
		if existing.ThumbnailKey != nil && *existing.ThumbnailKey != "" && *existing.ThumbnailKey != key {
			tasks = model.NewDeleteObjectTasks(&existing.ID, []string{*existing.ThumbnailKey}, nowUTC())
			if err := tx.Create(&tasks).Error; err != nil {
				return errors.Wrap(err, "failed to enqueue cleanup tasks")
			}
		}
		err = tx.Model(existing).Updates(map[string]interface{}{
			"thumbnail_key": key,
			"thumbnail_url": url,
		}).Error
		if err != nil {
			return errors.Wrap(err, "failed to update thumbnail")
		}
		video, err = getOwnedVideo(tx, ownerID, videoID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return video, tasks, nil
}

// UpdateVideoByUploadID applies webhook fields to the video created for a
// media-host upload.
func (s *GormStore) UpdateVideoByUploadID(ctx context.Context, uploadID string, fields map[string]interface{}) (*model.Video, error) {
	return s.updateVideoBy(ctx, "mux_upload_id", uploadID, fields)
}

// UpdateVideoByAssetID applies webhook fields to the video holding a
// media-host asset.
func (s *GormStore) UpdateVideoByAssetID(ctx context.Context, assetID string, fields map[string]interface{}) (*model.Video, error) {
	return s.updateVideoBy(ctx, "mux_asset_id", assetID, fields)
}

// DefaultThumbnail is an update value that sets thumbnail_url to url unless
// the owner has uploaded a thumbnail of their own.
func DefaultThumbnail(url string) interface{} {
	return gorm.Expr("CASE WHEN thumbnail_key IS NULL THEN ? ELSE thumbnail_url END", url)
}

func (s *GormStore) updateVideoBy(ctx context.Context, column, value string, fields map[string]interface{}) (*model.Video, error) {
	var video model.Video
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(column+" = ?", value).First(&video).Error; err != nil {
			if isNotFound(err) {
				return apperr.NotFound("video not found")
			}
			return errors.Wrap(err, "failed to find video")
		}
		if len(fields) == 0 {
			return nil
		}
		if err := tx.Model(&video).Updates(fields).Error; err != nil {
			return errors.Wrap(err, "failed to update video")
		}
		return tx.Where("id = ?", video.ID).First(&video).Error
	})
	if err != nil {
		return nil, err
	}
	return &video, nil
}

// DeleteVideoByUploadID removes the video for a deleted media-host asset.
// A missing row is not an error so replays are harmless; the returned video
// is nil in that case.
func (s *GormStore) DeleteVideoByUploadID(ctx context.Context, uploadID string) (*model.Video, []*model.CleanupTask, error) {
	var (
		video *model.Video
		tasks []*model.CleanupTask
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Video
		if err := tx.Where("mux_upload_id = ?", uploadID).First(&existing).Error; err != nil {
			if isNotFound(err) {
				return nil
			}
			return errors.Wrap(err, "failed to find video")
		}
		var err error
		tasks, err = deleteVideoTx(tx, &existing)
		video = &existing
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return video, tasks, nil
}
