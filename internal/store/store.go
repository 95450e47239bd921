package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/user/vidtube-go/internal/model"
)

// Store defines the interface for data persistence operations.
//
// viewerID is uuid.Nil for anonymous callers. Ownership-checked mutations
// return an error matching apperr.ErrNotFound when the row does not exist
// and apperr.ErrForbidden when it exists but belongs to someone else.
type Store interface {
	// User operations
	UpsertUser(ctx context.Context, user *model.User) error
	GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error)
	DeleteUserByExternalID(ctx context.Context, externalID string) ([]*model.CleanupTask, error)

	// Category operations
	ListCategories(ctx context.Context) ([]*model.Category, error)
	SeedCategories(ctx context.Context, names []string) (int64, error)

	// Video reads
	ListVideos(ctx context.Context, filter VideoFilter, cursor *Cursor, limit int) (*Page[VideoCard], error)
	ListTrendingVideos(ctx context.Context, cursor *TrendingCursor, limit int) (*Page[VideoCard], error)
	ListSubscribedVideos(ctx context.Context, viewerID uuid.UUID, cursor *Cursor, limit int) (*Page[VideoCard], error)
	ListSuggestedVideos(ctx context.Context, videoID uuid.UUID, cursor *Cursor, limit int) (*Page[VideoCard], error)
	ListStudioVideos(ctx context.Context, ownerID uuid.UUID, cursor *Cursor, limit int) (*Page[VideoCard], error)
	GetVideoDetail(ctx context.Context, viewerID, videoID uuid.UUID) (*VideoDetail, error)
	GetOwnedVideo(ctx context.Context, ownerID, videoID uuid.UUID) (*model.Video, error)

	// Video mutations
	CreateVideo(ctx context.Context, video *model.Video) error
	UpdateVideo(ctx context.Context, ownerID, videoID uuid.UUID, update VideoUpdate) (*model.Video, error)
	DeleteVideo(ctx context.Context, ownerID, videoID uuid.UUID) (*model.Video, []*model.CleanupTask, error)
	SetVideoThumbnail(ctx context.Context, ownerID, videoID uuid.UUID, key, url string) (*model.Video, []*model.CleanupTask, error)

	// Media webhook operations
	UpdateVideoByUploadID(ctx context.Context, uploadID string, fields map[string]interface{}) (*model.Video, error)
	UpdateVideoByAssetID(ctx context.Context, assetID string, fields map[string]interface{}) (*model.Video, error)
	DeleteVideoByUploadID(ctx context.Context, uploadID string) (*model.Video, []*model.CleanupTask, error)

	// Comment operations
	ListComments(ctx context.Context, viewerID uuid.UUID, filter CommentFilter, cursor *Cursor, limit int) (*Page[CommentItem], error)
	CreateComment(ctx context.Context, comment *model.Comment) error
	UpdateComment(ctx context.Context, ownerID, commentID uuid.UUID, content string) (*model.Comment, error)
	DeleteComment(ctx context.Context, ownerID, commentID uuid.UUID) (*model.Comment, error)

	// Reaction operations
	ToggleVideoReaction(ctx context.Context, userID, videoID uuid.UUID, pressed model.ReactionType) (*model.ReactionType, error)
	ToggleCommentReaction(ctx context.Context, userID, commentID uuid.UUID, pressed model.ReactionType) (*model.ReactionType, error)

	// Subscription operations
	Subscribe(ctx context.Context, viewerID, creatorID uuid.UUID) (*model.Subscription, error)
	Unsubscribe(ctx context.Context, viewerID, creatorID uuid.UUID) error

	// View operations
	RecordView(ctx context.Context, userID, videoID uuid.UUID) (*model.VideoView, error)

	// CleanupTask operations
	ListDueCleanupTasks(ctx context.Context, now time.Time, limit int) ([]*model.CleanupTask, error)
	CompleteCleanupTask(ctx context.Context, id uuid.UUID) error
	RescheduleCleanupTask(ctx context.Context, id uuid.UUID, attempts int, status model.CleanupStatus, lastErr string, next time.Time) error
	CreateCleanupTasks(ctx context.Context, tasks []*model.CleanupTask) error

	// Health check
	Ping(ctx context.Context) error
	Close() error
}

// VideoFilter narrows public video listings
type VideoFilter struct {
	CategoryID *uuid.UUID
	Query      string
}

// VideoUpdate holds the editable fields of a video. Nil fields are left as is.
type VideoUpdate struct {
	Title       *string
	Description *string
	CategoryID  *uuid.UUID
	// ClearCategory sets the category to null; it wins over CategoryID.
	ClearCategory bool
	Visibility    *model.Visibility
}

// CommentFilter selects either the top-level comments of a video or the
// replies to one comment.
type CommentFilter struct {
	VideoID  *uuid.UUID
	ParentID *uuid.UUID
}

// Owner is the public projection of a user attached to videos and comments
type Owner struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	ImageURL string    `json:"imageUrl"`
}

// Creator is the owner of a video as seen from its detail page
type Creator struct {
	Owner
	SubscriberCount int64 `json:"subscriberCount"`
	IsSubscribed    bool  `json:"isSubscribed"`
}

// VideoCard is a video row with its aggregate counts, used in listings
type VideoCard struct {
	model.Video
	User         Owner `json:"user"`
	ViewCount    int64 `json:"viewCount"`
	LikeCount    int64 `json:"likeCount"`
	DislikeCount int64 `json:"dislikeCount"`
}

// VideoDetail is a single video with counts and viewer-specific state
type VideoDetail struct {
	model.Video
	User           Creator             `json:"user"`
	ViewCount      int64               `json:"viewCount"`
	LikeCount      int64               `json:"likeCount"`
	DislikeCount   int64               `json:"dislikeCount"`
	ViewerReaction *model.ReactionType `json:"viewerReaction"`
}

// CommentItem is a comment row with its aggregate counts
type CommentItem struct {
	model.Comment
	User           Owner               `json:"user"`
	LikeCount      int64               `json:"likeCount"`
	DislikeCount   int64               `json:"dislikeCount"`
	ReplyCount     int64               `json:"replyCount"`
	ViewerReaction *model.ReactionType `json:"viewerReaction"`
}
