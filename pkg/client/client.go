// Package client is a typed client for the vidtube RPC surface. Video
// details and first comment pages are cached, and reactions and
// subscriptions are applied to the cache optimistically.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CodeUnauthorized is the error code that triggers OnUnauthorized
const CodeUnauthorized = "UNAUTHORIZED"

// Error is an RPC failure reported by the server
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Config holds the settings of a Client
type Config struct {
	BaseURL string
	// Token returns the session token; an empty token means anonymous
	Token func(ctx context.Context) (string, error)
	// OnUnauthorized runs when the server rejects the session, typically to
	// start sign-in
	OnUnauthorized func()
	HTTPClient     *http.Client
}

// Client calls the RPC surface
type Client struct {
	baseURL        string
	token          func(ctx context.Context) (string, error)
	onUnauthorized func()
	httpClient     *http.Client
	cache          *Cache
}

// New creates a new client
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		token:          cfg.Token,
		onUnauthorized: cfg.OnUnauthorized,
		httpClient:     httpClient,
		cache:          NewCache(),
	}
}

// Cache exposes the client's query cache
func (c *Client) Cache() *Cache {
	return c.cache
}

// Owner is the public projection of a user
type Owner struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	ImageURL string    `json:"imageUrl"`
}

// Creator is a video owner with subscription state
type Creator struct {
	Owner
	SubscriberCount int64 `json:"subscriberCount"`
	IsSubscribed    bool  `json:"isSubscribed"`
}

// Video is a video detail as returned by videos.getOne
type Video struct {
	ID             uuid.UUID  `json:"id"`
	Title          string     `json:"title"`
	Description    *string    `json:"description"`
	ThumbnailURL   *string    `json:"thumbnailUrl"`
	PreviewURL     *string    `json:"previewUrl"`
	Duration       int64      `json:"duration"`
	CategoryID     *uuid.UUID `json:"categoryId"`
	UserID         uuid.UUID  `json:"userId"`
	MuxStatus      string     `json:"muxStatus"`
	MuxPlaybackID  *string    `json:"muxPlaybackId"`
	Visibility     string     `json:"visibility"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	User           Creator    `json:"user"`
	ViewCount      int64      `json:"viewCount"`
	LikeCount      int64      `json:"likeCount"`
	DislikeCount   int64      `json:"dislikeCount"`
	ViewerReaction *Reaction  `json:"viewerReaction"`
}

// Comment is one comment with its counts
type Comment struct {
	ID             uuid.UUID  `json:"id"`
	Content        string     `json:"content"`
	UserID         uuid.UUID  `json:"userId"`
	VideoID        uuid.UUID  `json:"videoId"`
	ParentID       *uuid.UUID `json:"parentId"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	User           Owner      `json:"user"`
	LikeCount      int64      `json:"likeCount"`
	DislikeCount   int64      `json:"dislikeCount"`
	ReplyCount     int64      `json:"replyCount"`
	ViewerReaction *Reaction  `json:"viewerReaction"`
}

// Page is one page of a listing
type Page[T any] struct {
	Items      []T     `json:"items"`
	NextCursor *string `json:"nextCursor"`
	TotalCount *int64  `json:"totalCount,omitempty"`
}

// VideoKey is the cache key of a video detail
func VideoKey(id uuid.UUID) string {
	return "videos.getOne?id=" + id.String()
}

// CommentsKey is the cache key of the first comment page of a video
func CommentsKey(videoID uuid.UUID) string {
	return "comments.getMany?videoId=" + videoID.String()
}

func (c *Client) query(ctx context.Context, op string, params url.Values, out interface{}) error {
	target := c.baseURL + "/api/rpc/" + op
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	return c.do(ctx, req, out)
}

func (c *Client) mutate(ctx context.Context, op string, input, out interface{}) error {
	body, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("failed to encode input: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/rpc/"+op, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(ctx, req, out)
}

func (c *Client) do(ctx context.Context, req *http.Request, out interface{}) error {
	if c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			return fmt.Errorf("failed to get session token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var body struct {
			Error Error `json:"error"`
		}
		if err := json.Unmarshal(data, &body); err != nil || body.Error.Code == "" {
			body.Error = Error{Code: http.StatusText(resp.StatusCode), Message: strings.TrimSpace(string(data))}
		}
		body.Error.Status = resp.StatusCode
		if body.Error.Code == CodeUnauthorized && c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return &body.Error
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// GetVideo returns a video detail, from the cache when fresh
func (c *Client) GetVideo(ctx context.Context, id uuid.UUID) (*Video, error) {
	v, err := c.cache.Fetch(ctx, VideoKey(id), func(ctx context.Context) (interface{}, error) {
		var video Video
		if err := c.query(ctx, "videos.getOne", url.Values{"id": {id.String()}}, &video); err != nil {
			return nil, err
		}
		return &video, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Video), nil
}

// ListComments returns a page of top-level comments. The first page is cached.
func (c *Client) ListComments(ctx context.Context, videoID uuid.UUID, cursor string) (*Page[Comment], error) {
	load := func(ctx context.Context) (interface{}, error) {
		params := url.Values{"videoId": {videoID.String()}}
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		var page Page[Comment]
		if err := c.query(ctx, "comments.getMany", params, &page); err != nil {
			return nil, err
		}
		return &page, nil
	}

	if cursor != "" {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return v.(*Page[Comment]), nil
	}

	v, err := c.cache.Fetch(ctx, CommentsKey(videoID), load)
	if err != nil {
		return nil, err
	}
	return v.(*Page[Comment]), nil
}

// ReactToVideo toggles the viewer's reaction to a video
func (c *Client) ReactToVideo(ctx context.Context, videoID uuid.UUID, pressed Reaction) error {
	patch := func(_ string, old interface{}) interface{} {
		video := *old.(*Video)
		next := ApplyReaction(ReactionState{
			LikeCount:      video.LikeCount,
			DislikeCount:   video.DislikeCount,
			ViewerReaction: video.ViewerReaction,
		}, pressed)
		video.LikeCount = next.LikeCount
		video.DislikeCount = next.DislikeCount
		video.ViewerReaction = next.ViewerReaction
		return &video
	}

	return c.cache.Optimistic(ctx, []string{VideoKey(videoID)}, patch, func(ctx context.Context) error {
		return c.mutate(ctx, "videoReactions."+string(pressed), map[string]uuid.UUID{"videoId": videoID}, nil)
	})
}

// ReactToComment toggles the viewer's reaction to a top-level comment
func (c *Client) ReactToComment(ctx context.Context, videoID, commentID uuid.UUID, pressed Reaction) error {
	patch := func(_ string, old interface{}) interface{} {
		page := *old.(*Page[Comment])
		items := make([]Comment, len(page.Items))
		copy(items, page.Items)
		for i := range items {
			if items[i].ID != commentID {
				continue
			}
			next := ApplyReaction(ReactionState{
				LikeCount:      items[i].LikeCount,
				DislikeCount:   items[i].DislikeCount,
				ViewerReaction: items[i].ViewerReaction,
			}, pressed)
			items[i].LikeCount = next.LikeCount
			items[i].DislikeCount = next.DislikeCount
			items[i].ViewerReaction = next.ViewerReaction
		}
		page.Items = items
		return &page
	}

	return c.cache.Optimistic(ctx, []string{CommentsKey(videoID)}, patch, func(ctx context.Context) error {
		return c.mutate(ctx, "commentReactions."+string(pressed), map[string]uuid.UUID{"commentId": commentID}, nil)
	})
}

// SetSubscribed subscribes to or unsubscribes from the creator of a video
func (c *Client) SetSubscribed(ctx context.Context, videoID, creatorID uuid.UUID, subscribe bool) error {
	patch := func(_ string, old interface{}) interface{} {
		video := *old.(*Video)
		next := ApplySubscription(SubscriptionState{
			SubscriberCount: video.User.SubscriberCount,
			IsSubscribed:    video.User.IsSubscribed,
		}, subscribe)
		video.User.SubscriberCount = next.SubscriberCount
		video.User.IsSubscribed = next.IsSubscribed
		return &video
	}

	op := "subscriptions.unsubscribe"
	if subscribe {
		op = "subscriptions.subscribe"
	}
	return c.cache.Optimistic(ctx, []string{VideoKey(videoID)}, patch, func(ctx context.Context) error {
		return c.mutate(ctx, op, map[string]uuid.UUID{"creatorId": creatorID}, nil)
	})
}

// RecordView records that the viewer watched a video
func (c *Client) RecordView(ctx context.Context, videoID uuid.UUID) error {
	return c.mutate(ctx, "videoViews.create", map[string]uuid.UUID{"videoId": videoID}, nil)
}
