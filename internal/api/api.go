// Package api serves the typed RPC surface. Queries are GET requests with
// their input in the query string; mutations are POST requests with a JSON
// body. Paths follow /api/rpc/<group>.<operation>.
package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/user/vidtube-go/internal/identity"
	"github.com/user/vidtube-go/internal/media"
	"github.com/user/vidtube-go/internal/model"
	"github.com/user/vidtube-go/internal/ratelimit"
	"github.com/user/vidtube-go/internal/realtime"
	"github.com/user/vidtube-go/internal/storage"
	"github.com/user/vidtube-go/internal/store"
)

// TokenVerifier validates session tokens
type TokenVerifier interface {
	Verify(token string) (*identity.Claims, error)
}

// MediaHost creates uploads and serves generated images
type MediaHost interface {
	CreateUpload(ctx context.Context, corsOrigin, passthrough string) (*media.Upload, error)
	FetchImage(ctx context.Context, imageURL string) ([]byte, string, error)
	ThumbnailURL(playbackID string) string
}

// Cleaner runs and enqueues object cleanup
type Cleaner interface {
	Run(ctx context.Context, tasks []*model.CleanupTask)
	Enqueue(ctx context.Context, videoID *uuid.UUID, keys ...string) error
}

// Deps are the collaborators of the RPC handlers. Limiter and Hub may be nil.
type Deps struct {
	Store             store.Store
	Tokens            TokenVerifier
	Media             MediaHost
	Objects           storage.ObjectStore
	Cleanup           Cleaner
	Limiter           ratelimit.Limiter
	Hub               *realtime.Hub
	AppURL            string
	MaxImageBytes     int64
	DiscloseForbidden bool
}

// Handler serves the RPC routes
type Handler struct {
	store             store.Store
	tokens            TokenVerifier
	media             MediaHost
	objects           storage.ObjectStore
	cleanup           Cleaner
	limiter           ratelimit.Limiter
	hub               *realtime.Hub
	appURL            string
	maxImageBytes     int64
	discloseForbidden bool
}

// NewHandler creates a new RPC handler
func NewHandler(d Deps) *Handler {
	return &Handler{
		store:             d.Store,
		tokens:            d.Tokens,
		media:             d.Media,
		objects:           d.Objects,
		cleanup:           d.Cleanup,
		limiter:           d.Limiter,
		hub:               d.Hub,
		appURL:            d.AppURL,
		maxImageBytes:     d.MaxImageBytes,
		discloseForbidden: d.DiscloseForbidden,
	}
}

// Register mounts every RPC route
func (h *Handler) Register(r gin.IRouter) {
	rpc := r.Group("/api/rpc")

	public := rpc.Group("", h.OptionalAuth())
	public.GET("/categories.getMany", h.listCategories)
	public.GET("/videos.getMany", h.listVideos)
	public.GET("/videos.getManyTrending", h.listTrendingVideos)
	public.GET("/videos.getOne", h.getVideo)
	public.GET("/search.getMany", h.searchVideos)
	public.GET("/suggestions.getMany", h.listSuggestions)
	public.GET("/comments.getMany", h.listComments)

	authed := rpc.Group("", h.RequireAuth())
	authed.GET("/videos.getManySubscribed", h.listSubscribedVideos)
	authed.GET("/studio.getMany", h.listStudioVideos)
	authed.GET("/studio.getOne", h.getStudioVideo)

	mutations := rpc.Group("", h.RequireAuth(), h.RateLimit())
	mutations.POST("/videos.create", h.createVideo)
	mutations.POST("/videos.update", h.updateVideo)
	mutations.POST("/videos.remove", h.removeVideo)
	mutations.POST("/videos.restoreThumbnail", h.restoreThumbnail)
	mutations.POST("/videos.uploadThumbnail", h.uploadThumbnail)
	mutations.POST("/comments.create", h.createComment)
	mutations.POST("/comments.update", h.updateComment)
	mutations.POST("/comments.remove", h.removeComment)
	mutations.POST("/videoReactions.like", h.reactToVideo(model.ReactionLike))
	mutations.POST("/videoReactions.dislike", h.reactToVideo(model.ReactionDislike))
	mutations.POST("/commentReactions.like", h.reactToComment(model.ReactionLike))
	mutations.POST("/commentReactions.dislike", h.reactToComment(model.ReactionDislike))
	mutations.POST("/subscriptions.subscribe", h.subscribe)
	mutations.POST("/subscriptions.unsubscribe", h.unsubscribe)
	mutations.POST("/videoViews.create", h.recordView)

	if h.hub != nil {
		r.GET("/ws/studio", h.RequireAuth(), h.studioSocket)
	}
}

func (h *Handler) studioSocket(c *gin.Context) {
	h.hub.Serve(c, currentUser(c).ID)
}
