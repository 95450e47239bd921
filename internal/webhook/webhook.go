// Package webhook receives signed callbacks from the media host and the
// identity provider and applies them to the database.
package webhook

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/user/vidtube-go/internal/identity"
	"github.com/user/vidtube-go/internal/model"
	"github.com/user/vidtube-go/internal/server"
	"github.com/user/vidtube-go/internal/store"
)

// maxBodyBytes bounds a webhook payload
const maxBodyBytes = 1 << 20

// ImageURLs derives the media host's generated images for a playback id
type ImageURLs interface {
	ThumbnailURL(playbackID string) string
	PreviewURL(playbackID string) string
}

// TaskRunner attempts freshly committed cleanup tasks
type TaskRunner interface {
	Run(ctx context.Context, tasks []*model.CleanupTask)
}

// Publisher notifies a video's owner of status changes
type Publisher interface {
	PublishVideo(v *model.Video)
	PublishDeleted(v *model.Video)
}

// Handler serves both webhook endpoints
type Handler struct {
	store     store.Store
	images    ImageURLs
	cleanup   TaskRunner
	publisher Publisher
	muxSecret string
	users     *identity.WebhookVerifier
}

// NewHandler creates a new webhook handler
func NewHandler(
	store store.Store,
	images ImageURLs,
	cleanup TaskRunner,
	publisher Publisher,
	muxSecret string,
	users *identity.WebhookVerifier,
) *Handler {
	return &Handler{
		store:     store,
		images:    images,
		cleanup:   cleanup,
		publisher: publisher,
		muxSecret: muxSecret,
		users:     users,
	}
}

// Register mounts the webhook routes
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/api/videos/webhook", h.HandleMux)
	r.POST("/api/users/webhook", h.HandleUsers)
}

func readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		c.String(http.StatusBadRequest, "Failed to read body")
		return nil, false
	}
	return body, true
}

// reply writes a literal status and short text body and records the outcome
func reply(c *gin.Context, source, eventType string, status int, msg string) {
	outcome := "applied"
	switch {
	case status >= 500:
		outcome = "error"
	case status >= 400:
		outcome = "rejected"
	}
	server.RecordWebhook(source, eventType, outcome)
	if status >= 400 {
		log.Warn().Str("source", source).Str("type", eventType).Int("status", status).Msg(msg)
	}
	c.String(status, msg)
}

func (h *Handler) runCleanup(ctx context.Context, tasks []*model.CleanupTask) {
	if len(tasks) > 0 && h.cleanup != nil {
		h.cleanup.Run(context.WithoutCancel(ctx), tasks)
	}
}
