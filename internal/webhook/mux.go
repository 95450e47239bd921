package webhook

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/user/vidtube-go/internal/apperr"
	"github.com/user/vidtube-go/internal/media"
	"github.com/user/vidtube-go/internal/model"
	"github.com/user/vidtube-go/internal/store"
)

const muxSource = "mux"

// HandleMux applies media-host asset events. Every change sets columns to
// the values carried by the event, so a redelivered event is harmless.
func (h *Handler) HandleMux(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	err := media.VerifySignature(c.GetHeader(media.SignatureHeader), body, h.muxSecret, media.DefaultTolerance, time.Now())
	if err != nil {
		reply(c, muxSource, "unverified", http.StatusBadRequest, "Failed to verify signature!")
		return
	}

	event, err := media.ParseWebhookEvent(body)
	if err != nil {
		reply(c, muxSource, "malformed", http.StatusBadRequest, "Invalid payload")
		return
	}
	data := &event.Data
	status := string(model.ParseMuxStatus(data.Status))

	var video *model.Video
	switch event.Type {
	case media.EventAssetCreated:
		if data.UploadID == "" {
			reply(c, muxSource, event.Type, http.StatusNotFound, "No upload id found!")
			return
		}
		video, err = h.store.UpdateVideoByUploadID(c.Request.Context(), data.UploadID, map[string]interface{}{
			"mux_asset_id": data.ID,
			"mux_status":   status,
		})

	case media.EventAssetReady:
		if data.UploadID == "" {
			reply(c, muxSource, event.Type, http.StatusNotFound, "No upload id found!")
			return
		}
		playbackID := data.FirstPlaybackID()
		if playbackID == "" {
			reply(c, muxSource, event.Type, http.StatusNotFound, "No playback id found!")
			return
		}
		video, err = h.store.UpdateVideoByUploadID(c.Request.Context(), data.UploadID, map[string]interface{}{
			"mux_asset_id":    data.ID,
			"mux_playback_id": playbackID,
			"mux_status":      status,
			"duration":        data.DurationMillis(),
			"preview_url":     h.images.PreviewURL(playbackID),
			"thumbnail_url":   store.DefaultThumbnail(h.images.ThumbnailURL(playbackID)),
		})

	case media.EventAssetErrored:
		if data.UploadID == "" {
			reply(c, muxSource, event.Type, http.StatusNotFound, "No upload id found!")
			return
		}
		video, err = h.store.UpdateVideoByUploadID(c.Request.Context(), data.UploadID, map[string]interface{}{
			"mux_status": status,
		})

	case media.EventAssetDeleted:
		if data.UploadID == "" {
			reply(c, muxSource, event.Type, http.StatusNotFound, "No upload id found!")
			return
		}
		var tasks []*model.CleanupTask
		video, tasks, err = h.store.DeleteVideoByUploadID(c.Request.Context(), data.UploadID)
		if err == nil {
			h.runCleanup(c.Request.Context(), tasks)
			if video != nil && h.publisher != nil {
				h.publisher.PublishDeleted(video)
			}
			reply(c, muxSource, event.Type, http.StatusOK, "Webhook received")
			return
		}

	case media.EventAssetTrackReady:
		if data.AssetID == "" {
			reply(c, muxSource, event.Type, http.StatusNotFound, "No asset id found!")
			return
		}
		video, err = h.store.UpdateVideoByAssetID(c.Request.Context(), data.AssetID, map[string]interface{}{
			"mux_track_id":     data.ID,
			"mux_track_status": status,
		})

	default:
		reply(c, muxSource, "ignored", http.StatusOK, "Webhook received")
		return
	}

	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			// the row may not exist yet or may already be gone
			log.Debug().Str("type", event.Type).Str("upload_id", data.UploadID).Msg("No video matches webhook event")
			reply(c, muxSource, event.Type, http.StatusOK, "Webhook received")
			return
		}
		log.Error().Err(err).Str("type", event.Type).Msg("Failed to apply webhook event")
		reply(c, muxSource, event.Type, http.StatusInternalServerError, "Failed to apply event")
		return
	}

	if video != nil && h.publisher != nil {
		h.publisher.PublishVideo(video)
	}
	reply(c, muxSource, event.Type, http.StatusOK, "Webhook received")
}
