package api

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/user/vidtube-go/internal/apperr"
	"github.com/user/vidtube-go/internal/model"
	"github.com/user/vidtube-go/internal/storage"
)

// multipartOverhead is the allowance for form boundaries and headers
const multipartOverhead = 64 << 10

// restoreThumbnail copies the media host's generated thumbnail into object
// storage and points the video at it
func (h *Handler) restoreThumbnail(c *gin.Context) {
	var in idInput
	if err := bindJSON(c, &in); err != nil {
		h.abortWithError(c, err)
		return
	}
	ctx := c.Request.Context()
	user := currentUser(c)

	video, err := h.store.GetOwnedVideo(ctx, user.ID, in.ID)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	if video.MuxPlaybackID == nil || *video.MuxPlaybackID == "" {
		h.abortWithError(c, apperr.BadRequest("video has no playback id yet"))
		return
	}

	data, contentType, err := h.media.FetchImage(ctx, h.media.ThumbnailURL(*video.MuxPlaybackID))
	if err != nil {
		h.abortWithError(c, apperr.Internal(errors.Wrap(err, "failed to fetch generated thumbnail")))
		return
	}

	updated, err := h.storeThumbnail(ctx, user.ID, video, bytes.NewReader(data), int64(len(data)), contentType)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// uploadThumbnail accepts one multipart image as the video's thumbnail
func (h *Handler) uploadThumbnail(c *gin.Context) {
	ctx := c.Request.Context()
	user := currentUser(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxImageBytes+multipartOverhead)
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.abortWithError(c, apperr.BadRequest("file is too large"))
			return
		}
		h.abortWithError(c, apperr.BadRequest("invalid multipart form"))
		return
	}

	videoID, err := uuid.Parse(strings.TrimSpace(firstValue(form, "videoId")))
	if err != nil {
		h.abortWithError(c, apperr.BadRequest("videoId must be a uuid"))
		return
	}

	file, err := singleFile(form)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	if file.Size > h.maxImageBytes {
		h.abortWithError(c, apperr.BadRequest("file is too large"))
		return
	}

	f, err := file.Open()
	if err != nil {
		h.abortWithError(c, apperr.BadRequest("failed to read file"))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxImageBytes+1))
	if err != nil {
		h.abortWithError(c, apperr.Internal(errors.Wrap(err, "failed to read upload")))
		return
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		h.abortWithError(c, apperr.BadRequest("file must be an image"))
		return
	}

	video, err := h.store.GetOwnedVideo(ctx, user.ID, videoID)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	updated, err := h.storeThumbnail(ctx, user.ID, video, bytes.NewReader(data), int64(len(data)), contentType)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// storeThumbnail uploads the image and swaps it onto the row. The previous
// object is cleaned up after commit; if the row update fails the new object
// is enqueued for cleanup instead.
func (h *Handler) storeThumbnail(ctx context.Context, ownerID uuid.UUID, video *model.Video, body io.Reader, size int64, contentType string) (*model.Video, error) {
	key := storage.ThumbnailKey(video.ID, video.Title, contentType)
	url, err := h.objects.Put(ctx, key, body, size, contentType)
	if err != nil {
		return nil, apperr.Internal(errors.Wrap(err, "failed to store thumbnail"))
	}

	updated, tasks, err := h.store.SetVideoThumbnail(ctx, ownerID, video.ID, key, url)
	if err != nil {
		if h.cleanup != nil {
			if qerr := h.cleanup.Enqueue(context.WithoutCancel(ctx), &video.ID, key); qerr != nil {
				log.Error().Err(qerr).Str("key", key).Msg("Failed to enqueue orphaned thumbnail")
			}
		}
		return nil, err
	}
	h.runCleanup(ctx, tasks)

	log.Info().Str("video_id", video.ID.String()).Str("key", key).Msg("Stored thumbnail")
	return updated, nil
}

func firstValue(form *multipart.Form, name string) string {
	if values := form.Value[name]; len(values) > 0 {
		return values[0]
	}
	return ""
}

// singleFile returns the only file of the form
func singleFile(form *multipart.Form) (*multipart.FileHeader, error) {
	var files []*multipart.FileHeader
	for _, headers := range form.File {
		files = append(files, headers...)
	}
	switch len(files) {
	case 0:
		return nil, apperr.BadRequest("file is required")
	case 1:
		return files[0], nil
	default:
		return nil, apperr.BadRequest("only one file may be uploaded")
	}
}
