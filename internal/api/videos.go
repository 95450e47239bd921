package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/user/vidtube-go/internal/apperr"
	"github.com/user/vidtube-go/internal/model"
	"github.com/user/vidtube-go/internal/store"
)

func (h *Handler) listCategories(c *gin.Context) {
	categories, err := h.store.ListCategories(c.Request.Context())
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (h *Handler) listVideos(c *gin.Context) {
	limit, cursor, err := pageParams(c, store.DefaultVideoPageSize)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	categoryID, err := optionalUUIDParam(c, "categoryId")
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	page, err := h.store.ListVideos(c.Request.Context(), store.VideoFilter{CategoryID: categoryID}, cursor, limit)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) searchVideos(c *gin.Context) {
	limit, cursor, err := pageParams(c, store.DefaultVideoPageSize)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	categoryID, err := optionalUUIDParam(c, "categoryId")
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	filter := store.VideoFilter{CategoryID: categoryID, Query: c.Query("query")}
	page, err := h.store.ListVideos(c.Request.Context(), filter, cursor, limit)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) listTrendingVideos(c *gin.Context) {
	limit, err := limitParam(c, store.DefaultVideoPageSize)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	cursor, err := store.DecodeTrendingCursor(c.Query("cursor"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	page, err := h.store.ListTrendingVideos(c.Request.Context(), cursor, limit)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) listSubscribedVideos(c *gin.Context) {
	limit, cursor, err := pageParams(c, store.DefaultVideoPageSize)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	page, err := h.store.ListSubscribedVideos(c.Request.Context(), currentUser(c).ID, cursor, limit)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) listSuggestions(c *gin.Context) {
	limit, cursor, err := pageParams(c, store.DefaultVideoPageSize)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	videoID, err := uuidParam(c, "videoId")
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	page, err := h.store.ListSuggestedVideos(c.Request.Context(), videoID, cursor, limit)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) getVideo(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	video, err := h.store.GetVideoDetail(c.Request.Context(), viewerID(c), id)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, video)
}

func (h *Handler) listStudioVideos(c *gin.Context) {
	limit, cursor, err := pageParams(c, store.DefaultVideoPageSize)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	page, err := h.store.ListStudioVideos(c.Request.Context(), currentUser(c).ID, cursor, limit)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) getStudioVideo(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	video, err := h.store.GetOwnedVideo(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, video)
}

// CreateVideoResponse carries the direct-upload URL and the new row
type CreateVideoResponse struct {
	URL   string       `json:"url"`
	Video *model.Video `json:"video"`
}

func (h *Handler) createVideo(c *gin.Context) {
	user := currentUser(c)
	ctx := c.Request.Context()

	upload, err := h.media.CreateUpload(ctx, h.appURL, user.ID.String())
	if err != nil {
		h.abortWithError(c, apperr.Internal(err))
		return
	}

	video := &model.Video{
		Title:       "Untitled",
		UserID:      user.ID,
		MuxStatus:   model.MuxStatusWaiting,
		MuxUploadID: &upload.ID,
	}
	if err := h.store.CreateVideo(ctx, video); err != nil {
		h.abortWithError(c, err)
		return
	}

	log.Info().Str("video_id", video.ID.String()).Str("upload_id", upload.ID).Msg("Created video upload")
	c.JSON(http.StatusOK, CreateVideoResponse{URL: upload.URL, Video: video})
}

// optionalUUID distinguishes an absent field from an explicit null
type optionalUUID struct {
	Set   bool
	Value *uuid.UUID
}

func (o *optionalUUID) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var id uuid.UUID
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	o.Value = &id
	return nil
}

type updateVideoInput struct {
	ID          uuid.UUID         `json:"id" binding:"required"`
	Title       *string           `json:"title"`
	Description *string           `json:"description"`
	CategoryID  optionalUUID      `json:"categoryId"`
	Visibility  *model.Visibility `json:"visibility"`
}

func (h *Handler) updateVideo(c *gin.Context) {
	var in updateVideoInput
	if err := bindJSON(c, &in); err != nil {
		h.abortWithError(c, err)
		return
	}

	update := store.VideoUpdate{
		Title:       in.Title,
		Description: in.Description,
		Visibility:  in.Visibility,
	}
	if in.CategoryID.Set {
		update.CategoryID = in.CategoryID.Value
		update.ClearCategory = in.CategoryID.Value == nil
	}

	video, err := h.store.UpdateVideo(c.Request.Context(), currentUser(c).ID, in.ID, update)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, video)
}

func (h *Handler) removeVideo(c *gin.Context) {
	var in idInput
	if err := bindJSON(c, &in); err != nil {
		h.abortWithError(c, err)
		return
	}

	video, tasks, err := h.store.DeleteVideo(c.Request.Context(), currentUser(c).ID, in.ID)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	h.runCleanup(c.Request.Context(), tasks)
	if h.hub != nil {
		h.hub.PublishDeleted(video)
	}

	c.JSON(http.StatusOK, video)
}

// runCleanup runs the committed cleanup tasks without tying them to the
// request lifetime. Failures stay PENDING for the sweeper.
func (h *Handler) runCleanup(ctx context.Context, tasks []*model.CleanupTask) {
	if h.cleanup == nil || len(tasks) == 0 {
		return
	}
	h.cleanup.Run(context.WithoutCancel(ctx), tasks)
}
