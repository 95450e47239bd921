package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/user/vidtube-go/internal/apperr"
	"github.com/user/vidtube-go/internal/model"
	"github.com/user/vidtube-go/internal/store"
)

func (h *Handler) listComments(c *gin.Context) {
	limit, cursor, err := pageParams(c, store.DefaultCommentPageSize)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	videoID, err := optionalUUIDParam(c, "videoId")
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	parentID, err := optionalUUIDParam(c, "parentId")
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	if videoID == nil && parentID == nil {
		h.abortWithError(c, apperr.BadRequest("videoId or parentId is required"))
		return
	}

	filter := store.CommentFilter{VideoID: videoID, ParentID: parentID}
	page, err := h.store.ListComments(c.Request.Context(), viewerID(c), filter, cursor, limit)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

type createCommentInput struct {
	VideoID  uuid.UUID  `json:"videoId" binding:"required"`
	ParentID *uuid.UUID `json:"parentId"`
	Content  string     `json:"content"`
}

func (h *Handler) createComment(c *gin.Context) {
	var in createCommentInput
	if err := bindJSON(c, &in); err != nil {
		h.abortWithError(c, err)
		return
	}

	comment := &model.Comment{
		Content:  in.Content,
		UserID:   currentUser(c).ID,
		VideoID:  in.VideoID,
		ParentID: in.ParentID,
	}
	if err := h.store.CreateComment(c.Request.Context(), comment); err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

type updateCommentInput struct {
	ID      uuid.UUID `json:"id" binding:"required"`
	Content string    `json:"content"`
}

func (h *Handler) updateComment(c *gin.Context) {
	var in updateCommentInput
	if err := bindJSON(c, &in); err != nil {
		h.abortWithError(c, err)
		return
	}

	comment, err := h.store.UpdateComment(c.Request.Context(), currentUser(c).ID, in.ID, in.Content)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

func (h *Handler) removeComment(c *gin.Context) {
	var in idInput
	if err := bindJSON(c, &in); err != nil {
		h.abortWithError(c, err)
		return
	}

	comment, err := h.store.DeleteComment(c.Request.Context(), currentUser(c).ID, in.ID)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}
