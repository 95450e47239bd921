package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/user/vidtube-go/internal/model"
)

// ReactionResponse is the reaction stored after a toggle; nil means none
type ReactionResponse struct {
	Reaction *model.ReactionType `json:"reaction"`
}

type videoTarget struct {
	VideoID uuid.UUID `json:"videoId" binding:"required"`
}

type commentTarget struct {
	CommentID uuid.UUID `json:"commentId" binding:"required"`
}

type creatorTarget struct {
	CreatorID uuid.UUID `json:"creatorId" binding:"required"`
}

func (h *Handler) reactToVideo(pressed model.ReactionType) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in videoTarget
		if err := bindJSON(c, &in); err != nil {
			h.abortWithError(c, err)
			return
		}

		reaction, err := h.store.ToggleVideoReaction(c.Request.Context(), currentUser(c).ID, in.VideoID, pressed)
		if err != nil {
			h.abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, ReactionResponse{Reaction: reaction})
	}
}

func (h *Handler) reactToComment(pressed model.ReactionType) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in commentTarget
		if err := bindJSON(c, &in); err != nil {
			h.abortWithError(c, err)
			return
		}

		reaction, err := h.store.ToggleCommentReaction(c.Request.Context(), currentUser(c).ID, in.CommentID, pressed)
		if err != nil {
			h.abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, ReactionResponse{Reaction: reaction})
	}
}

func (h *Handler) subscribe(c *gin.Context) {
	var in creatorTarget
	if err := bindJSON(c, &in); err != nil {
		h.abortWithError(c, err)
		return
	}

	sub, err := h.store.Subscribe(c.Request.Context(), currentUser(c).ID, in.CreatorID)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (h *Handler) unsubscribe(c *gin.Context) {
	var in creatorTarget
	if err := bindJSON(c, &in); err != nil {
		h.abortWithError(c, err)
		return
	}

	if err := h.store.Unsubscribe(c.Request.Context(), currentUser(c).ID, in.CreatorID); err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"creatorId": in.CreatorID})
}

func (h *Handler) recordView(c *gin.Context) {
	var in videoTarget
	if err := bindJSON(c, &in); err != nil {
		h.abortWithError(c, err)
		return
	}

	view, err := h.store.RecordView(c.Request.Context(), currentUser(c).ID, in.VideoID)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
