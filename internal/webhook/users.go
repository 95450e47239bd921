package webhook

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/user/vidtube-go/internal/identity"
	"github.com/user/vidtube-go/internal/model"
)

const usersSource = "identity"

// HandleUsers mirrors identity-provider accounts into the users table
func (h *Handler) HandleUsers(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	if err := h.users.Verify(c.Request.Header, body); err != nil {
		reply(c, usersSource, "unverified", http.StatusBadRequest, "Error verifying webhook")
		return
	}

	event, err := identity.ParseUserEvent(body)
	if err != nil {
		reply(c, usersSource, "malformed", http.StatusBadRequest, "Invalid payload")
		return
	}

	ctx := c.Request.Context()
	switch event.Type {
	case identity.EventUserCreated, identity.EventUserUpdated:
		if event.Data.ID == "" {
			reply(c, usersSource, event.Type, http.StatusBadRequest, "Missing user id")
			return
		}
		user := &model.User{
			ExternalID: event.Data.ID,
			Name:       event.Data.DisplayName(),
			ImageURL:   event.Data.ImageURL,
		}
		if err := h.store.UpsertUser(ctx, user); err != nil {
			log.Error().Err(err).Str("external_id", event.Data.ID).Msg("Failed to upsert user")
			reply(c, usersSource, event.Type, http.StatusInternalServerError, "Failed to apply event")
			return
		}

	case identity.EventUserDeleted:
		if event.Data.ID == "" {
			reply(c, usersSource, event.Type, http.StatusBadRequest, "Missing user id")
			return
		}
		tasks, err := h.store.DeleteUserByExternalID(ctx, event.Data.ID)
		if err != nil {
			log.Error().Err(err).Str("external_id", event.Data.ID).Msg("Failed to delete user")
			reply(c, usersSource, event.Type, http.StatusInternalServerError, "Failed to apply event")
			return
		}
		h.runCleanup(ctx, tasks)

	default:
		reply(c, usersSource, "ignored", http.StatusOK, "Webhook received")
		return
	}

	reply(c, usersSource, event.Type, http.StatusOK, "Webhook received")
}
