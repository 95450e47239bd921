package api

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/user/vidtube-go/internal/apperr"
	"github.com/user/vidtube-go/internal/store"
)

// pageParams reads limit and cursor from the query string
func pageParams(c *gin.Context, defaultLimit int) (int, *store.Cursor, error) {
	limit, err := limitParam(c, defaultLimit)
	if err != nil {
		return 0, nil, err
	}
	cursor, err := store.DecodeCursor(c.Query("cursor"))
	if err != nil {
		return 0, nil, err
	}
	return limit, cursor, nil
}

func limitParam(c *gin.Context, defaultLimit int) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.BadRequest("limit must be an integer")
	}
	return store.NormalizeLimit(&n, defaultLimit)
}

// uuidParam parses a required uuid query parameter
func uuidParam(c *gin.Context, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return uuid.Nil, apperr.BadRequest(name + " is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.BadRequest(name + " must be a uuid")
	}
	return id, nil
}

// optionalUUIDParam parses an optional uuid query parameter
func optionalUUIDParam(c *gin.Context, name string) (*uuid.UUID, error) {
	if strings.TrimSpace(c.Query(name)) == "" {
		return nil, nil
	}
	id, err := uuidParam(c, name)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// bindJSON decodes a mutation body; malformed input is a BAD_REQUEST
func bindJSON(c *gin.Context, v interface{}) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return apperr.Wrap(err, apperr.CodeBadRequest, "invalid input")
	}
	return nil
}

// idInput is the body of mutations addressing one row
type idInput struct {
	ID uuid.UUID `json:"id" binding:"required"`
}
