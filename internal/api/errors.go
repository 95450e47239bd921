package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/user/vidtube-go/internal/apperr"
	"github.com/user/vidtube-go/internal/server"
)

// ErrorBody is the JSON envelope of every RPC error
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the symbolic code and a human-readable message
type ErrorDetail struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
}

// abortWithError maps err to its code, applies the disclosure policy, and
// writes the error envelope.
func (h *Handler) abortWithError(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	message := apperr.MessageOf(err)

	// Without disclosure a caller cannot tell someone else's row from a
	// missing one.
	if code == apperr.CodeForbidden && !h.discloseForbidden {
		code = apperr.CodeNotFound
		message = "not found"
	}

	if code == apperr.CodeInternal {
		log.Error().Err(err).Str("path", c.FullPath()).Str("request_id", c.GetString("requestID")).Msg("Request failed")
	}
	server.RecordError(string(code))

	c.AbortWithStatusJSON(code.HTTPStatus(), ErrorBody{Error: ErrorDetail{Code: code, Message: message}})
}

func setRetryAfter(c *gin.Context, seconds int) {
	if seconds < 1 {
		seconds = 1
	}
	c.Header("Retry-After", strconv.Itoa(seconds))
}
