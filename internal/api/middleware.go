package api

import (
	"math"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/user/vidtube-go/internal/apperr"
	"github.com/user/vidtube-go/internal/identity"
	"github.com/user/vidtube-go/internal/model"
	"github.com/user/vidtube-go/internal/server"
)

const userKey = "user"

// tokenFrom reads the session token from the Authorization header. Browsers
// cannot set headers on WebSocket handshakes, so a token query parameter
// is accepted as well.
func tokenFrom(c *gin.Context) string {
	if token, ok := identity.BearerToken(c.GetHeader("Authorization")); ok {
		return token
	}
	return c.Query("token")
}

// authenticate resolves the caller to a local user. A missing token yields
// (nil, nil); a bad token or an unknown account is UNAUTHORIZED.
func (h *Handler) authenticate(c *gin.Context) (*model.User, error) {
	token := tokenFrom(c)
	if token == "" {
		return nil, nil
	}

	claims, err := h.tokens.Verify(token)
	if err != nil {
		log.Debug().Err(err).Msg("Rejected session token")
		return nil, apperr.Unauthorized("invalid session token")
	}

	user, err := h.store.GetUserByExternalID(c.Request.Context(), claims.Subject)
	if err != nil {
		if apperr.CodeOf(err) == apperr.CodeNotFound {
			return nil, apperr.Unauthorized("unknown user")
		}
		return nil, err
	}
	return user, nil
}

// RequireAuth rejects anonymous callers
func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := h.authenticate(c)
		if err != nil {
			h.abortWithError(c, err)
			return
		}
		if user == nil {
			h.abortWithError(c, apperr.Unauthorized("sign in required"))
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

// OptionalAuth attaches the caller when a valid token is present. A bad
// token is still rejected so clients notice expired sessions.
func (h *Handler) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := h.authenticate(c)
		if err != nil {
			h.abortWithError(c, err)
			return
		}
		if user != nil {
			c.Set(userKey, user)
		}
		c.Next()
	}
}

// RateLimit applies the per-user sliding window to authenticated mutations
func (h *Handler) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.limiter == nil {
			c.Next()
			return
		}

		user := currentUser(c)
		res, err := h.limiter.Allow(c.Request.Context(), user.ID.String())
		if err != nil {
			// limiters are wrapped fail-open; an error here is unexpected
			log.Warn().Err(err).Msg("Rate limiter error, allowing request")
			c.Next()
			return
		}
		if !res.Allowed {
			server.RecordRateLimited()
			setRetryAfter(c, int(math.Ceil(res.RetryAfter.Seconds())))
			h.abortWithError(c, apperr.TooManyRequests("too many requests"))
			return
		}
		c.Next()
	}
}

// currentUser returns the authenticated caller, or nil
func currentUser(c *gin.Context) *model.User {
	if v, ok := c.Get(userKey); ok {
		return v.(*model.User)
	}
	return nil
}

// viewerID is the caller's id, or uuid.Nil for anonymous callers
func viewerID(c *gin.Context) uuid.UUID {
	if user := currentUser(c); user != nil {
		return user.ID
	}
	return uuid.Nil
}
