package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"inkwell.app/assistant/common/logger"
	"inkwell.app/assistant/internal/model"
	"inkwell.app/assistant/internal/service"
)

const (
	// SessionCookieName carries the session id between requests.
	SessionCookieName = "assistant_session"

	userKey    = "auth.user"
	sessionKey = "auth.session_id"
)

// Recovery turns panics into 500s with a structured log line instead of
// gin's default stderr dump.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				slog.ErrorContext(c.Request.Context(), "panic recovered",
					"panic", r,
					"path", c.Request.URL.Path,
					"method", c.Request.Method)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}

// Logger writes one line per request after it completes.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		slog.InfoContext(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// RequireAuth validates the session cookie and stashes the user on the
// request context. Unauthenticated requests are rejected before any
// handler runs.
func RequireAuth(auth service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Cookie(SessionCookieName)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}

		sessionID, err := strconv.ParseInt(cookie, 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}

		user, err := auth.ValidateSession(c.Request.Context(), sessionID)
		if err != nil {
			if errors.Is(err, service.ErrSessionExpired) || errors.Is(err, service.ErrUserNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
				return
			}
			slog.ErrorContext(c.Request.Context(), "failed to validate session", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to validate session"})
			return
		}

		c.Set(userKey, user)
		c.Set(sessionKey, sessionID)

		ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{UserID: logger.Ptr(user.ID)})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// CurrentUser returns the authenticated user, set by RequireAuth.
func CurrentUser(c *gin.Context) (*model.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*model.User)
	return user, ok
}

// SessionID returns the validated session id, set by RequireAuth.
func SessionID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
