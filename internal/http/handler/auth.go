package handler

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"inkwell.app/assistant/internal/http/middleware"
	"inkwell.app/assistant/internal/service"
)

const (
	stateCookieName = "assistant_oauth_state"
	sessionMaxAge   = 7 * 24 * 60 * 60
)

type AuthHandler struct {
	authService  service.AuthService
	appURL       string
	isProduction bool
}

func NewAuthHandler(authService service.AuthService, appURL string, isProduction bool) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		appURL:       appURL,
		isProduction: isProduction,
	}
}

func (h *AuthHandler) Login(c *gin.Context) {
	state, err := generateState()
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to generate state", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to initiate login"})
		return
	}

	authURL, err := h.authService.GetAuthorizationURL(state)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to get authorization URL", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to initiate login"})
		return
	}

	c.SetCookie(stateCookieName, state, 600, "/", "", h.isProduction, true)
	c.Redirect(http.StatusTemporaryRedirect, authURL)
}

func (h *AuthHandler) Callback(c *gin.Context) {
	ctx := c.Request.Context()

	code := c.Query("code")
	state := c.Query("state")
	if errParam := c.Query("error"); errParam != "" {
		slog.WarnContext(ctx, "oauth error", "error", errParam, "description", c.Query("error_description"))
		c.Redirect(http.StatusTemporaryRedirect, h.appURL+"?auth_error="+errParam)
		return
	}

	storedState, err := c.Cookie(stateCookieName)
	if err != nil || state != storedState {
		slog.WarnContext(ctx, "state mismatch")
		c.Redirect(http.StatusTemporaryRedirect, h.appURL+"?auth_error=invalid_state")
		return
	}
	h.clearCookie(c, stateCookieName)

	if code == "" {
		c.Redirect(http.StatusTemporaryRedirect, h.appURL+"?auth_error=no_code")
		return
	}

	user, session, err := h.authService.HandleCallback(ctx, code)
	if err != nil {
		slog.ErrorContext(ctx, "failed to handle callback", "error", err)
		if errors.Is(err, service.ErrInvalidCode) {
			c.Redirect(http.StatusTemporaryRedirect, h.appURL+"?auth_error=invalid_code")
			return
		}
		c.Redirect(http.StatusTemporaryRedirect, h.appURL+"?auth_error=callback_failed")
		return
	}

	c.SetCookie(middleware.SessionCookieName, strconv.FormatInt(session.ID, 10), sessionMaxAge, "/", "", h.isProduction, true)

	slog.InfoContext(ctx, "user logged in", "user_id", user.ID, "email", user.Email)
	c.Redirect(http.StatusTemporaryRedirect, h.appURL)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	ctx := c.Request.Context()

	if cookie, err := c.Cookie(middleware.SessionCookieName); err == nil {
		if sessionID, parseErr := strconv.ParseInt(cookie, 10, 64); parseErr == nil {
			if err := h.authService.Logout(ctx, sessionID); err != nil {
				slog.WarnContext(ctx, "failed to delete session", "error", err, "session_id", sessionID)
			}
		}
	}

	h.clearCookie(c, middleware.SessionCookieName)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         strconv.FormatInt(user.ID, 10),
		"name":       user.Name,
		"email":      user.Email,
		"avatar_url": user.AvatarURL,
	})
}

func (h *AuthHandler) clearCookie(c *gin.Context, name string) {
	c.SetCookie(name, "", -1, "/", "", h.isProduction, true)
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
