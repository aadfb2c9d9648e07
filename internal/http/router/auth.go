package router

import (
	"github.com/gin-gonic/gin"

	"inkwell.app/assistant/internal/http/handler"
	"inkwell.app/assistant/internal/http/middleware"
	"inkwell.app/assistant/internal/service"
)

func AuthRouter(rg *gin.RouterGroup, h *handler.AuthHandler, auth service.AuthService) {
	rg.GET("/login", h.Login)
	rg.GET("/callback", h.Callback)
	rg.POST("/logout", h.Logout)
	rg.GET("/me", middleware.RequireAuth(auth), h.Me)
}
