package router

import (
	"github.com/gin-gonic/gin"

	"inkwell.app/assistant/internal/http/handler"
	"inkwell.app/assistant/internal/http/middleware"
	"inkwell.app/assistant/internal/pubsub"
	"inkwell.app/assistant/internal/service"
)

type RouterConfig struct {
	AppURL       string
	IsProduction bool
}

func SetupRoutes(router *gin.Engine, services *service.Services, bus *pubsub.Bus, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	authService := services.Auth()
	authHandler := handler.NewAuthHandler(authService, cfg.AppURL, cfg.IsProduction)
	AuthRouter(router.Group("/auth"), authHandler, authService)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.RequireAuth(authService))
	{
		chatHandler := handler.NewChatHandler(services.Chats())
		eventsHandler := handler.NewEventsHandler(bus, 0)
		ChatRouter(v1.Group("/chats"), chatHandler, eventsHandler)
	}
}
