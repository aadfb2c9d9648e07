package router

import (
	"github.com/gin-gonic/gin"

	"inkwell.app/assistant/internal/http/handler"
)

func ChatRouter(rg *gin.RouterGroup, h *handler.ChatHandler, events *handler.EventsHandler) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/events", events.Subscribe)
	rg.GET("/:chat_id", h.Get)
	rg.PATCH("/:chat_id", h.Rename)
	rg.POST("/:chat_id/rounds", h.Ask)
	rg.POST("/:chat_id/rounds/:round_id/stop", h.Stop)
}
