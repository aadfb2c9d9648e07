package handler

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"inkwell.app/assistant/internal/http/middleware"
	"inkwell.app/assistant/internal/pubsub"
)

const (
	eventBufferSize   = 8
	keepAliveInterval = 30 * time.Second
)

type EventsHandler struct {
	bus       *pubsub.Bus
	heartbeat time.Duration
}

// NewEventsHandler builds the title-event subscription handler. A
// non-positive heartbeat falls back to the default cadence.
func NewEventsHandler(bus *pubsub.Bus, heartbeat time.Duration) *EventsHandler {
	if heartbeat <= 0 {
		heartbeat = keepAliveInterval
	}
	return &EventsHandler{bus: bus, heartbeat: heartbeat}
}

// titleEventPayload is the client-facing shape of a title notification.
type titleEventPayload struct {
	Type   string `json:"type"`
	ChatID string `json:"chat_id"`
	Title  string `json:"title"`
}

// Subscribe streams title events for the session user until the client
// disconnects. Events for other users are filtered out here: the bus
// broadcasts to every subscriber and performs no authorization itself.
func (h *EventsHandler) Subscribe(c *gin.Context) {
	ctx := c.Request.Context()
	user, _ := middleware.CurrentUser(c)

	events, unsubscribe := h.bus.Subscribe(eventBufferSize)
	defer unsubscribe()

	setSSEHeaders(c)
	sink := newSSESink(c)

	keepAlive := time.NewTicker(h.heartbeat)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			if err := sink.comment("keep-alive"); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.UserID != user.ID {
				continue
			}
			raw, err := json.Marshal(titleEventPayload{
				Type:   "title_updated",
				ChatID: strconv.FormatInt(ev.ConversationID, 10),
				Title:  ev.Title,
			})
			if err != nil {
				slog.ErrorContext(ctx, "failed to encode title event", "error", err)
				continue
			}
			if err := sink.write(string(raw)); err != nil {
				return
			}
		}
	}
}
