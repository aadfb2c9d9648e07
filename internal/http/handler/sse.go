package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

const terminalMarker = "[DONE]"

func setSSEHeaders(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()
}

// errorFrame is the client-facing shape of an error event.
type errorFrame struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// sseSink writes relay frames to one client connection, flushing after
// every event so fragments arrive as they are parsed.
type sseSink struct {
	w gin.ResponseWriter
}

func newSSESink(c *gin.Context) *sseSink {
	return &sseSink{w: c.Writer}
}

func (s *sseSink) Data(payload string) error {
	return s.write(payload)
}

func (s *sseSink) Done() error {
	return s.write(terminalMarker)
}

func (s *sseSink) Error(code int, message string) error {
	raw, err := json.Marshal(errorFrame{Code: code, Message: message})
	if err != nil {
		return fmt.Errorf("encoding error frame: %w", err)
	}
	return s.write(string(raw))
}

func (s *sseSink) write(payload string) error {
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	s.w.Flush()
	return nil
}

// comment writes an SSE comment line, a no-op for clients. Used as the
// keep-alive heartbeat on long-lived subscriptions.
func (s *sseSink) comment(text string) error {
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return fmt.Errorf("writing comment: %w", err)
	}
	s.w.Flush()
	return nil
}
