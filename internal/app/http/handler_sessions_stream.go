package http

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
)

// SessionsStream pushes the session list whenever it changes, and at least
// every 15 seconds as a keep-alive.
func (h *Handler) SessionsStream(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.Flush()

	ctx := c.Request.Context()
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	lastPayload := ""
	lastSent := time.Time{}

	send := func() {
		items := h.sessUC.Execute()

		sessions := make([]StatusResponse, 0, len(items))
		for _, item := range items {
			sessions = append(sessions, toStatusResponse(item))
		}

		payload := SessionsStreamResponse{
			Status:   "ok",
			Sessions: sessions,
		}

		data, err := json.Marshal(payload)
		if err != nil {
			return
		}

		shouldSend := lastPayload == "" || string(data) != lastPayload
		if !shouldSend && time.Since(lastSent) > 15*time.Second {
			shouldSend = true
		}

		if shouldSend {
			c.SSEvent("sessions", payload)
			c.Writer.Flush()
			lastPayload = string(data)
			lastSent = time.Now()
		}
	}

	send()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			send()
		}
	}
}
