package server

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const realtimeHeartbeatInterval = 25 * time.Second

type realtimeEventPayload struct {
	Source    string `json:"source"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
}

func (h *httpHandler) handleEvents(c *gin.Context) {
	session := currentSession(c)
	ctx := c.Request.Context()
	stream, cleanup := h.realtime.Subscribe(ctx, session.UserID)
	defer cleanup()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.SSEvent(realtimeEventHeartbeat, realtimeEventPayload{Source: realtimeSourceBackend, Timestamp: h.now().UTC().UnixMilli()})
	c.Writer.Flush()

	heartbeat := time.NewTicker(realtimeHeartbeatInterval)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case message, ok := <-stream:
			if !ok {
				return false
			}
			c.SSEvent(message.EventType, realtimeEventPayload{
				Source:    realtimeSourceBackend,
				Timestamp: message.Timestamp.UnixMilli(),
				Data:      message.Payload,
			})
			return true
		case <-heartbeat.C:
			c.SSEvent(realtimeEventHeartbeat, realtimeEventPayload{Source: realtimeSourceBackend, Timestamp: h.now().UTC().UnixMilli()})
			return true
		}
	})
}
