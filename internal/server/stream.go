package server

import (
	"io"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/civic/backend/internal/events"
	"github.com/gin-gonic/gin"
)

const (
	streamEventHeartbeat = "heartbeat"
	streamSource         = "civic-backend"
)

type streamEventPayload struct {
	Type       string    `json:"type"`
	ProposalID string    `json:"proposalId,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Source     string    `json:"source"`
}

// handleEventStream relays proposal changes as server-sent events until the
// client disconnects.
func (h *httpHandler) handleEventStream(c *gin.Context) {
	if h.subscriber == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stream_unavailable"})
		return
	}

	ctx := c.Request.Context()
	stream, cleanup := h.subscriber.Subscribe(ctx)
	defer cleanup()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent(streamEventHeartbeat, h.heartbeatPayload())
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case event, ok := <-stream:
			if !ok {
				return false
			}
			c.SSEvent(string(event.Type), streamEventPayload{
				Type:       string(event.Type),
				ProposalID: event.ProposalID,
				Timestamp:  event.Timestamp,
				Source:     streamSource,
			})
			return true
		case <-ticker.C:
			c.SSEvent(streamEventHeartbeat, h.heartbeatPayload())
			return true
		}
	})
}

func (h *httpHandler) heartbeatPayload() streamEventPayload {
	return streamEventPayload{
		Type:      streamEventHeartbeat,
		Timestamp: h.now().UTC(),
		Source:    streamSource,
	}
}

var _ EventSubscriber = (*events.Dispatcher)(nil)
