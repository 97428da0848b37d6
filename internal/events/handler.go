package events

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/sherlock-center/internal/logger"
)

// SSE header constants.
const (
	headerContentType              = "Content-Type"
	headerCacheControl             = "Cache-Control"
	headerConnection               = "Connection"
	headerXAccelBuffering          = "X-Accel-Buffering"
	headerAccessControlAllowOrigin = "Access-Control-Allow-Origin"

	sseContentType = "text/event-stream"
)

// Handler creates a Gin handler for the SSE stream. The subscriber id
// comes from the :client_id path parameter, so a reconnecting client
// resumes under the same id and its stale subscription is replaced.
func Handler(hub *Hub, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		subscriberID := c.Param("client_id")
		if subscriberID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "client id required"})
			return
		}

		setSSEHeaders(c.Writer)
		c.Writer.Flush()

		eventChan, cleanup := hub.Subscribe(c.Request.Context(), subscriberID)
		defer cleanup()

		if !checkSubscriptionValid(eventChan, c, log) {
			return
		}

		if err := sendConnectionEvent(c.Writer, subscriberID); err != nil {
			log.Error("Failed to write connection event", logger.Error(err))
			return
		}

		log.Debug("SSE client connected",
			logger.String("subscriber_id", subscriberID),
			logger.String("remote_addr", c.ClientIP()),
		)

		streamEvents(c, hub, eventChan, log)
	}
}

func setSSEHeaders(w gin.ResponseWriter) {
	w.Header().Set(headerContentType, sseContentType)
	w.Header().Set(headerCacheControl, "no-cache")
	w.Header().Set(headerConnection, "keep-alive")
	w.Header().Set(headerXAccelBuffering, "no")
	w.Header().Set(headerAccessControlAllowOrigin, "*")
}

// checkSubscriptionValid checks if the subscription was accepted.
func checkSubscriptionValid(eventChan <-chan Event, c *gin.Context, log logger.Logger) bool {
	select {
	case _, ok := <-eventChan:
		if !ok {
			log.Warn("Subscription rejected (max subscribers reached)")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "too many connections"})
			return false
		}
	default:
		// Channel is open, proceed
	}
	return true
}

func sendConnectionEvent(w gin.ResponseWriter, subscriberID string) error {
	connectedEvent := Event{
		Type: eventTypeConnected,
		Data: map[string]any{
			"client_id": subscriberID,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"message":   "SSE connection established",
		},
	}
	return writeEvent(w, connectedEvent)
}

// streamEvents handles the main event streaming loop.
func streamEvents(c *gin.Context, hub *Hub, eventChan <-chan Event, log logger.Logger) {
	ticker := time.NewTicker(hub.HeartbeatInterval())
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-eventChan:
			if !handleEventReceived(c.Writer, event, ok, log) {
				return
			}
		case <-ticker.C:
			if err := writeHeartbeat(c.Writer); err != nil {
				log.Debug("SSE heartbeat failed (client disconnected)")
				return
			}
		case <-c.Request.Context().Done():
			log.Debug("SSE client request context cancelled")
			return
		}
	}
}

func handleEventReceived(w gin.ResponseWriter, event Event, ok bool, log logger.Logger) bool {
	if !ok {
		log.Debug("SSE event channel closed")
		return false
	}

	if err := writeEvent(w, event); err != nil {
		log.Debug("SSE write failed (client likely disconnected)",
			logger.Error(err),
			logger.String("event_type", event.Type),
		)
		return false
	}

	return true
}

func writeEvent(w gin.ResponseWriter, event Event) error {
	if event.Type != "" {
		if _, writeErr := fmt.Fprintf(w, "event: %s\n", event.Type); writeErr != nil {
			return fmt.Errorf("write event type: %w", writeErr)
		}
	}

	if event.ID != "" {
		if _, writeErr := fmt.Fprintf(w, "id: %s\n", event.ID); writeErr != nil {
			return fmt.Errorf("write event id: %w", writeErr)
		}
	}

	if event.Retry > 0 {
		if _, writeErr := fmt.Fprintf(w, "retry: %d\n", event.Retry); writeErr != nil {
			return fmt.Errorf("write retry: %w", writeErr)
		}
	}

	dataJSON, marshalErr := json.Marshal(event.Data)
	if marshalErr != nil {
		return fmt.Errorf("marshal event data: %w", marshalErr)
	}

	if _, writeErr := fmt.Fprintf(w, "data: %s\n\n", dataJSON); writeErr != nil {
		return fmt.Errorf("write event data: %w", writeErr)
	}

	w.Flush()
	return nil
}

func writeHeartbeat(w gin.ResponseWriter) error {
	if _, writeErr := fmt.Fprintf(w, ": heartbeat %s\n\n", time.Now().UTC().Format(time.RFC3339)); writeErr != nil {
		return fmt.Errorf("write heartbeat: %w", writeErr)
	}
	w.Flush()
	return nil
}
