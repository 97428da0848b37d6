// Package events provides Server-Sent Events infrastructure for live
// scan updates.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event represents a Server-Sent Event.
// Format: event: <Type>\ndata: <JSON payload>\n\n
type Event struct {
	// Type is the event type (e.g., "scan_progress")
	Type string `json:"type"`
	// Data is the JSON payload (must be JSON-serializable)
	Data any `json:"data"`
	// ID is an optional event ID for client-side tracking
	ID string `json:"id,omitempty"`
	// Retry tells the client how long to wait before reconnecting (milliseconds)
	Retry int `json:"retry,omitempty"`
}

// Publisher sends events to the hub.
type Publisher interface {
	// Publish sends an event to all connected subscribers.
	// Returns error if the hub is not running or the publish buffer is full.
	Publish(ctx context.Context, event Event) error
}

// Subscriber receives events from the hub.
type Subscriber interface {
	// Subscribe returns a channel that receives events. The channel is
	// closed when the subscription ends. Subscribing again with the same
	// id replaces the previous subscription.
	Subscribe(ctx context.Context, subscriberID string, opts ...SubscribeOption) (<-chan Event, func())
}

// Broadcaster manages subscriber connections and event distribution.
type Broadcaster interface {
	Publisher
	Subscriber
	// Start begins processing events (non-blocking).
	Start(ctx context.Context) error
	// Stop gracefully shuts down the hub.
	Stop() error
	// SubscriberCount returns the number of connected subscribers.
	SubscriberCount() int
}

// Event types for scan lifecycle events.
const (
	EventTypeScanProgress  = "scan_progress"
	EventTypeScanCompleted = "scan_completed"
	EventTypeScanFailed    = "scan_failed"
)

// Internal event types.
const (
	eventTypeConnected = "connected"
)

// ScanProgressData is the payload for scan_progress events.
type ScanProgressData struct {
	ScanID      string  `json:"scan_id"`
	Progress    float64 `json:"progress"`
	CurrentSite string  `json:"current_site"`
	Status      string  `json:"status"`
}

// ScanCompletedData is the payload for scan_completed events.
type ScanCompletedData struct {
	ScanID        string  `json:"scan_id"`
	SecurityScore float64 `json:"security_score"`
	FindingsCount int     `json:"findings_count"`
}

// ScanFailedData is the payload for scan_failed events.
type ScanFailedData struct {
	ScanID string `json:"scan_id"`
	Error  string `json:"error"`
}

// NewScanProgressEvent creates a scan_progress event.
func NewScanProgressEvent(scanID uuid.UUID, progress float64, currentSite, status string) Event {
	return Event{
		Type: EventTypeScanProgress,
		Data: ScanProgressData{
			ScanID:      scanID.String(),
			Progress:    progress,
			CurrentSite: currentSite,
			Status:      status,
		},
	}
}

// NewScanCompletedEvent creates a scan_completed event.
func NewScanCompletedEvent(scanID uuid.UUID, securityScore float64, findingsCount int) Event {
	return Event{
		Type: EventTypeScanCompleted,
		Data: ScanCompletedData{
			ScanID:        scanID.String(),
			SecurityScore: securityScore,
			FindingsCount: findingsCount,
		},
	}
}

// NewScanFailedEvent creates a scan_failed event.
func NewScanFailedEvent(scanID uuid.UUID, errMessage string) Event {
	return Event{
		Type: EventTypeScanFailed,
		Data: ScanFailedData{
			ScanID: scanID.String(),
			Error:  errMessage,
		},
	}
}

// Default configuration values.
const (
	DefaultEventBufferSize   = 1000
	DefaultClientBufferSize  = 100
	DefaultHeartbeatInterval = 15 * time.Second
	DefaultShutdownTimeout   = 5 * time.Second
	DefaultMaxSubscribers    = 1000
)

// SubscribeOptions configures a single subscription.
type SubscribeOptions struct {
	// BufferSize is the event buffer size (default: hub's client buffer size)
	BufferSize int
}

// SubscribeOption configures a subscription.
type SubscribeOption func(*SubscribeOptions)

// WithBufferSize sets the subscriber's event buffer size.
func WithBufferSize(size int) SubscribeOption {
	return func(opts *SubscribeOptions) {
		if size > 0 {
			opts.BufferSize = size
		}
	}
}

// HubOption configures a hub.
type HubOption func(*Hub)

// WithEventBufferSize sets the event buffer size.
func WithEventBufferSize(size int) HubOption {
	return func(h *Hub) {
		if size > 0 {
			h.eventBufferSize = size
		}
	}
}

// WithClientBufferSize sets the default per-subscriber buffer size.
func WithClientBufferSize(size int) HubOption {
	return func(h *Hub) {
		if size > 0 {
			h.clientBufferSize = size
		}
	}
}

// WithHeartbeatInterval sets the heartbeat interval for SSE handlers.
func WithHeartbeatInterval(interval time.Duration) HubOption {
	return func(h *Hub) {
		if interval > 0 {
			h.heartbeatInterval = interval
		}
	}
}

// WithMaxSubscribers sets the maximum number of concurrent subscribers.
func WithMaxSubscribers(maxSubscribers int) HubOption {
	return func(h *Hub) {
		h.maxSubscribers = maxSubscribers
	}
}
