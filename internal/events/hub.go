package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonesrussell/sherlock-center/internal/logger"
)

// subscriber is one connected event consumer. mu serializes send and
// close so the channel is never closed out from under an in-flight
// send.
type subscriber struct {
	id     string
	events chan Event
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

func newSubscriber(ctx context.Context, id string, bufferSize int) *subscriber {
	subCtx, cancel := context.WithCancel(ctx)
	return &subscriber{
		id:     id,
		events: make(chan Event, bufferSize),
		ctx:    subCtx,
		cancel: cancel,
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
	close(s.events)
}

// send attempts to deliver an event without blocking. Returns false if
// the subscriber is closed or its buffer is full.
func (s *subscriber) send(event Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	select {
	case s.events <- event:
		return true
	default:
		return false
	}
}

// Hub distributes scan events to connected subscribers. Subscribers are
// keyed by a caller-chosen id, delivery is best-effort, and a subscriber
// that cannot keep up is disconnected rather than allowed to stall the
// rest.
type Hub struct {
	log         logger.Logger
	subscribers map[string]*subscriber
	mu          sync.RWMutex

	publish chan Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	eventBufferSize   int
	clientBufferSize  int
	heartbeatInterval time.Duration
	shutdownTimeout   time.Duration
	maxSubscribers    int
}

// NewHub creates a new event hub.
func NewHub(log logger.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		log:               log,
		subscribers:       make(map[string]*subscriber),
		eventBufferSize:   DefaultEventBufferSize,
		clientBufferSize:  DefaultClientBufferSize,
		heartbeatInterval: DefaultHeartbeatInterval,
		shutdownTimeout:   DefaultShutdownTimeout,
		maxSubscribers:    DefaultMaxSubscribers,
	}

	for _, opt := range opts {
		opt(h)
	}

	h.publish = make(chan Event, h.eventBufferSize)

	return h
}

// Start begins processing events.
func (h *Hub) Start(ctx context.Context) error {
	h.ctx, h.cancel = context.WithCancel(ctx)

	h.wg.Add(1)
	go h.broadcastLoop()

	h.log.Info("Event hub started",
		logger.Int("event_buffer_size", h.eventBufferSize),
		logger.Int("client_buffer_size", h.clientBufferSize),
		logger.Int("max_subscribers", h.maxSubscribers),
	)

	return nil
}

// Stop gracefully shuts down the hub.
func (h *Hub) Stop() error {
	if h.cancel != nil {
		h.cancel()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("Event hub stopped gracefully")
	case <-time.After(h.shutdownTimeout):
		h.log.Warn("Event hub shutdown timeout exceeded")
	}

	return nil
}

// Publish sends an event to all connected subscribers.
func (h *Hub) Publish(ctx context.Context, event Event) error {
	select {
	case h.publish <- event:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publish cancelled: %w", ctx.Err())
	default:
		return fmt.Errorf("publish buffer full (dropped event: %s)", event.Type)
	}
}

// Subscribe registers a subscriber under the given id. Subscribing with
// an id that is already registered replaces the old subscription, so a
// reconnecting client never ends up with two live channels.
func (h *Hub) Subscribe(ctx context.Context, subscriberID string, opts ...SubscribeOption) (<-chan Event, func()) {
	subOpts := SubscribeOptions{
		BufferSize: h.clientBufferSize,
	}
	for _, opt := range opts {
		opt(&subOpts)
	}

	sub := newSubscriber(ctx, subscriberID, subOpts.BufferSize)

	h.mu.Lock()
	previous := h.subscribers[subscriberID]
	atCapacity := previous == nil && h.maxSubscribers > 0 && len(h.subscribers) >= h.maxSubscribers
	if !atCapacity {
		h.subscribers[subscriberID] = sub
	}
	h.mu.Unlock()

	if atCapacity {
		h.log.Warn("Max subscribers reached, rejecting new connection",
			logger.String("subscriber_id", subscriberID),
			logger.Int("max_subscribers", h.maxSubscribers),
		)
		sub.close()
		return sub.events, func() {}
	}

	if previous != nil {
		previous.close()
		h.log.Debug("Replaced existing subscription",
			logger.String("subscriber_id", subscriberID),
		)
	}

	h.log.Debug("Subscriber connected",
		logger.String("subscriber_id", subscriberID),
		logger.Int("total_subscribers", h.SubscriberCount()),
	)

	h.wg.Add(1)
	go h.reapSubscriber(sub)

	cleanup := func() {
		h.remove(sub)
	}
	return sub.events, cleanup
}

// SendTo delivers an event to a single subscriber. Unknown ids are a
// no-op.
func (h *Hub) SendTo(subscriberID string, event Event) {
	h.mu.RLock()
	sub := h.subscribers[subscriberID]
	h.mu.RUnlock()

	if sub == nil {
		return
	}
	if !sub.send(event) {
		h.log.Warn("Subscriber buffer full, closing slow connection",
			logger.String("subscriber_id", subscriberID),
			logger.String("event_type", event.Type),
		)
		h.remove(sub)
	}
}

// SubscriberCount returns the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// HeartbeatInterval returns the configured heartbeat interval.
func (h *Hub) HeartbeatInterval() time.Duration {
	return h.heartbeatInterval
}

func (h *Hub) broadcastLoop() {
	defer h.wg.Done()

	for {
		select {
		case event := <-h.publish:
			h.broadcast(event)
		case <-h.ctx.Done():
			h.disconnectAll()
			return
		}
	}
}

func (h *Hub) broadcast(event Event) {
	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	sent := 0
	slow := make([]*subscriber, 0)

	for _, sub := range subs {
		if sub.send(event) {
			sent++
		} else {
			slow = append(slow, sub)
		}
	}

	for _, sub := range slow {
		h.log.Warn("Subscriber buffer full, closing slow connection",
			logger.String("subscriber_id", sub.id),
			logger.String("event_type", event.Type),
		)
		h.remove(sub)
	}

	if sent > 0 || len(slow) > 0 {
		h.log.Debug("Event broadcast",
			logger.String("event_type", event.Type),
			logger.Int("sent", sent),
			logger.Int("dropped", len(slow)),
		)
	}
}

// reapSubscriber waits for the subscriber's context to end and removes it.
func (h *Hub) reapSubscriber(sub *subscriber) {
	defer h.wg.Done()

	<-sub.ctx.Done()
	h.remove(sub)
}

// remove drops a subscriber if it is still the one registered under its
// id. A replaced subscription leaves the newer one in place.
func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	current, exists := h.subscribers[sub.id]
	if exists && current == sub {
		delete(h.subscribers, sub.id)
	}
	h.mu.Unlock()

	sub.close()

	if exists && current == sub {
		h.log.Debug("Subscriber disconnected",
			logger.String("subscriber_id", sub.id),
			logger.Int("total_subscribers", h.SubscriberCount()),
		)
	}
}

func (h *Hub) disconnectAll() {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.subscribers = make(map[string]*subscriber)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}

	h.log.Info("All subscribers disconnected",
		logger.Int("count", len(subs)),
	)
}
