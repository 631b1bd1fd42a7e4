package realtime

import (
	"log/slog"
	"sync"
	"time"

	"tasker/cmd/internal/metrics"
)

// Hub routes task events to the owner's connected clients.
// It implements tasks.Publisher.
type Hub struct {
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu    sync.RWMutex
	feeds map[string]*feed
}

// NewHub constructs a Hub. m may be nil.
func NewHub(log *slog.Logger, m *metrics.Metrics) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:     log,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
		feeds:   make(map[string]*feed),
	}
}

// Subscribe adds c to its user's feed.
func (h *Hub) Subscribe(c *Client) {
	h.mu.Lock()
	f, ok := h.feeds[c.UserID]
	if !ok {
		f = newFeed(c.UserID)
		h.feeds[c.UserID] = f
	}
	f.join(c)
	h.mu.Unlock()

	h.metrics.FeedConnected(1)
	h.log.Debug("feed.subscribe", "user_id", c.UserID, "client_id", c.ID)
}

// Unsubscribe removes c from its feed, then closes it. Removal happens
// first so no broadcaster holds c while it tears down.
func (h *Hub) Unsubscribe(c *Client) {
	h.mu.Lock()
	removed := false
	if f, ok := h.feeds[c.UserID]; ok {
		var empty bool
		removed, empty = f.leave(c.ID)
		if empty {
			delete(h.feeds, c.UserID)
		}
	}
	h.mu.Unlock()

	c.Close()
	if removed {
		h.metrics.FeedConnected(-1)
		h.log.Debug("feed.unsubscribe", "user_id", c.UserID, "client_id", c.ID)
	}
}

// Subscribers returns how many clients userID has connected.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if f, ok := h.feeds[userID]; ok {
		return f.size()
	}
	return 0
}

// Publish sends an event to every client of ownerID.
func (h *Hub) Publish(ownerID, eventType string, payload any) {
	h.mu.RLock()
	f, ok := h.feeds[ownerID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	env, err := newEnvelope(eventType, payload, h.now())
	if err != nil {
		h.log.Error("feed.publish.fail", "type", eventType, "err", err)
		return
	}

	delivered, dropped := f.broadcast(env)
	for range delivered {
		h.metrics.FeedDelivered(eventType)
	}
	for range dropped {
		h.metrics.FeedDropped()
	}
	if dropped > 0 {
		h.log.Warn("feed.publish.dropped", "user_id", ownerID, "type", eventType, "dropped", dropped)
	}
}
