package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ridebroker/backend/internal/metrics"
	"github.com/ridebroker/backend/internal/models"
)

const defaultSendBuffer = 64

// Hub fans channel events out to the subscribers of each conversation in
// this process. Delivery never blocks the publisher: a subscriber whose
// buffer is full is evicted and has to resubscribe and replay history.
type Hub struct {
	mu      sync.RWMutex
	subs    map[string]map[*Subscription]struct{}
	buffer  int
	metrics *metrics.ChannelMetrics
	log     zerolog.Logger
}

// Subscription is one listener on one conversation. The owner must call
// Close when done; the event channel is closed on Close or eviction.
type Subscription struct {
	ID             string
	ConversationID string
	ViewerID       string

	hub     *Hub
	events  chan models.ChannelEvent
	once    sync.Once
	evicted bool
}

func NewHub(sendBuffer int, m *metrics.ChannelMetrics, log zerolog.Logger) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	return &Hub{
		subs:    make(map[string]map[*Subscription]struct{}),
		buffer:  sendBuffer,
		metrics: m,
		log:     log,
	}
}

func (h *Hub) Subscribe(conversationID, viewerID string) *Subscription {
	sub := &Subscription{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		ViewerID:       viewerID,
		hub:            h,
		events:         make(chan models.ChannelEvent, h.buffer),
	}

	h.mu.Lock()
	set, ok := h.subs[conversationID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[conversationID] = set
	}
	set[sub] = struct{}{}
	total := len(set)
	h.mu.Unlock()

	h.log.Debug().
		Str("conversation_id", conversationID).
		Str("subscription_id", sub.ID).
		Int("subscribers", total).
		Msg("subscriber added")
	return sub
}

// Publish delivers ev to local subscribers. It satisfies the negotiation
// service's Broadcaster when no cross-process relay is configured.
func (h *Hub) Publish(_ context.Context, ev models.ChannelEvent) error {
	h.Deliver(ev)
	return nil
}

// Deliver hands ev to every subscriber of its conversation.
func (h *Hub) Deliver(ev models.ChannelEvent) {
	var full []*Subscription

	h.mu.RLock()
	for sub := range h.subs[ev.ConversationID] {
		select {
		case sub.events <- ev:
		default:
			full = append(full, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range full {
		h.evict(sub)
	}
}

// SubscriberCount reports the local subscribers of a conversation.
func (h *Hub) SubscriberCount(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[conversationID])
}

func (h *Hub) evict(sub *Subscription) {
	removed := h.remove(sub, true)
	if !removed {
		return
	}
	h.metrics.IncEviction()
	h.log.Warn().
		Str("conversation_id", sub.ConversationID).
		Str("subscription_id", sub.ID).
		Str("viewer_id", sub.ViewerID).
		Msg("subscriber evicted, send buffer full")
}

func (h *Hub) remove(sub *Subscription, evicted bool) bool {
	removed := false
	sub.once.Do(func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if set, ok := h.subs[sub.ConversationID]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(h.subs, sub.ConversationID)
			}
		}
		sub.evicted = evicted
		close(sub.events)
		removed = true
	})
	return removed
}

// Events yields the conversation's events until the subscription ends.
func (s *Subscription) Events() <-chan models.ChannelEvent {
	return s.events
}

// Evicted reports whether the hub dropped the subscription for falling
// behind. Only meaningful once Events is closed.
func (s *Subscription) Evicted() bool {
	s.hub.mu.RLock()
	defer s.hub.mu.RUnlock()
	return s.evicted
}

func (s *Subscription) Close() {
	s.hub.remove(s, false)
}
