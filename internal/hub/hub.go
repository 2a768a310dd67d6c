package hub

import (
	"sync"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/chamberlink/chamberlink/internal/metrics"
)

// subscriberBuffer bounds the per-viewer event queue. A viewer that stops
// draining its channel is dropped rather than blocking fan-out; it is
// expected to resubscribe and reconcile via the list endpoints.
const subscriberBuffer = 64

type subscriber struct {
	ch chan Event
}

// Subscription is a live registration for one thread's events. The caller
// reads events from C and must call Close when the view goes away;
// registrations are never garbage-collected implicitly.
type Subscription struct {
	C <-chan Event

	hub      *Hub
	threadID uuid.UUID
	sub      *subscriber
	once     sync.Once
}

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.unsubscribe(s.threadID, s.sub)
	})
}

// Hub fans newly appended messages and receipt updates out to the current
// subscribers of each thread. The registry is process-local; delivery across
// server instances goes through the redis Bridge. Delivery is best-effort and
// at-least-once: subscribers may see duplicates after a reconnect and must
// deduplicate by message ID.
type Hub struct {
	origin string
	logger zerolog.Logger

	mu    sync.RWMutex
	subs  map[uuid.UUID]map[*subscriber]struct{}
	relay func(Event)
}

// New creates a Hub with a unique instance origin tag.
func New(logger zerolog.Logger) *Hub {
	return &Hub{
		origin: ulid.Make().String(),
		logger: logger,
		subs:   make(map[uuid.UUID]map[*subscriber]struct{}),
	}
}

// Origin returns this instance's origin tag.
func (h *Hub) Origin() string {
	return h.origin
}

// SetRelay installs the cross-instance forwarder. Only locally produced
// events are relayed.
func (h *Hub) SetRelay(relay func(Event)) {
	h.mu.Lock()
	h.relay = relay
	h.mu.Unlock()
}

// Publish stamps the event with this instance's origin, delivers it to local
// subscribers and forwards it to the other instances.
func (h *Hub) Publish(event Event) {
	if event.Origin == "" {
		event.Origin = h.origin
	}
	metrics.EventsPublished.WithLabelValues(string(event.Kind)).Inc()

	h.Deliver(event)

	h.mu.RLock()
	relay := h.relay
	h.mu.RUnlock()
	if relay != nil && event.Origin == h.origin {
		relay(event)
	}
}

// Deliver fans the event out to local subscribers only. The Bridge calls
// this for events that originated on other instances.
func (h *Hub) Deliver(event Event) {
	var slow []*subscriber

	h.mu.RLock()
	for sub := range h.subs[event.ThreadID] {
		select {
		case sub.ch <- event:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	// Slow consumers are dropped so one stuck viewer cannot stall the
	// thread's fan-out. They must resubscribe and refetch.
	for _, sub := range slow {
		h.logger.Warn().
			Str("thread_id", event.ThreadID.String()).
			Msg("dropping slow subscriber")
		metrics.SubscribersDropped.Inc()
		h.unsubscribe(event.ThreadID, sub)
	}
}

// Subscribe registers a live viewer of the thread.
func (h *Hub) Subscribe(threadID uuid.UUID) *Subscription {
	sub := &subscriber{ch: make(chan Event, subscriberBuffer)}

	h.mu.Lock()
	threadSubs := h.subs[threadID]
	if threadSubs == nil {
		threadSubs = make(map[*subscriber]struct{})
		h.subs[threadID] = threadSubs
	}
	threadSubs[sub] = struct{}{}
	h.mu.Unlock()

	metrics.ActiveSubscribers.Inc()

	return &Subscription{C: sub.ch, hub: h, threadID: threadID, sub: sub}
}

func (h *Hub) unsubscribe(threadID uuid.UUID, sub *subscriber) {
	h.mu.Lock()
	threadSubs := h.subs[threadID]
	if _, ok := threadSubs[sub]; !ok {
		h.mu.Unlock()
		return
	}
	delete(threadSubs, sub)
	if len(threadSubs) == 0 {
		delete(h.subs, threadID)
	}
	h.mu.Unlock()

	close(sub.ch)
	metrics.ActiveSubscribers.Dec()
}

// SubscriberCount reports the current number of subscribers for a thread.
func (h *Hub) SubscriberCount(threadID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[threadID])
}
