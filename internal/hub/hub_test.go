package hub

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chamberlink/chamberlink/internal/models"
)

func recvEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func testMessage(threadID uuid.UUID) *models.Message {
	return &models.Message{
		ID:        "01TESTMSG",
		ThreadID:  threadID,
		SenderID:  uuid.New(),
		Content:   "hi",
		CreatedAt: time.Now().UTC(),
	}
}

func TestPublishFansOutToThreadSubscribers(t *testing.T) {
	h := New(zerolog.Nop())
	threadID := uuid.New()

	s1 := h.Subscribe(threadID)
	defer s1.Close()
	s2 := h.Subscribe(threadID)
	defer s2.Close()
	unrelated := h.Subscribe(uuid.New())
	defer unrelated.Close()

	h.Publish(NewMessageEvent(testMessage(threadID)))

	for _, sub := range []*Subscription{s1, s2} {
		event := recvEvent(t, sub.C)
		if event.Kind != KindMessage || event.ThreadID != threadID {
			t.Fatalf("unexpected event %+v", event)
		}
		if event.Origin != h.Origin() {
			t.Fatalf("event origin %q, want %q", event.Origin, h.Origin())
		}
	}

	select {
	case event := <-unrelated.C:
		t.Fatalf("unrelated thread received %+v", event)
	default:
	}
}

func TestSubscriptionCloseUnregisters(t *testing.T) {
	h := New(zerolog.Nop())
	threadID := uuid.New()

	sub := h.Subscribe(threadID)
	if got := h.SubscriberCount(threadID); got != 1 {
		t.Fatalf("subscriber count = %d, want 1", got)
	}

	sub.Close()
	sub.Close() // idempotent

	if got := h.SubscriberCount(threadID); got != 0 {
		t.Fatalf("subscriber count after close = %d, want 0", got)
	}
	if _, ok := <-sub.C; ok {
		t.Fatal("channel should be closed after Close")
	}
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	h := New(zerolog.Nop())
	threadID := uuid.New()

	slow := h.Subscribe(threadID)
	healthy := h.Subscribe(threadID)
	defer healthy.Close()

	// Overflow the slow subscriber's buffer without draining it.
	for i := 0; i < subscriberBuffer+1; i++ {
		h.Publish(NewMessageEvent(testMessage(threadID)))
		// Keep the healthy subscriber drained so only slow overflows.
		recvEvent(t, healthy.C)
	}

	if got := h.SubscriberCount(threadID); got != 1 {
		t.Fatalf("subscriber count = %d, want 1 after dropping slow", got)
	}

	// The slow subscriber's channel holds the buffered events, then closes.
	received := 0
	for range slow.C {
		received++
	}
	if received != subscriberBuffer {
		t.Fatalf("slow subscriber drained %d events, want %d", received, subscriberBuffer)
	}
}

func TestRelayForwardsOnlyLocalEvents(t *testing.T) {
	h := New(zerolog.Nop())
	threadID := uuid.New()

	var relayed []Event
	h.SetRelay(func(event Event) { relayed = append(relayed, event) })

	h.Publish(NewMessageEvent(testMessage(threadID)))
	if len(relayed) != 1 {
		t.Fatalf("relayed %d events, want 1", len(relayed))
	}

	// An event carrying a foreign origin must not be relayed back out.
	foreign := NewMessageEvent(testMessage(threadID))
	foreign.Origin = "01FOREIGNORIGIN"
	h.Publish(foreign)
	if len(relayed) != 1 {
		t.Fatalf("foreign-origin event was relayed: %d total", len(relayed))
	}
}

func TestDeliverSkipsRelay(t *testing.T) {
	h := New(zerolog.Nop())
	threadID := uuid.New()

	relayCalls := 0
	h.SetRelay(func(Event) { relayCalls++ })

	sub := h.Subscribe(threadID)
	defer sub.Close()

	event := NewMessageEvent(testMessage(threadID))
	event.Origin = "01REMOTE"
	h.Deliver(event)

	if got := recvEvent(t, sub.C); got.Origin != "01REMOTE" {
		t.Fatalf("delivered origin %q, want 01REMOTE", got.Origin)
	}
	if relayCalls != 0 {
		t.Fatalf("Deliver triggered %d relay calls", relayCalls)
	}
}
