package hub

import (
	"github.com/google/uuid"

	"github.com/chamberlink/chamberlink/internal/models"
)

// Kind tags the two event classes carried over one subscription.
type Kind string

const (
	KindMessage Kind = "message"
	KindReceipt Kind = "receipt"
)

// Event is the tagged union fanned out to thread subscribers. Exactly one of
// Message or Receipt is set, matching Kind. Origin identifies the server
// instance that produced the event so the cross-instance bridge does not
// replay an instance's own events back to it.
type Event struct {
	Kind     Kind                `json:"kind"`
	ThreadID uuid.UUID           `json:"thread_id"`
	Origin   string              `json:"origin,omitempty"`
	Message  *models.Message     `json:"message,omitempty"`
	Receipt  *models.ReadReceipt `json:"receipt,omitempty"`
}

// NewMessageEvent builds a message event for the given append.
func NewMessageEvent(m *models.Message) Event {
	return Event{Kind: KindMessage, ThreadID: m.ThreadID, Message: m}
}

// NewReceiptEvent builds a receipt event for the given watermark update.
func NewReceiptEvent(r *models.ReadReceipt) Event {
	return Event{Kind: KindReceipt, ThreadID: r.ThreadID, Receipt: r}
}

// Publisher is the write side of the hub, as seen by the messaging services.
type Publisher interface {
	Publish(event Event)
}
