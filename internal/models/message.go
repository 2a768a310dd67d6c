package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is an immutable entry in a thread's append-only log.
// Messages are totally ordered within a thread by (CreatedAt, ID);
// IDs are ULIDs, so the tiebreak follows insertion order.
type Message struct {
	ID        string    `json:"id"` // ULID
	ThreadID  uuid.UUID `json:"thread_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
