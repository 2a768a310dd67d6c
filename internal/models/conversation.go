package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is the per-user view of a thread used by inbox screens.
// It is derived on read and never stored.
type Conversation struct {
	Thread       Thread      `json:"thread"`
	OtherUserIDs []uuid.UUID `json:"other_user_ids"`
	LastMessage  *Message    `json:"last_message,omitempty"`
	UnreadCount  int         `json:"unread_count"`
	LastActivity time.Time   `json:"last_activity"`
}
