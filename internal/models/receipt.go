package models

import (
	"time"

	"github.com/google/uuid"
)

// ReadReceipt is the per-(thread,user) read watermark: the user has seen
// every message in the thread with CreatedAt <= LastReadAt. The watermark
// never regresses; updates merge with max(existing, incoming).
type ReadReceipt struct {
	ThreadID   uuid.UUID `json:"thread_id"`
	UserID     uuid.UUID `json:"user_id"`
	LastReadAt time.Time `json:"last_read_at"`
}
