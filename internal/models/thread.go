package models

import (
	"time"

	"github.com/google/uuid"
)

// Thread is a durable conversation channel between a fixed set of
// participants. Threads are deduplicated per participant pair (optionally
// per subject) at creation time and are never deleted.
type Thread struct {
	ID             uuid.UUID   `json:"id"`
	ParticipantIDs []uuid.UUID `json:"participant_ids"`
	Subject        string      `json:"subject,omitempty"`
	ChamberID      *uuid.UUID  `json:"chamber_id,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"` // bumped on every append
}

// HasParticipant reports whether the user belongs to the thread.
func (t *Thread) HasParticipant(userID uuid.UUID) bool {
	for _, id := range t.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// OtherParticipants returns the participants other than userID.
func (t *Thread) OtherParticipants(userID uuid.UUID) []uuid.UUID {
	others := make([]uuid.UUID, 0, len(t.ParticipantIDs))
	for _, id := range t.ParticipantIDs {
		if id != userID {
			others = append(others, id)
		}
	}
	return others
}
