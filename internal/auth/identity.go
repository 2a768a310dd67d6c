package auth

import (
	"github.com/google/uuid"

	"github.com/chamberlink/chamberlink/internal/models"
)

// Identity is the resolved caller: who they are, their portal role and the
// chamber their access is scoped to. The identity layer proper (user
// accounts, invitations) lives outside this service; credentials here are
// the tokens it issues to the UI backends.
type Identity struct {
	UserID    uuid.UUID  `json:"user_id"`
	Role      string     `json:"role"`
	ChamberID *uuid.UUID `json:"chamber_id,omitempty"`
}

// IsAdmin reports whether the caller may use oversight views.
func (i Identity) IsAdmin() bool {
	return i.Role == models.RoleAdmin
}

// InScope reports whether a thread's chamber tag falls inside the caller's
// oversight scope. An admin without a chamber binding oversees everything.
func (i Identity) InScope(chamberID *uuid.UUID) bool {
	if i.ChamberID == nil {
		return true
	}
	return chamberID != nil && *chamberID == *i.ChamberID
}
