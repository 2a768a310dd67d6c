package models

import (
	"time"

	"github.com/google/uuid"
)

// Roles recognised by the access-control boundary.
const (
	RoleClient = "client"
	RoleLawyer = "lawyer"
	RoleAdmin  = "admin" // chamber administrator, may use oversight views
)

// Credential is an API credential issued by the portal's identity layer.
// The bearer token is "<id>.<secret>"; only a bcrypt hash of the secret is
// stored.
type Credential struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	Role       string     `json:"role"`
	ChamberID  *uuid.UUID `json:"chamber_id,omitempty"`
	SecretHash string     `json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
}
