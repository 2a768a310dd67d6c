package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/chamberlink/chamberlink/internal/api/middleware"
	"github.com/chamberlink/chamberlink/internal/models"
)

// IssueCredentialRequest is the admin request to mint a bearer token.
type IssueCredentialRequest struct {
	UserID    uuid.UUID  `json:"user_id"`
	Role      string     `json:"role"`
	ChamberID *uuid.UUID `json:"chamber_id,omitempty"`
}

// IssueCredentialResponse carries the one-time token. The secret half is not
// stored; losing this response means issuing a new credential.
type IssueCredentialResponse struct {
	Token string `json:"token"`
}

// IssueCredential mints an API credential for a user. Admin only.
func (h *Handler) IssueCredential(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if !caller.IsAdmin() {
		h.Error(w, http.StatusForbidden, "admin role required")
		return
	}

	var req IssueCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == uuid.Nil {
		h.Error(w, http.StatusBadRequest, "user_id is required")
		return
	}
	switch req.Role {
	case models.RoleClient, models.RoleLawyer, models.RoleAdmin:
	default:
		h.Error(w, http.StatusBadRequest, "role must be client, lawyer or admin")
		return
	}

	// Chamber-scoped admins may only issue credentials inside their chamber.
	if caller.ChamberID != nil {
		if req.ChamberID == nil || *req.ChamberID != *caller.ChamberID {
			h.Error(w, http.StatusForbidden, "credential chamber outside caller scope")
			return
		}
	}

	token, err := h.auth.IssueCredential(r.Context(), req.UserID, req.Role, req.ChamberID)
	if err != nil {
		h.logger.Error().Err(err).Msg("issue credential")
		h.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.JSON(w, http.StatusCreated, IssueCredentialResponse{Token: token})
}
