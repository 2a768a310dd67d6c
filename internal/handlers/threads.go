package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/chamberlink/chamberlink/internal/api/middleware"
	"github.com/chamberlink/chamberlink/internal/models"
)

// ResolveThreadRequest is the resolve-or-create request body. The thread is
// between the caller and participant_id; admins may instead resolve between
// two users inside their chamber via participant_a.
type ResolveThreadRequest struct {
	ParticipantID string `json:"participant_id"`
	ParticipantA  string `json:"participant_a,omitempty"`
	Subject       string `json:"subject,omitempty"`
}

// ResolveThread handles find-or-create thread resolution.
func (h *Handler) ResolveThread(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req ResolveThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	other, err := uuid.Parse(req.ParticipantID)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid participant_id")
		return
	}

	first := caller.UserID
	if req.ParticipantA != "" {
		if first, err = uuid.Parse(req.ParticipantA); err != nil {
			h.Error(w, http.StatusBadRequest, "invalid participant_a")
			return
		}
	}

	thread, err := h.registry.ResolveOrCreate(r.Context(), caller, first, other, req.Subject)
	if err != nil {
		h.DomainError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, thread)
}

// ThreadListResponse wraps the thread list.
type ThreadListResponse struct {
	Threads []models.Thread `json:"threads"`
}

// ListThreads returns the threads a user participates in. Admins may pass
// ?user= and ?chamber= for oversight listings; everyone else gets their own.
func (h *Handler) ListThreads(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	userID := caller.UserID
	if raw := r.URL.Query().Get("user"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "invalid user filter")
			return
		}
		userID = parsed
	}

	var chamberFilter *uuid.UUID
	if raw := r.URL.Query().Get("chamber"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "invalid chamber filter")
			return
		}
		chamberFilter = &parsed
	}

	threads, err := h.registry.ListForUser(r.Context(), caller, userID, chamberFilter)
	if err != nil {
		h.DomainError(w, err)
		return
	}
	if threads == nil {
		threads = []models.Thread{}
	}

	h.JSON(w, http.StatusOK, ThreadListResponse{Threads: threads})
}
