package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chamberlink/chamberlink/internal/api/middleware"
)

// MarkReadRequest optionally carries the watermark timestamp; when absent
// the server clock is used. Sending an old timestamp is harmless because
// receipts only move forward.
type MarkReadRequest struct {
	At *time.Time `json:"at,omitempty"`
}

// MarkRead advances the caller's read watermark for the thread.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	threadID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid thread ID format")
		return
	}

	thread, err := h.registry.GetAuthorized(r.Context(), caller, threadID)
	if err != nil {
		h.DomainError(w, err)
		return
	}

	var req MarkReadRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.Error(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	at := time.Time{}
	if req.At != nil {
		at = *req.At
	}

	receipt, err := h.receipts.MarkRead(r.Context(), thread, caller.UserID, at)
	if err != nil {
		h.DomainError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, receipt)
}

// UnreadCountResponse carries the unread badge for one thread.
type UnreadCountResponse struct {
	ThreadID uuid.UUID `json:"thread_id"`
	Unread   int       `json:"unread"`
}

// UnreadCount returns the caller's unread count for the thread.
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	threadID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid thread ID format")
		return
	}

	if _, err := h.registry.GetAuthorized(r.Context(), caller, threadID); err != nil {
		h.DomainError(w, err)
		return
	}

	n, err := h.receipts.UnreadCount(r.Context(), threadID, caller.UserID)
	if err != nil {
		h.DomainError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, UnreadCountResponse{ThreadID: threadID, Unread: n})
}
