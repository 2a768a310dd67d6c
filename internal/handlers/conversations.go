package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/chamberlink/chamberlink/internal/api/middleware"
	"github.com/chamberlink/chamberlink/internal/models"
)

// ConversationListResponse wraps the aggregated inbox view.
type ConversationListResponse struct {
	Conversations []models.Conversation `json:"conversations"`
}

// ListConversations returns the caller's conversation list: threads sorted by
// latest activity with unread counts and last messages. Admins may inspect a
// user in their chamber via ?user=.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
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

	conversations, err := h.conversations.List(r.Context(), caller, userID)
	if err != nil {
		h.DomainError(w, err)
		return
	}
	if conversations == nil {
		conversations = []models.Conversation{}
	}

	h.JSON(w, http.StatusOK, ConversationListResponse{Conversations: conversations})
}
