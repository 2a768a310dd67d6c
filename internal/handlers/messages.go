package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chamberlink/chamberlink/internal/api/middleware"
	"github.com/chamberlink/chamberlink/internal/models"
	"github.com/chamberlink/chamberlink/internal/store"
)

// AppendMessageRequest is the send-message request body.
type AppendMessageRequest struct {
	Content string `json:"content"`
}

// MessageResponse is a message in API responses. Seen is present only on
// messages the caller sent: it reports whether every other participant's
// watermark has reached the message.
type MessageResponse struct {
	models.Message
	Seen *bool `json:"seen,omitempty"`
}

// MessageListResponse is a page of messages, oldest first, with the cursor
// for the page before it.
type MessageListResponse struct {
	Messages []MessageResponse `json:"messages"`
	Before   string            `json:"before,omitempty"`
}

// AppendMessage handles appending a message to a thread.
func (h *Handler) AppendMessage(w http.ResponseWriter, r *http.Request) {
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

	var req AppendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg, err := h.messages.Append(r.Context(), caller.UserID, threadID, req.Content)
	if err != nil {
		h.DomainError(w, err)
		return
	}

	h.JSON(w, http.StatusCreated, msg)
}

// ListMessages returns a page of a thread's messages.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
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

	var before *store.Cursor
	if raw := r.URL.Query().Get("before"); raw != "" {
		if before, err = parseCursor(raw); err != nil {
			h.Error(w, http.StatusBadRequest, "invalid before cursor")
			return
		}
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			h.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}

	msgs, err := h.messages.List(r.Context(), caller, thread, before, limit)
	if err != nil {
		h.DomainError(w, err)
		return
	}

	seen, err := h.receipts.SeenFlags(r.Context(), thread, msgs)
	if err != nil {
		h.DomainError(w, err)
		return
	}

	resp := MessageListResponse{Messages: make([]MessageResponse, len(msgs))}
	for i, m := range msgs {
		resp.Messages[i] = MessageResponse{Message: m}
		if m.SenderID == caller.UserID {
			flag := seen[m.ID]
			resp.Messages[i].Seen = &flag
		}
	}
	if len(msgs) > 0 {
		// The oldest message on this page bounds the next (older) page.
		resp.Before = formatCursor(msgs[0])
	}

	h.JSON(w, http.StatusOK, resp)
}

// Cursors encode the exclusive (created_at, id) upper bound as
// "<unix_micro>-<message_id>".
func formatCursor(m models.Message) string {
	return fmt.Sprintf("%d-%s", m.CreatedAt.UTC().UnixMicro(), m.ID)
}

func parseCursor(raw string) (*store.Cursor, error) {
	tsPart, id, ok := strings.Cut(raw, "-")
	if !ok || id == "" {
		return nil, fmt.Errorf("malformed cursor %q", raw)
	}
	us, err := strconv.ParseInt(tsPart, 10, 64)
	if err != nil {
		return nil, err
	}
	return &store.Cursor{CreatedAt: time.UnixMicro(us).UTC(), ID: id}, nil
}
