package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/chamberlink/chamberlink/internal/api/middleware"
	"github.com/chamberlink/chamberlink/internal/realtime"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Token auth happens before the upgrade; cross-origin browser clients
	// carry no ambient credentials worth protecting here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ThreadEvents upgrades the request to a websocket and streams the thread's
// message and receipt events until the client disconnects.
func (h *Handler) ThreadEvents(w http.ResponseWriter, r *http.Request) {
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

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := realtime.NewConnection(ws)
	conn.Start()

	sub := h.hub.Subscribe(thread.ID)

	h.logger.Debug().
		Str("thread_id", thread.ID.String()).
		Str("user_id", caller.UserID.String()).
		Msg("websocket subscriber attached")

	// Reader goroutine: the stream is outbound-only, but reading is what
	// surfaces client disconnects and pong frames.
	go func() {
		defer conn.Close(websocket.CloseNormalClosure, "")
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer sub.Close()
	for {
		select {
		case <-conn.Closed():
			return
		case <-r.Context().Done():
			conn.Close(websocket.CloseGoingAway, "server shutting down")
			return
		case event, ok := <-sub.C:
			if !ok {
				// Dropped as a slow consumer by the hub.
				conn.Close(websocket.CloseGoingAway, "event buffer overrun")
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				h.logger.Error().Err(err).Msg("encode thread event")
				continue
			}
			if err := conn.Send(payload); err != nil {
				return
			}
		}
	}
}
