package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/chamberlink/chamberlink/internal/auth"
	"github.com/chamberlink/chamberlink/internal/hub"
	"github.com/chamberlink/chamberlink/internal/messaging"
	"github.com/chamberlink/chamberlink/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	registry      *messaging.Registry
	messages      *messaging.Messages
	receipts      *messaging.Receipts
	conversations *messaging.Conversations
	analytics     *messaging.Analytics
	hub           *hub.Hub
	auth          *auth.Service
	store         store.DataStore
	redis         *store.RedisStore
	logger        zerolog.Logger
}

// Deps bundles the constructor arguments for NewHandler.
type Deps struct {
	Registry      *messaging.Registry
	Messages      *messaging.Messages
	Receipts      *messaging.Receipts
	Conversations *messaging.Conversations
	Analytics     *messaging.Analytics
	Hub           *hub.Hub
	Auth          *auth.Service
	Store         store.DataStore
	Redis         *store.RedisStore
	Logger        zerolog.Logger
}

// NewHandler creates a new Handler with the given dependencies.
func NewHandler(d Deps) *Handler {
	return &Handler{
		registry:      d.Registry,
		messages:      d.Messages,
		receipts:      d.Receipts,
		conversations: d.Conversations,
		analytics:     d.Analytics,
		hub:           d.Hub,
		auth:          d.Auth,
		store:         d.Store,
		redis:         d.Redis,
		logger:        d.Logger,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// DomainError maps the messaging error taxonomy to HTTP statuses.
func (h *Handler) DomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, messaging.ErrAccessDenied):
		h.Error(w, http.StatusForbidden, "access denied")
	case errors.Is(err, messaging.ErrInvalidSender):
		h.Error(w, http.StatusUnprocessableEntity, "unknown thread or sender is not a participant")
	case errors.Is(err, messaging.ErrEmptyMessage):
		h.Error(w, http.StatusUnprocessableEntity, "message content must not be empty")
	case errors.Is(err, messaging.ErrNotFound):
		h.Error(w, http.StatusNotFound, "not found")
	case errors.Is(err, messaging.ErrTransientStore):
		h.Error(w, http.StatusServiceUnavailable, "temporary storage failure, retry the request")
	default:
		h.logger.Error().Err(err).Msg("unhandled error")
		h.Error(w, http.StatusInternalServerError, "internal error")
	}
}
