package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chamberlink/chamberlink/internal/api/middleware"
)

// ThreadStatsResponse shapes the derived metrics for the oversight
// dashboard. Times are reported in seconds.
type ThreadStatsResponse struct {
	ThreadID           uuid.UUID `json:"thread_id"`
	StaffID            uuid.UUID `json:"staff_id"`
	MessageCount       int       `json:"message_count"`
	StaffMessages      int       `json:"staff_messages"`
	ResponseSamples    int       `json:"response_samples"`
	AvgResponseSeconds float64   `json:"avg_response_seconds"`
	EngagementRatio    float64   `json:"engagement_ratio"`
	ProficiencyScore   float64   `json:"proficiency_score"`
}

// ThreadStats returns response-time and engagement metrics for a staff
// participant of the thread. Admin only.
func (h *Handler) ThreadStats(w http.ResponseWriter, r *http.Request) {
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

	staffID, err := uuid.Parse(r.URL.Query().Get("staff"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "staff query parameter is required")
		return
	}

	thread, err := h.registry.GetAuthorized(r.Context(), caller, threadID)
	if err != nil {
		h.DomainError(w, err)
		return
	}

	stats, err := h.analytics.ThreadStats(r.Context(), caller, thread, staffID)
	if err != nil {
		h.DomainError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, ThreadStatsResponse{
		ThreadID:           stats.ThreadID,
		StaffID:            stats.StaffID,
		MessageCount:       stats.MessageCount,
		StaffMessages:      stats.StaffMessages,
		ResponseSamples:    stats.ResponseSamples,
		AvgResponseSeconds: stats.AvgResponseTime.Seconds(),
		EngagementRatio:    stats.EngagementRatio,
		ProficiencyScore:   stats.ProficiencyScore,
	})
}
