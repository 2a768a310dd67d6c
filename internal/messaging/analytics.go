package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chamberlink/chamberlink/internal/auth"
	"github.com/chamberlink/chamberlink/internal/models"
	"github.com/chamberlink/chamberlink/internal/store"
)

// AnalyticsConfig tunes the proficiency heuristic. The defaults give a
// 1440-minute linear decay on the response component (a 24h average response
// time zeroes it) blended 70/30 with the engagement ratio. These are
// presentation knobs, not an SLA.
type AnalyticsConfig struct {
	ResponseWeight       float64
	EngagementWeight     float64
	DecayMinutesPerPoint float64
}

// DefaultAnalyticsConfig returns the weights the oversight dashboard ships with.
func DefaultAnalyticsConfig() AnalyticsConfig {
	return AnalyticsConfig{
		ResponseWeight:       0.7,
		EngagementWeight:     0.3,
		DecayMinutesPerPoint: 14.4,
	}
}

// ComputeThreadStats derives the communication metrics from an ordered
// message sequence for the designated staff participant. Pure function:
// callers pass the stored sequence, nothing is cached.
func ComputeThreadStats(msgs []models.Message, staffID uuid.UUID, cfg AnalyticsConfig) models.ThreadStats {
	stats := models.ThreadStats{StaffID: staffID, MessageCount: len(msgs)}
	if len(msgs) > 0 {
		stats.ThreadID = msgs[0].ThreadID
	}

	var totalResponse time.Duration
	for i, msg := range msgs {
		if msg.SenderID != staffID {
			continue
		}
		stats.StaffMessages++
		if i > 0 && msgs[i-1].SenderID != staffID {
			totalResponse += msg.CreatedAt.Sub(msgs[i-1].CreatedAt)
			stats.ResponseSamples++
		}
	}

	if stats.ResponseSamples > 0 {
		stats.AvgResponseTime = totalResponse / time.Duration(stats.ResponseSamples)
	}
	if stats.MessageCount > 0 {
		stats.EngagementRatio = float64(stats.StaffMessages) / float64(stats.MessageCount) * 100
	}

	avgMinutes := stats.AvgResponseTime.Minutes()
	responseScore := 100 - avgMinutes/cfg.DecayMinutesPerPoint
	if responseScore < 0 {
		responseScore = 0
	}
	stats.ProficiencyScore = cfg.ResponseWeight*responseScore + cfg.EngagementWeight*stats.EngagementRatio

	return stats
}

// Analytics derives communication metrics for oversight dashboards.
type Analytics struct {
	store store.DataStore
	cfg   AnalyticsConfig
}

// NewAnalytics creates the analytics engine.
func NewAnalytics(ds store.DataStore, cfg AnalyticsConfig) *Analytics {
	return &Analytics{store: ds, cfg: cfg}
}

// ThreadStats computes metrics over the thread's full message sequence for
// the staff participant. Oversight only: the caller must be an admin whose
// scope covers the thread.
func (a *Analytics) ThreadStats(ctx context.Context, caller auth.Identity, thread *models.Thread, staffID uuid.UUID) (*models.ThreadStats, error) {
	if !caller.IsAdmin() || !caller.InScope(thread.ChamberID) {
		return nil, fmt.Errorf("%w: oversight metrics require an admin in scope", ErrAccessDenied)
	}
	if !thread.HasParticipant(staffID) {
		return nil, fmt.Errorf("%w: staff user is not a thread participant", ErrNotFound)
	}

	msgs, err := a.store.ListMessages(ctx, thread.ID, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransientStore, err)
	}

	stats := ComputeThreadStats(msgs, staffID, a.cfg)
	stats.ThreadID = thread.ID
	return &stats, nil
}
