package models

import (
	"time"

	"github.com/google/uuid"
)

// ThreadStats carries the derived communication metrics for oversight views.
// These are presentation heuristics computed from the message sequence, not
// SLA measurements. The HTTP layer shapes them for the wire.
type ThreadStats struct {
	ThreadID         uuid.UUID
	StaffID          uuid.UUID
	MessageCount     int
	StaffMessages    int
	ResponseSamples  int
	AvgResponseTime  time.Duration
	EngagementRatio  float64 // percent of messages sent by staff
	ProficiencyScore float64
}
