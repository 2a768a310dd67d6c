package messaging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chamberlink/chamberlink/internal/auth"
	"github.com/chamberlink/chamberlink/internal/metrics"
	"github.com/chamberlink/chamberlink/internal/models"
	"github.com/chamberlink/chamberlink/internal/store"
)

// ResolutionMode selects how a participant pair maps to threads. The portal's
// call sites disagree on whether a pair shares one thread globally or one per
// case subject, so both strategies are kept configurable.
type ResolutionMode string

const (
	// ResolvePair: one thread per unordered participant pair.
	ResolvePair ResolutionMode = "pair"
	// ResolvePairSubject: one thread per (pair, subject).
	ResolvePairSubject ResolutionMode = "pair_subject"
)

// Registry creates and finds conversation threads.
type Registry struct {
	store store.DataStore
	mode  ResolutionMode
}

// NewRegistry creates a thread registry with the given resolution mode.
func NewRegistry(ds store.DataStore, mode ResolutionMode) *Registry {
	if mode == "" {
		mode = ResolvePair
	}
	return &Registry{store: ds, mode: mode}
}

// resolutionKey maps the unordered pair (and the subject, depending on mode)
// to the unique key backing find-or-create.
func (r *Registry) resolutionKey(a, b uuid.UUID, subject string) string {
	lo, hi := a.String(), b.String()
	if lo > hi {
		lo, hi = hi, lo
	}
	key := lo + ":" + hi
	if r.mode == ResolvePairSubject {
		key += "|" + subject
	}
	return key
}

// ResolveOrCreate finds the thread for the participant pair, creating it on
// first contact. Concurrent calls from both participants resolve to the same
// row: the store's unique resolution key makes the first writer win and the
// loser read the winner's thread.
func (r *Registry) ResolveOrCreate(ctx context.Context, caller auth.Identity, a, b uuid.UUID, subject string) (*models.Thread, error) {
	if a == uuid.Nil || b == uuid.Nil || a == b {
		return nil, fmt.Errorf("%w: a thread needs two distinct participants", ErrInvalidSender)
	}
	if caller.UserID != a && caller.UserID != b && !caller.IsAdmin() {
		return nil, fmt.Errorf("%w: caller is not one of the participants", ErrAccessDenied)
	}

	key := r.resolutionKey(a, b, strings.TrimSpace(subject))

	existing, err := r.store.FindThreadByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransientStore, err)
	}
	if existing != nil {
		if !caller.InScope(existing.ChamberID) && !existing.HasParticipant(caller.UserID) {
			return nil, fmt.Errorf("%w: thread outside caller scope", ErrAccessDenied)
		}
		return existing, nil
	}

	now := time.Now().UTC()
	candidate := &models.Thread{
		ID:             uuid.New(),
		ParticipantIDs: sortedPair(a, b),
		Subject:        strings.TrimSpace(subject),
		ChamberID:      caller.ChamberID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	thread, created, err := r.store.EnsureThread(ctx, candidate, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransientStore, err)
	}
	if created {
		metrics.ThreadsCreated.Inc()
	}
	return thread, nil
}

// ListForUser returns the threads userID participates in, newest activity
// first. Non-admin callers may only list their own; admins may inspect any
// user inside their chamber scope, optionally narrowed by chamberFilter.
func (r *Registry) ListForUser(ctx context.Context, caller auth.Identity, userID uuid.UUID, chamberFilter *uuid.UUID) ([]models.Thread, error) {
	if caller.UserID != userID {
		if !caller.IsAdmin() {
			return nil, fmt.Errorf("%w: cannot list another user's threads", ErrAccessDenied)
		}
		if chamberFilter == nil {
			chamberFilter = caller.ChamberID
		} else if !caller.InScope(chamberFilter) {
			return nil, fmt.Errorf("%w: chamber outside caller scope", ErrAccessDenied)
		}
	}

	threads, err := r.store.ListThreadsForUser(ctx, userID, chamberFilter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransientStore, err)
	}
	return threads, nil
}

// GetAuthorized fetches a thread and verifies the caller may see it.
func (r *Registry) GetAuthorized(ctx context.Context, caller auth.Identity, threadID uuid.UUID) (*models.Thread, error) {
	thread, err := r.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransientStore, err)
	}
	if thread == nil {
		return nil, ErrNotFound
	}
	if !thread.HasParticipant(caller.UserID) && !(caller.IsAdmin() && caller.InScope(thread.ChamberID)) {
		return nil, fmt.Errorf("%w: caller may not view this thread", ErrAccessDenied)
	}
	return thread, nil
}

func sortedPair(a, b uuid.UUID) []uuid.UUID {
	if a.String() > b.String() {
		a, b = b, a
	}
	return []uuid.UUID{a, b}
}
