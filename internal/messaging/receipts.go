package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chamberlink/chamberlink/internal/hub"
	"github.com/chamberlink/chamberlink/internal/metrics"
	"github.com/chamberlink/chamberlink/internal/models"
	"github.com/chamberlink/chamberlink/internal/store"
)

// Receipts tracks per-(thread, user) read watermarks and derives the seen
// and unread views from them. A single watermark instead of per-message
// flags keeps read state O(1) per user: the trade-off is "read up to time T"
// semantics with no way to mark an older message unread again.
type Receipts struct {
	store     store.DataStore
	publisher hub.Publisher
	logger    zerolog.Logger
}

// NewReceipts creates the read-receipt tracker.
func NewReceipts(ds store.DataStore, publisher hub.Publisher, logger zerolog.Logger) *Receipts {
	return &Receipts{store: ds, publisher: publisher, logger: logger}
}

// MarkRead advances the user's watermark to max(existing, at). Idempotent;
// the UI calls it on view-open and again for every live message received
// while the thread is the active view. Only a thread participant owns a
// receipt row in it.
func (r *Receipts) MarkRead(ctx context.Context, thread *models.Thread, userID uuid.UUID, at time.Time) (*models.ReadReceipt, error) {
	if !thread.HasParticipant(userID) {
		return nil, fmt.Errorf("%w: only participants track read state", ErrAccessDenied)
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var receipt *models.ReadReceipt
	op := func() error {
		var err error
		receipt, err = r.store.UpsertReadReceipt(ctx, thread.ID, userID, at)
		return err
	}
	if err := op(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransientStore, err)
		}
		r.logger.Warn().Err(err).Msg("retrying receipt upsert after store failure")
		if err := op(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransientStore, err)
		}
	}

	metrics.ReceiptsUpdated.Inc()
	r.publisher.Publish(hub.NewReceiptEvent(receipt))

	return receipt, nil
}

// Seen reports whether every other participant's watermark has reached the
// message. For the two-party threads the portal creates this is the familiar
// "seen by the other side"; with more participants it means seen by all.
func (r *Receipts) Seen(ctx context.Context, thread *models.Thread, msg *models.Message) (bool, error) {
	others := thread.OtherParticipants(msg.SenderID)
	if len(others) == 0 {
		return false, nil
	}

	receipts, err := r.store.ListReadReceipts(ctx, thread.ID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrTransientStore, err)
	}

	watermarks := make(map[uuid.UUID]time.Time, len(receipts))
	for _, rec := range receipts {
		watermarks[rec.UserID] = rec.LastReadAt
	}

	for _, other := range others {
		w, ok := watermarks[other]
		if !ok || w.Before(msg.CreatedAt) {
			return false, nil
		}
	}
	return true, nil
}

// SeenFlags computes Seen for a whole page of messages with one receipt
// fetch, keyed by message ID. Used by the list endpoint to annotate the
// caller's own messages.
func (r *Receipts) SeenFlags(ctx context.Context, thread *models.Thread, msgs []models.Message) (map[string]bool, error) {
	receipts, err := r.store.ListReadReceipts(ctx, thread.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransientStore, err)
	}
	watermarks := make(map[uuid.UUID]time.Time, len(receipts))
	for _, rec := range receipts {
		watermarks[rec.UserID] = rec.LastReadAt
	}

	flags := make(map[string]bool, len(msgs))
	for _, msg := range msgs {
		seen := true
		others := thread.OtherParticipants(msg.SenderID)
		if len(others) == 0 {
			seen = false
		}
		for _, other := range others {
			w, ok := watermarks[other]
			if !ok || w.Before(msg.CreatedAt) {
				seen = false
				break
			}
		}
		flags[msg.ID] = seen
	}
	return flags, nil
}

// UnreadCount counts messages from other senders newer than the user's
// watermark; with no receipt row every foreign message counts.
func (r *Receipts) UnreadCount(ctx context.Context, threadID, userID uuid.UUID) (int, error) {
	n, err := r.store.CountUnread(ctx, threadID, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTransientStore, err)
	}
	return n, nil
}
