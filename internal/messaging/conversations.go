package messaging

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/chamberlink/chamberlink/internal/auth"
	"github.com/chamberlink/chamberlink/internal/models"
	"github.com/chamberlink/chamberlink/internal/store"
)

// Conversations composes the thread registry, message store and receipt
// tracker into the per-user inbox view. It is a pure read composition with
// no state of its own.
type Conversations struct {
	store    store.DataStore
	registry *Registry
	receipts *Receipts
}

// NewConversations creates the conversation list aggregator.
func NewConversations(ds store.DataStore, registry *Registry, receipts *Receipts) *Conversations {
	return &Conversations{store: ds, registry: registry, receipts: receipts}
}

// List returns the user's conversations sorted by latest activity, each
// annotated with the counterpart participants, the newest message and the
// unread count.
func (c *Conversations) List(ctx context.Context, caller auth.Identity, userID uuid.UUID) ([]models.Conversation, error) {
	threads, err := c.registry.ListForUser(ctx, caller, userID, nil)
	if err != nil {
		return nil, err
	}

	conversations := make([]models.Conversation, 0, len(threads))
	for _, thread := range threads {
		last, err := c.store.LatestMessage(ctx, thread.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransientStore, err)
		}
		unread, err := c.receipts.UnreadCount(ctx, thread.ID, userID)
		if err != nil {
			return nil, err
		}

		conversations = append(conversations, models.Conversation{
			Thread:       thread,
			OtherUserIDs: thread.OtherParticipants(userID),
			LastMessage:  last,
			UnreadCount:  unread,
			LastActivity: thread.UpdatedAt,
		})
	}
	return conversations, nil
}
