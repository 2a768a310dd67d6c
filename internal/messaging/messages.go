package messaging

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/chamberlink/chamberlink/internal/auth"
	"github.com/chamberlink/chamberlink/internal/hub"
	"github.com/chamberlink/chamberlink/internal/metrics"
	"github.com/chamberlink/chamberlink/internal/models"
	"github.com/chamberlink/chamberlink/internal/store"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
	maxContentBytes = 8192

	// appendStripes sizes the per-thread lock table. Appends to different
	// threads never contend beyond hash collisions.
	appendStripes = 128
)

// Messages is the message store service: the single serialization point for
// appends within a thread.
type Messages struct {
	store     store.DataStore
	publisher hub.Publisher
	logger    zerolog.Logger

	locks [appendStripes]sync.Mutex
}

// NewMessages creates the message service.
func NewMessages(ds store.DataStore, publisher hub.Publisher, logger zerolog.Logger) *Messages {
	return &Messages{store: ds, publisher: publisher, logger: logger}
}

func (m *Messages) lockFor(threadID uuid.UUID) *sync.Mutex {
	h := fnv.New32a()
	h.Write(threadID[:])
	return &m.locks[h.Sum32()%appendStripes]
}

// Append validates and persists a new message. The per-thread lock plus the
// max(now, latest+1µs) timestamp rule gives messages a total order by
// (created_at, id) with server-assigned, strictly increasing timestamps.
// A transient store failure is retried once with the same message ID and
// timestamp; the ULID primary key makes the replay a no-op if the first
// attempt actually landed.
func (m *Messages) Append(ctx context.Context, senderID, threadID uuid.UUID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)

	thread, err := m.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransientStore, err)
	}
	if thread == nil || !thread.HasParticipant(senderID) {
		return nil, ErrInvalidSender
	}
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if len(content) > maxContentBytes {
		return nil, fmt.Errorf("%w: content exceeds %d bytes", ErrEmptyMessage, maxContentBytes)
	}

	lock := m.lockFor(threadID)
	lock.Lock()
	defer lock.Unlock()

	latest, err := m.store.LatestMessage(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransientStore, err)
	}

	ts := time.Now().UTC()
	if latest != nil && !ts.After(latest.CreatedAt) {
		ts = latest.CreatedAt.Add(time.Microsecond)
	}

	msg := &models.Message{
		ID:        ulid.Make().String(),
		ThreadID:  threadID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: ts,
	}

	if err := m.retryOnce(ctx, func() error { return m.store.InsertMessage(ctx, msg) }); err != nil {
		return nil, err
	}

	// The updated_at bump drives conversation sort order. The message is
	// durable at this point, so a failed bump is logged rather than turned
	// into a user-visible send failure.
	if err := m.store.TouchThread(ctx, threadID, ts); err != nil {
		m.logger.Warn().Err(err).Str("thread_id", threadID.String()).Msg("failed to bump thread activity")
	}

	metrics.MessagesAppended.Inc()
	m.publisher.Publish(hub.NewMessageEvent(msg))

	return msg, nil
}

// List returns up to limit messages ending just before the cursor, ordered
// oldest to newest. Pages are taken from the newest end of the log; the
// cursor is an exclusive upper bound on (created_at, id).
func (m *Messages) List(ctx context.Context, caller auth.Identity, thread *models.Thread, before *store.Cursor, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	msgs, err := m.store.ListMessages(ctx, thread.ID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransientStore, err)
	}
	return msgs, nil
}

func (m *Messages) retryOnce(ctx context.Context, op func() error) error {
	err := op()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ErrTransientStore, err)
	}
	metrics.AppendRetries.Inc()
	m.logger.Warn().Err(err).Msg("retrying append after store failure")
	if err := op(); err != nil {
		return fmt.Errorf("%w: %v", ErrTransientStore, err)
	}
	return nil
}
