package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/chamberlink/chamberlink/internal/models"
)

// Cursor is an exclusive upper bound on (created_at, id) for message pages.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// DataStore defines the persistence contract required by the messaging core:
// atomic per-row upserts, range queries by (thread_id, created_at, id) and
// find-or-create thread resolution. Both PostgresStore and SQLiteStore
// implement this interface.
//
// Lookup methods return (nil, nil) when the row does not exist.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Thread operations
	EnsureThread(ctx context.Context, t *models.Thread, resolutionKey string) (*models.Thread, bool, error)
	FindThreadByKey(ctx context.Context, resolutionKey string) (*models.Thread, error)
	GetThread(ctx context.Context, id uuid.UUID) (*models.Thread, error)
	ListThreadsForUser(ctx context.Context, userID uuid.UUID, chamberID *uuid.UUID) ([]models.Thread, error)
	TouchThread(ctx context.Context, id uuid.UUID, at time.Time) error

	// Message operations
	InsertMessage(ctx context.Context, m *models.Message) error
	ListMessages(ctx context.Context, threadID uuid.UUID, before *Cursor, limit int) ([]models.Message, error)
	LatestMessage(ctx context.Context, threadID uuid.UUID) (*models.Message, error)
	CountMessages(ctx context.Context, threadID uuid.UUID) (int64, error)

	// Read receipt operations
	UpsertReadReceipt(ctx context.Context, threadID, userID uuid.UUID, at time.Time) (*models.ReadReceipt, error)
	GetReadReceipt(ctx context.Context, threadID, userID uuid.UUID) (*models.ReadReceipt, error)
	ListReadReceipts(ctx context.Context, threadID uuid.UUID) ([]models.ReadReceipt, error)
	CountUnread(ctx context.Context, threadID, userID uuid.UUID) (int, error)

	// Credential operations
	CreateCredential(ctx context.Context, c *models.Credential) error
	GetCredential(ctx context.Context, id uuid.UUID) (*models.Credential, error)
}
