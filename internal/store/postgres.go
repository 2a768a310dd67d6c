package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chamberlink/chamberlink/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const threadColumns = `id, participant_ids, subject, chamber_id, created_at, updated_at`

func scanThread(row pgx.Row) (*models.Thread, error) {
	t := &models.Thread{}
	err := row.Scan(
		&t.ID,
		&t.ParticipantIDs,
		&t.Subject,
		&t.ChamberID,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

// EnsureThread inserts the thread unless one already exists for the same
// resolution key. It returns the winning row and whether this call created it.
// Safe under concurrent resolution from both participants: the unique index on
// resolution_key makes the first writer win and losers read the winner's row.
func (s *PostgresStore) EnsureThread(ctx context.Context, t *models.Thread, resolutionKey string) (*models.Thread, bool, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO threads (id, participant_ids, resolution_key, subject, chamber_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (resolution_key) DO NOTHING
		RETURNING `+threadColumns+`
	`, t.ID, t.ParticipantIDs, resolutionKey, t.Subject, t.ChamberID, t.CreatedAt)

	created, err := scanThread(row)
	if err != nil {
		return nil, false, err
	}
	if created != nil {
		return created, true, nil
	}

	// Lost the race: the winner's row is already there.
	existing, err := s.FindThreadByKey(ctx, resolutionKey)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// FindThreadByKey retrieves a thread by its resolution key.
func (s *PostgresStore) FindThreadByKey(ctx context.Context, resolutionKey string) (*models.Thread, error) {
	return scanThread(s.pool.QueryRow(ctx, `
		SELECT `+threadColumns+` FROM threads WHERE resolution_key = $1
	`, resolutionKey))
}

// GetThread retrieves a thread by ID.
func (s *PostgresStore) GetThread(ctx context.Context, id uuid.UUID) (*models.Thread, error) {
	return scanThread(s.pool.QueryRow(ctx, `
		SELECT `+threadColumns+` FROM threads WHERE id = $1
	`, id))
}

// ListThreadsForUser retrieves every thread the user participates in, newest
// activity first, optionally scoped to a chamber.
func (s *PostgresStore) ListThreadsForUser(ctx context.Context, userID uuid.UUID, chamberID *uuid.UUID) ([]models.Thread, error) {
	query := `
		SELECT ` + threadColumns + ` FROM threads
		WHERE $1 = ANY(participant_ids)`
	args := []any{userID}
	if chamberID != nil {
		query += ` AND chamber_id = $2`
		args = append(args, *chamberID)
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var threads []models.Thread
	for rows.Next() {
		var t models.Thread
		err := rows.Scan(&t.ID, &t.ParticipantIDs, &t.Subject, &t.ChamberID, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return nil, err
		}
		threads = append(threads, t)
	}
	return threads, rows.Err()
}

// TouchThread advances the thread's updated_at. The GREATEST guard keeps the
// column monotonic under concurrent appends.
func (s *PostgresStore) TouchThread(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE threads SET updated_at = GREATEST(updated_at, $2) WHERE id = $1
	`, id, at)
	return err
}

// InsertMessage appends a message row. Re-inserting the same ULID is a no-op,
// which makes the append retry path idempotent.
func (s *PostgresStore) InsertMessage(ctx context.Context, m *models.Message) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, thread_id, sender_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, m.ID, m.ThreadID, m.SenderID, m.Content, m.CreatedAt)
	return err
}

// ListMessages returns up to limit messages ending at the cursor (exclusive),
// ordered oldest to newest. Pages are taken from the newest end of the log;
// limit <= 0 returns the whole sequence.
func (s *PostgresStore) ListMessages(ctx context.Context, threadID uuid.UUID, before *Cursor, limit int) ([]models.Message, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}

	var rows pgx.Rows
	var err error
	if before != nil {
		rows, err = s.pool.Query(ctx, `
			SELECT id, thread_id, sender_id, content, created_at
			FROM messages
			WHERE thread_id = $1 AND (created_at, id) < ($2, $3)
			ORDER BY created_at DESC, id DESC
			LIMIT $4
		`, threadID, before.CreatedAt, before.ID, lim)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT id, thread_id, sender_id, content, created_at
			FROM messages
			WHERE thread_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		`, threadID, lim)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs, err := collectMessages(rows)
	if err != nil {
		return nil, err
	}
	reverseMessages(msgs)
	return msgs, nil
}

// LatestMessage returns the newest message in the thread, or nil if empty.
func (s *PostgresStore) LatestMessage(ctx context.Context, threadID uuid.UUID) (*models.Message, error) {
	m := &models.Message{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, thread_id, sender_id, content, created_at
		FROM messages
		WHERE thread_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, threadID).Scan(&m.ID, &m.ThreadID, &m.SenderID, &m.Content, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// CountMessages returns the number of messages in the thread.
func (s *PostgresStore) CountMessages(ctx context.Context, threadID uuid.UUID) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM messages WHERE thread_id = $1
	`, threadID).Scan(&n)
	return n, err
}

// UpsertReadReceipt merges the incoming watermark with max(existing, incoming)
// so a receipt never regresses, and returns the resulting row.
func (s *PostgresStore) UpsertReadReceipt(ctx context.Context, threadID, userID uuid.UUID, at time.Time) (*models.ReadReceipt, error) {
	r := &models.ReadReceipt{ThreadID: threadID, UserID: userID}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO read_receipts (thread_id, user_id, last_read_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (thread_id, user_id)
		DO UPDATE SET last_read_at = GREATEST(read_receipts.last_read_at, EXCLUDED.last_read_at)
		RETURNING last_read_at
	`, threadID, userID, at).Scan(&r.LastReadAt)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GetReadReceipt retrieves the watermark for (thread, user).
func (s *PostgresStore) GetReadReceipt(ctx context.Context, threadID, userID uuid.UUID) (*models.ReadReceipt, error) {
	r := &models.ReadReceipt{ThreadID: threadID, UserID: userID}
	err := s.pool.QueryRow(ctx, `
		SELECT last_read_at FROM read_receipts WHERE thread_id = $1 AND user_id = $2
	`, threadID, userID).Scan(&r.LastReadAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return r, nil
}

// ListReadReceipts retrieves all watermarks for a thread.
func (s *PostgresStore) ListReadReceipts(ctx context.Context, threadID uuid.UUID) ([]models.ReadReceipt, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, last_read_at FROM read_receipts WHERE thread_id = $1
	`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var receipts []models.ReadReceipt
	for rows.Next() {
		r := models.ReadReceipt{ThreadID: threadID}
		if err := rows.Scan(&r.UserID, &r.LastReadAt); err != nil {
			return nil, err
		}
		receipts = append(receipts, r)
	}
	return receipts, rows.Err()
}

// CountUnread counts messages from other senders newer than the user's
// watermark; with no receipt row every foreign message is unread.
func (s *PostgresStore) CountUnread(ctx context.Context, threadID, userID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM messages m
		WHERE m.thread_id = $1
		  AND m.sender_id <> $2
		  AND m.created_at > COALESCE(
			(SELECT last_read_at FROM read_receipts WHERE thread_id = $1 AND user_id = $2),
			'epoch'::timestamptz)
	`, threadID, userID).Scan(&n)
	return n, err
}

// CreateCredential stores a new API credential.
func (s *PostgresStore) CreateCredential(ctx context.Context, c *models.Credential) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO api_credentials (id, user_id, role, chamber_id, secret_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.UserID, c.Role, c.ChamberID, c.SecretHash, c.CreatedAt)
	return err
}

// GetCredential retrieves an API credential by ID.
func (s *PostgresStore) GetCredential(ctx context.Context, id uuid.UUID) (*models.Credential, error) {
	c := &models.Credential{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, role, chamber_id, secret_hash, created_at
		FROM api_credentials WHERE id = $1
	`, id).Scan(&c.ID, &c.UserID, &c.Role, &c.ChamberID, &c.SecretHash, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

func collectMessages(rows pgx.Rows) ([]models.Message, error) {
	var msgs []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.SenderID, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func reverseMessages(msgs []models.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
