package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/chamberlink/chamberlink/internal/models"
)

// SQLiteStore handles SQLite database operations. It is the development
// fallback used when no DATABASE_URL is configured; timestamps are stored
// as unix microseconds so ordering comparisons stay exact.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/chamberlink.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/chamberlink.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS threads (
		id TEXT PRIMARY KEY,
		participant_ids TEXT NOT NULL,
		resolution_key TEXT NOT NULL UNIQUE,
		subject TEXT NOT NULL DEFAULT '',
		chamber_id TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS thread_participants (
		thread_id TEXT NOT NULL REFERENCES threads(id),
		user_id TEXT NOT NULL,
		PRIMARY KEY (thread_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		thread_id TEXT NOT NULL REFERENCES threads(id),
		sender_id TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS read_receipts (
		thread_id TEXT NOT NULL REFERENCES threads(id),
		user_id TEXT NOT NULL,
		last_read_at INTEGER NOT NULL,
		PRIMARY KEY (thread_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS api_credentials (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL,
		chamber_id TEXT,
		secret_hash TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_participants_user ON thread_participants(user_id);
	CREATE INDEX IF NOT EXISTS idx_messages_thread_order ON messages(thread_id, created_at, id);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func encodeParticipants(ids []uuid.UUID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ",")
}

func decodeParticipants(raw string) ([]uuid.UUID, error) {
	parts := strings.Split(raw, ",")
	ids := make([]uuid.UUID, 0, len(parts))
	for _, p := range parts {
		id, err := uuid.Parse(p)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func usec(t time.Time) int64 { return t.UTC().UnixMicro() }

func fromUsec(us int64) time.Time { return time.UnixMicro(us).UTC() }

func nullUUID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func (s *SQLiteStore) scanThread(row *sql.Row) (*models.Thread, error) {
	var (
		t            models.Thread
		id, raw      string
		chamber      sql.NullString
		created, upd int64
	)
	err := row.Scan(&id, &raw, &t.Subject, &chamber, &created, &upd)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	t.ParticipantIDs, err = decodeParticipants(raw)
	if err != nil {
		return nil, err
	}
	if chamber.Valid {
		cid, err := uuid.Parse(chamber.String)
		if err != nil {
			return nil, err
		}
		t.ChamberID = &cid
	}
	t.CreatedAt = fromUsec(created)
	t.UpdatedAt = fromUsec(upd)
	return &t, nil
}

const sqliteThreadColumns = `id, participant_ids, subject, chamber_id, created_at, updated_at`

// EnsureThread inserts the thread unless one exists for the resolution key.
func (s *SQLiteStore) EnsureThread(ctx context.Context, t *models.Thread, resolutionKey string) (*models.Thread, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO threads (id, participant_ids, resolution_key, subject, chamber_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, t.ID.String(), encodeParticipants(t.ParticipantIDs), resolutionKey, t.Subject,
		nullUUID(t.ChamberID), usec(t.CreatedAt), usec(t.CreatedAt))
	if err != nil {
		return nil, false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	createdHere := n > 0

	if createdHere {
		for _, uid := range t.ParticipantIDs {
			_, err = tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO thread_participants (thread_id, user_id) VALUES (?, ?)
			`, t.ID.String(), uid.String())
			if err != nil {
				return nil, false, err
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}

	winner, err := s.FindThreadByKey(ctx, resolutionKey)
	if err != nil {
		return nil, false, err
	}
	return winner, createdHere, nil
}

// FindThreadByKey retrieves a thread by its resolution key.
func (s *SQLiteStore) FindThreadByKey(ctx context.Context, resolutionKey string) (*models.Thread, error) {
	return s.scanThread(s.db.QueryRowContext(ctx, `
		SELECT `+sqliteThreadColumns+` FROM threads WHERE resolution_key = ?
	`, resolutionKey))
}

// GetThread retrieves a thread by ID.
func (s *SQLiteStore) GetThread(ctx context.Context, id uuid.UUID) (*models.Thread, error) {
	return s.scanThread(s.db.QueryRowContext(ctx, `
		SELECT `+sqliteThreadColumns+` FROM threads WHERE id = ?
	`, id.String()))
}

// ListThreadsForUser retrieves threads the user participates in.
func (s *SQLiteStore) ListThreadsForUser(ctx context.Context, userID uuid.UUID, chamberID *uuid.UUID) ([]models.Thread, error) {
	query := `
		SELECT t.id, t.participant_ids, t.subject, t.chamber_id, t.created_at, t.updated_at
		FROM threads t
		JOIN thread_participants p ON p.thread_id = t.id
		WHERE p.user_id = ?`
	args := []any{userID.String()}
	if chamberID != nil {
		query += ` AND t.chamber_id = ?`
		args = append(args, chamberID.String())
	}
	query += ` ORDER BY t.updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var threads []models.Thread
	for rows.Next() {
		var (
			t            models.Thread
			id, raw      string
			chamber      sql.NullString
			created, upd int64
		)
		if err := rows.Scan(&id, &raw, &t.Subject, &chamber, &created, &upd); err != nil {
			return nil, err
		}
		if t.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if t.ParticipantIDs, err = decodeParticipants(raw); err != nil {
			return nil, err
		}
		if chamber.Valid {
			cid, err := uuid.Parse(chamber.String)
			if err != nil {
				return nil, err
			}
			t.ChamberID = &cid
		}
		t.CreatedAt = fromUsec(created)
		t.UpdatedAt = fromUsec(upd)
		threads = append(threads, t)
	}
	return threads, rows.Err()
}

// TouchThread advances updated_at, never backwards.
func (s *SQLiteStore) TouchThread(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE threads SET updated_at = MAX(updated_at, ?) WHERE id = ?
	`, usec(at), id.String())
	return err
}

// InsertMessage appends a message row; replays of the same ULID are no-ops.
func (s *SQLiteStore) InsertMessage(ctx context.Context, m *models.Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO messages (id, thread_id, sender_id, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, m.ID, m.ThreadID.String(), m.SenderID.String(), m.Content, usec(m.CreatedAt))
	return err
}

// ListMessages returns up to limit messages before the cursor, oldest first.
// limit <= 0 returns the whole sequence.
func (s *SQLiteStore) ListMessages(ctx context.Context, threadID uuid.UUID, before *Cursor, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = -1 // sqlite: negative LIMIT means unlimited
	}
	var (
		rows *sql.Rows
		err  error
	)
	if before != nil {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, thread_id, sender_id, content, created_at
			FROM messages
			WHERE thread_id = ? AND (created_at, id) < (?, ?)
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		`, threadID.String(), usec(before.CreatedAt), before.ID, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, thread_id, sender_id, content, created_at
			FROM messages
			WHERE thread_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		`, threadID.String(), limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs, err := s.collectMessages(rows)
	if err != nil {
		return nil, err
	}
	reverseMessages(msgs)
	return msgs, nil
}

// LatestMessage returns the newest message in the thread, or nil if empty.
func (s *SQLiteStore) LatestMessage(ctx context.Context, threadID uuid.UUID) (*models.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, thread_id, sender_id, content, created_at
		FROM messages
		WHERE thread_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, threadID.String())

	m, err := scanSQLiteMessage(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// CountMessages returns the number of messages in the thread.
func (s *SQLiteStore) CountMessages(ctx context.Context, threadID uuid.UUID) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages WHERE thread_id = ?
	`, threadID.String()).Scan(&n)
	return n, err
}

// UpsertReadReceipt merges the incoming watermark with max(existing, incoming).
func (s *SQLiteStore) UpsertReadReceipt(ctx context.Context, threadID, userID uuid.UUID, at time.Time) (*models.ReadReceipt, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO read_receipts (thread_id, user_id, last_read_at)
		VALUES (?, ?, ?)
		ON CONFLICT (thread_id, user_id)
		DO UPDATE SET last_read_at = MAX(last_read_at, excluded.last_read_at)
	`, threadID.String(), userID.String(), usec(at))
	if err != nil {
		return nil, err
	}
	return s.GetReadReceipt(ctx, threadID, userID)
}

// GetReadReceipt retrieves the watermark for (thread, user).
func (s *SQLiteStore) GetReadReceipt(ctx context.Context, threadID, userID uuid.UUID) (*models.ReadReceipt, error) {
	var us int64
	err := s.db.QueryRowContext(ctx, `
		SELECT last_read_at FROM read_receipts WHERE thread_id = ? AND user_id = ?
	`, threadID.String(), userID.String()).Scan(&us)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &models.ReadReceipt{ThreadID: threadID, UserID: userID, LastReadAt: fromUsec(us)}, nil
}

// ListReadReceipts retrieves all watermarks for a thread.
func (s *SQLiteStore) ListReadReceipts(ctx context.Context, threadID uuid.UUID) ([]models.ReadReceipt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, last_read_at FROM read_receipts WHERE thread_id = ?
	`, threadID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var receipts []models.ReadReceipt
	for rows.Next() {
		var (
			uid string
			us  int64
		)
		if err := rows.Scan(&uid, &us); err != nil {
			return nil, err
		}
		userID, err := uuid.Parse(uid)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, models.ReadReceipt{
			ThreadID:   threadID,
			UserID:     userID,
			LastReadAt: fromUsec(us),
		})
	}
	return receipts, rows.Err()
}

// CountUnread counts foreign messages newer than the user's watermark.
func (s *SQLiteStore) CountUnread(ctx context.Context, threadID, userID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages m
		WHERE m.thread_id = ?
		  AND m.sender_id <> ?
		  AND m.created_at > COALESCE(
			(SELECT last_read_at FROM read_receipts WHERE thread_id = m.thread_id AND user_id = ?), 0)
	`, threadID.String(), userID.String(), userID.String()).Scan(&n)
	return n, err
}

// CreateCredential stores a new API credential.
func (s *SQLiteStore) CreateCredential(ctx context.Context, c *models.Credential) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_credentials (id, user_id, role, chamber_id, secret_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.ID.String(), c.UserID.String(), c.Role, nullUUID(c.ChamberID), c.SecretHash, usec(c.CreatedAt))
	return err
}

// GetCredential retrieves an API credential by ID.
func (s *SQLiteStore) GetCredential(ctx context.Context, id uuid.UUID) (*models.Credential, error) {
	var (
		c            models.Credential
		cid, uid     string
		chamber      sql.NullString
		created      int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, role, chamber_id, secret_hash, created_at
		FROM api_credentials WHERE id = ?
	`, id.String()).Scan(&cid, &uid, &c.Role, &chamber, &c.SecretHash, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if c.ID, err = uuid.Parse(cid); err != nil {
		return nil, err
	}
	if c.UserID, err = uuid.Parse(uid); err != nil {
		return nil, err
	}
	if chamber.Valid {
		ch, err := uuid.Parse(chamber.String)
		if err != nil {
			return nil, err
		}
		c.ChamberID = &ch
	}
	c.CreatedAt = fromUsec(created)
	return &c, nil
}

func (s *SQLiteStore) collectMessages(rows *sql.Rows) ([]models.Message, error) {
	var msgs []models.Message
	for rows.Next() {
		m, err := scanSQLiteMessage(rows.Scan)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

func scanSQLiteMessage(scan func(...any) error) (*models.Message, error) {
	var (
		m        models.Message
		tid, sid string
		created  int64
	)
	if err := scan(&m.ID, &tid, &sid, &m.Content, &created); err != nil {
		return nil, err
	}
	var err error
	if m.ThreadID, err = uuid.Parse(tid); err != nil {
		return nil, err
	}
	if m.SenderID, err = uuid.Parse(sid); err != nil {
		return nil, err
	}
	m.CreatedAt = fromUsec(created)
	return &m, nil
}
