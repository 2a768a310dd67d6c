package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// pgSchema is applied on startup. Statements are idempotent so repeated
// boots against the same database are safe.
const pgSchema = `
CREATE TABLE IF NOT EXISTS threads (
	id UUID PRIMARY KEY,
	participant_ids UUID[] NOT NULL,
	resolution_key TEXT NOT NULL UNIQUE,
	subject TEXT NOT NULL DEFAULT '',
	chamber_id UUID,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	thread_id UUID NOT NULL REFERENCES threads(id),
	sender_id UUID NOT NULL,
	content TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS read_receipts (
	thread_id UUID NOT NULL REFERENCES threads(id),
	user_id UUID NOT NULL,
	last_read_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (thread_id, user_id)
);

CREATE TABLE IF NOT EXISTS api_credentials (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL,
	role TEXT NOT NULL,
	chamber_id UUID,
	secret_hash TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_threads_participants ON threads USING GIN (participant_ids);
CREATE INDEX IF NOT EXISTS idx_threads_chamber ON threads(chamber_id);
CREATE INDEX IF NOT EXISTS idx_messages_thread_order ON messages(thread_id, created_at, id);
`

// RunMigrations applies the schema to the PostgreSQL database.
func RunMigrations(databaseURL string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	_, err = conn.Exec(ctx, pgSchema)
	return err
}
