package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const schemaLockKey int64 = 2026101601

// Store implements the meeting and participant repositories on PostgreSQL.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS participants (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	voice_profile JSONB,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS meetings (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	language TEXT NOT NULL,
	status TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	ended_at TIMESTAMPTZ,
	doc_url TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_meetings_started_at ON meetings(started_at DESC);

CREATE TABLE IF NOT EXISTS meeting_participants (
	meeting_id TEXT NOT NULL REFERENCES meetings(id) ON DELETE CASCADE,
	participant_id TEXT NOT NULL REFERENCES participants(id),
	position INT NOT NULL,
	PRIMARY KEY (meeting_id, participant_id)
);

CREATE TABLE IF NOT EXISTS transcript_segments (
	seq BIGSERIAL PRIMARY KEY,
	id TEXT NOT NULL UNIQUE,
	meeting_id TEXT NOT NULL REFERENCES meetings(id) ON DELETE CASCADE,
	participant_id TEXT,
	speaker_label TEXT NOT NULL,
	diarization_label TEXT NOT NULL DEFAULT '',
	text TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	timestamp_ms BIGINT NOT NULL,
	is_overlapping BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transcript_segments_meeting ON transcript_segments(meeting_id, seq);

CREATE TABLE IF NOT EXISTS meeting_artifacts (
	id TEXT PRIMARY KEY,
	meeting_id TEXT NOT NULL UNIQUE REFERENCES meetings(id) ON DELETE CASCADE,
	summary TEXT NOT NULL,
	protocol_draft TEXT NOT NULL,
	key_topics JSONB NOT NULL DEFAULT '[]'::jsonb,
	decisions JSONB NOT NULL DEFAULT '[]'::jsonb,
	action_items JSONB NOT NULL DEFAULT '[]'::jsonb,
	open_questions JSONB NOT NULL DEFAULT '[]'::jsonb,
	risks JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS export_records (
	id TEXT PRIMARY KEY,
	meeting_id TEXT NOT NULL REFERENCES meetings(id) ON DELETE CASCADE,
	provider TEXT NOT NULL,
	status TEXT NOT NULL,
	external_id TEXT NOT NULL DEFAULT '',
	url TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	retries INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_export_records_meeting ON export_records(meeting_id, created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
