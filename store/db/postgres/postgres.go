package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/notectx/notectx/internal/profile"
	"github.com/notectx/notectx/store"
)

// ============================================================================
// POSTGRESQL SUPPORT (reference backend)
// ============================================================================
// PostgreSQL is the reference backend. Contexts live in a normalized join
// table, so stats aggregation is a single indexed GROUP BY, and semantic
// search is a single ranked query against the pgvector extension's native
// vector type. The sqlite backend reproduces the same observable behavior
// with a denormalized layout and an application-level similarity scan.
// ============================================================================

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	db, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database: %s", profile.DSN)
	}

	// Single-user corpus: a small pool keeps resource usage low while
	// staying responsive.
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(2 * time.Hour)
	db.SetConnMaxIdleTime(15 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}

	return &DB{db: db, profile: profile}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) IsInitialized(ctx context.Context) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_catalog = current_database() AND table_name = 'note' AND table_type = 'BASE TABLE')",
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check if database is initialized")
	}
	return exists, nil
}

const schemaTemplate = `
CREATE TABLE IF NOT EXISTS note (
	id BIGSERIAL PRIMARY KEY,
	uid TEXT NOT NULL UNIQUE,
	creator_id INTEGER NOT NULL,
	created_ts BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::bigint,
	updated_ts BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::bigint,
	content TEXT NOT NULL,
	type TEXT NOT NULL DEFAULT 'note',
	status TEXT NOT NULL DEFAULT '',
	deadline_ts BIGINT,
	key_context TEXT NOT NULL DEFAULT '',
	suggested_contexts JSONB NOT NULL DEFAULT '[]',
	tags JSONB NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_note_creator_created ON note (creator_id, created_ts);

CREATE TABLE IF NOT EXISTS context (
	id SERIAL PRIMARY KEY,
	creator_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	UNIQUE (creator_id, name)
);

CREATE TABLE IF NOT EXISTS note_context (
	note_id BIGINT NOT NULL REFERENCES note (id) ON DELETE CASCADE,
	context_id INTEGER NOT NULL REFERENCES context (id) ON DELETE CASCADE,
	PRIMARY KEY (note_id, context_id)
);

CREATE INDEX IF NOT EXISTS idx_note_context_context ON note_context (context_id);

CREATE TABLE IF NOT EXISTS note_embedding (
	note_id BIGINT PRIMARY KEY REFERENCES note (id) ON DELETE CASCADE,
	embedding vector(%d) NOT NULL,
	model TEXT NOT NULL,
	updated_ts BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::bigint
);
`

// Migrate creates the schema. The pgvector extension is required; without
// it this backend cannot serve semantic search.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return errors.Wrap(err, "failed to create pgvector extension")
	}
	schema := fmt.Sprintf(schemaTemplate, d.profile.AIEmbeddingDimensions)
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to migrate schema")
	}
	return nil
}
