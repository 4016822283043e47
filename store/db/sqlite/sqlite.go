package sqlite

import (
	"context"
	"database/sql"
	"log/slog"

	// Import the pure-Go SQLite driver.
	_ "modernc.org/sqlite"
	"github.com/pkg/errors"

	"github.com/notectx/notectx/internal/profile"
	"github.com/notectx/notectx/store"
)

// ============================================================================
// SQLITE SUPPORT (single-file backend)
// ============================================================================
// SQLite is the zero-setup backend for personal installs. It stores the
// context list and tags denormalized on the note row and computes vector
// similarity in application code, so:
//   - context stats are O(notes) per page, not an indexed count
//   - semantic search is O(notes x dimension) per query
// Both are acceptable for a single-user corpus and documented limitations,
// not bugs. For larger corpora use the postgres backend.
// ============================================================================

type DB struct {
	db      *sql.DB
	profile *profile.Profile

	// ftsEnabled records whether the FTS5 virtual table could be created.
	// When false, full-text search degrades to LIKE matching.
	ftsEnabled bool
}

// NewDB opens the SQLite database in WAL mode.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	db, err := sql.Open("sqlite", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database: %s", profile.DSN)
	}

	// One writer, many readers. WAL keeps readers unblocked during the
	// rename-merge transaction.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to enable WAL mode")
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to enable foreign keys")
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
		"SELECT EXISTS (SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = 'note')",
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check if database is initialized")
	}
	return exists, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS note (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	uid TEXT NOT NULL UNIQUE,
	creator_id INTEGER NOT NULL,
	created_ts BIGINT NOT NULL DEFAULT (strftime('%s', 'now')),
	updated_ts BIGINT NOT NULL DEFAULT (strftime('%s', 'now')),
	content TEXT NOT NULL,
	type TEXT NOT NULL DEFAULT 'note',
	status TEXT NOT NULL DEFAULT '',
	deadline_ts BIGINT,
	key_context TEXT NOT NULL DEFAULT '',
	contexts TEXT NOT NULL DEFAULT '[]',
	suggested_contexts TEXT NOT NULL DEFAULT '[]',
	tags TEXT NOT NULL DEFAULT '[]',
	embedding BLOB,
	embedding_model TEXT,
	embedding_ts BIGINT
);

CREATE INDEX IF NOT EXISTS idx_note_creator_created ON note (creator_id, created_ts);
CREATE INDEX IF NOT EXISTS idx_note_creator_key_context ON note (creator_id, key_context);
`

const ftsSchema = `
CREATE VIRTUAL TABLE IF NOT EXISTS note_fts USING fts5(content, content='note', content_rowid='id');

CREATE TRIGGER IF NOT EXISTS note_fts_insert AFTER INSERT ON note BEGIN
	INSERT INTO note_fts (rowid, content) VALUES (new.id, new.content);
END;
CREATE TRIGGER IF NOT EXISTS note_fts_delete AFTER DELETE ON note BEGIN
	INSERT INTO note_fts (note_fts, rowid, content) VALUES ('delete', old.id, old.content);
END;
CREATE TRIGGER IF NOT EXISTS note_fts_update AFTER UPDATE OF content ON note BEGIN
	INSERT INTO note_fts (note_fts, rowid, content) VALUES ('delete', old.id, old.content);
	INSERT INTO note_fts (rowid, content) VALUES (new.id, new.content);
END;
`

// Migrate creates the schema. The FTS5 virtual table is best-effort: some
// builds lack the extension, in which case full-text search falls back to
// LIKE matching.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to migrate schema")
	}

	if _, err := d.db.ExecContext(ctx, ftsSchema); err != nil {
		slog.Warn("FTS5 unavailable, full-text search degrades to LIKE", "error", err)
		d.ftsEnabled = false
		return nil
	}
	d.ftsEnabled = true
	return nil
}
