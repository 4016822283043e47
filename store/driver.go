package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that a storage backend must implement. Two
// backends exist: postgres (normalized context join table, native pgvector
// similarity) and sqlite (embedded context list, application-level cosine
// fallback). Both expose identical observable behavior and are selected at
// startup by configuration, never mixed at runtime.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)
	Migrate(ctx context.Context) error

	// Note model related methods.
	CreateNote(ctx context.Context, create *Note) (*Note, error)
	ListNotes(ctx context.Context, find *FindNote) ([]*Note, error)
	ListNotesByUIDs(ctx context.Context, creatorID int32, uids []string) ([]*Note, error)
	UpdateNote(ctx context.Context, update *UpdateNote) (*Note, error)
	DeleteNote(ctx context.Context, delete *DeleteNote) error

	// Context model related methods.
	PaginateContextStats(ctx context.Context, find *FindContextStats) (*ContextStatsPage, error)
	SearchContexts(ctx context.Context, creatorID int32, term string, limit int) ([]*ContextStats, error)
	ContextExists(ctx context.Context, creatorID int32, name string) (bool, error)
	RenameContext(ctx context.Context, rename *RenameContext) error

	// NoteEmbedding model related methods.
	UpsertNoteEmbedding(ctx context.Context, upsert *NoteEmbedding) error
	FindNotesWithoutEmbedding(ctx context.Context, find *FindNotesWithoutEmbedding) ([]*Note, error)

	// Search related methods.
	SearchNotesByVector(ctx context.Context, opts *VectorSearchOptions) ([]*NoteWithScore, error)
	SearchNotesByKeyword(ctx context.Context, opts *KeywordSearchOptions) ([]*Note, error)
	FullTextSearch(ctx context.Context, opts *FullTextSearchOptions) ([]*NoteWithScore, error)
}
