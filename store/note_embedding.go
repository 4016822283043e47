package store

import (
	"context"

	"github.com/notectx/notectx/internal/errors"
)

// NoteEmbedding represents the vector embedding of a note's current content.
type NoteEmbedding struct {
	NoteID    int64
	Embedding []float32
	Model     string
	UpdatedTs int64
}

// FindNotesWithoutEmbedding is the find condition for notes pending
// embedding generation.
type FindNotesWithoutEmbedding struct {
	CreatorID *int32
	Limit     int
}

// NoteWithScore represents a search result with its similarity score.
type NoteWithScore struct {
	Note  *Note
	Score float32
}

// VectorSearchOptions represents the options for semantic search.
type VectorSearchOptions struct {
	CreatorID int32
	Vector    []float32
	// Threshold is the minimum cosine similarity for a note to be included.
	Threshold float32
	Limit     int
}

// KeywordSearchOptions represents the options for token substring matching
// over content, contexts and tags.
type KeywordSearchOptions struct {
	CreatorID int32
	Tokens    []string
	Limit     int
}

// FullTextSearchOptions represents the options for backend-native full-text
// search. Tokens are OR-combined.
type FullTextSearchOptions struct {
	CreatorID int32
	Tokens    []string
	Limit     int
}

// UpsertNoteEmbedding attaches an embedding to a note, replacing any
// previous vector.
func (s *Store) UpsertNoteEmbedding(ctx context.Context, upsert *NoteEmbedding) error {
	if len(upsert.Embedding) == 0 || upsert.Model == "" {
		return errors.InvalidArgument("embedding vector and model are required")
	}
	return s.driver.UpsertNoteEmbedding(ctx, upsert)
}

// FindNotesWithoutEmbedding lists notes whose embedding triple is absent,
// most recent first. The embedding runner consumes this.
func (s *Store) FindNotesWithoutEmbedding(ctx context.Context, find *FindNotesWithoutEmbedding) ([]*Note, error) {
	if find.Limit <= 0 {
		find.Limit = 100
	}
	return s.driver.FindNotesWithoutEmbedding(ctx, find)
}

// SearchNotesByVector returns notes whose cosine similarity to the query
// vector is >= threshold, ordered by similarity descending.
func (s *Store) SearchNotesByVector(ctx context.Context, opts *VectorSearchOptions) ([]*NoteWithScore, error) {
	if len(opts.Vector) == 0 {
		return nil, errors.InvalidArgument("query vector is required")
	}
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	return s.driver.SearchNotesByVector(ctx, opts)
}

// SearchNotesByKeyword matches tokens as substrings against note content,
// contexts and tags.
func (s *Store) SearchNotesByKeyword(ctx context.Context, opts *KeywordSearchOptions) ([]*Note, error) {
	if len(opts.Tokens) == 0 {
		return []*Note{}, nil
	}
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	return s.driver.SearchNotesByKeyword(ctx, opts)
}

// FullTextSearch runs the backend-native text search with OR-combined tokens.
func (s *Store) FullTextSearch(ctx context.Context, opts *FullTextSearchOptions) ([]*NoteWithScore, error) {
	if len(opts.Tokens) == 0 {
		return []*NoteWithScore{}, nil
	}
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	return s.driver.FullTextSearch(ctx, opts)
}
