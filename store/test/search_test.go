package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/notectx/notectx/store"
)

func TestNoteEmbeddingLifecycle(t *testing.T) {
	runOnAllBackends(t, func(t *testing.T, ts *store.Store) {
		ctx := context.Background()
		creator := nextCreatorID()

		note := mustCreate(t, ts, &store.Note{CreatorID: creator, Content: "embed me", KeyContext: "t"})

		pending, err := ts.FindNotesWithoutEmbedding(ctx, &store.FindNotesWithoutEmbedding{CreatorID: &creator})
		require.NoError(t, err)
		require.Len(t, pending, 1)

		err = ts.UpsertNoteEmbedding(ctx, &store.NoteEmbedding{
			NoteID:    note.ID,
			Embedding: []float32{1, 0, 0, 0},
			Model:     "test-model",
		})
		require.NoError(t, err)

		pending, err = ts.FindNotesWithoutEmbedding(ctx, &store.FindNotesWithoutEmbedding{CreatorID: &creator})
		require.NoError(t, err)
		require.Empty(t, pending)

		fetched, err := ts.GetNote(ctx, &store.FindNote{UID: &note.UID, CreatorID: &creator})
		require.NoError(t, err)
		require.True(t, fetched.HasEmbedding())
		require.Equal(t, "test-model", fetched.EmbeddingModel)

		// A content edit invalidates the embedding.
		newContent := "different text"
		updated, err := ts.UpdateNote(ctx, &store.UpdateNote{
			UID:       note.UID,
			CreatorID: creator,
			Content:   &newContent,
		})
		require.NoError(t, err)
		require.False(t, updated.HasEmbedding())

		pending, err = ts.FindNotesWithoutEmbedding(ctx, &store.FindNotesWithoutEmbedding{CreatorID: &creator})
		require.NoError(t, err)
		require.Len(t, pending, 1)
	})
}

func TestSearchNotesByVector(t *testing.T) {
	runOnAllBackends(t, func(t *testing.T, ts *store.Store) {
		ctx := context.Background()
		creator := nextCreatorID()

		near := mustCreate(t, ts, &store.Note{CreatorID: creator, Content: "near", KeyContext: "t"})
		far := mustCreate(t, ts, &store.Note{CreatorID: creator, Content: "far", KeyContext: "t"})
		// A note without an embedding never shows up in vector results.
		mustCreate(t, ts, &store.Note{CreatorID: creator, Content: "no vector", KeyContext: "t"})

		require.NoError(t, ts.UpsertNoteEmbedding(ctx, &store.NoteEmbedding{
			NoteID: near.ID, Embedding: []float32{1, 0, 0, 0}, Model: "test-model",
		}))
		require.NoError(t, ts.UpsertNoteEmbedding(ctx, &store.NoteEmbedding{
			NoteID: far.ID, Embedding: []float32{0, 1, 0, 0}, Model: "test-model",
		}))

		// High threshold only keeps the aligned vector.
		results, err := ts.SearchNotesByVector(ctx, &store.VectorSearchOptions{
			CreatorID: creator,
			Vector:    []float32{1, 0, 0, 0},
			Threshold: 0.7,
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		require.Equal(t, near.UID, results[0].Note.UID)
		require.InDelta(t, 1.0, float64(results[0].Score), 0.001)

		// Threshold zero admits the orthogonal vector too, ranked below.
		results, err = ts.SearchNotesByVector(ctx, &store.VectorSearchOptions{
			CreatorID: creator,
			Vector:    []float32{1, 0, 0, 0},
			Threshold: 0,
		})
		require.NoError(t, err)
		require.Len(t, results, 2)
		require.Equal(t, near.UID, results[0].Note.UID)
		require.GreaterOrEqual(t, results[0].Score, results[1].Score)
	})
}

func TestSearchNotesByKeyword(t *testing.T) {
	runOnAllBackends(t, func(t *testing.T, ts *store.Store) {
		ctx := context.Background()
		creator := nextCreatorID()

		mustCreate(t, ts, &store.Note{CreatorID: creator, Content: "the wifi password is hunter2", KeyContext: "home"})
		mustCreate(t, ts, &store.Note{CreatorID: creator, Content: "groceries for saturday", KeyContext: "home"})
		mustCreate(t, ts, &store.Note{CreatorID: creator, Content: "untagged text", KeyContext: "networking"})

		// Content match, case-insensitive.
		notes, err := ts.SearchNotesByKeyword(ctx, &store.KeywordSearchOptions{
			CreatorID: creator,
			Tokens:    []string{"WIFI"},
		})
		require.NoError(t, err)
		require.Len(t, notes, 1)
		require.Contains(t, notes[0].Content, "wifi")

		// Context names are searched too.
		notes, err = ts.SearchNotesByKeyword(ctx, &store.KeywordSearchOptions{
			CreatorID: creator,
			Tokens:    []string{"networking"},
		})
		require.NoError(t, err)
		require.Len(t, notes, 1)

		// Tokens are OR-combined.
		notes, err = ts.SearchNotesByKeyword(ctx, &store.KeywordSearchOptions{
			CreatorID: creator,
			Tokens:    []string{"wifi", "groceries"},
		})
		require.NoError(t, err)
		require.Len(t, notes, 2)

		// Empty token list returns nothing rather than everything.
		notes, err = ts.SearchNotesByKeyword(ctx, &store.KeywordSearchOptions{
			CreatorID: creator,
			Tokens:    nil,
		})
		require.NoError(t, err)
		require.Empty(t, notes)
	})
}

func TestFullTextSearch(t *testing.T) {
	runOnAllBackends(t, func(t *testing.T, ts *store.Store) {
		ctx := context.Background()
		creator := nextCreatorID()

		mustCreate(t, ts, &store.Note{CreatorID: creator, Content: "kubernetes cluster upgrade runbook", KeyContext: "work"})
		mustCreate(t, ts, &store.Note{CreatorID: creator, Content: "birthday gift ideas", KeyContext: "home"})

		results, err := ts.FullTextSearch(ctx, &store.FullTextSearchOptions{
			CreatorID: creator,
			Tokens:    []string{"kubernetes"},
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		require.Contains(t, results[0].Note.Content, "kubernetes")

		results, err = ts.FullTextSearch(ctx, &store.FullTextSearchOptions{
			CreatorID: creator,
			Tokens:    []string{"nonexistentword"},
		})
		require.NoError(t, err)
		require.Empty(t, results)
	})
}
