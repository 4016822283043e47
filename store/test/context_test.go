package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	storeerrors "github.com/notectx/notectx/internal/errors"
	"github.com/notectx/notectx/store"
)

func TestPaginateContextStats(t *testing.T) {
	runOnAllBackends(t, func(t *testing.T, ts *store.Store) {
		ctx := context.Background()
		creator := nextCreatorID()

		// garden: 3 notes, work: 2, inbox: 1.
		for i := 0; i < 3; i++ {
			mustCreate(t, ts, &store.Note{CreatorID: creator, Content: "g", KeyContext: "garden"})
		}
		for i := 0; i < 2; i++ {
			mustCreate(t, ts, &store.Note{CreatorID: creator, Content: "w", KeyContext: "work"})
		}
		mustCreate(t, ts, &store.Note{CreatorID: creator, Content: "i", KeyContext: "inbox"})

		page, err := ts.PaginateContextStats(ctx, &store.FindContextStats{CreatorID: creator})
		require.NoError(t, err)
		require.Equal(t, 3, page.Total)
		require.False(t, page.HasMore)
		require.Len(t, page.Items, 3)

		// Sorted by count descending.
		require.Equal(t, "garden", page.Items[0].Name)
		require.Equal(t, 3, page.Items[0].Count)
		require.Equal(t, "work", page.Items[1].Name)
		require.Equal(t, "inbox", page.Items[2].Name)
		require.NotZero(t, page.Items[0].LastUsedTs)
	})
}

func TestPaginateContextStatsPaging(t *testing.T) {
	runOnAllBackends(t, func(t *testing.T, ts *store.Store) {
		ctx := context.Background()
		creator := nextCreatorID()

		contexts := []string{"a", "b", "c", "d", "e"}
		for _, name := range contexts {
			mustCreate(t, ts, &store.Note{CreatorID: creator, Content: "n", KeyContext: name})
		}

		first, err := ts.PaginateContextStats(ctx, &store.FindContextStats{
			CreatorID: creator,
			Page:      1,
			PageSize:  2,
		})
		require.NoError(t, err)
		require.Len(t, first.Items, 2)
		require.Equal(t, 5, first.Total)
		require.True(t, first.HasMore)

		last, err := ts.PaginateContextStats(ctx, &store.FindContextStats{
			CreatorID: creator,
			Page:      3,
			PageSize:  2,
		})
		require.NoError(t, err)
		require.Len(t, last.Items, 1)
		require.False(t, last.HasMore)

		// Past the end: empty page, not an error.
		empty, err := ts.PaginateContextStats(ctx, &store.FindContextStats{
			CreatorID: creator,
			Page:      10,
			PageSize:  2,
		})
		require.NoError(t, err)
		require.Empty(t, empty.Items)
	})
}

func TestPaginateContextStatsSearch(t *testing.T) {
	runOnAllBackends(t, func(t *testing.T, ts *store.Store) {
		ctx := context.Background()
		creator := nextCreatorID()

		mustCreate(t, ts, &store.Note{CreatorID: creator, Content: "n", KeyContext: "garden"})
		mustCreate(t, ts, &store.Note{CreatorID: creator, Content: "n", KeyContext: "gardening-tools"})
		mustCreate(t, ts, &store.Note{CreatorID: creator, Content: "n", KeyContext: "work"})

		search := "GARDEN"
		page, err := ts.PaginateContextStats(ctx, &store.FindContextStats{
			CreatorID: creator,
			Search:    &search,
		})
		require.NoError(t, err)
		require.Equal(t, 2, page.Total)
		for _, item := range page.Items {
			require.Contains(t, item.Name, "garden")
		}
	})
}

func TestContextStatsFollowNoteMutations(t *testing.T) {
	runOnAllBackends(t, func(t *testing.T, ts *store.Store) {
		ctx := context.Background()
		creator := nextCreatorID()

		note := mustCreate(t, ts, &store.Note{CreatorID: creator, Content: "n", KeyContext: "temp"})

		exists, err := ts.ContextExists(ctx, creator, "temp")
		require.NoError(t, err)
		require.True(t, exists)

		// Deleting the only note removes the context from the aggregate.
		require.NoError(t, ts.DeleteNote(ctx, &store.DeleteNote{UID: note.UID, CreatorID: creator}))

		exists, err = ts.ContextExists(ctx, creator, "temp")
		require.NoError(t, err)
		require.False(t, exists)

		page, err := ts.PaginateContextStats(ctx, &store.FindContextStats{CreatorID: creator})
		require.NoError(t, err)
		require.Zero(t, page.Total)
	})
}

func TestSearchContexts(t *testing.T) {
	runOnAllBackends(t, func(t *testing.T, ts *store.Store) {
		ctx := context.Background()
		creator := nextCreatorID()

		mustCreate(t, ts, &store.Note{CreatorID: creator, Content: "n", KeyContext: "project-alpha"})
		mustCreate(t, ts, &store.Note{CreatorID: creator, Content: "n", KeyContext: "project-beta"})
		mustCreate(t, ts, &store.Note{CreatorID: creator, Content: "n", KeyContext: "home"})

		items, err := ts.SearchContexts(ctx, creator, "project", 10)
		require.NoError(t, err)
		require.Len(t, items, 2)

		items, err = ts.SearchContexts(ctx, creator, "zzz", 10)
		require.NoError(t, err)
		require.Empty(t, items)
	})
}

func TestRenameContext(t *testing.T) {
	runOnAllBackends(t, func(t *testing.T, ts *store.Store) {
		ctx := context.Background()
		creator := nextCreatorID()

		note := mustCreate(t, ts, &store.Note{CreatorID: creator, Content: "n", KeyContext: "draft"})

		err := ts.RenameContext(ctx, &store.RenameContext{
			CreatorID: creator,
			OldName:   "draft",
			NewName:   "published",
		})
		require.NoError(t, err)

		exists, err := ts.ContextExists(ctx, creator, "draft")
		require.NoError(t, err)
		require.False(t, exists)

		renamed, err := ts.GetNote(ctx, &store.FindNote{UID: &note.UID, CreatorID: &creator})
		require.NoError(t, err)
		require.True(t, renamed.HasContext("published"))
		require.False(t, renamed.HasContext("draft"))
		// The key context follows the rename too.
		require.Equal(t, "published", renamed.KeyContext)
	})
}

func TestRenameContextMergesIntoExisting(t *testing.T) {
	runOnAllBackends(t, func(t *testing.T, ts *store.Store) {
		ctx := context.Background()
		creator := nextCreatorID()

		a := mustCreate(t, ts, &store.Note{CreatorID: creator, Content: "a", KeyContext: "old"})
		// A note already in both contexts must not end up with duplicates.
		b := mustCreate(t, ts, &store.Note{CreatorID: creator, Content: "b", KeyContext: "old", Contexts: []string{"target"}})
		mustCreate(t, ts, &store.Note{CreatorID: creator, Content: "c", KeyContext: "target"})

		err := ts.RenameContext(ctx, &store.RenameContext{
			CreatorID: creator,
			OldName:   "old",
			NewName:   "target",
		})
		require.NoError(t, err)

		page, err := ts.PaginateContextStats(ctx, &store.FindContextStats{CreatorID: creator})
		require.NoError(t, err)
		require.Equal(t, 1, page.Total)
		require.Equal(t, "target", page.Items[0].Name)
		require.Equal(t, 3, page.Items[0].Count)

		merged, err := ts.GetNote(ctx, &store.FindNote{UID: &a.UID, CreatorID: &creator})
		require.NoError(t, err)
		require.True(t, merged.HasContext("target"))

		deduped, err := ts.GetNote(ctx, &store.FindNote{UID: &b.UID, CreatorID: &creator})
		require.NoError(t, err)
		count := 0
		for _, name := range deduped.Contexts {
			if name == "target" {
				count++
			}
		}
		require.Equal(t, 1, count)
	})
}

func TestRenameMissingContextIsNotFound(t *testing.T) {
	runOnAllBackends(t, func(t *testing.T, ts *store.Store) {
		err := ts.RenameContext(context.Background(), &store.RenameContext{
			CreatorID: nextCreatorID(),
			OldName:   "ghost",
			NewName:   "anything",
		})
		require.Error(t, err)
		require.True(t, storeerrors.IsCode(err, storeerrors.ErrCodeNotFound))
	})
}

func TestRenameContextValidation(t *testing.T) {
	runOnAllBackends(t, func(t *testing.T, ts *store.Store) {
		ctx := context.Background()
		creator := nextCreatorID()

		err := ts.RenameContext(ctx, &store.RenameContext{CreatorID: creator, OldName: "", NewName: "x"})
		require.True(t, storeerrors.IsCode(err, storeerrors.ErrCodeInvalidArgument))

		err = ts.RenameContext(ctx, &store.RenameContext{CreatorID: creator, OldName: "x", NewName: "  "})
		require.True(t, storeerrors.IsCode(err, storeerrors.ErrCodeInvalidArgument))

		// Same-name rename is a no-op even when the context does not exist.
		err = ts.RenameContext(ctx, &store.RenameContext{CreatorID: creator, OldName: "same", NewName: "same"})
		require.NoError(t, err)
	})
}
