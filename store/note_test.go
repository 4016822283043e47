package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/notectx/notectx/internal/profile"
)

// stubDriver embeds Driver so only the methods under test need real
// implementations. It records what the facade hands to the driver.
type stubDriver struct {
	Driver
	current    *Note
	lastFind   *FindNote
	lastUpdate *UpdateNote
}

func (d *stubDriver) ListNotes(ctx context.Context, find *FindNote) ([]*Note, error) {
	d.lastFind = find
	if d.current == nil {
		return []*Note{}, nil
	}
	return []*Note{d.current}, nil
}

func (d *stubDriver) UpdateNote(ctx context.Context, update *UpdateNote) (*Note, error) {
	d.lastUpdate = update
	return d.current, nil
}

func TestNormalizeLimit(t *testing.T) {
	intp := func(v int) *int { return &v }

	tests := []struct {
		name  string
		limit *int
		want  int
	}{
		{"nil uses default", nil, DefaultListLimit},
		{"in range passes through", intp(5), 5},
		{"zero clamps to one", intp(0), 1},
		{"negative clamps to one", intp(-10), 1},
		{"max passes through", intp(MaxListLimit), MaxListLimit},
		{"over max clamps down", intp(500), MaxListLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, normalizeLimit(tt.limit))
		})
	}
}

func TestNormalizeContexts(t *testing.T) {
	// Key context is folded in and the result is a sorted set.
	got := normalizeContexts("work", []string{"zeta", "alpha", "work", "alpha", " ", ""})
	require.Equal(t, []string{"alpha", "work", "zeta"}, got)

	// Empty key context contributes nothing.
	got = normalizeContexts("", []string{"b", "a"})
	require.Equal(t, []string{"a", "b"}, got)

	got = normalizeContexts("only", nil)
	require.Equal(t, []string{"only"}, got)
}

func TestSubtractContexts(t *testing.T) {
	got := subtractContexts([]string{"a", "b", "c"}, []string{"b"})
	require.Equal(t, []string{"a", "c"}, got)

	// Suggested contexts stay disjoint from accepted ones.
	got = subtractContexts([]string{"a"}, []string{"a"})
	require.Empty(t, got)

	require.Nil(t, subtractContexts(nil, []string{"a"}))
}

func TestUpdateNoteSuggestionsOnlyPatchStaysDisjoint(t *testing.T) {
	driver := &stubDriver{current: &Note{
		UID:        "u1",
		CreatorID:  1,
		Content:    "note",
		KeyContext: "work",
		Contexts:   []string{"work"},
	}}
	s := New(driver, &profile.Profile{Mode: "dev"})

	// A patch carrying only suggestions must still be subtracted against the
	// note's accepted contexts.
	_, err := s.UpdateNote(context.Background(), &UpdateNote{
		UID:               "u1",
		CreatorID:         1,
		SuggestedContexts: []string{"work", "fresh"},
	})
	require.NoError(t, err)
	require.NotNil(t, driver.lastUpdate)
	require.Equal(t, []string{"fresh"}, driver.lastUpdate.SuggestedContexts)
	// The context set itself was not patched.
	require.Nil(t, driver.lastUpdate.Contexts)
}

func TestUpdateNoteAcceptingSuggestionClearsIt(t *testing.T) {
	driver := &stubDriver{current: &Note{
		UID:               "u1",
		CreatorID:         1,
		Content:           "note",
		KeyContext:        "work",
		Contexts:          []string{"work"},
		SuggestedContexts: []string{"garden"},
	}}
	s := New(driver, &profile.Profile{Mode: "dev"})

	// Accepting "garden" into the context set issues a corrective write
	// removing it from the stored suggestions.
	_, err := s.UpdateNote(context.Background(), &UpdateNote{
		UID:       "u1",
		CreatorID: 1,
		Contexts:  []string{"work", "garden"},
	})
	require.NoError(t, err)
	require.NotNil(t, driver.lastUpdate)
	require.Equal(t, []string{"garden", "work"}, driver.lastUpdate.Contexts)
	require.NotNil(t, driver.lastUpdate.SuggestedContexts)
	require.Empty(t, driver.lastUpdate.SuggestedContexts)
}

func TestListNotesClampsOnACopy(t *testing.T) {
	driver := &stubDriver{}
	s := New(driver, &profile.Profile{Mode: "dev"})

	big := 1000
	find := &FindNote{Limit: &big}
	_, err := s.ListNotes(context.Background(), find)
	require.NoError(t, err)
	require.Equal(t, MaxListLimit, *driver.lastFind.Limit)
	// The caller's struct keeps its original value.
	require.Equal(t, 1000, *find.Limit)

	unlimited := &FindNote{}
	_, err = s.ListNotes(context.Background(), unlimited)
	require.NoError(t, err)
	require.Equal(t, DefaultListLimit, *driver.lastFind.Limit)
	require.Nil(t, unlimited.Limit)
}

func TestGetNoteLeavesFinderUntouched(t *testing.T) {
	driver := &stubDriver{}
	s := New(driver, &profile.Profile{Mode: "dev"})

	find := &FindNote{}
	_, err := s.GetNote(context.Background(), find)
	require.NoError(t, err)
	require.Equal(t, 1, *driver.lastFind.Limit)
	require.Nil(t, find.Limit)
}

func TestNoteHasContext(t *testing.T) {
	n := &Note{Contexts: []string{"a", "b"}}
	require.True(t, n.HasContext("a"))
	require.False(t, n.HasContext("c"))
}

func TestNoteHasEmbedding(t *testing.T) {
	require.False(t, (&Note{}).HasEmbedding())
	require.False(t, (&Note{Embedding: []float32{1}}).HasEmbedding())
	require.True(t, (&Note{Embedding: []float32{1}, EmbeddingModel: "m"}).HasEmbedding())
}
