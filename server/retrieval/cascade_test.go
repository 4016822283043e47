package retrieval

import (
	"context"
	"database/sql"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/notectx/notectx/internal/profile"
	"github.com/notectx/notectx/store"
)

// fakeDriver implements store.Driver with pluggable behavior so tests can
// observe which cascade stages actually hit the backend.
type fakeDriver struct {
	vectorCalls   int
	keywordCalls  int
	fullTextCalls int
	listCalls     int

	vectorFn   func(opts *store.VectorSearchOptions) ([]*store.NoteWithScore, error)
	keywordFn  func(opts *store.KeywordSearchOptions) ([]*store.Note, error)
	fullTextFn func(opts *store.FullTextSearchOptions) ([]*store.NoteWithScore, error)
	listFn     func(find *store.FindNote) ([]*store.Note, error)
}

func (d *fakeDriver) GetDB() *sql.DB { return nil }
func (d *fakeDriver) Close() error   { return nil }

func (d *fakeDriver) IsInitialized(ctx context.Context) (bool, error) { return true, nil }
func (d *fakeDriver) Migrate(ctx context.Context) error               { return nil }

func (d *fakeDriver) CreateNote(ctx context.Context, create *store.Note) (*store.Note, error) {
	return create, nil
}

func (d *fakeDriver) ListNotes(ctx context.Context, find *store.FindNote) ([]*store.Note, error) {
	d.listCalls++
	if d.listFn != nil {
		return d.listFn(find)
	}
	return nil, nil
}

func (d *fakeDriver) ListNotesByUIDs(ctx context.Context, creatorID int32, uids []string) ([]*store.Note, error) {
	return nil, nil
}

func (d *fakeDriver) UpdateNote(ctx context.Context, update *store.UpdateNote) (*store.Note, error) {
	return nil, nil
}

func (d *fakeDriver) DeleteNote(ctx context.Context, delete *store.DeleteNote) error { return nil }

func (d *fakeDriver) PaginateContextStats(ctx context.Context, find *store.FindContextStats) (*store.ContextStatsPage, error) {
	return &store.ContextStatsPage{}, nil
}

func (d *fakeDriver) SearchContexts(ctx context.Context, creatorID int32, term string, limit int) ([]*store.ContextStats, error) {
	return nil, nil
}

func (d *fakeDriver) ContextExists(ctx context.Context, creatorID int32, name string) (bool, error) {
	return false, nil
}

func (d *fakeDriver) RenameContext(ctx context.Context, rename *store.RenameContext) error {
	return nil
}

func (d *fakeDriver) UpsertNoteEmbedding(ctx context.Context, upsert *store.NoteEmbedding) error {
	return nil
}

func (d *fakeDriver) FindNotesWithoutEmbedding(ctx context.Context, find *store.FindNotesWithoutEmbedding) ([]*store.Note, error) {
	return nil, nil
}

func (d *fakeDriver) SearchNotesByVector(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.NoteWithScore, error) {
	d.vectorCalls++
	if d.vectorFn != nil {
		return d.vectorFn(opts)
	}
	return nil, nil
}

func (d *fakeDriver) SearchNotesByKeyword(ctx context.Context, opts *store.KeywordSearchOptions) ([]*store.Note, error) {
	d.keywordCalls++
	if d.keywordFn != nil {
		return d.keywordFn(opts)
	}
	return nil, nil
}

func (d *fakeDriver) FullTextSearch(ctx context.Context, opts *store.FullTextSearchOptions) ([]*store.NoteWithScore, error) {
	d.fullTextCalls++
	if d.fullTextFn != nil {
		return d.fullTextFn(opts)
	}
	return nil, nil
}

// fakeEmbedder returns a fixed vector for any input.
type fakeEmbedder struct {
	err error
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (e *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{0.1, 0.2, 0.3}
	}
	return vectors, nil
}

func (e *fakeEmbedder) Dimensions() int { return 3 }

func newTestCascade(driver *fakeDriver, embedder *fakeEmbedder) *Cascade {
	st := store.New(driver, &profile.Profile{Mode: "dev"})
	if embedder == nil {
		return NewCascade(st, nil)
	}
	return NewCascade(st, embedder)
}

func sampleNote(id int64, content string) *store.Note {
	return &store.Note{ID: id, UID: "test-uid", CreatorID: 1, Content: content}
}

func TestCascadeStopsAtFirstNonEmptyStage(t *testing.T) {
	ctx := context.Background()
	driver := &fakeDriver{
		vectorFn: func(opts *store.VectorSearchOptions) ([]*store.NoteWithScore, error) {
			return []*store.NoteWithScore{{Note: sampleNote(1, "grocery list"), Score: 0.92}}, nil
		},
	}
	cascade := newTestCascade(driver, &fakeEmbedder{})

	result, err := cascade.Search(ctx, 1, "what was on the grocery list", nil)
	require.NoError(t, err)
	require.Equal(t, StageSemanticHigh, result.Stage)
	require.Len(t, result.Notes, 1)
	require.Len(t, result.Scores, 1)

	// Only the first semantic query ran; no fallback stage was touched.
	require.Equal(t, 1, driver.vectorCalls)
	require.Equal(t, 0, driver.keywordCalls)
	require.Equal(t, 0, driver.fullTextCalls)
	require.Equal(t, 0, driver.listCalls)
}

func TestCascadeFallsThroughToLowThreshold(t *testing.T) {
	ctx := context.Background()
	driver := &fakeDriver{
		vectorFn: func(opts *store.VectorSearchOptions) ([]*store.NoteWithScore, error) {
			if opts.Threshold > 0.5 {
				return nil, nil
			}
			return []*store.NoteWithScore{{Note: sampleNote(1, "loosely related"), Score: 0.45}}, nil
		},
	}
	cascade := newTestCascade(driver, &fakeEmbedder{})

	result, err := cascade.Search(ctx, 1, "something vaguely remembered", nil)
	require.NoError(t, err)
	require.Equal(t, StageSemanticLow, result.Stage)
	require.Equal(t, 2, driver.vectorCalls)
	require.Equal(t, 0, driver.keywordCalls)
}

func TestCascadeSkipsSemanticStagesOnEmbedFailure(t *testing.T) {
	ctx := context.Background()
	driver := &fakeDriver{
		keywordFn: func(opts *store.KeywordSearchOptions) ([]*store.Note, error) {
			return []*store.Note{sampleNote(2, "meeting notes from tuesday")}, nil
		},
	}
	cascade := newTestCascade(driver, &fakeEmbedder{err: errors.New("provider unavailable")})

	result, err := cascade.Search(ctx, 1, "meeting notes tuesday", nil)
	require.NoError(t, err)
	require.Equal(t, StageKeyword, result.Stage)
	require.Equal(t, 0, driver.vectorCalls)
	require.Equal(t, 1, driver.keywordCalls)
}

func TestCascadeWithoutEmbedderGoesStraightToKeyword(t *testing.T) {
	ctx := context.Background()
	driver := &fakeDriver{
		keywordFn: func(opts *store.KeywordSearchOptions) ([]*store.Note, error) {
			return []*store.Note{sampleNote(3, "wifi password in the router box")}, nil
		},
	}
	cascade := newTestCascade(driver, nil)

	result, err := cascade.Search(ctx, 1, "wifi password", nil)
	require.NoError(t, err)
	require.Equal(t, StageKeyword, result.Stage)
	require.Equal(t, 0, driver.vectorCalls)
}

func TestCascadeStageErrorFallsThrough(t *testing.T) {
	ctx := context.Background()
	driver := &fakeDriver{
		vectorFn: func(opts *store.VectorSearchOptions) ([]*store.NoteWithScore, error) {
			return nil, errors.New("vector index corrupt")
		},
		keywordFn: func(opts *store.KeywordSearchOptions) ([]*store.Note, error) {
			return nil, errors.New("keyword query failed")
		},
		fullTextFn: func(opts *store.FullTextSearchOptions) ([]*store.NoteWithScore, error) {
			return []*store.NoteWithScore{{Note: sampleNote(4, "backup plan"), Score: 1.5}}, nil
		},
	}
	cascade := newTestCascade(driver, &fakeEmbedder{})

	result, err := cascade.Search(ctx, 1, "backup plan details", nil)
	require.NoError(t, err)
	require.Equal(t, StageFullText, result.Stage)
	require.Equal(t, 2, driver.vectorCalls)
	require.Equal(t, 1, driver.keywordCalls)
	require.Equal(t, 1, driver.fullTextCalls)
}

func TestCascadeRecencyFallback(t *testing.T) {
	ctx := context.Background()
	driver := &fakeDriver{
		listFn: func(find *store.FindNote) ([]*store.Note, error) {
			return []*store.Note{sampleNote(5, "most recent note")}, nil
		},
	}
	cascade := newTestCascade(driver, nil)

	result, err := cascade.Search(ctx, 1, "gibberish zxqwv nothing matches", nil)
	require.NoError(t, err)
	require.Equal(t, StageRecency, result.Stage)
	require.Len(t, result.Notes, 1)
}

func TestCascadeEmptyCorpusYieldsStageNone(t *testing.T) {
	ctx := context.Background()
	driver := &fakeDriver{}
	cascade := newTestCascade(driver, nil)

	result, err := cascade.Search(ctx, 1, "anything at all", nil)
	require.NoError(t, err)
	require.Equal(t, StageNone, result.Stage)
	require.Empty(t, result.Notes)
}

func TestCascadeRejectsOverlongQuestion(t *testing.T) {
	ctx := context.Background()
	cascade := newTestCascade(&fakeDriver{}, nil)

	long := make([]byte, 1001)
	for i := range long {
		long[i] = 'a'
	}
	_, err := cascade.Search(ctx, 1, string(long), nil)
	require.Error(t, err)
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"What did I write about the garden?", []string{"write", "garden"}},
		{"", nil},
		{"the and for", nil},
		{"Kubernetes cluster_setup notes!", []string{"kubernetes", "cluster_setup", "notes"}},
		{"go go go", nil}, // all tokens too short
		{"meeting MEETING Meeting", []string{"meeting"}},
	}
	for _, tt := range tests {
		got := Tokenize(tt.input)
		if tt.want == nil {
			require.Empty(t, got, "input %q", tt.input)
		} else {
			require.Equal(t, tt.want, got, "input %q", tt.input)
		}
	}
}
