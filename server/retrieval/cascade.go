package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/notectx/notectx/plugin/ai"
	"github.com/notectx/notectx/server/internal/observability"
	"github.com/notectx/notectx/store"
)

// Stage identifies the cascade stage that produced a result.
type Stage string

const (
	// StageSemanticHigh is high-threshold semantic search.
	StageSemanticHigh Stage = "semantic_high"
	// StageSemanticLow is low-threshold semantic search.
	StageSemanticLow Stage = "semantic_low"
	// StageKeyword is token substring matching over content, contexts and tags.
	StageKeyword Stage = "keyword"
	// StageFullText is backend-native full-text search.
	StageFullText Stage = "fulltext"
	// StageRecency is the unconditional most-recent-notes fallback.
	StageRecency Stage = "recency"
	// StageNone means the user has no notes at all.
	StageNone Stage = "none"
)

// Options tunes a cascade run.
type Options struct {
	// HighThreshold and LowThreshold are the stage 1 and 2 minimum cosine
	// similarities.
	HighThreshold float32
	LowThreshold  float32
	Limit         int
	RequestID     string
	Logger        *slog.Logger
}

// Result is the terminal output of the cascade. Stage records which
// fallback produced the notes; StageNone with no notes means an empty
// corpus, which is a valid result rather than an error.
type Result struct {
	Stage  Stage
	Notes  []*store.Note
	Scores []float32
}

// Cascade is the multi-stage retrieval strategy behind the question
// answering flow. Each stage is a fallback for the previous one yielding
// nothing; a backend error at any stage is logged and triggers the next
// stage rather than aborting the run, so a single degraded component cannot
// take down the whole search path.
type Cascade struct {
	store            *store.Store
	embeddingService ai.EmbeddingService
}

// NewCascade creates a cascade over the given store and embedding service.
// The embedding service may be nil, in which case the semantic stages are
// skipped entirely.
func NewCascade(st *store.Store, embeddingService ai.EmbeddingService) *Cascade {
	return &Cascade{
		store:            st,
		embeddingService: embeddingService,
	}
}

// Search runs the cascade for one question and returns the first non-empty
// stage result. It only fails on programmer error (nil options are fine);
// backend failures degrade to later stages.
func (c *Cascade) Search(ctx context.Context, creatorID int32, question string, opts *Options) (*Result, error) {
	if opts == nil {
		opts = &Options{}
	}
	if opts.HighThreshold == 0 {
		opts.HighThreshold = 0.7
	}
	if opts.LowThreshold == 0 {
		opts.LowThreshold = 0.4
	}
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RequestID == "" {
		opts.RequestID = observability.GenerateRequestID()
	}
	if len(question) > 1000 {
		return nil, fmt.Errorf("question too long: %d characters (max 1000)", len(question))
	}

	// Stages 1 and 2 share one query embedding.
	var queryVector []float32
	if c.embeddingService != nil {
		vector, err := c.embeddingService.Embed(ctx, question)
		if err != nil {
			opts.Logger.WarnContext(ctx, "failed to embed question, skipping semantic stages",
				observability.LogFieldRequestID, opts.RequestID,
				"error", err,
			)
		} else {
			queryVector = vector
		}
	}

	if queryVector != nil {
		if result := c.semanticStage(ctx, creatorID, queryVector, opts.HighThreshold, StageSemanticHigh, opts); result != nil {
			return result, nil
		}
		if result := c.semanticStage(ctx, creatorID, queryVector, opts.LowThreshold, StageSemanticLow, opts); result != nil {
			return result, nil
		}
	}

	tokens := Tokenize(question)
	if result := c.keywordStage(ctx, creatorID, tokens, opts); result != nil {
		return result, nil
	}
	if result := c.fullTextStage(ctx, creatorID, tokens, opts); result != nil {
		return result, nil
	}

	return c.recencyStage(ctx, creatorID, opts), nil
}

func (c *Cascade) semanticStage(ctx context.Context, creatorID int32, vector []float32, threshold float32, stage Stage, opts *Options) *Result {
	results, err := c.store.SearchNotesByVector(ctx, &store.VectorSearchOptions{
		CreatorID: creatorID,
		Vector:    vector,
		Threshold: threshold,
		Limit:     opts.Limit,
	})
	if err != nil {
		c.logStageError(ctx, stage, err, opts)
		return nil
	}
	if len(results) == 0 {
		return nil
	}

	notes := make([]*store.Note, len(results))
	scores := make([]float32, len(results))
	for i, r := range results {
		notes[i] = r.Note
		scores[i] = r.Score
	}
	c.logStageHit(ctx, stage, len(notes), opts)
	return &Result{Stage: stage, Notes: notes, Scores: scores}
}

func (c *Cascade) keywordStage(ctx context.Context, creatorID int32, tokens []string, opts *Options) *Result {
	if len(tokens) == 0 {
		return nil
	}
	notes, err := c.store.SearchNotesByKeyword(ctx, &store.KeywordSearchOptions{
		CreatorID: creatorID,
		Tokens:    tokens,
		Limit:     opts.Limit,
	})
	if err != nil {
		c.logStageError(ctx, StageKeyword, err, opts)
		return nil
	}
	if len(notes) == 0 {
		return nil
	}
	c.logStageHit(ctx, StageKeyword, len(notes), opts)
	return &Result{Stage: StageKeyword, Notes: notes}
}

func (c *Cascade) fullTextStage(ctx context.Context, creatorID int32, tokens []string, opts *Options) *Result {
	if len(tokens) == 0 {
		return nil
	}
	results, err := c.store.FullTextSearch(ctx, &store.FullTextSearchOptions{
		CreatorID: creatorID,
		Tokens:    tokens,
		Limit:     opts.Limit,
	})
	if err != nil {
		c.logStageError(ctx, StageFullText, err, opts)
		return nil
	}
	if len(results) == 0 {
		return nil
	}

	notes := make([]*store.Note, len(results))
	scores := make([]float32, len(results))
	for i, r := range results {
		notes[i] = r.Note
		scores[i] = r.Score
	}
	c.logStageHit(ctx, StageFullText, len(notes), opts)
	return &Result{Stage: StageFullText, Notes: notes, Scores: scores}
}

// recencyStage never fails empty unless the user has zero notes, in which
// case the result is an explicit StageNone, not an error.
func (c *Cascade) recencyStage(ctx context.Context, creatorID int32, opts *Options) *Result {
	notes, err := c.store.ListNotes(ctx, &store.FindNote{
		CreatorID: &creatorID,
		Limit:     &opts.Limit,
	})
	if err != nil {
		c.logStageError(ctx, StageRecency, err, opts)
		return &Result{Stage: StageNone, Notes: []*store.Note{}}
	}
	if len(notes) == 0 {
		return &Result{Stage: StageNone, Notes: []*store.Note{}}
	}
	c.logStageHit(ctx, StageRecency, len(notes), opts)
	return &Result{Stage: StageRecency, Notes: notes}
}

func (c *Cascade) logStageHit(ctx context.Context, stage Stage, count int, opts *Options) {
	observability.GlobalMetrics().RecordStageHit(string(stage))
	opts.Logger.InfoContext(ctx, "cascade stage produced results",
		observability.LogFieldRequestID, opts.RequestID,
		observability.LogFieldStage, string(stage),
		observability.LogFieldResultCount, count,
	)
}

func (c *Cascade) logStageError(ctx context.Context, stage Stage, err error, opts *Options) {
	opts.Logger.WarnContext(ctx, "cascade stage failed, falling back",
		observability.LogFieldRequestID, opts.RequestID,
		observability.LogFieldStage, string(stage),
		"error", err,
	)
}
