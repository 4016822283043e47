package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/notectx/notectx/plugin/ai"
	"github.com/notectx/notectx/store"
)

// Runner backfills embeddings for notes that do not have one yet. Notes
// created or edited while the embedding provider is down simply show up in
// the pending queue and get picked up on the next tick.
type Runner struct {
	store            *store.Store
	embeddingService ai.EmbeddingService
	interval         time.Duration
	batchSize        int
	model            string

	// limiter spaces out provider calls so a large backfill cannot burn
	// through the provider quota.
	limiter *rate.Limiter
}

// NewRunner creates a vector embedding runner. Small batches keep memory
// peaks down on modest deployments.
func NewRunner(store *store.Store, embeddingService ai.EmbeddingService, model string) *Runner {
	return &Runner{
		store:            store,
		embeddingService: embeddingService,
		interval:         2 * time.Minute,
		batchSize:        8,
		model:            model,
		limiter:          rate.NewLimiter(rate.Limit(2), 4),
	}
}

// Run starts the background task and blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	// Process once on startup.
	r.processPendingNotes(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.processPendingNotes(ctx)
		case <-ctx.Done():
			slog.Info("embedding runner stopped")
			return
		}
	}
}

// RunOnce processes pending notes once, for manual trigger.
func (r *Runner) RunOnce(ctx context.Context) {
	r.processPendingNotes(ctx)
}

func (r *Runner) processPendingNotes(ctx context.Context) {
	notes, err := r.store.FindNotesWithoutEmbedding(ctx, &store.FindNotesWithoutEmbedding{
		// Fetch more than one batch so a single tick drains a backlog.
		Limit: r.batchSize * 20,
	})
	if err != nil {
		slog.Error("failed to find notes without embedding", "error", err)
		return
	}
	if len(notes) == 0 {
		return
	}

	slog.Info("processing notes for embedding", "count", len(notes))

	for i := 0; i < len(notes); i += r.batchSize {
		select {
		case <-ctx.Done():
			slog.Info("embedding processing cancelled", "processed", i, "total", len(notes))
			return
		default:
		}

		end := i + r.batchSize
		if end > len(notes) {
			end = len(notes)
		}
		batch := notes[i:end]

		if err := r.processBatch(ctx, batch); err != nil {
			slog.Error("failed to process embedding batch", "error", err)
			continue
		}
		slog.Info("embedding batch processed", "count", len(batch), "progress", fmt.Sprintf("%d/%d", end, len(notes)))
	}
}

func (r *Runner) processBatch(ctx context.Context, notes []*store.Note) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	texts := make([]string, len(notes))
	for i, n := range notes {
		texts[i] = buildEmbeddingText(n)
	}

	vectors, err := r.embeddingService.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	for i, n := range notes {
		err := r.store.UpsertNoteEmbedding(ctx, &store.NoteEmbedding{
			NoteID:    n.ID,
			Embedding: vectors[i],
			Model:     r.model,
			UpdatedTs: now,
		})
		if err != nil {
			slog.Error("failed to upsert embedding", "note_id", n.ID, "error", err)
		}
	}
	return nil
}

// buildEmbeddingText combines note content with its contexts and tags so
// searches for a context name also land semantically near its notes.
func buildEmbeddingText(n *store.Note) string {
	var sb strings.Builder
	sb.WriteString(n.Content)

	var labels []string
	if n.KeyContext != "" {
		labels = append(labels, n.KeyContext)
	}
	for _, c := range n.Contexts {
		if c != n.KeyContext {
			labels = append(labels, c)
		}
	}
	labels = append(labels, n.Tags...)

	if len(labels) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(strings.Join(labels, ", "))
	}

	text := sb.String()
	// Most embedding models cap input length; keep the note content and
	// trim trailing labels when over budget.
	if len(text) > 8000 {
		text = text[:8000]
	}
	return text
}
