package sqlite

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	storeerrors "github.com/notectx/notectx/internal/errors"
	"github.com/notectx/notectx/store"
)

func (d *DB) UpsertNoteEmbedding(ctx context.Context, upsert *store.NoteEmbedding) error {
	updatedTs := upsert.UpdatedTs
	if updatedTs == 0 {
		updatedTs = time.Now().Unix()
	}

	result, err := d.db.ExecContext(ctx, `
		UPDATE note SET embedding = ?, embedding_model = ?, embedding_ts = ?
		WHERE id = ?`,
		encodeEmbedding(upsert.Embedding), upsert.Model, updatedTs, upsert.NoteID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to upsert note embedding")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get affected rows")
	}
	if affected == 0 {
		return storeerrors.NotFoundf("note %d not found", upsert.NoteID)
	}
	return nil
}

func (d *DB) FindNotesWithoutEmbedding(ctx context.Context, find *store.FindNotesWithoutEmbedding) ([]*store.Note, error) {
	where, args := []string{"note.embedding IS NULL", "LENGTH(note.content) > 0"}, []any{}
	if v := find.CreatorID; v != nil {
		where, args = append(where, "note.creator_id = ?"), append(args, *v)
	}
	args = append(args, find.Limit)

	query := `SELECT ` + noteColumns + ` FROM note
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY note.created_ts DESC
		LIMIT ?`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find notes without embedding")
	}
	defer rows.Close()

	return scanNotes(rows)
}

// SearchNotesByVector computes cosine similarity in application code: scan
// every note with a vector, score, filter by threshold, sort, truncate.
// O(notes x dimension) per query; fine for a single-user corpus, not at
// scale. A native-vector engine (the postgres backend) does this in SQL.
func (d *DB) SearchNotesByVector(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.NoteWithScore, error) {
	query := `SELECT ` + noteColumns + ` FROM note
		WHERE note.creator_id = ? AND note.embedding IS NOT NULL`

	rows, err := d.db.QueryContext(ctx, query, opts.CreatorID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan notes for vector search")
	}
	defer rows.Close()

	notes, err := scanNotes(rows)
	if err != nil {
		return nil, err
	}

	results := make([]*store.NoteWithScore, 0, len(notes))
	for _, note := range notes {
		score := cosineSimilarity(opts.Vector, note.Embedding)
		if score >= opts.Threshold {
			results = append(results, &store.NoteWithScore{Note: note, Score: score})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

func (d *DB) SearchNotesByKeyword(ctx context.Context, opts *store.KeywordSearchOptions) ([]*store.Note, error) {
	match, args := []string{}, []any{opts.CreatorID}
	for _, token := range opts.Tokens {
		pattern := "%" + strings.ToLower(token) + "%"
		match = append(match, "(LOWER(note.content) LIKE ? OR LOWER(note.contexts) LIKE ? OR LOWER(note.tags) LIKE ?)")
		args = append(args, pattern, pattern, pattern)
	}
	args = append(args, opts.Limit)

	query := `SELECT ` + noteColumns + ` FROM note
		WHERE note.creator_id = ? AND (` + strings.Join(match, " OR ") + `)
		ORDER BY note.created_ts DESC
		LIMIT ?`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to keyword search notes")
	}
	defer rows.Close()

	return scanNotes(rows)
}

// FullTextSearch uses the FTS5 index when present and degrades to LIKE
// matching when the build lacks the extension.
func (d *DB) FullTextSearch(ctx context.Context, opts *store.FullTextSearchOptions) ([]*store.NoteWithScore, error) {
	if !d.ftsEnabled {
		return d.fullTextSearchFallback(ctx, opts)
	}

	// OR-combined tokens, bm25() rank: lower is better, so negate for a
	// similarity-shaped score.
	match := strings.Join(quoteFTSTokens(opts.Tokens), " OR ")

	query := `SELECT ` + noteColumns + `, bm25(note_fts) AS rank
		FROM note
		JOIN note_fts ON note.id = note_fts.rowid
		WHERE note.creator_id = ? AND note_fts MATCH ?
		ORDER BY rank ASC
		LIMIT ?`

	rows, err := d.db.QueryContext(ctx, query, opts.CreatorID, match, opts.Limit)
	if err != nil {
		// FTS table may be racing a degraded migration; fall back.
		return d.fullTextSearchFallback(ctx, opts)
	}
	defer rows.Close()

	results := []*store.NoteWithScore{}
	for rows.Next() {
		note, rank, err := scanNoteWithRank(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, &store.NoteWithScore{Note: note, Score: float32(-rank)})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate full-text results")
	}
	return results, nil
}

func (d *DB) fullTextSearchFallback(ctx context.Context, opts *store.FullTextSearchOptions) ([]*store.NoteWithScore, error) {
	notes, err := d.SearchNotesByKeyword(ctx, &store.KeywordSearchOptions{
		CreatorID: opts.CreatorID,
		Tokens:    opts.Tokens,
		Limit:     opts.Limit,
	})
	if err != nil {
		return nil, err
	}
	results := make([]*store.NoteWithScore, len(notes))
	for i, note := range notes {
		results[i] = &store.NoteWithScore{Note: note}
	}
	return results, nil
}

func scanNoteWithRank(rows *sql.Rows) (*store.Note, float64, error) {
	var note store.Note
	var noteType, status string
	var deadline, embeddingTs sql.NullInt64
	var contexts, suggested, tags string
	var embedding []byte
	var embeddingModel sql.NullString
	var rank float64

	if err := rows.Scan(
		&note.ID,
		&note.UID,
		&note.CreatorID,
		&note.CreatedTs,
		&note.UpdatedTs,
		&note.Content,
		&noteType,
		&status,
		&deadline,
		&note.KeyContext,
		&contexts,
		&suggested,
		&tags,
		&embedding,
		&embeddingModel,
		&embeddingTs,
		&rank,
	); err != nil {
		return nil, 0, errors.Wrap(err, "failed to scan ranked note")
	}

	note.Type = store.NoteType(noteType)
	note.Status = store.TodoStatus(status)
	if deadline.Valid {
		note.Deadline = &deadline.Int64
	}

	var err error
	if note.Contexts, err = unmarshalStringList(contexts); err != nil {
		return nil, 0, err
	}
	if note.SuggestedContexts, err = unmarshalStringList(suggested); err != nil {
		return nil, 0, err
	}
	if note.Tags, err = unmarshalStringList(tags); err != nil {
		return nil, 0, err
	}

	if len(embedding) > 0 && embeddingModel.Valid {
		note.Embedding = decodeEmbedding(embedding)
		note.EmbeddingModel = embeddingModel.String
		note.EmbeddingTs = embeddingTs.Int64
	}

	return &note, rank, nil
}

func quoteFTSTokens(tokens []string) []string {
	quoted := make([]string, len(tokens))
	for i, token := range tokens {
		quoted[i] = `"` + strings.ReplaceAll(token, `"`, ``) + `"`
	}
	return quoted
}
