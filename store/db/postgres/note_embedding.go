package postgres

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/notectx/notectx/store"
)

func (d *DB) UpsertNoteEmbedding(ctx context.Context, upsert *store.NoteEmbedding) error {
	updatedTs := upsert.UpdatedTs
	if updatedTs == 0 {
		updatedTs = time.Now().Unix()
	}

	vector := pgvector.NewVector(upsert.Embedding)
	if _, err := d.db.ExecContext(ctx, `
		INSERT INTO note_embedding (note_id, embedding, model, updated_ts)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (note_id)
		DO UPDATE SET embedding = EXCLUDED.embedding, model = EXCLUDED.model, updated_ts = EXCLUDED.updated_ts`,
		upsert.NoteID, vector, upsert.Model, updatedTs,
	); err != nil {
		return errors.Wrap(err, "failed to upsert note embedding")
	}
	return nil
}

func (d *DB) FindNotesWithoutEmbedding(ctx context.Context, find *store.FindNotesWithoutEmbedding) ([]*store.Note, error) {
	where, args := []string{"e.note_id IS NULL", "LENGTH(note.content) > 0"}, []any{}
	if v := find.CreatorID; v != nil {
		where, args = append(where, "note.creator_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	args = append(args, find.Limit)

	query := `SELECT ` + noteColumns + ` ` + noteFrom + `
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY note.created_ts DESC
		LIMIT ` + placeholder(len(args))

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find notes without embedding")
	}
	defer rows.Close()

	return scanNotes(rows)
}

// SearchNotesByVector is a single ranked query against pgvector. The <=>
// operator computes cosine distance, so similarity is 1 - distance and
// ordering by the operator yields most similar first.
func (d *DB) SearchNotesByVector(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.NoteWithScore, error) {
	vector := pgvector.NewVector(opts.Vector)

	query := `SELECT ` + noteColumns + `, 1 - (e.embedding <=> $1) AS score
		FROM note
		INNER JOIN note_embedding e ON e.note_id = note.id
		WHERE note.creator_id = $2
			AND 1 - (e.embedding <=> $1) >= $3
		ORDER BY e.embedding <=> $1
		LIMIT $4`

	rows, err := d.db.QueryContext(ctx, query, vector, opts.CreatorID, opts.Threshold, opts.Limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to vector search")
	}
	defer rows.Close()

	results := []*store.NoteWithScore{}
	for rows.Next() {
		note, score, err := scanNoteWithScore(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, &store.NoteWithScore{Note: note, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate vector results")
	}
	return results, nil
}

func (d *DB) SearchNotesByKeyword(ctx context.Context, opts *store.KeywordSearchOptions) ([]*store.Note, error) {
	match, args := []string{}, []any{opts.CreatorID}
	for _, token := range opts.Tokens {
		p1 := placeholder(len(args) + 1)
		args = append(args, "%"+token+"%")
		match = append(match, `(note.content ILIKE `+p1+`
			OR note.tags::text ILIKE `+p1+`
			OR EXISTS (
				SELECT 1 FROM note_context nc
				JOIN context c ON c.id = nc.context_id
				WHERE nc.note_id = note.id AND c.name ILIKE `+p1+`))`)
	}
	args = append(args, opts.Limit)

	query := `SELECT ` + noteColumns + ` ` + noteFrom + `
		WHERE note.creator_id = $1 AND (` + strings.Join(match, " OR ") + `)
		ORDER BY note.created_ts DESC
		LIMIT ` + placeholder(len(args))

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to keyword search notes")
	}
	defer rows.Close()

	return scanNotes(rows)
}

var tsqueryToken = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// FullTextSearch runs PostgreSQL full-text search with OR-combined tokens.
// The 'simple' configuration avoids language-specific stemming surprises on
// mixed-language personal notes.
func (d *DB) FullTextSearch(ctx context.Context, opts *store.FullTextSearchOptions) ([]*store.NoteWithScore, error) {
	terms := make([]string, 0, len(opts.Tokens))
	for _, token := range opts.Tokens {
		token = tsqueryToken.ReplaceAllString(token, "")
		if token != "" {
			terms = append(terms, token)
		}
	}
	if len(terms) == 0 {
		return []*store.NoteWithScore{}, nil
	}
	tsquery := strings.Join(terms, " | ")

	query := `SELECT ` + noteColumns + `,
			ts_rank(to_tsvector('simple', note.content), to_tsquery('simple', $1)) AS score
		` + noteFrom + `
		WHERE note.creator_id = $2
			AND to_tsvector('simple', note.content) @@ to_tsquery('simple', $1)
		ORDER BY score DESC, note.updated_ts DESC
		LIMIT $3`

	rows, err := d.db.QueryContext(ctx, query, tsquery, opts.CreatorID, opts.Limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to full-text search")
	}
	defer rows.Close()

	results := []*store.NoteWithScore{}
	for rows.Next() {
		note, score, err := scanNoteWithScore(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, &store.NoteWithScore{Note: note, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate full-text results")
	}
	return results, nil
}
