package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	storeerrors "github.com/notectx/notectx/internal/errors"
	"github.com/notectx/notectx/store"
)

const noteColumns = `
	note.id, note.uid, note.creator_id, note.created_ts, note.updated_ts,
	note.content, note.type, note.status, note.deadline_ts, note.key_context,
	COALESCE((
		SELECT json_agg(c.name ORDER BY c.name)
		FROM note_context nc
		JOIN context c ON c.id = nc.context_id
		WHERE nc.note_id = note.id
	), '[]'::json)::text,
	note.suggested_contexts, note.tags,
	COALESCE(e.embedding::text, ''), COALESCE(e.model, ''), COALESCE(e.updated_ts, 0)`

const noteFrom = `FROM note LEFT JOIN note_embedding e ON e.note_id = note.id`

func (d *DB) CreateNote(ctx context.Context, create *store.Note) (*store.Note, error) {
	suggested, err := marshalStringList(create.SuggestedContexts)
	if err != nil {
		return nil, err
	}
	tags, err := marshalStringList(create.Tags)
	if err != nil {
		return nil, err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	fields := []string{
		"uid", "creator_id", "content", "type", "status", "deadline_ts",
		"key_context", "suggested_contexts", "tags",
	}
	args := []any{
		create.UID, create.CreatorID, create.Content, string(create.Type), string(create.Status),
		create.Deadline, create.KeyContext, suggested, tags,
	}
	if create.CreatedTs != 0 {
		fields = append(fields, "created_ts")
		args = append(args, create.CreatedTs)
	}
	if create.UpdatedTs != 0 {
		fields = append(fields, "updated_ts")
		args = append(args, create.UpdatedTs)
	}

	stmt := `INSERT INTO note (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id, created_ts, updated_ts`

	if err := tx.QueryRowContext(ctx, stmt, args...).Scan(
		&create.ID,
		&create.CreatedTs,
		&create.UpdatedTs,
	); err != nil {
		return nil, errors.Wrap(err, "failed to create note")
	}

	if err := d.linkContextsTx(ctx, tx, create.ID, create.CreatorID, create.Contexts); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit note creation")
	}
	return create, nil
}

func (d *DB) ListNotes(ctx context.Context, find *store.FindNote) ([]*store.Note, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "note.id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "note.uid = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.CreatorID; v != nil {
		where, args = append(where, "note.creator_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.CreatedAfter; v != nil {
		where, args = append(where, "note.created_ts >= "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.CreatedBefore; v != nil {
		where, args = append(where, "note.created_ts < "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Type; v != nil {
		where, args = append(where, "note.type = "+placeholder(len(args)+1)), append(args, string(*v))
	}
	// Superset semantics: one EXISTS per required context, ANDed together.
	for _, name := range find.Contexts {
		where = append(where, `EXISTS (
			SELECT 1 FROM note_context nc
			JOIN context c ON c.id = nc.context_id
			WHERE nc.note_id = note.id AND c.name = `+placeholder(len(args)+1)+`)`)
		args = append(args, name)
	}

	query := `SELECT ` + noteColumns + ` ` + noteFrom + `
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY note.created_ts DESC, note.id DESC`

	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
		if find.Offset != nil {
			query = fmt.Sprintf("%s OFFSET %d", query, *find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list notes")
	}
	defer rows.Close()

	return scanNotes(rows)
}

func (d *DB) ListNotesByUIDs(ctx context.Context, creatorID int32, uids []string) ([]*store.Note, error) {
	if len(uids) == 0 {
		return []*store.Note{}, nil
	}

	args := []any{creatorID}
	uidPlaceholders := make([]string, len(uids))
	for i, uid := range uids {
		uidPlaceholders[i] = placeholder(len(args) + 1)
		args = append(args, uid)
	}

	// Missing uids are silently omitted; callers check the count.
	query := `SELECT ` + noteColumns + ` ` + noteFrom + `
		WHERE note.creator_id = $1 AND note.uid IN (` + strings.Join(uidPlaceholders, ", ") + `)
		ORDER BY note.created_ts DESC, note.id DESC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list notes by uids")
	}
	defer rows.Close()

	return scanNotes(rows)
}

func (d *DB) UpdateNote(ctx context.Context, update *store.UpdateNote) (*store.Note, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	set, args := []string{}, []any{}
	contentChanged := false

	if v := update.Content; v != nil {
		set, args = append(set, "content = "+placeholder(len(args)+1)), append(args, *v)
		contentChanged = true
	}
	if v := update.Type; v != nil {
		set, args = append(set, "type = "+placeholder(len(args)+1)), append(args, string(*v))
	}
	if v := update.Status; v != nil {
		set, args = append(set, "status = "+placeholder(len(args)+1)), append(args, string(*v))
	}
	if v := update.Deadline; v != nil {
		set, args = append(set, "deadline_ts = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.KeyContext; v != nil {
		set, args = append(set, "key_context = "+placeholder(len(args)+1)), append(args, *v)
	}
	if update.SuggestedContexts != nil {
		suggested, err := marshalStringList(update.SuggestedContexts)
		if err != nil {
			return nil, err
		}
		set, args = append(set, "suggested_contexts = "+placeholder(len(args)+1)), append(args, suggested)
	}
	if update.Tags != nil {
		tags, err := marshalStringList(update.Tags)
		if err != nil {
			return nil, err
		}
		set, args = append(set, "tags = "+placeholder(len(args)+1)), append(args, tags)
	}
	if v := update.UpdatedTs; v != nil {
		set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, *v)
	}

	if len(set) == 0 && update.Contexts == nil {
		return nil, storeerrors.InvalidArgument("update request has no fields")
	}
	if len(set) == 0 {
		// Context-only patch still has to touch the row for RETURNING.
		set = append(set, "updated_ts = updated_ts")
	}

	args = append(args, update.UID, update.CreatorID)
	stmt := `UPDATE note SET ` + strings.Join(set, ", ") + `
		WHERE uid = ` + placeholder(len(args)-1) + ` AND creator_id = ` + placeholder(len(args)) + `
		RETURNING id`

	var noteID int64
	if err := tx.QueryRowContext(ctx, stmt, args...).Scan(&noteID); err != nil {
		if err == sql.ErrNoRows {
			return nil, storeerrors.NotFoundf("note %s not found", update.UID)
		}
		return nil, errors.Wrap(err, "failed to update note")
	}

	if update.Contexts != nil {
		if _, err := tx.ExecContext(ctx, "DELETE FROM note_context WHERE note_id = $1", noteID); err != nil {
			return nil, errors.Wrap(err, "failed to unlink note contexts")
		}
		if err := d.linkContextsTx(ctx, tx, noteID, update.CreatorID, update.Contexts); err != nil {
			return nil, err
		}
		if err := d.deleteOrphanContextsTx(ctx, tx, update.CreatorID); err != nil {
			return nil, err
		}
	}

	if contentChanged {
		// A stale vector must never outlive its source text.
		if _, err := tx.ExecContext(ctx, "DELETE FROM note_embedding WHERE note_id = $1", noteID); err != nil {
			return nil, errors.Wrap(err, "failed to clear note embedding")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit note update")
	}

	list, err := d.ListNotes(ctx, &store.FindNote{ID: &noteID})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, storeerrors.NotFoundf("note %s not found", update.UID)
	}
	return list[0], nil
}

func (d *DB) DeleteNote(ctx context.Context, delete *store.DeleteNote) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var noteID int64
	err = tx.QueryRowContext(ctx,
		"DELETE FROM note WHERE uid = $1 AND creator_id = $2 RETURNING id",
		delete.UID, delete.CreatorID,
	).Scan(&noteID)
	if err != nil {
		if err == sql.ErrNoRows {
			return storeerrors.NotFoundf("note %s not found", delete.UID)
		}
		return errors.Wrap(err, "failed to delete note")
	}

	// Join rows cascade; contexts left without notes are removed so they
	// stop surfacing in stats.
	if err := d.deleteOrphanContextsTx(ctx, tx, delete.CreatorID); err != nil {
		return err
	}

	return tx.Commit()
}

// linkContextsTx ensures context rows exist and links them to the note.
func (d *DB) linkContextsTx(ctx context.Context, tx *sql.Tx, noteID int64, creatorID int32, contexts []string) error {
	for _, name := range contexts {
		var contextID int32
		// DO UPDATE instead of DO NOTHING so the id always returns.
		err := tx.QueryRowContext(ctx, `
			INSERT INTO context (creator_id, name) VALUES ($1, $2)
			ON CONFLICT (creator_id, name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id`,
			creatorID, name,
		).Scan(&contextID)
		if err != nil {
			return errors.Wrapf(err, "failed to upsert context %s", name)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO note_context (note_id, context_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			noteID, contextID,
		); err != nil {
			return errors.Wrapf(err, "failed to link context %s", name)
		}
	}
	return nil
}

func (d *DB) deleteOrphanContextsTx(ctx context.Context, tx *sql.Tx, creatorID int32) error {
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM context c
		WHERE c.creator_id = $1
			AND NOT EXISTS (SELECT 1 FROM note_context nc WHERE nc.context_id = c.id)`,
		creatorID,
	); err != nil {
		return errors.Wrap(err, "failed to delete orphan contexts")
	}
	return nil
}

func scanNotes(rows *sql.Rows) ([]*store.Note, error) {
	list := make([]*store.Note, 0)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, note)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate notes")
	}
	return list, nil
}

func scanNoteWithScore(rows *sql.Rows) (*store.Note, float32, error) {
	var note store.Note
	var noteType, status string
	var deadline sql.NullInt64
	var contexts, suggested, tags []byte
	var embeddingText, embeddingModel string
	var embeddingTs int64
	var score float32

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
		&embeddingText,
		&embeddingModel,
		&embeddingTs,
		&score,
	); err != nil {
		return nil, 0, errors.Wrap(err, "failed to scan scored note")
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

	if embeddingText != "" && embeddingModel != "" {
		if note.Embedding, err = parseVectorText(embeddingText); err != nil {
			return nil, 0, err
		}
		note.EmbeddingModel = embeddingModel
		note.EmbeddingTs = embeddingTs
	}

	return &note, score, nil
}

func scanNote(rows *sql.Rows) (*store.Note, error) {
	var note store.Note
	var noteType, status string
	var deadline sql.NullInt64
	var contexts, suggested, tags []byte
	var embeddingText, embeddingModel string
	var embeddingTs int64

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
		&embeddingText,
		&embeddingModel,
		&embeddingTs,
	); err != nil {
		return nil, errors.Wrap(err, "failed to scan note")
	}

	note.Type = store.NoteType(noteType)
	note.Status = store.TodoStatus(status)
	if deadline.Valid {
		note.Deadline = &deadline.Int64
	}

	var err error
	if note.Contexts, err = unmarshalStringList(contexts); err != nil {
		return nil, err
	}
	if note.SuggestedContexts, err = unmarshalStringList(suggested); err != nil {
		return nil, err
	}
	if note.Tags, err = unmarshalStringList(tags); err != nil {
		return nil, err
	}

	if embeddingText != "" && embeddingModel != "" {
		if note.Embedding, err = parseVectorText(embeddingText); err != nil {
			return nil, err
		}
		note.EmbeddingModel = embeddingModel
		note.EmbeddingTs = embeddingTs
	}

	return &note, nil
}
