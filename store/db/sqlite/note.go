package sqlite

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
	note.contexts, note.suggested_contexts, note.tags,
	note.embedding, note.embedding_model, note.embedding_ts`

func (d *DB) CreateNote(ctx context.Context, create *store.Note) (*store.Note, error) {
	contexts, err := marshalStringList(create.Contexts)
	if err != nil {
		return nil, err
	}
	suggested, err := marshalStringList(create.SuggestedContexts)
	if err != nil {
		return nil, err
	}
	tags, err := marshalStringList(create.Tags)
	if err != nil {
		return nil, err
	}

	fields := []string{
		"uid", "creator_id", "content", "type", "status", "deadline_ts",
		"key_context", "contexts", "suggested_contexts", "tags",
	}
	args := []any{
		create.UID, create.CreatorID, create.Content, string(create.Type), string(create.Status),
		create.Deadline, create.KeyContext, contexts, suggested, tags,
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

	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(
		&create.ID,
		&create.CreatedTs,
		&create.UpdatedTs,
	); err != nil {
		return nil, errors.Wrap(err, "failed to create note")
	}

	return create, nil
}

func (d *DB) ListNotes(ctx context.Context, find *store.FindNote) ([]*store.Note, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "note.id = ?"), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "note.uid = ?"), append(args, *v)
	}
	if v := find.CreatorID; v != nil {
		where, args = append(where, "note.creator_id = ?"), append(args, *v)
	}
	if v := find.CreatedAfter; v != nil {
		where, args = append(where, "note.created_ts >= ?"), append(args, *v)
	}
	if v := find.CreatedBefore; v != nil {
		where, args = append(where, "note.created_ts < ?"), append(args, *v)
	}
	if v := find.Type; v != nil {
		where, args = append(where, "note.type = ?"), append(args, string(*v))
	}
	// Superset semantics: one EXISTS per required context, ANDed together.
	for _, name := range find.Contexts {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(note.contexts) je WHERE je.value = ?)")
		args = append(args, name)
	}

	query := `SELECT ` + noteColumns + ` FROM note
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
	for _, uid := range uids {
		args = append(args, uid)
	}

	// Missing uids are silently omitted; callers check the count.
	query := `SELECT ` + noteColumns + ` FROM note
		WHERE note.creator_id = ? AND note.uid IN (` + placeholders(len(uids)) + `)
		ORDER BY note.created_ts DESC, note.id DESC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list notes by uids")
	}
	defer rows.Close()

	return scanNotes(rows)
}

func (d *DB) UpdateNote(ctx context.Context, update *store.UpdateNote) (*store.Note, error) {
	set, args := []string{}, []any{}

	if v := update.Content; v != nil {
		// A stale vector must never outlive its source text: clear the
		// embedding triple together with the content change.
		set = append(set, "content = ?", "embedding = NULL", "embedding_model = NULL", "embedding_ts = NULL")
		args = append(args, *v)
	}
	if v := update.Type; v != nil {
		set, args = append(set, "type = ?"), append(args, string(*v))
	}
	if v := update.Status; v != nil {
		set, args = append(set, "status = ?"), append(args, string(*v))
	}
	if v := update.Deadline; v != nil {
		set, args = append(set, "deadline_ts = ?"), append(args, *v)
	}
	if v := update.KeyContext; v != nil {
		set, args = append(set, "key_context = ?"), append(args, *v)
	}
	if update.Contexts != nil {
		contexts, err := marshalStringList(update.Contexts)
		if err != nil {
			return nil, err
		}
		set, args = append(set, "contexts = ?"), append(args, contexts)
	}
	if update.SuggestedContexts != nil {
		suggested, err := marshalStringList(update.SuggestedContexts)
		if err != nil {
			return nil, err
		}
		set, args = append(set, "suggested_contexts = ?"), append(args, suggested)
	}
	if update.Tags != nil {
		tags, err := marshalStringList(update.Tags)
		if err != nil {
			return nil, err
		}
		set, args = append(set, "tags = ?"), append(args, tags)
	}
	if v := update.UpdatedTs; v != nil {
		set, args = append(set, "updated_ts = ?"), append(args, *v)
	}

	if len(set) == 0 {
		return nil, storeerrors.InvalidArgument("update request has no fields")
	}

	args = append(args, update.UID, update.CreatorID)
	stmt := `UPDATE note SET ` + strings.Join(set, ", ") + ` WHERE uid = ? AND creator_id = ?`

	result, err := d.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update note")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get affected rows")
	}
	if affected == 0 {
		return nil, storeerrors.NotFoundf("note %s not found", update.UID)
	}

	list, err := d.ListNotes(ctx, &store.FindNote{UID: &update.UID, CreatorID: &update.CreatorID})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, storeerrors.NotFoundf("note %s not found", update.UID)
	}
	return list[0], nil
}

func (d *DB) DeleteNote(ctx context.Context, delete *store.DeleteNote) error {
	result, err := d.db.ExecContext(ctx,
		"DELETE FROM note WHERE uid = ? AND creator_id = ?",
		delete.UID, delete.CreatorID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to delete note")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get affected rows")
	}
	if affected == 0 {
		return storeerrors.NotFoundf("note %s not found", delete.UID)
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

func scanNote(rows *sql.Rows) (*store.Note, error) {
	var note store.Note
	var noteType, status string
	var deadline, embeddingTs sql.NullInt64
	var contexts, suggested, tags string
	var embedding []byte
	var embeddingModel sql.NullString

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

	if len(embedding) > 0 && embeddingModel.Valid {
		note.Embedding = decodeEmbedding(embedding)
		note.EmbeddingModel = embeddingModel.String
		note.EmbeddingTs = embeddingTs.Int64
	}

	return &note, nil
}
