package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	storeerrors "github.com/notectx/notectx/internal/errors"
	"github.com/notectx/notectx/store"
)

// Stats aggregation is a single indexed GROUP BY over the join table; the
// inner joins guarantee only contexts with at least one note surface.
const contextStatsQuery = `
	SELECT c.name, COUNT(nc.note_id)::int AS count, MAX(n.updated_ts) AS last_used_ts
	FROM context c
	JOIN note_context nc ON nc.context_id = c.id
	JOIN note n ON n.id = nc.note_id
	WHERE c.creator_id = $1 AND ($2 = '' OR c.name ILIKE '%' || $2 || '%')
	GROUP BY c.name
	ORDER BY count DESC, last_used_ts DESC, c.name ASC`

func (d *DB) PaginateContextStats(ctx context.Context, find *store.FindContextStats) (*store.ContextStatsPage, error) {
	search := ""
	if find.Search != nil {
		search = *find.Search
	}

	var total int
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT c.name)
		FROM context c
		JOIN note_context nc ON nc.context_id = c.id
		WHERE c.creator_id = $1 AND ($2 = '' OR c.name ILIKE '%' || $2 || '%')`,
		find.CreatorID, search,
	).Scan(&total)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count contexts")
	}

	offset := (find.Page - 1) * find.PageSize
	rows, err := d.db.QueryContext(ctx, contextStatsQuery+` LIMIT $3 OFFSET $4`,
		find.CreatorID, search, find.PageSize, offset,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to paginate context stats")
	}
	defer rows.Close()

	items, err := scanContextStats(rows)
	if err != nil {
		return nil, err
	}

	return &store.ContextStatsPage{
		Items:   items,
		Total:   total,
		HasMore: offset+len(items) < total,
	}, nil
}

func (d *DB) SearchContexts(ctx context.Context, creatorID int32, term string, limit int) ([]*store.ContextStats, error) {
	rows, err := d.db.QueryContext(ctx, contextStatsQuery+` LIMIT $3`, creatorID, term, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search contexts")
	}
	defer rows.Close()

	return scanContextStats(rows)
}

func (d *DB) ContextExists(ctx context.Context, creatorID int32, name string) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM context c
			JOIN note_context nc ON nc.context_id = c.id
			WHERE c.creator_id = $1 AND c.name = $2
		)`, creatorID, name,
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check context existence")
	}
	return exists, nil
}

// RenameContext repoints join rows onto the target context inside a single
// transaction. When the target already exists this is a merge: conflicts on
// the join table's primary key deduplicate notes already tagged with both.
// Readers see either the pre- or post-merge state, never a partial one.
func (d *DB) RenameContext(ctx context.Context, rename *store.RenameContext) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var sourceID int32
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM context WHERE creator_id = $1 AND name = $2",
		rename.CreatorID, rename.OldName,
	).Scan(&sourceID)
	if err != nil {
		if err == sql.ErrNoRows {
			return storeerrors.NotFoundf("context %s not found", rename.OldName)
		}
		return errors.Wrap(err, "failed to find source context")
	}

	var targetID int32
	err = tx.QueryRowContext(ctx, `
		INSERT INTO context (creator_id, name) VALUES ($1, $2)
		ON CONFLICT (creator_id, name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`,
		rename.CreatorID, rename.NewName,
	).Scan(&targetID)
	if err != nil {
		return errors.Wrap(err, "failed to upsert target context")
	}

	now := time.Now().Unix()
	if _, err := tx.ExecContext(ctx, `
		UPDATE note SET updated_ts = $1
		WHERE id IN (SELECT note_id FROM note_context WHERE context_id = $2)`,
		now, sourceID,
	); err != nil {
		return errors.Wrap(err, "failed to touch renamed notes")
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO note_context (note_id, context_id)
		SELECT note_id, $1 FROM note_context WHERE context_id = $2
		ON CONFLICT DO NOTHING`,
		targetID, sourceID,
	); err != nil {
		return errors.Wrap(err, "failed to repoint note contexts")
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM note_context WHERE context_id = $1", sourceID,
	); err != nil {
		return errors.Wrap(err, "failed to unlink source context")
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE note SET key_context = $1, updated_ts = $2
		WHERE creator_id = $3 AND key_context = $4`,
		rename.NewName, now, rename.CreatorID, rename.OldName,
	); err != nil {
		return errors.Wrap(err, "failed to rewrite key contexts")
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM context WHERE id = $1", sourceID,
	); err != nil {
		return errors.Wrap(err, "failed to delete source context")
	}

	return tx.Commit()
}

func scanContextStats(rows *sql.Rows) ([]*store.ContextStats, error) {
	list := []*store.ContextStats{}
	for rows.Next() {
		var stats store.ContextStats
		if err := rows.Scan(&stats.Name, &stats.Count, &stats.LastUsedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan context stats")
		}
		list = append(list, &stats)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate context stats")
	}
	return list, nil
}
