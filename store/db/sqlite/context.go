package sqlite

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	storeerrors "github.com/notectx/notectx/internal/errors"
	"github.com/notectx/notectx/store"
)

// tallyContexts scans every note of the creator and aggregates context
// membership. With the embedded-list layout there is no join index to lean
// on, so stats cost O(notes) per call; the Store's cache amortizes it.
func (d *DB) tallyContexts(ctx context.Context, creatorID int32) ([]*store.ContextStats, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT contexts, updated_ts FROM note WHERE creator_id = ?",
		creatorID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan note contexts")
	}
	defer rows.Close()

	tally := map[string]*store.ContextStats{}
	for rows.Next() {
		var raw string
		var updatedTs int64
		if err := rows.Scan(&raw, &updatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan context row")
		}
		names, err := unmarshalStringList(raw)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			stats, ok := tally[name]
			if !ok {
				stats = &store.ContextStats{Name: name}
				tally[name] = stats
			}
			stats.Count++
			if updatedTs > stats.LastUsedTs {
				stats.LastUsedTs = updatedTs
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate context rows")
	}

	list := make([]*store.ContextStats, 0, len(tally))
	for _, stats := range tally {
		list = append(list, stats)
	}
	sortContextStats(list)
	return list, nil
}

// sortContextStats applies the total order required for stable pagination:
// count desc, lastUsed desc, name asc.
func sortContextStats(list []*store.ContextStats) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Count != list[j].Count {
			return list[i].Count > list[j].Count
		}
		if list[i].LastUsedTs != list[j].LastUsedTs {
			return list[i].LastUsedTs > list[j].LastUsedTs
		}
		return list[i].Name < list[j].Name
	})
}

func (d *DB) PaginateContextStats(ctx context.Context, find *store.FindContextStats) (*store.ContextStatsPage, error) {
	list, err := d.tallyContexts(ctx, find.CreatorID)
	if err != nil {
		return nil, err
	}

	// Search restricts before paging; the two compose.
	if find.Search != nil && *find.Search != "" {
		term := strings.ToLower(*find.Search)
		filtered := make([]*store.ContextStats, 0, len(list))
		for _, stats := range list {
			if strings.Contains(strings.ToLower(stats.Name), term) {
				filtered = append(filtered, stats)
			}
		}
		list = filtered
	}

	total := len(list)
	start := (find.Page - 1) * find.PageSize
	if start > total {
		start = total
	}
	end := start + find.PageSize
	if end > total {
		end = total
	}

	return &store.ContextStatsPage{
		Items:   list[start:end],
		Total:   total,
		HasMore: end < total,
	}, nil
}

func (d *DB) SearchContexts(ctx context.Context, creatorID int32, term string, limit int) ([]*store.ContextStats, error) {
	list, err := d.tallyContexts(ctx, creatorID)
	if err != nil {
		return nil, err
	}

	term = strings.ToLower(term)
	matched := make([]*store.ContextStats, 0, limit)
	for _, stats := range list {
		if term != "" && !strings.Contains(strings.ToLower(stats.Name), term) {
			continue
		}
		matched = append(matched, stats)
		if len(matched) >= limit {
			break
		}
	}
	return matched, nil
}

func (d *DB) ContextExists(ctx context.Context, creatorID int32, name string) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM note
			WHERE creator_id = ?
				AND EXISTS (SELECT 1 FROM json_each(note.contexts) je WHERE je.value = ?)
		)`, creatorID, name,
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check context existence")
	}
	return exists, nil
}

// RenameContext rewrites the context list of every affected note inside one
// transaction, reproducing the join-table merge semantics of the postgres
// backend: notes gain NewName deduplicated and OldName disappears.
func (d *DB) RenameContext(ctx context.Context, rename *store.RenameContext) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, key_context, contexts FROM note
		WHERE creator_id = ?
			AND (key_context = ? OR EXISTS (SELECT 1 FROM json_each(note.contexts) je WHERE je.value = ?))`,
		rename.CreatorID, rename.OldName, rename.OldName,
	)
	if err != nil {
		return errors.Wrap(err, "failed to find notes for rename")
	}

	type affected struct {
		id         int64
		keyContext string
		contexts   []string
	}
	list := []affected{}
	for rows.Next() {
		var a affected
		var raw string
		if err := rows.Scan(&a.id, &a.keyContext, &raw); err != nil {
			rows.Close()
			return errors.Wrap(err, "failed to scan note for rename")
		}
		if a.contexts, err = unmarshalStringList(raw); err != nil {
			rows.Close()
			return err
		}
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return errors.Wrap(err, "failed to iterate notes for rename")
	}
	rows.Close()

	if len(list) == 0 {
		return storeerrors.NotFoundf("context %s not found", rename.OldName)
	}

	now := time.Now().Unix()
	for _, a := range list {
		renamed := replaceContext(a.contexts, rename.OldName, rename.NewName)
		raw, err := marshalStringList(renamed)
		if err != nil {
			return err
		}
		keyContext := a.keyContext
		if keyContext == rename.OldName {
			keyContext = rename.NewName
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE note SET contexts = ?, key_context = ?, updated_ts = ? WHERE id = ?",
			raw, keyContext, now, a.id,
		); err != nil {
			return errors.Wrap(err, "failed to rewrite note contexts")
		}
	}

	return tx.Commit()
}

// replaceContext swaps oldName for newName in a context list, deduplicating
// and keeping the set sorted.
func replaceContext(contexts []string, oldName, newName string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(contexts))
	for _, c := range contexts {
		if c == oldName {
			c = newName
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
