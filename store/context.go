package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/notectx/notectx/internal/errors"
)

// ContextStats is the aggregate over notes tagged with a context.
type ContextStats struct {
	Name       string
	Count      int
	LastUsedTs int64
}

// FindContextStats is the find condition for a context stats page.
type FindContextStats struct {
	CreatorID int32
	// Page is 1-based.
	Page     int
	PageSize int
	// Search restricts to contexts whose name contains the term,
	// case-insensitive, before paging.
	Search *string
}

// ContextStatsPage is one page of context statistics.
type ContextStatsPage struct {
	Items   []*ContextStats
	Total   int
	HasMore bool
}

// RenameContext is the rename request for a context. When NewName already
// exists the rename is a merge: every note tagged OldName gains NewName,
// deduplicated, and OldName disappears.
type RenameContext struct {
	CreatorID int32
	OldName   string
	NewName   string
}

const (
	// DefaultStatsPageSize is the context stats page size when unspecified.
	DefaultStatsPageSize = 20
	// MaxStatsPageSize caps a single context stats page.
	MaxStatsPageSize = 100
)

// PaginateContextStats returns a page of context statistics sorted by count
// descending, then lastUsed descending, then name ascending. Pages are
// served from a short-lived cache invalidated on any note mutation.
func (s *Store) PaginateContextStats(ctx context.Context, find *FindContextStats) (*ContextStatsPage, error) {
	if find.Page < 1 {
		find.Page = 1
	}
	if find.PageSize < 1 {
		find.PageSize = DefaultStatsPageSize
	}
	if find.PageSize > MaxStatsPageSize {
		find.PageSize = MaxStatsPageSize
	}

	cacheKey := contextStatsCacheKey(find)
	if cached, ok := s.contextStatsCache.Get(cacheKey); ok {
		if page, ok := cached.(*ContextStatsPage); ok {
			return page, nil
		}
	}

	page, err := s.driver.PaginateContextStats(ctx, find)
	if err != nil {
		return nil, err
	}
	s.contextStatsCache.Set(cacheKey, page)
	return page, nil
}

// SearchContexts returns contexts whose name contains the term,
// case-insensitive, ranked by count descending then lastUsed descending.
func (s *Store) SearchContexts(ctx context.Context, creatorID int32, term string, limit int) ([]*ContextStats, error) {
	if limit < 1 {
		limit = DefaultStatsPageSize
	}
	if limit > MaxStatsPageSize {
		limit = MaxStatsPageSize
	}
	return s.driver.SearchContexts(ctx, creatorID, term, limit)
}

// ContextExists reports whether at least one note of the creator is tagged
// with the given context.
func (s *Store) ContextExists(ctx context.Context, creatorID int32, name string) (bool, error) {
	if strings.TrimSpace(name) == "" {
		return false, nil
	}
	return s.driver.ContextExists(ctx, creatorID, name)
}

// RenameContext renames a context, merging into the target when it already
// exists. The operation is atomic with respect to concurrent readers.
func (s *Store) RenameContext(ctx context.Context, rename *RenameContext) error {
	rename.OldName = strings.TrimSpace(rename.OldName)
	rename.NewName = strings.TrimSpace(rename.NewName)
	if rename.OldName == "" || rename.NewName == "" {
		return errors.InvalidArgument("context names must not be empty")
	}
	if rename.OldName == rename.NewName {
		return nil
	}
	if err := s.driver.RenameContext(ctx, rename); err != nil {
		return err
	}
	s.invalidateContextStats(rename.CreatorID)
	return nil
}

func contextStatsCacheKey(find *FindContextStats) string {
	search := ""
	if find.Search != nil {
		search = strings.ToLower(*find.Search)
	}
	return fmt.Sprintf("context-stats:%d:%d:%d:%s", find.CreatorID, find.Page, find.PageSize, search)
}

func (s *Store) invalidateContextStats(creatorID int32) {
	s.contextStatsCache.DeletePrefix(fmt.Sprintf("context-stats:%d:", creatorID))
}
