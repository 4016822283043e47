package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	notesvc "github.com/notectx/notectx/server/service/note"
	"github.com/notectx/notectx/store"
)

// ContextStatsResponse is the wire shape of one aggregated context. The
// display name is the reversible human form of the slug.
type ContextStatsResponse struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Count       int    `json:"count"`
	LastUsedTs  int64  `json:"lastUsedTs"`
}

func convertContextStats(items []*store.ContextStats) []*ContextStatsResponse {
	out := make([]*ContextStatsResponse, len(items))
	for i, item := range items {
		out[i] = &ContextStatsResponse{
			Name:        item.Name,
			DisplayName: notesvc.Humanize(item.Name),
			Count:       item.Count,
			LastUsedTs:  item.LastUsedTs,
		}
	}
	return out
}

// ListContextStats returns the paginated context aggregate.
// GET /api/v1/contexts?page=1&pageSize=20&search=gar
func (s *APIV1Service) ListContextStats(c echo.Context) error {
	find := &store.FindContextStats{
		CreatorID: userID(c),
	}
	if raw := c.QueryParam("search"); raw != "" {
		find.Search = &raw
	}
	if raw := c.QueryParam("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorBody("page must be an integer"))
		}
		find.Page = page
	}
	if raw := c.QueryParam("pageSize"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorBody("pageSize must be an integer"))
		}
		find.PageSize = size
	}

	page, err := s.Store.PaginateContextStats(c.Request().Context(), find)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"contexts": convertContextStats(page.Items),
		"total":    page.Total,
		"hasMore":  page.HasMore,
	})
}

// SearchContexts returns contexts matching a substring, for autocomplete.
// GET /api/v1/contexts/search?q=gar&limit=10
func (s *APIV1Service) SearchContexts(c echo.Context) error {
	term := c.QueryParam("q")
	limit := 10
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorBody("limit must be an integer"))
		}
		limit = parsed
	}

	items, err := s.Store.SearchContexts(c.Request().Context(), userID(c), term, limit)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"contexts": convertContextStats(items)})
}

// ContextExists reports whether a context currently has notes.
// GET /api/v1/contexts/exists?name=garden
func (s *APIV1Service) ContextExists(c echo.Context) error {
	name := c.QueryParam("name")
	if name == "" {
		return c.JSON(http.StatusBadRequest, errorBody("name is required"))
	}
	exists, err := s.Store.ContextExists(c.Request().Context(), userID(c), name)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"exists": exists})
}

// RenameContextRequest is the rename payload.
type RenameContextRequest struct {
	OldName string `json:"oldName"`
	NewName string `json:"newName"`
}

// RenameContext renames a context across all notes, merging with the
// target when it already exists.
// POST /api/v1/contexts/rename
func (s *APIV1Service) RenameContext(c echo.Context) error {
	req := &RenameContextRequest{}
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("malformed request body"))
	}
	err := s.Store.RenameContext(c.Request().Context(), &store.RenameContext{
		CreatorID: userID(c),
		OldName:   req.OldName,
		NewName:   req.NewName,
	})
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"name": req.NewName})
}
