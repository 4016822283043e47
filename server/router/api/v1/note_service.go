package v1

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	notesvc "github.com/notectx/notectx/server/service/note"
	"github.com/notectx/notectx/store"
)

// NoteResponse is the wire shape of a note. The embedding vector itself is
// never exposed, only whether one exists.
type NoteResponse struct {
	UID       string `json:"uid"`
	CreatorID int32  `json:"creatorId"`
	CreatedTs int64  `json:"createdTs"`
	UpdatedTs int64  `json:"updatedTs"`

	Content  string `json:"content"`
	Type     string `json:"type"`
	Status   string `json:"status,omitempty"`
	Deadline *int64 `json:"deadline,omitempty"`

	KeyContext        string   `json:"keyContext"`
	Contexts          []string `json:"contexts"`
	SuggestedContexts []string `json:"suggestedContexts,omitempty"`
	Tags              []string `json:"tags,omitempty"`

	HasEmbedding bool `json:"hasEmbedding"`
}

func convertNote(n *store.Note) *NoteResponse {
	contexts := n.Contexts
	if contexts == nil {
		contexts = []string{}
	}
	return &NoteResponse{
		UID:               n.UID,
		CreatorID:         n.CreatorID,
		CreatedTs:         n.CreatedTs,
		UpdatedTs:         n.UpdatedTs,
		Content:           n.Content,
		Type:              string(n.Type),
		Status:            string(n.Status),
		Deadline:          n.Deadline,
		KeyContext:        n.KeyContext,
		Contexts:          contexts,
		SuggestedContexts: n.SuggestedContexts,
		Tags:              n.Tags,
		HasEmbedding:      n.HasEmbedding(),
	}
}

func convertNotes(notes []*store.Note) []*NoteResponse {
	out := make([]*NoteResponse, len(notes))
	for i, n := range notes {
		out[i] = convertNote(n)
	}
	return out
}

// CreateNoteRequest is the create payload.
type CreateNoteRequest struct {
	Content    string   `json:"content"`
	Type       string   `json:"type"`
	Status     string   `json:"status"`
	Deadline   *int64   `json:"deadline"`
	KeyContext string   `json:"keyContext"`
	Contexts   []string `json:"contexts"`
}

// CreateNote creates a note.
// POST /api/v1/notes
func (s *APIV1Service) CreateNote(c echo.Context) error {
	req := &CreateNoteRequest{}
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("malformed request body"))
	}

	note, err := s.NoteService.Create(c.Request().Context(), &notesvc.CreateRequest{
		CreatorID:  userID(c),
		Content:    req.Content,
		Type:       store.NoteType(req.Type),
		Status:     store.TodoStatus(req.Status),
		Deadline:   req.Deadline,
		KeyContext: req.KeyContext,
		Contexts:   req.Contexts,
	})
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusCreated, convertNote(note))
}

// ListNotes lists notes with filters.
// GET /api/v1/notes?contexts=a,b&type=todo&createdAfter=...&createdBefore=...&limit=20&offset=0
func (s *APIV1Service) ListNotes(c echo.Context) error {
	uid := userID(c)
	find := &store.FindNote{CreatorID: &uid}

	if raw := c.QueryParam("contexts"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			name = strings.TrimSpace(name)
			if name != "" {
				find.Contexts = append(find.Contexts, name)
			}
		}
	}
	if raw := c.QueryParam("type"); raw != "" {
		noteType := store.NoteType(raw)
		find.Type = &noteType
	}
	if raw := c.QueryParam("createdAfter"); raw != "" {
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorBody("createdAfter must be a unix timestamp"))
		}
		find.CreatedAfter = &ts
	}
	if raw := c.QueryParam("createdBefore"); raw != "" {
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorBody("createdBefore must be a unix timestamp"))
		}
		find.CreatedBefore = &ts
	}
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorBody("limit must be an integer"))
		}
		find.Limit = &limit
	}
	if raw := c.QueryParam("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return c.JSON(http.StatusBadRequest, errorBody("offset must be a non-negative integer"))
		}
		find.Offset = &offset
	}

	notes, err := s.Store.ListNotes(c.Request().Context(), find)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"notes": convertNotes(notes)})
}

// GetNote gets one note by uid.
// GET /api/v1/notes/:uid
func (s *APIV1Service) GetNote(c echo.Context) error {
	uid := userID(c)
	noteUID := c.Param("uid")
	note, err := s.Store.GetNote(c.Request().Context(), &store.FindNote{UID: &noteUID, CreatorID: &uid})
	if err != nil {
		return jsonError(c, err)
	}
	if note == nil {
		return c.JSON(http.StatusNotFound, errorBody("note not found"))
	}
	return c.JSON(http.StatusOK, convertNote(note))
}

// UpdateNoteRequest is the partial update payload. Absent fields are left
// untouched; contexts replace the whole set when present.
type UpdateNoteRequest struct {
	Content    *string  `json:"content"`
	Type       *string  `json:"type"`
	Status     *string  `json:"status"`
	Deadline   *int64   `json:"deadline"`
	KeyContext *string  `json:"keyContext"`
	Contexts   []string `json:"contexts"`
}

// UpdateNote applies a partial update.
// PATCH /api/v1/notes/:uid
func (s *APIV1Service) UpdateNote(c echo.Context) error {
	req := &UpdateNoteRequest{}
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("malformed request body"))
	}

	update := &notesvc.UpdateRequest{
		CreatorID:  userID(c),
		UID:        c.Param("uid"),
		Content:    req.Content,
		Deadline:   req.Deadline,
		KeyContext: req.KeyContext,
		Contexts:   req.Contexts,
	}
	if req.Type != nil {
		noteType := store.NoteType(*req.Type)
		update.Type = &noteType
	}
	if req.Status != nil {
		status := store.TodoStatus(*req.Status)
		update.Status = &status
	}

	note, err := s.NoteService.Update(c.Request().Context(), update)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, convertNote(note))
}

// DeleteNote hard-deletes a note.
// DELETE /api/v1/notes/:uid
func (s *APIV1Service) DeleteNote(c echo.Context) error {
	err := s.Store.DeleteNote(c.Request().Context(), &store.DeleteNote{
		UID:       c.Param("uid"),
		CreatorID: userID(c),
	})
	if err != nil {
		return jsonError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// BatchGetNotesRequest asks for several notes at once. Missing uids are
// omitted from the response rather than failing the call.
type BatchGetNotesRequest struct {
	UIDs []string `json:"uids"`
}

// BatchGetNotes fetches notes by uid list.
// POST /api/v1/notes/batch-get
func (s *APIV1Service) BatchGetNotes(c echo.Context) error {
	req := &BatchGetNotesRequest{}
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("malformed request body"))
	}
	notes, err := s.Store.ListNotesByUIDs(c.Request().Context(), userID(c), req.UIDs)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"notes": convertNotes(notes)})
}
