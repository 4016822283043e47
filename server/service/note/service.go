// Package note holds the write-path glue between raw note content and the
// store: inline markup parsing, context suggestion, and key context
// derivation.
package note

import (
	"context"
	"log/slog"
	"time"

	"github.com/notectx/notectx/plugin/suggest"
	"github.com/notectx/notectx/store"
)

// Service enriches notes on their way into the store. Tags and context
// links are parsed out of content, and the suggester proposes contexts the
// user might want to accept.
type Service struct {
	store     *store.Store
	suggester suggest.ContextSuggester
}

// NewService creates a note service. The suggester may be nil, in which
// case suggested contexts stay empty.
func NewService(s *store.Store, suggester suggest.ContextSuggester) *Service {
	return &Service{
		store:     s,
		suggester: suggester,
	}
}

// CreateRequest carries the caller-provided fields for a new note.
type CreateRequest struct {
	CreatorID  int32
	Content    string
	Type       store.NoteType
	Status     store.TodoStatus
	Deadline   *int64
	KeyContext string
	Contexts   []string
}

// Create parses inline markup, attaches suggestions, and persists the note.
// The key context defaults to today's date slug when absent, keeping every
// note reachable through at least one context.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*store.Note, error) {
	parsed := ParseContent(req.Content)

	keyContext := req.KeyContext
	if keyContext == "" {
		keyContext = DateSlug(time.Now())
	}

	contexts := make([]string, 0, len(req.Contexts)+len(parsed.Contexts))
	contexts = append(contexts, req.Contexts...)
	contexts = append(contexts, parsed.Contexts...)

	create := &store.Note{
		CreatorID:         req.CreatorID,
		Content:           req.Content,
		Type:              req.Type,
		Status:            req.Status,
		Deadline:          req.Deadline,
		KeyContext:        keyContext,
		Contexts:          contexts,
		SuggestedContexts: s.suggestContexts(ctx, req.CreatorID, req.Content),
		Tags:              parsed.Tags,
	}
	return s.store.CreateNote(ctx, create)
}

// UpdateRequest carries a partial update. Nil fields are left untouched.
type UpdateRequest struct {
	CreatorID int32
	UID       string

	Content    *string
	Type       *store.NoteType
	Status     *store.TodoStatus
	Deadline   *int64
	KeyContext *string
	Contexts   []string
}

// Update re-parses markup when content changes so tags and context links
// stay in sync with the text.
func (s *Service) Update(ctx context.Context, req *UpdateRequest) (*store.Note, error) {
	update := &store.UpdateNote{
		UID:        req.UID,
		CreatorID:  req.CreatorID,
		Content:    req.Content,
		Type:       req.Type,
		Status:     req.Status,
		Deadline:   req.Deadline,
		KeyContext: req.KeyContext,
		Contexts:   req.Contexts,
	}

	if req.Content != nil {
		parsed := ParseContent(*req.Content)
		update.Tags = parsed.Tags
		if len(parsed.Contexts) > 0 && update.Contexts == nil {
			current, err := s.store.GetNote(ctx, &store.FindNote{UID: &req.UID, CreatorID: &req.CreatorID})
			if err != nil {
				return nil, err
			}
			if current != nil {
				update.Contexts = mergeContexts(current.Contexts, parsed.Contexts)
			}
		} else if update.Contexts != nil {
			update.Contexts = mergeContexts(update.Contexts, parsed.Contexts)
		}
		update.SuggestedContexts = s.suggestContexts(ctx, req.CreatorID, *req.Content)
	}

	return s.store.UpdateNote(ctx, update)
}

func (s *Service) suggestContexts(ctx context.Context, creatorID int32, content string) []string {
	if s.suggester == nil {
		return nil
	}
	resp, err := s.suggester.Suggest(ctx, &suggest.SuggestRequest{
		UserID:  creatorID,
		Content: content,
	})
	if err != nil {
		// Suggestions are decoration; a failing suggester never blocks a write.
		slog.Warn("context suggestion failed", "user_id", creatorID, "error", err)
		return nil
	}
	names := make([]string, 0, len(resp.Contexts))
	for _, sug := range resp.Contexts {
		names = append(names, sug.Name)
	}
	return names
}

// DateSlug formats a time as the dd-month-yyyy key context, e.g.
// "29-august-2026".
func DateSlug(t time.Time) string {
	return Slugify(t.Format("2-January-2006"))
}

func mergeContexts(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, c := range list {
			if c == "" || seen[c] {
				continue
			}
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
