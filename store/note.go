package store

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/notectx/notectx/internal/errors"
)

// NoteType is the type of a note.
type NoteType string

const (
	// NoteTypePlain is a regular free-form note.
	NoteTypePlain NoteType = "note"
	// NoteTypeTodo is an actionable note carrying a status and optional deadline.
	NoteTypeTodo NoteType = "todo"
	// NoteTypeAI is a note produced by the answer flow.
	NoteTypeAI NoteType = "ai-note"
)

// TodoStatus is the workflow status of a todo note.
type TodoStatus string

const (
	TodoStatusTodo     TodoStatus = "todo"
	TodoStatusDoing    TodoStatus = "doing"
	TodoStatusDone     TodoStatus = "done"
	TodoStatusObsolete TodoStatus = "obsolete"
)

// Note is the object representing a note.
type Note struct {
	ID        int64
	UID       string
	CreatorID int32
	CreatedTs int64
	UpdatedTs int64

	Content  string
	Type     NoteType
	Status   TodoStatus
	Deadline *int64

	// KeyContext is the single primary context of the note, often a date
	// slug in dd-month-yyyy form. Contexts always contains it.
	KeyContext        string
	Contexts          []string
	SuggestedContexts []string
	Tags              []string

	// Embedding triple: either all three are set or none is. The vector is
	// attached asynchronously after creation and cleared on content change.
	Embedding      []float32
	EmbeddingModel string
	EmbeddingTs    int64
}

// HasEmbedding reports whether the note carries a current embedding.
func (n *Note) HasEmbedding() bool {
	return len(n.Embedding) > 0 && n.EmbeddingModel != ""
}

// HasContext reports whether the note is tagged with the given context.
func (n *Note) HasContext(name string) bool {
	for _, c := range n.Contexts {
		if c == name {
			return true
		}
	}
	return false
}

// FindNote is the find condition for notes. All fields are optional and
// combined with AND when present.
type FindNote struct {
	ID        *int64
	UID       *string
	CreatorID *int32

	// CreatedAfter is inclusive, CreatedBefore is exclusive:
	// created_ts >= after AND created_ts < before.
	CreatedAfter  *int64
	CreatedBefore *int64

	// Contexts matches notes whose context set is a superset of the given
	// list (AND semantics, not OR).
	Contexts []string

	Type *NoteType

	// Limit defaults to DefaultListLimit and is clamped into
	// [1, MaxListLimit]. Clamping, not rejection, is the contract.
	Limit  *int
	Offset *int
}

// UpdateNote is the partial update request for a note. Nil fields are left
// untouched. A content update clears the embedding triple.
type UpdateNote struct {
	UID       string
	CreatorID int32

	Content           *string
	Type              *NoteType
	Status            *TodoStatus
	Deadline          *int64
	KeyContext        *string
	Contexts          []string
	SuggestedContexts []string
	Tags              []string

	UpdatedTs *int64
}

// DeleteNote is the delete request for a note.
type DeleteNote struct {
	UID       string
	CreatorID int32
}

const (
	// DefaultListLimit is the page size used when the caller does not ask
	// for one.
	DefaultListLimit = 20
	// MaxListLimit is the hard cap on a single notes page. Out-of-range
	// requests are clamped, never rejected.
	MaxListLimit = 30
)

// normalizeLimit clamps a requested limit into [1, MaxListLimit], applying
// the default when absent.
func normalizeLimit(limit *int) int {
	if limit == nil {
		return DefaultListLimit
	}
	if *limit < 1 {
		return 1
	}
	if *limit > MaxListLimit {
		return MaxListLimit
	}
	return *limit
}

// normalizeContexts dedups the context list, folds in the key context, and
// returns a sorted set.
func normalizeContexts(keyContext string, contexts []string) []string {
	seen := make(map[string]bool, len(contexts)+1)
	out := make([]string, 0, len(contexts)+1)
	if keyContext != "" {
		seen[keyContext] = true
		out = append(out, keyContext)
	}
	for _, c := range contexts {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// CreateNote validates and persists a new note, returning the stored row.
func (s *Store) CreateNote(ctx context.Context, create *Note) (*Note, error) {
	if strings.TrimSpace(create.Content) == "" {
		return nil, errors.InvalidArgument("note content must not be empty")
	}
	if create.UID == "" {
		create.UID = shortuuid.New()
	}
	if create.Type == "" {
		create.Type = NoteTypePlain
	}
	if create.Type == NoteTypeTodo && create.Status == "" {
		create.Status = TodoStatusTodo
	}
	now := time.Now().Unix()
	if create.CreatedTs == 0 {
		create.CreatedTs = now
	}
	if create.UpdatedTs == 0 {
		create.UpdatedTs = create.CreatedTs
	}
	create.Contexts = normalizeContexts(create.KeyContext, create.Contexts)
	create.SuggestedContexts = subtractContexts(create.SuggestedContexts, create.Contexts)

	note, err := s.driver.CreateNote(ctx, create)
	if err != nil {
		return nil, err
	}
	s.invalidateContextStats(note.CreatorID)
	return note, nil
}

// UpdateNote applies a partial update and returns the authoritative row.
func (s *Store) UpdateNote(ctx context.Context, update *UpdateNote) (*Note, error) {
	if update.Content != nil && strings.TrimSpace(*update.Content) == "" {
		return nil, errors.InvalidArgument("note content must not be empty")
	}
	if update.Contexts != nil || update.KeyContext != nil || update.SuggestedContexts != nil {
		// The context set must stay a superset of the key context and the
		// suggested set disjoint from the accepted one, so the current row
		// is needed to resolve a one-sided patch.
		current, err := s.GetNote(ctx, &FindNote{UID: &update.UID, CreatorID: &update.CreatorID})
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, errors.NotFoundf("note %s not found", update.UID)
		}
		keyContext := current.KeyContext
		if update.KeyContext != nil {
			keyContext = *update.KeyContext
		}
		contexts := current.Contexts
		if update.Contexts != nil {
			contexts = update.Contexts
		}
		accepted := normalizeContexts(keyContext, contexts)
		if update.Contexts != nil || update.KeyContext != nil {
			update.Contexts = accepted
		}

		suggested := current.SuggestedContexts
		if update.SuggestedContexts != nil {
			suggested = update.SuggestedContexts
		}
		update.SuggestedContexts = subtractContexts(suggested, accepted)
	}
	if update.UpdatedTs == nil {
		now := time.Now().Unix()
		update.UpdatedTs = &now
	}

	note, err := s.driver.UpdateNote(ctx, update)
	if err != nil {
		return nil, err
	}
	s.invalidateContextStats(update.CreatorID)
	return note, nil
}

// DeleteNote hard-deletes a note. Deleting a missing uid fails with NOT_FOUND.
func (s *Store) DeleteNote(ctx context.Context, delete *DeleteNote) error {
	if err := s.driver.DeleteNote(ctx, delete); err != nil {
		return err
	}
	s.invalidateContextStats(delete.CreatorID)
	return nil
}

// ListNotes lists notes with filter, most recent first. The caller's find
// struct is never mutated; clamping happens on a copy.
func (s *Store) ListNotes(ctx context.Context, find *FindNote) ([]*Note, error) {
	limit := normalizeLimit(find.Limit)
	scoped := *find
	scoped.Limit = &limit
	return s.driver.ListNotes(ctx, &scoped)
}

// GetNote gets a single note, or nil when it does not exist.
func (s *Store) GetNote(ctx context.Context, find *FindNote) (*Note, error) {
	one := 1
	scoped := *find
	scoped.Limit = &one
	list, err := s.driver.ListNotes(ctx, &scoped)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// ListNotesByUIDs returns the subset of notes that exist. Missing uids are
// silently omitted; callers must check the count.
func (s *Store) ListNotesByUIDs(ctx context.Context, creatorID int32, uids []string) ([]*Note, error) {
	if len(uids) == 0 {
		return []*Note{}, nil
	}
	return s.driver.ListNotesByUIDs(ctx, creatorID, uids)
}

func subtractContexts(candidates, accepted []string) []string {
	if len(candidates) == 0 {
		return candidates
	}
	acceptedSet := make(map[string]bool, len(accepted))
	for _, c := range accepted {
		acceptedSet[c] = true
	}
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if !acceptedSet[c] {
			out = append(out, c)
		}
	}
	return out
}
