package v1

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/notectx/notectx/plugin/ai"
	"github.com/notectx/notectx/plugin/suggest"
	"github.com/notectx/notectx/server/internal/observability"
	"github.com/notectx/notectx/server/retrieval"
	notesvc "github.com/notectx/notectx/server/service/note"
	"github.com/notectx/notectx/store"
)

// SearchRequest is the search payload.
type SearchRequest struct {
	Question string `json:"question"`
	Limit    int    `json:"limit"`
}

// SearchResultResponse is one search hit with its retrieval provenance.
type SearchResultResponse struct {
	Note    *NoteResponse `json:"note"`
	Score   float32       `json:"score,omitempty"`
	Excerpt string        `json:"excerpt"`
}

// Search runs the retrieval cascade and returns ranked notes.
// POST /api/v1/search
func (s *APIV1Service) Search(c echo.Context) error {
	req := &SearchRequest{}
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("malformed request body"))
	}
	if strings.TrimSpace(req.Question) == "" {
		return c.JSON(http.StatusBadRequest, errorBody("question is required"))
	}

	metrics := observability.GlobalMetrics()
	metrics.RecordRequest("search")
	start := time.Now()

	opts := &retrieval.Options{
		HighThreshold: float32(s.Profile.SearchHighThreshold),
		LowThreshold:  float32(s.Profile.SearchLowThreshold),
		Limit:         req.Limit,
	}
	rc, _ := observability.FromContext(c.Request().Context())
	if rc != nil {
		opts.RequestID = rc.RequestID
		opts.Logger = rc.Logger
	}

	result, err := s.Cascade.Search(c.Request().Context(), userID(c), req.Question, opts)
	metrics.RecordDuration("search", time.Since(start))
	if err != nil {
		metrics.RecordFailure("search")
		return jsonError(c, err)
	}
	if rc != nil {
		rc.Info("search completed",
			slog.String(observability.LogFieldStage, string(result.Stage)),
			slog.Int(observability.LogFieldResultCount, len(result.Notes)),
		)
	}

	tokens := retrieval.Tokenize(req.Question)
	results := make([]*SearchResultResponse, len(result.Notes))
	for i, n := range result.Notes {
		item := &SearchResultResponse{
			Note:    convertNote(n),
			Excerpt: notesvc.Excerpt(n.Content, tokens, 0),
		}
		if i < len(result.Scores) {
			item.Score = result.Scores[i]
		}
		results[i] = item
	}

	return c.JSON(http.StatusOK, map[string]any{
		"stage":   string(result.Stage),
		"results": results,
	})
}

// AskRequest is the question answering payload.
type AskRequest struct {
	Question string `json:"question"`
}

// Ask retrieves relevant notes and, when an LLM is configured, answers the
// question grounded on them. Without an LLM it degrades to returning the
// retrieved notes.
// POST /api/v1/ask
func (s *APIV1Service) Ask(c echo.Context) error {
	req := &AskRequest{}
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("malformed request body"))
	}
	if strings.TrimSpace(req.Question) == "" {
		return c.JSON(http.StatusBadRequest, errorBody("question is required"))
	}

	metrics := observability.GlobalMetrics()
	metrics.RecordRequest("ask")
	start := time.Now()
	defer func() { metrics.RecordDuration("ask", time.Since(start)) }()

	ctx := c.Request().Context()
	opts := &retrieval.Options{
		HighThreshold: float32(s.Profile.SearchHighThreshold),
		LowThreshold:  float32(s.Profile.SearchLowThreshold),
	}
	if rc, ok := observability.FromContext(ctx); ok {
		opts.RequestID = rc.RequestID
		opts.Logger = rc.Logger
	}
	result, err := s.Cascade.Search(ctx, userID(c), req.Question, opts)
	if err != nil {
		metrics.RecordFailure("ask")
		return jsonError(c, err)
	}

	response := map[string]any{
		"stage": string(result.Stage),
		"notes": convertNotes(result.Notes),
	}

	if s.AnswerService != nil && len(result.Notes) > 0 {
		answer, err := s.AnswerService.AnswerQuestion(ctx, &ai.AnswerRequest{
			Question:     req.Question,
			Context:      buildAnswerContext(result.Notes),
			UserContexts: collectContexts(result.Notes),
		})
		if err != nil {
			metrics.RecordFailure("ask")
			return jsonError(c, err)
		}
		response["answer"] = answer.Answer
	}

	return c.JSON(http.StatusOK, response)
}

// buildAnswerContext joins retrieved notes into the LLM context block. Each
// note is capped so one long note cannot crowd out the rest.
func buildAnswerContext(notes []*store.Note) string {
	const perNoteCap = 1500
	var sb strings.Builder
	for i, n := range notes {
		if i > 0 {
			sb.WriteString("\n---\n")
		}
		content := n.Content
		if len(content) > perNoteCap {
			content = content[:perNoteCap]
		}
		sb.WriteString(content)
	}
	return sb.String()
}

func collectContexts(notes []*store.Note) []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range notes {
		for _, name := range n.Contexts {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out
}

// SuggestContextsRequest asks for context suggestions for draft content.
type SuggestContextsRequest struct {
	Content string `json:"content"`
	Max     int    `json:"max"`
}

// SuggestContexts proposes contexts for note content being written.
// POST /api/v1/suggest
func (s *APIV1Service) SuggestContexts(c echo.Context) error {
	req := &SuggestContextsRequest{}
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("malformed request body"))
	}
	resp, err := s.Suggester.Suggest(c.Request().Context(), &suggest.SuggestRequest{
		UserID:         userID(c),
		Content:        req.Content,
		MaxSuggestions: req.Max,
	})
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// GetMetrics returns the in-process counters.
// GET /api/v1/system/metrics
func (s *APIV1Service) GetMetrics(c echo.Context) error {
	return c.JSON(http.StatusOK, observability.GlobalMetrics().Snapshot())
}
