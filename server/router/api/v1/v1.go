// Package v1 exposes the JSON HTTP API of the notes engine.
package v1

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/notectx/notectx/internal/errors"
	"github.com/notectx/notectx/internal/profile"
	"github.com/notectx/notectx/plugin/ai"
	"github.com/notectx/notectx/plugin/suggest"
	"github.com/notectx/notectx/server/internal/observability"
	"github.com/notectx/notectx/server/middleware"
	"github.com/notectx/notectx/server/retrieval"
	notesvc "github.com/notectx/notectx/server/service/note"
	"github.com/notectx/notectx/store"
)

// requestIDHeader carries a caller-supplied request ID; when absent one is
// generated. The effective ID is echoed back on the response.
const requestIDHeader = "X-Request-Id"

// userHeader identifies the acting user. The engine is multi-tenant at the
// storage layer even though typical deployments are single-user.
const userHeader = "X-Notectx-User"

type APIV1Service struct {
	Profile     *profile.Profile
	Store       *store.Store
	NoteService *notesvc.Service
	Suggester   suggest.ContextSuggester
	Cascade     *retrieval.Cascade

	AnswerService ai.AnswerService

	rateLimiter *middleware.RateLimiter
}

// NewAPIV1Service wires the API surface. The AI services are optional;
// endpoints depending on them degrade rather than disappear.
func NewAPIV1Service(p *profile.Profile, st *store.Store) *APIV1Service {
	suggester := suggest.NewStatisticsSuggester(st)
	service := &APIV1Service{
		Profile:     p,
		Store:       st,
		NoteService: notesvc.NewService(st, suggester),
		Suggester:   suggester,
		rateLimiter: middleware.NewRateLimiter(),
	}

	var embeddingService ai.EmbeddingService
	if p.IsAIEnabled() {
		aiConfig := ai.NewConfigFromProfile(p)
		svc, err := ai.NewEmbeddingService(&aiConfig.Embedding)
		if err != nil {
			slog.Warn("embedding service unavailable, semantic search disabled", "error", err)
		} else {
			embeddingService = svc
		}
		answerService, err := ai.NewAnswerService(&aiConfig.LLM)
		if err != nil {
			slog.Warn("answer service unavailable, ask endpoint degrades to search", "error", err)
		} else {
			service.AnswerService = answerService
		}
	}
	service.Cascade = retrieval.NewCascade(st, embeddingService)

	return service
}

// Register mounts all v1 routes on the echo instance.
func (s *APIV1Service) Register(e *echo.Echo) {
	g := e.Group("/api/v1", s.requestContextMiddleware, s.rateLimitMiddleware)

	g.POST("/notes", s.CreateNote)
	g.GET("/notes", s.ListNotes)
	g.GET("/notes/:uid", s.GetNote)
	g.PATCH("/notes/:uid", s.UpdateNote)
	g.DELETE("/notes/:uid", s.DeleteNote)
	g.POST("/notes/batch-get", s.BatchGetNotes)

	g.GET("/contexts", s.ListContextStats)
	g.GET("/contexts/search", s.SearchContexts)
	g.GET("/contexts/exists", s.ContextExists)
	g.POST("/contexts/rename", s.RenameContext)

	g.POST("/search", s.Search)
	g.POST("/ask", s.Ask)
	g.POST("/suggest", s.SuggestContexts)

	g.GET("/system/metrics", s.GetMetrics)
}

// requestContextMiddleware attaches an observability request context to
// every call so handlers down the chain log with one request ID.
func (s *APIV1Service) requestContextMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		operation := c.Request().Method + " " + c.Path()
		var rc *observability.RequestContext
		if id := c.Request().Header.Get(requestIDHeader); id != "" {
			rc = observability.NewRequestContextWithID(slog.Default(), id, operation, userID(c))
		} else {
			rc = observability.NewRequestContext(slog.Default(), operation, userID(c))
		}
		c.Response().Header().Set(requestIDHeader, rc.RequestID)
		c.SetRequest(c.Request().WithContext(
			observability.WithRequestContext(c.Request().Context(), rc),
		))

		rc.Debug("request started")
		err := next(c)
		rc.WithFields(
			slog.Int("status", c.Response().Status),
			slog.Int64(observability.LogFieldDuration, rc.DurationMs()),
		).Info("request completed")
		return err
	}
}

func (s *APIV1Service) rateLimitMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key := c.Request().Header.Get(userHeader)
		if key == "" {
			key = c.RealIP()
		}
		if !s.rateLimiter.Allow(key) {
			if rc, ok := observability.FromContext(c.Request().Context()); ok {
				rc.Warn("rate limit exceeded")
			}
			return c.JSON(http.StatusTooManyRequests, errorBody("rate limit exceeded"))
		}
		return next(c)
	}
}

// userID resolves the acting user from the request header, defaulting to
// user 1 so single-user deployments need no configuration.
func userID(c echo.Context) int32 {
	raw := c.Request().Header.Get(userHeader)
	if raw == "" {
		return 1
	}
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || id <= 0 {
		return 1
	}
	return int32(id)
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

// jsonError maps an engine error to the matching HTTP status.
func jsonError(c echo.Context, err error) error {
	code := errors.GetCodeFromError(err, errors.ErrCodeBackendUnavailable)
	status := http.StatusInternalServerError
	switch code {
	case errors.ErrCodeInvalidArgument:
		status = http.StatusBadRequest
	case errors.ErrCodeNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeContextCanceled:
		status = http.StatusRequestTimeout
	case errors.ErrCodeEmbeddingProvider:
		status = http.StatusBadGateway
	case errors.ErrCodeBackendUnavailable:
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError || status == http.StatusServiceUnavailable {
		if rc, ok := observability.FromContext(c.Request().Context()); ok {
			rc.Error("request failed", err, slog.String(observability.LogFieldErrorCode, string(code)))
		} else {
			slog.Error("request failed", "path", c.Path(), "error", err)
		}
	}
	return c.JSON(status, errorBody(err.Error()))
}
