// Package suggest provides context suggestions for notes based on the
// user's existing context vocabulary.
package suggest

import (
	"context"
	"time"
)

// ContextSuggester proposes contexts for note content.
type ContextSuggester interface {
	// Suggest returns context suggestions based on content and usage history.
	Suggest(ctx context.Context, req *SuggestRequest) (*SuggestResponse, error)
}

// SuggestRequest contains parameters for context suggestion.
type SuggestRequest struct {
	UserID  int32
	Content string
	// MaxSuggestions caps the returned list (default 5, max 10).
	MaxSuggestions int
}

// SuggestResponse contains context suggestions and metadata.
type SuggestResponse struct {
	Contexts []Suggestion  `json:"contexts"`
	Latency  time.Duration `json:"latency"`
}

// Suggestion represents a single context suggestion.
type Suggestion struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"` // 0.0 - 1.0
	Reason     string  `json:"reason,omitempty"`
}
