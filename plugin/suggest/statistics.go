package suggest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/notectx/notectx/store"
)

// statisticsSuggester ranks the user's existing contexts by usage frequency
// and content overlap. It never invents a context the user has not already
// used, which keeps the suggestion vocabulary stable.
type statisticsSuggester struct {
	store *store.Store
}

// NewStatisticsSuggester creates a suggester backed by the context stats
// aggregator.
func NewStatisticsSuggester(s *store.Store) ContextSuggester {
	return &statisticsSuggester{store: s}
}

func (s *statisticsSuggester) Suggest(ctx context.Context, req *SuggestRequest) (*SuggestResponse, error) {
	start := time.Now()
	if req.MaxSuggestions <= 0 {
		req.MaxSuggestions = 5
	}
	if req.MaxSuggestions > 10 {
		req.MaxSuggestions = 10
	}

	page, err := s.store.PaginateContextStats(ctx, &store.FindContextStats{
		CreatorID: req.UserID,
		Page:      1,
		PageSize:  50,
	})
	if err != nil {
		slog.Warn("failed to load context stats for suggestion",
			"user_id", req.UserID,
			"error", err,
		)
		return &SuggestResponse{Contexts: []Suggestion{}, Latency: time.Since(start)}, nil
	}

	var suggestions []Suggestion
	seen := make(map[string]bool)

	// Contexts whose name overlaps with the content rank above pure
	// frequency hits.
	if req.Content != "" {
		for _, match := range matchContent(page.Items, req.Content) {
			key := strings.ToLower(match.Name)
			if seen[key] {
				continue
			}
			seen[key] = true
			suggestions = append(suggestions, match)
		}
	}

	for i, stats := range page.Items {
		if i >= 5 {
			break
		}
		key := strings.ToLower(stats.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		suggestions = append(suggestions, Suggestion{
			Name:       stats.Name,
			Confidence: normalizeFrequency(stats.Count),
			Reason:     fmt.Sprintf("used %d times", stats.Count),
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Confidence > suggestions[j].Confidence
	})
	if len(suggestions) > req.MaxSuggestions {
		suggestions = suggestions[:req.MaxSuggestions]
	}
	if suggestions == nil {
		suggestions = []Suggestion{}
	}

	return &SuggestResponse{
		Contexts: suggestions,
		Latency:  time.Since(start),
	}, nil
}

// matchContent finds contexts whose name words appear in the content.
func matchContent(allContexts []*store.ContextStats, content string) []Suggestion {
	contentLower := strings.ToLower(content)
	contentSet := make(map[string]bool)
	for _, w := range tokenize(contentLower) {
		contentSet[w] = true
	}

	var matches []Suggestion
	for _, stats := range allContexts {
		nameLower := strings.ToLower(stats.Name)
		for _, word := range tokenize(nameLower) {
			if contentSet[word] || strings.Contains(contentLower, nameLower) {
				matches = append(matches, Suggestion{
					Name:       stats.Name,
					Confidence: 0.85,
					Reason:     "matches content",
				})
				break
			}
		}
	}

	if len(matches) > 3 {
		matches = matches[:3]
	}
	return matches
}

// normalizeFrequency converts a usage count to confidence (0.6 - 1.0).
func normalizeFrequency(count int) float64 {
	switch {
	case count >= 10:
		return 1.0
	case count >= 5:
		return 0.9
	case count >= 3:
		return 0.8
	case count >= 2:
		return 0.7
	default:
		return 0.6
	}
}

// tokenize splits text into lowercase words. CJK runs count as words.
func tokenize(text string) []string {
	var words []string
	var current strings.Builder

	for _, r := range text {
		if isWordRune(r) {
			current.WriteRune(r)
		} else if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}
	return words
}

func isWordRune(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') ||
		r == '-' || r == '_' ||
		(r >= 0x4E00 && r <= 0x9FFF) // CJK
}
