package suggest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/notectx/notectx/internal/profile"
	"github.com/notectx/notectx/store"
)

// statsDriver embeds store.Driver so only the methods the suggester touches
// need real implementations.
type statsDriver struct {
	store.Driver
	page *store.ContextStatsPage
}

func (d *statsDriver) PaginateContextStats(ctx context.Context, find *store.FindContextStats) (*store.ContextStatsPage, error) {
	return d.page, nil
}

func TestSuggestRanksContentMatchesFirst(t *testing.T) {
	driver := &statsDriver{
		page: &store.ContextStatsPage{
			Items: []*store.ContextStats{
				{Name: "work", Count: 42},
				{Name: "garden", Count: 3},
				{Name: "recipes", Count: 2},
			},
			Total: 3,
		},
	}
	suggester := NewStatisticsSuggester(store.New(driver, &profile.Profile{Mode: "dev"}))

	resp, err := suggester.Suggest(context.Background(), &SuggestRequest{
		UserID:  1,
		Content: "planted tomatoes in the garden today",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Contexts)

	// "work" has the highest count but "garden" matches the content and
	// should not be pushed out.
	names := make(map[string]bool)
	for _, s := range resp.Contexts {
		names[s.Name] = true
	}
	require.True(t, names["garden"])
	require.True(t, names["work"])
	require.Equal(t, "work", resp.Contexts[0].Name) // count 42 -> confidence 1.0
}

func TestSuggestCapsResults(t *testing.T) {
	items := []*store.ContextStats{
		{Name: "one", Count: 10}, {Name: "two", Count: 9}, {Name: "three", Count: 8},
		{Name: "four", Count: 7}, {Name: "five", Count: 6}, {Name: "six", Count: 5},
	}
	driver := &statsDriver{page: &store.ContextStatsPage{Items: items, Total: len(items)}}
	suggester := NewStatisticsSuggester(store.New(driver, &profile.Profile{Mode: "dev"}))

	resp, err := suggester.Suggest(context.Background(), &SuggestRequest{UserID: 1, MaxSuggestions: 2})
	require.NoError(t, err)
	require.Len(t, resp.Contexts, 2)
}

func TestSuggestEmptyVocabulary(t *testing.T) {
	driver := &statsDriver{page: &store.ContextStatsPage{Items: []*store.ContextStats{}}}
	suggester := NewStatisticsSuggester(store.New(driver, &profile.Profile{Mode: "dev"}))

	resp, err := suggester.Suggest(context.Background(), &SuggestRequest{UserID: 1, Content: "anything"})
	require.NoError(t, err)
	require.Empty(t, resp.Contexts)
}

func TestNormalizeFrequency(t *testing.T) {
	require.Equal(t, 1.0, normalizeFrequency(15))
	require.Equal(t, 0.9, normalizeFrequency(5))
	require.Equal(t, 0.8, normalizeFrequency(3))
	require.Equal(t, 0.7, normalizeFrequency(2))
	require.Equal(t, 0.6, normalizeFrequency(1))
}

func TestTokenizeWords(t *testing.T) {
	require.Equal(t, []string{"side-project", "notes"}, tokenize("side-project notes"))
	require.Empty(t, tokenize("!!! ???"))
}
