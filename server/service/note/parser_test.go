package note

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseContentTags(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"single tag", "remember to water #garden", []string{"garden"}},
		{"multiple tags", "#work meeting about #budget-2026", []string{"work", "budget-2026"}},
		{"duplicate tags kept once", "#go and more #go and #Go", []string{"go"}},
		{"unicode tag", "notes about #日本語", []string{"日本語"}},
		{"no tags", "plain text without markup", nil},
		{"bare hash ignored", "issue # 42", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed := ParseContent(tt.content)
			require.Equal(t, tt.want, parsed.Tags)
		})
	}
}

func TestParseContentContextLinks(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"single link", "met with [[alice]] today", []string{"alice"}},
		{"multiple links", "[[project-x]] kickoff with [[team]]", []string{"project-x", "team"}},
		{"whitespace trimmed", "[[ side project ]]", []string{"side project"}},
		{"empty link ignored", "weird [[]] text", nil},
		{"duplicates kept once", "[[home]] and again [[home]]", []string{"home"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed := ParseContent(tt.content)
			require.Equal(t, tt.want, parsed.Contexts)
		})
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Side Project", "side-project"},
		{"  trimmed  ", "trimmed"},
		{"a/b_c", "a-b-c"},
		{"already-slug", "already-slug"},
		{"Trailing!", "trailing"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Slugify(tt.in), "input %q", tt.in)
	}
}

func TestHumanize(t *testing.T) {
	require.Equal(t, "Side Project", Humanize("side-project"))
	require.Equal(t, "A B C", Humanize("a_b_c"))
	require.Equal(t, "", Humanize(""))
}

func TestDateSlug(t *testing.T) {
	ts := time.Date(2026, time.August, 29, 12, 0, 0, 0, time.UTC)
	require.Equal(t, "29-august-2026", DateSlug(ts))

	// Single-digit days carry no leading zero.
	ts = time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "5-march-2026", DateSlug(ts))
}
