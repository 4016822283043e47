package note

import (
	"strings"
	"unicode"
)

const (
	defaultExcerptChars = 80
	maxExcerptChars     = 200
	boundaryScan        = 10
)

// Excerpt returns a short window of content centered on the first query
// token match, adjusted to word boundaries, with ellipses marking
// truncation. With no match it returns the head of the content. Search
// result lists use this instead of full note bodies.
func Excerpt(content string, tokens []string, contextChars int) string {
	if contextChars <= 0 {
		contextChars = defaultExcerptChars
	}
	if contextChars > maxExcerptChars {
		contextChars = maxExcerptChars
	}

	runes := []rune(content)
	if len(runes) == 0 {
		return ""
	}

	center := firstMatch(content, tokens)
	if center < 0 {
		return headExcerpt(runes, contextChars*2)
	}

	start, end := window(center, len(runes), contextChars)
	start = adjustBoundary(runes, start, false)
	end = adjustBoundary(runes, end, true)

	var sb strings.Builder
	if start > 0 {
		sb.WriteString("...")
	}
	sb.WriteString(string(runes[start:end]))
	if end < len(runes) {
		sb.WriteString("...")
	}
	return sb.String()
}

// firstMatch returns the rune offset of the earliest token occurrence, or
// -1 when nothing matches.
func firstMatch(content string, tokens []string) int {
	contentLower := strings.ToLower(content)
	best := -1
	for _, token := range tokens {
		idx := strings.Index(contentLower, strings.ToLower(token))
		if idx >= 0 && (best < 0 || idx < best) {
			best = idx
		}
	}
	if best < 0 {
		return -1
	}
	// Byte offset to rune offset.
	return len([]rune(content[:best]))
}

func headExcerpt(runes []rune, maxLen int) string {
	if maxLen >= len(runes) {
		return string(runes)
	}
	end := adjustBoundary(runes, maxLen, true)
	return string(runes[:end]) + "..."
}

// window computes the snippet bounds around center, shifting rather than
// shrinking when it hits either edge.
func window(center, contentLen, contextChars int) (int, int) {
	start := center - contextChars
	end := center + contextChars
	if start < 0 {
		end += -start
		start = 0
	}
	if end > contentLen {
		start -= end - contentLen
		end = contentLen
	}
	if start < 0 {
		start = 0
	}
	return start, end
}

// adjustBoundary nudges a cut point onto the nearest separator so the
// excerpt does not split a word. The scan is bounded; mid-word cuts stay
// when no separator is close.
func adjustBoundary(runes []rune, pos int, forward bool) int {
	if pos <= 0 {
		return 0
	}
	if pos >= len(runes) {
		return len(runes)
	}

	if forward {
		for i := pos; i < len(runes) && i < pos+boundaryScan; i++ {
			if isSeparator(runes[i]) {
				return i
			}
		}
	} else {
		for i := pos - 1; i >= 0 && i >= pos-boundaryScan; i-- {
			if isSeparator(runes[i]) {
				return i + 1
			}
		}
	}
	return pos
}

func isSeparator(r rune) bool {
	if unicode.IsSpace(r) {
		return true
	}
	switch r {
	case '.', ',', '!', '?', ';', ':', '。', '，', '！', '？', '；', '：':
		return true
	}
	return false
}
