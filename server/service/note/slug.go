package note

import (
	"strings"
	"unicode"
)

// Slugify normalizes a context name for URL use: lowercase, spaces and
// punctuation collapsed to single hyphens.
func Slugify(name string) string {
	var sb strings.Builder
	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			sb.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			sb.WriteRune('-')
			lastHyphen = true
		}
	}
	return strings.TrimRight(sb.String(), "-")
}

// Humanize turns a slug back into a display name: hyphens and underscores
// become spaces, each word is title-cased.
func Humanize(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool {
		return r == '-' || r == '_'
	})
	for i, w := range words {
		runes := []rune(w)
		if len(runes) > 0 {
			runes[0] = unicode.ToUpper(runes[0])
		}
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
