package retrieval

import (
	"strings"
	"unicode"
)

// stopWords are questionish filler that would otherwise dominate keyword
// and full-text matching. Kept small on purpose; the backends rank, this
// only prunes.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "was": {}, "were": {},
	"this": {}, "that": {}, "with": {}, "from": {}, "have": {}, "has": {},
	"had": {}, "what": {}, "when": {}, "where": {}, "which": {}, "who": {},
	"why": {}, "how": {}, "did": {}, "does": {}, "about": {}, "them": {},
	"then": {}, "than": {}, "they": {}, "you": {}, "your": {}, "not": {},
	"can": {}, "could": {}, "would": {}, "should": {}, "tell": {},
	"show": {}, "find": {}, "list": {}, "all": {}, "any": {}, "please": {},
}

// Tokenize lowercases the question, splits on anything that is not a
// letter, digit or underscore, and drops stop words and tokens shorter
// than three characters. The result feeds the keyword and full-text
// cascade stages; an empty slice makes those stages no-ops.
func Tokenize(question string) []string {
	fields := strings.FieldsFunc(strings.ToLower(question), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '_'
	})

	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if len([]rune(field)) < 3 {
			continue
		}
		if _, ok := stopWords[field]; ok {
			continue
		}
		if _, ok := seen[field]; ok {
			continue
		}
		seen[field] = struct{}{}
		tokens = append(tokens, field)
	}
	return tokens
}
