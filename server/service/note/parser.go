package note

import (
	"regexp"
	"strings"
)

var (
	// tagPattern matches inline #tags. Unicode letters keep non-English
	// tags working.
	tagPattern = regexp.MustCompile(`#([\p{L}\p{N}_][\p{L}\p{N}_-]*)`)
	// contextLinkPattern matches [[context]] wiki-style links.
	contextLinkPattern = regexp.MustCompile(`\[\[([^\[\]]+)\]\]`)
)

// ParsedContent is what the parser pulls out of raw note text.
type ParsedContent struct {
	Tags     []string
	Contexts []string
}

// ParseContent extracts inline #tags and [[context]] links from note
// content. Both lists are deduplicated and keep first-seen order; the
// content itself is left untouched.
func ParseContent(content string) *ParsedContent {
	parsed := &ParsedContent{}

	seen := make(map[string]bool)
	for _, m := range tagPattern.FindAllStringSubmatch(content, -1) {
		tag := m[1]
		key := strings.ToLower(tag)
		if seen[key] {
			continue
		}
		seen[key] = true
		parsed.Tags = append(parsed.Tags, tag)
	}

	seen = make(map[string]bool)
	for _, m := range contextLinkPattern.FindAllStringSubmatch(content, -1) {
		name := strings.TrimSpace(m[1])
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		parsed.Contexts = append(parsed.Contexts, name)
	}

	return parsed
}
