package services

import (
	"regexp"
	"strings"
)

// maxKeywords caps the keywords derived from one text.
const maxKeywords = 10

var wordPattern = regexp.MustCompile(`\w+`)

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
}

// Keywords tokenises text into lower-cased search keywords. Words of two
// characters or fewer and stop words are dropped. The result is
// deduplicated in first-seen order and capped at ten entries.
func Keywords(text string) []string {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	keywords := make([]string, 0, maxKeywords)
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		if len(w) <= 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		keywords = append(keywords, w)
		if len(keywords) == maxKeywords {
			break
		}
	}
	return keywords
}
