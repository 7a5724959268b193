// Package snowball provides a Stemmer backed by the Snowball stemming
// algorithms.
package snowball

import (
	"sync"

	"github.com/kljensen/snowball"

	"github.com/custodia-labs/specfrag-cli/internal/core/ports/driven"
)

// DefaultLanguage is used when no language is given.
const DefaultLanguage = "english"

// Ensure Stemmer implements the interface.
var _ driven.Stemmer = (*Stemmer)(nil)

// DefaultCacheSize caps the number of memoised stems.
const DefaultCacheSize = 4096

// Stemmer stems words and memoises up to cacheSize results. When the cache
// is full it is emptied and refilled from the words seen next.
type Stemmer struct {
	language  string
	cacheSize int

	mu    sync.RWMutex
	cache map[string]string
}

// NewStemmer creates a stemmer for language ("english", "spanish",
// "french", "russian", "swedish", "norwegian", "hungarian").
func NewStemmer(language string) *Stemmer {
	if language == "" {
		language = DefaultLanguage
	}
	return &Stemmer{
		language:  language,
		cacheSize: DefaultCacheSize,
		cache:     make(map[string]string),
	}
}

// Stem returns the stem of word, or word itself when the language is
// unsupported.
func (s *Stemmer) Stem(word string) string {
	s.mu.RLock()
	cached, ok := s.cache[word]
	s.mu.RUnlock()
	if ok {
		return cached
	}

	stemmed, err := snowball.Stem(word, s.language, true)
	if err != nil {
		return word
	}

	s.mu.Lock()
	if len(s.cache) >= s.cacheSize {
		clear(s.cache)
	}
	s.cache[word] = stemmed
	s.mu.Unlock()
	return stemmed
}

// StemAll stems every word.
func (s *Stemmer) StemAll(words []string) []string {
	stemmed := make([]string, len(words))
	for i, word := range words {
		stemmed[i] = s.Stem(word)
	}
	return stemmed
}
