package driven

// Stemmer reduces words to a common stem so inflected forms compare equal.
type Stemmer interface {
	// Stem returns the stem of a lower-case word.
	Stem(word string) string
}
