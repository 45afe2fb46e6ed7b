// Package embedding holds shared behaviour for embedding service
// adapters.
package embedding

import "unicode/utf8"

// DefaultMaxInputChars bounds the text sent to an embedding model when
// the adapter has no better limit. Counted in runes so the same text
// always cuts at the same place.
const DefaultMaxInputChars = 8000

// Truncate cuts text to at most maxChars runes, never splitting a
// rune. Returns the (possibly shortened) text and whether it was cut.
func Truncate(text string, maxChars int) (string, bool) {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text, false
	}

	n := 0
	for i := range text {
		if n == maxChars {
			return text[:i], true
		}
		n++
	}
	return text, false
}
