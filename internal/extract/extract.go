// Package extract finds candidate path references in free text.
package extract

import (
	"iter"
	"regexp"
)

// candidatePattern over-matches on purpose: every hit is checked against
// the filesystem later. A candidate starts with ./, ../, / or a word that is
// immediately followed by a slash, and runs until whitespace or one of
// "'<>:*?|.
var candidatePattern = regexp.MustCompile(`(?:\.{1,2}/|/)[^\s"'<>:*?|]+|\w+/[^\s"'<>:*?|]*`)

// Candidates yields every candidate in text, in order of appearance. Each
// range over the result scans text again.
func Candidates(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, loc := range candidatePattern.FindAllStringIndex(text, -1) {
			if !yield(text[loc[0]:loc[1]]) {
				return
			}
		}
	}
}
