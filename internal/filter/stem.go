package filter

import (
	"regexp"
	"strings"

	"github.com/kljensen/snowball"
)

var wordExpr = regexp.MustCompile(`\w+`)

// StemText reduces text to its language-stem token signature: lower-cased,
// tokenized to word runs, each token reduced to its snowball stem, rejoined
// with single spaces. Matching stemmed signatures as substrings lets simple
// morphological variants (plural, tense, hyphenation) line up.
func StemText(text string) string {
	words := wordExpr.FindAllString(strings.ToLower(text), -1)
	for i, word := range words {
		if stemmed, err := snowball.Stem(word, "english", false); err == nil && stemmed != "" {
			words[i] = stemmed
		}
	}
	return strings.Join(words, " ")
}
