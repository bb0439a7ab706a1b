package textutil

import (
	"regexp"
	"strings"
)

// tokenPattern matches alphanumeric runs, keeping embedded apostrophes so
// contractions survive as single tokens.
var tokenPattern = regexp.MustCompile(`[A-Za-z0-9']+`)

var stopwords = map[string]struct{}{
	"the":  {},
	"and":  {},
	"a":    {},
	"an":   {},
	"of":   {},
	"in":   {},
	"to":   {},
	"for":  {},
	"with": {},
}

// Tokenize splits text into a lowercase token set with stopwords removed.
func Tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, raw := range tokenPattern.FindAllString(text, -1) {
		token := strings.ToLower(raw)
		if token == "" {
			continue
		}
		if _, stop := stopwords[token]; stop {
			continue
		}
		tokens[token] = struct{}{}
	}
	return tokens
}

// TokenSet converts a pre-tokenized slice into a set, applying the same
// lowercasing and stopword filtering as Tokenize.
func TokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, raw := range tokens {
		token := strings.ToLower(strings.TrimSpace(raw))
		if token == "" {
			continue
		}
		if _, stop := stopwords[token]; stop {
			continue
		}
		set[token] = struct{}{}
	}
	return set
}

// JaccardSimilarity computes intersection-over-union of two token sets.
// Returns 0 if either set is empty.
func JaccardSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	intersection := 0
	for token := range small {
		if _, ok := large[token]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
