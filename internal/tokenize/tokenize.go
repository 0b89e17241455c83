// Package tokenize implements the single tokenisation scheme shared by the
// BM25 and TF-IDF indices: lowercase, strip punctuation, split on
// whitespace. No stemming, by design, to keep the indices reproducible.
package tokenize

import (
	"strings"
	"unicode"
)

// Words splits text into lowercased tokens with punctuation stripped.
func Words(text string) []string {
	lower := strings.ToLower(text)
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// stopwords is the English stop-word list used when building TF-IDF
// n-grams (BM25 retains stop-words, since dropping them changes term
// frequencies in a way the Okapi formula already accounts for).
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "he": true,
	"in": true, "is": true, "it": true, "its": true, "of": true, "on": true,
	"that": true, "the": true, "to": true, "was": true, "were": true,
	"will": true, "with": true, "this": true, "but": true, "or": true,
	"not": true, "no": true, "so": true, "if": true, "than": true, "then": true,
}

// IsStopword reports whether a lowercased token is an English stop-word.
func IsStopword(token string) bool {
	return stopwords[token]
}

// NGrams builds 1- and 2-grams from tokens, dropping unigram stop-words.
// Bigrams are retained even when one member is a stop-word, since phrases
// like "log in" carry meaning the unigram filter would destroy.
func NGrams(tokens []string) []string {
	out := make([]string, 0, len(tokens)*2)
	for _, t := range tokens {
		if !IsStopword(t) {
			out = append(out, t)
		}
	}
	for i := 0; i+1 < len(tokens); i++ {
		out = append(out, tokens[i]+" "+tokens[i+1])
	}
	return out
}
