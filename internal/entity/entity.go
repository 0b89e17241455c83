// Package entity extracts domain entities (merchants, payment gateways,
// banks) from free text, using a fixed vocabulary maintained alongside the
// corpus. It is shared by the query router, hybrid retriever, and semantic
// validator so all three agree on what counts as a match.
package entity

import (
	"regexp"
	"strings"
)

// Kind is the category of a recognised entity.
type Kind string

const (
	KindMerchant Kind = "merchant"
	KindGateway  Kind = "gateway"
	KindBank     Kind = "bank"
)

// Match is one entity recognised in a piece of text.
type Match struct {
	Kind  Kind
	Value string
}

// Vocabulary is the fixed entity list harvested from the corpus: brand
// names, payment-gateway names, and bank names, each matched as a
// case-insensitive, word-boundary substring.
type Vocabulary struct {
	Merchants []string
	Gateways  []string
	Banks     []string

	merchantRE *regexp.Regexp
	gatewayRE  *regexp.Regexp
	bankRE     *regexp.Regexp
}

// NewVocabulary compiles the three entity lists into word-boundary regexes.
func NewVocabulary(merchants, gateways, banks []string) *Vocabulary {
	return &Vocabulary{
		Merchants:  merchants,
		Gateways:   gateways,
		Banks:      banks,
		merchantRE: compileAlternation(merchants),
		gatewayRE:  compileAlternation(gateways),
		bankRE:     compileAlternation(banks),
	}
}

func compileAlternation(terms []string) *regexp.Regexp {
	if len(terms) == 0 {
		return nil
	}
	escaped := make([]string, len(terms))
	for i, t := range terms {
		escaped[i] = regexp.QuoteMeta(t)
	}
	pattern := `(?i)\b(` + strings.Join(escaped, "|") + `)\b`
	return regexp.MustCompile(pattern)
}

// Extract returns every entity matched in text, one Match per distinct
// value, across all three kinds.
func (v *Vocabulary) Extract(text string) []Match {
	var matches []Match
	matches = append(matches, extractKind(v.merchantRE, KindMerchant, text)...)
	matches = append(matches, extractKind(v.gatewayRE, KindGateway, text)...)
	matches = append(matches, extractKind(v.bankRE, KindBank, text)...)
	return matches
}

func extractKind(re *regexp.Regexp, kind Kind, text string) []Match {
	if re == nil {
		return nil
	}
	seen := map[string]bool{}
	var out []Match
	for _, m := range re.FindAllString(text, -1) {
		key := strings.ToLower(m)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Match{Kind: kind, Value: m})
	}
	return out
}

// HasKind reports whether matches contains an entity of the given kind.
func HasKind(matches []Match, kind Kind) bool {
	for _, m := range matches {
		if m.Kind == kind {
			return true
		}
	}
	return false
}

// Values returns the lowercased values of every match, for set-overlap
// computations (entity_overlap in the semantic validator).
func Values(matches []Match) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = strings.ToLower(m.Value)
	}
	return out
}

// Overlap returns |a∩b| as a set, case-insensitively.
func Overlap(a, b []Match) int {
	setB := map[string]bool{}
	for _, m := range b {
		setB[strings.ToLower(m.Value)] = true
	}
	seen := map[string]bool{}
	count := 0
	for _, m := range a {
		key := strings.ToLower(m.Value)
		if seen[key] {
			continue
		}
		seen[key] = true
		if setB[key] {
			count++
		}
	}
	return count
}
