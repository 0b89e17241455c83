// Package router implements the query router (C6): a small, rule-based,
// deterministic classifier that never calls the generative provider.
package router

import (
	"regexp"
	"strings"

	"incidentrag/internal/core"
	"incidentrag/internal/entity"

	lru "github.com/hashicorp/golang-lru/v2"
)

// questionIndicators are the phrases/words whose presence pushes a query
// from "simple" to "complex".
var questionIndicators = []string{
	"why", "how frequently", "how often", "patterns", "trend", "trends",
}

var pluralSubjectRE = regexp.MustCompile(`(?i)\bincidents\b|\bfailures\b|\berrors\b|\btimeouts\b`)

// KnownIDs reports whether an extracted incident id exists in the corpus.
type KnownIDs func(id string) bool

// Router classifies queries and extracts the exact-id special case.
type Router struct {
	Vocab   *entity.Vocabulary
	Anchors []string // domain anchor terms, fixed at construction (app wiring passes the vocabulary file's list); not derived from the corpus
	Known   KnownIDs

	cache *lru.Cache[string, Classification]
}

// Classification is the router's verdict for one query.
type Classification struct {
	Complexity core.Complexity
	ExactID    string // set only when Complexity == ComplexityExactID
}

// New builds a Router with an LRU decision cache sized for the given
// capacity (0 disables caching).
func New(vocab *entity.Vocabulary, anchors []string, known KnownIDs, cacheSize int) *Router {
	r := &Router{Vocab: vocab, Anchors: anchors, Known: known}
	if cacheSize > 0 {
		r.cache, _ = lru.New[string, Classification](cacheSize)
	}
	return r
}

// InvalidateCache drops all cached classifications; callers invoke this
// whenever C9 publishes a new corpus snapshot, since exact-id membership
// may have changed.
func (r *Router) InvalidateCache() {
	if r.cache != nil {
		r.cache.Purge()
	}
}

// Classify assigns a Complexity (and, for exact_id, the extracted id) to text.
func (r *Router) Classify(text string) Classification {
	key := strings.ToLower(strings.TrimSpace(text))
	if r.cache != nil {
		if c, ok := r.cache.Get(key); ok {
			return c
		}
	}

	c := r.classify(text)
	if r.cache != nil {
		r.cache.Add(key, c)
	}
	return c
}

func (r *Router) classify(text string) Classification {
	if id, ok := r.extractKnownID(text); ok {
		return Classification{Complexity: core.ComplexityExactID, ExactID: id}
	}

	if !r.inDomain(text) {
		return Classification{Complexity: core.ComplexityOutOfDomain}
	}

	if r.isComplex(text) {
		return Classification{Complexity: core.ComplexityComplex}
	}
	return Classification{Complexity: core.ComplexitySimple}
}

// extractKnownID returns the first incident id occurring in text, if one
// exists and is present in the corpus. The id may appear within a longer
// sentence; extraction is by first match, not equality.
func (r *Router) extractKnownID(text string) (string, bool) {
	match := core.IncidentIDRegex.FindString(text)
	if match == "" {
		return "", false
	}
	if r.Known == nil || !r.Known(strings.ToUpper(match)) {
		return "", false
	}
	return strings.ToUpper(match), true
}

// inDomain reports whether text contains a known anchor term or a
// recognised entity (merchant/gateway/bank).
func (r *Router) inDomain(text string) bool {
	lower := strings.ToLower(text)
	for _, anchor := range r.Anchors {
		if strings.Contains(lower, strings.ToLower(anchor)) {
			return true
		}
	}
	return len(r.Vocab.Extract(text)) > 0
}

func (r *Router) isComplex(text string) bool {
	lower := strings.ToLower(text)
	for _, indicator := range questionIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return pluralSubjectRE.MatchString(text)
}
