// Package sparseindex implements the in-process BM25 and TF-IDF indices
// (C4): two lexical scoring structures built from the same corpus and the
// same tokenisation, published as an immutable snapshot so many readers can
// search concurrently with a single writer rebuilding in the background.
package sparseindex

import (
	"math"
	"sort"
	"sync"

	"incidentrag/internal/tokenize"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75

	maxTFIDFFeatures = 5000
)

// Result is one scored document from a sparse search.
type Result struct {
	ID    string
	Score float64
}

// Document is the unit indexed by both BM25 and TF-IDF: an incident id and
// its training text.
type Document struct {
	ID   string
	Text string
}

// Index holds the reader-many/writer-one sparse index. Readers take a
// reference to the current snapshot and continue on it even if a writer
// publishes a new one mid-search.
type Index struct {
	mu   sync.RWMutex
	snap *snapshot
	docs map[string]string // id -> training text, the writer-side source of truth
}

// New returns an empty Index.
func New() *Index {
	return &Index{snap: emptySnapshot(), docs: make(map[string]string)}
}

// Rebuild replaces the index contents wholesale and publishes a fresh
// snapshot atomically.
func (idx *Index) Rebuild(documents []Document) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.docs = make(map[string]string, len(documents))
	for _, d := range documents {
		idx.docs[d.ID] = d.Text
	}
	idx.publishLocked()
}

// Upsert adds or replaces one document and republishes the snapshot.
func (idx *Index) Upsert(id, text string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.docs[id] = text
	idx.publishLocked()
}

// Delete removes one document and republishes the snapshot.
func (idx *Index) Delete(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	delete(idx.docs, id)
	idx.publishLocked()
}

// publishLocked rebuilds the snapshot from idx.docs. Callers must hold mu.
func (idx *Index) publishLocked() {
	docs := make([]Document, 0, len(idx.docs))
	for id, text := range idx.docs {
		docs = append(docs, Document{ID: id, Text: text})
	}
	idx.snap = buildSnapshot(docs)
}

// currentSnapshot takes a shared reference to the live snapshot. A search
// using the returned snapshot is unaffected by a concurrent Rebuild/Upsert/
// Delete, since those publish a brand new snapshot rather than mutating
// this one.
func (idx *Index) currentSnapshot() *snapshot {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.snap
}

// SearchBM25 returns the top k documents by Okapi BM25 score, min-max
// normalised to [0,1] within this result batch.
func (idx *Index) SearchBM25(text string, k int) []Result {
	return idx.currentSnapshot().searchBM25(text, k)
}

// SearchTFIDF returns the top k documents by TF-IDF cosine similarity.
func (idx *Index) SearchTFIDF(text string, k int) []Result {
	return idx.currentSnapshot().searchTFIDF(text, k)
}

// snapshot is the immutable state searched by readers.
type snapshot struct {
	ids []string

	// BM25
	docTokens map[string][]string
	docLen    map[string]int
	avgDocLen float64
	docFreq   map[string]int // term -> number of docs containing it

	// TF-IDF
	vocab    map[string]int // term (1-2gram) -> feature index
	idf      []float64
	docVecs  map[string][]float64 // id -> dense tf-idf vector over vocab
	docNorms map[string]float64
}

func emptySnapshot() *snapshot {
	return &snapshot{
		docTokens: map[string][]string{},
		docLen:    map[string]int{},
		docFreq:   map[string]int{},
		vocab:     map[string]int{},
		docVecs:   map[string][]float64{},
		docNorms:  map[string]float64{},
	}
}

func buildSnapshot(docs []Document) *snapshot {
	s := emptySnapshot()
	if len(docs) == 0 {
		return s
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })

	totalLen := 0
	docGrams := make(map[string][]string, len(docs))
	termDocCount := map[string]int{}

	for _, d := range docs {
		s.ids = append(s.ids, d.ID)
		tokens := tokenize.Words(d.Text)
		s.docTokens[d.ID] = tokens
		s.docLen[d.ID] = len(tokens)
		totalLen += len(tokens)

		for term := range uniqueStrings(tokens) {
			s.docFreq[term]++
		}

		grams := tokenize.NGrams(tokens)
		docGrams[d.ID] = grams
		for term := range uniqueStrings(grams) {
			termDocCount[term]++
		}
	}

	s.avgDocLen = float64(totalLen) / float64(len(docs))

	// Build a vocabulary capped at maxTFIDFFeatures, ranked by document
	// frequency (most common n-grams first) for a stable, reproducible cap.
	terms := make([]string, 0, len(termDocCount))
	for t := range termDocCount {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if termDocCount[terms[i]] != termDocCount[terms[j]] {
			return termDocCount[terms[i]] > termDocCount[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > maxTFIDFFeatures {
		terms = terms[:maxTFIDFFeatures]
	}

	s.vocab = make(map[string]int, len(terms))
	s.idf = make([]float64, len(terms))
	n := float64(len(docs))
	for i, t := range terms {
		s.vocab[t] = i
		s.idf[i] = math.Log(1 + n/float64(termDocCount[t]))
	}

	for _, d := range docs {
		vec := make([]float64, len(terms))
		counts := map[string]int{}
		for _, g := range docGrams[d.ID] {
			counts[g]++
		}
		var norm float64
		for term, c := range counts {
			idx, ok := s.vocab[term]
			if !ok {
				continue
			}
			tf := float64(c)
			w := tf * s.idf[idx]
			vec[idx] = w
			norm += w * w
		}
		s.docVecs[d.ID] = vec
		s.docNorms[d.ID] = math.Sqrt(norm)
	}

	return s
}

func uniqueStrings(ss []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ss))
	for _, s := range ss {
		out[s] = struct{}{}
	}
	return out
}

func (s *snapshot) searchBM25(text string, k int) []Result {
	if len(s.ids) == 0 {
		return nil
	}
	queryTokens := uniqueStrings(tokenize.Words(text))
	n := float64(len(s.ids))

	raw := make(map[string]float64, len(s.ids))
	for _, id := range s.ids {
		tokens := s.docTokens[id]
		docLen := float64(s.docLen[id])
		counts := termCounts(tokens)

		var score float64
		for term := range queryTokens {
			f := float64(counts[term])
			if f == 0 {
				continue
			}
			df := float64(s.docFreq[term])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			denom := f + bm25K1*(1-bm25B+bm25B*docLen/s.avgDocLen)
			score += idf * (f * (bm25K1 + 1)) / denom
		}
		raw[id] = score
	}

	return topKNormalised(raw, k)
}

func (s *snapshot) searchTFIDF(text string, k int) []Result {
	if len(s.ids) == 0 {
		return nil
	}
	grams := tokenize.NGrams(tokenize.Words(text))
	qVec := make([]float64, len(s.vocab))
	counts := termCounts(grams)
	var qNorm float64
	for term, c := range counts {
		idx, ok := s.vocab[term]
		if !ok {
			continue
		}
		w := float64(c) * s.idf[idx]
		qVec[idx] = w
		qNorm += w * w
	}
	qNorm = math.Sqrt(qNorm)

	raw := make(map[string]float64, len(s.ids))
	for _, id := range s.ids {
		if qNorm == 0 || s.docNorms[id] == 0 {
			raw[id] = 0
			continue
		}
		vec := s.docVecs[id]
		var dot float64
		for i, w := range qVec {
			if w != 0 {
				dot += w * vec[i]
			}
		}
		raw[id] = dot / (qNorm * s.docNorms[id])
	}

	return topKRaw(raw, k)
}

func termCounts(tokens []string) map[string]int {
	counts := make(map[string]int, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}
	return counts
}

// topKNormalised min-max normalises raw scores to [0,1] within this batch
// before truncating to k, per the BM25 contract.
func topKNormalised(raw map[string]float64, k int) []Result {
	results := sortedResults(raw)
	if len(results) == 0 {
		return nil
	}
	min, max := results[len(results)-1].Score, results[0].Score
	if max == min {
		for i := range results {
			results[i].Score = 0
		}
	} else {
		for i := range results {
			results[i].Score = (results[i].Score - min) / (max - min)
		}
	}
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// topKRaw truncates to k without renormalising; TF-IDF cosine similarity is
// already bounded to [0,1] for non-negative weight vectors.
func topKRaw(raw map[string]float64, k int) []Result {
	results := sortedResults(raw)
	if len(results) > k {
		results = results[:k]
	}
	return results
}

func sortedResults(raw map[string]float64) []Result {
	results := make([]Result, 0, len(raw))
	for id, score := range raw {
		results = append(results, Result{ID: id, Score: score})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	return results
}
