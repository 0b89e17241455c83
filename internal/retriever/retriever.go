// Package retriever implements the hybrid retriever (C5): parallel dense
// and sparse search, weighted score fusion, and entity-driven priority
// boosts.
package retriever

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"incidentrag/internal/core"
	"incidentrag/internal/embedding"
	"incidentrag/internal/entity"
	"incidentrag/internal/sparseindex"
	"incidentrag/internal/vectorindex"

	"golang.org/x/sync/errgroup"
)

// Fusion weights and priority-boost constants, fixed per the data model;
// the source hinted at configurability but specified no mechanism.
const (
	weightSemantic = 0.6
	weightBM25     = 0.3
	weightTFIDF    = 0.1

	boostMerchantGateway = 2.5
	capMerchantGateway   = 1.00
	boostMerchantOnly    = 2.0
	capMerchantOnly      = 0.95
	boostGatewayOnly     = 1.5
	capGatewayOnly       = 0.85
	boostNone            = 1.0
	capNone              = 1.00

	degradedConfidenceCeiling = 0.6
)

// Degradation reports which retrieval paths, if any, failed for a request.
type Degradation int

const (
	DegradationNone Degradation = iota
	DegradationDense
	DegradationSparse
	DegradationBoth
)

// ConfidenceCeiling returns the maximum confidence a response may carry
// given this degradation state.
func (d Degradation) ConfidenceCeiling() float64 {
	if d == DegradationNone {
		return 1.0
	}
	return degradedConfidenceCeiling
}

// IncidentMeta is the subset of an incident's fields the retriever needs
// for entity matching: callers supply this via MetadataSource rather than
// importing the corpus package, keeping the dependency direction leaf-ward.
type IncidentMeta struct {
	Title string
	Tags  []string
}

// MetadataSource resolves an incident id to the metadata the entity
// extractor matches against. It returns ok=false for an id the retriever
// has not otherwise seen (e.g. evicted between index build and corpus
// lookup), in which case that candidate earns no priority boost.
type MetadataSource func(id string) (IncidentMeta, bool)

// SparseSearcher is the narrow view of C4 the retriever depends on. The
// production adapter (sparseIndexAdapter, below) never returns an error —
// sparse search is CPU-bound and unsuspending — but the interface carries
// one anyway so tests can simulate the sparse subsystem being unavailable
// for the symmetric degraded-mode scenario.
type SparseSearcher interface {
	SearchBM25(text string, k int) ([]sparseindex.Result, error)
	SearchTFIDF(text string, k int) ([]sparseindex.Result, error)
}

// sparseIndexAdapter adapts *sparseindex.Index to SparseSearcher.
type sparseIndexAdapter struct{ idx *sparseindex.Index }

// NewSparseSearcher wraps a sparse index for use by a Retriever.
func NewSparseSearcher(idx *sparseindex.Index) SparseSearcher {
	return sparseIndexAdapter{idx: idx}
}

func (a sparseIndexAdapter) SearchBM25(text string, k int) ([]sparseindex.Result, error) {
	return a.idx.SearchBM25(text, k), nil
}

func (a sparseIndexAdapter) SearchTFIDF(text string, k int) ([]sparseindex.Result, error) {
	return a.idx.SearchTFIDF(text, k), nil
}

// Retriever runs C1+C2 and C4 in parallel and fuses their output.
type Retriever struct {
	Embedder embedding.Embedder
	Vectors  vectorindex.VectorIndex
	Sparse   SparseSearcher
	Vocab    *entity.Vocabulary
	Metadata MetadataSource
}

// Retrieve returns up to topK fused, boosted candidates for queryText.
func (r *Retriever) Retrieve(ctx context.Context, queryText string, topK int) ([]core.RetrievalCandidate, Degradation, error) {
	fetchK := topK * 2
	if fetchK < 1 {
		fetchK = 1
	}

	var (
		denseMatches []vectorindex.Match
		denseErr     error
		bm25Results  []sparseindex.Result
		bm25Err      error
		tfidfResults []sparseindex.Result
		tfidfErr     error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vec, err := r.Embedder.Embed(gctx, queryText, embedding.TaskTypeQuery)
		if err != nil {
			denseErr = err
			return nil
		}
		matches, err := r.Vectors.Query(gctx, vec, fetchK, nil)
		if err != nil {
			denseErr = err
			return nil
		}
		denseMatches = matches
		return nil
	})
	g.Go(func() error {
		results, err := r.Sparse.SearchBM25(queryText, fetchK)
		if err != nil {
			bm25Err = err
			return nil
		}
		bm25Results = results
		return nil
	})
	g.Go(func() error {
		results, err := r.Sparse.SearchTFIDF(queryText, fetchK)
		if err != nil {
			tfidfErr = err
			return nil
		}
		tfidfResults = results
		return nil
	})
	// Branch errors are captured locally, not returned to the group, so one
	// failing path never aborts the others; the checks below decide how a
	// failed path degrades the result.
	_ = g.Wait()

	sparseFailed := bm25Err != nil && tfidfErr != nil
	denseFailed := denseErr != nil

	if denseFailed {
		slog.Warn("dense retrieval path failed, degrading to sparse-only", "error", denseErr)
	}
	if sparseFailed {
		slog.Warn("sparse retrieval path failed, degrading to semantic-only")
	}

	degradation := DegradationNone
	switch {
	case denseFailed && sparseFailed:
		degradation = DegradationBoth
	case denseFailed:
		degradation = DegradationDense
	case sparseFailed:
		degradation = DegradationSparse
	}
	if degradation == DegradationBoth {
		return nil, degradation, nil
	}

	queryEntities := r.Vocab.Extract(queryText)

	candidates := r.fuse(denseMatches, bm25Results, tfidfResults, queryEntities, degradation)
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, degradation, nil
}

func (r *Retriever) fuse(dense []vectorindex.Match, bm25, tfidf []sparseindex.Result, queryEntities []entity.Match, degradation Degradation) []core.RetrievalCandidate {
	type scores struct {
		semantic, bm25, tfidf float64
	}
	byID := map[string]*scores{}

	get := func(id string) *scores {
		s, ok := byID[id]
		if !ok {
			s = &scores{}
			byID[id] = s
		}
		return s
	}

	for _, m := range dense {
		get(m.ID).semantic = clamp01(m.Cosine)
	}
	for _, m := range bm25 {
		get(m.ID).bm25 = clamp01(m.Score)
	}
	for _, m := range tfidf {
		get(m.ID).tfidf = clamp01(m.Score)
	}

	candidates := make([]core.RetrievalCandidate, 0, len(byID))
	for id, s := range byID {
		base := weightSemantic*s.semantic + weightBM25*s.bm25 + weightTFIDF*s.tfidf

		meta, _ := r.Metadata(id)
		candidateEntities := r.Vocab.Extract(meta.Title + " " + strings.Join(meta.Tags, " "))

		merchantMatch := entityKindOverlaps(queryEntities, candidateEntities, entity.KindMerchant)
		gatewayMatch := entityKindOverlaps(queryEntities, candidateEntities, entity.KindGateway)
		bankMatch := entityKindOverlaps(queryEntities, candidateEntities, entity.KindBank)

		fused, matchType := applyBoost(base, merchantMatch, gatewayMatch)
		if degradation == DegradationDense || degradation == DegradationSparse {
			matchType = matchType.Degraded()
		}

		candidates = append(candidates, core.RetrievalCandidate{
			IncidentID:    id,
			SemanticScore: s.semantic,
			BM25Score:     s.bm25,
			TFIDFScore:    s.tfidf,
			FusedScore:    fused,
			MatchType:     matchType,
			PriorityDetails: core.PriorityDetails{
				MerchantMatch: merchantMatch,
				GatewayMatch:  gatewayMatch,
				BankMatch:     bankMatch,
				Entities:      entity.Values(candidateEntities),
			},
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].FusedScore != candidates[j].FusedScore {
			return candidates[i].FusedScore > candidates[j].FusedScore
		}
		if candidates[i].SemanticScore != candidates[j].SemanticScore {
			return candidates[i].SemanticScore > candidates[j].SemanticScore
		}
		return candidates[i].IncidentID < candidates[j].IncidentID
	})

	return candidates
}

// applyBoost implements the priority-boost table: multiplicative, clamped.
func applyBoost(base float64, merchantMatch, gatewayMatch bool) (float64, core.MatchType) {
	switch {
	case merchantMatch && gatewayMatch:
		return min(base*boostMerchantGateway, capMerchantGateway), core.MatchPerfectMerchantGateway
	case merchantMatch:
		return min(base*boostMerchantOnly, capMerchantOnly), core.MatchMerchantID
	case gatewayMatch:
		return min(base*boostGatewayOnly, capGatewayOnly), core.MatchPaymentGateway
	default:
		return min(base*boostNone, capNone), core.MatchSemantic
	}
}

func entityKindOverlaps(query, candidate []entity.Match, kind entity.Kind) bool {
	if !entity.HasKind(query, kind) || !entity.HasKind(candidate, kind) {
		return false
	}
	for _, q := range query {
		if q.Kind != kind {
			continue
		}
		for _, c := range candidate {
			if c.Kind == kind && strings.EqualFold(q.Value, c.Value) {
				return true
			}
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
