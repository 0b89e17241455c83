package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWIndex implements VectorIndex using the pure-Go coder/hnsw graph — no
// CGO required for the in-process vector store.
type HNSWIndex struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[uint64]
	dim   int

	idToKey map[string]uint64
	keyToID map[uint64]string
	meta    map[string]Metadata
	nextKey uint64
}

// NewHNSWIndex builds an HNSWIndex for vectors of the given dimension.
func NewHNSWIndex(dimension, m, efSearch int) *HNSWIndex {
	if m <= 0 {
		m = 16
	}
	if efSearch <= 0 {
		efSearch = 20
	}
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = m
	graph.EfSearch = efSearch
	graph.Ml = 0.25

	return &HNSWIndex{
		graph:   graph,
		dim:     dimension,
		idToKey: make(map[string]uint64),
		keyToID: make(map[uint64]string),
		meta:    make(map[string]Metadata),
	}
}

// Upsert inserts or replaces the vector for id. Replacement uses lazy
// deletion (orphan the old key rather than mutate the graph in place),
// which avoids a known issue deleting the last node from a coder/hnsw graph.
func (h *HNSWIndex) Upsert(ctx context.Context, id string, vector []float32, metadata Metadata) error {
	if len(vector) != h.dim {
		return fmt.Errorf("vectorindex: dimension mismatch: expected %d, got %d", h.dim, len(vector))
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if oldKey, ok := h.idToKey[id]; ok {
		delete(h.keyToID, oldKey)
	}

	vec := make([]float32, len(vector))
	copy(vec, vector)
	normalizeInPlace(vec)

	key := h.nextKey
	h.nextKey++
	h.graph.Add(hnsw.MakeNode(key, vec))

	h.idToKey[id] = key
	h.keyToID[key] = id
	h.meta[id] = metadata
	return nil
}

// Delete removes id via lazy deletion.
func (h *HNSWIndex) Delete(ctx context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if key, ok := h.idToKey[id]; ok {
		delete(h.keyToID, key)
		delete(h.idToKey, id)
		delete(h.meta, id)
	}
	return nil
}

// Query returns up to topK nearest neighbours to vector, cosine-scored,
// filtered by the optional metadata predicate.
func (h *HNSWIndex) Query(ctx context.Context, vector []float32, topK int, filter func(Metadata) bool) ([]Match, error) {
	if len(vector) != h.dim {
		return nil, fmt.Errorf("vectorindex: dimension mismatch: expected %d, got %d", h.dim, len(vector))
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph.Len() == 0 {
		return nil, nil
	}

	q := make([]float32, len(vector))
	copy(q, vector)
	normalizeInPlace(q)

	// Over-fetch to absorb orphaned/filtered-out nodes.
	nodes := h.graph.Search(q, topK*3+10)

	matches := make([]Match, 0, topK)
	for _, node := range nodes {
		id, ok := h.keyToID[node.Key]
		if !ok {
			continue
		}
		md := h.meta[id]
		if filter != nil && !filter(md) {
			continue
		}
		dist := h.graph.Distance(q, node.Value)
		cosine := 1.0 - float64(dist)/2.0
		matches = append(matches, Match{ID: id, Cosine: cosine, Metadata: md})
		if len(matches) >= topK {
			break
		}
	}
	return matches, nil
}

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

var _ VectorIndex = (*HNSWIndex)(nil)
