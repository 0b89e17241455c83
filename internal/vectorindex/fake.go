package vectorindex

import (
	"context"
	"errors"
	"math"
	"sort"
)

// FakeIndex is a linear-scan VectorIndex for tests. Setting Err makes every
// Query call fail, simulating the dense path going down for degraded-mode
// tests.
type FakeIndex struct {
	Err     error
	vectors map[string][]float32
	meta    map[string]Metadata
}

// NewFakeIndex builds an empty FakeIndex.
func NewFakeIndex() *FakeIndex {
	return &FakeIndex{vectors: make(map[string][]float32), meta: make(map[string]Metadata)}
}

func (f *FakeIndex) Upsert(ctx context.Context, id string, vector []float32, metadata Metadata) error {
	f.vectors[id] = vector
	f.meta[id] = metadata
	return nil
}

func (f *FakeIndex) Delete(ctx context.Context, id string) error {
	delete(f.vectors, id)
	delete(f.meta, id)
	return nil
}

func (f *FakeIndex) Query(ctx context.Context, vector []float32, topK int, filter func(Metadata) bool) ([]Match, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if len(f.vectors) == 0 {
		return nil, nil
	}

	matches := make([]Match, 0, len(f.vectors))
	for id, v := range f.vectors {
		md := f.meta[id]
		if filter != nil && !filter(md) {
			continue
		}
		matches = append(matches, Match{ID: id, Cosine: cosine(vector, v), Metadata: md})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Cosine != matches[j].Cosine {
			return matches[i].Cosine > matches[j].Cosine
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// ErrSimulatedFailure is a convenience sentinel for tests that want to
// force FakeIndex.Query to fail.
var ErrSimulatedFailure = errors.New("vectorindex: simulated failure")

var _ VectorIndex = (*FakeIndex)(nil)
