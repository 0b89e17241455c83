package embedding

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	*FakeEmbedder
	mu    sync.Mutex
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string, taskType TaskType) ([]float32, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.FakeEmbedder.Embed(ctx, text, taskType)
}

func TestCachedEmbedderHitsCacheOnSecondCall(t *testing.T) {
	inner := &countingEmbedder{FakeEmbedder: NewFakeEmbedder(8)}
	cached := NewCachedEmbedder(inner, 100, time.Hour)

	v1, err := cached.Embed(context.Background(), "timeout on gateway", TaskTypeDocument)
	require.NoError(t, err)
	v2, err := cached.Embed(context.Background(), "timeout on gateway", TaskTypeDocument)
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, inner.calls, "second call should be served from cache")
}

func TestCachedEmbedderDistinctTextsNotConflated(t *testing.T) {
	inner := &countingEmbedder{FakeEmbedder: NewFakeEmbedder(8)}
	cached := NewCachedEmbedder(inner, 100, time.Hour)

	v1, _ := cached.Embed(context.Background(), "alpha", TaskTypeDocument)
	v2, _ := cached.Embed(context.Background(), "beta", TaskTypeDocument)
	assert.NotEqual(t, v1, v2)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedEmbedderDocumentAndQueryVariantsNotConflated(t *testing.T) {
	inner := &countingEmbedder{FakeEmbedder: NewFakeEmbedder(8)}
	cached := NewCachedEmbedder(inner, 100, time.Hour)

	doc, _ := cached.Embed(context.Background(), "gateway timeout", TaskTypeDocument)
	query, _ := cached.Embed(context.Background(), "gateway timeout", TaskTypeQuery)
	assert.NotEqual(t, doc, query, "document and query embeddings of the same text must not share a cache entry")
	assert.Equal(t, 2, inner.calls)
}

func TestCachedEmbedderSingleFlightsConcurrentMisses(t *testing.T) {
	inner := &countingEmbedder{FakeEmbedder: NewFakeEmbedder(8)}
	cached := NewCachedEmbedder(inner, 100, time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = cached.Embed(context.Background(), "shared key", TaskTypeDocument)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, inner.calls, "concurrent misses for the same key must coalesce")
}
