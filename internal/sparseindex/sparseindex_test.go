package sparseindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedDocs() []Document {
	return []Document{
		{ID: "JSP-1000", Text: "UPI timeout on Axis Bank. Payment stuck during settlement. Resolution: retried webhook"},
		{ID: "JSP-1005", Text: "Axis PG connection reset. Gateway dropped the session. Resolution: restarted gateway pool"},
		{ID: "JSP-2000", Text: "How to bake a cake at home using an oven and fresh ingredients for dessert"},
	}
}

func TestSearchBM25RanksRelevantDocFirst(t *testing.T) {
	idx := New()
	idx.Rebuild(seedDocs())

	results := idx.SearchBM25("UPI timeout", 3)
	require.NotEmpty(t, results)
	assert.Equal(t, "JSP-1000", results[0].ID)
}

func TestSearchBM25ScoresAreMinMaxNormalised(t *testing.T) {
	idx := New()
	idx.Rebuild(seedDocs())

	results := idx.SearchBM25("axis", 3)
	require.NotEmpty(t, results)
	assert.Equal(t, 1.0, results[0].Score)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
	}
}

func TestSearchTFIDFRanksRelevantDocFirst(t *testing.T) {
	idx := New()
	idx.Rebuild(seedDocs())

	results := idx.SearchTFIDF("gateway connection reset", 3)
	require.NotEmpty(t, results)
	assert.Equal(t, "JSP-1005", results[0].ID)
}

func TestUpsertThenDeleteRemovesFromResults(t *testing.T) {
	idx := New()
	for _, d := range seedDocs() {
		idx.Upsert(d.ID, d.Text)
	}
	idx.Delete("JSP-1000")

	results := idx.SearchBM25("UPI timeout", 3)
	for _, r := range results {
		assert.NotEqual(t, "JSP-1000", r.ID)
	}
}

func TestReadersContinueOnOldSnapshotDuringRebuild(t *testing.T) {
	idx := New()
	idx.Rebuild(seedDocs())

	snap := idx.currentSnapshot()
	idx.Rebuild(nil) // writer publishes an empty snapshot

	// The handle taken before the rebuild still searches the old data.
	results := snap.searchBM25("UPI timeout", 3)
	require.NotEmpty(t, results)
	assert.Equal(t, "JSP-1000", results[0].ID)
}
