package corpus

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"incidentrag/internal/core"
	"incidentrag/internal/embedding"
	"incidentrag/internal/sparseindex"
	"incidentrag/internal/store"
	"incidentrag/internal/vectorindex"

	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "incidents.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	m, err := New(s, vectorindex.NewFakeIndex(), sparseindex.New(), embedding.NewFakeEmbedder(16))
	require.NoError(t, err)
	return m
}

func sampleIncident(id string) core.Incident {
	return core.Incident{
		ID:          id,
		Title:       "UPI payment webhook timeout",
		Description: "Payments via the UPI gateway stalled after the webhook callback stopped arriving within the deadline.",
		Resolution:  "Increased webhook retry window and fixed a connection pool leak on the gateway adapter.",
		Tags:        []string{"upi", "webhook", "timeout"},
		CreatedAt:   time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
		ResolvedBy:  "oncall-1",
		Category:    "payments",
		Priority:    "p1",
	}
}

func TestAddPersistsEmbedsAndPublishes(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Add(ctx, sampleIncident("JSP-1001")))

	got, ok := m.Get("JSP-1001")
	require.True(t, ok)
	require.NotEmpty(t, got.Embedding)

	fromStore, ok, err := m.Store.Get("JSP-1001")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, fromStore.Embedding)

	bm25 := m.Sparse.SearchBM25("UPI webhook timeout", 5)
	require.NotEmpty(t, bm25)
}

func TestAddRejectsDuplicateID(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, m.Add(ctx, sampleIncident("JSP-1001")))
	err := m.Add(ctx, sampleIncident("JSP-1001"))
	require.Error(t, err)
}

func TestUpdateReembedsOnlyWhenTextChanges(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, m.Add(ctx, sampleIncident("JSP-1001")))
	before, _ := m.Get("JSP-1001")

	tagOnly := sampleIncident("JSP-1001")
	tagOnly.Tags = append(tagOnly.Tags, "extra")
	require.NoError(t, m.Update(ctx, tagOnly))
	afterTagChange, _ := m.Get("JSP-1001")
	require.Equal(t, before.Embedding, afterTagChange.Embedding)

	textChanged := sampleIncident("JSP-1001")
	textChanged.Description = "A materially different description of at least fifty characters for re-embedding."
	require.NoError(t, m.Update(ctx, textChanged))
	afterTextChange, _ := m.Get("JSP-1001")
	require.NotEqual(t, before.Embedding, afterTextChange.Embedding)
}

func TestUpdateRejectsUnknownID(t *testing.T) {
	m := newTestManager(t)
	err := m.Update(context.Background(), sampleIncident("JSP-9999"))
	require.Error(t, err)
}

func TestDeleteRemovesFromAllThreeBackends(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, m.Add(ctx, sampleIncident("JSP-1001")))
	require.NoError(t, m.Delete(ctx, "JSP-1001"))

	_, ok := m.Get("JSP-1001")
	require.False(t, ok)

	_, ok, err := m.Store.Get("JSP-1001")
	require.NoError(t, err)
	require.False(t, ok)

	vector, err := m.Embedder.Embed(ctx, sampleIncident("JSP-1001").TrainingText(), embedding.TaskTypeDocument)
	require.NoError(t, err)
	matches, err := m.Vectors.Query(ctx, vector, 5, nil)
	require.NoError(t, err)
	require.Empty(t, matches)

	require.Empty(t, m.Sparse.SearchBM25("UPI webhook timeout", 5))
}

func TestRebuildRepublishesFromStoreAfterRestart(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "incidents.db"))
	require.NoError(t, err)
	defer s.Close()

	embedder := embedding.NewFakeEmbedder(16)
	vector, err := embedder.Embed(context.Background(), sampleIncident("JSP-1001").TrainingText(), embedding.TaskTypeDocument)
	require.NoError(t, err)
	incident := sampleIncident("JSP-1001")
	incident.Embedding = vector
	require.NoError(t, s.Put(incident))

	m, err := New(s, vectorindex.NewFakeIndex(), sparseindex.New(), embedder)
	require.NoError(t, err)
	require.Empty(t, m.Sparse.SearchBM25("UPI webhook timeout", 5))

	require.NoError(t, m.Rebuild(context.Background()))
	require.NotEmpty(t, m.Sparse.SearchBM25("UPI webhook timeout", 5))
}

func TestOnChangeHookFiresOnWrites(t *testing.T) {
	m := newTestManager(t)
	calls := 0
	m.OnChange = func() { calls++ }

	require.NoError(t, m.Add(context.Background(), sampleIncident("JSP-1001")))
	require.Equal(t, 1, calls)

	require.NoError(t, m.Delete(context.Background(), "JSP-1001"))
	require.Equal(t, 2, calls)
}
