package rag

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"incidentrag/internal/core"
	"incidentrag/internal/corpus"
	"incidentrag/internal/embedding"
	"incidentrag/internal/entity"
	"incidentrag/internal/generation"
	"incidentrag/internal/retriever"
	"incidentrag/internal/router"
	"incidentrag/internal/sparseindex"
	"incidentrag/internal/store"
	"incidentrag/internal/validator"
	"incidentrag/internal/vectorindex"

	"github.com/stretchr/testify/require"
)

type testHarness struct {
	engine    *Engine
	corpusMgr *corpus.Manager
	generator *generation.FakeGenerator
	vectors   *vectorindex.FakeIndex
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "incidents.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	embedder := embedding.NewFakeEmbedder(16)
	vectors := vectorindex.NewFakeIndex()
	sparse := sparseindex.New()

	mgr, err := corpus.New(s, vectors, sparse, embedder)
	require.NoError(t, err)

	vocab := entity.NewVocabulary(
		[]string{"Snapdeal"},
		[]string{"Pinelabs"},
		[]string{"Axis Bank"},
	)

	rt := router.New(vocab, []string{"upi", "webhook", "gateway", "pg"}, mgr.KnownID, 64)
	mgr.OnChange = rt.InvalidateCache

	retr := &retriever.Retriever{
		Embedder: embedder,
		Vectors:  vectors,
		Sparse:   retriever.NewSparseSearcher(sparse),
		Vocab:    vocab,
		Metadata: mgr.MetadataSource(),
	}
	val := &validator.Validator{Vocab: vocab, Info: mgr.InfoSource()}
	gen := &generation.FakeGenerator{}

	engine := &Engine{
		Router:          rt,
		Retriever:       retr,
		Validator:       val,
		Generator:       gen,
		Corpus:          mgr,
		RequestDeadline: 5 * time.Second,
	}

	return &testHarness{engine: engine, corpusMgr: mgr, generator: gen, vectors: vectors}
}

func incident(id, title, description, resolution string, tags []string) core.Incident {
	return core.Incident{
		ID:          id,
		Title:       title,
		Description: description,
		Resolution:  resolution,
		Tags:        tags,
		CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		ResolvedBy:  "oncall-1",
		Category:    "payments",
	}
}

func TestAnswerExactIDShortCircuit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.corpusMgr.Add(ctx, incident(
		"JSP-1052", "Webhook SSL failure",
		"The incoming webhook callback failed TLS verification after a certificate rotation broke the handshake.",
		"Rotated the trust store and redeployed the webhook listener with the new certificate chain.",
		[]string{"webhook", "tls"},
	)))

	resp, err := h.engine.Answer(ctx, "JSP-1052")
	require.NoError(t, err)
	require.Equal(t, core.StrategyExactIDLookup, resp.RAGStrategy)
	require.Equal(t, 1.0, resp.ConfidenceScore)
	require.Equal(t, []string{"JSP-1052"}, resp.Sources)
	require.Equal(t, 0, h.generator.Calls)
}

func TestAnswerExactIDInsideProse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.corpusMgr.Add(ctx, incident(
		"JSP-1052", "Webhook SSL failure",
		"The incoming webhook callback failed TLS verification after a certificate rotation broke the handshake.",
		"Rotated the trust store and redeployed the webhook listener with the new certificate chain.",
		[]string{"webhook", "tls"},
	)))

	resp, err := h.engine.Answer(ctx, "any update on JSP-1052 please")
	require.NoError(t, err)
	require.Equal(t, core.StrategyExactIDLookup, resp.RAGStrategy)
	require.Equal(t, []string{"JSP-1052"}, resp.Sources)
}

func TestAnswerSimpleDomainQueryCitesTopMatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.corpusMgr.Add(ctx, incident(
		"JSP-1000", "UPI timeout on Axis Bank",
		"Customers reported UPI payments timing out intermittently when routed through Axis Bank's settlement gateway.",
		"Increased the UPI gateway timeout threshold and added a retry for the Axis Bank settlement callback.",
		[]string{"upi", "timeout", "axis bank"},
	)))
	require.NoError(t, h.corpusMgr.Add(ctx, incident(
		"JSP-1005", "Axis PG connection reset",
		"The Axis payment gateway connection was reset mid-transaction during a routine network maintenance window.",
		"Added connection retry logic and a circuit breaker around the Axis PG adapter.",
		[]string{"axis bank", "connection reset"},
	)))

	h.generator.Response = "UPI timeouts were resolved by increasing the gateway timeout (JSP-1000)."

	resp, err := h.engine.Answer(ctx, "UPI timeout")
	require.NoError(t, err)
	require.Equal(t, core.StrategyHybridRAG, resp.RAGStrategy)
	require.NotEmpty(t, resp.RetrievedIncidents)
	require.Equal(t, "JSP-1000", resp.RetrievedIncidents[0].IncidentID)
	require.Contains(t, resp.Sources, "JSP-1000")
	require.Equal(t, 1, h.generator.Calls)
}

func TestAnswerRefusesOutOfDomainQuery(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.corpusMgr.Add(ctx, incident(
		"JSP-1000", "UPI timeout on Axis Bank",
		"Customers reported UPI payments timing out intermittently when routed through Axis Bank's settlement gateway.",
		"Increased the UPI gateway timeout threshold and added a retry for the Axis Bank settlement callback.",
		[]string{"upi", "timeout", "axis bank"},
	)))

	resp, err := h.engine.Answer(ctx, "how to bake a cake")
	require.NoError(t, err)
	require.Equal(t, core.StrategyRefusal, resp.RAGStrategy)
	require.Empty(t, resp.Sources)
	require.Equal(t, 0.0, resp.ConfidenceScore)
	require.Equal(t, core.ReasonOutOfDomain, resp.RefusalReason)
	require.Equal(t, 0, h.generator.Calls)
}

func TestAnswerDegradesWhenVectorIndexFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.corpusMgr.Add(ctx, incident(
		"JSP-1000", "UPI timeout on Axis Bank",
		"Customers reported UPI payments timing out intermittently when routed through Axis Bank's settlement gateway.",
		"Increased the UPI gateway timeout threshold and added a retry for the Axis Bank settlement callback.",
		[]string{"upi", "timeout", "axis bank"},
	)))

	h.vectors.Err = vectorindex.ErrSimulatedFailure
	resp, err := h.engine.Answer(ctx, "UPI timeout")
	require.NoError(t, err)
	require.Equal(t, core.StatusDegraded, resp.Metadata.Status)
	require.LessOrEqual(t, resp.ConfidenceScore, 0.6)
	for _, c := range resp.RetrievedIncidents {
		require.Contains(t, string(c.MatchType), "_DEGRADED")
	}
}
