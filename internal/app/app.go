// Package app wires the RAG pipeline's components into a runnable engine
// from configuration: the corpus manager, hybrid retriever, query router,
// semantic validator, and grounded generator, plus the ingestion pipeline
// that feeds the corpus. It is the single place that knows how C1-C10 are
// assembled; cmd/ handlers build the pipeline only through this package,
// and import internal/config, internal/core and internal/ingestion only for
// their configuration, record and source-format types.
package app

import (
	"context"
	"fmt"
	"path/filepath"

	"incidentrag/internal/config"
	"incidentrag/internal/corpus"
	"incidentrag/internal/embedding"
	"incidentrag/internal/generation"
	"incidentrag/internal/ingestion"
	"incidentrag/internal/llm"
	"incidentrag/internal/logger"
	"incidentrag/internal/rag"
	"incidentrag/internal/ratelimit"
	"incidentrag/internal/retriever"
	"incidentrag/internal/router"
	"incidentrag/internal/sparseindex"
	"incidentrag/internal/store"
	"incidentrag/internal/validator"
	"incidentrag/internal/vectorindex"
	"incidentrag/internal/vocab"
)

// App bundles the corpus manager, ingestion pipeline, and query engine
// built from a single configuration, plus the resources that need an
// explicit Close.
type App struct {
	Config    *config.Config
	Corpus    *corpus.Manager
	Ingestion *ingestion.Pipeline
	Engine    *rag.Engine

	store *store.Store
}

// New builds an App from cfg. It opens the SQLite store, constructs the
// dense (HNSW) and sparse (BM25/TF-IDF) indices, wires rate-limited and
// cached decorators around the Gemini embedder and generator, and
// rebuilds both indices from the store's canonical state — the
// crash-recovery path for an index publish that never completed.
func New(cfg *config.Config) (*App, error) {
	logger.Init(cfg.Logging.Level)

	s, err := store.New(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("app: failed to open store: %w", err)
	}

	vocabFile, err := vocab.Load(filepath.Join(cfg.App.DataDir, "vocab.json"))
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("app: failed to load vocabulary: %w", err)
	}
	vocabulary := vocabFile.Vocabulary()

	embedder, generator, err := buildProviders(cfg)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	vectors := vectorindex.NewHNSWIndex(cfg.Embedding.Dimension, cfg.VectorIndex.M, cfg.VectorIndex.Ef)
	sparse := sparseindex.New()

	mgr, err := corpus.New(s, vectors, sparse, embedder)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("app: failed to construct corpus manager: %w", err)
	}
	if err := mgr.Rebuild(context.Background()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("app: failed to rebuild indices from store: %w", err)
	}

	rtr := router.New(vocabulary, vocabFile.Anchors, mgr.KnownID, 1024)
	mgr.OnChange = rtr.InvalidateCache

	retr := &retriever.Retriever{
		Embedder: embedder,
		Vectors:  vectors,
		Sparse:   retriever.NewSparseSearcher(sparse),
		Vocab:    vocabulary,
		Metadata: mgr.MetadataSource(),
	}

	val := &validator.Validator{Vocab: vocabulary, Info: mgr.InfoSource()}

	engine := &rag.Engine{
		Router:          rtr,
		Retriever:       retr,
		Validator:       val,
		Generator:       generator,
		Corpus:          mgr,
		RequestDeadline: cfg.Server.RequestDeadline,
	}

	return &App{
		Config:    cfg,
		Corpus:    mgr,
		Ingestion: ingestion.New(mgr),
		Engine:    engine,
		store:     s,
	}, nil
}

// Close releases the underlying store handle.
func (a *App) Close() error {
	return a.store.Close()
}

// buildProviders constructs the embedding and generative providers,
// decorated with caching and rate limiting in the order the data model
// requires: the embedding cache is authoritative and sits outermost, in
// front of the rate limiter, so a cache hit never consumes a rate-limit token.
func buildProviders(cfg *config.Config) (embedding.Embedder, generation.Generator, error) {
	apiKey := cfg.Embedding.APIKey
	if apiKey == "" {
		apiKey = cfg.Generative.APIKey
	}
	client, err := llm.NewClient(apiKey, cfg.Generative.Model, cfg.Embedding.Model, int32(cfg.Embedding.Dimension))
	if err != nil {
		return nil, nil, fmt.Errorf("app: failed to construct gemini client: %w", err)
	}

	limiter := ratelimit.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	rawEmbedder := embedding.NewGeminiEmbedder(client, cfg.Embedding.Model, cfg.Embedding.Dimension)
	limitedEmbedder := &ratelimit.LimitedEmbedder{Inner: rawEmbedder, Limiter: limiter}
	cached := embedding.NewCachedEmbedder(limitedEmbedder, cfg.Cache.Size, cfg.Cache.TTL)

	rawGenerator := generation.NewGeminiGenerator(client, cfg.Generative.Temperature, cfg.Generative.MaxTokens)
	limitedGenerator := &ratelimit.LimitedGenerator{Inner: rawGenerator, Limiter: limiter}

	return cached, limitedGenerator, nil
}
