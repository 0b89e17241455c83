// Package corpus implements the corpus manager (C9): the single writer that
// keeps the canonical store, the dense vector index, and the sparse index in
// sync, and the read path that serves metadata lookups to the retriever and
// validator.
package corpus

import (
	"context"
	"fmt"
	"sync"

	"incidentrag/internal/core"
	"incidentrag/internal/embedding"
	"incidentrag/internal/logger"
	"incidentrag/internal/retriever"
	"incidentrag/internal/sparseindex"
	"incidentrag/internal/store"
	"incidentrag/internal/validator"
	"incidentrag/internal/vectorindex"
)

// InvalidationHook is called whenever the corpus contents change, so callers
// (the router's LRU decision cache) can invalidate their own caches.
type InvalidationHook func()

// Manager owns the canonical incident store and keeps the two in-memory
// indices (dense, sparse) in sync with it. All writes go through Manager;
// the store is always updated first, so a crash between the store write and
// an index publish leaves an incident merely unsearchable until the next
// Rebuild, never orphaned in an index the store does not know about.
type Manager struct {
	Store    *store.Store
	Vectors  vectorindex.VectorIndex
	Sparse   *sparseindex.Index
	Embedder embedding.Embedder

	OnChange InvalidationHook

	mu   sync.RWMutex
	meta map[string]core.Incident // in-memory mirror for metadata lookups
}

// New constructs a Manager and loads its in-memory metadata mirror from the
// store. Callers should follow New with Rebuild to repopulate the dense and
// sparse indices after a process restart.
func New(s *store.Store, vectors vectorindex.VectorIndex, sparse *sparseindex.Index, embedder embedding.Embedder) (*Manager, error) {
	m := &Manager{Store: s, Vectors: vectors, Sparse: sparse, Embedder: embedder, meta: make(map[string]core.Incident)}

	incidents, err := s.All()
	if err != nil {
		return nil, fmt.Errorf("failed to load incidents from store: %w", err)
	}
	for _, incident := range incidents {
		m.meta[incident.ID] = incident
	}
	return m, nil
}

// Rebuild republishes every incident in the store into the dense and sparse
// indices. Call this once at startup: it is the crash-recovery path for an
// index publish that never completed.
func (m *Manager) Rebuild(ctx context.Context) error {
	m.mu.RLock()
	incidents := make([]core.Incident, 0, len(m.meta))
	for _, incident := range m.meta {
		incidents = append(incidents, incident)
	}
	m.mu.RUnlock()

	docs := make([]sparseindex.Document, 0, len(incidents))
	for _, incident := range incidents {
		docs = append(docs, sparseindex.Document{ID: incident.ID, Text: incident.TrainingText()})
		if len(incident.Embedding) > 0 {
			if err := m.Vectors.Upsert(ctx, incident.ID, incident.Embedding, vectorindex.Metadata{"title": incident.Title}); err != nil {
				return fmt.Errorf("failed to republish incident %s into vector index: %w", incident.ID, err)
			}
		}
	}
	m.Sparse.Rebuild(docs)
	logger.Component("corpus").Info("rebuilt indices from store", "incidents", len(incidents))
	return nil
}

// Add admits a new incident: embeds its training text, persists it to the
// store, and publishes it into both indices. Duplicate ids are rejected.
func (m *Manager) Add(ctx context.Context, incident core.Incident) error {
	if err := incident.Validate(); err != nil {
		return fmt.Errorf("incident failed validation: %w", err)
	}

	if _, ok, err := m.Store.Get(incident.ID); err != nil {
		return fmt.Errorf("failed to check for existing incident: %w", err)
	} else if ok {
		return fmt.Errorf("incident %s already exists", incident.ID)
	}

	vector, err := m.Embedder.Embed(ctx, incident.TrainingText(), embedding.TaskTypeDocument)
	if err != nil {
		return fmt.Errorf("failed to embed incident %s: %w", incident.ID, err)
	}
	incident.Embedding = vector

	if err := m.Store.Put(incident); err != nil {
		return fmt.Errorf("failed to persist incident %s: %w", incident.ID, err)
	}

	if err := m.publish(ctx, incident); err != nil {
		return err
	}

	m.mu.Lock()
	m.meta[incident.ID] = incident
	m.mu.Unlock()
	m.invalidate()
	logger.Component("corpus").Debug("admitted incident", "incident_id", incident.ID)
	return nil
}

// Update replaces an existing incident. The embedding is recomputed only
// when title, description, or resolution changed; tag/category/priority-only
// edits reuse the existing vector.
func (m *Manager) Update(ctx context.Context, incident core.Incident) error {
	if err := incident.Validate(); err != nil {
		return fmt.Errorf("incident failed validation: %w", err)
	}

	existing, ok, err := m.Store.Get(incident.ID)
	if err != nil {
		return fmt.Errorf("failed to load existing incident %s: %w", incident.ID, err)
	}
	if !ok {
		return fmt.Errorf("incident %s does not exist", incident.ID)
	}

	if textChanged(existing, incident) {
		vector, err := m.Embedder.Embed(ctx, incident.TrainingText(), embedding.TaskTypeDocument)
		if err != nil {
			return fmt.Errorf("failed to re-embed incident %s: %w", incident.ID, err)
		}
		incident.Embedding = vector
	} else {
		incident.Embedding = existing.Embedding
	}

	if err := m.Store.Put(incident); err != nil {
		return fmt.Errorf("failed to persist incident %s: %w", incident.ID, err)
	}

	if err := m.publish(ctx, incident); err != nil {
		return err
	}

	m.mu.Lock()
	m.meta[incident.ID] = incident
	m.mu.Unlock()
	m.invalidate()
	logger.Component("corpus").Debug("updated incident", "incident_id", incident.ID)
	return nil
}

func textChanged(a, b core.Incident) bool {
	return a.Title != b.Title || a.Description != b.Description || a.Resolution != b.Resolution
}

// publish upserts an incident into both indices. The sparse index's Upsert
// is incremental at the call site but republishes a full snapshot built
// from the sparse index's own document set.
func (m *Manager) publish(ctx context.Context, incident core.Incident) error {
	if err := m.Vectors.Upsert(ctx, incident.ID, incident.Embedding, vectorindex.Metadata{"title": incident.Title}); err != nil {
		return fmt.Errorf("failed to upsert incident %s into vector index: %w", incident.ID, err)
	}
	m.Sparse.Upsert(incident.ID, incident.TrainingText())
	return nil
}

// Delete removes an incident from the store and both indices.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.Store.Delete(id); err != nil {
		return fmt.Errorf("failed to delete incident %s from store: %w", id, err)
	}
	if err := m.Vectors.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete incident %s from vector index: %w", id, err)
	}
	m.Sparse.Delete(id)

	m.mu.Lock()
	delete(m.meta, id)
	m.mu.Unlock()
	m.invalidate()
	logger.Component("corpus").Debug("deleted incident", "incident_id", id)
	return nil
}

// Get returns the incident for id from the in-memory mirror.
func (m *Manager) Get(id string) (core.Incident, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	incident, ok := m.meta[id]
	return incident, ok
}

// KnownID reports whether id exists in the corpus, for the query router's
// exact-id membership check.
func (m *Manager) KnownID(id string) bool {
	_, ok := m.Get(id)
	return ok
}

// AllIDs returns every incident id currently in the corpus.
func (m *Manager) AllIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.meta))
	for id := range m.meta {
		ids = append(ids, id)
	}
	return ids
}

// MetadataSource adapts the corpus to the retriever's lookup contract.
func (m *Manager) MetadataSource() retriever.MetadataSource {
	return func(id string) (retriever.IncidentMeta, bool) {
		incident, ok := m.Get(id)
		if !ok {
			return retriever.IncidentMeta{}, false
		}
		return retriever.IncidentMeta{Title: incident.Title, Tags: incident.Tags}, true
	}
}

// InfoSource adapts the corpus to the validator's lookup contract.
func (m *Manager) InfoSource() validator.InfoSource {
	return func(id string) (validator.CandidateInfo, bool) {
		incident, ok := m.Get(id)
		if !ok {
			return validator.CandidateInfo{}, false
		}
		return validator.CandidateInfo{Category: incident.Category, Tags: incident.Tags}, true
	}
}

// AddFeedback records a relevance judgement against a prior response.
func (m *Manager) AddFeedback(fb core.Feedback) error {
	if err := fb.Validate(); err != nil {
		return fmt.Errorf("feedback failed validation: %w", err)
	}
	return m.Store.PutFeedback(fb)
}

func (m *Manager) invalidate() {
	if m.OnChange != nil {
		m.OnChange()
	}
}
