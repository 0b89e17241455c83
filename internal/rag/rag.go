// Package rag implements the grounded generator (C8) and the end-to-end
// orchestration of a single query through the router, hybrid retriever,
// semantic validator, and generator.
package rag

import (
	"context"
	"fmt"
	"time"

	"incidentrag/internal/core"
	"incidentrag/internal/corpus"
	"incidentrag/internal/errs"
	"incidentrag/internal/generation"
	"incidentrag/internal/logger"
	"incidentrag/internal/retriever"
	"incidentrag/internal/router"
	"incidentrag/internal/validator"
)

const degradedConfidenceFactor = 0.6

// Engine ties the pipeline stages together for a single query.
type Engine struct {
	Router    *router.Router
	Retriever *retriever.Retriever
	Validator *validator.Validator
	Generator generation.Generator
	Corpus    *corpus.Manager

	// RequestDeadline bounds the whole pipeline, including the retrieval
	// fan-out and the generator call. Defaults to 10s if zero.
	RequestDeadline time.Duration
}

// Answer runs the full pipeline for a single query and returns the
// caller-facing response. It never returns an error for a refusal. A
// retrieval error propagates as an error, and so does a generator failure
// that outlasts the generator's own retries: it is returned as a
// KindTransientRemote error, not turned into a degraded or refused response.
func (e *Engine) Answer(ctx context.Context, queryText string) (core.RAGResponse, error) {
	start := time.Now()

	deadline := e.RequestDeadline
	if deadline <= 0 {
		deadline = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	classification := e.Router.Classify(queryText)

	switch classification.Complexity {
	case core.ComplexityExactID:
		return e.exactIDLookup(queryText, classification.ExactID, start), nil
	case core.ComplexityOutOfDomain:
		return e.refusal(queryText, core.ReasonOutOfDomain, core.ComplexityOutOfDomain, start), nil
	}

	topK := core.TopKForComplexity(classification.Complexity)
	candidates, degradation, err := e.Retriever.Retrieve(ctx, queryText, topK)
	if err != nil {
		return core.RAGResponse{}, fmt.Errorf("retrieval failed: %w", err)
	}
	if len(candidates) == 0 {
		return e.refusal(queryText, core.ReasonNoCandidates, classification.Complexity, start), nil
	}

	verdict := e.Validator.Validate(queryText, candidates)
	if !verdict.Admit {
		return e.refusal(queryText, verdict.Reason, classification.Complexity, start), nil
	}

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	contextIncidents := make([]ContextIncident, 0, len(candidates))
	sources := make([]string, 0, len(candidates))
	for _, c := range candidates {
		incident, ok := e.Corpus.Get(c.IncidentID)
		if !ok {
			logger.Component("rag").Warn("candidate incident missing from corpus", "incident_id", c.IncidentID)
			continue
		}
		contextIncidents = append(contextIncidents, ContextIncident{
			ID: incident.ID, Title: incident.Title, Description: incident.Description, Resolution: incident.Resolution,
		})
		sources = append(sources, incident.ID)
	}

	prompt := NewPromptTemplate(queryText, contextIncidents)
	answer, err := e.Generator.Generate(ctx, prompt.Render())
	if err != nil {
		return core.RAGResponse{}, errs.New(errs.KindTransientRemote, "", "generation failed", err)
	}

	degradationFactor := 1.0
	if degradation != retriever.DegradationNone {
		degradationFactor = degradedConfidenceFactor
	}
	confidence := clamp01(min2(verdict.TopFused, verdict.BestComposite) * degradationFactor)

	status := core.StatusOK
	if degradation != retriever.DegradationNone {
		status = core.StatusDegraded
	}

	return core.RAGResponse{
		Query:              queryText,
		GeneratedAnswer:    answer,
		RetrievedIncidents: candidates,
		Sources:            sources,
		ConfidenceScore:    confidence,
		QueryComplexity:    classification.Complexity,
		ExecutionTimeMS:    time.Since(start).Milliseconds(),
		RAGStrategy:        core.StrategyHybridRAG,
		Metadata: core.ResponseMetadata{
			ConfidenceLevel:    core.ConfidenceLevel(confidence),
			IncidentsRetrieved: len(candidates),
			Status:             status,
		},
	}, nil
}

// exactIDLookup bypasses C5/C7 entirely per the exact_id_lookup strategy.
func (e *Engine) exactIDLookup(queryText, id string, start time.Time) core.RAGResponse {
	incident, ok := e.Corpus.Get(id)
	if !ok {
		return e.refusal(queryText, core.ReasonNoCandidates, core.ComplexityExactID, start)
	}

	answer := fmt.Sprintf("%s\n\nResolution: %s", incident.Title, incident.Resolution)
	return core.RAGResponse{
		Query:           queryText,
		GeneratedAnswer: answer,
		RetrievedIncidents: []core.RetrievalCandidate{{
			IncidentID: incident.ID, FusedScore: 1.0, MatchType: core.MatchSemantic,
		}},
		Sources:         []string{incident.ID},
		ConfidenceScore: 1.0,
		QueryComplexity: core.ComplexityExactID,
		ExecutionTimeMS: time.Since(start).Milliseconds(),
		RAGStrategy:     core.StrategyExactIDLookup,
		Metadata: core.ResponseMetadata{
			ConfidenceLevel:    core.ConfidenceLevel(1.0),
			IncidentsRetrieved: 1,
			Status:             core.StatusOK,
		},
	}
}

// refusal builds the no-evidence response. No call to the generator is made.
func (e *Engine) refusal(queryText string, reason core.RefusalReason, complexity core.Complexity, start time.Time) core.RAGResponse {
	return core.RAGResponse{
		Query:              queryText,
		GeneratedAnswer:    "No relevant incidents were found to answer this question.",
		RetrievedIncidents: nil,
		Sources:            []string{},
		ConfidenceScore:    0.0,
		QueryComplexity:    complexity,
		ExecutionTimeMS:    time.Since(start).Milliseconds(),
		RAGStrategy:        core.StrategyRefusal,
		Metadata: core.ResponseMetadata{
			ConfidenceLevel:    core.ConfidenceLevel(0.0),
			IncidentsRetrieved: 0,
			Status:             core.StatusRefused,
		},
		RefusalReason: reason,
	}
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

func min2(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
