// Package ingestion implements the ingestion pipeline (C10): the state
// machine that normalises heterogeneous external sources (CSV exports,
// HTML ticket exports, chat threads) into incidents and admits them into
// the corpus manager. Every record runs the same
// load -> validate -> normalise -> embed -> upsert -> index -> verify
// stages; a record that fails validation is dropped, and a record that
// fails a later stage is quarantined rather than retried silently.
package ingestion

import (
	"context"
	"fmt"

	"incidentrag/internal/core"
	"incidentrag/internal/corpus"
	"incidentrag/internal/logger"
)

// Stage names the state-machine position of one record within a batch.
type Stage string

const (
	StageNew        Stage = "new"
	StageValidated  Stage = "validated"
	StageNormalised Stage = "normalised"
	StageEmbedded   Stage = "embedded"
	StageUpserted   Stage = "upserted"
	StageIndexed    Stage = "indexed"
	StageLive       Stage = "live"
	StageQuarantined Stage = "quarantined"
)

// Result is the terminal state of one record's run through the pipeline.
type Result struct {
	IncidentID string
	Stage      Stage
	Reason     string // populated when Stage == StageQuarantined
}

// Outcome summarises a batch run: which records went live, and which were
// dropped or quarantined, with reasons for operator review.
type Outcome struct {
	Live       []string
	Quarantined []Result
}

// Pipeline drives incidents through load -> validate -> normalise -> embed
// -> upsert -> index -> verify against a corpus manager. Embed/upsert/index
// are delegated entirely to corpus.Manager.Add, which shares the same
// embedding cache the query path uses.
type Pipeline struct {
	Corpus *corpus.Manager
}

// New builds a Pipeline over a corpus manager.
func New(mgr *corpus.Manager) *Pipeline {
	return &Pipeline{Corpus: mgr}
}

// Run normalises and admits a batch of already-loaded incidents. Ingestion
// is idempotent on id: a record whose id already exists in the corpus is
// treated as already-live and skipped rather than re-admitted, so
// re-running the same batch twice leaves the corpus unchanged.
func (p *Pipeline) Run(ctx context.Context, incidents []core.Incident) Outcome {
	var out Outcome
	for _, incident := range incidents {
		result := p.admitOne(ctx, incident)
		if result.Stage == StageLive {
			out.Live = append(out.Live, result.IncidentID)
		} else {
			out.Quarantined = append(out.Quarantined, result)
		}
	}
	return out
}

func (p *Pipeline) admitOne(ctx context.Context, incident core.Incident) Result {
	log := logger.Component("ingestion")

	// validate
	if err := incident.Validate(); err != nil {
		log.Warn("dropped invalid record", "incident_id", incident.ID, "error", err)
		return Result{IncidentID: incident.ID, Stage: StageQuarantined, Reason: err.Error()}
	}

	// idempotence: a known id is already live, nothing further to do
	if p.Corpus.KnownID(incident.ID) {
		return Result{IncidentID: incident.ID, Stage: StageLive}
	}

	// embed -> upsert -> index, all performed atomically by Manager.Add
	if err := p.Corpus.Add(ctx, incident); err != nil {
		log.Error("quarantined record", "incident_id", incident.ID, "error", err)
		return Result{IncidentID: incident.ID, Stage: StageQuarantined, Reason: err.Error()}
	}

	// verify: a record is only live once it is observable back out of the
	// corpus's in-memory mirror (which Add populates synchronously).
	if _, ok := p.Corpus.Get(incident.ID); !ok {
		reason := fmt.Sprintf("incident %s not observable after admission", incident.ID)
		log.Error("verify stage failed", "incident_id", incident.ID)
		return Result{IncidentID: incident.ID, Stage: StageQuarantined, Reason: reason}
	}

	return Result{IncidentID: incident.ID, Stage: StageLive}
}
