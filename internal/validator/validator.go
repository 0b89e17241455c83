// Package validator implements the semantic validator (C7): the gate that
// decides whether a candidate set is topically admissible, preventing the
// generator from hallucinating an answer out of weakly-related incidents.
package validator

import (
	"strings"

	"incidentrag/internal/core"
	"incidentrag/internal/entity"
)

const (
	weightDomain = 0.5
	weightEntity = 0.3
	weightIntent = 0.2

	admitFusedThreshold     = 0.8
	admitCompositeThreshold = 0.3
)

var troubleshootingVerbs = []string{
	"failed", "failing", "fails", "stuck", "error", "errors", "timeout",
	"timed out", "blocked", "down", "broke", "broken", "crashed", "stopped",
}

// CandidateInfo is the subset of an incident the validator needs to
// compute domain_match, kept narrow so the validator does not depend on
// the corpus package.
type CandidateInfo struct {
	Category string
	Tags     []string
}

// InfoSource resolves an incident id to its CandidateInfo.
type InfoSource func(id string) (CandidateInfo, bool)

// Validator gates candidate sets by domain and entity overlap.
type Validator struct {
	Vocab *entity.Vocabulary
	Info  InfoSource
}

// Verdict is the validator's decision for one query/candidate-set pair.
type Verdict struct {
	Admit         bool
	Reason        core.RefusalReason
	BestComposite float64
	TopFused      float64
}

// Validate decides whether candidates are admissible for queryText.
func (v *Validator) Validate(queryText string, candidates []core.RetrievalCandidate) Verdict {
	if len(candidates) == 0 {
		return Verdict{Admit: false, Reason: core.ReasonNoCandidates}
	}

	queryEntities := v.Vocab.Extract(queryText)
	topFused := candidates[0].FusedScore

	var bestComposite float64
	for _, c := range candidates {
		composite := v.composite(queryText, queryEntities, c)
		if composite > bestComposite {
			bestComposite = composite
		}
	}

	verdict := Verdict{BestComposite: bestComposite, TopFused: topFused}
	if topFused >= admitFusedThreshold || bestComposite >= admitCompositeThreshold {
		verdict.Admit = true
		return verdict
	}

	verdict.Reason = core.ReasonInsufficientSemanticOverlap
	if len(queryEntities) == 0 {
		verdict.Reason = core.ReasonOutOfDomain
	}
	return verdict
}

func (v *Validator) composite(queryText string, queryEntities []entity.Match, c core.RetrievalCandidate) float64 {
	domain := v.domainMatch(queryText, c.IncidentID)
	overlap := entityOverlapScore(queryEntities, c.PriorityDetails)
	intent := intentAlignment(queryText)

	return weightDomain*domain + weightEntity*overlap + weightIntent*intent
}

// domainMatch returns 1 (identical), 0.5 (adjacent), or 0 (unrelated)
// depending on how directly the candidate's category/tags surface in the
// query text.
func (v *Validator) domainMatch(queryText, candidateID string) float64 {
	info, ok := v.Info(candidateID)
	if !ok {
		return 0
	}
	lower := strings.ToLower(queryText)

	if info.Category != "" && strings.Contains(lower, strings.ToLower(info.Category)) {
		return 1
	}
	for _, tag := range info.Tags {
		if strings.Contains(lower, strings.ToLower(tag)) {
			return 1
		}
	}

	candidateEntities := v.Vocab.Extract(strings.Join(info.Tags, " "))
	queryEntities := v.Vocab.Extract(queryText)
	if entity.Overlap(queryEntities, candidateEntities) > 0 {
		return 0.5
	}
	return 0
}

func entityOverlapScore(queryEntities []entity.Match, details core.PriorityDetails) float64 {
	if len(queryEntities) == 0 {
		return 0
	}
	overlap := 0
	candidateSet := make(map[string]bool, len(details.Entities))
	for _, e := range details.Entities {
		candidateSet[e] = true
	}
	seen := map[string]bool{}
	for _, q := range queryEntities {
		key := strings.ToLower(q.Value)
		if seen[key] {
			continue
		}
		seen[key] = true
		if candidateSet[key] {
			overlap++
		}
	}
	return float64(overlap) / float64(len(queryEntities))
}

func intentAlignment(queryText string) float64 {
	lower := strings.ToLower(queryText)
	for _, verb := range troubleshootingVerbs {
		if strings.Contains(lower, verb) {
			return 1
		}
	}
	return 0
}
