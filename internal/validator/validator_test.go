package validator

import (
	"testing"

	"incidentrag/internal/core"
	"incidentrag/internal/entity"

	"github.com/stretchr/testify/assert"
)

func testVocab() *entity.Vocabulary {
	return entity.NewVocabulary(
		[]string{"Snapdeal"},
		[]string{"Pinelabs"},
		[]string{"Axis Bank"},
	)
}

func TestValidateAdmitsOnHighFusedScoreAlone(t *testing.T) {
	v := &Validator{
		Vocab: testVocab(),
		Info: func(id string) (CandidateInfo, bool) {
			return CandidateInfo{}, false
		},
	}
	candidates := []core.RetrievalCandidate{{IncidentID: "JSP-1", FusedScore: 0.9}}
	verdict := v.Validate("unrelated text", candidates)
	assert.True(t, verdict.Admit)
}

func TestValidateAdmitsOnStrongDomainMatchDespiteModerateFusedScore(t *testing.T) {
	v := &Validator{
		Vocab: testVocab(),
		Info: func(id string) (CandidateInfo, bool) {
			return CandidateInfo{Category: "upi", Tags: []string{"upi", "timeout"}}, true
		},
	}
	candidates := []core.RetrievalCandidate{
		{IncidentID: "JSP-1", FusedScore: 0.5, PriorityDetails: core.PriorityDetails{}},
	}
	verdict := v.Validate("UPI timeout failed again", candidates)
	assert.True(t, verdict.Admit)
}

func TestValidateRefusesOutOfDomainQuery(t *testing.T) {
	v := &Validator{
		Vocab: testVocab(),
		Info: func(id string) (CandidateInfo, bool) {
			return CandidateInfo{Category: "baking"}, true
		},
	}
	candidates := []core.RetrievalCandidate{{IncidentID: "JSP-1", FusedScore: 0.2}}
	verdict := v.Validate("how to bake a cake", candidates)
	assert.False(t, verdict.Admit)
	assert.Equal(t, core.ReasonOutOfDomain, verdict.Reason)
}

func TestValidateRefusesNoCandidates(t *testing.T) {
	v := &Validator{Vocab: testVocab(), Info: func(string) (CandidateInfo, bool) { return CandidateInfo{}, false }}
	verdict := v.Validate("UPI timeout", nil)
	assert.False(t, verdict.Admit)
	assert.Equal(t, core.ReasonNoCandidates, verdict.Reason)
}
