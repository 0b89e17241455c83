// Package core defines the domain types shared across the retrieval pipeline:
// incidents, queries, retrieval candidates, responses and feedback.
package core

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// incidentIDPattern matches an incident id of the form PREFIX-DIGITS, e.g. "JSP-1234".
var incidentIDPattern = regexp.MustCompile(`^[A-Za-z]+-\d+$`)

// IncidentIDRegex matches an incident id occurring anywhere within a larger
// string, word-boundary delimited and case-insensitive. Used by the query
// router to extract an id from free-form prose.
var IncidentIDRegex = regexp.MustCompile(`(?i)\b[A-Za-z]+-\d+\b`)

// Complexity is the classification a query router assigns to a query.
type Complexity string

const (
	ComplexityExactID      Complexity = "exact_id"
	ComplexitySimple       Complexity = "simple"
	ComplexityComplex      Complexity = "complex"
	ComplexityOutOfDomain  Complexity = "out_of_domain"
)

// MatchType tags how a RetrievalCandidate earned its fused score.
type MatchType string

const (
	MatchPerfectMerchantGateway MatchType = "PERFECT_MERCHANT_GATEWAY_MATCH"
	MatchMerchantID             MatchType = "MERCHANT_ID_MATCH"
	MatchPaymentGateway         MatchType = "PAYMENT_GATEWAY_MATCH"
	MatchSemantic               MatchType = "SEMANTIC_MATCH"

	degradedSuffix = "_DEGRADED"
)

// Degraded returns the match type with the degraded-retrieval suffix applied.
func (m MatchType) Degraded() MatchType {
	if strings.HasSuffix(string(m), degradedSuffix) {
		return m
	}
	return MatchType(string(m) + degradedSuffix)
}

// Strategy is the string tag recorded on a RAGResponse.
type Strategy string

const (
	StrategyExactIDLookup Strategy = "exact_id_lookup"
	StrategyHybridRAG     Strategy = "hybrid_rag"
	StrategyRefusal       Strategy = "refusal"
)

// Status is the caller-facing health of a response.
type Status string

const (
	StatusOK       Status = "ok"
	StatusRefused  Status = "refused"
	StatusDegraded Status = "degraded"
)

// RefusalReason explains why the semantic validator declined to answer.
type RefusalReason string

const (
	ReasonNoCandidates              RefusalReason = "no_candidates"
	ReasonInsufficientSemanticOverlap RefusalReason = "insufficient_semantic_overlap"
	ReasonOutOfDomain                RefusalReason = "out_of_domain"
)

// Incident is the atomic record: a resolved production problem.
type Incident struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Resolution  string    `json:"resolution"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	ResolvedBy  string    `json:"resolved_by"`
	Category    string    `json:"category,omitempty"`
	Priority    string    `json:"priority,omitempty"`

	// Embedding is the unit-norm dense vector over TrainingText, computed
	// at admission time and recomputed whenever title/description/resolution change.
	Embedding []float32 `json:"embedding,omitempty"`
}

// TrainingText is the canonical text embedded and indexed for this incident.
func (i Incident) TrainingText() string {
	return fmt.Sprintf("%s. %s. Resolution: %s", i.Title, i.Description, i.Resolution)
}

// Validate checks the admission invariants from the data model: minimum
// field lengths, at least one tag, and an id matching prefix-digits.
func (i Incident) Validate() error {
	if len(i.Title) < 10 {
		return fmt.Errorf("title must be at least 10 characters")
	}
	if len(i.Description) < 50 {
		return fmt.Errorf("description must be at least 50 characters")
	}
	if len(i.Resolution) < 20 {
		return fmt.Errorf("resolution must be at least 20 characters")
	}
	if len(i.Tags) < 1 {
		return fmt.Errorf("at least one tag is required")
	}
	if !incidentIDPattern.MatchString(i.ID) {
		return fmt.Errorf("id %q does not match the expected prefix-digits pattern", i.ID)
	}
	return nil
}

// Query is a transient, in-flight request to the retrieval pipeline.
type Query struct {
	Text            string
	Complexity      Complexity
	TopK            int
	ConfidenceFloor float64
}

// TopKForComplexity returns the candidate-count budget for a classified complexity.
func TopKForComplexity(c Complexity) int {
	switch c {
	case ComplexityExactID:
		return 1
	case ComplexitySimple:
		return 3
	case ComplexityComplex:
		return 8
	default:
		return 0
	}
}

// ConfidenceFloorForComplexity returns the minimum confidence a response of
// this complexity is expected to clear.
func ConfidenceFloorForComplexity(c Complexity) float64 {
	if c == ComplexityExactID {
		return 0.1
	}
	return 0.3
}

// PriorityDetails records which entity kinds matched between a query and an
// incident, feeding the priority-boost decision in the hybrid retriever.
type PriorityDetails struct {
	MerchantMatch bool     `json:"merchant_match"`
	GatewayMatch  bool     `json:"gateway_match"`
	BankMatch     bool     `json:"bank_match"`
	Entities      []string `json:"entities,omitempty"`
}

// RetrievalCandidate is one scored incident emitted by the hybrid retriever.
type RetrievalCandidate struct {
	IncidentID      string          `json:"incident_id"`
	SemanticScore   float64         `json:"semantic_score"`
	BM25Score       float64         `json:"bm25_score"`
	TFIDFScore      float64         `json:"tfidf_score"`
	FusedScore      float64         `json:"fused_score"`
	MatchType       MatchType       `json:"match_type"`
	PriorityDetails PriorityDetails `json:"priority_details"`
}

// ResponseMetadata is the caller-facing status envelope around a RAGResponse.
type ResponseMetadata struct {
	ConfidenceLevel    string `json:"confidence_level"`
	IncidentsRetrieved int    `json:"incidents_retrieved"`
	Status             Status `json:"status"`
}

// ConfidenceLevel buckets a confidence score per the external-interface contract.
func ConfidenceLevel(score float64) string {
	switch {
	case score < 0.3:
		return "low"
	case score < 0.7:
		return "medium"
	default:
		return "high"
	}
}

// RAGResponse is returned to the caller for a single query.
type RAGResponse struct {
	Query              string                `json:"query"`
	GeneratedAnswer    string                `json:"generated_answer"`
	RetrievedIncidents []RetrievalCandidate  `json:"retrieved_incidents"`
	Sources            []string              `json:"sources"`
	ConfidenceScore    float64               `json:"confidence_score"`
	QueryComplexity    Complexity            `json:"query_complexity"`
	ExecutionTimeMS    int64                 `json:"execution_time_ms"`
	RAGStrategy        Strategy              `json:"rag_strategy"`
	Metadata           ResponseMetadata      `json:"metadata"`
	RefusalReason      RefusalReason         `json:"refusal_reason,omitempty"`
}

// Feedback is an append-only record of caller-supplied relevance judgement.
type Feedback struct {
	ID            string    `json:"id"`
	Query         string    `json:"query"`
	ResultID      string    `json:"result_id"`
	Rating        int       `json:"rating"`
	Helpful       bool      `json:"helpful"`
	FeedbackText  string    `json:"feedback_text,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Validate checks the feedback rating bound.
func (f Feedback) Validate() error {
	if f.Rating < 1 || f.Rating > 5 {
		return fmt.Errorf("rating must be between 1 and 5, got %d", f.Rating)
	}
	if f.ResultID == "" {
		return fmt.Errorf("result_id is required")
	}
	return nil
}
