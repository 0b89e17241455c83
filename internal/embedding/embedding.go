// Package embedding defines the Embedder capability interface (C1) and a
// content-addressed, single-flight caching decorator around it.
package embedding

import "context"

// TaskType asymmetrically optimises an embedding for how the vector will be
// used: the same text embedded as a stored document and embedded as an
// incoming query yields different vectors under the provider's retrieval
// model, which is what lets a short query match a long incident writeup.
type TaskType string

const (
	// TaskTypeDocument is used when embedding an incident's training text
	// at ingest time, for storage in the vector index.
	TaskTypeDocument TaskType = "retrieval_document"
	// TaskTypeQuery is used when embedding an incoming natural-language
	// query at retrieval time.
	TaskTypeQuery TaskType = "retrieval_query"
)

// Embedder maps text to a unit-norm dense vector of a fixed dimension,
// optimised for taskType. Implementations must be deterministic under
// caching: the same text, task type, and model must always resolve to the
// same vector.
type Embedder interface {
	Embed(ctx context.Context, text string, taskType TaskType) ([]float32, error)
	Dimension() int
	ModelName() string
}
