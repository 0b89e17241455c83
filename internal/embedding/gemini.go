package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"incidentrag/internal/errs"
	"incidentrag/internal/llm"

	"github.com/cenkalti/backoff/v4"
)

// GeminiEmbedder adapts an llm.Client to the Embedder interface, retrying
// transient failures with exponential backoff per the embedding provider's
// failure-mode contract: rate-limited and transient errors are retried
// (base 1s, cap 60s, 3 attempts); quota-exhausted surfaces as
// embedding_unavailable; invalid input surfaces immediately.
type GeminiEmbedder struct {
	client    *llm.Client
	model     string
	dimension int
}

// NewGeminiEmbedder builds a GeminiEmbedder over an already-constructed client.
func NewGeminiEmbedder(client *llm.Client, model string, dimension int) *GeminiEmbedder {
	return &GeminiEmbedder{client: client, model: model, dimension: dimension}
}

func (g *GeminiEmbedder) Dimension() int    { return g.dimension }
func (g *GeminiEmbedder) ModelName() string { return g.model }

func (g *GeminiEmbedder) Embed(ctx context.Context, text string, taskType TaskType) ([]float32, error) {
	if text == "" {
		return nil, errs.New(errs.KindInput, "", "cannot embed empty text", nil)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxInterval = 60 * time.Second
	b := backoff.WithMaxRetries(policy, 2) // 3 total attempts

	var vec []float32
	err := backoff.Retry(func() error {
		var err error
		vec, err = g.client.EmbedText(ctx, text, wireTaskType(taskType))
		if err != nil {
			if isQuotaExhausted(err) {
				return backoff.Permanent(errs.New(errs.KindEmbeddingUnavailable, "", "embedding quota exhausted", err))
			}
			return fmt.Errorf("embed: %w", err)
		}
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return nil, err
	}
	return vec, nil
}

// isQuotaExhausted is a narrow heuristic over the provider's error text;
// the genai SDK does not currently expose a typed quota-exhausted error.
func isQuotaExhausted(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") || strings.Contains(msg, "resource_exhausted")
}

// wireTaskType maps the domain-level TaskType onto the wire-level enum
// value the embed_content API expects, defaulting unrecognised/zero values
// to document embedding.
func wireTaskType(t TaskType) string {
	if t == TaskTypeQuery {
		return llm.TaskTypeRetrievalQuery
	}
	return llm.TaskTypeRetrievalDocument
}
