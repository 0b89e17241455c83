package generation

import (
	"context"
	"fmt"
	"time"

	"incidentrag/internal/errs"
	"incidentrag/internal/llm"

	"github.com/cenkalti/backoff/v4"
)

// GeminiGenerator adapts an llm.Client to the Generator interface, retrying
// transient failures with the same backoff policy as the embedding provider.
type GeminiGenerator struct {
	client      *llm.Client
	temperature float32
	maxTokens   int32
}

// NewGeminiGenerator builds a GeminiGenerator over an already-constructed client.
func NewGeminiGenerator(client *llm.Client, temperature float32, maxTokens int32) *GeminiGenerator {
	return &GeminiGenerator{client: client, temperature: temperature, maxTokens: maxTokens}
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", errs.New(errs.KindInput, "", "cannot generate from an empty prompt", nil)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxInterval = 60 * time.Second
	b := backoff.WithMaxRetries(policy, 2)

	var out string
	err := backoff.Retry(func() error {
		var err error
		out, err = g.client.GenerateText(ctx, prompt, g.temperature, g.maxTokens)
		if err != nil {
			return fmt.Errorf("generate: %w", err)
		}
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return "", err
	}
	return out, nil
}
