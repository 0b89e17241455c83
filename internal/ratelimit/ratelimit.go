// Package ratelimit guards outbound calls to the embedding and generative
// providers with a token bucket, so a burst of queries degrades to
// rate-limited rejections instead of overwhelming the upstream API.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"incidentrag/internal/embedding"
	"incidentrag/internal/errs"
	"incidentrag/internal/generation"

	"golang.org/x/time/rate"
)

// maxWait bounds how long a caller waits for a token before the limiter
// fails fast with KindRateLimited, rather than queuing indefinitely.
const maxWait = 2 * time.Second

// Limiter wraps a token bucket sized by requests-per-second and burst.
type Limiter struct {
	bucket *rate.Limiter
}

// New builds a Limiter. rps is the sustained rate; burst is the bucket depth.
func New(rps float64, burst int) *Limiter {
	return &Limiter{bucket: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Acquire waits for a token when one becomes available within maxWait. When
// the next token is further away than that, it fails at once with
// KindRateLimited rather than growing an unbounded backlog.
func (l *Limiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	if err := l.bucket.Wait(waitCtx); err != nil {
		return errs.New(errs.KindRateLimited, "", "rate limit backlog exhausted", err)
	}
	return nil
}

// LimitedEmbedder wraps an Embedder with rate limiting.
type LimitedEmbedder struct {
	Inner   embedding.Embedder
	Limiter *Limiter
}

func (e *LimitedEmbedder) Dimension() int    { return e.Inner.Dimension() }
func (e *LimitedEmbedder) ModelName() string { return e.Inner.ModelName() }

func (e *LimitedEmbedder) Embed(ctx context.Context, text string, taskType embedding.TaskType) ([]float32, error) {
	if err := e.Limiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("embedding request rejected: %w", err)
	}
	return e.Inner.Embed(ctx, text, taskType)
}

// LimitedGenerator wraps a Generator with rate limiting.
type LimitedGenerator struct {
	Inner   generation.Generator
	Limiter *Limiter
}

func (g *LimitedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := g.Limiter.Acquire(ctx); err != nil {
		return "", fmt.Errorf("generation request rejected: %w", err)
	}
	return g.Inner.Generate(ctx, prompt)
}

var (
	_ embedding.Embedder    = (*LimitedEmbedder)(nil)
	_ generation.Generator  = (*LimitedGenerator)(nil)
)
