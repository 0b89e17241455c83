// Package generation defines the Generator capability interface (C3): text
// production conditioned on a prompt, deterministic at low temperature.
package generation

import "context"

// Generator produces text conditioned on a fully-rendered prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
