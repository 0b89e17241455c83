package generation

import "context"

// FakeGenerator is a deterministic, network-free Generator for tests. By
// default it returns the fixed placeholder "generated answer", and it counts
// every call in Calls so tests can assert a generator call happened without
// depending on model output; callers can set Response or ResponseFunc for
// richer assertions.
type FakeGenerator struct {
	Response     string
	ResponseFunc func(prompt string) string
	Err          error
	Calls        int
}

func (f *FakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.Calls++
	if f.Err != nil {
		return "", f.Err
	}
	if f.ResponseFunc != nil {
		return f.ResponseFunc(prompt), nil
	}
	if f.Response != "" {
		return f.Response, nil
	}
	return "generated answer", nil
}
