// Package errs defines the stable error taxonomy shared across the
// retrieval pipeline: every error surfaced past a component boundary
// carries a Kind and a correlation id.
package errs

import (
	"errors"
	"fmt"
)

// Kind is a stable, loggable error classification.
type Kind string

const (
	KindInput            Kind = "input"
	KindSchema           Kind = "schema"
	KindTransientRemote   Kind = "transient_remote"
	KindPartialSubsystem  Kind = "partial_subsystem"
	KindTotalSubsystem    Kind = "total_subsystem"
	KindInternal          Kind = "internal"

	// KindEmbeddingUnavailable is the caller-facing surface for a
	// quota-exhausted embedding provider.
	KindEmbeddingUnavailable Kind = "embedding_unavailable"
	// KindRateLimited is surfaced when a token bucket rejects a call
	// after its backlog is exhausted.
	KindRateLimited Kind = "rate_limited"
)

// Error is the taxonomy's concrete error type.
type Error struct {
	Kind          Kind
	Message       string
	CorrelationID string
	Err           error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a taxonomy error.
func New(kind Kind, correlationID, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, CorrelationID: correlationID, Err: cause}
}

// KindOf returns the Kind of err if it (or something it wraps) is a
// taxonomy Error, and ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind, true
	}
	return "", false
}

// Is reports whether err's taxonomy Kind equals kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
