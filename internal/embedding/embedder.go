// Package embedding defines the boundary to the frozen sentence-embedding model.
// Matching code depends only on Embedder, so an in-process model and a remote
// inference API are interchangeable.
package embedding

import (
	"context"
	"errors"
	"fmt"
)

// Embedder turns text into fixed-dimension vectors. Implementations must be deterministic
// for a given model version and safe for concurrent use.
type Embedder interface {
	// Embed returns the vector for one text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one vector per text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension returns the length of every vector.
	Dimension() int
	// Model identifies the model and version; vectors from different models are not comparable.
	Model() string
	// Close releases any resources held by the embedder
	Close() error
}

// ErrUnavailable marks failures of the embedding backend (unreachable, timed out, not configured).
// Callers recover from it by falling back to lexical matching.
var ErrUnavailable = errors.New("embedding backend unavailable")

// UnavailableError wraps a provider failure. errors.Is(err, ErrUnavailable) holds for it.
// Permanent failures (a backend that was never constructed) are not retried.
type UnavailableError struct {
	Provider  string
	Cause     error
	Permanent bool
}

func (e *UnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("embedding backend %s unavailable: %v", e.Provider, e.Cause)
	}
	return fmt.Sprintf("embedding backend %s unavailable", e.Provider)
}

func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, ErrUnavailable) succeed.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

// unavailable wraps err unless it already is an UnavailableError.
func unavailable(provider string, err error) error {
	var ue *UnavailableError
	if errors.As(err, &ue) {
		return err
	}
	return &UnavailableError{Provider: provider, Cause: err}
}

// Unreachable is an Embedder whose every call fails with ErrUnavailable.
// It stands in for a backend that could not be constructed.
type Unreachable struct {
	Provider string
	Cause    error
	Dim      int
}

// NewUnreachable returns an Embedder that always reports the given cause.
func NewUnreachable(provider string, cause error) *Unreachable {
	return &Unreachable{Provider: provider, Cause: cause}
}

// Embed always fails.
func (u *Unreachable) Embed(context.Context, string) ([]float32, error) {
	return nil, &UnavailableError{Provider: u.Provider, Cause: u.Cause, Permanent: true}
}

// EmbedBatch always fails.
func (u *Unreachable) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, &UnavailableError{Provider: u.Provider, Cause: u.Cause, Permanent: true}
}

// Dimension returns the configured dimension, usually zero.
func (u *Unreachable) Dimension() int { return u.Dim }

// Model returns the provider name.
func (u *Unreachable) Model() string { return u.Provider + "/unavailable" }

// Close is a no-op.
func (u *Unreachable) Close() error { return nil }
