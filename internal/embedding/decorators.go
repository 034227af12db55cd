package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Timeout bounds every call to the wrapped Embedder and reports any failure,
// including the deadline, as ErrUnavailable.
type Timeout struct {
	inner    Embedder
	timeout  time.Duration
	provider string
}

// WithTimeout wraps e with a per-call timeout. A non-positive timeout only converts errors.
func WithTimeout(e Embedder, timeout time.Duration, provider string) *Timeout {
	return &Timeout{inner: e, timeout: timeout, provider: provider}
}

// Embed calls the wrapped embedder under the timeout.
func (t *Timeout) Embed(ctx context.Context, text string) ([]float32, error) {
	callCtx, cancel := t.bound(ctx)
	defer cancel()

	v, err := t.inner.Embed(callCtx, text)
	if err != nil {
		return nil, t.wrap(ctx, err)
	}
	return v, nil
}

// EmbedBatch calls the wrapped embedder under the timeout.
func (t *Timeout) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	callCtx, cancel := t.bound(ctx)
	defer cancel()

	v, err := t.inner.EmbedBatch(callCtx, texts)
	if err != nil {
		return nil, t.wrap(ctx, err)
	}
	return v, nil
}

func (t *Timeout) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.timeout)
}

// wrap leaves failures of the caller's own context untouched so they still abort the analysis.
func (t *Timeout) wrap(parent context.Context, err error) error {
	if parent.Err() != nil {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return unavailable(t.provider, fmt.Errorf("timed out after %s: %w", t.timeout, err))
	}
	return unavailable(t.provider, err)
}

// Dimension delegates to the wrapped embedder.
func (t *Timeout) Dimension() int { return t.inner.Dimension() }

// Model delegates to the wrapped embedder.
func (t *Timeout) Model() string { return t.inner.Model() }

// Close delegates to the wrapped embedder.
func (t *Timeout) Close() error { return t.inner.Close() }

// Retry retries transient failures with exponential backoff and jitter before
// delegating to the wrapped Embedder.
type Retry struct {
	inner      Embedder
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
}

// WithRetry wraps e with retry logic.
// maxRetries is the number of additional attempts after the first failure.
// baseDelay is the delay before the first retry, doubled on each subsequent retry.
func WithRetry(e Embedder, maxRetries int, baseDelay time.Duration, logger *slog.Logger) *Retry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retry{inner: e, maxRetries: maxRetries, baseDelay: baseDelay, logger: logger}
}

// Embed attempts to embed text, retrying on transient errors.
func (r *Retry) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := r.do(ctx, func() error {
		v, err := r.inner.Embed(ctx, text)
		out = v
		return err
	})
	return out, err
}

// EmbedBatch attempts to embed texts, retrying on transient errors.
func (r *Retry) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := r.do(ctx, func() error {
		v, err := r.inner.EmbedBatch(ctx, texts)
		out = v
		return err
	})
	return out, err
}

func (r *Retry) do(ctx context.Context, call func() error) error {
	err := call()
	if err == nil || !isRetryable(err) {
		return err
	}

	lastErr := err
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		delay := r.backoffDelay(attempt)

		r.logger.Warn("retrying embedding after transient error",
			"attempt", attempt,
			"max_retries", r.maxRetries,
			"delay", delay,
			"model", r.inner.Model(),
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}

		err = call()
		if err == nil || !isRetryable(err) {
			return err
		}
		lastErr = err
	}

	return lastErr
}

// backoffDelay computes the delay for a given attempt with ±30% jitter.
func (r *Retry) backoffDelay(attempt int) time.Duration {
	delay := r.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	jitter := float64(delay) * 0.3
	return time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
}

// isRetryable returns true for failures worth another attempt. Caller cancellation is final.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var ue *UnavailableError
	if errors.As(err, &ue) {
		return !ue.Permanent
	}
	return true
}

// Dimension delegates to the wrapped embedder.
func (r *Retry) Dimension() int { return r.inner.Dimension() }

// Model delegates to the wrapped embedder.
func (r *Retry) Model() string { return r.inner.Model() }

// Close delegates to the wrapped embedder.
func (r *Retry) Close() error { return r.inner.Close() }
