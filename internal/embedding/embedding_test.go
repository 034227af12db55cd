package embedding

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// flaky fails the first n calls with a transient error.
type flaky struct {
	Local
	failures int32
	calls    atomic.Int32
}

func (f *flaky) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.calls.Add(1) <= f.failures {
		return nil, errors.New("connection reset")
	}
	return f.Local.Embed(ctx, text)
}

// slow blocks until the context is done.
type slow struct{ Local }

func (s *slow) Embed(ctx context.Context, _ string) ([]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestLocal_Deterministic(t *testing.T) {
	e := NewLocal(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, "Machine Learning")
	require.NoError(t, err)
	b, err := NewLocal(64).Embed(ctx, "machine learning")
	require.NoError(t, err)

	assert.Equal(t, a, b, "same text and model must give identical vectors")
	assert.Len(t, a, 64)
	assert.InDelta(t, 1.0, norm(a), 1e-5)
	assert.Equal(t, "local-hash-v1/64", e.Model())
}

func TestLocal_SimilarTextsScoreHigher(t *testing.T) {
	e := NewLocal(0)
	ctx := context.Background()
	assert.Equal(t, DefaultLocalDimension, e.Dimension())

	base, _ := e.Embed(ctx, "python")
	near, _ := e.Embed(ctx, "python programming")
	far, _ := e.Embed(ctx, "payroll")

	assert.Greater(t, dot(base, near), dot(base, far))
}

func TestLocal_EmptyTextIsZeroVector(t *testing.T) {
	v, err := NewLocal(32).Embed(context.Background(), "  !! ")
	require.NoError(t, err)
	assert.Zero(t, norm(v))
}

func TestLocal_BatchMatchesSingle(t *testing.T) {
	e := NewLocal(32)
	ctx := context.Background()

	batch, err := e.EmbedBatch(ctx, []string{"go", "sql"})
	require.NoError(t, err)
	single, _ := e.Embed(ctx, "sql")
	assert.Equal(t, single, batch[1])
}

func TestLocal_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLocal(8).Embed(ctx, "go")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUnreachable(t *testing.T) {
	u := NewUnreachable("gemini", errors.New("API key is required"))

	_, err := u.Embed(context.Background(), "python")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "API key is required")

	_, err = u.EmbedBatch(context.Background(), []string{"python"})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, "gemini/unavailable", u.Model())
}

func TestTimeout_DeadlineBecomesUnavailable(t *testing.T) {
	e := WithTimeout(&slow{Local: *NewLocal(8)}, 10*time.Millisecond, "test")

	_, err := e.Embed(context.Background(), "python")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTimeout_CallerCancellationIsNotUnavailable(t *testing.T) {
	e := WithTimeout(&slow{Local: *NewLocal(8)}, time.Minute, "test")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Embed(ctx, "python")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestTimeout_PassesThroughSuccess(t *testing.T) {
	e := WithTimeout(NewLocal(8), time.Second, "local")

	v, err := e.Embed(context.Background(), "python")
	require.NoError(t, err)
	assert.Len(t, v, 8)
	assert.Equal(t, 8, e.Dimension())
	assert.Equal(t, "local-hash-v1/8", e.Model())
}

func TestRetry_RecoversFromTransientFailure(t *testing.T) {
	inner := &flaky{Local: *NewLocal(8), failures: 2}
	e := WithRetry(inner, 2, time.Millisecond, quietLogger())

	v, err := e.Embed(context.Background(), "python")
	require.NoError(t, err)
	assert.Len(t, v, 8)
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestRetry_GivesUp(t *testing.T) {
	inner := &flaky{Local: *NewLocal(8), failures: 10}
	e := WithRetry(inner, 1, time.Millisecond, quietLogger())

	_, err := e.Embed(context.Background(), "python")
	require.Error(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestRetry_DoesNotRetryPermanentFailure(t *testing.T) {
	e := WithRetry(NewUnreachable("openai", errors.New("no key")), 3, time.Millisecond, quietLogger())

	_, err := e.Embed(context.Background(), "python")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	e, err := New(ctx, Config{Provider: ProviderLocal, Dimension: 16, Timeout: time.Second, Retries: 1}, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, 16, e.Dimension())

	_, err = New(ctx, Config{Provider: ProviderGemini}, quietLogger())
	assert.ErrorContains(t, err, "API key is required")

	_, err = New(ctx, Config{Provider: ProviderOpenAI}, quietLogger())
	assert.ErrorContains(t, err, "API key is required")

	_, err = New(ctx, Config{Provider: "onnx"}, quietLogger())
	assert.ErrorContains(t, err, "unknown embedding provider")
}

func TestNewOpenAI_Defaults(t *testing.T) {
	e, err := NewOpenAI("sk-test", "", 0)
	require.NoError(t, err)
	assert.Equal(t, "openai/text-embedding-3-small", e.Model())
	assert.Equal(t, DefaultOpenAIDimension, e.Dimension())
	assert.NoError(t, e.Close())
}
