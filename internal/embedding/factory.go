package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Provider names accepted by New.
const (
	ProviderLocal  = "local"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config selects and tunes an embedding backend.
type Config struct {
	Provider   string
	Model      string
	APIKey     string
	Dimension  int
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration
}

// New builds the configured embedder wrapped with per-call timeout and retry.
// Construction failures are returned; callers that want degraded operation can
// substitute NewUnreachable.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Embedder, error) {
	var (
		base Embedder
		err  error
	)

	switch cfg.Provider {
	case ProviderLocal, "":
		base = NewLocal(cfg.Dimension)
	case ProviderGemini:
		base, err = NewGemini(ctx, cfg.APIKey, cfg.Model, cfg.Dimension)
	case ProviderOpenAI:
		base, err = NewOpenAI(cfg.APIKey, cfg.Model, cfg.Dimension)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s embedder: %w", cfg.Provider, err)
	}

	provider := cfg.Provider
	if provider == "" {
		provider = ProviderLocal
	}

	var e Embedder = WithTimeout(base, cfg.Timeout, provider)
	if cfg.Retries > 0 {
		delay := cfg.RetryDelay
		if delay <= 0 {
			delay = 200 * time.Millisecond
		}
		e = WithRetry(e, cfg.Retries, delay, logger)
	}
	return e, nil
}
