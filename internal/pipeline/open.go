package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonathan/skillsense/internal/config"
	"github.com/jonathan/skillsense/internal/db"
	"github.com/jonathan/skillsense/internal/embedding"
	"github.com/jonathan/skillsense/internal/index"
	"github.com/jonathan/skillsense/internal/ontology"
	"github.com/jonathan/skillsense/internal/parsing"
	"github.com/jonathan/skillsense/internal/skills"
	"github.com/jonathan/skillsense/internal/types"
)

// LoadOntology loads the configured ontology file, or the bundled catalog when none is set,
// with a normalizer built from the phrase settings in cfg.
func LoadOntology(cfg config.Config) (*ontology.Ontology, error) {
	n := parsing.NewNormalizer(parsing.Options{MinTokens: cfg.MinTokens, MaxNgram: cfg.MaxNgram})
	if cfg.Ontology != "" {
		return ontology.LoadFile(cfg.Ontology, ontology.WithNormalizer(n))
	}
	return ontology.LoadDefault(ontology.WithNormalizer(n))
}

// NewEmbedder creates the configured embedding backend with timeout and retry.
func NewEmbedder(ctx context.Context, cfg config.Config, logger *slog.Logger) (embedding.Embedder, error) {
	return embedding.New(ctx, embedding.Config{
		Provider:  cfg.Provider,
		Model:     cfg.Model,
		APIKey:    cfg.APIKey,
		Dimension: cfg.Dimension,
		Timeout:   cfg.Timeout(),
		Retries:   cfg.EmbedRetries,
	}, logger)
}

// ConfiguredIndexLoader returns an IndexLoader that reads the index from cfg.Index or
// cfg.DatabaseURL, and otherwise builds it from the ontology.
// A backend that cannot be constructed is reported as embedding.ErrUnavailable.
func ConfiguredIndexLoader(cfg config.Config, ont *ontology.Ontology, logger *slog.Logger) IndexLoader {
	return func(ctx context.Context) (embedding.Embedder, *index.Index, error) {
		emb, err := NewEmbedder(ctx, cfg, logger)
		if err != nil {
			return nil, nil, &embedding.UnavailableError{Provider: cfg.Provider, Cause: err, Permanent: true}
		}

		idx, err := loadIndex(ctx, cfg, ont, emb, logger)
		if err != nil {
			_ = emb.Close()
			return nil, nil, err
		}
		return emb, idx, nil
	}
}

func loadIndex(ctx context.Context, cfg config.Config, ont *ontology.Ontology, emb embedding.Embedder, logger *slog.Logger) (*index.Index, error) {
	switch {
	case cfg.Index != "":
		return index.LoadFile(cfg.Index, ont, emb.Model(), emb.Dimension())
	case cfg.DatabaseURL != "":
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		defer database.Close()
		return database.LoadIndex(ctx, ont, emb.Model(), emb.Dimension())
	default:
		return index.Build(ctx, ont, emb, index.BuildOptions{Logger: logger})
	}
}

// Open builds an Engine from a merged and validated configuration.
func Open(cfg config.Config, logger *slog.Logger) (*Engine, error) {
	ont, err := LoadOntology(cfg)
	if err != nil {
		return nil, err
	}

	mode, err := types.ParseMode(cfg.Mode)
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	return NewEngine(Options{
		Ontology: ont,
		Defaults: skills.Options{
			Mode:       mode,
			Threshold:  cfg.Threshold,
			TopK:       cfg.TopK,
			Workers:    cfg.Workers,
			MaxPhrases: cfg.MaxPhrases,
		},
		IndexLoader: ConfiguredIndexLoader(cfg, ont, logger),
		Logger:      logger,
	})
}
