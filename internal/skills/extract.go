// Package skills extracts the set of canonical skills demonstrated by a free-text document.
package skills

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jonathan/skillsense/internal/embedding"
	"github.com/jonathan/skillsense/internal/index"
	"github.com/jonathan/skillsense/internal/matching"
	"github.com/jonathan/skillsense/internal/ontology"
	"github.com/jonathan/skillsense/internal/parsing"
	"github.com/jonathan/skillsense/internal/types"
	"golang.org/x/sync/errgroup"
)

// Options controls one extraction.
type Options struct {
	Mode types.Mode
	// Threshold is the Semantic similarity cutoff, in [0,1]. Fast mode ignores it:
	// a lexical match is accepted by the alias and token rules alone, so its score is
	// never compared with the threshold.
	Threshold float64
	// TopK is the number of neighbours considered per phrase in Semantic mode.
	TopK int
	// Workers bounds concurrent Match calls, or concurrent embedding batches in
	// Semantic mode. Values below one mean one.
	Workers int
	// MaxPhrases caps the phrases sent to the Semantic matcher. Zero means no cap.
	// Fast matching, including the degraded fallback, always sees every phrase.
	MaxPhrases int
}

// DefaultOptions returns Fast mode with the default Semantic settings.
func DefaultOptions() Options {
	return Options{
		Mode:      types.ModeFast,
		Threshold: matching.DefaultThreshold,
		TopK:      1,
		Workers:   1,
	}
}

// semanticBatchSize is the number of phrases embedded per EmbedBatch request.
const semanticBatchSize = 32

// Result is the outcome of one extraction.
type Result struct {
	Skills types.ProfileSkillSet `json:"skills"`
	// Matches holds the retained match for each skill, ordered by skill ID.
	Matches       []types.SkillMatch `json:"matches"`
	RequestedMode types.Mode         `json:"requested_mode"`
	EffectiveMode types.Mode         `json:"effective_mode"`
	// Degraded is set when Semantic mode was requested but the call ran in Fast mode.
	Degraded       bool   `json:"degraded"`
	DegradedReason string `json:"degraded_reason,omitempty"`
	// Phrases is the number of phrases the effective mode matched.
	Phrases int `json:"phrases"`
}

// Extractor runs the normalizer and a matcher over whole documents.
// It holds only read-only state and is safe for concurrent use.
type Extractor struct {
	normalizer  *parsing.Normalizer
	fast        *matching.Fast
	embedder    embedding.Embedder
	index       *index.Index
	unavailable error
	logger      *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithSemantic enables Semantic mode with the given embedder and index.
func WithSemantic(e embedding.Embedder, idx *index.Index) Option {
	return func(x *Extractor) {
		x.embedder = e
		x.index = idx
	}
}

// WithSemanticUnavailable records why Semantic mode cannot run. Semantic requests then
// complete in Fast mode and report the reason.
func WithSemanticUnavailable(err error) Option {
	return func(x *Extractor) { x.unavailable = err }
}

// WithLogger sets the logger for degraded-mode warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(x *Extractor) { x.logger = logger }
}

// NewExtractor creates an Extractor over ont.
func NewExtractor(ont *ontology.Ontology, opts ...Option) *Extractor {
	x := &Extractor{
		normalizer: ont.Normalizer(),
		fast:       matching.NewFast(ont),
	}
	for _, opt := range opts {
		opt(x)
	}
	if x.logger == nil {
		x.logger = slog.Default()
	}
	return x
}

// SemanticReady reports whether Semantic mode can be attempted.
func (x *Extractor) SemanticReady() bool {
	return x.embedder != nil && x.index != nil && x.unavailable == nil
}

// Extract returns the deduplicated skills found in text.
//
// The matching mode is fixed for the whole call. When Semantic mode is requested and the
// embedding backend is unavailable, every phrase is matched in Fast mode instead and the
// result is marked degraded. Only cancellation of ctx or invalid options produce an error;
// empty text yields an empty set.
func (x *Extractor) Extract(ctx context.Context, text string, opts Options) (*Result, error) {
	if opts.Mode == "" {
		opts.Mode = types.ModeFast
	}
	if opts.Threshold < 0 || opts.Threshold > 1 {
		return nil, fmt.Errorf("threshold %v outside [0,1]", opts.Threshold)
	}

	phrases := x.normalizer.Phrases(text)
	result := &Result{
		RequestedMode: opts.Mode,
		EffectiveMode: opts.Mode,
	}

	var (
		matches []types.SkillMatch
		err     error
	)
	switch opts.Mode {
	case types.ModeFast:
		matches, err = run(ctx, x.fast, phrases, opts.Workers)
		result.Phrases = len(phrases)
	case types.ModeSemantic:
		matches, err = x.semantic(ctx, phrases, opts, result)
	default:
		return nil, fmt.Errorf("unknown mode %q", opts.Mode)
	}
	if err != nil {
		return nil, err
	}

	result.Skills, result.Matches = aggregate(matches)
	return result, nil
}

func (x *Extractor) semantic(ctx context.Context, phrases []types.CandidatePhrase, opts Options, result *Result) ([]types.SkillMatch, error) {
	cause := x.unavailable
	if cause == nil && (x.embedder == nil || x.index == nil) {
		cause = errors.New("no embedding index configured")
	}

	if cause == nil {
		m, err := matching.NewSemantic(x.embedder, x.index, opts.Threshold, opts.TopK)
		if err != nil {
			var mismatch *index.MismatchError
			if !errors.As(err, &mismatch) {
				return nil, err
			}
			cause = err
		} else {
			capped := phrases
			if opts.MaxPhrases > 0 && len(capped) > opts.MaxPhrases {
				capped = capped[:opts.MaxPhrases]
			}
			matches, err := runBatched(ctx, m, capped, opts.Workers)
			if err == nil {
				result.Phrases = len(capped)
				return matches, nil
			}
			if !errors.Is(err, embedding.ErrUnavailable) || ctx.Err() != nil {
				return nil, err
			}
			cause = err
		}
	}

	x.logger.Warn("semantic matching unavailable, falling back to fast mode",
		"requested_mode", types.ModeSemantic,
		"phrases", len(phrases),
		"error", cause,
	)
	result.Degraded = true
	result.DegradedReason = cause.Error()
	result.EffectiveMode = types.ModeFast
	result.Phrases = len(phrases)
	return run(ctx, x.fast, phrases, opts.Workers)
}

// run matches every phrase, keeping results in phrase order.
// The first error cancels the remaining calls.
func run(ctx context.Context, m matching.Matcher, phrases []types.CandidatePhrase, workers int) ([]types.SkillMatch, error) {
	out := make([]types.SkillMatch, len(phrases))
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range phrases {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			match, err := m.Match(gctx, p)
			if err != nil {
				return err
			}
			out[i] = match
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// runBatched embeds phrases in fixed-size batches, at most workers batches at a time,
// keeping results in phrase order. The first error cancels the remaining batches.
func runBatched(ctx context.Context, m *matching.Semantic, phrases []types.CandidatePhrase, workers int) ([]types.SkillMatch, error) {
	out := make([]types.SkillMatch, len(phrases))
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < len(phrases); start += semanticBatchSize {
		end := min(start+semanticBatchSize, len(phrases))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			batch, err := m.MatchBatch(gctx, phrases[start:end])
			if err != nil {
				return err
			}
			copy(out[start:end], batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// aggregate drops unmatched phrases and keeps the highest-scoring match per skill.
// On equal scores the earliest phrase is kept.
func aggregate(matches []types.SkillMatch) (types.ProfileSkillSet, []types.SkillMatch) {
	best := make(map[string]types.SkillMatch)
	for _, m := range matches {
		if !m.Matched() {
			continue
		}
		id := m.SkillID()
		if existing, ok := best[id]; !ok || m.Score > existing.Score {
			best[id] = m
		}
	}

	set := make(types.ProfileSkillSet, len(best))
	kept := make([]types.SkillMatch, 0, len(best))
	for id, m := range best {
		set[id] = struct{}{}
		kept = append(kept, m)
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].SkillID() < kept[j].SkillID() })
	return set, kept
}
