// Package pipeline composes extraction and gap analysis into single analysis calls.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/skillsense/internal/embedding"
	"github.com/jonathan/skillsense/internal/gap"
	"github.com/jonathan/skillsense/internal/index"
	"github.com/jonathan/skillsense/internal/ontology"
	"github.com/jonathan/skillsense/internal/skills"
	"github.com/jonathan/skillsense/internal/types"
)

// ErrUnknownRole is returned when the requested role is not in the ontology.
var ErrUnknownRole = errors.New("unknown role")

// Step names reported to progress callbacks.
const (
	StepExtract = "extract"
	StepAnalyze = "analyze"
)

// ProgressEvent represents a progress update during an analysis
type ProgressEvent struct {
	Step    string `json:"step"`
	Message string `json:"message"`
	RunID   string `json:"run_id,omitempty"`
	Content any    `json:"content,omitempty"`
}

// ProgressCallback is called when analysis progress occurs
type ProgressCallback func(event ProgressEvent)

// IndexLoader provides the embedder and matching index for Semantic mode.
// It is called again only after a cancelled call or a transient backend failure.
type IndexLoader func(ctx context.Context) (embedding.Embedder, *index.Index, error)

// Options configures an Engine.
type Options struct {
	Ontology    *ontology.Ontology
	Defaults    skills.Options
	IndexLoader IndexLoader
	Logger      *slog.Logger

	// RetryInterval is how long Semantic requests stay degraded after a transient
	// backend failure before preparation is tried again. Default 30s.
	RetryInterval time.Duration
}

const defaultRetryInterval = 30 * time.Second

// Engine runs analyses against one ontology. It is safe for concurrent use;
// every call owns its results and nothing about user text is retained.
type Engine struct {
	ont      *ontology.Ontology
	defaults skills.Options
	logger   *slog.Logger
	fast     *skills.Extractor

	loadIndex   IndexLoader
	mu          sync.Mutex
	semantic    *skills.Extractor
	semanticErr error
	embedder    embedding.Embedder

	// Set after a transient failure; preparation is retried once now() passes retryAt.
	now           func() time.Time
	retryInterval time.Duration
	retryAt       time.Time
	lastErr       error
}

// NewEngine creates an Engine. Semantic mode is prepared lazily on first use.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Ontology == nil {
		return nil, fmt.Errorf("ontology is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	defaults := opts.Defaults
	if defaults.Mode == "" {
		defaults.Mode = types.ModeFast
	}
	if defaults.TopK < 1 {
		defaults.TopK = 1
	}
	if defaults.Workers < 1 {
		defaults.Workers = 1
	}
	retryInterval := opts.RetryInterval
	if retryInterval <= 0 {
		retryInterval = defaultRetryInterval
	}

	return &Engine{
		ont:       opts.Ontology,
		defaults:  defaults,
		logger:    logger,
		fast:      skills.NewExtractor(opts.Ontology, skills.WithLogger(logger)),
		loadIndex: opts.IndexLoader,

		now:           time.Now,
		retryInterval: retryInterval,
	}, nil
}

// Ontology returns the loaded ontology.
func (e *Engine) Ontology() *ontology.Ontology { return e.ont }

// Defaults returns the configured extraction options. Callers adjust a copy per request.
func (e *Engine) Defaults() skills.Options { return e.defaults }

// Roles returns every role ordered by ID.
func (e *Engine) Roles() []types.Role { return e.ont.Roles() }

// Warm prepares Semantic mode ahead of the first request.
// The returned error explains why Semantic requests would degrade; the engine stays usable.
func (e *Engine) Warm(ctx context.Context) error {
	_, err := e.extractor(ctx, types.ModeSemantic)
	return err
}

// Close releases the embedding backend, if one was opened.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.embedder != nil {
		return e.embedder.Close()
	}
	return nil
}

// Request is one analysis call. A zero Options uses the engine defaults;
// otherwise start from Engine.Defaults and override fields.
type Request struct {
	Text       string
	RoleID     string
	Options    skills.Options
	OnProgress ProgressCallback
}

// Analysis is the outcome of one call. Report is nil for extraction-only calls.
type Analysis struct {
	RunID      uuid.UUID        `json:"run_id"`
	Extraction *skills.Result   `json:"extraction"`
	Report     *types.GapReport `json:"report,omitempty"`
	Duration   time.Duration    `json:"duration_ns"`
}

// Extract runs skill extraction only.
func (e *Engine) Extract(ctx context.Context, req Request) (*Analysis, error) {
	start := time.Now()
	runID := uuid.New()

	result, err := e.extract(ctx, runID, req)
	if err != nil {
		return nil, err
	}

	a := &Analysis{RunID: runID, Extraction: result, Duration: time.Since(start)}
	e.logger.Info("extraction complete",
		"run_id", runID,
		"mode", result.EffectiveMode,
		"degraded", result.Degraded,
		"phrases", result.Phrases,
		"skills", len(result.Skills),
		"duration", a.Duration,
	)
	return a, nil
}

// Analyze extracts the skills in req.Text and compares them with the role req.RoleID.
func (e *Engine) Analyze(ctx context.Context, req Request) (*Analysis, error) {
	start := time.Now()
	runID := uuid.New()

	role, ok := e.ont.Role(req.RoleID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, req.RoleID)
	}

	result, err := e.extract(ctx, runID, req)
	if err != nil {
		return nil, err
	}

	report, err := gap.Analyze(result.Skills, role, e.ont)
	if err != nil {
		return nil, fmt.Errorf("gap analysis failed: %w", err)
	}
	emitProgress(req.OnProgress, runID, StepAnalyze,
		fmt.Sprintf("Matched %d of %d required skills for %s", len(report.Matched), len(role.RequiredSkills), role.ID), &report)

	a := &Analysis{RunID: runID, Extraction: result, Report: &report, Duration: time.Since(start)}
	e.logger.Info("analysis complete",
		"run_id", runID,
		"role", role.ID,
		"mode", result.EffectiveMode,
		"degraded", result.Degraded,
		"skills", len(result.Skills),
		"coverage", report.CoverageRatio,
		"duration", a.Duration,
	)
	return a, nil
}

func (e *Engine) extract(ctx context.Context, runID uuid.UUID, req Request) (*skills.Result, error) {
	opts := req.Options
	if opts.Mode == "" {
		opts = e.defaults
	}

	x, _ := e.extractor(ctx, opts.Mode)
	result, err := x.Extract(ctx, req.Text, opts)
	if err != nil {
		return nil, fmt.Errorf("skill extraction failed: %w", err)
	}

	msg := fmt.Sprintf("Extracted %d skills from %d phrases (%s mode)", len(result.Skills), result.Phrases, result.EffectiveMode)
	if result.Degraded {
		msg += ", degraded from semantic"
	}
	emitProgress(req.OnProgress, runID, StepExtract, msg, result)
	return result, nil
}

// extractor returns the Extractor for mode, preparing Semantic mode on first use.
// The error reports why Semantic mode is unavailable; the returned Extractor then degrades.
// Permanent failures are remembered for the life of the Engine. Transient backend
// failures degrade requests until the retry interval passes, and cancelled
// preparations are retried by the next call.
func (e *Engine) extractor(ctx context.Context, mode types.Mode) (*skills.Extractor, error) {
	if mode != types.ModeSemantic {
		return e.fast, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.semantic != nil {
		return e.semantic, e.semanticErr
	}
	if e.lastErr != nil && e.now().Before(e.retryAt) {
		return e.unavailable(e.lastErr), e.lastErr
	}

	if e.loadIndex == nil {
		e.semanticErr = errors.New("semantic matching is not configured")
		e.semantic = e.unavailable(e.semanticErr)
		return e.semantic, e.semanticErr
	}

	emb, idx, err := e.loadIndex(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return e.unavailable(err), err
		}
		if transient(err) {
			e.retryAt = e.now().Add(e.retryInterval)
			e.lastErr = err
			e.logger.Warn("semantic matching unavailable, will retry", "error", err, "retry_at", e.retryAt)
			return e.unavailable(err), err
		}
		e.logger.Warn("semantic matching unavailable", "error", err)
		e.semanticErr = err
		e.semantic = e.unavailable(err)
		return e.semantic, err
	}

	e.logger.Info("semantic matching ready", "model", idx.Model(), "skills", idx.Len())
	e.lastErr = nil
	e.embedder = emb
	e.semantic = skills.NewExtractor(e.ont, skills.WithSemantic(emb, idx), skills.WithLogger(e.logger))
	return e.semantic, nil
}

func (e *Engine) unavailable(cause error) *skills.Extractor {
	return skills.NewExtractor(e.ont, skills.WithSemanticUnavailable(cause), skills.WithLogger(e.logger))
}

// transient reports whether a preparation failure came from a backend that may recover.
// Missing credentials, stale indexes and configuration errors are permanent.
func transient(err error) bool {
	var ue *embedding.UnavailableError
	return errors.As(err, &ue) && !ue.Permanent
}

// emitProgress calls the progress callback if configured
func emitProgress(cb ProgressCallback, runID uuid.UUID, step, message string, content any) {
	if cb != nil {
		cb(ProgressEvent{
			Step:    step,
			Message: message,
			RunID:   runID.String(),
			Content: content,
		})
	}
}
