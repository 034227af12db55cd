// Package index holds the precomputed embedding vector of every canonical skill
// and answers nearest-neighbour queries against it.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/jonathan/skillsense/internal/embedding"
	"github.com/jonathan/skillsense/internal/ontology"
	"github.com/jonathan/skillsense/internal/types"
	"golang.org/x/sync/errgroup"
)

// Default build tuning.
const (
	DefaultBatchSize   = 64
	DefaultConcurrency = 4
)

// Index is an immutable set of skill vectors produced by one embedding model.
// It is safe for concurrent use.
type Index struct {
	model   string
	dim     int
	version string
	builtAt time.Time
	ids     []string
	vectors map[string][]float32
	norms   map[string]float64
	skills  map[string]types.CanonicalSkill
}

// Scored is one nearest-neighbour result.
type Scored = types.ScoredSkill

// BuildOptions tunes Build.
type BuildOptions struct {
	BatchSize   int
	Concurrency int
	Logger      *slog.Logger
}

// Build embeds the display name of every skill in ont. The result depends only on
// the ontology and the embedding model, so building twice yields identical vectors.
func Build(ctx context.Context, ont *ontology.Ontology, e embedding.Embedder, opts BuildOptions) (*Index, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	skills := ont.Skills()
	texts := make([]string, len(skills))
	for i, s := range skills {
		texts[i] = s.DisplayName
	}

	vectors := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for start := 0; start < len(texts); start += opts.BatchSize {
		end := min(start+opts.BatchSize, len(texts))
		g.Go(func() error {
			batch, err := e.EmbedBatch(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("failed to embed skills %d-%d: %w", start, end-1, err)
			}
			if len(batch) != end-start {
				return fmt.Errorf("embedder returned %d vectors for %d skills", len(batch), end-start)
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := make([]Entry, len(skills))
	for i, s := range skills {
		entries[i] = Entry{SkillID: s.ID, Vector: vectors[i]}
	}

	idx, err := assemble(ont, e.Model(), e.Dimension(), time.Now().UTC(), entries)
	if err != nil {
		return nil, err
	}

	logger.Info("built embedding index",
		"model", idx.model,
		"dimension", idx.dim,
		"skills", len(idx.ids),
	)
	return idx, nil
}

// Entry is one skill vector as stored on disk or in the database.
type Entry struct {
	SkillID string    `json:"skill_id"`
	Vector  []float32 `json:"vector"`
}

// FromEntries rebuilds an index from stored vectors. Every ontology skill must have
// exactly one vector of the given dimension; entries for unknown skills are rejected.
func FromEntries(ont *ontology.Ontology, model string, dim int, builtAt time.Time, entries []Entry) (*Index, error) {
	return assemble(ont, model, dim, builtAt, entries)
}

func assemble(ont *ontology.Ontology, model string, dim int, builtAt time.Time, entries []Entry) (*Index, error) {
	idx := &Index{
		model:   model,
		dim:     dim,
		version: ont.Version(),
		builtAt: builtAt,
		vectors: make(map[string][]float32, len(entries)),
		norms:   make(map[string]float64, len(entries)),
		skills:  make(map[string]types.CanonicalSkill, len(entries)),
	}

	for _, entry := range entries {
		skill, ok := ont.Skill(entry.SkillID)
		if !ok {
			return nil, fmt.Errorf("index has vector for unknown skill %q", entry.SkillID)
		}
		if _, dup := idx.vectors[entry.SkillID]; dup {
			return nil, fmt.Errorf("index has duplicate vector for skill %q", entry.SkillID)
		}
		if dim > 0 && len(entry.Vector) != dim {
			return nil, fmt.Errorf("vector for skill %q has dimension %d, want %d", entry.SkillID, len(entry.Vector), dim)
		}
		v := append([]float32(nil), entry.Vector...)
		idx.vectors[entry.SkillID] = v
		idx.norms[entry.SkillID] = norm(v)
		idx.skills[entry.SkillID] = skill
		idx.ids = append(idx.ids, entry.SkillID)
	}

	for _, id := range ont.SkillIDs() {
		if _, ok := idx.vectors[id]; !ok {
			return nil, fmt.Errorf("index has no vector for skill %q", id)
		}
	}

	sort.Strings(idx.ids)
	return idx, nil
}

// Model returns the embedding model the vectors came from.
func (idx *Index) Model() string { return idx.model }

// Dimension returns the vector length.
func (idx *Index) Dimension() int { return idx.dim }

// OntologyVersion returns the version of the ontology the index was built from.
func (idx *Index) OntologyVersion() string { return idx.version }

// BuiltAt returns when the vectors were computed.
func (idx *Index) BuiltAt() time.Time { return idx.builtAt }

// Len returns the number of indexed skills.
func (idx *Index) Len() int { return len(idx.ids) }

// Skill returns the canonical skill with its embedding populated.
func (idx *Index) Skill(id string) (types.CanonicalSkill, bool) {
	s, ok := idx.skills[id]
	if !ok {
		return types.CanonicalSkill{}, false
	}
	s.Embedding = append([]float32(nil), idx.vectors[id]...)
	return s, true
}

// Entries returns every stored vector ordered by skill ID.
func (idx *Index) Entries() []Entry {
	out := make([]Entry, len(idx.ids))
	for i, id := range idx.ids {
		out[i] = Entry{SkillID: id, Vector: append([]float32(nil), idx.vectors[id]...)}
	}
	return out
}

// Nearest returns up to topK skills by descending cosine similarity to vec.
// Equal similarities are ordered by ascending skill ID. topK below one is treated as one.
func (idx *Index) Nearest(vec []float32, topK int) []Scored {
	if topK < 1 {
		topK = 1
	}

	qn := norm(vec)
	results := make([]Scored, 0, len(idx.ids))
	for _, id := range idx.ids {
		results = append(results, Scored{
			SkillID: id,
			Score:   cosine(vec, qn, idx.vectors[id], idx.norms[id]),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].SkillID < results[j].SkillID
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// Cosine returns dot(a,b)/(|a|*|b|), or 0 when either vector has zero norm
// or the lengths differ.
func Cosine(a, b []float32) float64 {
	return cosine(a, norm(a), b, norm(b))
}

func cosine(a []float32, na float64, b []float32, nb float64) float64 {
	if na == 0 || nb == 0 || len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	sim := dot / (na * nb)
	// rounding can push identical vectors just past 1
	return math.Max(-1, math.Min(1, sim))
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
