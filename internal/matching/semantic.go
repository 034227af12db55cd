package matching

import (
	"context"
	"fmt"

	"github.com/jonathan/skillsense/internal/embedding"
	"github.com/jonathan/skillsense/internal/index"
	"github.com/jonathan/skillsense/internal/types"
)

// Semantic matches a phrase to the skill whose embedding is most similar to it.
type Semantic struct {
	embedder  embedding.Embedder
	index     *index.Index
	threshold float64
	topK      int
}

// NewSemantic creates a Semantic matcher. The embedder must be the model the index was built with.
// topK above one keeps the runner-up neighbours as alternatives.
func NewSemantic(e embedding.Embedder, idx *index.Index, threshold float64, topK int) (*Semantic, error) {
	if idx == nil {
		return nil, fmt.Errorf("semantic matching requires an embedding index")
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold %v outside [0,1]", threshold)
	}
	if e.Model() != idx.Model() {
		return nil, &index.MismatchError{Field: "model", Got: idx.Model(), Want: e.Model()}
	}
	if topK < 1 {
		topK = 1
	}
	return &Semantic{embedder: e, index: idx, threshold: threshold, topK: topK}, nil
}

// Mode returns types.ModeSemantic.
func (s *Semantic) Mode() types.Mode { return types.ModeSemantic }

// Threshold returns the similarity cutoff.
func (s *Semantic) Threshold() float64 { return s.threshold }

// Match embeds the phrase and accepts the nearest skill if its similarity reaches the threshold.
// A similarity of zero or less never matches, even with a zero threshold.
// Embedding failures are returned unchanged so the caller can fall back to Fast matching.
func (s *Semantic) Match(ctx context.Context, phrase types.CandidatePhrase) (types.SkillMatch, error) {
	v, err := s.embedder.Embed(ctx, phrase.Text)
	if err != nil {
		return types.SkillMatch{}, err
	}
	return s.nearest(phrase, v), nil
}

// MatchBatch matches phrases with a single EmbedBatch request. Results are in phrase order
// and follow the same rules as Match.
func (s *Semantic) MatchBatch(ctx context.Context, phrases []types.CandidatePhrase) ([]types.SkillMatch, error) {
	if len(phrases) == 0 {
		return nil, nil
	}
	texts := make([]string, len(phrases))
	for i, p := range phrases {
		texts[i] = p.Text
	}
	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(phrases) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d phrases", len(vecs), len(phrases))
	}

	out := make([]types.SkillMatch, len(phrases))
	for i, p := range phrases {
		out[i] = s.nearest(p, vecs[i])
	}
	return out, nil
}

func (s *Semantic) nearest(phrase types.CandidatePhrase, v []float32) types.SkillMatch {
	hits := s.index.Nearest(v, s.topK)
	if len(hits) == 0 || hits[0].Score <= 0 || hits[0].Score < s.threshold {
		return noMatch(phrase, types.ModeSemantic)
	}

	skill, ok := s.index.Skill(hits[0].SkillID)
	if !ok {
		return noMatch(phrase, types.ModeSemantic)
	}

	m := types.SkillMatch{
		Phrase: phrase,
		Skill:  &skill,
		Score:  hits[0].Score,
		Method: types.ModeSemantic,
	}
	for _, alt := range hits[1:] {
		m.Alternatives = append(m.Alternatives, types.ScoredSkill{SkillID: alt.SkillID, Score: max(0, alt.Score)})
	}
	return m
}
