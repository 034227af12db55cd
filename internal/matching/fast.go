package matching

import (
	"context"

	"github.com/jonathan/skillsense/internal/ontology"
	"github.com/jonathan/skillsense/internal/parsing"
	"github.com/jonathan/skillsense/internal/types"
)

// Fast matches by exact alias lookup, then by whole-word containment.
type Fast struct {
	ont   *ontology.Ontology
	terms []ontology.Term
}

// NewFast creates a Fast matcher over ont.
func NewFast(ont *ontology.Ontology) *Fast {
	return &Fast{ont: ont, terms: ont.Terms()}
}

// Mode returns types.ModeFast.
func (f *Fast) Mode() types.Mode { return types.ModeFast }

// Match scores an exact alias hit 1.0 and a containment hit PartialCredit.
//
// Containment is checked on normalized tokens. A phrase that contains a skill name
// always qualifies. A phrase contained in a skill name qualifies only when it covers
// more than half of that name's tokens, so "learning" alone does not match
// "machine learning". The longest qualifying name wins, then the lowest skill ID.
func (f *Fast) Match(_ context.Context, phrase types.CandidatePhrase) (types.SkillMatch, error) {
	if id, ok := f.ont.ResolveAlias(phrase.Text); ok {
		return f.hit(phrase, id, 1.0), nil
	}

	key := f.ont.Normalizer().Key(phrase.Text)
	if key == "" {
		return noMatch(phrase, types.ModeFast), nil
	}
	tokens := parsing.TokenCount(key)

	for _, term := range f.terms {
		if parsing.ContainsPhrase(key, term.Key) {
			return f.hit(phrase, term.SkillID, PartialCredit), nil
		}
		if tokens*2 > term.Tokens && parsing.ContainsPhrase(term.Key, key) {
			return f.hit(phrase, term.SkillID, PartialCredit), nil
		}
	}
	return noMatch(phrase, types.ModeFast), nil
}

func (f *Fast) hit(phrase types.CandidatePhrase, id string, score float64) types.SkillMatch {
	skill, ok := f.ont.Skill(id)
	if !ok {
		return noMatch(phrase, types.ModeFast)
	}
	return types.SkillMatch{
		Phrase: phrase,
		Skill:  &skill,
		Score:  score,
		Method: types.ModeFast,
	}
}
