// Package matching resolves candidate phrases to canonical skills.
// Fast matching is lexical and needs nothing beyond the ontology; Semantic matching
// compares phrase embeddings against a prebuilt skill index.
package matching

import (
	"context"

	"github.com/jonathan/skillsense/internal/types"
)

// PartialCredit is the score of a fuzzy containment hit in Fast mode.
const PartialCredit = 0.8

// DefaultThreshold is the Semantic cutoff used when none is configured.
const DefaultThreshold = 0.56

// Matcher maps one candidate phrase to at most one canonical skill.
// An unmatched phrase is not an error: it yields a SkillMatch with a nil Skill.
type Matcher interface {
	Match(ctx context.Context, phrase types.CandidatePhrase) (types.SkillMatch, error)
	Mode() types.Mode
}

func noMatch(phrase types.CandidatePhrase, mode types.Mode) types.SkillMatch {
	return types.SkillMatch{Phrase: phrase, Method: mode}
}
