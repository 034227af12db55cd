package types

import (
	"fmt"
	"strings"
)

// Mode selects the matching strategy for one analysis call.
// It also records which strategy produced a SkillMatch.
type Mode string

const (
	// ModeFast uses alias lookup and fuzzy containment. No ML dependency.
	ModeFast Mode = "fast"
	// ModeSemantic uses embedding similarity against the skill index.
	ModeSemantic Mode = "semantic"
)

// ParseMode parses a mode name case-insensitively. Empty input yields ModeFast.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ModeFast):
		return ModeFast, nil
	case string(ModeSemantic):
		return ModeSemantic, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want fast or semantic)", s)
	}
}

// Span locates a candidate phrase inside the source text.
// Sentence is the zero-based sentence/line index; Start and End are token offsets within it.
type Span struct {
	Sentence int `json:"sentence"`
	Start    int `json:"start"`
	End      int `json:"end"`
}

// CandidatePhrase is a normalized fragment of input text considered for matching.
type CandidatePhrase struct {
	Text string `json:"text"`
	Span Span   `json:"span"`
}

// ScoredSkill pairs a skill ID with a similarity or confidence score.
type ScoredSkill struct {
	SkillID string  `json:"skill_id"`
	Score   float64 `json:"score"`
}

// SkillMatch is the outcome of matching one candidate phrase.
// Skill is nil when nothing matched.
type SkillMatch struct {
	Phrase       CandidatePhrase `json:"phrase"`
	Skill        *CanonicalSkill `json:"skill,omitempty"`
	Score        float64         `json:"score"`
	Method       Mode            `json:"method"`
	Alternatives []ScoredSkill   `json:"alternatives,omitempty"`
}

// Matched reports whether the match resolved to a canonical skill.
func (m SkillMatch) Matched() bool {
	return m.Skill != nil
}

// SkillID returns the matched skill ID, or "" when unmatched.
func (m SkillMatch) SkillID() string {
	if m.Skill == nil {
		return ""
	}
	return m.Skill.ID
}
