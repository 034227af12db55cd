package types

import (
	"encoding/json"
	"sort"
)

// ProfileSkillSet is the deduplicated set of skill IDs found in one document.
// It marshals to a sorted JSON array.
type ProfileSkillSet map[string]struct{}

// NewProfileSkillSet builds a set from the given IDs.
func NewProfileSkillSet(ids ...string) ProfileSkillSet {
	set := make(ProfileSkillSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Contains reports whether id is in the set.
func (s ProfileSkillSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// IDs returns the members in ascending order.
func (s ProfileSkillSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MarshalJSON encodes the set as a sorted array.
func (s ProfileSkillSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.IDs())
}

// UnmarshalJSON decodes an array of IDs.
func (s *ProfileSkillSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewProfileSkillSet(ids...)
	return nil
}

// Recommendation is an opaque learning suggestion for one missing skill.
type Recommendation struct {
	SkillID string `json:"skill_id"`
	Text    string `json:"text"`
}

// GapReport partitions a profile against a role's requirements.
// Matched, Missing and Extra are sorted ascending and represent sets.
type GapReport struct {
	RoleID          string             `json:"role_id"`
	Matched         []string           `json:"matched"`
	Missing         []string           `json:"missing"`
	Extra           []string           `json:"extra"`
	Weights         map[string]float64 `json:"weights"`
	CoverageRatio   float64            `json:"coverage_ratio"`
	Recommendations []Recommendation   `json:"recommendations,omitempty"`
}
