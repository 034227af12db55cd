// Package gap compares an extracted skill profile with a role's requirements.
package gap

import (
	"fmt"
	"maps"
	"math"
	"sort"

	"github.com/jonathan/skillsense/internal/types"
)

// Recommender looks up the learning suggestion for a missing skill.
// *ontology.Ontology implements it.
type Recommender interface {
	Recommendation(skillID string) string
}

// Analyze partitions profile against role.
//
//	matched  = required ∩ profile
//	missing  = required − profile
//	extra    = profile − required
//	coverage = Σ weight(matched) / Σ weight(required), or 1 when nothing is required
//
// rec may be nil, in which case no recommendations are attached. An error means the role
// itself is malformed, which a loaded ontology never produces.
func Analyze(profile types.ProfileSkillSet, role types.Role, rec Recommender) (types.GapReport, error) {
	report := types.GapReport{
		RoleID:  role.ID,
		Matched: []string{},
		Missing: []string{},
		Extra:   []string{},
		Weights: maps.Clone(role.RequiredSkills),
	}
	if report.Weights == nil {
		report.Weights = map[string]float64{}
	}

	var covered, total float64
	for id, w := range role.RequiredSkills {
		if math.IsNaN(w) || w <= 0 || w > 1 {
			return types.GapReport{}, fmt.Errorf("role %q has invalid weight %v for %q", role.ID, w, id)
		}
		total += w
		if profile.Contains(id) {
			report.Matched = append(report.Matched, id)
			covered += w
		} else {
			report.Missing = append(report.Missing, id)
		}
	}
	for id := range profile {
		if _, required := role.RequiredSkills[id]; !required {
			report.Extra = append(report.Extra, id)
		}
	}

	sort.Strings(report.Matched)
	sort.Strings(report.Missing)
	sort.Strings(report.Extra)

	report.CoverageRatio = 1.0
	if total > 0 {
		report.CoverageRatio = math.Min(1, covered/total)
	}

	if rec != nil {
		for _, id := range report.Missing {
			if text := rec.Recommendation(id); text != "" {
				report.Recommendations = append(report.Recommendations, types.Recommendation{SkillID: id, Text: text})
			}
		}
	}
	return report, nil
}
