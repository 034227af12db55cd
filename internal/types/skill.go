// Package types provides type definitions for structured data used throughout the skillsense system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// Category groups roles in the ontology (Tech, Finance, HR, Design, ...)
type Category string

// Known role categories. The ontology may declare others.
const (
	CategoryTech       Category = "Tech"
	CategoryFinance    Category = "Finance"
	CategoryHR         Category = "HR"
	CategoryDesign     Category = "Design"
	CategoryMarketing  Category = "Marketing"
	CategoryOperations Category = "Operations"
)

// CanonicalSkill is the single authoritative representation of a skill concept.
// Embedding is only populated on values handed out by a built embedding index.
type CanonicalSkill struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Aliases     []string  `json:"aliases,omitempty"`
	Embedding   []float32 `json:"embedding,omitempty"`
}

// Names returns the display name followed by every alias.
func (s CanonicalSkill) Names() []string {
	names := make([]string, 0, len(s.Aliases)+1)
	names = append(names, s.DisplayName)
	return append(names, s.Aliases...)
}

// Role is a job role with its weighted skill requirements.
// Weights are in (0,1] and every key references a CanonicalSkill ID.
type Role struct {
	ID             string             `json:"id"`
	Category       Category           `json:"category"`
	RequiredSkills map[string]float64 `json:"required_skills"`
}

// TotalWeight returns the sum of all requirement weights.
func (r Role) TotalWeight() float64 {
	var total float64
	for _, w := range r.RequiredSkills {
		total += w
	}
	return total
}
