// Package ontology loads the canonical skill catalog and role requirement profiles.
// A loaded Ontology is immutable and safe to share across concurrent analyses.
package ontology

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jonathan/skillsense/internal/parsing"
	"github.com/jonathan/skillsense/internal/schemas"
	"github.com/jonathan/skillsense/internal/types"
)

//go:embed data/default.yaml
var defaultFS embed.FS

// Term is one normalized skill name used for fuzzy containment.
type Term struct {
	Key     string
	Tokens  int
	SkillID string
}

// Ontology is the static catalog of canonical skills and role requirements.
type Ontology struct {
	version               string
	skills                map[string]types.CanonicalSkill
	skillIDs              []string
	aliases               map[string]string
	terms                 []Term
	roles                 map[string]types.Role
	roleIDs               []string
	recommendations       map[string]string
	defaultRecommendation string
	normalizer            *parsing.Normalizer
}

// Option configures loading.
type Option func(*loadOptions)

type loadOptions struct {
	normalizer *parsing.Normalizer
	source     string
}

// WithNormalizer sets the normalizer used to build alias keys.
// It must be the same normalizer that produces candidate phrases.
func WithNormalizer(n *parsing.Normalizer) Option {
	return func(o *loadOptions) { o.normalizer = n }
}

// WithSource names the source in load errors.
func WithSource(name string) Option {
	return func(o *loadOptions) { o.source = name }
}

// LoadFile reads and parses an ontology file. The format follows the extension.
func LoadFile(path string, opts ...Option) (*Ontology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Source: path, Cause: err}
	}
	return Parse(data, FormatFromPath(path), append([]Option{WithSource(path)}, opts...)...)
}

// LoadDefault parses the ontology bundled with the binary.
func LoadDefault(opts ...Option) (*Ontology, error) {
	data, err := defaultFS.ReadFile("data/default.yaml")
	if err != nil {
		return nil, &LoadError{Source: "default", Cause: err}
	}
	return Parse(data, FormatYAML, append([]Option{WithSource("default")}, opts...)...)
}

// Parse validates and indexes an ontology document.
// Shape problems, duplicate skill IDs, alias collisions and dangling role references all
// produce a *LoadError.
func Parse(data []byte, format Format, opts ...Option) (*Ontology, error) {
	o := loadOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.normalizer == nil {
		o.normalizer = parsing.NewNormalizer(parsing.DefaultOptions())
	}

	doc, err := toJSON(data, format)
	if err != nil {
		return nil, &LoadError{Source: o.source, Cause: err}
	}

	if err := schemas.Validate(schemas.Ontology, doc); err != nil {
		var validationErr *schemas.ValidationError
		if errors.As(err, &validationErr) {
			return nil, &LoadError{Source: o.source, Problems: validationErr.Messages()}
		}
		return nil, &LoadError{Source: o.source, Cause: err}
	}

	var raw rawOntology
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return nil, &LoadError{Source: o.source, Cause: fmt.Errorf("failed to decode ontology: %w", err)}
	}

	if err := validator.New().Struct(raw); err != nil {
		return nil, &LoadError{Source: o.source, Problems: []string{err.Error()}}
	}

	ont, problems := build(raw, o.normalizer)
	if len(problems) > 0 {
		return nil, &LoadError{Source: o.source, Problems: problems}
	}
	return ont, nil
}

func build(raw rawOntology, n *parsing.Normalizer) (*Ontology, []string) {
	var problems []string
	ont := &Ontology{
		version:               raw.Version,
		skills:                make(map[string]types.CanonicalSkill, len(raw.Skills)),
		aliases:               make(map[string]string),
		roles:                 make(map[string]types.Role, len(raw.Roles)),
		recommendations:       make(map[string]string, len(raw.Recommendations)),
		defaultRecommendation: strings.TrimSpace(raw.DefaultRecommendation),
		normalizer:            n,
	}

	for _, rs := range raw.Skills {
		id := strings.TrimSpace(rs.ID)
		if id == "" {
			problems = append(problems, "skill with blank id")
			continue
		}
		if _, dup := ont.skills[id]; dup {
			problems = append(problems, fmt.Sprintf("duplicate skill id %q", id))
			continue
		}
		skill := types.CanonicalSkill{
			ID:          id,
			DisplayName: strings.TrimSpace(rs.DisplayName),
			Aliases:     make([]string, 0, len(rs.Aliases)),
		}
		for _, a := range rs.Aliases {
			if a = strings.TrimSpace(a); a != "" {
				skill.Aliases = append(skill.Aliases, a)
			}
		}
		ont.skills[id] = skill
		ont.skillIDs = append(ont.skillIDs, id)
	}
	sort.Strings(ont.skillIDs)

	// Register names in ID order so the first collision report is deterministic.
	for _, id := range ont.skillIDs {
		skill := ont.skills[id]
		seenTerms := make(map[string]bool)
		for _, name := range skill.Names() {
			stripped := n.Key(name)
			if stripped == "" {
				problems = append(problems, fmt.Sprintf("skill %q has a name with no word characters: %q", id, name))
				continue
			}
			keys := []string{stripped}
			if full := parsing.Key(name); full != stripped {
				keys = append(keys, full)
			}
			for _, key := range keys {
				if owner, taken := ont.aliases[key]; taken && owner != id {
					problems = append(problems, fmt.Sprintf("name %q of skill %q collides with skill %q", name, id, owner))
					continue
				}
				ont.aliases[key] = id
			}
			if !seenTerms[stripped] {
				seenTerms[stripped] = true
				ont.terms = append(ont.terms, Term{Key: stripped, Tokens: parsing.TokenCount(stripped), SkillID: id})
			}
		}
	}
	// Longest terms first, then ascending skill ID, so fuzzy matching prefers specific names.
	sort.SliceStable(ont.terms, func(i, j int) bool {
		a, b := ont.terms[i], ont.terms[j]
		if len(a.Key) != len(b.Key) {
			return len(a.Key) > len(b.Key)
		}
		if a.SkillID != b.SkillID {
			return a.SkillID < b.SkillID
		}
		return a.Key < b.Key
	})

	for roleID, rr := range raw.Roles {
		id := strings.TrimSpace(roleID)
		if id == "" {
			problems = append(problems, "role with blank id")
			continue
		}
		role := types.Role{
			ID:             id,
			Category:       types.Category(strings.TrimSpace(rr.Category)),
			RequiredSkills: make(map[string]float64, len(rr.RequiredSkills)),
		}
		for skillID, weight := range rr.RequiredSkills {
			if _, ok := ont.skills[skillID]; !ok {
				problems = append(problems, fmt.Sprintf("role %q references unknown skill %q", id, skillID))
				continue
			}
			if weight <= 0 || weight > 1 {
				problems = append(problems, fmt.Sprintf("role %q has weight %v for %q outside (0,1]", id, weight, skillID))
				continue
			}
			role.RequiredSkills[skillID] = weight
		}
		ont.roles[id] = role
		ont.roleIDs = append(ont.roleIDs, id)
	}
	sort.Strings(ont.roleIDs)

	for skillID, text := range raw.Recommendations {
		if _, ok := ont.skills[skillID]; !ok {
			problems = append(problems, fmt.Sprintf("recommendation references unknown skill %q", skillID))
			continue
		}
		ont.recommendations[skillID] = strings.TrimSpace(text)
	}

	sort.Strings(problems)
	return ont, problems
}

// Version returns the declared ontology version, if any.
func (o *Ontology) Version() string {
	return o.version
}

// Normalizer returns the normalizer the alias keys were built with.
func (o *Ontology) Normalizer() *parsing.Normalizer {
	return o.normalizer
}

// ResolveAlias finds the skill whose display name or alias equals text, ignoring case,
// punctuation and stopwords. Lookup is a single map access per key form.
func (o *Ontology) ResolveAlias(text string) (string, bool) {
	if id, ok := o.aliases[o.normalizer.Key(text)]; ok {
		return id, true
	}
	id, ok := o.aliases[parsing.Key(text)]
	return id, ok
}

// Skill returns the canonical skill with the given ID.
func (o *Ontology) Skill(id string) (types.CanonicalSkill, bool) {
	s, ok := o.skills[id]
	if !ok {
		return types.CanonicalSkill{}, false
	}
	s.Aliases = slices.Clone(s.Aliases)
	return s, true
}

// SkillIDs returns every skill ID in ascending order.
func (o *Ontology) SkillIDs() []string {
	return slices.Clone(o.skillIDs)
}

// Skills returns every canonical skill ordered by ID.
func (o *Ontology) Skills() []types.CanonicalSkill {
	out := make([]types.CanonicalSkill, 0, len(o.skillIDs))
	for _, id := range o.skillIDs {
		s, _ := o.Skill(id)
		out = append(out, s)
	}
	return out
}

// Terms returns every normalized skill name, longest first.
func (o *Ontology) Terms() []Term {
	return slices.Clone(o.terms)
}

// Role returns the role with the given ID.
func (o *Ontology) Role(id string) (types.Role, bool) {
	r, ok := o.roles[id]
	if !ok {
		return types.Role{}, false
	}
	r.RequiredSkills = maps.Clone(r.RequiredSkills)
	return r, true
}

// Roles returns every role ordered by ID.
func (o *Ontology) Roles() []types.Role {
	out := make([]types.Role, 0, len(o.roleIDs))
	for _, id := range o.roleIDs {
		r, _ := o.Role(id)
		out = append(out, r)
	}
	return out
}

// Recommendation returns the learning suggestion for a skill, falling back to the
// ontology's default. The text is opaque to the engine.
func (o *Ontology) Recommendation(skillID string) string {
	if text, ok := o.recommendations[skillID]; ok && text != "" {
		return text
	}
	return o.defaultRecommendation
}
