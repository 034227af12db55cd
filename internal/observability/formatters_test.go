package observability

import (
	"bytes"
	"strings"
	"testing"

	"github.com/jonathan/skillsense/internal/skills"
	"github.com/jonathan/skillsense/internal/types"
	"github.com/stretchr/testify/assert"
)

func sampleReport() *types.GapReport {
	return &types.GapReport{
		RoleID:        "DataScientist",
		Matched:       []string{"pandas", "python", "sql"},
		Missing:       []string{"tensorflow"},
		Extra:         []string{"docker"},
		Weights:       map[string]float64{"python": 1.0, "pandas": 0.8, "tensorflow": 0.9, "sql": 0.7},
		CoverageRatio: 2.5 / 3.4,
		Recommendations: []types.Recommendation{
			{SkillID: "tensorflow", Text: "Follow a focused ML project"},
		},
	}
}

func TestPrintGapReport(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintGapReport(sampleReport())
	output := buf.String()

	assert.Contains(t, output, "SKILL GAP")
	assert.Contains(t, output, "DataScientist")
	assert.Contains(t, output, "73.5%")
	assert.Contains(t, output, "Matched (3)")
	assert.Contains(t, output, "tensorflow (0.9)")
	assert.Contains(t, output, "Extra (1)")
	assert.Contains(t, output, "Follow a focused ML project")
}

func TestPrintGapReport_Nil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintGapReport(nil)

	assert.Empty(t, buf.String())
}

func TestPrintExtraction(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	python := types.CanonicalSkill{ID: "python", DisplayName: "Python"}
	p.PrintExtraction(&skills.Result{
		Skills:         types.NewProfileSkillSet("python"),
		Matches:        []types.SkillMatch{{Phrase: types.CandidatePhrase{Text: "python"}, Skill: &python, Score: 1, Method: types.ModeFast}},
		RequestedMode:  types.ModeSemantic,
		EffectiveMode:  types.ModeFast,
		Degraded:       true,
		DegradedReason: "embedding backend gemini unavailable",
		Phrases:        4,
	})
	output := buf.String()

	assert.Contains(t, output, "DETECTED SKILLS")
	assert.Contains(t, output, "degraded from semantic")
	assert.Contains(t, output, "python")
	assert.Contains(t, output, "1.00")
	assert.Contains(t, output, "Degraded: embedding backend gemini unavailable")
}

func TestPrintExtraction_NoSkills(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintExtraction(&skills.Result{Skills: types.NewProfileSkillSet(), EffectiveMode: types.ModeFast})

	assert.Contains(t, buf.String(), "No skills detected")
}

func TestPrintExtraction_TruncatesList(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	skill := types.CanonicalSkill{ID: "go"}
	result := &skills.Result{Skills: types.NewProfileSkillSet()}
	for i := 0; i < maxItemsToShow+3; i++ {
		result.Matches = append(result.Matches, types.SkillMatch{Skill: &skill, Score: 1, Method: types.ModeFast})
	}
	p.PrintExtraction(result)

	assert.Contains(t, buf.String(), "... and 3 more")
}

func TestPrintRoles(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintRoles([]types.Role{
		{ID: "Accountant", Category: types.CategoryFinance, RequiredSkills: map[string]float64{"excel": 1}},
		{ID: "BackendEngineer", Category: types.CategoryTech, RequiredSkills: map[string]float64{"go": 1, "sql": 0.7}},
	})
	output := buf.String()

	assert.Contains(t, output, "Finance:")
	assert.Contains(t, output, "Tech:")
	assert.Contains(t, output, "BackendEngineer")
	assert.Contains(t, output, "2 skills")
}

func TestSummary(t *testing.T) {
	got := Summary(sampleReport(), types.NewProfileSkillSet("sql", "python", "pandas", "docker"))

	lines := strings.Split(got, "\n")
	assert.Equal(t, []string{
		"Role: DataScientist",
		"Detected skills: docker, pandas, python, sql",
		"Missing: tensorflow",
		"Coverage: 74%",
	}, lines)
}

func TestSummary_Empty(t *testing.T) {
	report := &types.GapReport{RoleID: "Intern", CoverageRatio: 1}

	got := Summary(report, nil)
	assert.Contains(t, got, "Detected skills: none")
	assert.Contains(t, got, "Missing: none")
	assert.Contains(t, got, "Coverage: 100%")
}

func TestBar(t *testing.T) {
	assert.Equal(t, "[##########]", bar(1, 10))
	assert.Equal(t, "[..........]", bar(0, 10))
	assert.Equal(t, "[#####.....]", bar(0.5, 10))
}
