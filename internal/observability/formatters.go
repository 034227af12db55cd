// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/skillsense/internal/skills"
	"github.com/jonathan/skillsense/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 10
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		// Truncate long lines
		if len([]rune(line)) > boxWidth-4 {
			line = string([]rune(line)[:boxWidth-7]) + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintExtraction outputs the detected skills with the phrase, score and method behind each.
func (p *Printer) PrintExtraction(result *skills.Result) {
	if result == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Mode:     %s", result.EffectiveMode))
	if result.Degraded {
		sb.WriteString(fmt.Sprintf(" (degraded from %s)", result.RequestedMode))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Phrases:  %d\n", result.Phrases))
	sb.WriteString(fmt.Sprintf("Skills:   %d\n", len(result.Skills)))

	if len(result.Matches) == 0 {
		sb.WriteString("\nNo skills detected. Try pasting more text.\n")
	} else {
		sb.WriteString("\n")
		count := min(len(result.Matches), maxItemsToShow)
		for i := 0; i < count; i++ {
			m := result.Matches[i]
			sb.WriteString(fmt.Sprintf("  • %-18s %.2f %-8s %q\n", m.SkillID(), m.Score, m.Method, m.Phrase.Text))
		}
		if len(result.Matches) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(result.Matches)-maxItemsToShow))
		}
	}
	if result.DegradedReason != "" {
		sb.WriteString(fmt.Sprintf("\nDegraded: %s\n", result.DegradedReason))
	}

	p.printBox("DETECTED SKILLS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintGapReport outputs coverage, matched, missing and extra skills, and recommendations.
func (p *Printer) PrintGapReport(report *types.GapReport) {
	if report == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Role:     %s\n", report.RoleID))
	sb.WriteString(fmt.Sprintf("Coverage: %.1f%% %s\n", report.CoverageRatio*100, bar(report.CoverageRatio, 20)))
	sb.WriteString("\n")

	writeList(&sb, "Matched", report.Matched, report.Weights)
	writeList(&sb, "Missing", report.Missing, report.Weights)
	writeList(&sb, "Extra", report.Extra, nil)

	if len(report.Recommendations) > 0 {
		sb.WriteString("Recommendations:\n")
		for _, r := range report.Recommendations {
			sb.WriteString(fmt.Sprintf("  • %s: %s\n", r.SkillID, r.Text))
		}
	}

	p.printBox("SKILL GAP", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRoles outputs every role grouped by category.
func (p *Printer) PrintRoles(roles []types.Role) {
	if len(roles) == 0 {
		return
	}

	var (
		sb      strings.Builder
		order   []types.Category
		byCateg = make(map[types.Category][]types.Role)
	)
	for _, r := range roles {
		if _, seen := byCateg[r.Category]; !seen {
			order = append(order, r.Category)
		}
		byCateg[r.Category] = append(byCateg[r.Category], r)
	}

	for i, c := range order {
		sb.WriteString(fmt.Sprintf("%s:\n", c))
		for _, r := range byCateg[c] {
			sb.WriteString(fmt.Sprintf("  • %-22s %d skills\n", r.ID, len(r.RequiredSkills)))
		}
		if i < len(order)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("ROLES", strings.TrimSuffix(sb.String(), "\n"))
}

// Summary renders the short downloadable summary of an analysis.
func Summary(report *types.GapReport, profile types.ProfileSkillSet) string {
	detected := strings.Join(profile.IDs(), ", ")
	if detected == "" {
		detected = "none"
	}
	missing := strings.Join(report.Missing, ", ")
	if missing == "" {
		missing = "none"
	}
	return fmt.Sprintf("Role: %s\nDetected skills: %s\nMissing: %s\nCoverage: %.0f%%",
		report.RoleID, detected, missing, report.CoverageRatio*100)
}

func writeList(sb *strings.Builder, title string, ids []string, weights map[string]float64) {
	sb.WriteString(fmt.Sprintf("%s (%d):\n", title, len(ids)))
	count := min(len(ids), maxItemsToShow)
	for i := 0; i < count; i++ {
		if w, ok := weights[ids[i]]; ok {
			sb.WriteString(fmt.Sprintf("  • %s (%.1f)\n", ids[i], w))
		} else {
			sb.WriteString(fmt.Sprintf("  • %s\n", ids[i]))
		}
	}
	if len(ids) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(ids)-maxItemsToShow))
	}
	sb.WriteString("\n")
}

// bar draws a fixed-width progress bar for a ratio in [0,1].
func bar(ratio float64, width int) string {
	filled := int(ratio*float64(width) + 0.5)
	filled = max(0, min(width, filled))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}
