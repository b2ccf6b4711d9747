// Package observability provides formatted output utilities for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/recommendation-writer/internal/experiment"
	"github.com/jonathan/recommendation-writer/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for the CLI
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

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, clip(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// clip shortens s to n runes with a trailing ellipsis.
func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

// PrintStage outputs one progress line of a streamed generation.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintStage(ev types.StageEvent) {
	switch ev.Status {
	case types.StatusError:
		fmt.Fprintf(p.out, "[%3d%%] ✗ %s\n", ev.Progress, ev.Error)
	case types.StatusComplete:
		fmt.Fprintf(p.out, "[%3d%%] ✓ done\n", ev.Progress)
	default:
		fmt.Fprintf(p.out, "[%3d%%] %s\n", ev.Progress, ev.Stage)
	}
}

// PrintCandidate outputs a scored candidate followed by its full text.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintCandidate(heading string, c *types.Candidate, v *types.ValidationResult) {
	if c == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Title:      %s\n", c.Title))
	if c.Strategy != "" {
		sb.WriteString(fmt.Sprintf("Strategy:   %s\n", c.Strategy))
	}
	if c.Focus != "" {
		sb.WriteString(fmt.Sprintf("Focus:      %s\n", c.Focus))
	}
	sb.WriteString(fmt.Sprintf("Words:      %d in %d paragraphs\n", c.WordCount, c.ParagraphCount))
	if v != nil {
		sb.WriteString(fmt.Sprintf("Confidence: %.1f / 100\n", v.ConfidenceScore))
		sb.WriteString(fmt.Sprintf("Structure:  %.1f / 100\n", v.StructureScore))
		if v.Compliance.Required()+v.Compliance.Excluded() > 0 {
			sb.WriteString(fmt.Sprintf("Keywords:   %s\n", v.Compliance.Summary()))
		}
		count := min(len(v.Issues), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  ⚠ %s\n", v.Issues[i]))
		}
		if len(v.Issues) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more issues\n", len(v.Issues)-maxItemsToShow))
		}
	}
	if c.Explanation != "" {
		sb.WriteString("\n" + c.Explanation + "\n")
	}

	p.printBox(heading, strings.TrimSuffix(sb.String(), "\n"))
	fmt.Fprintf(p.out, "\n%s\n\n", c.Text)
}

// PrintHistory outputs a subject's versions, oldest first.
func (p *Printer) PrintHistory(subjectID string, versions []types.Version) {
	if len(versions) == 0 {
		p.printBox("VERSION HISTORY: "+subjectID, "No versions yet.")
		return
	}

	var sb strings.Builder
	for i, v := range versions {
		sb.WriteString(fmt.Sprintf("v%-3d %-10s %s\n", v.Number, v.ChangeType, v.CreatedAt.Format("2006-01-02 15:04")))
		if v.ChangeDescription != "" {
			sb.WriteString(fmt.Sprintf("     %s\n", v.ChangeDescription))
		}
		sb.WriteString(fmt.Sprintf("     %d words, confidence %.1f", v.Artifact.WordCount(), v.Artifact.ConfidenceScore))
		if v.RevertedFrom != nil {
			sb.WriteString(fmt.Sprintf(", copy of v%d", *v.RevertedFrom))
		}
		if i < len(versions)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("VERSION HISTORY: "+subjectID, sb.String())
}

// PrintDiff outputs a structural comparison of two versions.
func (p *Printer) PrintDiff(diff *types.VersionDiff) {
	if diff == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Words:      %+d\n", diff.WordCountDelta))
	sb.WriteString(fmt.Sprintf("Paragraphs: %+d\n", diff.ParagraphDelta))
	sb.WriteString(fmt.Sprintf("Confidence: %+.1f\n", diff.ScoreDelta))
	sb.WriteString(fmt.Sprintf("Tone:       %s\n", changed(diff.ToneChanged)))
	sb.WriteString(fmt.Sprintf("Length:     %s", changed(diff.LengthChanged)))
	writeList(&sb, "Required +", diff.KeywordsAdded)
	writeList(&sb, "Required -", diff.KeywordsRemoved)
	writeList(&sb, "Excluded +", diff.ExcludedAdded)
	writeList(&sb, "Excluded -", diff.ExcludedRemoved)

	p.printBox(fmt.Sprintf("COMPARE %s v%d → v%d", diff.SubjectID, diff.From, diff.To), sb.String())
}

func changed(b bool) string {
	if b {
		return "changed"
	}
	return "same"
}

func writeList(sb *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString(fmt.Sprintf("\n%s %s", label, strings.Join(items, ", ")))
}

// PrintStats outputs the per-strategy experiment snapshot.
func (p *Printer) PrintStats(stats []experiment.Stats) {
	if len(stats) == 0 {
		p.printBox("STRATEGY EXPERIMENTS", "No results recorded yet.")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-22s %5s %6s %6s %6s\n", "strategy", "n", "mean", "sd", "pick%"))
	for _, s := range stats {
		sb.WriteString(fmt.Sprintf("%-22s %5d %6.1f %6.1f %5.0f%%\n",
			clip(string(s.Strategy), 22), s.Count, s.MeanScore, s.StdDevScore, s.SelectionRate*100))
	}

	p.printBox("STRATEGY EXPERIMENTS", strings.TrimSuffix(sb.String(), "\n"))
}
