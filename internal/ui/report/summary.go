// Package report renders build outcomes for the terminal and for history
// exports.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"linkgraph/internal/data/history"
	"linkgraph/internal/engine/index"
	"linkgraph/internal/engine/linker"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	cycleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

// maxListed caps the unresolved symbols printed per binary.
const maxListed = 10

// Summary is everything the end-of-build report shows.
type Summary struct {
	RunID      string
	Target     string
	Root       string
	Stats      index.Stats
	Binaries   []linker.LinkResult
	Collisions []index.Collision
	Cycles     [][]string
	Chain      []string
	DOTPath    string
	Duration   time.Duration
	// Delta is set when a previous successful run of the same target exists.
	Delta *history.Delta
}

// RenderSummary writes the styled build summary to w.
func RenderSummary(w io.Writer, s Summary) error {
	var b strings.Builder

	b.WriteString(titleStyle.Render("linkgraph: "+s.Target) + "\n")
	b.WriteString(statusStyle.Render(fmt.Sprintf("run %s in %s", s.RunID, s.Root)) + "\n\n")

	fmt.Fprintf(&b, "packages %d  objects %d  symbols %d  entry points %d\n",
		s.Stats.Packages, s.Stats.Objects, s.Stats.Symbols, s.Stats.EntryPoints)

	if len(s.Binaries) == 0 {
		b.WriteString(statusStyle.Render("no entry points in target, nothing linked") + "\n")
	}
	for _, bin := range s.Binaries {
		verb := "linked"
		if bin.Skipped {
			verb = "planned"
		}
		line := fmt.Sprintf("%s %s (%d deps)", verb, bin.Binary, len(bin.Deps))
		b.WriteString(successStyle.Render("✔ "+line) + "\n")
		if bin.Skipped && bin.Command != "" {
			b.WriteString(statusStyle.Render("  "+bin.Command) + "\n")
		}
		if n := len(bin.Unresolved); n > 0 {
			b.WriteString(warningStyle.Render(fmt.Sprintf("  %d unresolved: %s", n, listed(bin.Unresolved))) + "\n")
		}
	}

	if len(s.Collisions) > 0 {
		b.WriteString("\n" + warningStyle.Render(fmt.Sprintf("%d duplicate definitions ignored", len(s.Collisions))) + "\n")
		for _, c := range s.Collisions {
			fmt.Fprintf(&b, "  %s: kept %s, ignored %s\n", c.Symbol, c.Winner, c.Loser)
		}
	}

	if len(s.Cycles) > 0 {
		b.WriteString("\n" + cycleStyle.Render(fmt.Sprintf("%d package cycles", len(s.Cycles))) + "\n")
		for _, cycle := range s.Cycles {
			b.WriteString(cycleStyle.Render("  "+strings.Join(cycle, " -> ")+" -> "+cycle[0]) + "\n")
		}
	}

	if len(s.Chain) > 0 {
		b.WriteString("\n" + titleStyle.Render("dependency chain") + "\n")
		b.WriteString("  " + strings.Join(s.Chain, " -> ") + "\n")
	}

	if s.DOTPath != "" {
		b.WriteString(statusStyle.Render("graph written to "+s.DOTPath) + "\n")
	}

	if s.Delta != nil {
		b.WriteString(statusStyle.Render(fmt.Sprintf("since last success: objects %+d  symbols %+d  binaries %+d  time %+v",
			s.Delta.Objects, s.Delta.Symbols, s.Delta.Binaries, s.Delta.Duration.Round(time.Millisecond))) + "\n")
	}

	b.WriteString(statusStyle.Render(fmt.Sprintf("done in %s", s.Duration.Round(time.Millisecond))) + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func listed(names []string) string {
	if len(names) <= maxListed {
		return strings.Join(names, ", ")
	}
	return strings.Join(names[:maxListed], ", ") + fmt.Sprintf(", ... (%d more)", len(names)-maxListed)
}
