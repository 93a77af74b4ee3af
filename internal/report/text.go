package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/olegiv/logtriage-go/internal/analyzer"
	"github.com/olegiv/logtriage-go/internal/triage"
)

// TopBinsShown is how many of the busiest time bins the text report lists.
const TopBinsShown = 12

// TextRenderer prints reports to the terminal with severity-based colors.
// Colors are dropped automatically when w is not a terminal.
type TextRenderer struct {
	w io.Writer

	heading lipgloss.Style
	muted   lipgloss.Style
	count   lipgloss.Style
	levels  map[triage.Level]lipgloss.Style
}

// NewTextRenderer returns a Renderer that writes colorized text to w.
func NewTextRenderer(w io.Writer) *TextRenderer {
	lr := lipgloss.NewRenderer(w)
	info := lr.NewStyle().Foreground(lipgloss.Color("245")) // gray
	debug := lr.NewStyle().Foreground(lipgloss.Color("245")).Faint(true)
	warn := lr.NewStyle().Foreground(lipgloss.Color("220"))             // yellow
	errStyle := lr.NewStyle().Foreground(lipgloss.Color("196")).Bold(true) // red bold
	fatal := lr.NewStyle().
		Foreground(lipgloss.Color("255")).
		Background(lipgloss.Color("196")).
		Bold(true) // white on red

	return &TextRenderer{
		w:       w,
		heading: lr.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		muted:   lr.NewStyle().Faint(true),
		count:   lr.NewStyle().Bold(true),
		levels: map[triage.Level]lipgloss.Style{
			triage.LevelTrace:   debug,
			triage.LevelDebug:   debug,
			triage.LevelInfo:    info,
			triage.LevelWarn:    warn,
			triage.LevelWarning: warn,
			triage.LevelError:   errStyle,
			triage.LevelFatal:   fatal,
		},
	}
}

func (r *TextRenderer) RenderLevels(rep *analyzer.LevelReport) error {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", r.heading.Render("=== LEVEL COUNTS ==="), r.muted.Render(rep.LogPath))
	fmt.Fprintf(&b, "total lines: %d\n", rep.TotalLines)

	if len(rep.LevelCounts) == 0 {
		b.WriteString(r.muted.Render("(No level tags found in logs. Ensure your logs contain INFO/WARN/ERROR/etc.)"))
		b.WriteString("\n")
	} else {
		total := 0
		for _, n := range rep.LevelCounts {
			total += n
		}
		fmt.Fprintf(&b, "%-8s %10s %8s\n", "LEVEL", "COUNT", "PCT")
		for _, lvl := range levelsByCount(rep.LevelCounts) {
			n := rep.LevelCounts[lvl]
			pct := float64(n) * 100 / float64(total)
			fmt.Fprintf(&b, "%s %10d %7.2f%%\n", r.levelTag(lvl), n, pct)
		}
	}

	if len(rep.TimeBins) > 0 {
		fmt.Fprintf(&b, "\n%s %s\n", r.heading.Render("=== EVENT VOLUME BY TIME BIN ==="),
			r.muted.Render(fmt.Sprintf("(%d minute bins, busiest %d)", rep.BinMinutes, TopBinsShown)))
		for _, bin := range triage.TopBins(rep.TimeBins, TopBinsShown) {
			fmt.Fprintf(&b, "%s  count=%s\n", bin.Start, r.count.Render(fmt.Sprint(bin.Count)))
		}
	}

	_, err := io.WriteString(r.w, b.String())
	return err
}

func (r *TextRenderer) RenderClusters(rep *analyzer.ClusterReport) error {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", r.heading.Render("=== TOP ERROR CLUSTERS ==="), r.muted.Render(rep.LogPath))
	fmt.Fprintf(&b, "error-ish lines: %d, threshold: %.2f\n", rep.ExtractedErrorish, rep.Threshold)

	if len(rep.Clusters) == 0 {
		b.WriteString(r.muted.Render("(No error-ish lines found.)"))
		b.WriteString("\n")
	}
	for _, c := range rep.Clusters {
		fmt.Fprintf(&b, "\n[%d] count=%s\n", c.ID, r.count.Render(fmt.Sprint(c.Count)))
		fmt.Fprintf(&b, "rep: %s\n", c.Rep)
		for _, ex := range c.Examples {
			fmt.Fprintf(&b, "  - %s\n", r.muted.Render(ex))
		}
	}

	_, err := io.WriteString(r.w, b.String())
	return err
}

func (r *TextRenderer) RenderTriage(rep *analyzer.TriageReport) error {
	if err := r.RenderLevels(rep.Levels); err != nil {
		return err
	}
	if _, err := io.WriteString(r.w, "\n"); err != nil {
		return err
	}
	return r.RenderClusters(rep.Clusters)
}

// RenderResult prints known reports as text and anything else as JSON.
func (r *TextRenderer) RenderResult(v interface{}) error {
	switch rep := v.(type) {
	case *analyzer.LevelReport:
		return r.RenderLevels(rep)
	case *analyzer.ClusterReport:
		return r.RenderClusters(rep)
	case *analyzer.TriageReport:
		return r.RenderTriage(rep)
	default:
		return NewJSONRenderer(r.w).RenderResult(v)
	}
}

func (r *TextRenderer) levelTag(lvl triage.Level) string {
	padded := fmt.Sprintf("%-8s", lvl)
	if style, ok := r.levels[lvl]; ok {
		return style.Render(padded)
	}
	return padded
}

// levelsByCount orders levels by descending count, ties in severity order.
func levelsByCount(counts map[triage.Level]int) []triage.Level {
	levels := triage.OrderedLevels(counts)
	sort.SliceStable(levels, func(i, j int) bool {
		return counts[levels[i]] > counts[levels[j]]
	})
	return levels
}
