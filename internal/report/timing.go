package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fyrsmithlabs/releasegate/internal/steplog"
)

// maxBar is the width of the longest possible timing bar.
const maxBar = 30

// Chart is the terminal surface the timing chart is drawn on.
type Chart interface {
	Heading(text string)
	Writer() io.Writer
	Bar(text string, passed bool) string
}

// BarWidth scales d against total onto [0, maxBar].
func BarWidth(d, total time.Duration) int {
	if total <= 0 || d <= 0 {
		return 0
	}
	n := int(float64(d) / float64(total) * maxBar)
	if n > maxBar {
		n = maxBar
	}
	return n
}

// PrintTiming draws a proportional bar per step plus the total.
func PrintTiming(c Chart, entries []steplog.Entry) {
	total := steplog.Summarize(entries).Total

	c.Heading("Timing")
	w := c.Writer()
	for _, e := range entries {
		icon := c.Bar("✓", true)
		switch e.Status {
		case steplog.Failed:
			icon = c.Bar("✗", false)
		case steplog.Skipped:
			icon = "-"
		}
		bar := ""
		if n := BarWidth(e.Duration, total); n > 0 {
			bar = c.Bar(strings.Repeat("█", n), e.Status != steplog.Failed)
		}
		fmt.Fprintf(w, "  %s %-25s %8s  %s\n", icon, e.Name, Elapsed(e.Duration), bar)
	}
	fmt.Fprintf(w, "  %s\n", strings.Repeat("─", 45))
	fmt.Fprintf(w, "    %-23s %s\n", "Total", Elapsed(total))
}
