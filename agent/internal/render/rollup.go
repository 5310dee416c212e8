package render

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/tallyhq/tally/pkg/types"
)

// Options controls terminal output.
type Options struct {
	// Color enables ANSI styling. Set it from IsTerminal(os.Stdout).
	Color bool
	// Now anchors relative dates. Zero means time.Now().
	Now time.Time
}

var rollupHeaders = []string{"PROJECT", "STATUS", "SCORE", "ACTIVE", "OVERDUE", "DUE SOON", "DONE WK", "NEXT DUE", "LANE"}

// Rollup writes r as a table of project summaries followed by a totals line.
func Rollup(w io.Writer, r *types.Rollup, opts Options) error {
	p := painter{color: opts.Color}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	rows := make([][]string, 0, len(r.Projects))
	for _, s := range r.Projects {
		name := s.Name
		if s.ParentID != "" {
			name = "  " + name
		}
		if s.Stale {
			name += " " + p.paint(styleYellow, "(stale)")
		}
		rows = append(rows, []string{
			name,
			p.status(s.HealthStatus),
			score(p, s),
			strconv.Itoa(s.ActiveCount),
			count(p, s.OverdueCount, styleRed),
			count(p, s.DueSoonCount, styleYellow),
			strconv.Itoa(s.CompletedThisWeek),
			relativeDate(s.NextDue, now),
			p.lane(s.DefaultStatus),
		})
	}

	var b strings.Builder
	if r.SourceID != "" {
		fmt.Fprintf(&b, "%s %s\n\n", p.paint(styleBold, strings.ToUpper(r.SourceID)),
			p.paint(styleDim, "generated "+r.GeneratedAt.Local().Format("Jan 2 15:04")))
	}
	b.WriteString(p.table(rollupHeaders, rows))
	fmt.Fprintf(&b, "\n%s  active %d · overdue %d · due soon %d · done this week %d\n",
		p.paint(styleBold, fmt.Sprintf("%d projects", len(r.Projects))),
		r.Totals.ActiveCount, r.Totals.OverdueCount, r.Totals.DueSoonCount, r.Totals.CompletedThisWeek)
	if r.Completed.HasMore {
		b.WriteString(p.paint(styleDim,
			fmt.Sprintf("completed history: %d of %d loaded\n", r.Completed.Loaded, r.Completed.Total)))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func score(p painter, s types.ProjectSummary) string {
	text := strconv.Itoa(int(math.Round(s.HealthScore)))
	switch s.HealthStatus {
	case types.StatusCritical:
		return p.paint(styleRed, text)
	case types.StatusWatch:
		return p.paint(styleYellow, text)
	default:
		return text
	}
}

func count(p painter, n int, style lipgloss.Style) string {
	text := strconv.Itoa(n)
	if n == 0 {
		return text
	}
	return p.paint(style, text)
}

// relativeDate renders t relative to now's calendar day.
func relativeDate(t *time.Time, now time.Time) string {
	if t == nil {
		return "--"
	}
	y1, m1, d1 := now.Date()
	y2, m2, d2 := t.In(now.Location()).Date()
	a := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	b := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	days := int(b.Sub(a).Hours() / 24)

	switch {
	case days == 0:
		return "today"
	case days == 1:
		return "tomorrow"
	case days == -1:
		return "yesterday"
	case days > 0 && days < 14:
		return fmt.Sprintf("in %dd", days)
	case days > 0:
		return t.In(now.Location()).Format("Jan 2")
	default:
		return fmt.Sprintf("%dd ago", -days)
	}
}
