package render

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/tallyhq/tally/pkg/types"
)

// Gruvbox-inspired color palette.
var (
	colorGreen  = lipgloss.Color("#8ec07c")
	colorYellow = lipgloss.Color("#fabd2f")
	colorRed    = lipgloss.Color("#fb4934")
	colorBlue   = lipgloss.Color("#83a598")
	colorDim    = lipgloss.Color("#928374")
	colorFg     = lipgloss.Color("#ebdbb2")
	colorHeader = lipgloss.Color("#fe8019")
)

var (
	styleGreen  = lipgloss.NewStyle().Foreground(colorGreen)
	styleYellow = lipgloss.NewStyle().Foreground(colorYellow)
	styleRed    = lipgloss.NewStyle().Foreground(colorRed)
	styleBlue   = lipgloss.NewStyle().Foreground(colorBlue)
	styleDim    = lipgloss.NewStyle().Foreground(colorDim)
	styleBold   = lipgloss.NewStyle().Foreground(colorFg).Bold(true)
	styleHeader = lipgloss.NewStyle().Foreground(colorHeader).Bold(true)
)

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// painter applies styles only when color output is enabled.
type painter struct {
	color bool
}

func (p painter) paint(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

func (p painter) status(s types.HealthStatus) string {
	switch s {
	case types.StatusHealthy:
		return p.paint(styleGreen, "● healthy")
	case types.StatusWatch:
		return p.paint(styleYellow, "● watch")
	case types.StatusCritical:
		return p.paint(styleRed, "▲ critical")
	case types.StatusDone:
		return p.paint(styleBlue, "✔ done")
	case types.StatusIdle:
		return p.paint(styleDim, "○ idle")
	default:
		return p.paint(styleDim, string(s))
	}
}

func (p painter) lane(l types.Lane) string {
	switch l {
	case types.LaneInProgress:
		return p.paint(styleGreen, "in progress")
	case types.LaneDone:
		return p.paint(styleDim, "done")
	default:
		return p.paint(styleBlue, string(l))
	}
}
