package api

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/tallyhq/tally/pkg/types"
)

// DiagnosticHint is one human-readable insight about a project's health.
// The UI displays these as chips on the project card and shows Detail on
// click.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level string `json:"level"`
	// Title is a short label shown on the chip.
	Title string `json:"title"`
	// Detail is the full explanation shown on click/hover.
	Detail string `json:"detail"`
	// Value is an optional number behind the hint (e.g. overdue count).
	Value *float64 `json:"value,omitempty"`
}

var levelRank = map[string]int{"critical": 0, "warning": 1, "info": 2, "ok": 3}

func floatPtr(v float64) *float64 { return &v }

// computeDiagnostics derives hints from a project summary. Hints are ordered
// critical first, then warnings, then info.
func computeDiagnostics(p types.ProjectSummary, now time.Time) []DiagnosticHint {
	switch p.HealthStatus {
	case types.StatusDone:
		return []DiagnosticHint{{
			Key:   "done",
			Level: "ok",
			Title: "All done",
			Detail: fmt.Sprintf(
				"Every task in %s is complete, %d of them this week. "+
					"Add new work to the project or archive it.",
				p.Name, p.CompletedThisWeek,
			),
		}}
	case types.StatusIdle:
		return []DiagnosticHint{{
			Key:    "idle",
			Level:  "info",
			Title:  "No tasks",
			Detail: "This project has no open tasks and nothing was completed this week.",
		}}
	}

	var hints []DiagnosticHint

	if p.OverdueCount > 0 {
		share := float64(p.OverdueCount) / float64(p.ActiveCount) * 100
		level := "warning"
		if share >= 50 {
			level = "critical"
		}
		hints = append(hints, DiagnosticHint{
			Key:   "overdue",
			Level: level,
			Title: fmt.Sprintf("%d overdue", p.OverdueCount),
			Detail: fmt.Sprintf(
				"%d of %d open tasks (%.0f%%) are past their due date. "+
					"Reschedule what can wait and close out what is already done.",
				p.OverdueCount, p.ActiveCount, share,
			),
			Value: floatPtr(float64(p.OverdueCount)),
		})
	}

	if p.DueSoonCount > 0 {
		hints = append(hints, DiagnosticHint{
			Key:   "due_soon",
			Level: "info",
			Title: fmt.Sprintf("%d due soon", p.DueSoonCount),
			Detail: fmt.Sprintf(
				"%d tasks are due within the coming week.",
				p.DueSoonCount,
			),
			Value: floatPtr(float64(p.DueSoonCount)),
		})
	}

	if p.Stale {
		detail := "Nothing in this project has been created or completed recently."
		var value *float64
		if p.LastActivityAt != nil {
			days := math.Floor(now.Sub(*p.LastActivityAt).Hours() / 24)
			detail = fmt.Sprintf(
				"The last task was created or completed %.0f days ago. "+
					"Check whether the project is still active.",
				days,
			)
			value = floatPtr(days)
		}
		hints = append(hints, DiagnosticHint{
			Key:    "stale",
			Level:  "warning",
			Title:  "Stale",
			Detail: detail,
			Value:  value,
		})
	}

	if p.CompletedThisWeek == 0 {
		hints = append(hints, DiagnosticHint{
			Key:    "no_progress",
			Level:  "info",
			Title:  "No progress this week",
			Detail: "No task in this project has been completed since the start of the week.",
		})
	}

	if len(hints) == 0 {
		hints = append(hints, DiagnosticHint{
			Key:   "healthy",
			Level: "ok",
			Title: "On track",
			Detail: fmt.Sprintf(
				"Health score %.0f/100 with %d open tasks and %d completed this week.",
				p.HealthScore, p.ActiveCount, p.CompletedThisWeek,
			),
			Value: floatPtr(p.HealthScore),
		})
	}

	sort.SliceStable(hints, func(i, j int) bool {
		return levelRank[hints[i].Level] < levelRank[hints[j].Level]
	})
	return hints
}
