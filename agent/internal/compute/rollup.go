package compute

import (
	"sort"
	"strings"
	"time"

	"github.com/tallyhq/tally/agent/internal/todoist"
	"github.com/tallyhq/tally/pkg/types"
)

// Defaults for Options.
const (
	DefaultDueSoonDays = 7
	DefaultStaleDays   = 14
	DefaultWeekStart   = time.Monday
)

// Options tunes one aggregation pass. The zero value is not usable; start
// from DefaultOptions.
type Options struct {
	// DueSoonDays is the width of the due-soon window after today.
	DueSoonDays int
	// StaleDays is how many calendar days without activity make a project
	// with open work stale.
	StaleDays int
	// WeekStart anchors "completed this week".
	WeekStart time.Weekday
	// Score is the scoring policy. nil means Score.
	Score ScoreFunc
}

// DefaultOptions returns the standard 7/14-day Monday-week options.
func DefaultOptions() Options {
	return Options{
		DueSoonDays: DefaultDueSoonDays,
		StaleDays:   DefaultStaleDays,
		WeekStart:   DefaultWeekStart,
		Score:       Score,
	}
}

func (o Options) scoreFunc() ScoreFunc {
	if o.Score == nil {
		return Score
	}
	return o.Score
}

// Aggregate rolls a snapshot up with DefaultOptions.
func Aggregate(active []todoist.RawTask, completed []todoist.RawCompletedTask, projects []todoist.RawProject, now time.Time) ([]types.ProjectSummary, types.Totals) {
	return DefaultOptions().Aggregate(active, completed, projects, now)
}

// accumulator collects the signals of one project during a pass.
type accumulator struct {
	active            int
	overdue           int
	dueSoon           int
	completedThisWeek int

	earliestDue  time.Time
	latestDue    time.Time
	nextDue      time.Time
	lastActivity time.Time
}

func (a *accumulator) touch(t time.Time) {
	if a.lastActivity.IsZero() || t.After(a.lastActivity) {
		a.lastActivity = t
	}
}

// Aggregate groups tasks by project and returns one summary per project in
// projects, ordered by (order, name), together with the summed totals.
//
// Dates that do not parse are treated as absent. Tasks referencing a
// project that is not in projects are counted and then dropped.
func (o Options) Aggregate(active []todoist.RawTask, completed []todoist.RawCompletedTask, projects []todoist.RawProject, now time.Time) ([]types.ProjectSummary, types.Totals) {
	loc := now.Location()
	zones := newZoneCache(loc)

	today := startOfDay(now)
	dueSoonThreshold := today.AddDate(0, 0, o.DueSoonDays)
	weekStart := startOfWeek(today, o.WeekStart)

	accs := make(map[string]*accumulator, len(projects))
	get := func(projectID string) *accumulator {
		a, ok := accs[projectID]
		if !ok {
			a = &accumulator{}
			accs[projectID] = a
		}
		return a
	}

	for _, task := range active {
		a := get(task.ProjectID)
		a.active++

		if due, ok := dueInstant(task.Due, zones); ok {
			switch {
			case due.Before(today):
				a.overdue++
			case due.After(today) && !due.After(dueSoonThreshold):
				a.dueSoon++
			}
			if a.earliestDue.IsZero() || due.Before(a.earliestDue) {
				a.earliestDue = due
			}
			if a.latestDue.IsZero() || due.After(a.latestDue) {
				a.latestDue = due
			}
			if due.After(today) && (a.nextDue.IsZero() || due.Before(a.nextDue)) {
				a.nextDue = due
			}
		}

		if created, ok := parseInstant(task.CreatedAt, loc); ok {
			a.touch(created)
		}
	}

	for _, task := range completed {
		done, ok := parseInstant(task.CompletedAt, loc)
		if !ok {
			continue
		}
		a := get(task.ProjectID)
		if !done.Before(weekStart) {
			a.completedThisWeek++
		}
		a.touch(done)
	}

	score := o.scoreFunc()
	var totals types.Totals
	summaries := make([]types.ProjectSummary, 0, len(projects))
	for _, p := range projects {
		a, ok := accs[p.ID]
		if !ok {
			a = &accumulator{}
		}

		stale := a.active > 0 &&
			(a.lastActivity.IsZero() || calendarDaysBetween(now, a.lastActivity, loc) > o.StaleDays)

		s := clamp(score(HealthInput{
			ActiveCount:       a.active,
			OverdueCount:      a.overdue,
			DueSoonCount:      a.dueSoon,
			CompletedThisWeek: a.completedThisWeek,
			Stale:             stale,
		}), 0, 100)

		summary := types.ProjectSummary{
			ID:                p.ID,
			Name:              p.Name,
			Color:             p.Color,
			ParentID:          p.ParentID,
			Order:             p.Order,
			ActiveCount:       a.active,
			OverdueCount:      a.overdue,
			DueSoonCount:      a.dueSoon,
			CompletedThisWeek: a.completedThisWeek,
			CompletionRate:    completionRate(a.active, a.completedThisWeek),
			HealthScore:       s,
			HealthStatus:      Status(s, a.active, a.completedThisWeek),
			LastActivityAt:    utcPtr(a.lastActivity),
			Stale:             stale,
			EarliestDue:       utcPtr(a.earliestDue),
			LatestDue:         utcPtr(a.latestDue),
			NextDue:           utcPtr(a.nextDue),
			DefaultStatus:     defaultLane(a.active, a.overdue, a.completedThisWeek),
		}
		totals.Add(summary)
		summaries = append(summaries, summary)
	}

	SortSummaries(summaries)
	return summaries, totals
}

// SortSummaries orders summaries by ascending Order, then case-insensitive
// name, then raw name, then id.
func SortSummaries(s []types.ProjectSummary) {
	sort.SliceStable(s, func(i, j int) bool {
		a, b := s[i], s[j]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		if la, lb := strings.ToLower(a.Name), strings.ToLower(b.Name); la != lb {
			return la < lb
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
}

func completionRate(active, completedThisWeek int) float64 {
	total := active + completedThisWeek
	if total == 0 {
		return 0
	}
	return float64(completedThisWeek) / float64(total)
}

// defaultLane picks the board column for a project. Overdue work would be
// "blocked" but shares the in_progress column.
func defaultLane(active, overdue, completedThisWeek int) types.Lane {
	switch {
	case active == 0:
		return types.LaneDone
	case overdue > 0:
		return types.LaneInProgress
	case completedThisWeek > 0:
		return types.LaneInProgress
	default:
		return types.LaneBacklog
	}
}

func utcPtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
