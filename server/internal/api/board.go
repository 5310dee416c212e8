package api

import (
	"fmt"
	"time"

	"github.com/tallyhq/tally/pkg/types"
)

// Timeline zoom levels.
const (
	ZoomWeek    = "week"
	ZoomMonth   = "month"
	ZoomQuarter = "quarter"
)

// buildBoard groups projects into the lanes of types.Lanes by their default
// status. A project with an unrecognised lane lands in backlog.
func buildBoard(projects []ProjectResponse) BoardResponse {
	idx := make(map[types.Lane]int, len(types.Lanes))
	resp := BoardResponse{Columns: make([]BoardColumn, len(types.Lanes))}
	for i, l := range types.Lanes {
		idx[l] = i
		resp.Columns[i] = BoardColumn{Lane: l, Projects: []ProjectResponse{}}
	}
	for _, p := range projects {
		i, ok := idx[p.DefaultStatus]
		if !ok {
			i = idx[types.LaneBacklog]
		}
		resp.Columns[i].Projects = append(resp.Columns[i].Projects, p)
	}
	return resp
}

// timelineWindow returns the [start, end] range shown for zoom. The week view
// starts on the Monday of the current week and spans six weeks, the month
// view spans six months from the first of the month and the quarter view
// twelve months from the start of the quarter.
func timelineWindow(zoom string, now time.Time) (start, end time.Time, err error) {
	y, m, d := now.Date()
	loc := now.Location()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)

	switch zoom {
	case ZoomWeek:
		offset := (int(today.Weekday()) + 6) % 7
		start = today.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 6*7), nil
	case ZoomMonth:
		start = time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 6, 0), nil
	case ZoomQuarter:
		q := time.Month((int(m)-1)/3*3 + 1)
		start = time.Date(y, q, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 12, 0), nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf("unknown zoom %q: want week|month|quarter", zoom)
}

// calendarDays counts calendar days from a to b in loc.
func calendarDays(a, b time.Time, loc *time.Location) int {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

func clampPct(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

// buildTimeline places every project that has both an earliest and a latest
// due date on the window for zoom. A project is overdue when its earliest
// due is before now.
func buildTimeline(projects []ProjectResponse, zoom string, now time.Time) (TimelineResponse, error) {
	start, end, err := timelineWindow(zoom, now)
	if err != nil {
		return TimelineResponse{}, err
	}
	loc := now.Location()
	total := float64(calendarDays(start, end, loc))
	if total < 1 {
		total = 1
	}
	pct := func(t time.Time) float64 {
		return clampPct(float64(calendarDays(start, t, loc)) / total * 100)
	}

	resp := TimelineResponse{
		Zoom:        zoom,
		Start:       start.UTC().Format(time.RFC3339),
		End:         end.UTC().Format(time.RFC3339),
		TodayOffset: pct(now),
		Items:       []TimelineItem{},
	}
	for _, p := range projects {
		if p.EarliestDue == nil || p.LatestDue == nil {
			continue
		}
		startOff := pct(*p.EarliestDue)
		endOff := pct(*p.LatestDue)
		if endOff-startOff < 1 {
			endOff = startOff + 1
			if endOff > 100 {
				endOff = 100
			}
		}
		resp.Items = append(resp.Items, TimelineItem{
			SourceID:     p.SourceID,
			ProjectID:    p.ID,
			Name:         p.Name,
			Color:        p.Color,
			HealthStatus: p.HealthStatus,
			Start:        p.EarliestDue.UTC().Format(time.RFC3339),
			End:          p.LatestDue.UTC().Format(time.RFC3339),
			StartOffset:  startOff,
			EndOffset:    endOff,
			Overdue:      p.EarliestDue.Before(now),
		})
	}
	return resp, nil
}
