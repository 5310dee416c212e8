package compute

import (
	"strings"
	"time"

	"github.com/tallyhq/tally/agent/internal/todoist"
)

// Layouts accepted for timestamps that carry an explicit offset.
var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04Z07:00",
}

// Layouts for floating timestamps, interpreted in a caller-chosen location.
var floatingLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseInstant parses an ISO 8601 timestamp. Values without an offset are
// read in loc. ok is false for empty or malformed input.
func parseInstant(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range floatingLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// zoneCache resolves IANA zone names once per aggregation pass.
type zoneCache struct {
	fallback *time.Location
	zones    map[string]*time.Location
}

func newZoneCache(fallback *time.Location) *zoneCache {
	return &zoneCache{fallback: fallback, zones: make(map[string]*time.Location)}
}

func (z *zoneCache) lookup(name string) *time.Location {
	if name == "" {
		return z.fallback
	}
	if loc, ok := z.zones[name]; ok {
		return loc
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		loc = z.fallback
	}
	z.zones[name] = loc
	return loc
}

// dueInstant returns the instant a task is due. A datetime wins over a bare
// date; when a datetime is present but malformed the task has no due.
func dueInstant(d *todoist.Due, zones *zoneCache) (time.Time, bool) {
	if d == nil {
		return time.Time{}, false
	}
	if d.Datetime != "" {
		return parseInstant(d.Datetime, zones.lookup(d.Timezone))
	}
	return parseInstant(d.Date, zones.fallback)
}

// startOfDay returns midnight of t's calendar day in t's location.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// startOfWeek returns the start of the week containing day, where weeks
// begin on first.
func startOfWeek(day time.Time, first time.Weekday) time.Time {
	offset := (int(day.Weekday()) - int(first) + 7) % 7
	return startOfDay(day).AddDate(0, 0, -offset)
}

// calendarDaysBetween counts calendar-day boundaries from earlier to later,
// both taken in loc. Wall-clock time and DST shifts are ignored.
func calendarDaysBetween(later, earlier time.Time, loc *time.Location) int {
	ly, lm, ld := later.In(loc).Date()
	ey, em, ed := earlier.In(loc).Date()
	a := time.Date(ly, lm, ld, 0, 0, 0, 0, time.UTC)
	b := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	return int(a.Sub(b).Hours() / 24)
}
