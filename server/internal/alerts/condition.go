package alerts

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tallyhq/tally/pkg/types"
)

// condition is a parsed "field op value" rule expression.
//
// Numeric fields:
//
//	health_score < 45
//	overdue_count > 3
//	due_soon_count >= 5
//	active_count > 50
//	completed_this_week == 0
//	completion_rate < 0.2
//	days_since_activity > 21
//
// Equality fields (== or !=):
//
//	health_status == critical
//	default_status == in_progress
//	stale == true
type condition struct {
	field     string
	op        string
	rhs       string
	threshold float64
}

var numericFields = map[string]bool{
	"health_score":        true,
	"overdue_count":       true,
	"due_soon_count":      true,
	"active_count":        true,
	"completed_this_week": true,
	"completion_rate":     true,
	"days_since_activity": true,
}

var equalityFields = map[string]bool{
	"health_status":  true,
	"default_status": true,
	"stale":          true,
}

// parseCondition validates a rule expression.
func parseCondition(expr string) (condition, error) {
	parts := strings.Fields(expr)
	if len(parts) != 3 {
		return condition{}, fmt.Errorf("alerts: condition %q: want \"field op value\"", expr)
	}
	c := condition{field: parts[0], op: parts[1], rhs: parts[2]}

	switch {
	case numericFields[c.field]:
		switch c.op {
		case ">", ">=", "<", "<=", "==", "!=":
		default:
			return condition{}, fmt.Errorf("alerts: condition %q: unknown operator %q", expr, c.op)
		}
		v, err := strconv.ParseFloat(c.rhs, 64)
		if err != nil {
			return condition{}, fmt.Errorf("alerts: condition %q: %w", expr, err)
		}
		c.threshold = v

	case equalityFields[c.field]:
		if c.op != "==" && c.op != "!=" {
			return condition{}, fmt.Errorf("alerts: condition %q: %s supports only == and !=", expr, c.field)
		}
		if c.field == "stale" && c.rhs != "true" && c.rhs != "false" {
			return condition{}, fmt.Errorf("alerts: condition %q: stale compares against true or false", expr)
		}

	default:
		return condition{}, fmt.Errorf("alerts: condition %q: unknown field %q", expr, c.field)
	}
	return c, nil
}

// eval tests the condition against one project. value is the numeric value
// that triggered it (0 for equality fields).
func (c condition) eval(p types.ProjectSummary, now time.Time) (fires bool, value float64) {
	switch c.field {
	case "health_status":
		return c.equal(string(p.HealthStatus)), 0
	case "default_status":
		return c.equal(string(p.DefaultStatus)), 0
	case "stale":
		return c.equal(strconv.FormatBool(p.Stale)), 0
	}

	v, ok := numericField(c.field, p, now)
	if !ok {
		return false, 0
	}
	return compareFloat(v, c.op, c.threshold), v
}

func (c condition) equal(v string) bool {
	if c.op == "!=" {
		return v != c.rhs
	}
	return v == c.rhs
}

// numericField maps a field name to its value in the project summary. ok is
// false when the project has no value for it.
func numericField(field string, p types.ProjectSummary, now time.Time) (float64, bool) {
	switch field {
	case "health_score":
		return p.HealthScore, true
	case "overdue_count":
		return float64(p.OverdueCount), true
	case "due_soon_count":
		return float64(p.DueSoonCount), true
	case "active_count":
		return float64(p.ActiveCount), true
	case "completed_this_week":
		return float64(p.CompletedThisWeek), true
	case "completion_rate":
		return p.CompletionRate, true
	case "days_since_activity":
		if p.LastActivityAt == nil {
			return 0, false
		}
		return now.Sub(*p.LastActivityAt).Hours() / 24, true
	default:
		return 0, false
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}
