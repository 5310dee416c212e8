package types

import "time"

// HealthStatus is the categorical health of one project.
type HealthStatus string

const (
	StatusHealthy  HealthStatus = "healthy"
	StatusWatch    HealthStatus = "watch"
	StatusCritical HealthStatus = "critical"
	StatusDone     HealthStatus = "done"
	StatusIdle     HealthStatus = "idle"
)

// HealthStatuses lists every status in display order.
var HealthStatuses = []HealthStatus{StatusHealthy, StatusWatch, StatusCritical, StatusDone, StatusIdle}

// Valid reports whether s is one of the known statuses.
func (s HealthStatus) Valid() bool {
	for _, v := range HealthStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Lane is a workflow column on the project board.
type Lane string

const (
	LaneBacklog    Lane = "backlog"
	LaneInProgress Lane = "in_progress"
	LaneDone       Lane = "done"
)

// Lanes lists the board columns left to right.
var Lanes = []Lane{LaneBacklog, LaneInProgress, LaneDone}

// ParseLane normalises an externally supplied lane name. "blocked" has no
// column of its own and folds into in_progress. ok is false for anything
// unrecognised.
func ParseLane(s string) (lane Lane, ok bool) {
	switch s {
	case string(LaneBacklog), string(LaneInProgress), string(LaneDone):
		return Lane(s), true
	case "blocked":
		return LaneInProgress, true
	default:
		return "", false
	}
}

// ProjectSummary is the rolled-up status of one project for a single
// aggregation pass. It is never mutated after construction.
type ProjectSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Color    string `json:"color,omitempty"`
	ParentID string `json:"parentId,omitempty"`
	Order    int    `json:"order"`

	ActiveCount       int `json:"activeCount"`
	OverdueCount      int `json:"overdueCount"`
	DueSoonCount      int `json:"dueSoonCount"`
	CompletedThisWeek int `json:"completedThisWeek"`

	// CompletionRate is completedThisWeek / (active + completedThisWeek), 0..1.
	CompletionRate float64      `json:"completionRate"`
	HealthScore    float64      `json:"healthScore"`
	HealthStatus   HealthStatus `json:"healthStatus"`

	LastActivityAt *time.Time `json:"lastActivityAt"`
	Stale          bool       `json:"stale"`

	EarliestDue *time.Time `json:"earliestDue"`
	LatestDue   *time.Time `json:"latestDue"`
	NextDue     *time.Time `json:"nextDue"`

	DefaultStatus Lane `json:"defaultStatus"`
}

// Totals sums the per-project counters across one pass.
type Totals struct {
	ActiveCount       int `json:"activeCount"`
	OverdueCount      int `json:"overdueCount"`
	DueSoonCount      int `json:"dueSoonCount"`
	CompletedThisWeek int `json:"completedThisWeek"`
}

// Add accumulates the counters of p into t.
func (t *Totals) Add(p ProjectSummary) {
	t.ActiveCount += p.ActiveCount
	t.OverdueCount += p.OverdueCount
	t.DueSoonCount += p.DueSoonCount
	t.CompletedThisWeek += p.CompletedThisWeek
}

// Merge accumulates another Totals into t.
func (t *Totals) Merge(o Totals) {
	t.ActiveCount += o.ActiveCount
	t.OverdueCount += o.OverdueCount
	t.DueSoonCount += o.DueSoonCount
	t.CompletedThisWeek += o.CompletedThisWeek
}

// Label is a task label, passed through from the snapshot untouched.
type Label struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Color      string `json:"color,omitempty"`
	Order      int    `json:"order"`
	IsFavorite bool   `json:"isFavorite"`
}

// Section is a project section, passed through from the snapshot untouched.
type Section struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
	Order     int    `json:"order"`
}

// CompletedPaging describes how much of the completed-task history the
// snapshot covered, for "load more" style consumers.
type CompletedPaging struct {
	Loaded  int  `json:"loaded"`
	Total   int  `json:"total"`
	HasMore bool `json:"hasMore"`
}

// Rollup is the output of one aggregation pass for one source account.
type Rollup struct {
	SourceID    string           `json:"sourceId"`
	RunID       string           `json:"runId"`
	GeneratedAt time.Time        `json:"generatedAt"`
	Projects    []ProjectSummary `json:"projects"`
	Totals      Totals           `json:"totals"`
	Labels      []Label          `json:"labels"`
	Sections    []Section        `json:"sections"`
	Completed   CompletedPaging  `json:"completed"`
}

// Project returns the summary with the given id.
func (r *Rollup) Project(id string) (ProjectSummary, bool) {
	for _, p := range r.Projects {
		if p.ID == id {
			return p, true
		}
	}
	return ProjectSummary{}, false
}
