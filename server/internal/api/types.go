package api

import "github.com/tallyhq/tally/pkg/types"

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	OverallScore  float64 `json:"overallScore"`
	State         string  `json:"state"`
	SourceCount   int     `json:"sourceCount"`
	ProjectCount  int     `json:"projectCount"`
	HealthyCount  int     `json:"healthyCount"`
	WatchCount    int     `json:"watchCount"`
	CriticalCount int     `json:"criticalCount"`
	DoneCount     int     `json:"doneCount"`
	IdleCount     int     `json:"idleCount"`
	AlertCount    int     `json:"alertCount"`
}

// ProjectResponse is one project in GET /api/v1/projects and the board and
// source payloads. The summary fields are inlined.
type ProjectResponse struct {
	SourceID string `json:"sourceId"`
	types.ProjectSummary
	Diagnostics []DiagnosticHint `json:"diagnostics"`
}

// SourceResponse is one agent's latest rollup in GET /api/v1/sources or
// GET /api/v1/sources/{id}.
type SourceResponse struct {
	SourceID    string                `json:"sourceId"`
	RunID       string                `json:"runId"`
	GeneratedAt string                `json:"generatedAt"` // RFC3339
	LastSeen    string                `json:"lastSeen"`    // RFC3339
	AgeSeconds  float64               `json:"ageSeconds"`
	Totals      types.Totals          `json:"totals"`
	Completed   types.CompletedPaging `json:"completed"`
	Projects    []ProjectResponse     `json:"projects"`
	Labels      []types.Label         `json:"labels"`
	Sections    []types.Section       `json:"sections"`
}

// TotalsResponse is the payload for GET /api/v1/totals.
type TotalsResponse struct {
	types.Totals
	SourceCount  int `json:"sourceCount"`
	ProjectCount int `json:"projectCount"`
}

// BoardColumn is one lane of the project board.
type BoardColumn struct {
	Lane     types.Lane        `json:"lane"`
	Projects []ProjectResponse `json:"projects"`
}

// BoardResponse is the payload for GET /api/v1/board. Columns are ordered
// backlog, in_progress, done.
type BoardResponse struct {
	Columns []BoardColumn `json:"columns"`
}

// TimelineItem is one project bar on the timeline. Offsets are percentages
// of the window, clamped to [0, 100].
type TimelineItem struct {
	SourceID     string             `json:"sourceId"`
	ProjectID    string             `json:"projectId"`
	Name         string             `json:"name"`
	Color        string             `json:"color,omitempty"`
	HealthStatus types.HealthStatus `json:"healthStatus"`
	Start        string             `json:"start"` // RFC3339, earliest due
	End          string             `json:"end"`   // RFC3339, latest due
	StartOffset  float64            `json:"startOffset"`
	EndOffset    float64            `json:"endOffset"`
	Overdue      bool               `json:"overdue"`
}

// TimelineResponse is the payload for GET /api/v1/timeline.
type TimelineResponse struct {
	Zoom        string         `json:"zoom"`
	Start       string         `json:"start"` // RFC3339
	End         string         `json:"end"`   // RFC3339
	TodayOffset float64        `json:"todayOffset"`
	Items       []TimelineItem `json:"items"`
}

// SnapshotResponse is the payload for GET /api/v1/snapshot and the data of
// every websocket broadcast.
type SnapshotResponse struct {
	Sources     []SourceResponse `json:"sources"`
	Totals      types.Totals     `json:"totals"`
	GeneratedAt string           `json:"generatedAt"` // RFC3339
	// Version changes whenever a source is stored or expires; clients can
	// skip re-rendering identical snapshots.
	Version uint64 `json:"version"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
