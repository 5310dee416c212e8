package api_test

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tallyhq/tally/pkg/types"
	"github.com/tallyhq/tally/server/internal/alerts"
	"github.com/tallyhq/tally/server/internal/api"
	"github.com/tallyhq/tally/server/internal/config"
	"github.com/tallyhq/tally/server/internal/store"
)

// --- test helpers -----------------------------------------------------------

var now = time.Date(2026, 10, 21, 12, 0, 0, 0, time.UTC)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func rollup(source string, projects ...types.ProjectSummary) *types.Rollup {
	r := &types.Rollup{SourceID: source, RunID: source + "-run", GeneratedAt: now, Projects: projects}
	for _, p := range projects {
		r.Totals.Add(p)
	}
	return r
}

// fixture returns two sources: "work" with a watch, a healthy and a done
// project, and "home" with a critical stale project and an idle one.
func fixture() []*types.Rollup {
	last := now.AddDate(0, 0, -30)
	return []*types.Rollup{
		rollup("work",
			types.ProjectSummary{
				ID: "p1", Name: "Launch", ActiveCount: 4, OverdueCount: 1, DueSoonCount: 2,
				CompletedThisWeek: 1, HealthScore: 70, HealthStatus: types.StatusWatch,
				EarliestDue: date(2026, 10, 10), LatestDue: date(2026, 11, 15),
				DefaultStatus: types.LaneInProgress,
			},
			types.ProjectSummary{
				ID: "p2", Name: "Docs", ActiveCount: 2, CompletedThisWeek: 2,
				HealthScore: 90, HealthStatus: types.StatusHealthy,
				DefaultStatus: types.LaneInProgress,
			},
			types.ProjectSummary{
				ID: "p3", Name: "Archive", CompletedThisWeek: 3,
				HealthScore: 100, HealthStatus: types.StatusDone,
				DefaultStatus: types.LaneDone,
			},
		),
		rollup("home",
			types.ProjectSummary{
				ID: "h1", Name: "Garden", ActiveCount: 3, OverdueCount: 3,
				HealthScore: 10, HealthStatus: types.StatusCritical, Stale: true, LastActivityAt: &last,
				EarliestDue: date(2026, 10, 1), LatestDue: date(2026, 10, 5),
				DefaultStatus: types.LaneInProgress,
			},
			types.ProjectSummary{
				ID: "h2", Name: "Empty", HealthScore: 100, HealthStatus: types.StatusIdle,
				DefaultStatus: types.LaneDone,
			},
		),
	}
}

func newStore(rollups ...*types.Rollup) *store.Store {
	st := store.New(5 * time.Minute)
	for _, r := range rollups {
		st.Put(r)
	}
	return st
}

func newHandler(st *store.Store, al *alerts.Engine) http.Handler {
	return api.New(st, al, api.WithClock(func() time.Time { return now }))
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

func projectIDs(ps []api.ProjectResponse) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// --- /api/v1/health ---------------------------------------------------------

func TestHealth_EmptyStore(t *testing.T) {
	rr := get(t, newHandler(newStore(), nil), "/api/v1/health")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp api.HealthResponse
	decode(t, rr, &resp)

	if resp.State != "unknown" {
		t.Errorf("state: got %v, want unknown", resp.State)
	}
	if resp.ProjectCount != 0 || resp.SourceCount != 0 {
		t.Errorf("counts: got %d projects / %d sources, want 0/0", resp.ProjectCount, resp.SourceCount)
	}
}

func TestHealth_MixedStatuses(t *testing.T) {
	rr := get(t, newHandler(newStore(fixture()...), nil), "/api/v1/health")
	var resp api.HealthResponse
	decode(t, rr, &resp)

	if resp.SourceCount != 2 || resp.ProjectCount != 5 {
		t.Errorf("counts: got %d sources / %d projects, want 2/5", resp.SourceCount, resp.ProjectCount)
	}
	if resp.HealthyCount != 1 || resp.WatchCount != 1 || resp.CriticalCount != 1 ||
		resp.DoneCount != 1 || resp.IdleCount != 1 {
		t.Errorf("per-status counts: %+v", resp)
	}
	// Mean over projects with active tasks: (70 + 90 + 10) / 3.
	if want := 170.0 / 3; math.Abs(resp.OverallScore-want) > 1e-9 {
		t.Errorf("overallScore: got %v, want %v", resp.OverallScore, want)
	}
	if resp.State != "watch" {
		t.Errorf("state: got %q, want watch", resp.State)
	}
}

func TestHealth_NoActiveProjects_ScoreIs100(t *testing.T) {
	st := newStore(rollup("work", types.ProjectSummary{ID: "p", HealthStatus: types.StatusDone, CompletedThisWeek: 1}))
	var resp api.HealthResponse
	decode(t, get(t, newHandler(st, nil), "/api/v1/health"), &resp)

	if resp.OverallScore != 100 || resp.State != "healthy" {
		t.Errorf("got %v/%s, want 100/healthy", resp.OverallScore, resp.State)
	}
}

func TestHealth_AlertCount(t *testing.T) {
	al, err := alerts.New(config.AlertsConfig{Rules: []config.AlertRule{
		{Name: "critical", Condition: "health_status == critical"},
	}})
	if err != nil {
		t.Fatalf("alerts.New: %v", err)
	}
	rs := fixture()
	for _, r := range rs {
		al.Evaluate(r)
	}

	var resp api.HealthResponse
	decode(t, get(t, newHandler(newStore(rs...), al), "/api/v1/health"), &resp)
	if resp.AlertCount != 1 {
		t.Errorf("alertCount: got %d, want 1", resp.AlertCount)
	}
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	h := newHandler(newStore(), nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/health", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", rr.Code)
	}
}

// --- /api/v1/sources --------------------------------------------------------

func TestListSources_Empty(t *testing.T) {
	rr := get(t, newHandler(newStore(), nil), "/api/v1/sources")
	if body := rr.Body.String(); body != "[]\n" {
		t.Errorf("body: got %q, want []", body)
	}
}

func TestListSources_OrderedBySourceID(t *testing.T) {
	rr := get(t, newHandler(newStore(fixture()...), nil), "/api/v1/sources")
	var resp []api.SourceResponse
	decode(t, rr, &resp)

	if len(resp) != 2 || resp[0].SourceID != "home" || resp[1].SourceID != "work" {
		t.Fatalf("sources: got %+v, want home, work", resp)
	}
	work := resp[1]
	if work.RunID != "work-run" {
		t.Errorf("runId: got %q", work.RunID)
	}
	if work.Totals.ActiveCount != 6 || work.Totals.CompletedThisWeek != 6 {
		t.Errorf("totals: got %+v", work.Totals)
	}
	if work.Labels == nil || work.Sections == nil {
		t.Error("labels and sections must encode as arrays, not null")
	}
	if got := projectIDs(work.Projects); !equalStrings(got, []string{"p1", "p2", "p3"}) {
		t.Errorf("projects: got %v", got)
	}
	for _, p := range work.Projects {
		if p.SourceID != "work" || len(p.Diagnostics) == 0 {
			t.Errorf("project %s: sourceId %q, %d diagnostics", p.ID, p.SourceID, len(p.Diagnostics))
		}
	}
}

func TestGetSource_Found(t *testing.T) {
	rr := get(t, newHandler(newStore(fixture()...), nil), "/api/v1/sources/home")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp api.SourceResponse
	decode(t, rr, &resp)
	if resp.SourceID != "home" || len(resp.Projects) != 2 {
		t.Errorf("got %s with %d projects", resp.SourceID, len(resp.Projects))
	}
}

func TestGetSource_NotFound(t *testing.T) {
	rr := get(t, newHandler(newStore(), nil), "/api/v1/sources/missing")
	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rr.Code)
	}
}

// --- /api/v1/projects -------------------------------------------------------

func TestListProjects_All(t *testing.T) {
	var resp []api.ProjectResponse
	decode(t, get(t, newHandler(newStore(fixture()...), nil), "/api/v1/projects"), &resp)

	if got := projectIDs(resp); !equalStrings(got, []string{"h1", "h2", "p1", "p2", "p3"}) {
		t.Errorf("projects: got %v", got)
	}
}

func TestListProjects_StatusFilter(t *testing.T) {
	h := newHandler(newStore(fixture()...), nil)

	var resp []api.ProjectResponse
	decode(t, get(t, h, "/api/v1/projects?status=critical"), &resp)
	if got := projectIDs(resp); !equalStrings(got, []string{"h1"}) {
		t.Errorf("critical: got %v, want [h1]", got)
	}

	rr := get(t, h, "/api/v1/projects?status=blocked")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unknown status: got %d, want 400", rr.Code)
	}
}

func TestListProjects_SourceFilter(t *testing.T) {
	var resp []api.ProjectResponse
	decode(t, get(t, newHandler(newStore(fixture()...), nil), "/api/v1/projects?source=home"), &resp)
	if got := projectIDs(resp); !equalStrings(got, []string{"h1", "h2"}) {
		t.Errorf("home: got %v", got)
	}
}

func TestGetProject(t *testing.T) {
	st := newStore(append(fixture(), rollup("zz", types.ProjectSummary{ID: "p1", Name: "Other"}))...)
	h := newHandler(st, nil)

	var p api.ProjectResponse
	decode(t, get(t, h, "/api/v1/projects/p1"), &p)
	if p.SourceID != "work" || p.Name != "Launch" {
		t.Errorf("p1: got %s/%s, want work/Launch", p.SourceID, p.Name)
	}
	if p.OverdueCount != 1 || p.HealthStatus != types.StatusWatch {
		t.Errorf("p1 summary fields not inlined: %+v", p.ProjectSummary)
	}

	decode(t, get(t, h, "/api/v1/projects/p1?source=zz"), &p)
	if p.Name != "Other" {
		t.Errorf("p1 from zz: got %q, want Other", p.Name)
	}

	if rr := get(t, h, "/api/v1/projects/nope"); rr.Code != http.StatusNotFound {
		t.Errorf("missing project: got %d, want 404", rr.Code)
	}
}

// --- /api/v1/totals ---------------------------------------------------------

func TestTotals(t *testing.T) {
	var resp api.TotalsResponse
	decode(t, get(t, newHandler(newStore(fixture()...), nil), "/api/v1/totals"), &resp)

	want := types.Totals{ActiveCount: 9, OverdueCount: 4, DueSoonCount: 2, CompletedThisWeek: 6}
	if resp.Totals != want {
		t.Errorf("totals: got %+v, want %+v", resp.Totals, want)
	}
	if resp.SourceCount != 2 || resp.ProjectCount != 5 {
		t.Errorf("counts: got %d/%d, want 2/5", resp.SourceCount, resp.ProjectCount)
	}
}

// --- /api/v1/board ----------------------------------------------------------

func TestBoard(t *testing.T) {
	var resp api.BoardResponse
	decode(t, get(t, newHandler(newStore(fixture()...), nil), "/api/v1/board"), &resp)

	if len(resp.Columns) != 3 {
		t.Fatalf("columns: got %d, want 3", len(resp.Columns))
	}
	want := map[types.Lane][]string{
		types.LaneBacklog:    {},
		types.LaneInProgress: {"h1", "p1", "p2"},
		types.LaneDone:       {"h2", "p3"},
	}
	for i, lane := range types.Lanes {
		col := resp.Columns[i]
		if col.Lane != lane {
			t.Errorf("column %d: got %s, want %s", i, col.Lane, lane)
		}
		if got := projectIDs(col.Projects); !equalStrings(got, want[lane]) {
			t.Errorf("%s: got %v, want %v", lane, got, want[lane])
		}
	}
}

// --- /api/v1/timeline -------------------------------------------------------

func TestTimeline_DefaultMonth(t *testing.T) {
	var resp api.TimelineResponse
	decode(t, get(t, newHandler(newStore(fixture()...), nil), "/api/v1/timeline"), &resp)

	if resp.Zoom != "month" {
		t.Errorf("zoom: got %q, want month", resp.Zoom)
	}
	if resp.Start != "2026-10-01T00:00:00Z" || resp.End != "2027-04-01T00:00:00Z" {
		t.Errorf("window: got %s .. %s", resp.Start, resp.End)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("items: got %d, want 2 (h1, p1)", len(resp.Items))
	}
	h1, p1 := resp.Items[0], resp.Items[1]
	if h1.ProjectID != "h1" || p1.ProjectID != "p1" {
		t.Fatalf("items: got %s, %s", h1.ProjectID, p1.ProjectID)
	}
	if !p1.Overdue || !h1.Overdue {
		t.Error("both projects have an earliest due in the past and should be overdue")
	}
	// 182 days in the window; p1 runs from day 9 to day 45.
	if math.Abs(p1.StartOffset-9.0/182*100) > 1e-9 || math.Abs(p1.EndOffset-45.0/182*100) > 1e-9 {
		t.Errorf("p1 offsets: got %v..%v", p1.StartOffset, p1.EndOffset)
	}
	if h1.StartOffset != 0 {
		t.Errorf("h1 start offset: got %v, want 0", h1.StartOffset)
	}
}

func TestTimeline_Windows(t *testing.T) {
	h := newHandler(newStore(), nil)
	tests := []struct {
		zoom, start, end string
	}{
		{"week", "2026-10-19T00:00:00Z", "2026-11-30T00:00:00Z"},
		{"month", "2026-10-01T00:00:00Z", "2027-04-01T00:00:00Z"},
		{"quarter", "2026-10-01T00:00:00Z", "2027-10-01T00:00:00Z"},
	}
	for _, tc := range tests {
		var resp api.TimelineResponse
		decode(t, get(t, h, "/api/v1/timeline?zoom="+tc.zoom), &resp)
		if resp.Start != tc.start || resp.End != tc.end {
			t.Errorf("%s: got %s .. %s, want %s .. %s", tc.zoom, resp.Start, resp.End, tc.start, tc.end)
		}
		if resp.Items == nil {
			t.Errorf("%s: items must be an empty array", tc.zoom)
		}
	}

	if rr := get(t, h, "/api/v1/timeline?zoom=year"); rr.Code != http.StatusBadRequest {
		t.Errorf("unknown zoom: got %d, want 400", rr.Code)
	}
}

// --- /api/v1/alerts ---------------------------------------------------------

func TestAlerts_NoEngine_ReturnsEmptyArray(t *testing.T) {
	rr := get(t, newHandler(newStore(), nil), "/api/v1/alerts")
	if body := rr.Body.String(); body != "[]\n" {
		t.Errorf("body: got %q, want []", body)
	}
}

func TestAlerts_ListsFiring(t *testing.T) {
	al, err := alerts.New(config.AlertsConfig{Rules: []config.AlertRule{
		{Name: "overdue", Condition: "overdue_count >= 1", Severity: "warning"},
	}})
	if err != nil {
		t.Fatalf("alerts.New: %v", err)
	}
	rs := fixture()
	for _, r := range rs {
		al.Evaluate(r)
	}

	var resp []alerts.Alert
	decode(t, get(t, newHandler(newStore(rs...), al), "/api/v1/alerts"), &resp)
	if len(resp) != 2 {
		t.Fatalf("alerts: got %d, want 2", len(resp))
	}
	for _, a := range resp {
		if a.State != alerts.StateFiring || (a.ProjectID != "p1" && a.ProjectID != "h1") {
			t.Errorf("unexpected alert %+v", a)
		}
	}
}

// --- /api/v1/snapshot -------------------------------------------------------

func TestSnapshot_Empty(t *testing.T) {
	var resp api.SnapshotResponse
	decode(t, get(t, newHandler(newStore(), nil), "/api/v1/snapshot"), &resp)

	if resp.Sources == nil || len(resp.Sources) != 0 {
		t.Errorf("sources: got %v, want empty array", resp.Sources)
	}
	if resp.GeneratedAt != "2026-10-21T12:00:00Z" {
		t.Errorf("generatedAt: got %q", resp.GeneratedAt)
	}
	if resp.Version != 0 {
		t.Errorf("version: got %d, want 0", resp.Version)
	}
}

func TestSnapshot_AllLiveSources(t *testing.T) {
	var resp api.SnapshotResponse
	decode(t, get(t, newHandler(newStore(fixture()...), nil), "/api/v1/snapshot"), &resp)

	if len(resp.Sources) != 2 {
		t.Errorf("sources: got %d, want 2", len(resp.Sources))
	}
	if resp.Totals.ActiveCount != 9 || resp.Totals.OverdueCount != 4 {
		t.Errorf("totals: got %+v", resp.Totals)
	}
	if resp.Version != 2 {
		t.Errorf("version: got %d, want 2", resp.Version)
	}
}

func TestContentTypeJSON(t *testing.T) {
	h := newHandler(newStore(fixture()...), nil)
	paths := []string{
		"/api/v1/health",
		"/api/v1/sources",
		"/api/v1/projects",
		"/api/v1/totals",
		"/api/v1/board",
		"/api/v1/timeline",
		"/api/v1/alerts",
		"/api/v1/snapshot",
	}
	for _, p := range paths {
		rr := get(t, h, p)
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("%s Content-Type: got %q, want application/json", p, ct)
		}
		if rr.Code != http.StatusOK {
			t.Errorf("%s status: got %d, want 200", p, rr.Code)
		}
	}
}
