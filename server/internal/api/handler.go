package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/tallyhq/tally/pkg/types"
	"github.com/tallyhq/tally/server/internal/alerts"
	"github.com/tallyhq/tally/server/internal/store"
)

// Handler is the HTTP handler for all /api/v1/* endpoints.
// It reads rollups from the store and returns JSON responses.
type Handler struct {
	store  *store.Store
	alerts *alerts.Engine
	now    func() time.Time
	mux    *http.ServeMux
}

// Option configures a Handler.
type Option func(*Handler)

// WithClock overrides the clock used for ages, diagnostics and the timeline.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// New creates a Handler wired to the given rollup store and alert engine and
// registers all routes. al may be nil.
func New(st *store.Store, al *alerts.Engine, opts ...Option) http.Handler {
	h := &Handler{store: st, alerts: al, now: time.Now, mux: http.NewServeMux()}
	for _, o := range opts {
		o(h)
	}

	h.mux.HandleFunc("/api/v1/health", h.get(h.health))
	h.mux.HandleFunc("/api/v1/sources", h.get(h.listSources))
	h.mux.HandleFunc("/api/v1/sources/", h.get(h.getSource)) // subtree, extracts {id}
	h.mux.HandleFunc("/api/v1/projects", h.get(h.listProjects))
	h.mux.HandleFunc("/api/v1/projects/", h.get(h.getProject)) // subtree, extracts {id}
	h.mux.HandleFunc("/api/v1/totals", h.get(h.totals))
	h.mux.HandleFunc("/api/v1/board", h.get(h.board))
	h.mux.HandleFunc("/api/v1/timeline", h.get(h.timeline))
	h.mux.HandleFunc("/api/v1/alerts", h.get(h.listAlerts))
	h.mux.HandleFunc("/api/v1/snapshot", h.get(h.snapshot))

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// get rejects every method but GET with 405.
func (h *Handler) get(fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		fn(w, r)
	}
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health: overall score and per-status counts.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	entries := h.store.List()
	resp := HealthResponse{
		SourceCount: len(entries),
		AlertCount:  h.firingCount(),
	}

	if len(entries) == 0 {
		resp.State = "unknown"
		jsonResp(w, http.StatusOK, resp)
		return
	}

	var totalScore float64
	var scored int
	for _, e := range entries {
		for _, p := range e.Rollup.Projects {
			resp.ProjectCount++
			switch p.HealthStatus {
			case types.StatusHealthy:
				resp.HealthyCount++
			case types.StatusWatch:
				resp.WatchCount++
			case types.StatusCritical:
				resp.CriticalCount++
			case types.StatusDone:
				resp.DoneCount++
			default:
				resp.IdleCount++
			}
			if p.ActiveCount > 0 {
				totalScore += p.HealthScore
				scored++
			}
		}
	}

	resp.OverallScore = 100
	if scored > 0 {
		resp.OverallScore = totalScore / float64(scored)
	}
	resp.State = stateFromScore(resp.OverallScore)
	jsonResp(w, http.StatusOK, resp)
}

// listSources returns GET /api/v1/sources: all live rollups.
func (h *Handler) listSources(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	entries := h.store.List()
	out := make([]SourceResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toSourceResponse(e, now))
	}
	jsonResp(w, http.StatusOK, out)
}

// getSource returns GET /api/v1/sources/{id}: a single live rollup.
func (h *Handler) getSource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/sources/")
	if id == "" {
		h.listSources(w, r)
		return
	}

	e, ok := h.liveEntry(id)
	if !ok {
		jsonErr(w, http.StatusNotFound, "source not found")
		return
	}
	jsonResp(w, http.StatusOK, toSourceResponse(e, h.now()))
}

// listProjects returns GET /api/v1/projects across all live sources,
// optionally filtered by ?status= and ?source=.
func (h *Handler) listProjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := types.HealthStatus(q.Get("status"))
	if status != "" && !status.Valid() {
		jsonErr(w, http.StatusBadRequest, "unknown status "+string(status))
		return
	}
	source := q.Get("source")

	out := make([]ProjectResponse, 0)
	for _, p := range h.allProjects() {
		if status != "" && p.HealthStatus != status {
			continue
		}
		if source != "" && p.SourceID != source {
			continue
		}
		out = append(out, p)
	}
	jsonResp(w, http.StatusOK, out)
}

// getProject returns GET /api/v1/projects/{id}. When several sources carry
// the same project id, ?source= picks one; otherwise the first source in
// source id order wins.
func (h *Handler) getProject(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/projects/")
	if id == "" {
		h.listProjects(w, r)
		return
	}
	source := r.URL.Query().Get("source")

	for _, p := range h.allProjects() {
		if p.ID == id && (source == "" || p.SourceID == source) {
			jsonResp(w, http.StatusOK, p)
			return
		}
	}
	jsonErr(w, http.StatusNotFound, "project not found")
}

// totals returns GET /api/v1/totals summed over live sources.
func (h *Handler) totals(w http.ResponseWriter, r *http.Request) {
	entries := h.store.List()
	resp := TotalsResponse{SourceCount: len(entries)}
	for _, e := range entries {
		resp.Totals.Merge(e.Rollup.Totals)
		resp.ProjectCount += len(e.Rollup.Projects)
	}
	jsonResp(w, http.StatusOK, resp)
}

// board returns GET /api/v1/board: projects grouped by default lane.
func (h *Handler) board(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, buildBoard(h.allProjects()))
}

// timeline returns GET /api/v1/timeline?zoom=week|month|quarter.
func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	zoom := r.URL.Query().Get("zoom")
	if zoom == "" {
		zoom = ZoomMonth
	}
	resp, err := buildTimeline(h.allProjects(), zoom, h.now())
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, resp)
}

// listAlerts returns GET /api/v1/alerts: firing and recently resolved alerts.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if h.alerts == nil {
		jsonResp(w, http.StatusOK, []*alerts.Alert{})
		return
	}
	jsonResp(w, http.StatusOK, h.alerts.Active())
}

// snapshot returns GET /api/v1/snapshot: full JSON dump of all live rollups.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, BuildSnapshot(h.store, h.now()))
}

// --- helpers ----------------------------------------------------------------

// BuildSnapshot assembles the snapshot payload from the live store entries.
// It is shared by the REST API and the websocket hub.
func BuildSnapshot(st *store.Store, now time.Time) SnapshotResponse {
	entries := st.List()
	resp := SnapshotResponse{
		Sources:     make([]SourceResponse, 0, len(entries)),
		GeneratedAt: now.UTC().Format(time.RFC3339),
		Version:     st.Version(),
	}
	for _, e := range entries {
		resp.Sources = append(resp.Sources, toSourceResponse(e, now))
		resp.Totals.Merge(e.Rollup.Totals)
	}
	return resp
}

// liveEntry returns the entry for id unless it is missing or past the TTL.
func (h *Handler) liveEntry(id string) (*store.Entry, bool) {
	e, ok := h.store.Get(id)
	if !ok || time.Since(e.UpdatedAt) > h.store.TTL() {
		return nil, false
	}
	return e, true
}

// allProjects flattens the projects of every live source, in source id order
// and then rollup order.
func (h *Handler) allProjects() []ProjectResponse {
	now := h.now()
	var out []ProjectResponse
	for _, e := range h.store.List() {
		out = append(out, toProjectResponses(e.Rollup.SourceID, e.Rollup.Projects, now)...)
	}
	return out
}

func (h *Handler) firingCount() int {
	if h.alerts == nil {
		return 0
	}
	return h.alerts.FiringCount()
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

// stateFromScore converts a 0-100 score to a health state string.
// Mirrors the thresholds in agent/internal/compute.
func stateFromScore(score float64) string {
	switch {
	case score >= 75:
		return string(types.StatusHealthy)
	case score >= 45:
		return string(types.StatusWatch)
	default:
		return string(types.StatusCritical)
	}
}

func toProjectResponses(sourceID string, projects []types.ProjectSummary, now time.Time) []ProjectResponse {
	out := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, ProjectResponse{
			SourceID:       sourceID,
			ProjectSummary: p,
			Diagnostics:    computeDiagnostics(p, now),
		})
	}
	return out
}

// toSourceResponse maps a store.Entry to its JSON representation.
func toSourceResponse(e *store.Entry, now time.Time) SourceResponse {
	r := e.Rollup
	labels := r.Labels
	if labels == nil {
		labels = []types.Label{}
	}
	sections := r.Sections
	if sections == nil {
		sections = []types.Section{}
	}
	return SourceResponse{
		SourceID:    r.SourceID,
		RunID:       r.RunID,
		GeneratedAt: r.GeneratedAt.UTC().Format(time.RFC3339),
		LastSeen:    e.UpdatedAt.UTC().Format(time.RFC3339),
		AgeSeconds:  e.Age(now).Seconds(),
		Totals:      r.Totals,
		Completed:   r.Completed,
		Projects:    toProjectResponses(r.SourceID, r.Projects, now),
		Labels:      labels,
		Sections:    sections,
	}
}
