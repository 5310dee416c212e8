package todoist

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tallyhq/tally/agent/internal/config"
)

// fakeAPI serves a minimal Todoist v1 surface. Tasks are split over two
// cursor pages to exercise paging.
func fakeAPI(t *testing.T, token string) (*httptest.Server, *int32) {
	t.Helper()
	var taskPages int32

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/projects", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[
			{"id":"p1","name":"Launch","color":"berry_red","child_order":2},
			{"id":2,"name":"Offsite","parent_id":null,"child_order":1},
			{"id":"p3","name":"Nested","parent_id":"p1","order":7}
		],"next_cursor":null}`))
	})
	mux.HandleFunc("/api/v1/tasks", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&taskPages, 1)
		if r.URL.Query().Get("cursor") == "" {
			w.Write([]byte(`{"results":[
				{"id":"t1","project_id":"p1","content":"a","added_at":"2026-10-15T09:00:00Z",
				 "due":{"date":"2026-10-20","datetime":null,"timezone":null,"is_recurring":false,"string":"tomorrow"}}
			],"next_cursor":"page2"}`))
			return
		}
		w.Write([]byte(`{"results":[
			{"id":"t2","project_id":2,"content":"b","created_at":"2026-10-01T09:00:00Z",
			 "due":{"date":"2026-10-10","datetime":"2026-10-10T14:00:00","timezone":"Europe/Berlin","is_recurring":true}},
			{"id":"t3","project_id":"p1","content":"c"}
		],"next_cursor":null}`))
	})
	mux.HandleFunc("/api/v1/labels", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"id":"l1","name":"urgent","color":"red","order":1,"is_favorite":true}]}`))
	})
	mux.HandleFunc("/api/v1/sections", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"id":"s1","project_id":"p1","name":"Docs","section_order":4}]}`))
	})
	mux.HandleFunc("/api/v1/tasks/completed/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"completed_count":5}`))
	})
	mux.HandleFunc("/api/v1/tasks/completed", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") != "0" {
			w.Write([]byte(`{"items":[{"task_id":"t9","project_id":"p1","completed_at":"2026-10-12T10:00:00Z"}]}`))
			return
		}
		w.Write([]byte(`{"items":[
			{"id":"c1","task_id":"t7","project_id":"p1","completed_at":"2026-10-19T08:00:00Z"},
			{"id":"c2","project_id":2,"completed_at":"2026-10-02T08:00:00Z"}
		]}`))
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &taskPages
}

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	t.Setenv("TEST_TODOIST_TOKEN", "secret-token")
	c, err := NewClient(config.Source{
		Type:           "todoist",
		Endpoint:       endpoint,
		TokenEnv:       "TEST_TODOIST_TOKEN",
		PageLimit:      1,
		CompletedBatch: 2,
		Timeout:        5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestClient_Fetch(t *testing.T) {
	srv, pages := fakeAPI(t, "secret-token")
	c := newTestClient(t, srv.URL+"/api/v1/")

	snap, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if got := atomic.LoadInt32(pages); got != 2 {
		t.Errorf("task pages fetched: got %d, want 2", got)
	}
	if len(snap.Projects) != 3 {
		t.Fatalf("projects: got %d, want 3", len(snap.Projects))
	}
	if p := snap.Projects[1]; p.ID != "2" || p.Order != 1 || p.ParentID != "" {
		t.Errorf("numeric-id project: got %+v", p)
	}
	if p := snap.Projects[2]; p.ParentID != "p1" || p.Order != 7 {
		t.Errorf("nested project: got %+v", p)
	}

	if len(snap.ActiveTasks) != 3 {
		t.Fatalf("active tasks: got %d, want 3", len(snap.ActiveTasks))
	}
	t1 := snap.ActiveTasks[0]
	if t1.Due == nil || t1.Due.Date != "2026-10-20" || t1.Due.Datetime != "" {
		t.Errorf("t1 due: got %+v", t1.Due)
	}
	t2 := snap.ActiveTasks[1]
	if t2.ProjectID != "2" || t2.CreatedAt != "2026-10-01T09:00:00Z" {
		t.Errorf("t2: got %+v", t2)
	}
	if t2.Due == nil || t2.Due.Datetime != "2026-10-10T14:00:00" || t2.Due.Timezone != "Europe/Berlin" || !t2.Due.IsRecurring {
		t.Errorf("t2 due: got %+v", t2.Due)
	}
	if t3 := snap.ActiveTasks[2]; t3.Due != nil || t3.CreatedAt != "2026-10-19T12:00:00Z" {
		t.Errorf("t3: got %+v (want fetch-time createdAt, nil due)", t3)
	}

	if len(snap.CompletedTasks) != 2 {
		t.Fatalf("completed: got %d, want 2", len(snap.CompletedTasks))
	}
	if c1 := snap.CompletedTasks[0]; c1.ID != "t7" || c1.ProjectID != "p1" {
		t.Errorf("c1: got %+v (task_id should win over id)", c1)
	}
	if snap.TotalCompleted != 5 || !snap.HasMoreCompleted {
		t.Errorf("paging: total=%d hasMore=%v, want 5/true", snap.TotalCompleted, snap.HasMoreCompleted)
	}
	if len(snap.Labels) != 1 || !snap.Labels[0].IsFavorite {
		t.Errorf("labels: got %+v", snap.Labels)
	}
	if len(snap.Sections) != 1 || snap.Sections[0].Order != 4 || snap.Sections[0].ProjectID != "p1" {
		t.Errorf("sections: got %+v", snap.Sections)
	}
}

func TestClient_Fetch_APIError(t *testing.T) {
	srv, _ := fakeAPI(t, "a-different-token")
	c := newTestClient(t, srv.URL+"/api/v1/")

	_, err := c.Fetch(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error: got %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusForbidden {
		t.Errorf("status: got %d, want 403", apiErr.StatusCode)
	}
}

func TestClient_CompletedBatch_Validation(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1/")

	if _, err := c.CompletedBatch(context.Background(), -1, 10); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("negative offset: got %v, want ErrInvalidArgument", err)
	}
	if _, err := c.CompletedBatch(context.Background(), 0, 0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("zero limit: got %v, want ErrInvalidArgument", err)
	}
}

func TestClient_CompletedBatch_MissingItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	if _, err := c.CompletedBatch(context.Background(), 0, 10); err == nil {
		t.Fatal("expected error when items is missing")
	}
}

func TestClient_LoadMore(t *testing.T) {
	srv, _ := fakeAPI(t, "secret-token")
	c := newTestClient(t, srv.URL+"/api/v1/")

	res, err := c.LoadMore(context.Background(), 2, 5)
	if err != nil {
		t.Fatalf("LoadMore: %v", err)
	}
	if len(res.NewTasks) != 1 || res.NewTasks[0].ID != "t9" {
		t.Errorf("new tasks: got %+v", res.NewTasks)
	}
	if res.Loaded != 3 || !res.HasMore || res.Total != 5 {
		t.Errorf("result: got %+v, want loaded=3 hasMore=true total=5", res)
	}

	c.maxTasks = 3
	res, err = c.LoadMore(context.Background(), 2, 5)
	if err != nil {
		t.Fatalf("LoadMore: %v", err)
	}
	if res.HasMore {
		t.Error("HasMore should be false once maxTasks is reached")
	}
}

func TestNewClient_MissingToken(t *testing.T) {
	t.Setenv("TEST_EMPTY_TOKEN", "")
	_, err := NewClient(config.Source{Endpoint: "https://example.com/", TokenEnv: "TEST_EMPTY_TOKEN"})
	if err == nil {
		t.Fatal("expected error for missing token")
	}
}

func TestFetchAllWithCursor_StopsOnRepeatedCursor(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) > 10 {
			t.Error("pager kept requesting the same cursor")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[{"id":"l1","name":"urgent"}],"next_cursor":"stuck"}`))
	}))
	t.Cleanup(srv.Close)
	c := newTestClient(t, srv.URL+"/api/v1/")

	labels, err := fetchAllWithCursor[apiLabel](context.Background(), c, "labels")
	if err != nil {
		t.Fatalf("fetchAllWithCursor: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("requests: got %d, want 2", got)
	}
	if len(labels) != 2 {
		t.Errorf("labels: got %d, want 2 (one per page)", len(labels))
	}
}
