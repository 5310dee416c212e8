package todoist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/tallyhq/tally/agent/internal/config"
	"github.com/tallyhq/tally/pkg/types"
)

// DefaultMaxTasks caps how much completed-task history LoadMore will page
// through.
const DefaultMaxTasks = 1000

// ErrInvalidArgument is wrapped by errors caused by bad caller input.
var ErrInvalidArgument = errors.New("todoist: invalid argument")

// APIError is returned when the service answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Endpoint   string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("todoist: %s: %d %s: %s",
		e.Endpoint, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// Client talks to the Todoist REST API.
type Client struct {
	base           *url.URL
	http           *http.Client
	pageLimit      int
	completedBatch int
	maxTasks       int
	now            func() time.Time
}

// NewClient builds a Client for src. The API token is read from the
// environment variable named by src.TokenEnv.
func NewClient(src config.Source) (*Client, error) {
	base, err := url.Parse(src.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("todoist: parse endpoint %q: %w", src.Endpoint, err)
	}
	token := src.Token()
	if token == "" {
		return nil, fmt.Errorf("todoist: no API token in $%s", src.TokenEnv)
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	hc := oauth2.NewClient(context.Background(), ts)
	hc.Timeout = src.Timeout

	return &Client{
		base:           base,
		http:           hc,
		pageLimit:      src.PageLimit,
		completedBatch: src.CompletedBatch,
		maxTasks:       DefaultMaxTasks,
		now:            time.Now,
	}, nil
}

// Fetch retrieves a full snapshot: every project, active task, label and
// section, plus the first batch of completed tasks and the completed total.
func (c *Client) Fetch(ctx context.Context) (*Snapshot, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fetchedAt := c.now()
	var (
		projects []apiProject
		tasks    []apiTask
		labels   []apiLabel
		sections []apiSection
		total    int

		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	run := func(fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				errOnce.Do(func() {
					firstErr = err
					cancel()
				})
			}
		}()
	}

	run(func() (err error) { projects, err = fetchAllWithCursor[apiProject](ctx, c, "projects"); return })
	run(func() (err error) { tasks, err = fetchAllWithCursor[apiTask](ctx, c, "tasks"); return })
	run(func() (err error) { labels, err = fetchAllWithCursor[apiLabel](ctx, c, "labels"); return })
	run(func() (err error) { sections, err = fetchAllWithCursor[apiSection](ctx, c, "sections"); return })
	run(func() (err error) { total, err = c.completedCount(ctx); return })
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	completed, err := c.CompletedBatch(ctx, 0, c.completedBatch)
	if err != nil {
		return nil, err
	}

	stamp := fetchedAt.UTC().Format(time.RFC3339)
	snap := &Snapshot{
		ActiveTasks:      make([]RawTask, 0, len(tasks)),
		CompletedTasks:   completed,
		Projects:         make([]RawProject, 0, len(projects)),
		Labels:           make([]types.Label, 0, len(labels)),
		Sections:         make([]types.Section, 0, len(sections)),
		TotalCompleted:   total,
		HasMoreCompleted: len(completed) < min(total, c.maxTasks),
		FetchedAt:        fetchedAt,
	}
	for _, t := range tasks {
		snap.ActiveTasks = append(snap.ActiveTasks, t.raw(stamp))
	}
	for _, p := range projects {
		snap.Projects = append(snap.Projects, p.raw())
	}
	for _, l := range labels {
		snap.Labels = append(snap.Labels, l.label())
	}
	for _, s := range sections {
		snap.Sections = append(snap.Sections, s.section())
	}

	slog.Debug("todoist: snapshot fetched",
		"projects", len(snap.Projects),
		"active_tasks", len(snap.ActiveTasks),
		"completed_tasks", len(snap.CompletedTasks),
		"completed_total", total,
	)
	return snap, nil
}

// CompletedBatch returns up to limit completed tasks starting at offset.
func (c *Client) CompletedBatch(ctx context.Context, offset, limit int) ([]RawCompletedTask, error) {
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset must be a non-negative integer", ErrInvalidArgument)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be a positive integer", ErrInvalidArgument)
	}

	var page struct {
		Items *[]apiCompletedTask `json:"items"`
	}
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	if err := c.get(ctx, "tasks/completed", q, &page); err != nil {
		return nil, err
	}
	if page.Items == nil {
		return nil, fmt.Errorf("todoist: tasks/completed: invalid response: items is not an array")
	}

	out := make([]RawCompletedTask, 0, len(*page.Items))
	for _, t := range *page.Items {
		out = append(out, t.raw())
	}
	return out, nil
}

// LoadMoreResult is one further page of completed history.
type LoadMoreResult struct {
	NewTasks []RawCompletedTask
	HasMore  bool
	Total    int
	Loaded   int
}

// LoadMore fetches the next completed batch after offset, given the total
// reported by an earlier Fetch.
func (c *Client) LoadMore(ctx context.Context, offset, total int) (*LoadMoreResult, error) {
	tasks, err := c.CompletedBatch(ctx, offset, c.completedBatch)
	if err != nil {
		return nil, err
	}
	loaded := offset + len(tasks)
	return &LoadMoreResult{
		NewTasks: tasks,
		HasMore:  loaded < total && loaded < c.maxTasks,
		Total:    total,
		Loaded:   loaded,
	}, nil
}

func (c *Client) completedCount(ctx context.Context) (int, error) {
	var stats struct {
		CompletedCount *int `json:"completed_count"`
	}
	if err := c.get(ctx, "tasks/completed/stats", nil, &stats); err != nil {
		return 0, err
	}
	if stats.CompletedCount == nil {
		return 0, fmt.Errorf("todoist: tasks/completed/stats: invalid response: completed_count is not a number")
	}
	return *stats.CompletedCount, nil
}

type cursorPage[T any] struct {
	Results    []T     `json:"results"`
	NextCursor *string `json:"next_cursor"`
}

// fetchAllWithCursor follows next_cursor until the listing is exhausted.
func fetchAllWithCursor[T any](ctx context.Context, c *Client, endpoint string) ([]T, error) {
	var out []T
	cursor := ""
	for {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(c.pageLimit))
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		var page cursorPage[T]
		if err := c.get(ctx, endpoint, q, &page); err != nil {
			return nil, err
		}
		out = append(out, page.Results...)

		if page.NextCursor == nil || *page.NextCursor == "" {
			return out, nil
		}
		if *page.NextCursor == cursor {
			slog.Warn("todoist: server repeated next_cursor, stopping", "endpoint", endpoint, "cursor", cursor)
			return out, nil
		}
		cursor = *page.NextCursor
	}
}

// get performs a GET against endpoint and decodes the JSON body into v.
func (c *Client) get(ctx context.Context, endpoint string, q url.Values, v interface{}) error {
	u := c.base.JoinPath(endpoint)
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("todoist: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("todoist: GET %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &APIError{StatusCode: resp.StatusCode, Endpoint: endpoint, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("todoist: decode %s: %w", endpoint, err)
	}
	return nil
}
