package compute

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tallyhq/tally/agent/internal/todoist"
	"github.com/tallyhq/tally/pkg/types"
)

// Engine turns snapshots into rollups for one source account.
//
// All exported methods are safe for concurrent use.
type Engine struct {
	sourceID string

	mu   sync.RWMutex
	opts Options

	// newRunID is swapped in tests.
	newRunID func() string
}

// NewEngine returns an Engine that stamps rollups with sourceID.
func NewEngine(sourceID string, opts Options) *Engine {
	return &Engine{
		sourceID: sourceID,
		opts:     opts,
		newRunID: uuid.NewString,
	}
}

// SetOptions replaces the options used by subsequent Process calls.
func (e *Engine) SetOptions(opts Options) {
	e.mu.Lock()
	e.opts = opts
	e.mu.Unlock()
}

// Options returns the options currently in effect.
func (e *Engine) Options() Options {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.opts
}

// Process aggregates snap as of now. Labels and sections are passed
// through unchanged.
//
// now is passed explicitly so callers (and tests) control the clock. A nil
// snap is treated as an empty account.
func (e *Engine) Process(snap *todoist.Snapshot, now time.Time) *types.Rollup {
	if snap == nil {
		snap = &todoist.Snapshot{}
	}
	opts := e.Options()
	projects, totals := opts.Aggregate(snap.ActiveTasks, snap.CompletedTasks, snap.Projects, now)

	out := &types.Rollup{
		SourceID:    e.sourceID,
		RunID:       e.newRunID(),
		GeneratedAt: now.UTC(),
		Projects:    projects,
		Totals:      totals,
		Labels:      append([]types.Label{}, snap.Labels...),
		Sections:    append([]types.Section{}, snap.Sections...),
		Completed: types.CompletedPaging{
			Loaded:  len(snap.CompletedTasks),
			Total:   snap.TotalCompleted,
			HasMore: snap.HasMoreCompleted,
		},
	}

	slog.Debug("compute: rollup built",
		"source", e.sourceID,
		"run_id", out.RunID,
		"projects", len(projects),
		"active", totals.ActiveCount,
		"overdue", totals.OverdueCount,
	)
	return out
}
