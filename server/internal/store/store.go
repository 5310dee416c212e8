package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/tallyhq/tally/pkg/types"
)

// PutResult says what Put did with a rollup.
type PutResult int

const (
	// Inserted means the source had no entry yet.
	Inserted PutResult = iota
	// Replaced means the rollup replaced the source's previous one.
	Replaced
	// Superseded means the store already holds a rollup generated later than
	// the one offered, which was dropped.
	Superseded
)

func (r PutResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case Replaced:
		return "replaced"
	case Superseded:
		return "superseded"
	}
	return "unknown"
}

// Entry is a rollup together with the time it was last received.
type Entry struct {
	Rollup    *types.Rollup
	UpdatedAt time.Time
}

// Age returns how long ago the entry was received, relative to now.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.UpdatedAt)
}

func (e *Entry) liveAt(now time.Time, ttl time.Duration) bool {
	return e.UpdatedAt.After(now.Add(-ttl))
}

// Store keeps the latest rollup per source id. Sources that stop reporting
// for longer than the TTL are hidden from List and later evicted by Run.
type Store struct {
	mu      sync.RWMutex
	sources map[string]*Entry
	version uint64
	ttl     time.Duration
	now     func() time.Time
}

// New creates a Store with the given TTL.
func New(ttl time.Duration) *Store {
	return &Store{
		sources: make(map[string]*Entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// TTL returns the retention window.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Put records r as the latest rollup for r.SourceID. Agents retry failed
// sends, so a rollup may arrive after a newer one from the same source; such
// a rollup is dropped and Put reports Superseded together with the entry that
// was kept. Callers must not modify r after calling Put.
func (s *Store) Put(r *types.Rollup) (prev *Entry, res PutResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.sources[r.SourceID]
	switch {
	case !ok:
		res = Inserted
	case olderThan(r, prev.Rollup):
		return prev, Superseded
	default:
		res = Replaced
	}

	s.sources[r.SourceID] = &Entry{Rollup: r, UpdatedAt: s.now()}
	s.version++
	return prev, res
}

// olderThan reports whether a was generated strictly before b. Rollups
// without a generation time are never considered older.
func olderThan(a, b *types.Rollup) bool {
	if a.GeneratedAt.IsZero() || b.GeneratedAt.IsZero() {
		return false
	}
	return a.GeneratedAt.Before(b.GeneratedAt)
}

// Get returns the entry for sourceID, live or not.
func (s *Store) Get(sourceID string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sources[sourceID]
	return e, ok
}

// List returns the live entries ordered by source id.
func (s *Store) List() []*Entry {
	now := s.now()

	s.mu.RLock()
	out := make([]*Entry, 0, len(s.sources))
	for _, e := range s.sources {
		if e.liveAt(now, s.ttl) {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Rollup.SourceID < out[j].Rollup.SourceID
	})
	return out
}

// Count returns the number of entries held, stale ones included.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sources)
}

// Version increases every time the stored set changes.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Evict drops entries that are no longer live at now and returns the ids it
// removed, sorted.
func (s *Store) Evict(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var gone []string
	for id, e := range s.sources {
		if !e.liveAt(now, s.ttl) {
			delete(s.sources, id)
			gone = append(gone, id)
		}
	}
	if len(gone) > 0 {
		s.version++
		sort.Strings(gone)
	}
	return gone
}

// Run evicts stale entries every half TTL (at least once a second) until ctx
// is cancelled.
func (s *Store) Run(ctx context.Context) {
	t := time.NewTicker(max(s.ttl/2, time.Second))
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if gone := s.Evict(now); len(gone) > 0 {
				slog.Info("store: sources expired", "sources", gone, "ttl", s.ttl)
			}
		}
	}
}
