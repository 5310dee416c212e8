package todoist

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tallyhq/tally/agent/internal/config"
)

// Source is anything that can produce a task snapshot.
type Source interface {
	Fetch(ctx context.Context) (*Snapshot, error)
}

// New returns the Source described by src.
func New(src config.Source) (Source, error) {
	switch src.Type {
	case "todoist":
		c, err := NewClient(src)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "file":
		return &FileSource{Path: src.Path}, nil
	default:
		return nil, fmt.Errorf("todoist: unsupported source type %q", src.Type)
	}
}

// FileSource reads a snapshot from a dashboard dataset file. The file is
// re-read on every Fetch so edits show up on the next poll.
type FileSource struct {
	Path string
}

// Fetch decodes the dataset at s.Path.
func (s *FileSource) Fetch(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("todoist: read dataset: %w", err)
	}
	return DecodeSnapshot(data)
}

// DecodeSnapshot parses a dashboard dataset document.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("todoist: parse dataset: %w", err)
	}
	snap.FetchedAt = time.Now()
	return &snap, nil
}
