package todoist

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/tallyhq/tally/pkg/types"
)

// Due is the due specification of an active task. Date is a calendar date
// ("2026-10-19"); Datetime, when set, is a full timestamp and wins over Date.
type Due struct {
	Date        string `json:"date"`
	Datetime    string `json:"datetime,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
	IsRecurring bool   `json:"isRecurring"`
	String      string `json:"string,omitempty"`
}

// RawTask is one active task.
type RawTask struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Content   string `json:"content,omitempty"`
	Due       *Due   `json:"due"`
	CreatedAt string `json:"createdAt"`
}

// RawCompletedTask is one completion event.
type RawCompletedTask struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	Content     string `json:"content,omitempty"`
	CompletedAt string `json:"completed_at"`
}

// RawProject is one project as listed by the service.
type RawProject struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Color    string `json:"color,omitempty"`
	ParentID string `json:"parentId,omitempty"`
	Order    int    `json:"order"`
}

// Snapshot is everything one fetch returned. Field names follow the
// dashboard dataset format so a Snapshot can be decoded straight from one.
type Snapshot struct {
	ActiveTasks    []RawTask          `json:"activeTasks"`
	CompletedTasks []RawCompletedTask `json:"allCompletedTasks"`
	Projects       []RawProject       `json:"projectData"`
	Labels         []types.Label      `json:"labels"`
	Sections       []types.Section    `json:"sections"`

	// TotalCompleted is the service-wide count of completed tasks.
	TotalCompleted int `json:"totalCompletedTasks"`
	// HasMoreCompleted is true when CompletedTasks is only the first page.
	HasMoreCompleted bool `json:"hasMoreTasks"`

	FetchedAt time.Time `json:"-"`
}

// flexID accepts both JSON strings and numbers; older API versions used
// numeric ids.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// --- wire formats -----------------------------------------------------------

type apiDue struct {
	Date        string  `json:"date"`
	Datetime    *string `json:"datetime"`
	Timezone    *string `json:"timezone"`
	IsRecurring bool    `json:"is_recurring"`
	String      string  `json:"string"`
}

type apiTask struct {
	ID        flexID  `json:"id"`
	ProjectID flexID  `json:"project_id"`
	Content   string  `json:"content"`
	AddedAt   string  `json:"added_at"`
	CreatedAt string  `json:"created_at"`
	Due       *apiDue `json:"due"`
}

type apiCompletedTask struct {
	ID          flexID `json:"id"`
	TaskID      flexID `json:"task_id"`
	ProjectID   flexID `json:"project_id"`
	Content     string `json:"content"`
	CompletedAt string `json:"completed_at"`
}

type apiProject struct {
	ID         flexID `json:"id"`
	Name       string `json:"name"`
	Color      string `json:"color"`
	ParentID   flexID `json:"parent_id"`
	ChildOrder *int   `json:"child_order"`
	Order      *int   `json:"order"`
}

type apiLabel struct {
	ID         flexID `json:"id"`
	Name       string `json:"name"`
	Color      string `json:"color"`
	Order      int    `json:"order"`
	IsFavorite bool   `json:"is_favorite"`
}

type apiSection struct {
	ID           flexID `json:"id"`
	ProjectID    flexID `json:"project_id"`
	Name         string `json:"name"`
	SectionOrder *int   `json:"section_order"`
	Order        *int   `json:"order"`
}

// raw converts the wire task. A task that carries neither added_at nor
// created_at is stamped with fetchedAt.
func (t apiTask) raw(fetchedAt string) RawTask {
	out := RawTask{
		ID:        string(t.ID),
		ProjectID: string(t.ProjectID),
		Content:   t.Content,
		CreatedAt: t.AddedAt,
	}
	if out.CreatedAt == "" {
		out.CreatedAt = t.CreatedAt
	}
	if out.CreatedAt == "" {
		out.CreatedAt = fetchedAt
	}
	if t.Due != nil {
		d := &Due{
			Date:        t.Due.Date,
			IsRecurring: t.Due.IsRecurring,
			String:      t.Due.String,
		}
		if t.Due.Datetime != nil {
			d.Datetime = *t.Due.Datetime
		}
		if t.Due.Timezone != nil {
			d.Timezone = *t.Due.Timezone
		}
		out.Due = d
	}
	return out
}

func (t apiCompletedTask) raw() RawCompletedTask {
	id := string(t.TaskID)
	if id == "" {
		id = string(t.ID)
	}
	return RawCompletedTask{
		ID:          id,
		ProjectID:   string(t.ProjectID),
		Content:     t.Content,
		CompletedAt: t.CompletedAt,
	}
}

func (p apiProject) raw() RawProject {
	return RawProject{
		ID:       string(p.ID),
		Name:     p.Name,
		Color:    p.Color,
		ParentID: string(p.ParentID),
		Order:    firstInt(p.ChildOrder, p.Order),
	}
}

func (l apiLabel) label() types.Label {
	return types.Label{
		ID:         string(l.ID),
		Name:       l.Name,
		Color:      l.Color,
		Order:      l.Order,
		IsFavorite: l.IsFavorite,
	}
}

func (s apiSection) section() types.Section {
	return types.Section{
		ID:        string(s.ID),
		ProjectID: string(s.ProjectID),
		Name:      s.Name,
		Order:     firstInt(s.SectionOrder, s.Order),
	}
}

func firstInt(vals ...*int) int {
	for _, v := range vals {
		if v != nil {
			return *v
		}
	}
	return 0
}
