package models

import (
	"time"

	"buildtrack/internal/date"
)

// Project describes a construction project whose tasks are scheduled on the timeline.
type Project struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Color     string     `json:"color"`
	StartDate *date.Date `json:"start_date,omitempty"`
	EndDate   *date.Date `json:"end_date,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Task statuses.
const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusBlocked    = "blocked"
)

// Task priorities.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Task represents a schedulable unit of work.
type Task struct {
	ID             int64      `json:"id"`
	ProjectID      int64      `json:"project_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Status         string     `json:"status"`
	Priority       string     `json:"priority"`
	Progress       int        `json:"progress"`
	Category       string     `json:"category,omitempty"`
	Assignee       string     `json:"assignee,omitempty"`
	StartDate      *date.Date `json:"start_date,omitempty"`
	DueDate        *date.Date `json:"due_date,omitempty"`
	EstimatedHours *float64   `json:"estimated_hours,omitempty"`
	DependsOn      []int64    `json:"depends_on,omitempty"`
	Position       int64      `json:"position"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ValidTaskStatuses enumerates the supported task statuses.
var ValidTaskStatuses = map[string]struct{}{
	StatusNotStarted: {},
	StatusInProgress: {},
	StatusCompleted:  {},
	StatusBlocked:    {},
}

// ValidTaskPriorities enumerates the supported task priorities.
var ValidTaskPriorities = map[string]struct{}{
	PriorityLow:      {},
	PriorityMedium:   {},
	PriorityHigh:     {},
	PriorityCritical: {},
}

// Fields snapshots the schedulable fields of the task.
func (t Task) Fields() TaskFields {
	f := TaskFields{
		Status:   &t.Status,
		Progress: &t.Progress,
	}
	if t.StartDate != nil {
		f.StartDate = date.Ptr(*t.StartDate)
	} else {
		f.ClearStart = true
	}
	if t.DueDate != nil {
		f.DueDate = date.Ptr(*t.DueDate)
	} else {
		f.ClearDue = true
	}
	return f
}

// TaskFields is a partial update of a task. Nil fields are left untouched;
// ClearStart/ClearDue remove a date so "no date" snapshots can be replayed.
type TaskFields struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Status      *string    `json:"status,omitempty"`
	Priority    *string    `json:"priority,omitempty"`
	Progress    *int       `json:"progress,omitempty"`
	Category    *string    `json:"category,omitempty"`
	Assignee    *string    `json:"assignee,omitempty"`
	StartDate   *date.Date `json:"start_date,omitempty"`
	DueDate     *date.Date `json:"due_date,omitempty"`
	ClearStart  bool       `json:"clear_start,omitempty"`
	ClearDue    bool       `json:"clear_due,omitempty"`
	DependsOn   *[]int64   `json:"depends_on,omitempty"`
}

// Apply returns a copy of t with the non-nil fields of f applied.
func (f TaskFields) Apply(t Task) Task {
	if f.Title != nil {
		t.Title = *f.Title
	}
	if f.Description != nil {
		t.Description = *f.Description
	}
	if f.Status != nil {
		t.Status = *f.Status
	}
	if f.Priority != nil {
		t.Priority = *f.Priority
	}
	if f.Progress != nil {
		t.Progress = *f.Progress
	}
	if f.Category != nil {
		t.Category = *f.Category
	}
	if f.Assignee != nil {
		t.Assignee = *f.Assignee
	}
	if f.ClearStart {
		t.StartDate = nil
	}
	if f.StartDate != nil {
		t.StartDate = date.Ptr(*f.StartDate)
	}
	if f.ClearDue {
		t.DueDate = nil
	}
	if f.DueDate != nil {
		t.DueDate = date.Ptr(*f.DueDate)
	}
	if f.DependsOn != nil {
		t.DependsOn = append([]int64(nil), (*f.DependsOn)...)
	}
	return t
}

// Capture returns t's current values for the fields f sets. Applying the
// result to a task restores those fields to their state in t.
func (f TaskFields) Capture(t Task) TaskFields {
	var c TaskFields
	if f.Title != nil {
		c.Title = &t.Title
	}
	if f.Description != nil {
		c.Description = &t.Description
	}
	if f.Status != nil {
		c.Status = &t.Status
	}
	if f.Priority != nil {
		c.Priority = &t.Priority
	}
	if f.Progress != nil {
		c.Progress = &t.Progress
	}
	if f.Category != nil {
		c.Category = &t.Category
	}
	if f.Assignee != nil {
		c.Assignee = &t.Assignee
	}
	if f.StartDate != nil || f.ClearStart {
		if t.StartDate != nil {
			c.StartDate = date.Ptr(*t.StartDate)
		} else {
			c.ClearStart = true
		}
	}
	if f.DueDate != nil || f.ClearDue {
		if t.DueDate != nil {
			c.DueDate = date.Ptr(*t.DueDate)
		} else {
			c.ClearDue = true
		}
	}
	if f.DependsOn != nil {
		deps := append([]int64{}, t.DependsOn...)
		c.DependsOn = &deps
	}
	return c
}

// Empty reports whether f changes nothing.
func (f TaskFields) Empty() bool {
	return f.Title == nil && f.Description == nil && f.Status == nil && f.Priority == nil &&
		f.Progress == nil && f.Category == nil && f.Assignee == nil && f.StartDate == nil &&
		f.DueDate == nil && !f.ClearStart && !f.ClearDue && f.DependsOn == nil
}

// Milestone is a dated project checkpoint shown as a timeline marker.
type Milestone struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"project_id"`
	Title     string    `json:"title"`
	Date      date.Date `json:"date"`
	Priority  string    `json:"priority"`
	Completed bool      `json:"completed"`
}

// Weather severities.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeveritySevere  = "severe"
)

// WeatherEvent is a forecast or recorded weather alert affecting site work.
type WeatherEvent struct {
	ID          int64     `json:"id"`
	ProjectID   int64     `json:"project_id"`
	Date        date.Date `json:"date"`
	Severity    string    `json:"severity"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
}

// Preferences are the persisted timeline panel settings.
type Preferences struct {
	PanelWidth int  `json:"panel_width"`
	Collapsed  bool `json:"collapsed"`
}
