package gantt

import (
	"sort"
	"strings"

	"buildtrack/internal/config"
	"buildtrack/internal/models"
)

// Viewport is the slice of rows that must be rendered.
type Viewport struct {
	// Start is inclusive, End exclusive.
	Start       int  `json:"start"`
	End         int  `json:"end"`
	RowHeight   int  `json:"row_height"`
	TotalHeight int  `json:"total_height"`
	OffsetTop   int  `json:"offset_top"`
	Virtualized bool `json:"virtualized"`
}

// Window computes the rows visible at scrollTop plus a buffer on each
// side. Lists at or below the threshold are rendered whole. TotalHeight
// always covers every row so scrollbars stay proportional.
func Window(count, scrollTop, viewportHeight int, collapsed bool, cfg config.LayoutConfig) Viewport {
	rowHeight := cfg.ExpandedRowHeight
	if collapsed {
		rowHeight = cfg.CollapsedRowHeight
	}
	if count < 0 {
		count = 0
	}
	vp := Viewport{End: count, RowHeight: rowHeight, TotalHeight: count * rowHeight}
	if count <= cfg.VirtualizeThreshold || rowHeight <= 0 {
		return vp
	}

	maxScroll := vp.TotalHeight - viewportHeight
	if maxScroll < 0 {
		maxScroll = 0
	}
	scrollTop = min(max(scrollTop, 0), maxScroll)
	if viewportHeight < 0 {
		viewportHeight = 0
	}

	first := scrollTop / rowHeight
	last := (scrollTop + viewportHeight + rowHeight - 1) / rowHeight

	vp.Start = max(first-cfg.BufferRows, 0)
	vp.End = min(last+cfg.BufferRows, count)
	vp.OffsetTop = vp.Start * rowHeight
	vp.Virtualized = true
	return vp
}

// FilterOptions selects which tasks appear on the timeline. Empty fields
// do not filter.
type FilterOptions struct {
	Statuses   []string
	Priorities []string
	Assignee   string
	Category   string
	// Search is a case-insensitive substring match on title and description.
	Search string
}

// FilterTasks returns tasks matching every criterion.
func FilterTasks(tasks []models.Task, opts FilterOptions) []models.Task {
	var result []models.Task
	for _, t := range tasks {
		if matchesFilter(t, opts) {
			result = append(result, t)
		}
	}
	return result
}

func matchesFilter(t models.Task, opts FilterOptions) bool {
	if len(opts.Statuses) > 0 && !containsStr(opts.Statuses, t.Status) {
		return false
	}
	if len(opts.Priorities) > 0 && !containsStr(opts.Priorities, t.Priority) {
		return false
	}
	if opts.Assignee != "" && !strings.EqualFold(t.Assignee, opts.Assignee) {
		return false
	}
	if opts.Category != "" && !strings.EqualFold(t.Category, opts.Category) {
		return false
	}
	if opts.Search != "" {
		q := strings.ToLower(opts.Search)
		if !strings.Contains(strings.ToLower(t.Title), q) && !strings.Contains(strings.ToLower(t.Description), q) {
			return false
		}
	}
	return true
}

func containsStr(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Sort fields accepted by SortTasks.
const (
	SortPosition = "position"
	SortStart    = "start"
	SortDue      = "due"
	SortPriority = "priority"
	SortStatus   = "status"
	SortTitle    = "title"
	SortProgress = "progress"
)

var priorityRank = map[string]int{
	models.PriorityCritical: 0,
	models.PriorityHigh:     1,
	models.PriorityMedium:   2,
	models.PriorityLow:      3,
}

var statusRank = map[string]int{
	models.StatusInProgress: 0,
	models.StatusBlocked:    1,
	models.StatusNotStarted: 2,
	models.StatusCompleted:  3,
}

// SortTasks orders tasks in place by field, falling back to position then
// ID. Tasks without the sorted date go last in either direction.
func SortTasks(tasks []models.Task, field string, reverse bool) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if am, bm := missingDate(a, field), missingDate(b, field); am != bm {
			return bm
		}
		if c := compareTasks(a, b, field); c != 0 {
			if reverse {
				return c > 0
			}
			return c < 0
		}
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return a.ID < b.ID
	})
}

func missingDate(t models.Task, field string) bool {
	switch field {
	case SortStart:
		return t.StartDate == nil
	case SortDue:
		return t.DueDate == nil
	}
	return false
}

func compareTasks(a, b models.Task, field string) int {
	switch field {
	case SortStart:
		if a.StartDate != nil && b.StartDate != nil {
			return a.StartDate.Compare(b.StartDate.Time)
		}
	case SortDue:
		if a.DueDate != nil && b.DueDate != nil {
			return a.DueDate.Compare(b.DueDate.Time)
		}
	case SortPriority:
		return rankDiff(priorityRank, a.Priority, b.Priority)
	case SortStatus:
		return rankDiff(statusRank, a.Status, b.Status)
	case SortTitle:
		return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	case SortProgress:
		return a.Progress - b.Progress
	}
	return 0
}

func rankDiff(rank map[string]int, a, b string) int {
	return rank[a] - rank[b]
}
