package gantt

import (
	"fmt"
	"math"

	"buildtrack/internal/date"
	"buildtrack/internal/models"
)

// Row is one task line of the timeline.
type Row struct {
	Index     int         `json:"index"`
	Task      models.Task `json:"task"`
	Schedule  *Schedule   `json:"schedule,omitempty"`
	Bar       *Bar        `json:"bar,omitempty"`
	Selected  bool        `json:"selected,omitempty"`
	Saving    bool        `json:"saving,omitempty"`
	Dragging  bool        `json:"dragging,omitempty"`
	Conflicts int         `json:"conflicts,omitempty"`
}

// Column is a header cell of the timeline grid.
type Column struct {
	Label string    `json:"label"`
	Date  date.Date `json:"date"`
	Left  float64   `json:"left"`
	Width float64   `json:"width"`
}

// View is a read-only snapshot of the Gantt state.
type View struct {
	ProjectID   int64              `json:"project_id"`
	Mode        ViewMode           `json:"mode"`
	Range       Range              `json:"range"`
	Mobile      bool               `json:"mobile"`
	Today       Position           `json:"today"`
	Columns     []Column           `json:"columns"`
	Rows        []Row              `json:"rows"`
	Viewport    Viewport           `json:"viewport"`
	Markers     Result             `json:"markers"`
	Drag        *DragState         `json:"drag,omitempty"`
	History     HistorySummary     `json:"history"`
	Preferences models.Preferences `json:"preferences"`
	Selected    int64              `json:"selected,omitempty"`
	Unscheduled []int64            `json:"unscheduled,omitempty"`
}

// View returns the rows inside the scroll window plus everything needed
// to draw the timeline around them.
func (c *Controller) View(scrollTop, viewportHeight int) View {
	c.debouncer.Flush()

	c.mu.RLock()
	defer c.mu.RUnlock()
	rows := c.listedLocked()
	vp := Window(len(rows), scrollTop, viewportHeight, c.prefs.Collapsed, c.cfg.Layout)
	return c.viewLocked(rows, vp)
}

// ViewAll is View without virtualization.
func (c *Controller) ViewAll() View {
	c.debouncer.Flush()

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.viewAllLocked()
}

// ExportOptions is the viewport of a one-off export. A zero Mode keeps the
// current mode; a nil Range fits the scheduled tasks.
type ExportOptions struct {
	Mode      ViewMode
	Range     *Range
	Mobile    bool
	Filter    FilterOptions
	SortField string
	Reverse   bool
}

// Export renders every listed row for opts on a copy of the state. The
// interactive viewport, filter and drag session are left untouched.
func (c *Controller) Export(opts ExportOptions) View {
	c.mu.RLock()
	snap := &Controller{
		projectID:   c.projectID,
		deps:        c.deps,
		logger:      c.logger,
		cfg:         c.cfg,
		tasks:       c.tasks,
		mode:        c.mode,
		rng:         c.rng,
		rangeFixed:  opts.Range != nil,
		mobile:      opts.Mobile,
		selected:    c.selected,
		filter:      opts.Filter,
		sortField:   opts.SortField,
		sortReverse: opts.Reverse,
		sources:     c.sources,
		prefs:       c.prefs,
		saving:      map[int64]bool{},
		drag:        NewRescheduler(nil),
		history:     c.history,
		today:       c.today,
	}
	c.mu.RUnlock()

	if opts.Mode != "" {
		snap.mode = opts.Mode
	}
	if opts.Range != nil {
		snap.rng = *opts.Range
	}
	if snap.sortField == "" {
		snap.sortField = SortPosition
	}
	snap.debouncer = NewDebouncer(snap.cfg.Markers.DebounceDelay(), func() {})
	defer snap.debouncer.Stop()

	snap.rebuildLocked()
	snap.layout = Resolve(snap.markers, snap.mode, snap.mobile, snap.cfg.Markers)
	return snap.viewAllLocked()
}

func (c *Controller) viewAllLocked() View {
	rows := c.listedLocked()
	vp := Window(len(rows), 0, 0, c.prefs.Collapsed, c.cfg.Layout)
	vp.Start, vp.End, vp.OffsetTop, vp.Virtualized = 0, len(rows), 0, false
	return c.viewLocked(rows, vp)
}

func (c *Controller) listedLocked() []models.Task {
	tasks := FilterTasks(c.tasks, c.filter)
	SortTasks(tasks, c.sortField, c.sortReverse)
	return tasks
}

func (c *Controller) viewLocked(tasks []models.Task, vp Viewport) View {
	v := View{
		ProjectID:   c.projectID,
		Mode:        c.mode,
		Range:       c.rng,
		Mobile:      c.mobile,
		Today:       PositionOf(c.today(), c.rng, c.mode),
		Columns:     Columns(c.rng, c.mode),
		Rows:        make([]Row, 0, vp.End-vp.Start),
		Viewport:    vp,
		Markers:     c.layout,
		History:     c.history.Summary(false),
		Preferences: c.prefs,
		Selected:    c.selected,
	}

	drag, dragging := c.drag.State()
	if dragging {
		v.Drag = &drag
	}

	conflicts := map[int64]int{}
	for _, m := range c.markers {
		if m.Type == MarkerResourceConflict {
			for _, id := range m.TaskIDs {
				conflicts[id]++
			}
		}
	}

	for _, t := range tasks {
		if _, ok := c.scheduled[t.ID]; !ok {
			v.Unscheduled = append(v.Unscheduled, t.ID)
		}
	}

	for i := vp.Start; i < vp.End; i++ {
		t := tasks[i]
		row := Row{
			Index:     i,
			Task:      t,
			Selected:  t.ID == c.selected,
			Saving:    c.saving[t.ID],
			Dragging:  dragging && drag.TaskID == t.ID,
			Conflicts: conflicts[t.ID],
		}
		if st, ok := c.scheduled[t.ID]; ok {
			s := st.Schedule
			if row.Dragging {
				s = Schedule{Start: drag.CandidateStart, Due: drag.CandidateDue, Derived: s.Derived}
			}
			bar := Span(s.Start, s.Due, c.rng, c.mode)
			row.Schedule, row.Bar = &s, &bar
		}
		v.Rows = append(v.Rows, row)
	}
	return v
}

// Columns returns the header cells for the range.
func Columns(r Range, mode ViewMode) []Column {
	units := int(r.Units(mode))
	cols := make([]Column, 0, units)
	width := 100 / float64(units)
	for i := 0; i < units; i++ {
		var d date.Date
		var label string
		switch mode {
		case ViewWeeks:
			d = r.Start.AddDays(7 * i)
			label = d.Short()
		case ViewMonths:
			d = r.Start.FirstOfMonth().AddMonths(i)
			label = d.Format("Jan 2006")
		default:
			d = r.Start.AddDays(i)
			label = fmt.Sprint(d.Day())
		}
		cols = append(cols, Column{Label: label, Date: d, Left: math.Round(float64(i)*width*1e6) / 1e6, Width: width})
	}
	return cols
}
