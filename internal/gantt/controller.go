package gantt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"buildtrack/internal/apperr"
	"buildtrack/internal/config"
	"buildtrack/internal/date"
	"buildtrack/internal/models"
)

// TaskSource is the task data feed.
type TaskSource interface {
	ListTasks(ctx context.Context, projectID int64) ([]models.Task, error)
}

// MarkerSource supplies the raw events shown as markers.
type MarkerSource interface {
	ListMilestones(ctx context.Context, projectID int64) ([]models.Milestone, error)
	ListWeatherEvents(ctx context.Context, projectID int64) ([]models.WeatherEvent, error)
}

// PreferenceStore persists panel preferences. Load never fails; missing
// or corrupt values come back as defaults.
type PreferenceStore interface {
	LoadPreferences(ctx context.Context, defaults models.Preferences) models.Preferences
	SavePreferences(ctx context.Context, prefs models.Preferences) error
}

// Deps are the collaborators of a Controller. Markers and Preferences
// may be nil.
type Deps struct {
	Tasks       TaskSource
	Updater     TaskUpdater
	Markers     MarkerSource
	Preferences PreferenceStore
	Rules       []Rule
}

// Controller owns the Gantt view state of one project. All mutations go
// through its transition methods; View hands out read-only snapshots.
type Controller struct {
	projectID int64
	deps      Deps
	logger    *slog.Logger

	mu          sync.RWMutex
	cfg         config.Config
	tasks       []models.Task
	scheduled   map[int64]ScheduledTask
	mode        ViewMode
	rng         Range
	rangeFixed  bool
	mobile      bool
	selected    int64
	filter      FilterOptions
	sortField   string
	sortReverse bool
	sources     MarkerSources
	markers     []Marker
	layout      Result
	prefs       models.Preferences
	saving      map[int64]bool
	replaying   bool

	drag      *Rescheduler
	history   *History
	debouncer *Debouncer
	today     func() date.Date
}

// NewController creates a controller for projectID. Call Refresh before
// the first View.
func NewController(projectID int64, deps Deps, cfg *config.Config, logger *slog.Logger) *Controller {
	mode, err := ParseViewMode(cfg.Timeline.DefaultView)
	if err != nil {
		mode = ViewDays
	}
	c := &Controller{
		projectID: projectID,
		deps:      deps,
		logger:    logger.With(slog.Int64("project_id", projectID)),
		cfg:       *cfg,
		scheduled: map[int64]ScheduledTask{},
		mode:      mode,
		sortField: SortPosition,
		prefs: models.Preferences{
			PanelWidth: cfg.Preferences.PanelWidth,
			Collapsed:  cfg.Preferences.Collapsed,
		},
		saving:  map[int64]bool{},
		drag:    NewRescheduler(deps.Rules),
		history: NewHistory(deps.Updater, cfg.History.MaxDepth),
		today:   date.Today,
		layout:  Result{Resolved: []Marker{}, Clusters: []CollisionGroup{}, Hidden: []Marker{}, Groups: []CollisionGroup{}},
	}
	c.debouncer = NewDebouncer(cfg.Markers.DebounceDelay(), c.recomputeLayout)
	if deps.Preferences != nil {
		c.prefs = c.clampPrefs(deps.Preferences.LoadPreferences(context.Background(), c.prefs))
	}
	return c
}

// ProjectID returns the project the controller serves.
func (c *Controller) ProjectID() int64 { return c.projectID }

// History exposes the undo stack.
func (c *Controller) History() *History { return c.history }

// Close stops pending background work.
func (c *Controller) Close() { c.debouncer.Stop() }

// Reconfigure applies new engine tuning, e.g. after a config reload.
func (c *Controller) Reconfigure(cfg *config.Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = *cfg
	c.debouncer.SetDelay(cfg.Markers.DebounceDelay())
	c.history.SetMaxDepth(cfg.History.MaxDepth)
	c.rebuildLocked()
}

// Refresh reloads tasks and marker sources.
func (c *Controller) Refresh(ctx context.Context) error {
	tasks, err := c.deps.Tasks.ListTasks(ctx, c.projectID)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	var src MarkerSources
	if c.deps.Markers != nil {
		if src.Milestones, err = c.deps.Markers.ListMilestones(ctx, c.projectID); err != nil {
			return fmt.Errorf("list milestones: %w", err)
		}
		if src.Weather, err = c.deps.Markers.ListWeatherEvents(ctx, c.projectID); err != nil {
			return fmt.Errorf("list weather events: %w", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = tasks
	c.sources = src
	c.rebuildLocked()
	c.logger.Debug("gantt refreshed", slog.Int("tasks", len(tasks)), slog.Int("markers", len(c.markers)))
	return nil
}

// SetViewport changes zoom, range and device class. A nil range fits the
// scheduled tasks.
func (c *Controller) SetViewport(mode ViewMode, rng *Range, mobile bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = mode
	c.mobile = mobile
	c.rangeFixed = rng != nil
	if rng != nil {
		c.rng = *rng
	}
	c.rebuildLocked()
}

// SetFilter changes which tasks are listed and their order.
func (c *Controller) SetFilter(opts FilterOptions, sortField string, reverse bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = opts
	if sortField == "" {
		sortField = SortPosition
	}
	c.sortField = sortField
	c.sortReverse = reverse
}

// Select marks a task as selected; 0 clears the selection.
func (c *Controller) Select(taskID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if taskID != 0 && c.findLocked(taskID) < 0 {
		return apperr.Newf(apperr.TaskNotFound, "task %d not found", taskID)
	}
	c.selected = taskID
	return nil
}

// StartDrag begins a drag of taskID.
func (c *Controller) StartDrag(taskID int64, handle Handle, p Pointer) (DragState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.findLocked(taskID) < 0 {
		return DragState{}, apperr.Newf(apperr.TaskNotFound, "task %d not found", taskID)
	}
	if c.saving[taskID] {
		return DragState{}, apperr.Newf(apperr.TaskBusy, "task %d is being saved", taskID)
	}
	st, ok := c.scheduled[taskID]
	if !ok {
		return DragState{}, apperr.Newf(apperr.TaskUnscheduled, "task %d has no dates or estimate to drag", taskID)
	}
	state, err := c.drag.Start(st, handle, p, DragContext{
		Range:   c.rng,
		Mode:    c.mode,
		Tasks:   c.scheduled,
		Markers: c.markers,
	})
	if err != nil {
		return DragState{}, err
	}
	c.selected = taskID
	c.logger.Debug("drag started", slog.Int64("task_id", taskID), slog.String("handle", string(handle)), slog.String("session", state.SessionID))
	return state, nil
}

// MoveDrag updates the drop preview for a pointer at x percent.
func (c *Controller) MoveDrag(x float64) (DragState, error) {
	return c.drag.Move(x)
}

// CancelDrag aborts the active drag without touching the task.
func (c *Controller) CancelDrag() (DragState, bool) {
	s, ok := c.drag.Cancel()
	if ok {
		c.logger.Debug("drag cancelled", slog.Int64("task_id", s.TaskID))
	}
	return s, ok
}

// DropResult is the outcome of a drop.
type DropResult struct {
	State   DragState      `json:"state"`
	Task    *models.Task   `json:"task,omitempty"`
	Action  *HistoryAction `json:"action,omitempty"`
	Applied bool           `json:"applied"`
}

// Drop ends the drag. Invalid candidates are rejected with DROP_REJECTED
// and leave the task untouched. Otherwise the new dates are applied
// optimistically and persisted; a failed update reverts the task.
func (c *Controller) Drop(ctx context.Context) (DropResult, error) {
	state, err := c.drag.Finish()
	if err != nil {
		return DropResult{}, err
	}
	res := DropResult{State: state}

	if state.Validity == Invalid {
		c.logger.Info("drop rejected", slog.Int64("task_id", state.TaskID), slog.String("reason", strings.Join(state.Messages, "; ")))
		return res, apperr.New(apperr.DropRejected, strings.Join(state.Messages, "; ")).
			WithDetails(map[string]any{"task_id": state.TaskID, "messages": state.Messages, "validity": state.Validity})
	}
	if !state.Moved() {
		return res, nil
	}

	change := models.TaskFields{
		StartDate: date.Ptr(state.CandidateStart),
		DueDate:   date.Ptr(state.CandidateDue),
	}
	orig := Schedule{Start: state.OriginalStart, Due: state.OriginalDue}
	cand := Schedule{Start: state.CandidateStart, Due: state.CandidateDue}

	task, action, err := c.mutate(ctx, state.TaskID, change, func(t models.Task) string {
		return DescribeReschedule(t.Title, state.Handle, orig, cand)
	})
	if err != nil {
		return res, err
	}
	res.Task, res.Action, res.Applied = &task, &action, true
	return res, nil
}

// UpdateTask applies a direct field edit and records it for undo.
func (c *Controller) UpdateTask(ctx context.Context, taskID int64, change models.TaskFields) (models.Task, error) {
	task, _, err := c.mutate(ctx, taskID, change, nil)
	return task, err
}

// mutate applies change optimistically, persists it and records history.
// describe may be nil for a generic description.
func (c *Controller) mutate(ctx context.Context, taskID int64, change models.TaskFields, describe func(models.Task) string) (models.Task, HistoryAction, error) {
	c.mu.Lock()
	idx := c.findLocked(taskID)
	if idx < 0 {
		c.mu.Unlock()
		return models.Task{}, HistoryAction{}, apperr.Newf(apperr.TaskNotFound, "task %d not found", taskID)
	}
	if c.saving[taskID] {
		c.mu.Unlock()
		return models.Task{}, HistoryAction{}, apperr.Newf(apperr.TaskBusy, "task %d is being saved", taskID)
	}
	if c.replaying || c.history.Busy() {
		c.mu.Unlock()
		return models.Task{}, HistoryAction{}, ErrBusy
	}
	original := c.tasks[idx]
	before := change.Capture(original)
	c.saving[taskID] = true
	c.tasks[idx] = change.Apply(original)
	c.rebuildLocked()
	c.mu.Unlock()

	updated, err := c.deps.Updater.ApplyTaskFields(ctx, taskID, change)

	c.mu.Lock()
	delete(c.saving, taskID)
	if idx = c.findLocked(taskID); idx >= 0 {
		if err != nil {
			c.tasks[idx] = original
		} else {
			c.tasks[idx] = updated
		}
	}
	c.rebuildLocked()
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("task update failed, reverted", slog.Int64("task_id", taskID), slog.Any("error", err))
		if apperr.CodeOf(err) != apperr.InternalError {
			return models.Task{}, HistoryAction{}, err
		}
		return models.Task{}, HistoryAction{}, apperr.Wrap(apperr.UpdateFailed, err, fmt.Sprintf("update of task %d failed: %v", taskID, err)).
			WithDetails(map[string]any{"task_id": taskID})
	}

	description := DescribeEdit(original.Title, before, change)
	if describe != nil {
		description = describe(original)
	}
	action := c.history.Record(taskID, before, change.Capture(updated), description)
	c.logger.Info("task updated", slog.Int64("task_id", taskID), slog.String("action", description))
	return updated, action, nil
}

// Undo reverts the last recorded action. The target task counts as saving
// until the replay finishes, and no edit can be recorded meanwhile.
func (c *Controller) Undo(ctx context.Context) (models.Task, HistoryAction, error) {
	target, ok := c.history.PeekUndo()
	if !ok {
		return models.Task{}, HistoryAction{}, apperr.New(apperr.NothingToUndo, "nothing to undo")
	}
	release, err := c.beginReplay(target.TaskID)
	if err != nil {
		return models.Task{}, target, err
	}
	defer release()
	task, action, err := c.history.Undo(ctx)
	return c.afterReplay("undo", task, action, err)
}

// Redo re-applies the next undone action, serialized like Undo.
func (c *Controller) Redo(ctx context.Context) (models.Task, HistoryAction, error) {
	target, ok := c.history.PeekRedo()
	if !ok {
		return models.Task{}, HistoryAction{}, apperr.New(apperr.NothingToRedo, "nothing to redo")
	}
	release, err := c.beginReplay(target.TaskID)
	if err != nil {
		return models.Task{}, target, err
	}
	defer release()
	task, action, err := c.history.Redo(ctx)
	return c.afterReplay("redo", task, action, err)
}

// beginReplay claims the history for one replay of taskID. It fails while
// another replay runs or any edit is still being saved.
func (c *Controller) beginReplay(taskID int64) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.replaying:
		return nil, ErrBusy
	case c.saving[taskID]:
		return nil, apperr.Newf(apperr.TaskBusy, "task %d is being saved", taskID)
	case len(c.saving) > 0:
		return nil, ErrBusy
	}
	c.replaying = true
	c.saving[taskID] = true
	return func() {
		c.mu.Lock()
		c.replaying = false
		delete(c.saving, taskID)
		c.mu.Unlock()
	}, nil
}

func (c *Controller) afterReplay(op string, task models.Task, action HistoryAction, err error) (models.Task, HistoryAction, error) {
	if err != nil {
		c.logger.Warn(op+" failed", slog.String("action", action.Description), slog.Any("error", err))
		return task, action, err
	}
	c.mu.Lock()
	if idx := c.findLocked(task.ID); idx >= 0 {
		c.tasks[idx] = task
	}
	c.rebuildLocked()
	c.mu.Unlock()
	c.logger.Info(op, slog.Int64("task_id", task.ID), slog.String("action", action.Description))
	return task, action, nil
}

// ClearHistory drops every undoable action.
func (c *Controller) ClearHistory() { c.history.Clear() }

// KeyResult reports what a key press did.
type KeyResult struct {
	Command     Command             `json:"command"`
	Ignored     bool                `json:"ignored,omitempty"`
	Task        *models.Task        `json:"task,omitempty"`
	Action      *HistoryAction      `json:"action,omitempty"`
	Drag        *DragState          `json:"drag,omitempty"`
	Preferences *models.Preferences `json:"preferences,omitempty"`
}

// HandleKey runs the command bound to k. Undo and redo are ignored while
// another replay is in flight.
func (c *Controller) HandleKey(ctx context.Context, k Key) (KeyResult, error) {
	res := KeyResult{Command: CommandFor(k)}
	switch res.Command {
	case CommandUndo, CommandRedo:
		if c.history.Busy() {
			res.Ignored = true
			return res, nil
		}
		replay := c.Undo
		if res.Command == CommandRedo {
			replay = c.Redo
		}
		task, action, err := replay(ctx)
		if apperr.Is(err, apperr.HistoryBusy) {
			res.Ignored = true
			return res, nil
		}
		if err != nil {
			return res, err
		}
		res.Task, res.Action = &task, &action
	case CommandCancelDrag:
		s, ok := c.CancelDrag()
		if !ok {
			res.Ignored = true
			return res, nil
		}
		res.Drag = &s
	case CommandPanelShrink, CommandPanelGrow:
		c.mu.RLock()
		prefs := c.prefs
		step := c.cfg.Preferences.PanelStep
		c.mu.RUnlock()
		if res.Command == CommandPanelShrink {
			step = -step
		}
		prefs.PanelWidth += step
		prefs = c.SetPreferences(ctx, prefs)
		res.Preferences = &prefs
	default:
		res.Ignored = true
	}
	return res, nil
}

// PointerResult is the outcome of a pointer event.
type PointerResult struct {
	Kind PointerKind `json:"kind"`
	Drag *DragState  `json:"drag,omitempty"`
	Drop *DropResult `json:"drop,omitempty"`
}

// HandlePointer routes a mouse or touch event into the drag session.
func (c *Controller) HandlePointer(ctx context.Context, ev PointerEvent) (PointerResult, error) {
	res := PointerResult{Kind: ev.Kind}
	switch ev.Kind {
	case PointerDown:
		handle := ev.Handle
		if handle == "" {
			handle = HandleMove
		}
		s, err := c.StartDrag(ev.TaskID, handle, Pointer{X: ev.X, Source: ev.Source})
		if err != nil {
			return res, err
		}
		res.Drag = &s
	case PointerUp:
		drop, err := c.Drop(ctx)
		res.Drop = &drop
		if err != nil {
			return res, err
		}
	case PointerMove, PointerCancel, PointerLeave:
		s, err := c.drag.Handle(ev)
		if err != nil {
			return res, err
		}
		res.Drag = &s
	default:
		return res, apperr.Newf(apperr.InvalidInput, "unknown pointer event %q", ev.Kind)
	}
	return res, nil
}

// SetPreferences clamps, stores and persists panel preferences. Persist
// failures are logged and otherwise ignored.
func (c *Controller) SetPreferences(ctx context.Context, prefs models.Preferences) models.Preferences {
	c.mu.Lock()
	prefs = c.clampPrefs(prefs)
	c.prefs = prefs
	c.mu.Unlock()

	if c.deps.Preferences != nil {
		if err := c.deps.Preferences.SavePreferences(ctx, prefs); err != nil {
			c.logger.Debug("save preferences", slog.Any("error", err))
		}
	}
	return prefs
}

// Preferences returns the current panel preferences.
func (c *Controller) Preferences() models.Preferences {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.prefs
}

func (c *Controller) clampPrefs(p models.Preferences) models.Preferences {
	return ClampPreferences(p, c.cfg.Preferences)
}

// ClampPreferences keeps the panel width inside the configured bounds. A
// zero width means the configured default.
func ClampPreferences(p models.Preferences, b config.PreferencesConfig) models.Preferences {
	if p.PanelWidth == 0 {
		p.PanelWidth = b.PanelWidth
	}
	p.PanelWidth = min(max(p.PanelWidth, b.MinPanelWidth), b.MaxPanelWidth)
	return p
}

// Health computes the project health report, degrading to an unavailable
// report on failure.
func (c *Controller) Health() HealthReport {
	c.mu.RLock()
	tasks := append([]models.Task(nil), c.tasks...)
	hoursPerDay := c.cfg.Timeline.HoursPerDay
	c.mu.RUnlock()
	today := c.today()
	return SafeHealth(func() (HealthReport, error) {
		return Health(tasks, today, hoursPerDay)
	})
}

func (c *Controller) findLocked(taskID int64) int {
	for i, t := range c.tasks {
		if t.ID == taskID {
			return i
		}
	}
	return -1
}

// rebuildLocked recomputes schedules, the range and the raw markers, then
// schedules a debounced collision layout.
func (c *Controller) rebuildLocked() {
	anchor := c.today()
	if c.rangeFixed {
		anchor = c.rng.Start
	}

	c.scheduled = make(map[int64]ScheduledTask, len(c.tasks))
	var list []ScheduledTask
	var schedules []Schedule
	for _, t := range c.tasks {
		s, ok := ScheduleOf(t, anchor, c.cfg.Timeline.HoursPerDay)
		if !ok {
			continue
		}
		st := ScheduledTask{Task: t, Schedule: s}
		c.scheduled[t.ID] = st
		list = append(list, st)
		schedules = append(schedules, s)
	}
	if !c.rangeFixed {
		c.rng = DefaultRange(schedules, c.cfg.Timeline.PaddingDays, anchor)
	}

	src := c.sources
	src.Conflicts = DetectResourceConflicts(list)
	path, err := CriticalPath(list)
	if err != nil {
		c.logger.Warn("critical path unavailable", slog.Any("error", err))
	}
	src.CriticalPath = path

	c.markers = BuildMarkers(src, c.rng, c.mode)
	c.debouncer.Trigger()
}

func (c *Controller) recomputeLayout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layout = Resolve(c.markers, c.mode, c.mobile, c.cfg.Markers)
}
