package gantt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"buildtrack/internal/apperr"
	"buildtrack/internal/date"
	"buildtrack/internal/models"
)

// TaskUpdater is the task update API. Applying the same fields twice must
// converge to the same task.
type TaskUpdater interface {
	ApplyTaskFields(ctx context.Context, id int64, fields models.TaskFields) (models.Task, error)
}

// ErrBusy is returned when undo or redo is requested while another one is
// still being applied.
var ErrBusy = apperr.New(apperr.HistoryBusy, "another undo or redo is in progress")

// HistoryAction is one reversible task mutation.
type HistoryAction struct {
	ID          string            `json:"id"`
	TaskID      int64             `json:"task_id"`
	Before      models.TaskFields `json:"before"`
	After       models.TaskFields `json:"after"`
	Description string            `json:"description"`
	RecordedAt  time.Time         `json:"recorded_at"`
}

// History is a linear undo stack with a cursor. Actions below the cursor
// can be undone, actions at or above it redone.
type History struct {
	mu       sync.Mutex
	actions  []HistoryAction
	cursor   int
	maxDepth int
	updater  TaskUpdater
	busy     atomic.Bool
	now      func() time.Time
}

// NewHistory creates a history replaying actions through updater. A
// maxDepth of 0 keeps every action.
func NewHistory(updater TaskUpdater, maxDepth int) *History {
	return &History{updater: updater, maxDepth: maxDepth, now: time.Now}
}

// Record appends an action, discarding any redo tail first.
func (h *History) Record(taskID int64, before, after models.TaskFields, description string) HistoryAction {
	h.mu.Lock()
	defer h.mu.Unlock()

	action := HistoryAction{
		ID:          uuid.NewString(),
		TaskID:      taskID,
		Before:      before,
		After:       after,
		Description: description,
		RecordedAt:  h.now(),
	}
	h.actions = append(h.actions[:h.cursor], action)
	if h.maxDepth > 0 && len(h.actions) > h.maxDepth {
		h.actions = append([]HistoryAction(nil), h.actions[len(h.actions)-h.maxDepth:]...)
	}
	h.cursor = len(h.actions)
	return action
}

// Undo re-applies the Before snapshot of the last action. On failure the
// cursor does not move.
func (h *History) Undo(ctx context.Context) (models.Task, HistoryAction, error) {
	if !h.busy.CompareAndSwap(false, true) {
		return models.Task{}, HistoryAction{}, ErrBusy
	}
	defer h.busy.Store(false)

	h.mu.Lock()
	if h.cursor == 0 {
		h.mu.Unlock()
		return models.Task{}, HistoryAction{}, apperr.New(apperr.NothingToUndo, "nothing to undo")
	}
	action := h.actions[h.cursor-1]
	h.mu.Unlock()

	task, err := h.updater.ApplyTaskFields(ctx, action.TaskID, action.Before)
	if err != nil {
		return models.Task{}, action, replayError("undo", action, err)
	}

	h.mu.Lock()
	if h.cursor > 0 && h.actions[h.cursor-1].ID == action.ID {
		h.cursor--
	}
	h.mu.Unlock()
	return task, action, nil
}

// Redo re-applies the After snapshot of the next action. On failure the
// cursor does not move.
func (h *History) Redo(ctx context.Context) (models.Task, HistoryAction, error) {
	if !h.busy.CompareAndSwap(false, true) {
		return models.Task{}, HistoryAction{}, ErrBusy
	}
	defer h.busy.Store(false)

	h.mu.Lock()
	if h.cursor >= len(h.actions) {
		h.mu.Unlock()
		return models.Task{}, HistoryAction{}, apperr.New(apperr.NothingToRedo, "nothing to redo")
	}
	action := h.actions[h.cursor]
	h.mu.Unlock()

	task, err := h.updater.ApplyTaskFields(ctx, action.TaskID, action.After)
	if err != nil {
		return models.Task{}, action, replayError("redo", action, err)
	}

	h.mu.Lock()
	if h.cursor < len(h.actions) && h.actions[h.cursor].ID == action.ID {
		h.cursor++
	}
	h.mu.Unlock()
	return task, action, nil
}

func replayError(op string, action HistoryAction, err error) error {
	return apperr.Wrap(apperr.UpdateFailed, err, fmt.Sprintf("%s of %q failed: %v", op, action.Description, err)).
		WithDetails(map[string]any{"task_id": action.TaskID, "action_id": action.ID})
}

// Clear drops every action.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.actions = nil
	h.cursor = 0
}

// PeekUndo returns the action Undo would revert.
func (h *History) PeekUndo() (HistoryAction, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor == 0 {
		return HistoryAction{}, false
	}
	return h.actions[h.cursor-1], true
}

// PeekRedo returns the action Redo would re-apply.
func (h *History) PeekRedo() (HistoryAction, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor >= len(h.actions) {
		return HistoryAction{}, false
	}
	return h.actions[h.cursor], true
}

// SetMaxDepth changes the depth cap, trimming the oldest actions if the
// stack is already deeper.
func (h *History) SetMaxDepth(maxDepth int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.maxDepth = maxDepth
	if maxDepth > 0 && len(h.actions) > maxDepth {
		drop := len(h.actions) - maxDepth
		h.actions = append([]HistoryAction(nil), h.actions[drop:]...)
		h.cursor = max(h.cursor-drop, 0)
	}
}

// Busy reports whether an undo or redo is being applied.
func (h *History) Busy() bool { return h.busy.Load() }

func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor > 0
}

func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor < len(h.actions)
}

// UndoDescription describes the action Undo would revert, or "".
func (h *History) UndoDescription() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor == 0 {
		return ""
	}
	return h.actions[h.cursor-1].Description
}

// RedoDescription describes the action Redo would re-apply, or "".
func (h *History) RedoDescription() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor >= len(h.actions) {
		return ""
	}
	return h.actions[h.cursor].Description
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.actions)
}

func (h *History) Cursor() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor
}

// Actions returns a copy of the stack, oldest first.
func (h *History) Actions() []HistoryAction {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]HistoryAction(nil), h.actions...)
}

// HistorySummary is the UI hint for the undo/redo buttons.
type HistorySummary struct {
	CanUndo         bool            `json:"can_undo"`
	CanRedo         bool            `json:"can_redo"`
	UndoDescription string          `json:"undo_description,omitempty"`
	RedoDescription string          `json:"redo_description,omitempty"`
	Busy            bool            `json:"busy"`
	Cursor          int             `json:"cursor"`
	Actions         []HistoryAction `json:"actions,omitempty"`
}

// Summary snapshots the history for display. Actions are included only
// when withActions is set.
func (h *History) Summary(withActions bool) HistorySummary {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := HistorySummary{
		CanUndo: h.cursor > 0,
		CanRedo: h.cursor < len(h.actions),
		Busy:    h.busy.Load(),
		Cursor:  h.cursor,
	}
	if s.CanUndo {
		s.UndoDescription = h.actions[h.cursor-1].Description
	}
	if s.CanRedo {
		s.RedoDescription = h.actions[h.cursor].Description
	}
	if withActions {
		s.Actions = append([]HistoryAction(nil), h.actions...)
	}
	return s
}

// DescribeReschedule renders a history description for a drop.
func DescribeReschedule(title string, handle Handle, before, after Schedule) string {
	switch handle {
	case HandleStart:
		return fmt.Sprintf("Changed start of %s from %s to %s", title, before.Start.Short(), after.Start.Short())
	case HandleEnd:
		return fmt.Sprintf("Changed due date of %s from %s to %s", title, before.Due.Short(), after.Due.Short())
	default:
		return fmt.Sprintf("Moved %s from %s to %s", title, before.Start.Short(), after.Start.Short())
	}
}

// DescribeEdit renders a history description for a direct field edit.
func DescribeEdit(title string, before, after models.TaskFields) string {
	switch {
	case after.StartDate != nil && before.StartDate != nil && !after.StartDate.Equal(*before.StartDate):
		return fmt.Sprintf("Moved %s from %s to %s", title, before.StartDate.Short(), after.StartDate.Short())
	case after.DueDate != nil && !sameDate(before.DueDate, after.DueDate):
		return fmt.Sprintf("Changed due date of %s to %s", title, after.DueDate.Short())
	case after.Status != nil && (before.Status == nil || *before.Status != *after.Status):
		return fmt.Sprintf("Set %s to %s", title, *after.Status)
	case after.Progress != nil && (before.Progress == nil || *before.Progress != *after.Progress):
		return fmt.Sprintf("Set progress of %s to %d%%", title, *after.Progress)
	default:
		return fmt.Sprintf("Edited %s", title)
	}
}

func sameDate(a, b *date.Date) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
