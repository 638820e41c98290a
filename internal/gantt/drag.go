package gantt

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"buildtrack/internal/apperr"
	"buildtrack/internal/date"
	"buildtrack/internal/models"
)

// Handle is the part of a task bar that is being dragged.
type Handle string

const (
	HandleMove  Handle = "move"
	HandleStart Handle = "start"
	HandleEnd   Handle = "end"
)

// ParseHandle validates a handle name; empty means move.
func ParseHandle(s string) (Handle, error) {
	switch Handle(s) {
	case HandleMove, HandleStart, HandleEnd:
		return Handle(s), nil
	case "":
		return HandleMove, nil
	}
	return "", apperr.Newf(apperr.InvalidInput, "invalid drag handle %q", s)
}

// PointerSource is the input modality of a pointer session.
type PointerSource string

const (
	SourceMouse PointerSource = "mouse"
	SourceTouch PointerSource = "touch"
)

// PointerKind is a step of a pointer session.
type PointerKind string

const (
	PointerDown   PointerKind = "down"
	PointerMove   PointerKind = "move"
	PointerUp     PointerKind = "up"
	PointerCancel PointerKind = "cancel"
	PointerLeave  PointerKind = "leave"
)

// Pointer is the last known pointer location in timeline percent.
type Pointer struct {
	X      float64       `json:"x"`
	Source PointerSource `json:"source"`
}

// PointerEvent is one mouse or touch event of a drag session.
type PointerEvent struct {
	Kind   PointerKind   `json:"kind"`
	X      float64       `json:"x"`
	Source PointerSource `json:"source"`
	TaskID int64         `json:"task_id,omitempty"`
	Handle Handle        `json:"handle,omitempty"`
}

// DateZone is a contiguous run of drop dates sharing a validity.
type DateZone struct {
	From     date.Date `json:"from"`
	To       date.Date `json:"to"`
	Left     float64   `json:"left"`
	Width    float64   `json:"width"`
	Validity Validity  `json:"validity"`
}

// DragState is the ephemeral state of an in-progress drag.
type DragState struct {
	SessionID       string     `json:"session_id"`
	TaskID          int64      `json:"task_id"`
	Handle          Handle     `json:"handle"`
	Pointer         Pointer    `json:"pointer"`
	OriginalStart   date.Date  `json:"original_start"`
	OriginalDue     date.Date  `json:"original_due"`
	CandidateStart  date.Date  `json:"candidate_start"`
	CandidateDue    date.Date  `json:"candidate_due"`
	Validity        Validity   `json:"validity"`
	Messages        []string   `json:"messages,omitempty"`
	AffectedMarkers []string   `json:"affected_markers,omitempty"`
	Zones           []DateZone `json:"zones,omitempty"`
}

// Moved reports whether the candidate differs from the original schedule.
func (s DragState) Moved() bool {
	return !s.CandidateStart.Equal(s.OriginalStart) || !s.CandidateDue.Equal(s.OriginalDue)
}

// DragContext is the timeline a drag happens on.
type DragContext struct {
	Range   Range
	Mode    ViewMode
	Tasks   map[int64]ScheduledTask
	Markers []Marker
}

// ErrNoDrag is returned when a drag operation arrives with no active drag.
var ErrNoDrag = apperr.New(apperr.NoActiveDrag, "no drag in progress")

// Rescheduler tracks a single drag session. Only one drag may be active.
type Rescheduler struct {
	mu     sync.Mutex
	rules  []Rule
	state  *DragState
	task   models.Task
	anchor date.Date
	dctx   DragContext
}

// NewRescheduler creates a rescheduler validating with rules. A nil rule
// set uses DefaultRules.
func NewRescheduler(rules []Rule) *Rescheduler {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Rescheduler{rules: rules}
}

// Active reports whether a drag is in progress.
func (r *Rescheduler) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state != nil
}

// Start begins dragging st by handle with the pointer at p.
func (r *Rescheduler) Start(st ScheduledTask, handle Handle, p Pointer, dctx DragContext) (DragState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != nil {
		return DragState{}, apperr.Newf(apperr.DragInProgress, "task #%d is already being dragged", r.state.TaskID).
			WithDetails(map[string]any{"task_id": r.state.TaskID, "session_id": r.state.SessionID})
	}

	r.task = st.Task
	r.dctx = dctx
	r.anchor = DateOf(p.X, dctx.Range, dctx.Mode)
	r.state = &DragState{
		SessionID:      uuid.NewString(),
		TaskID:         st.Task.ID,
		Handle:         handle,
		Pointer:        p,
		OriginalStart:  st.Schedule.Start,
		OriginalDue:    st.Schedule.Due,
		CandidateStart: st.Schedule.Start,
		CandidateDue:   st.Schedule.Due,
		Zones:          r.zones(st.Schedule, handle),
	}
	r.evaluate()
	return r.snapshot(), nil
}

// Move updates the candidate for a pointer at x percent.
func (r *Rescheduler) Move(x float64) (DragState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == nil {
		return DragState{}, ErrNoDrag
	}
	at := DateOf(x, r.dctx.Range, r.dctx.Mode)
	orig := Schedule{Start: r.state.OriginalStart, Due: r.state.OriginalDue}
	c := candidate(r.state.Handle, orig, r.anchor, at)

	r.state.Pointer.X = x
	r.state.CandidateStart = c.Start
	r.state.CandidateDue = c.Due
	r.evaluate()
	return r.snapshot(), nil
}

// State returns the current drag state, if any.
func (r *Rescheduler) State() (DragState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		return DragState{}, false
	}
	return r.snapshot(), true
}

// Task returns the task being dragged as it was when the drag started.
func (r *Rescheduler) Task() (models.Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.task, r.state != nil
}

// Cancel discards the drag. It reports whether a drag was active.
func (r *Rescheduler) Cancel() (DragState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		return DragState{}, false
	}
	s := r.snapshot()
	r.clear()
	return s, true
}

// Finish ends the drag and returns its final state. Persisting the
// candidate is the caller's job.
func (r *Rescheduler) Finish() (DragState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		return DragState{}, ErrNoDrag
	}
	s := r.snapshot()
	r.clear()
	return s, nil
}

// Handle feeds a move, cancel or leave event into the active session.
// Down and up are session boundaries owned by the caller, which calls
// Start and Finish.
func (r *Rescheduler) Handle(ev PointerEvent) (DragState, error) {
	switch ev.Kind {
	case PointerMove:
		return r.Move(ev.X)
	case PointerCancel, PointerLeave:
		s, ok := r.Cancel()
		if !ok {
			return DragState{}, ErrNoDrag
		}
		return s, nil
	default:
		return DragState{}, apperr.Newf(apperr.InvalidInput, "pointer %q is not handled by the drag session", ev.Kind)
	}
}

func (r *Rescheduler) clear() {
	r.state = nil
	r.task = models.Task{}
	r.dctx = DragContext{}
}

func (r *Rescheduler) snapshot() DragState {
	s := *r.state
	s.Messages = append([]string(nil), s.Messages...)
	s.AffectedMarkers = append([]string(nil), s.AffectedMarkers...)
	s.Zones = append([]DateZone(nil), s.Zones...)
	return s
}

func (r *Rescheduler) evaluate() {
	c := Schedule{Start: r.state.CandidateStart, Due: r.state.CandidateDue}
	r.state.Validity, r.state.Messages = Validate(RuleContext{Task: r.task, Candidate: c, Tasks: r.dctx.Tasks}, r.dctx.Range, r.rules)
	r.state.AffectedMarkers = affectedMarkers(r.dctx.Markers, r.task.ID, c)
}

// zones classifies every date of the range as a drop target for the
// dragged edge and merges runs of equal validity.
func (r *Rescheduler) zones(orig Schedule, handle Handle) []DateZone {
	rng := r.dctx.Range
	var zones []DateZone
	for d := rng.Start; !d.After(rng.End); d = d.AddDays(1) {
		c := edgeCandidate(handle, orig, d)
		v, _ := Validate(RuleContext{Task: r.task, Candidate: c, Tasks: r.dctx.Tasks}, rng, r.rules)
		if n := len(zones); n > 0 && zones[n-1].Validity == v {
			zones[n-1].To = d
			continue
		}
		zones = append(zones, DateZone{From: d, To: d, Validity: v})
	}
	for i := range zones {
		bar := Span(zones[i].From, zones[i].To, rng, r.dctx.Mode)
		zones[i].Left, zones[i].Width = bar.Left, bar.Width
	}
	return zones
}

// candidate moves the dragged edge by the distance the pointer travelled
// from anchor. Moves keep the duration.
func candidate(handle Handle, orig Schedule, anchor, at date.Date) Schedule {
	switch handle {
	case HandleStart:
		return Schedule{Start: at, Due: orig.Due}
	case HandleEnd:
		return Schedule{Start: orig.Start, Due: at}
	default:
		delta := anchor.DaysUntil(at)
		return Schedule{Start: orig.Start.AddDays(delta), Due: orig.Due.AddDays(delta)}
	}
}

// edgeCandidate is the candidate when the dragged edge lands on d.
func edgeCandidate(handle Handle, orig Schedule, d date.Date) Schedule {
	switch handle {
	case HandleStart:
		return Schedule{Start: d, Due: orig.Due}
	case HandleEnd:
		return Schedule{Start: orig.Start, Due: d}
	default:
		return Schedule{Start: d, Due: d.AddDays(orig.Days() - 1)}
	}
}

func affectedMarkers(markers []Marker, taskID int64, c Schedule) []string {
	var ids []string
	for _, m := range markers {
		if containsID(m.TaskIDs, taskID) || (!m.Date.Before(c.Start) && !m.Date.After(c.Due)) {
			ids = append(ids, m.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
