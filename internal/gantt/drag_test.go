package gantt

import (
	"fmt"
	"testing"

	"buildtrack/internal/apperr"
	"buildtrack/internal/date"
	"buildtrack/internal/models"
)

func scheduled(id int64, start, due string, deps ...int64) ScheduledTask {
	s, d := date.MustParse(start), date.MustParse(due)
	return ScheduledTask{
		Task:     models.Task{ID: id, Title: fmt.Sprintf("Task %d", id), Status: models.StatusNotStarted, StartDate: &s, DueDate: &d, DependsOn: deps},
		Schedule: Schedule{Start: s, Due: d},
	}
}

func juneContext(tasks ...ScheduledTask) DragContext {
	byID := map[int64]ScheduledTask{}
	for _, st := range tasks {
		byID[st.Task.ID] = st
	}
	return DragContext{Range: june, Mode: ViewDays, Tasks: byID}
}

func TestDragOutsideTimelineIsInvalid(t *testing.T) {
	task := scheduled(1, "2024-06-01", "2024-06-05")
	r := NewRescheduler(nil)

	if _, err := r.Start(task, HandleMove, Pointer{X: 0, Source: SourceMouse}, juneContext(task)); err != nil {
		t.Fatalf("Start: %v", err)
	}

	x := PositionOf(date.MustParse("2024-06-29"), june, ViewDays).Left
	s, err := r.Move(x)
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if s.CandidateStart.String() != "2024-06-29" || s.CandidateDue.String() != "2024-07-03" {
		t.Errorf("candidate = %s..%s, want 2024-06-29..2024-07-03", s.CandidateStart, s.CandidateDue)
	}
	if s.Validity != Invalid || len(s.Messages) != 1 || s.Messages[0] != MsgOutsideTimeline {
		t.Errorf("validity = %s %v, want invalid %q", s.Validity, s.Messages, MsgOutsideTimeline)
	}
	if s.OriginalStart.String() != "2024-06-01" || s.OriginalDue.String() != "2024-06-05" {
		t.Errorf("original = %s..%s", s.OriginalStart, s.OriginalDue)
	}
}

func TestDragMovePreservesDuration(t *testing.T) {
	task := scheduled(1, "2024-06-03", "2024-06-07")
	r := NewRescheduler(nil)
	grab := PositionOf(date.MustParse("2024-06-05"), june, ViewDays).Left
	if _, err := r.Start(task, HandleMove, Pointer{X: grab}, juneContext(task)); err != nil {
		t.Fatalf("Start: %v", err)
	}

	s, err := r.Move(PositionOf(date.MustParse("2024-06-15"), june, ViewDays).Left)
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if s.CandidateStart.String() != "2024-06-13" || s.CandidateDue.String() != "2024-06-17" {
		t.Errorf("candidate = %s..%s, want 2024-06-13..2024-06-17", s.CandidateStart, s.CandidateDue)
	}
	if s.Validity != Valid || !s.Moved() {
		t.Errorf("validity = %s moved = %v", s.Validity, s.Moved())
	}
}

func TestDragResizeHandles(t *testing.T) {
	task := scheduled(1, "2024-06-10", "2024-06-12")

	tests := []struct {
		handle    Handle
		to        string
		wantStart string
		wantDue   string
		want      Validity
		wantMsg   string
	}{
		{HandleEnd, "2024-06-20", "2024-06-10", "2024-06-20", Valid, ""},
		{HandleEnd, "2024-06-05", "2024-06-10", "2024-06-05", Invalid, MsgEndBeforeStart},
		{HandleStart, "2024-06-08", "2024-06-08", "2024-06-12", Valid, ""},
		{HandleStart, "2024-06-14", "2024-06-14", "2024-06-12", Invalid, MsgEndBeforeStart},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s to %s", tt.handle, tt.to), func(t *testing.T) {
			r := NewRescheduler(nil)
			if _, err := r.Start(task, tt.handle, Pointer{X: 50}, juneContext(task)); err != nil {
				t.Fatalf("Start: %v", err)
			}
			s, err := r.Move(PositionOf(date.MustParse(tt.to), june, ViewDays).Left)
			if err != nil {
				t.Fatalf("Move: %v", err)
			}
			if s.CandidateStart.String() != tt.wantStart || s.CandidateDue.String() != tt.wantDue {
				t.Errorf("candidate = %s..%s, want %s..%s", s.CandidateStart, s.CandidateDue, tt.wantStart, tt.wantDue)
			}
			if s.Validity != tt.want {
				t.Errorf("validity = %s, want %s", s.Validity, tt.want)
			}
			if tt.wantMsg != "" && (len(s.Messages) == 0 || s.Messages[0] != tt.wantMsg) {
				t.Errorf("messages = %v, want %q", s.Messages, tt.wantMsg)
			}
		})
	}
}

func TestDragPredecessorWarning(t *testing.T) {
	pred := scheduled(1, "2024-06-01", "2024-06-10")
	task := scheduled(2, "2024-06-12", "2024-06-14", 1)
	r := NewRescheduler(nil)
	if _, err := r.Start(task, HandleMove, Pointer{X: PositionOf(task.Schedule.Start, june, ViewDays).Left}, juneContext(pred, task)); err != nil {
		t.Fatalf("Start: %v", err)
	}

	s, _ := r.Move(PositionOf(date.MustParse("2024-06-09"), june, ViewDays).Left)
	if s.Validity != Warning {
		t.Fatalf("validity = %s, want warning", s.Validity)
	}
	if len(s.Messages) != 1 || s.Messages[0] != "starts before predecessor #1 finishes" {
		t.Errorf("messages = %v", s.Messages)
	}

	s, _ = r.Move(PositionOf(date.MustParse("2024-06-11"), june, ViewDays).Left)
	if s.Validity != Valid {
		t.Errorf("after predecessor: validity = %s, want valid", s.Validity)
	}
}

func TestDragCustomRule(t *testing.T) {
	weekend := RuleFunc(func(rc RuleContext) []string {
		if wd := rc.Candidate.Start.Weekday(); wd == 0 || wd == 6 {
			return []string{"starts on a weekend"}
		}
		return nil
	})
	task := scheduled(1, "2024-06-03", "2024-06-04")
	r := NewRescheduler([]Rule{weekend})
	r.Start(task, HandleMove, Pointer{X: PositionOf(task.Schedule.Start, june, ViewDays).Left}, juneContext(task))

	// 2024-06-08 is a Saturday.
	s, _ := r.Move(PositionOf(date.MustParse("2024-06-08"), june, ViewDays).Left)
	if s.Validity != Warning || s.Messages[0] != "starts on a weekend" {
		t.Errorf("state = %s %v, want weekend warning", s.Validity, s.Messages)
	}
}

func TestDragZones(t *testing.T) {
	pred := scheduled(1, "2024-05-20", "2024-06-03")
	task := scheduled(2, "2024-06-10", "2024-06-14", 1)
	r := NewRescheduler(nil)
	s, err := r.Start(task, HandleMove, Pointer{X: 50}, juneContext(pred, task))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	want := []struct {
		from, to string
		v        Validity
	}{
		{"2024-06-01", "2024-06-03", Warning},
		{"2024-06-04", "2024-06-26", Valid},
		{"2024-06-27", "2024-06-30", Invalid},
	}
	if len(s.Zones) != len(want) {
		t.Fatalf("zones = %+v, want %d zones", s.Zones, len(want))
	}
	var width float64
	for i, w := range want {
		z := s.Zones[i]
		if z.From.String() != w.from || z.To.String() != w.to || z.Validity != w.v {
			t.Errorf("zone %d = %s..%s %s, want %s..%s %s", i, z.From, z.To, z.Validity, w.from, w.to, w.v)
		}
		width += z.Width
	}
	if !approx(width, 100) {
		t.Errorf("zones cover %v%%, want 100", width)
	}
}

func TestDragAffectedMarkers(t *testing.T) {
	task := scheduled(1, "2024-06-03", "2024-06-05")
	dctx := juneContext(task)
	dctx.Markers = []Marker{
		{ID: "critical-1", TaskIDs: []int64{1}, Date: date.MustParse("2024-06-03")},
		{ID: "milestone-7", Date: date.MustParse("2024-06-12")},
		{ID: "weather-2", Date: date.MustParse("2024-06-20")},
	}
	r := NewRescheduler(nil)
	r.Start(task, HandleMove, Pointer{X: PositionOf(task.Schedule.Start, june, ViewDays).Left}, dctx)

	s, _ := r.Move(PositionOf(date.MustParse("2024-06-11"), june, ViewDays).Left)
	if fmt.Sprint(s.AffectedMarkers) != "[critical-1 milestone-7]" {
		t.Errorf("affected = %v, want [critical-1 milestone-7]", s.AffectedMarkers)
	}
}

func TestDragExclusive(t *testing.T) {
	a := scheduled(1, "2024-06-03", "2024-06-05")
	b := scheduled(2, "2024-06-10", "2024-06-12")
	r := NewRescheduler(nil)
	if _, err := r.Start(a, HandleMove, Pointer{X: 10}, juneContext(a, b)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := r.Start(b, HandleMove, Pointer{X: 30}, juneContext(a, b)); !apperr.Is(err, apperr.DragInProgress) {
		t.Errorf("second Start error = %v, want DRAG_IN_PROGRESS", err)
	}
	if s, _ := r.State(); s.TaskID != 1 {
		t.Errorf("active task = %d, want 1", s.TaskID)
	}
}

func TestPointerCancelClearsState(t *testing.T) {
	task := scheduled(1, "2024-06-03", "2024-06-05")
	for _, kind := range []PointerKind{PointerCancel, PointerLeave} {
		t.Run(string(kind), func(t *testing.T) {
			r := NewRescheduler(nil)
			r.Start(task, HandleMove, Pointer{X: 10, Source: SourceTouch}, juneContext(task))
			if _, err := r.Handle(PointerEvent{Kind: PointerMove, X: 40, Source: SourceTouch}); err != nil {
				t.Fatalf("move: %v", err)
			}
			if _, err := r.Handle(PointerEvent{Kind: kind}); err != nil {
				t.Fatalf("%s: %v", kind, err)
			}
			if r.Active() {
				t.Error("drag still active after cancel")
			}
			if _, err := r.Move(20); err != ErrNoDrag {
				t.Errorf("Move after cancel error = %v, want ErrNoDrag", err)
			}
		})
	}
}

func TestFinishWithoutDrag(t *testing.T) {
	r := NewRescheduler(nil)
	if _, err := r.Finish(); err != ErrNoDrag {
		t.Errorf("Finish error = %v, want ErrNoDrag", err)
	}
	if _, ok := r.Cancel(); ok {
		t.Error("Cancel reported an active drag")
	}
}
