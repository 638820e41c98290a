package gantt

import (
	"fmt"
	"testing"

	"buildtrack/internal/apperr"
	"buildtrack/internal/date"
	"buildtrack/internal/models"
)

func TestBuildMarkers(t *testing.T) {
	src := MarkerSources{
		Milestones: []models.Milestone{
			{ID: 1, Title: "Foundation inspection", Date: date.MustParse("2024-06-16"), Priority: models.PriorityCritical},
		},
		Weather: []models.WeatherEvent{
			{ID: 4, Title: "Storm", Date: date.MustParse("2024-06-04"), Severity: models.SeveritySevere},
			{ID: 5, Title: "Light rain", Date: date.MustParse("2024-07-04"), Severity: models.SeverityInfo},
		},
		Conflicts: []ResourceConflict{
			{Assignee: "Crew A", TaskIDs: []int64{1, 4}, From: date.MustParse("2024-06-03"), To: date.MustParse("2024-06-04")},
		},
		CriticalPath: []CriticalSegment{
			{TaskID: 2, Title: "Pour footings", Start: date.MustParse("2024-06-05"), Due: date.MustParse("2024-06-07")},
		},
	}

	markers := BuildMarkers(src, june, ViewDays)
	var order []string
	for _, m := range markers {
		order = append(order, m.ID)
	}
	want := "[conflict-Crew A-1-4 weather-4 critical-2 milestone-1 weather-5]"
	if fmt.Sprint(order) != want {
		t.Fatalf("order = %v, want %s", order, want)
	}

	byID := map[string]Marker{}
	for _, m := range markers {
		byID[m.ID] = m
	}
	if m := byID["milestone-1"]; m.Priority != 95 || m.Position.X != 50 || m.Position.Y != 8 {
		t.Errorf("milestone = %+v", m)
	}
	if m := byID["weather-4"]; m.Priority != 90 || m.Tooltip.Title != "Storm" {
		t.Errorf("storm = %+v", m)
	}
	if m := byID["weather-5"]; m.Visible() {
		t.Errorf("July weather marker should be off the June timeline: %+v", m.Position)
	}
	if m := byID["critical-2"]; fmt.Sprint(m.TaskIDs) != "[2]" || m.Priority != 50 {
		t.Errorf("critical = %+v", m)
	}
}

func TestMarkerAfterRangeEndIsHidden(t *testing.T) {
	src := MarkerSources{Milestones: []models.Milestone{
		{ID: 1, Title: "Handover", Date: date.MustParse("2024-07-01"), Priority: models.PriorityHigh},
		{ID: 2, Title: "Inspection", Date: date.MustParse("2024-06-30"), Priority: models.PriorityHigh},
	}}
	markers := BuildMarkers(src, june, ViewDays)
	if len(markers) != 2 || markers[1].ID != "milestone-1" || markers[1].Position.X != 100 {
		t.Fatalf("markers = %+v, want milestone-1 last at x=100", markers)
	}

	res := Resolve(markers, ViewDays, false, defaultMarkers())
	if len(res.Hidden) != 1 || res.Hidden[0].ID != "milestone-1" {
		t.Errorf("hidden = %+v, want milestone-1", res.Hidden)
	}
	if len(res.Resolved) != 1 || res.Resolved[0].ID != "milestone-2" || len(res.Groups) != 0 {
		t.Errorf("resolved = %+v groups = %d, want milestone-2 alone", res.Resolved, len(res.Groups))
	}
}

func TestDetectResourceConflicts(t *testing.T) {
	tasks := []ScheduledTask{
		scheduled(1, "2024-06-01", "2024-06-05"),
		scheduled(2, "2024-06-04", "2024-06-08"),
		scheduled(3, "2024-06-09", "2024-06-10"),
		scheduled(4, "2024-06-02", "2024-06-03"),
	}
	for i := range tasks {
		tasks[i].Task.Assignee = "Crew A"
	}
	tasks[3].Task.Assignee = "Crew B"

	conflicts := DetectResourceConflicts(tasks)
	if len(conflicts) != 1 {
		t.Fatalf("conflicts = %+v, want 1", conflicts)
	}
	c := conflicts[0]
	if c.Assignee != "Crew A" || fmt.Sprint(c.TaskIDs) != "[1 2]" || c.From.String() != "2024-06-04" || c.To.String() != "2024-06-05" {
		t.Errorf("conflict = %+v", c)
	}

	tasks[1].Task.Status = models.StatusCompleted
	if got := DetectResourceConflicts(tasks); len(got) != 0 {
		t.Errorf("completed task still conflicts: %+v", got)
	}
}

func TestCriticalPath(t *testing.T) {
	tasks := []ScheduledTask{
		scheduled(1, "2024-06-01", "2024-06-02"),
		scheduled(2, "2024-06-03", "2024-06-10", 1),
		scheduled(3, "2024-06-03", "2024-06-04", 1),
		scheduled(4, "2024-06-11", "2024-06-12", 2, 3),
		scheduled(5, "2024-06-01", "2024-06-03", 99),
	}
	path, err := CriticalPath(tasks)
	if err != nil {
		t.Fatalf("CriticalPath: %v", err)
	}
	var ids []int64
	for _, seg := range path {
		ids = append(ids, seg.TaskID)
	}
	if fmt.Sprint(ids) != "[1 2 4]" {
		t.Errorf("path = %v, want [1 2 4]", ids)
	}

	if path, err := CriticalPath(nil); err != nil || path != nil {
		t.Errorf("CriticalPath(nil) = %v, %v", path, err)
	}

	tasks[0].Task.DependsOn = []int64{4}
	if _, err := CriticalPath(tasks); !apperr.Is(err, apperr.DependencyCycle) {
		t.Errorf("cycle error = %v, want DEPENDENCY_CYCLE", err)
	}
}
