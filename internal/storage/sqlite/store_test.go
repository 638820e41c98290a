package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"buildtrack/internal/apperr"
	"buildtrack/internal/date"
	"buildtrack/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "buildtrack.db"), nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createProject(t *testing.T, s *Store, name string) models.Project {
	t.Helper()
	p, err := s.CreateProject(context.Background(), models.Project{Name: name})
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	return p
}

func createTask(t *testing.T, s *Store, projectID int64, title, start, due string, deps ...int64) models.Task {
	t.Helper()
	task := models.Task{ProjectID: projectID, Title: title, DependsOn: deps}
	if start != "" {
		task.StartDate = date.Ptr(date.MustParse(start))
	}
	if due != "" {
		task.DueDate = date.Ptr(date.MustParse(due))
	}
	created, err := s.CreateTask(context.Background(), task)
	if err != nil {
		t.Fatalf("CreateTask(%s) error = %v", title, err)
	}
	return created
}

func TestProjectLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, models.Project{
		Name:      "  Riverside Clinic ",
		StartDate: date.Ptr(date.MustParse("2024-06-01")),
		EndDate:   date.Ptr(date.MustParse("2024-09-30")),
	})
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	if p.Name != "Riverside Clinic" {
		t.Errorf("Name = %q, want trimmed", p.Name)
	}
	if p.Color == "" {
		t.Error("Color is empty, want palette color")
	}
	if p.StartDate == nil || p.StartDate.String() != "2024-06-01" {
		t.Errorf("StartDate = %v, want 2024-06-01", p.StartDate)
	}

	if _, err := s.CreateProject(ctx, models.Project{Name: "Riverside Clinic"}); !apperr.Is(err, apperr.InvalidInput) {
		t.Errorf("duplicate CreateProject() error = %v, want %s", err, apperr.InvalidInput)
	}

	p.Name = "Riverside Clinic Phase 2"
	p.EndDate = nil
	updated, err := s.UpdateProject(ctx, p.ID, p)
	if err != nil {
		t.Fatalf("UpdateProject() error = %v", err)
	}
	if updated.Name != "Riverside Clinic Phase 2" || updated.EndDate != nil {
		t.Errorf("UpdateProject() = %+v", updated)
	}

	projects, err := s.ListProjects(ctx)
	if err != nil || len(projects) != 1 {
		t.Fatalf("ListProjects() = %v, %v", projects, err)
	}

	if err := s.DeleteProject(ctx, p.ID); err != nil {
		t.Fatalf("DeleteProject() error = %v", err)
	}
	if _, err := s.GetProject(ctx, p.ID); !apperr.Is(err, apperr.ProjectNotFound) {
		t.Errorf("GetProject() after delete error = %v, want %s", err, apperr.ProjectNotFound)
	}
	if err := s.DeleteProject(ctx, p.ID); !apperr.Is(err, apperr.ProjectNotFound) {
		t.Errorf("second DeleteProject() error = %v, want %s", err, apperr.ProjectNotFound)
	}
}

func TestProjectDateOrder(t *testing.T) {
	s := openTestStore(t)
	_, err := s.CreateProject(context.Background(), models.Project{
		Name:      "Backwards",
		StartDate: date.Ptr(date.MustParse("2024-06-10")),
		EndDate:   date.Ptr(date.MustParse("2024-06-01")),
	})
	if !apperr.Is(err, apperr.InvalidDateOrder) {
		t.Errorf("CreateProject() error = %v, want %s", err, apperr.InvalidDateOrder)
	}
}

func TestCreateAndListTasks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := createProject(t, s, "Depot")

	foundation := createTask(t, s, p.ID, "Foundation", "2024-06-01", "2024-06-05")
	framing := createTask(t, s, p.ID, "Framing", "2024-06-06", "2024-06-12", foundation.ID)
	createTask(t, s, p.ID, "Permits", "", "")

	if framing.Status != models.StatusNotStarted || framing.Priority != models.PriorityMedium {
		t.Errorf("defaults = %s/%s, want not_started/medium", framing.Status, framing.Priority)
	}
	if framing.Position != foundation.Position+1 {
		t.Errorf("Position = %d, want %d", framing.Position, foundation.Position+1)
	}

	tasks, err := s.ListTasks(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("len(tasks) = %d, want 3", len(tasks))
	}
	if got := tasks[1].DependsOn; len(got) != 1 || got[0] != foundation.ID {
		t.Errorf("DependsOn = %v, want [%d]", got, foundation.ID)
	}
	if tasks[2].StartDate != nil || tasks[2].DueDate != nil {
		t.Errorf("unscheduled task has dates %v %v", tasks[2].StartDate, tasks[2].DueDate)
	}

	if _, err := s.ListTasks(ctx, 999); !apperr.Is(err, apperr.ProjectNotFound) {
		t.Errorf("ListTasks(999) error = %v, want %s", err, apperr.ProjectNotFound)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	s := openTestStore(t)
	p := createProject(t, s, "Validation")

	tests := []struct {
		name string
		task models.Task
		code string
	}{
		{"empty title", models.Task{ProjectID: p.ID, Title: "  "}, apperr.InvalidInput},
		{"bad status", models.Task{ProjectID: p.ID, Title: "x", Status: "done"}, apperr.InvalidInput},
		{"bad priority", models.Task{ProjectID: p.ID, Title: "x", Priority: "urgent"}, apperr.InvalidInput},
		{"due before start", models.Task{
			ProjectID: p.ID, Title: "x",
			StartDate: date.Ptr(date.MustParse("2024-06-05")),
			DueDate:   date.Ptr(date.MustParse("2024-06-01")),
		}, apperr.InvalidDateOrder},
		{"missing dependency", models.Task{ProjectID: p.ID, Title: "x", DependsOn: []int64{42}}, apperr.DependencyNotFound},
		{"missing project", models.Task{ProjectID: 999, Title: "x"}, apperr.ProjectNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateTask(context.Background(), tt.task)
			if !apperr.Is(err, tt.code) {
				t.Errorf("CreateTask() error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestApplyTaskFields(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := createProject(t, s, "Apply")
	task := createTask(t, s, p.ID, "Roofing", "2024-06-10", "2024-06-14")

	start := date.MustParse("2024-06-12")
	due := date.MustParse("2024-06-16")
	progress := 140
	fields := models.TaskFields{StartDate: &start, DueDate: &due, Progress: &progress}

	updated, err := s.ApplyTaskFields(ctx, task.ID, fields)
	if err != nil {
		t.Fatalf("ApplyTaskFields() error = %v", err)
	}
	if updated.StartDate.String() != "2024-06-12" || updated.DueDate.String() != "2024-06-16" {
		t.Errorf("dates = %s..%s, want 2024-06-12..2024-06-16", updated.StartDate, updated.DueDate)
	}
	if updated.Progress != 100 {
		t.Errorf("Progress = %d, want clamped 100", updated.Progress)
	}
	if updated.Title != "Roofing" {
		t.Errorf("Title = %q, untouched field changed", updated.Title)
	}

	again, err := s.ApplyTaskFields(ctx, task.ID, fields)
	if err != nil {
		t.Fatalf("second ApplyTaskFields() error = %v", err)
	}
	if !again.StartDate.Equal(*updated.StartDate) || !again.DueDate.Equal(*updated.DueDate) || again.Progress != updated.Progress {
		t.Errorf("ApplyTaskFields() is not idempotent: %+v vs %+v", again, updated)
	}

	cleared, err := s.ApplyTaskFields(ctx, task.ID, models.TaskFields{ClearStart: true})
	if err != nil {
		t.Fatalf("ClearStart error = %v", err)
	}
	if cleared.StartDate != nil || cleared.DueDate == nil {
		t.Errorf("ClearStart left start=%v due=%v", cleared.StartDate, cleared.DueDate)
	}

	early := date.MustParse("2024-06-01")
	if _, err := s.ApplyTaskFields(ctx, task.ID, models.TaskFields{DueDate: &early, StartDate: &due}); !apperr.Is(err, apperr.InvalidDateOrder) {
		t.Errorf("inverted dates error = %v, want %s", err, apperr.InvalidDateOrder)
	}
	if _, err := s.ApplyTaskFields(ctx, 999, fields); !apperr.Is(err, apperr.TaskNotFound) {
		t.Errorf("missing task error = %v, want %s", err, apperr.TaskNotFound)
	}
}

func TestDependencies(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := createProject(t, s, "Graph")
	other := createProject(t, s, "Other")

	a := createTask(t, s, p.ID, "A", "2024-06-01", "2024-06-02")
	b := createTask(t, s, p.ID, "B", "2024-06-03", "2024-06-04", a.ID)
	c := createTask(t, s, p.ID, "C", "2024-06-05", "2024-06-06", b.ID)
	foreign := createTask(t, s, other.ID, "Foreign", "", "")

	if _, err := s.AddDependency(ctx, a.ID, c.ID); !apperr.Is(err, apperr.DependencyCycle) {
		t.Errorf("cycle error = %v, want %s", err, apperr.DependencyCycle)
	}
	if _, err := s.AddDependency(ctx, a.ID, a.ID); !apperr.Is(err, apperr.SelfReference) {
		t.Errorf("self error = %v, want %s", err, apperr.SelfReference)
	}
	if _, err := s.AddDependency(ctx, c.ID, foreign.ID); !apperr.Is(err, apperr.DependencyNotFound) {
		t.Errorf("cross-project error = %v, want %s", err, apperr.DependencyNotFound)
	}

	got, err := s.AddDependency(ctx, c.ID, a.ID)
	if err != nil {
		t.Fatalf("AddDependency() error = %v", err)
	}
	if len(got.DependsOn) != 2 {
		t.Errorf("DependsOn = %v, want two edges", got.DependsOn)
	}

	got, err = s.RemoveDependency(ctx, c.ID, b.ID)
	if err != nil {
		t.Fatalf("RemoveDependency() error = %v", err)
	}
	if len(got.DependsOn) != 1 || got.DependsOn[0] != a.ID {
		t.Errorf("DependsOn = %v, want [%d]", got.DependsOn, a.ID)
	}
	if _, err := s.RemoveDependency(ctx, c.ID, b.ID); !apperr.Is(err, apperr.DependencyNotFound) {
		t.Errorf("second RemoveDependency() error = %v, want %s", err, apperr.DependencyNotFound)
	}

	if err := s.DeleteTask(ctx, a.ID); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	after, err := s.GetTask(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if len(after.DependsOn) != 0 {
		t.Errorf("DependsOn = %v, want cascade to empty", after.DependsOn)
	}
}

func TestFindCycle(t *testing.T) {
	graph := map[int64][]int64{1: {2}, 2: {3}, 3: {1}, 4: {1}}
	path := findCycle(graph, 1)
	if len(path) != 4 || path[0] != 1 || path[len(path)-1] != 1 {
		t.Errorf("findCycle() = %v, want [1 2 3 1]", path)
	}
	if got := findCycle(map[int64][]int64{1: {2}, 2: {3}}, 1); got != nil {
		t.Errorf("findCycle() = %v, want nil", got)
	}
}

func TestMilestonesAndWeather(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := createProject(t, s, "Events")

	if _, err := s.CreateMilestone(ctx, models.Milestone{ProjectID: p.ID, Title: "Inspection", Date: date.MustParse("2024-06-20")}); err != nil {
		t.Fatalf("CreateMilestone() error = %v", err)
	}
	m, err := s.CreateMilestone(ctx, models.Milestone{ProjectID: p.ID, Title: "Kickoff", Date: date.MustParse("2024-06-01"), Priority: models.PriorityHigh, Completed: true})
	if err != nil {
		t.Fatalf("CreateMilestone() error = %v", err)
	}
	if _, err := s.CreateMilestone(ctx, models.Milestone{ProjectID: p.ID, Title: "No date"}); !apperr.Is(err, apperr.InvalidDate) {
		t.Errorf("undated milestone error = %v, want %s", err, apperr.InvalidDate)
	}

	milestones, err := s.ListMilestones(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListMilestones() error = %v", err)
	}
	if len(milestones) != 2 || milestones[0].Title != "Kickoff" || !milestones[0].Completed {
		t.Errorf("ListMilestones() = %+v, want Kickoff first and completed", milestones)
	}
	if milestones[1].Priority != models.PriorityMedium {
		t.Errorf("default priority = %q, want medium", milestones[1].Priority)
	}

	w, err := s.CreateWeatherEvent(ctx, models.WeatherEvent{ProjectID: p.ID, Title: "Storm", Date: date.MustParse("2024-06-08"), Severity: models.SeveritySevere})
	if err != nil {
		t.Fatalf("CreateWeatherEvent() error = %v", err)
	}
	if _, err := s.CreateWeatherEvent(ctx, models.WeatherEvent{ProjectID: p.ID, Title: "Fog", Date: date.MustParse("2024-06-09"), Severity: "apocalyptic"}); !apperr.Is(err, apperr.InvalidInput) {
		t.Errorf("bad severity error = %v, want %s", err, apperr.InvalidInput)
	}
	events, err := s.ListWeatherEvents(ctx, p.ID)
	if err != nil || len(events) != 1 || events[0].Date.String() != "2024-06-08" {
		t.Errorf("ListWeatherEvents() = %+v, %v", events, err)
	}

	if err := s.DeleteMilestone(ctx, m.ID); err != nil {
		t.Errorf("DeleteMilestone() error = %v", err)
	}
	if err := s.DeleteWeatherEvent(ctx, w.ID); err != nil {
		t.Errorf("DeleteWeatherEvent() error = %v", err)
	}
	if err := s.DeleteWeatherEvent(ctx, w.ID); err == nil {
		t.Error("second DeleteWeatherEvent() error = nil, want not found")
	}
}

func TestPreferences(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	defaults := models.Preferences{PanelWidth: 320}

	if got := s.LoadPreferences(ctx, defaults); got != defaults {
		t.Errorf("LoadPreferences() on empty store = %+v, want defaults", got)
	}

	want := models.Preferences{PanelWidth: 480, Collapsed: true}
	if err := s.SavePreferences(ctx, want); err != nil {
		t.Fatalf("SavePreferences() error = %v", err)
	}
	if got := s.LoadPreferences(ctx, defaults); got != want {
		t.Errorf("LoadPreferences() = %+v, want %+v", got, want)
	}

	if err := s.setSetting(ctx, prefPanelWidth, "wide"); err != nil {
		t.Fatalf("setSetting() error = %v", err)
	}
	got := s.LoadPreferences(ctx, defaults)
	if got.PanelWidth != 320 || !got.Collapsed {
		t.Errorf("corrupt width: LoadPreferences() = %+v, want width default and collapsed kept", got)
	}
}
