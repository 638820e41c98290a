// Package seed imports a project and its schedule from a YAML fixture.
package seed

import (
	"context"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"buildtrack/internal/date"
	"buildtrack/internal/models"
)

// Fixture is the YAML document layout.
type Fixture struct {
	Project    ProjectFixture     `yaml:"project"`
	Tasks      []TaskFixture      `yaml:"tasks"`
	Milestones []MilestoneFixture `yaml:"milestones"`
	Weather    []WeatherFixture   `yaml:"weather"`
}

type ProjectFixture struct {
	Name      string     `yaml:"name"`
	Color     string     `yaml:"color"`
	StartDate *date.Date `yaml:"start_date"`
	EndDate   *date.Date `yaml:"end_date"`
}

// TaskFixture is a task keyed for dependency references. Key defaults to
// the title.
type TaskFixture struct {
	Key            string     `yaml:"key"`
	Title          string     `yaml:"title"`
	Description    string     `yaml:"description"`
	Status         string     `yaml:"status"`
	Priority       string     `yaml:"priority"`
	Progress       int        `yaml:"progress"`
	Category       string     `yaml:"category"`
	Assignee       string     `yaml:"assignee"`
	StartDate      *date.Date `yaml:"start_date"`
	DueDate        *date.Date `yaml:"due_date"`
	EstimatedHours *float64   `yaml:"estimated_hours"`
	DependsOn      []string   `yaml:"depends_on"`
}

type MilestoneFixture struct {
	Title     string    `yaml:"title"`
	Date      date.Date `yaml:"date"`
	Priority  string    `yaml:"priority"`
	Completed bool      `yaml:"completed"`
}

type WeatherFixture struct {
	Title       string    `yaml:"title"`
	Date        date.Date `yaml:"date"`
	Severity    string    `yaml:"severity"`
	Description string    `yaml:"description"`
}

// Store is the persistence a fixture is written to.
type Store interface {
	CreateProject(ctx context.Context, p models.Project) (models.Project, error)
	CreateTask(ctx context.Context, t models.Task) (models.Task, error)
	ApplyTaskFields(ctx context.Context, id int64, fields models.TaskFields) (models.Task, error)
	CreateMilestone(ctx context.Context, m models.Milestone) (models.Milestone, error)
	CreateWeatherEvent(ctx context.Context, w models.WeatherEvent) (models.WeatherEvent, error)
}

// Result summarizes an import.
type Result struct {
	Project    models.Project
	Tasks      int
	Milestones int
	Weather    int
}

// Parse decodes a fixture and checks task keys and references.
func Parse(r io.Reader) (Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return Fixture{}, fmt.Errorf("decode fixture: %w", err)
	}

	keys := map[string]bool{}
	for i := range f.Tasks {
		t := &f.Tasks[i]
		if t.Key == "" {
			t.Key = t.Title
		}
		if keys[t.Key] {
			return Fixture{}, fmt.Errorf("duplicate task key %q", t.Key)
		}
		keys[t.Key] = true
	}
	for _, t := range f.Tasks {
		for _, dep := range t.DependsOn {
			if !keys[dep] {
				return Fixture{}, fmt.Errorf("task %q depends on unknown key %q", t.Key, dep)
			}
		}
	}
	return f, nil
}

// Import creates the fixture's project, then its tasks in order, then the
// dependency edges and finally milestones and weather events. It stops at
// the first store error.
func Import(ctx context.Context, store Store, f Fixture) (Result, error) {
	var res Result

	project, err := store.CreateProject(ctx, models.Project{
		Name:      f.Project.Name,
		Color:     f.Project.Color,
		StartDate: f.Project.StartDate,
		EndDate:   f.Project.EndDate,
	})
	if err != nil {
		return res, fmt.Errorf("create project: %w", err)
	}
	res.Project = project

	ids := make(map[string]int64, len(f.Tasks))
	for _, t := range f.Tasks {
		created, err := store.CreateTask(ctx, models.Task{
			ProjectID:      project.ID,
			Title:          t.Title,
			Description:    t.Description,
			Status:         t.Status,
			Priority:       t.Priority,
			Progress:       t.Progress,
			Category:       t.Category,
			Assignee:       t.Assignee,
			StartDate:      t.StartDate,
			DueDate:        t.DueDate,
			EstimatedHours: t.EstimatedHours,
		})
		if err != nil {
			return res, fmt.Errorf("create task %q: %w", t.Key, err)
		}
		ids[t.Key] = created.ID
		res.Tasks++
	}

	for _, t := range f.Tasks {
		if len(t.DependsOn) == 0 {
			continue
		}
		deps := make([]int64, 0, len(t.DependsOn))
		for _, key := range t.DependsOn {
			deps = append(deps, ids[key])
		}
		if _, err := store.ApplyTaskFields(ctx, ids[t.Key], models.TaskFields{DependsOn: &deps}); err != nil {
			return res, fmt.Errorf("link task %q: %w", t.Key, err)
		}
	}

	for _, m := range f.Milestones {
		if _, err := store.CreateMilestone(ctx, models.Milestone{
			ProjectID: project.ID,
			Title:     m.Title,
			Date:      m.Date,
			Priority:  m.Priority,
			Completed: m.Completed,
		}); err != nil {
			return res, fmt.Errorf("create milestone %q: %w", m.Title, err)
		}
		res.Milestones++
	}

	for _, w := range f.Weather {
		if _, err := store.CreateWeatherEvent(ctx, models.WeatherEvent{
			ProjectID:   project.ID,
			Title:       w.Title,
			Date:        w.Date,
			Severity:    w.Severity,
			Description: w.Description,
		}); err != nil {
			return res, fmt.Errorf("create weather event %q: %w", w.Title, err)
		}
		res.Weather++
	}

	return res, nil
}
