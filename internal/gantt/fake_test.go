package gantt

import (
	"context"
	"sort"
	"sync"

	"buildtrack/internal/apperr"
	"buildtrack/internal/models"
)

// fakeStore is an in-memory task feed and update API.
type fakeStore struct {
	mu         sync.Mutex
	tasks      map[int64]models.Task
	milestones []models.Milestone
	weather    []models.WeatherEvent
	calls      int
	failWith   error
	// gate, when set, blocks ApplyTaskFields until it is closed.
	gate    chan struct{}
	entered chan struct{}
}

func newFakeStore(tasks ...models.Task) *fakeStore {
	s := &fakeStore{tasks: map[int64]models.Task{}}
	for _, t := range tasks {
		s.tasks[t.ID] = t
	}
	return s
}

func (s *fakeStore) ListTasks(_ context.Context, projectID int64) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) ListMilestones(context.Context, int64) ([]models.Milestone, error) {
	return s.milestones, nil
}

func (s *fakeStore) ListWeatherEvents(context.Context, int64) ([]models.WeatherEvent, error) {
	return s.weather, nil
}

func (s *fakeStore) ApplyTaskFields(ctx context.Context, id int64, fields models.TaskFields) (models.Task, error) {
	s.mu.Lock()
	gate, entered := s.gate, s.entered
	s.mu.Unlock()
	if gate != nil {
		if entered != nil {
			entered <- struct{}{}
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return models.Task{}, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failWith != nil {
		return models.Task{}, s.failWith
	}
	t, ok := s.tasks[id]
	if !ok {
		return models.Task{}, apperr.Newf(apperr.TaskNotFound, "task %d not found", id)
	}
	t = fields.Apply(t)
	if t.StartDate != nil && t.DueDate != nil && t.DueDate.Before(*t.StartDate) {
		return models.Task{}, apperr.New(apperr.InvalidDateOrder, "due date before start date")
	}
	s.tasks[id] = t
	return t, nil
}

func (s *fakeStore) task(id int64) models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[id]
}

func (s *fakeStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
