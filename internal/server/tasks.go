package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"buildtrack/internal/apperr"
	"buildtrack/internal/date"
	"buildtrack/internal/models"
)

// taskRequest carries a task create or partial update. An empty start or
// due date string clears the date.
type taskRequest struct {
	Title          *string  `json:"title"`
	Description    *string  `json:"description"`
	Status         *string  `json:"status" binding:"omitempty,oneof=not_started in_progress completed blocked"`
	Priority       *string  `json:"priority" binding:"omitempty,oneof=low medium high critical"`
	Progress       *int     `json:"progress" binding:"omitempty,min=0,max=100"`
	Category       *string  `json:"category"`
	Assignee       *string  `json:"assignee"`
	StartDate      *string  `json:"start_date"`
	DueDate        *string  `json:"due_date"`
	EstimatedHours *float64 `json:"estimated_hours" binding:"omitempty,min=0"`
	DependsOn      *[]int64 `json:"depends_on"`
}

func (r taskRequest) fields() (models.TaskFields, error) {
	f := models.TaskFields{
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		Priority:    r.Priority,
		Progress:    r.Progress,
		Category:    r.Category,
		Assignee:    r.Assignee,
		DependsOn:   r.DependsOn,
	}
	var err error
	if f.StartDate, f.ClearStart, err = optionalDate(r.StartDate, "start_date"); err != nil {
		return f, err
	}
	if f.DueDate, f.ClearDue, err = optionalDate(r.DueDate, "due_date"); err != nil {
		return f, err
	}
	return f, nil
}

func optionalDate(raw *string, field string) (*date.Date, bool, error) {
	if raw == nil {
		return nil, false, nil
	}
	if *raw == "" {
		return nil, true, nil
	}
	d, err := date.Parse(*raw)
	if err != nil {
		return nil, false, apperr.Newf(apperr.InvalidDate, "%s %q is not a YYYY-MM-DD date", field, *raw).
			WithDetails(map[string]any{"field": field})
	}
	return &d, false, nil
}

// handleListTasks fetches tasks for a project.
func (s *Server) handleListTasks(c *gin.Context) {
	projectID, ok := s.parseID(c, "id")
	if !ok {
		return
	}

	tasks, err := s.store.ListTasks(c.Request.Context(), projectID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"tasks": tasks})
}

// handleCreateTask inserts a new task at the end of a project.
func (s *Server) handleCreateTask(c *gin.Context) {
	projectID, ok := s.parseID(c, "id")
	if !ok {
		return
	}

	var req taskRequest
	if !s.bind(c, &req) {
		return
	}
	if req.Title == nil || *req.Title == "" {
		s.respondError(c, apperr.New(apperr.InvalidInput, "title is required"))
		return
	}
	f, err := req.fields()
	if err != nil {
		s.respondError(c, err)
		return
	}

	task := f.Apply(models.Task{ProjectID: projectID})
	task.EstimatedHours = req.EstimatedHours
	created, err := s.store.CreateTask(c.Request.Context(), task)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.controllers.Refresh(c.Request.Context(), projectID)
	respondSuccess(c, http.StatusCreated, gin.H{"task": created})
}

// handleUpdateTask applies a partial edit through the project's Gantt
// controller so the change can be undone.
func (s *Server) handleUpdateTask(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}

	var req taskRequest
	if !s.bind(c, &req) {
		return
	}
	f, err := req.fields()
	if err != nil {
		s.respondError(c, err)
		return
	}
	if f.Empty() {
		s.respondError(c, apperr.New(apperr.InvalidInput, "no fields to update"))
		return
	}

	ctx := c.Request.Context()
	current, err := s.store.GetTask(ctx, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	ctrl, err := s.controllers.Get(ctx, current.ProjectID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	task, err := ctrl.UpdateTask(ctx, id, f)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

// handleDeleteTask removes a task.
func (s *Server) handleDeleteTask(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.store.DeleteTask(ctx, id); err != nil {
		s.respondError(c, err)
		return
	}
	s.controllers.Refresh(ctx, task.ProjectID)
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

type dependencyRequest struct {
	DependsOn int64 `json:"depends_on" binding:"required,gt=0"`
}

// handleAddDependency makes a task wait for another one.
func (s *Server) handleAddDependency(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	var req dependencyRequest
	if !s.bind(c, &req) {
		return
	}

	task, err := s.store.AddDependency(c.Request.Context(), id, req.DependsOn)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.controllers.Refresh(c.Request.Context(), task.ProjectID)
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

// handleRemoveDependency drops a dependency edge.
func (s *Server) handleRemoveDependency(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	dep, ok := s.parseID(c, "dep")
	if !ok {
		return
	}

	task, err := s.store.RemoveDependency(c.Request.Context(), id, dep)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.controllers.Refresh(c.Request.Context(), task.ProjectID)
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}
