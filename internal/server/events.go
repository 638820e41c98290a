package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"buildtrack/internal/date"
	"buildtrack/internal/models"
)

type milestoneRequest struct {
	Title     string `json:"title" binding:"required"`
	Date      string `json:"date" binding:"required,isodate"`
	Priority  string `json:"priority" binding:"omitempty,oneof=low medium high critical"`
	Completed bool   `json:"completed"`
}

type weatherRequest struct {
	Title       string `json:"title" binding:"required"`
	Date        string `json:"date" binding:"required,isodate"`
	Severity    string `json:"severity" binding:"omitempty,oneof=info warning severe"`
	Description string `json:"description"`
}

func (s *Server) handleListMilestones(c *gin.Context) {
	projectID, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	if _, err := s.store.GetProject(c.Request.Context(), projectID); err != nil {
		s.respondError(c, err)
		return
	}
	milestones, err := s.store.ListMilestones(c.Request.Context(), projectID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"milestones": milestones})
}

func (s *Server) handleCreateMilestone(c *gin.Context) {
	projectID, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	var req milestoneRequest
	if !s.bind(c, &req) {
		return
	}

	m, err := s.store.CreateMilestone(c.Request.Context(), models.Milestone{
		ProjectID: projectID,
		Title:     req.Title,
		Date:      date.MustParse(req.Date),
		Priority:  req.Priority,
		Completed: req.Completed,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.controllers.Refresh(c.Request.Context(), projectID)
	respondSuccess(c, http.StatusCreated, gin.H{"milestone": m})
}

func (s *Server) handleDeleteMilestone(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	if err := s.store.DeleteMilestone(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	s.refreshAll(c)
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) handleListWeather(c *gin.Context) {
	projectID, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	if _, err := s.store.GetProject(c.Request.Context(), projectID); err != nil {
		s.respondError(c, err)
		return
	}
	events, err := s.store.ListWeatherEvents(c.Request.Context(), projectID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"weather": events})
}

func (s *Server) handleCreateWeather(c *gin.Context) {
	projectID, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	var req weatherRequest
	if !s.bind(c, &req) {
		return
	}

	w, err := s.store.CreateWeatherEvent(c.Request.Context(), models.WeatherEvent{
		ProjectID:   projectID,
		Title:       req.Title,
		Date:        date.MustParse(req.Date),
		Severity:    req.Severity,
		Description: req.Description,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.controllers.Refresh(c.Request.Context(), projectID)
	respondSuccess(c, http.StatusCreated, gin.H{"weather_event": w})
}

func (s *Server) handleDeleteWeather(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	if err := s.store.DeleteWeatherEvent(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	s.refreshAll(c)
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

// refreshAll reloads every loaded controller; deletes by event id do not
// know the owning project.
func (s *Server) refreshAll(c *gin.Context) {
	for _, id := range s.controllers.Loaded() {
		s.controllers.Refresh(c.Request.Context(), id)
	}
}
