package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"buildtrack/internal/date"
	"buildtrack/internal/models"
)

type projectRequest struct {
	Name      string `json:"name" binding:"required"`
	Color     string `json:"color"`
	StartDate string `json:"start_date" binding:"omitempty,isodate"`
	EndDate   string `json:"end_date" binding:"omitempty,isodate"`
}

func (r projectRequest) project() models.Project {
	p := models.Project{Name: r.Name, Color: r.Color}
	if r.StartDate != "" {
		p.StartDate = date.Ptr(date.MustParse(r.StartDate))
	}
	if r.EndDate != "" {
		p.EndDate = date.Ptr(date.MustParse(r.EndDate))
	}
	return p
}

// handleListProjects returns all available projects.
func (s *Server) handleListProjects(c *gin.Context) {
	projects, err := s.store.ListProjects(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"projects": projects})
}

// handleGetProject returns a single project.
func (s *Server) handleGetProject(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	project, err := s.store.GetProject(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"project": project})
}

// handleCreateProject creates a new project entity.
func (s *Server) handleCreateProject(c *gin.Context) {
	var req projectRequest
	if !s.bind(c, &req) {
		return
	}

	project, err := s.store.CreateProject(c.Request.Context(), req.project())
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"project": project})
}

// handleUpdateProject renames, recolors or re-dates an existing project.
func (s *Server) handleUpdateProject(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}

	var req projectRequest
	if !s.bind(c, &req) {
		return
	}

	project, err := s.store.UpdateProject(c.Request.Context(), id, req.project())
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.controllers.Refresh(c.Request.Context(), id)
	respondSuccess(c, http.StatusOK, gin.H{"project": project})
}

// handleDeleteProject removes a project and all related tasks.
func (s *Server) handleDeleteProject(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	if err := s.store.DeleteProject(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	s.controllers.Drop(id)
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}
