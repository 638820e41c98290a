package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleHistory(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"history": ctrl.History().Summary(true)})
}

func (s *Server) handleUndo(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	task, action, err := ctrl.Undo(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task, "action": action, "history": ctrl.History().Summary(false)})
}

func (s *Server) handleRedo(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	task, action, err := ctrl.Redo(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task, "action": action, "history": ctrl.History().Summary(false)})
}

func (s *Server) handleClearHistory(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	ctrl.ClearHistory()
	respondSuccess(c, http.StatusOK, gin.H{"history": ctrl.History().Summary(false)})
}
