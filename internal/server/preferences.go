package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"buildtrack/internal/gantt"
	"buildtrack/internal/models"
)

type preferencesRequest struct {
	PanelWidth *int  `json:"panel_width" binding:"omitempty,gt=0"`
	Collapsed  *bool `json:"collapsed"`
}

// handleGetPreferences returns the saved panel preferences, or the
// configured defaults when nothing usable is stored.
func (s *Server) handleGetPreferences(c *gin.Context) {
	cfg := s.controllers.Config().Preferences
	defaults := models.Preferences{PanelWidth: cfg.PanelWidth, Collapsed: cfg.Collapsed}
	prefs := gantt.ClampPreferences(s.store.LoadPreferences(c.Request.Context(), defaults), cfg)
	respondSuccess(c, http.StatusOK, gin.H{"preferences": prefs})
}

// handlePutPreferences updates the panel preferences. Widths outside the
// configured bounds are clamped.
func (s *Server) handlePutPreferences(c *gin.Context) {
	var req preferencesRequest
	if !s.bind(c, &req) {
		return
	}

	ctx := c.Request.Context()
	cfg := s.controllers.Config().Preferences
	prefs := s.store.LoadPreferences(ctx, models.Preferences{PanelWidth: cfg.PanelWidth, Collapsed: cfg.Collapsed})
	if req.PanelWidth != nil {
		prefs.PanelWidth = *req.PanelWidth
	}
	if req.Collapsed != nil {
		prefs.Collapsed = *req.Collapsed
	}

	prefs, err := s.controllers.SetPreferences(ctx, prefs)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"preferences": prefs})
}
