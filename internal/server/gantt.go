package server

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"buildtrack/internal/apperr"
	"buildtrack/internal/date"
	"buildtrack/internal/gantt"
	"buildtrack/internal/render"
)

// ganttQuery describes the viewport a client is looking at.
type ganttQuery struct {
	View     string   `form:"view" binding:"omitempty,viewmode"`
	Start    string   `form:"start" binding:"omitempty,isodate"`
	End      string   `form:"end" binding:"omitempty,isodate"`
	Mobile   bool     `form:"mobile"`
	Scroll   int      `form:"scroll" binding:"min=0"`
	Height   int      `form:"height" binding:"min=0"`
	Status   []string `form:"status"`
	Priority []string `form:"priority"`
	Assignee string   `form:"assignee"`
	Category string   `form:"category"`
	Search   string   `form:"q"`
	Sort     string   `form:"sort" binding:"omitempty,oneof=position start due priority status title progress"`
	Reverse  bool     `form:"reverse"`
}

// controller resolves the :id parameter to a loaded Gantt controller.
func (s *Server) controller(c *gin.Context) (*gantt.Controller, bool) {
	projectID, ok := s.parseID(c, "id")
	if !ok {
		return nil, false
	}
	ctrl, err := s.controllers.Get(c.Request.Context(), projectID)
	if err != nil {
		s.respondError(c, err)
		return nil, false
	}
	return ctrl, true
}

// parseQuery binds the viewport query without touching any controller.
func (s *Server) parseQuery(c *gin.Context) (ganttQuery, gantt.ExportOptions, bool) {
	var q ganttQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.respondError(c, bindError(err))
		return q, gantt.ExportOptions{}, false
	}

	view := q.View
	if view == "" {
		view = s.controllers.Config().Timeline.DefaultView
	}
	mode, err := gantt.ParseViewMode(view)
	if err != nil {
		s.respondError(c, err)
		return q, gantt.ExportOptions{}, false
	}

	var rng *gantt.Range
	switch {
	case q.Start != "" && q.End != "":
		r, err := gantt.NewRange(date.MustParse(q.Start), date.MustParse(q.End))
		if err != nil {
			s.respondError(c, err)
			return q, gantt.ExportOptions{}, false
		}
		rng = &r
	case q.Start != "" || q.End != "":
		s.respondError(c, apperr.New(apperr.InvalidInput, "start and end must be given together"))
		return q, gantt.ExportOptions{}, false
	}

	return q, gantt.ExportOptions{
		Mode:   mode,
		Range:  rng,
		Mobile: q.Mobile,
		Filter: gantt.FilterOptions{
			Statuses:   q.Status,
			Priorities: q.Priority,
			Assignee:   q.Assignee,
			Category:   q.Category,
			Search:     q.Search,
		},
		SortField: q.Sort,
		Reverse:   q.Reverse,
	}, true
}

// handleGanttView returns the timeline snapshot for the requested viewport.
func (s *Server) handleGanttView(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	q, opts, ok := s.parseQuery(c)
	if !ok {
		return
	}
	ctrl.SetViewport(opts.Mode, opts.Range, opts.Mobile)
	ctrl.SetFilter(opts.Filter, opts.SortField, opts.Reverse)
	respondSuccess(c, http.StatusOK, gin.H{"gantt": ctrl.View(q.Scroll, q.Height)})
}

// handleGanttSVG exports every listed row as an SVG chart. The export
// query does not change the interactive viewport.
func (s *Server) handleGanttSVG(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	_, opts, ok := s.parseQuery(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := render.SVG(&buf, ctrl.Export(opts), render.DefaultSVGOptions()); err != nil {
		s.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/svg+xml", buf.Bytes())
}

type dragStartRequest struct {
	TaskID int64               `json:"task_id" binding:"required,gt=0"`
	Handle string              `json:"handle" binding:"omitempty,oneof=move start end"`
	X      float64             `json:"x"`
	Source gantt.PointerSource `json:"source" binding:"omitempty,oneof=mouse touch"`
}

type dragMoveRequest struct {
	X float64 `json:"x"`
}

func (s *Server) handleDragStart(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	var req dragStartRequest
	if !s.bind(c, &req) {
		return
	}
	handle, err := gantt.ParseHandle(req.Handle)
	if err != nil {
		s.respondError(c, err)
		return
	}
	source := req.Source
	if source == "" {
		source = gantt.SourceMouse
	}

	state, err := ctrl.StartDrag(req.TaskID, handle, gantt.Pointer{X: req.X, Source: source})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"drag": state})
}

func (s *Server) handleDragMove(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	var req dragMoveRequest
	if !s.bind(c, &req) {
		return
	}
	state, err := ctrl.MoveDrag(req.X)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"drag": state})
}

func (s *Server) handleDragDrop(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	res, err := ctrl.Drop(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"drop": res})
}

func (s *Server) handleDragCancel(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	state, ok := ctrl.CancelDrag()
	if !ok {
		s.respondError(c, gantt.ErrNoDrag)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"drag": state})
}

// handlePointer feeds a raw mouse or touch event into the drag session.
func (s *Server) handlePointer(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	var ev gantt.PointerEvent
	if !s.bind(c, &ev) {
		return
	}
	res, err := ctrl.HandlePointer(c.Request.Context(), ev)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"pointer": res})
}

// handleKeys runs the timeline keyboard shortcuts.
func (s *Server) handleKeys(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	var key gantt.Key
	if !s.bind(c, &key) {
		return
	}
	res, err := ctrl.HandleKey(c.Request.Context(), key)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"key": res})
}

// handleProjectHealth reports schedule health; computation failures come
// back as an unavailable report rather than an error.
func (s *Server) handleProjectHealth(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"health": ctrl.Health()})
}
