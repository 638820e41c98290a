package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"buildtrack/internal/apperr"
	"buildtrack/internal/config"
	"buildtrack/internal/storage/sqlite"
)

// Server provides HTTP handlers for the scheduling backend.
type Server struct {
	engine      *gin.Engine
	store       *sqlite.Store
	logger      *slog.Logger
	staticDir   string
	controllers *Registry
}

// New constructs the HTTP server with routes and middleware configured.
func New(store *sqlite.Store, cfg *config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	registerValidators()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/api/healthz"))

	srv := &Server{
		engine:      router,
		store:       store,
		logger:      logger,
		staticDir:   cfg.Server.StaticDir,
		controllers: NewRegistry(store, cfg, logger),
	}

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Controllers exposes the per-project Gantt controllers.
func (s *Server) Controllers() *Registry {
	return s.controllers
}

// Close stops the background work of every controller.
func (s *Server) Close() {
	s.controllers.Close()
}

// registerRoutes wires all API and static handlers together.
func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	{
		api.GET("/healthz", s.handleHealth)
		api.GET("/preferences", s.handleGetPreferences)
		api.PUT("/preferences", s.handlePutPreferences)

		projects := api.Group("/projects")
		{
			projects.GET("", s.handleListProjects)
			projects.POST("", s.handleCreateProject)
			projects.GET(":id", s.handleGetProject)
			projects.PUT(":id", s.handleUpdateProject)
			projects.DELETE(":id", s.handleDeleteProject)
			projects.GET(":id/tasks", s.handleListTasks)
			projects.POST(":id/tasks", s.handleCreateTask)
			projects.GET(":id/milestones", s.handleListMilestones)
			projects.POST(":id/milestones", s.handleCreateMilestone)
			projects.GET(":id/weather", s.handleListWeather)
			projects.POST(":id/weather", s.handleCreateWeather)
			projects.GET(":id/health", s.handleProjectHealth)

			projects.GET(":id/gantt", s.handleGanttView)
			projects.GET(":id/gantt.svg", s.handleGanttSVG)
			projects.POST(":id/gantt/drag/start", s.handleDragStart)
			projects.POST(":id/gantt/drag/move", s.handleDragMove)
			projects.POST(":id/gantt/drag/drop", s.handleDragDrop)
			projects.POST(":id/gantt/drag/cancel", s.handleDragCancel)
			projects.POST(":id/gantt/pointer", s.handlePointer)
			projects.POST(":id/gantt/keys", s.handleKeys)

			projects.GET(":id/history", s.handleHistory)
			projects.POST(":id/history/undo", s.handleUndo)
			projects.POST(":id/history/redo", s.handleRedo)
			projects.DELETE(":id/history", s.handleClearHistory)
		}

		api.PUT("/tasks/:id", s.handleUpdateTask)
		api.DELETE("/tasks/:id", s.handleDeleteTask)
		api.POST("/tasks/:id/dependencies", s.handleAddDependency)
		api.DELETE("/tasks/:id/dependencies/:dep", s.handleRemoveDependency)
		api.DELETE("/milestones/:id", s.handleDeleteMilestone)
		api.DELETE("/weather/:id", s.handleDeleteWeather)
	}

	s.mountStatic()
}

// handleHealth provides a basic readiness endpoint.
func (s *Server) handleHealth(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		s.respondError(c, apperr.Wrap(apperr.InternalError, err, "database unavailable"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseID converts a path parameter to int64 with error handling.
func (s *Server) parseID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		s.respondError(c, apperr.Newf(apperr.InvalidInput, "invalid identifier %q", raw))
		return 0, false
	}
	return id, true
}

// bind decodes the JSON body into dst, reporting failures as INVALID_INPUT.
func (s *Server) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		s.respondError(c, bindError(err))
		return false
	}
	return true
}

func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := map[string]any{}
		code := apperr.InvalidInput
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
			if fe.Tag() == "viewmode" {
				code = apperr.InvalidViewMode
			}
		}
		return apperr.Wrap(code, err, "request validation failed").WithDetails(map[string]any{"fields": fields})
	}
	return apperr.Wrap(apperr.InvalidInput, err, err.Error())
}

// respondError logs the error and writes the error envelope.
func (s *Server) respondError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		appErr = apperr.Wrap(apperr.InternalError, err, "internal error")
	}
	status := appErr.HTTPStatus()

	attrs := []any{slog.String("path", c.FullPath()), slog.String("code", appErr.Code), slog.String("error", err.Error())}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", attrs...)
	} else {
		s.logger.Info("request rejected", attrs...)
	}

	body := gin.H{"error": appErr.Message, "code": appErr.Code}
	if len(appErr.Details) > 0 {
		body["details"] = appErr.Details
	}
	c.AbortWithStatusJSON(status, body)
}

// respondSuccess wraps a payload in a JSON envelope for consistency.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}
