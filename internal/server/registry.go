package server

import (
	"context"
	"log/slog"
	"sync"

	"buildtrack/internal/config"
	"buildtrack/internal/gantt"
	"buildtrack/internal/models"
	"buildtrack/internal/storage/sqlite"
)

// Registry lazily creates one Gantt controller per project and keeps it
// in sync with the store.
type Registry struct {
	store  *sqlite.Store
	logger *slog.Logger

	mu          sync.Mutex
	cfg         *config.Config
	controllers map[int64]*gantt.Controller
}

// NewRegistry creates an empty registry.
func NewRegistry(store *sqlite.Store, cfg *config.Config, logger *slog.Logger) *Registry {
	return &Registry{
		store:       store,
		logger:      logger,
		cfg:         cfg,
		controllers: map[int64]*gantt.Controller{},
	}
}

// Get returns the controller of projectID, loading it on first use.
func (r *Registry) Get(ctx context.Context, projectID int64) (*gantt.Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.controllers[projectID]; ok {
		return c, nil
	}

	c := gantt.NewController(projectID, gantt.Deps{
		Tasks:       r.store,
		Updater:     r.store,
		Markers:     r.store,
		Preferences: r.store,
		Rules:       gantt.DefaultRules(),
	}, r.cfg, r.logger)
	if err := c.Refresh(ctx); err != nil {
		c.Close()
		return nil, err
	}
	r.controllers[projectID] = c
	r.logger.Debug("gantt controller loaded", slog.Int64("project_id", projectID))
	return c, nil
}

// Refresh reloads a loaded controller after its data changed outside the
// controller. Unloaded projects are left alone.
func (r *Registry) Refresh(ctx context.Context, projectID int64) {
	r.mu.Lock()
	c, ok := r.controllers[projectID]
	r.mu.Unlock()
	if !ok {
		return
	}
	if err := c.Refresh(ctx); err != nil {
		r.logger.Warn("gantt refresh failed", slog.Int64("project_id", projectID), slog.String("error", err.Error()))
	}
}

// Loaded returns the ids of projects with a live controller.
func (r *Registry) Loaded() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int64, 0, len(r.controllers))
	for id := range r.controllers {
		ids = append(ids, id)
	}
	return ids
}

// Drop unloads the controller of a deleted project.
func (r *Registry) Drop(projectID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.controllers[projectID]; ok {
		c.Close()
		delete(r.controllers, projectID)
	}
}

// Reconfigure pushes a reloaded config to every loaded controller.
func (r *Registry) Reconfigure(cfg *config.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
	for _, c := range r.controllers {
		c.Reconfigure(cfg)
	}
}

// Config returns the config new controllers are created with.
func (r *Registry) Config() *config.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// SetPreferences applies panel preferences to every loaded controller and
// persists them.
func (r *Registry) SetPreferences(ctx context.Context, prefs models.Preferences) (models.Preferences, error) {
	r.mu.Lock()
	cfg := r.cfg
	loaded := make([]*gantt.Controller, 0, len(r.controllers))
	for _, c := range r.controllers {
		loaded = append(loaded, c)
	}
	r.mu.Unlock()

	prefs = gantt.ClampPreferences(prefs, cfg.Preferences)
	for _, c := range loaded {
		c.SetPreferences(ctx, prefs)
	}
	if len(loaded) == 0 {
		if err := r.store.SavePreferences(ctx, prefs); err != nil {
			return prefs, err
		}
	}
	return prefs, nil
}

// Close stops every controller.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.controllers {
		c.Close()
		delete(r.controllers, id)
	}
}
