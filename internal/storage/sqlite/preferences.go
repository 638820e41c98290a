package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"buildtrack/internal/models"
)

const (
	prefPanelWidth = "timeline.panel_width"
	prefCollapsed  = "timeline.collapsed"
)

// LoadPreferences reads the saved panel preferences. Missing or unreadable
// values fall back to defaults.
func (s *Store) LoadPreferences(ctx context.Context, defaults models.Preferences) models.Preferences {
	prefs := defaults

	if raw, err := s.getSetting(ctx, prefPanelWidth); err != nil {
		s.logger.Debug("load preference failed", "key", prefPanelWidth, "error", err)
	} else if raw != "" {
		if width, err := strconv.Atoi(raw); err != nil {
			s.logger.Debug("corrupt preference ignored", "key", prefPanelWidth, "value", raw)
		} else {
			prefs.PanelWidth = width
		}
	}

	if raw, err := s.getSetting(ctx, prefCollapsed); err != nil {
		s.logger.Debug("load preference failed", "key", prefCollapsed, "error", err)
	} else if raw != "" {
		if collapsed, err := strconv.ParseBool(raw); err != nil {
			s.logger.Debug("corrupt preference ignored", "key", prefCollapsed, "value", raw)
		} else {
			prefs.Collapsed = collapsed
		}
	}

	return prefs
}

// SavePreferences stores the panel preferences.
func (s *Store) SavePreferences(ctx context.Context, prefs models.Preferences) error {
	if err := s.setSetting(ctx, prefPanelWidth, strconv.Itoa(prefs.PanelWidth)); err != nil {
		return err
	}
	return s.setSetting(ctx, prefCollapsed, strconv.FormatBool(prefs.Collapsed))
}

func (s *Store) getSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get preference %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) setSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO preferences (key, value) VALUES (?, ?)
        ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set preference %s: %w", key, err)
	}
	return nil
}
