package sqlite

import (
	"context"
	"fmt"
	"strings"

	"buildtrack/internal/apperr"
	"buildtrack/internal/date"
	"buildtrack/internal/models"
)

// ListMilestones returns the milestones of a project ordered by date.
func (s *Store) ListMilestones(ctx context.Context, projectID int64) ([]models.Milestone, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, project_id, title, date, priority, completed FROM milestones
        WHERE project_id = ? ORDER BY date ASC, id ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list milestones: %w", err)
	}
	defer rows.Close()

	milestones := []models.Milestone{}
	for rows.Next() {
		var m models.Milestone
		var day string
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Title, &day, &m.Priority, &m.Completed); err != nil {
			return nil, fmt.Errorf("scan milestone: %w", err)
		}
		if m.Date, err = date.Parse(day); err != nil {
			return nil, fmt.Errorf("milestone %d: %w", m.ID, err)
		}
		milestones = append(milestones, m)
	}
	return milestones, rows.Err()
}

// CreateMilestone stores a milestone for an existing project.
func (s *Store) CreateMilestone(ctx context.Context, m models.Milestone) (models.Milestone, error) {
	if _, err := s.GetProject(ctx, m.ProjectID); err != nil {
		return models.Milestone{}, err
	}
	m.Title = strings.TrimSpace(m.Title)
	if m.Title == "" {
		return models.Milestone{}, apperr.New(apperr.InvalidInput, "milestone title must not be empty")
	}
	if m.Date.IsZero() {
		return models.Milestone{}, apperr.New(apperr.InvalidDate, "milestone date is required")
	}
	if m.Priority == "" {
		m.Priority = models.PriorityMedium
	}
	if _, ok := models.ValidTaskPriorities[m.Priority]; !ok {
		return models.Milestone{}, apperr.Newf(apperr.InvalidInput, "invalid priority %q", m.Priority)
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO milestones(project_id, title, date, priority, completed) VALUES(?, ?, ?, ?, ?)`,
		m.ProjectID, m.Title, m.Date.String(), m.Priority, m.Completed)
	if err != nil {
		return models.Milestone{}, fmt.Errorf("insert milestone: %w", err)
	}
	if m.ID, err = res.LastInsertId(); err != nil {
		return models.Milestone{}, fmt.Errorf("milestone id: %w", err)
	}
	return m, nil
}

// DeleteMilestone removes a milestone.
func (s *Store) DeleteMilestone(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, "milestones", id, "milestone")
}

// ListWeatherEvents returns the weather events of a project ordered by date.
func (s *Store) ListWeatherEvents(ctx context.Context, projectID int64) ([]models.WeatherEvent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, project_id, date, severity, title, description FROM weather_events
        WHERE project_id = ? ORDER BY date ASC, id ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list weather events: %w", err)
	}
	defer rows.Close()

	events := []models.WeatherEvent{}
	for rows.Next() {
		var w models.WeatherEvent
		var day string
		if err := rows.Scan(&w.ID, &w.ProjectID, &day, &w.Severity, &w.Title, &w.Description); err != nil {
			return nil, fmt.Errorf("scan weather event: %w", err)
		}
		if w.Date, err = date.Parse(day); err != nil {
			return nil, fmt.Errorf("weather event %d: %w", w.ID, err)
		}
		events = append(events, w)
	}
	return events, rows.Err()
}

// CreateWeatherEvent stores a weather alert for an existing project.
func (s *Store) CreateWeatherEvent(ctx context.Context, w models.WeatherEvent) (models.WeatherEvent, error) {
	if _, err := s.GetProject(ctx, w.ProjectID); err != nil {
		return models.WeatherEvent{}, err
	}
	w.Title = strings.TrimSpace(w.Title)
	if w.Title == "" {
		return models.WeatherEvent{}, apperr.New(apperr.InvalidInput, "weather event title must not be empty")
	}
	if w.Date.IsZero() {
		return models.WeatherEvent{}, apperr.New(apperr.InvalidDate, "weather event date is required")
	}
	switch w.Severity {
	case "":
		w.Severity = models.SeverityInfo
	case models.SeverityInfo, models.SeverityWarning, models.SeveritySevere:
	default:
		return models.WeatherEvent{}, apperr.Newf(apperr.InvalidInput, "invalid severity %q", w.Severity)
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO weather_events(project_id, date, severity, title, description) VALUES(?, ?, ?, ?, ?)`,
		w.ProjectID, w.Date.String(), w.Severity, w.Title, w.Description)
	if err != nil {
		return models.WeatherEvent{}, fmt.Errorf("insert weather event: %w", err)
	}
	if w.ID, err = res.LastInsertId(); err != nil {
		return models.WeatherEvent{}, fmt.Errorf("weather event id: %w", err)
	}
	return w, nil
}

// DeleteWeatherEvent removes a weather event.
func (s *Store) DeleteWeatherEvent(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, "weather_events", id, "weather event")
}

func (s *Store) deleteRow(ctx context.Context, table string, id int64, what string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", what, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.Newf(apperr.InvalidInput, "%s %d not found", what, id)
	}
	return nil
}
