package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"buildtrack/internal/apperr"
	"buildtrack/internal/models"
)

const taskColumns = `id, project_id, title, description, status, priority, progress, category, assignee,
    start_date, due_date, estimated_hours, position, created_at, updated_at`

func scanTask(row rowScanner) (models.Task, error) {
	var t models.Task
	var start, due sql.NullString
	var hours sql.NullFloat64
	if err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.Progress,
		&t.Category, &t.Assignee, &start, &due, &hours, &t.Position, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return models.Task{}, err
	}
	var err error
	if t.StartDate, err = parseNullDate(start); err != nil {
		return models.Task{}, err
	}
	if t.DueDate, err = parseNullDate(due); err != nil {
		return models.Task{}, err
	}
	if hours.Valid {
		h := hours.Float64
		t.EstimatedHours = &h
	}
	return t, nil
}

// ListTasks returns the tasks of a project in position order, each with
// its dependency ids.
func (s *Store) ListTasks(ctx context.Context, projectID int64) ([]models.Task, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE project_id = ? ORDER BY position ASC, id ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	deps, err := s.projectDependencies(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		tasks[i].DependsOn = deps[tasks[i].ID]
	}
	return tasks, nil
}

// GetTask fetches a single task with its dependencies.
func (s *Store) GetTask(ctx context.Context, id int64) (models.Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, apperr.Newf(apperr.TaskNotFound, "task %d not found", id)
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("get task: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT depends_on_id FROM task_dependencies WHERE task_id = ? ORDER BY depends_on_id`, id)
	if err != nil {
		return models.Task{}, fmt.Errorf("task dependencies: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var dep int64
		if err := rows.Scan(&dep); err != nil {
			return models.Task{}, err
		}
		t.DependsOn = append(t.DependsOn, dep)
	}
	return t, rows.Err()
}

// CreateTask inserts a task at the end of its project.
func (s *Store) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	if _, err := s.GetProject(ctx, t.ProjectID); err != nil {
		return models.Task{}, err
	}
	if t.Status == "" {
		t.Status = models.StatusNotStarted
	}
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}
	if err := validateTask(&t); err != nil {
		return models.Task{}, err
	}
	if err := s.checkDependencies(ctx, 0, t.ProjectID, t.DependsOn); err != nil {
		return models.Task{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Task{}, err
	}
	defer tx.Rollback()

	position, err := nextPosition(ctx, tx, t.ProjectID)
	if err != nil {
		return models.Task{}, err
	}

	res, err := tx.ExecContext(ctx, `INSERT INTO tasks(project_id, title, description, status, priority, progress, category, assignee,
        start_date, due_date, estimated_hours, position) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ProjectID, t.Title, t.Description, t.Status, t.Priority, t.Progress, t.Category, t.Assignee,
		nullDate(t.StartDate), nullDate(t.DueDate), nullHours(t.EstimatedHours), position)
	if err != nil {
		return models.Task{}, fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Task{}, fmt.Errorf("task id: %w", err)
	}
	if err := replaceDependencies(ctx, tx, id, t.DependsOn); err != nil {
		return models.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Task{}, err
	}
	return s.GetTask(ctx, id)
}

// ApplyTaskFields applies a partial update and returns the stored task.
// Applying the same fields twice leaves the task unchanged.
func (s *Store) ApplyTaskFields(ctx context.Context, id int64, fields models.TaskFields) (models.Task, error) {
	current, err := s.GetTask(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	if fields.Empty() {
		return current, nil
	}

	t := fields.Apply(current)
	if err := validateTask(&t); err != nil {
		return models.Task{}, err
	}
	if fields.DependsOn != nil {
		if err := s.checkDependencies(ctx, id, t.ProjectID, t.DependsOn); err != nil {
			return models.Task{}, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Task{}, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `UPDATE tasks SET title = ?, description = ?, status = ?, priority = ?, progress = ?,
        category = ?, assignee = ?, start_date = ?, due_date = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		t.Title, t.Description, t.Status, t.Priority, t.Progress, t.Category, t.Assignee,
		nullDate(t.StartDate), nullDate(t.DueDate), id)
	if err != nil {
		return models.Task{}, fmt.Errorf("update task: %w", err)
	}
	if fields.DependsOn != nil {
		if err := replaceDependencies(ctx, tx, id, t.DependsOn); err != nil {
			return models.Task{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return models.Task{}, err
	}

	s.logger.Debug("task updated", "task_id", id)
	return s.GetTask(ctx, id)
}

// DeleteTask removes a task. Dependency rows pointing at it cascade.
func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.Newf(apperr.TaskNotFound, "task %d not found", id)
	}
	return nil
}

// AddDependency makes taskID depend on dependsOn.
func (s *Store) AddDependency(ctx context.Context, taskID, dependsOn int64) (models.Task, error) {
	t, err := s.GetTask(ctx, taskID)
	if err != nil {
		return models.Task{}, err
	}
	for _, d := range t.DependsOn {
		if d == dependsOn {
			return t, nil
		}
	}
	deps := append(append([]int64{}, t.DependsOn...), dependsOn)
	return s.ApplyTaskFields(ctx, taskID, models.TaskFields{DependsOn: &deps})
}

// RemoveDependency drops the edge taskID -> dependsOn if present.
func (s *Store) RemoveDependency(ctx context.Context, taskID, dependsOn int64) (models.Task, error) {
	t, err := s.GetTask(ctx, taskID)
	if err != nil {
		return models.Task{}, err
	}
	deps := make([]int64, 0, len(t.DependsOn))
	for _, d := range t.DependsOn {
		if d != dependsOn {
			deps = append(deps, d)
		}
	}
	if len(deps) == len(t.DependsOn) {
		return models.Task{}, apperr.Newf(apperr.DependencyNotFound, "task %d does not depend on task %d", taskID, dependsOn)
	}
	return s.ApplyTaskFields(ctx, taskID, models.TaskFields{DependsOn: &deps})
}

func validateTask(t *models.Task) error {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return apperr.New(apperr.InvalidInput, "task title must not be empty")
	}
	if _, ok := models.ValidTaskStatuses[t.Status]; !ok {
		return apperr.Newf(apperr.InvalidInput, "invalid status %q", t.Status)
	}
	if _, ok := models.ValidTaskPriorities[t.Priority]; !ok {
		return apperr.Newf(apperr.InvalidInput, "invalid priority %q", t.Priority)
	}
	t.Progress = max(0, min(100, t.Progress))
	if t.StartDate != nil && t.DueDate != nil && t.DueDate.Before(*t.StartDate) {
		return apperr.Newf(apperr.InvalidDateOrder, "due date %s is before start date %s", t.DueDate, t.StartDate).
			WithDetails(map[string]any{"start_date": t.StartDate.String(), "due_date": t.DueDate.String()})
	}
	if t.EstimatedHours != nil && *t.EstimatedHours < 0 {
		return apperr.New(apperr.InvalidInput, "estimated hours must not be negative")
	}
	return nil
}

// checkDependencies verifies every dependency exists in the same project
// and that the resulting graph stays acyclic. taskID is 0 for new tasks.
func (s *Store) checkDependencies(ctx context.Context, taskID, projectID int64, deps []int64) error {
	if len(deps) == 0 {
		return nil
	}
	graph, err := s.projectDependencies(ctx, projectID)
	if err != nil {
		return err
	}
	for _, dep := range deps {
		if dep == taskID {
			return apperr.Newf(apperr.SelfReference, "task %d cannot depend on itself", taskID)
		}
		var owner int64
		err := s.db.QueryRowContext(ctx, `SELECT project_id FROM tasks WHERE id = ?`, dep).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != projectID) {
			return apperr.Newf(apperr.DependencyNotFound, "dependency task %d not found in project %d", dep, projectID)
		}
		if err != nil {
			return fmt.Errorf("check dependency: %w", err)
		}
	}
	if taskID == 0 {
		return nil
	}
	graph[taskID] = deps
	if path := findCycle(graph, taskID); path != nil {
		return apperr.Newf(apperr.DependencyCycle, "dependency cycle through task %d", taskID).
			WithDetails(map[string]any{"cycle": path})
	}
	return nil
}

// findCycle returns a dependency path that leads from start back to
// itself, or nil.
func findCycle(graph map[int64][]int64, start int64) []int64 {
	visited := map[int64]bool{}
	var path []int64
	var walk func(id int64) bool
	walk = func(id int64) bool {
		for _, next := range graph[id] {
			if next == start {
				path = append(path, id, next)
				return true
			}
			if visited[next] {
				continue
			}
			visited[next] = true
			path = append(path, id)
			if walk(next) {
				return true
			}
			path = path[:len(path)-1]
		}
		return false
	}
	if walk(start) {
		return path
	}
	return nil
}

func (s *Store) projectDependencies(ctx context.Context, projectID int64) (map[int64][]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT d.task_id, d.depends_on_id FROM task_dependencies d
        JOIN tasks t ON t.id = d.task_id WHERE t.project_id = ? ORDER BY d.task_id, d.depends_on_id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list dependencies: %w", err)
	}
	defer rows.Close()

	deps := map[int64][]int64{}
	for rows.Next() {
		var task, dep int64
		if err := rows.Scan(&task, &dep); err != nil {
			return nil, err
		}
		deps[task] = append(deps[task], dep)
	}
	return deps, rows.Err()
}

func replaceDependencies(ctx context.Context, tx *sql.Tx, taskID int64, deps []int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_dependencies WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("clear dependencies: %w", err)
	}
	for _, dep := range deps {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO task_dependencies(task_id, depends_on_id) VALUES(?, ?)`, taskID, dep); err != nil {
			return fmt.Errorf("insert dependency: %w", err)
		}
	}
	return nil
}

func nextPosition(ctx context.Context, tx *sql.Tx, projectID int64) (int64, error) {
	var pos sql.NullInt64
	err := tx.QueryRowContext(ctx, `SELECT MAX(position) FROM tasks WHERE project_id = ?`, projectID).Scan(&pos)
	if err != nil {
		return 0, fmt.Errorf("next position: %w", err)
	}
	if !pos.Valid {
		return 1, nil
	}
	return pos.Int64 + 1, nil
}

func nullHours(h *float64) any {
	if h == nil {
		return nil
	}
	return *h
}
