package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

type taskRepository struct {
	db DBTX
}

func NewTaskRepository(db DBTX) TaskRepository {
	return &taskRepository{db: db}
}

const taskColumns = `id, workspace_id, project_id, title, description, type, status, priority,
	assignee_id, reporter_id, estimated_hours, logged_hours, remaining_hours, progress,
	start_date, due_date, completed_date, created_at, updated_at`

func scanTask(row interface{ Scan(...interface{}) error }) (*Task, error) {
	t := &Task{}
	err := row.Scan(
		&t.ID, &t.WorkspaceID, &t.ProjectID, &t.Title, &t.Description, &t.Type, &t.Status, &t.Priority,
		&t.AssigneeID, &t.ReporterID, &t.EstimatedHours, &t.LoggedHours, &t.RemainingHours, &t.Progress,
		&t.StartDate, &t.DueDate, &t.CompletedDate, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *taskRepository) scanTasks(ctx context.Context, query string, args ...interface{}) ([]*Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *taskRepository) Create(ctx context.Context, t *Task) error {
	query := `
		INSERT INTO tasks (
			workspace_id, project_id, title, description, type, status, priority, assignee_id, reporter_id,
			estimated_hours, logged_hours, remaining_hours, progress, start_date, due_date, completed_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		t.WorkspaceID, t.ProjectID, t.Title, t.Description, t.Type, t.Status, t.Priority, t.AssigneeID, t.ReporterID,
		t.EstimatedHours, t.LoggedHours, t.RemainingHours, t.Progress, t.StartDate, t.DueDate, t.CompletedDate,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

func (r *taskRepository) FindByID(ctx context.Context, id string) (*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	t, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	t.WatcherIDs, err = r.findWatcherIDs(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *taskRepository) findWatcherIDs(ctx context.Context, taskID string) ([]string, error) {
	query := `SELECT user_id FROM task_watchers WHERE task_id = $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *taskRepository) FindByProject(ctx context.Context, projectID string) ([]*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE project_id = $1 ORDER BY created_at`
	return r.scanTasks(ctx, query, projectID)
}

func (r *taskRepository) FindByWorkspace(ctx context.Context, workspaceID string) ([]*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE workspace_id = $1 ORDER BY created_at`
	return r.scanTasks(ctx, query, workspaceID)
}

func (r *taskRepository) List(ctx context.Context, filter TaskFilter) ([]*Task, int, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.ProjectID != "" {
		add("project_id = $%d", filter.ProjectID)
	}
	if filter.AssigneeID != "" {
		add("assignee_id = $%d", filter.AssigneeID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.Priority != "" {
		add("priority = $%d", filter.Priority)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM tasks%s ORDER BY due_date NULLS LAST, created_at DESC LIMIT $%d OFFSET $%d`,
		taskColumns, where, len(args)-1, len(args))

	tasks, err := r.scanTasks(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

func (r *taskRepository) Update(ctx context.Context, t *Task) error {
	query := `
		UPDATE tasks SET
			title = $2, description = $3, type = $4, status = $5, priority = $6, assignee_id = $7,
			estimated_hours = $8, logged_hours = $9, remaining_hours = $10, progress = $11,
			start_date = $12, due_date = $13, completed_date = $14, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	return r.db.QueryRowContext(ctx, query,
		t.ID, t.Title, t.Description, t.Type, t.Status, t.Priority, t.AssigneeID,
		t.EstimatedHours, t.LoggedHours, t.RemainingHours, t.Progress,
		t.StartDate, t.DueDate, t.CompletedDate,
	).Scan(&t.UpdatedAt)
}

func (r *taskRepository) UpdateHours(ctx context.Context, id string, logged, remaining float64) error {
	query := `UPDATE tasks SET logged_hours = $2, remaining_hours = $3, updated_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, logged, remaining)
	return err
}

func (r *taskRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	return err
}

// ============================================
// Watchers
// ============================================

func (r *taskRepository) AddWatcher(ctx context.Context, taskID, userID string) error {
	query := `
		INSERT INTO task_watchers (task_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (task_id, user_id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query, taskID, userID)
	return err
}

func (r *taskRepository) RemoveWatcher(ctx context.Context, taskID, userID string) error {
	query := `DELETE FROM task_watchers WHERE task_id = $1 AND user_id = $2`
	_, err := r.db.ExecContext(ctx, query, taskID, userID)
	return err
}
