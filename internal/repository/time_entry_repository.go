package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

type timeEntryRepository struct {
	db DBTX
}

func NewTimeEntryRepository(db DBTX) TimeEntryRepository {
	return &timeEntryRepository{db: db}
}

const timeEntryColumns = `id, user_id, task_id, project_id, workspace_id, description, hours, date,
	billable, is_running, start_time, end_time, approved, approved_by, approved_at,
	approval_comment, invoiced, created_at, updated_at`

func scanTimeEntry(row interface{ Scan(...interface{}) error }) (*TimeEntry, error) {
	e := &TimeEntry{}
	err := row.Scan(
		&e.ID, &e.UserID, &e.TaskID, &e.ProjectID, &e.WorkspaceID, &e.Description, &e.Hours, &e.Date,
		&e.Billable, &e.IsRunning, &e.StartTime, &e.EndTime, &e.Approved, &e.ApprovedBy, &e.ApprovedAt,
		&e.ApprovalComment, &e.Invoiced, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *timeEntryRepository) scanEntries(ctx context.Context, query string, args ...interface{}) ([]*TimeEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*TimeEntry
	for rows.Next() {
		e, err := scanTimeEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *timeEntryRepository) Create(ctx context.Context, e *TimeEntry) error {
	query := `
		INSERT INTO time_entries (
			user_id, task_id, project_id, workspace_id, description, hours, date,
			billable, is_running, start_time, end_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		e.UserID, e.TaskID, e.ProjectID, e.WorkspaceID, e.Description, e.Hours, e.Date,
		e.Billable, e.IsRunning, e.StartTime, e.EndTime,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *timeEntryRepository) FindByID(ctx context.Context, id string) (*TimeEntry, error) {
	query := `SELECT ` + timeEntryColumns + ` FROM time_entries WHERE id = $1`

	e, err := scanTimeEntry(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

func (r *timeEntryRepository) FindRunningByUser(ctx context.Context, userID string) (*TimeEntry, error) {
	query := `SELECT ` + timeEntryColumns + ` FROM time_entries WHERE user_id = $1 AND is_running`

	e, err := scanTimeEntry(r.db.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

func (r *timeEntryRepository) FindByTask(ctx context.Context, taskID string) ([]*TimeEntry, error) {
	query := `SELECT ` + timeEntryColumns + ` FROM time_entries WHERE task_id = $1 ORDER BY date, created_at`
	return r.scanEntries(ctx, query, taskID)
}

func (r *timeEntryRepository) FindByProject(ctx context.Context, projectID string) ([]*TimeEntry, error) {
	query := `SELECT ` + timeEntryColumns + ` FROM time_entries WHERE project_id = $1 ORDER BY date, created_at`
	return r.scanEntries(ctx, query, projectID)
}

func (r *timeEntryRepository) FindStaleRunning(ctx context.Context, startedBefore time.Time) ([]*TimeEntry, error) {
	query := `SELECT ` + timeEntryColumns + ` FROM time_entries
		WHERE is_running AND start_time < $1
		ORDER BY start_time`
	return r.scanEntries(ctx, query, startedBefore)
}

func buildTimeEntryWhere(f TimeEntryFilter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.WorkspaceID != "" {
		add("workspace_id = $%d", f.WorkspaceID)
	}
	if f.ProjectID != "" {
		add("project_id = $%d", f.ProjectID)
	}
	if f.TaskID != "" {
		add("task_id = $%d", f.TaskID)
	}
	if f.Billable != nil {
		add("billable = $%d", *f.Billable)
	}
	if f.From != nil {
		add("date >= $%d", *f.From)
	}
	if f.To != nil {
		add("date <= $%d", *f.To)
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *timeEntryRepository) List(ctx context.Context, filter TimeEntryFilter) ([]*TimeEntry, int, error) {
	where, args := buildTimeEntryWhere(filter)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM time_entries`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM time_entries%s ORDER BY date DESC, created_at DESC LIMIT $%d OFFSET $%d`,
		timeEntryColumns, where, len(args)-1, len(args))

	entries, err := r.scanEntries(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *timeEntryRepository) Summarize(ctx context.Context, filter TimeEntryFilter) (*TimeSummary, error) {
	where, args := buildTimeEntryWhere(filter)

	query := `
		SELECT
			COALESCE(SUM(hours), 0),
			COALESCE(SUM(hours) FILTER (WHERE billable), 0),
			COALESCE(SUM(hours) FILTER (WHERE NOT billable), 0),
			COUNT(*)
		FROM time_entries` + where

	s := &TimeSummary{}
	err := r.db.QueryRowContext(ctx, query, args...).
		Scan(&s.TotalHours, &s.BillableHours, &s.NonBillableHours, &s.TotalEntries)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *timeEntryRepository) Update(ctx context.Context, e *TimeEntry) error {
	query := `
		UPDATE time_entries SET
			description = $2, hours = $3, date = $4, billable = $5, is_running = $6,
			start_time = $7, end_time = $8, approved = $9, approved_by = $10, approved_at = $11,
			approval_comment = $12, invoiced = $13, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	return r.db.QueryRowContext(ctx, query,
		e.ID, e.Description, e.Hours, e.Date, e.Billable, e.IsRunning,
		e.StartTime, e.EndTime, e.Approved, e.ApprovedBy, e.ApprovedAt,
		e.ApprovalComment, e.Invoiced,
	).Scan(&e.UpdatedAt)
}

func (r *timeEntryRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM time_entries WHERE id = $1`, id)
	return err
}
