package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

type pgReportRepository struct {
	pool *pgxpool.Pool
}

func NewReportRepository(pool *pgxpool.Pool) ReportRepository {
	return &pgReportRepository{pool: pool}
}

// TimeReport aggregates time entries of a workspace. Rows come back ordered by
// day for the daily grouping and by total hours otherwise.
func (r *pgReportRepository) TimeReport(ctx context.Context, f ReportFilter) ([]ReportRow, error) {
	args := []interface{}{f.WorkspaceID}
	conds := []string{"te.workspace_id = $1"}

	if f.ProjectID != "" {
		args = append(args, f.ProjectID)
		conds = append(conds, "te.project_id = $"+strconv.Itoa(len(args)))
	}
	if f.UserID != "" {
		args = append(args, f.UserID)
		conds = append(conds, "te.user_id = $"+strconv.Itoa(len(args)))
	}
	if f.From != nil {
		args = append(args, *f.From)
		conds = append(conds, "te.date >= $"+strconv.Itoa(len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		conds = append(conds, "te.date <= $"+strconv.Itoa(len(args)))
	}

	var keyExpr, labelExpr, join, orderBy string
	switch f.GroupBy {
	case ReportDaily:
		keyExpr, labelExpr = "to_char(te.date, 'YYYY-MM-DD')", "''"
		orderBy = "1"
	case ReportUser:
		keyExpr, labelExpr = "te.user_id::text", "COALESCE(u.name, '')"
		join = "LEFT JOIN users u ON u.id = te.user_id"
		orderBy = "3 DESC"
	case ReportProject:
		keyExpr, labelExpr = "te.project_id::text", "COALESCE(p.name, '')"
		join = "LEFT JOIN projects p ON p.id = te.project_id"
		orderBy = "3 DESC"
	case ReportSummary, "":
		keyExpr, labelExpr = "''", "''"
		orderBy = "1"
	default:
		return nil, fmt.Errorf("unknown report grouping %q", f.GroupBy)
	}

	query := fmt.Sprintf(`
		SELECT %s AS key, %s AS label,
		       COALESCE(SUM(te.hours), 0),
		       COALESCE(SUM(te.hours) FILTER (WHERE te.billable), 0),
		       COALESCE(SUM(te.hours) FILTER (WHERE NOT te.billable), 0),
		       COUNT(*)
		FROM time_entries te
		%s
		WHERE %s
		GROUP BY 1, 2
		ORDER BY %s`, keyExpr, labelExpr, join, strings.Join(conds, " AND "), orderBy)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var report []ReportRow
	for rows.Next() {
		var row ReportRow
		if err := rows.Scan(&row.Key, &row.Label, &row.TotalHours, &row.BillableHours, &row.NonBillableHours, &row.Entries); err != nil {
			return nil, err
		}
		if row.Entries > 0 {
			row.AvgHoursPerEntry = row.TotalHours / float64(row.Entries)
		}
		report = append(report, row)
	}
	return report, rows.Err()
}

func (r *pgReportRepository) ExportRows(ctx context.Context, f ExportFilter) ([]ExportRow, error) {
	args := []interface{}{f.WorkspaceID, f.From, f.To}
	conds := []string{"te.workspace_id = $1", "te.date >= $2", "te.date <= $3", "NOT te.is_running"}

	if len(f.ProjectIDs) > 0 {
		args = append(args, f.ProjectIDs)
		conds = append(conds, "te.project_id = ANY($"+strconv.Itoa(len(args))+"::uuid[])")
	}
	if len(f.UserIDs) > 0 {
		args = append(args, f.UserIDs)
		conds = append(conds, "te.user_id = ANY($"+strconv.Itoa(len(args))+"::uuid[])")
	}
	if f.BillableOnly {
		conds = append(conds, "te.billable")
	}

	query := `
		SELECT te.id, te.date, te.user_id, COALESCE(u.name, ''), te.project_id, COALESCE(p.name, ''),
		       te.task_id, COALESCE(t.title, ''), te.hours, te.billable, te.approved, te.description
		FROM time_entries te
		LEFT JOIN users u ON u.id = te.user_id
		LEFT JOIN projects p ON p.id = te.project_id
		LEFT JOIN tasks t ON t.id = te.task_id
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY te.date, te.created_at`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExportRow
	for rows.Next() {
		var row ExportRow
		if err := rows.Scan(&row.EntryID, &row.Date, &row.UserID, &row.UserName, &row.ProjectID, &row.ProjectName,
			&row.TaskID, &row.TaskTitle, &row.Hours, &row.Billable, &row.Approved, &row.Description); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
