package repository

import (
	"context"
	"database/sql"
	"errors"
)

type projectRepository struct {
	db DBTX
}

func NewProjectRepository(db DBTX) ProjectRepository {
	return &projectRepository{db: db}
}

const projectColumns = `id, workspace_id, name, description, status, priority, progress, owner_id,
	archived, archived_at, archived_by, start_date, end_date, created_at, updated_at`

func scanProject(row interface{ Scan(...interface{}) error }) (*Project, error) {
	p := &Project{}
	err := row.Scan(
		&p.ID, &p.WorkspaceID, &p.Name, &p.Description, &p.Status, &p.Priority, &p.Progress, &p.OwnerID,
		&p.Archived, &p.ArchivedAt, &p.ArchivedBy, &p.StartDate, &p.EndDate, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *projectRepository) Create(ctx context.Context, p *Project) error {
	query := `
		INSERT INTO projects (workspace_id, name, description, status, priority, progress, owner_id, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		p.WorkspaceID, p.Name, p.Description, p.Status, p.Priority, p.Progress, p.OwnerID, p.StartDate, p.EndDate,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return err
	}

	for i := range p.Members {
		if err := r.AddMember(ctx, p.ID, &p.Members[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *projectRepository) FindByID(ctx context.Context, id string) (*Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`

	p, err := scanProject(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	p.Members, err = r.findMembers(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *projectRepository) findMembers(ctx context.Context, projectID string) ([]ProjectMember, error) {
	query := `SELECT user_id, role, joined_at FROM project_members WHERE project_id = $1 ORDER BY joined_at`

	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []ProjectMember{}
	for rows.Next() {
		var m ProjectMember
		if err := rows.Scan(&m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *projectRepository) FindByWorkspace(ctx context.Context, workspaceID string, includeArchived bool, limit, offset int) ([]*Project, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM projects WHERE workspace_id = $1 AND ($2 OR NOT archived)`
	if err := r.db.QueryRowContext(ctx, countQuery, workspaceID, includeArchived).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + projectColumns + ` FROM projects
		WHERE workspace_id = $1 AND ($2 OR NOT archived)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`

	rows, err := r.db.QueryContext(ctx, query, workspaceID, includeArchived, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	rows.Close()

	for _, p := range projects {
		if p.Members, err = r.findMembers(ctx, p.ID); err != nil {
			return nil, 0, err
		}
	}
	return projects, total, nil
}

func (r *projectRepository) ListActiveIDs(ctx context.Context) ([]string, error) {
	query := `SELECT id FROM projects WHERE NOT archived AND status IN ('planning', 'active', 'on_hold') ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *projectRepository) ExistsByName(ctx context.Context, workspaceID, name, excludeID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM projects
			WHERE workspace_id = $1 AND LOWER(name) = LOWER($2) AND NOT archived AND id::text <> $3
		)`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, workspaceID, name, excludeID).Scan(&exists)
	return exists, err
}

func (r *projectRepository) CountByWorkspace(ctx context.Context, workspaceID string) (int, error) {
	query := `SELECT COUNT(*) FROM projects WHERE workspace_id = $1 AND NOT archived`

	var count int
	err := r.db.QueryRowContext(ctx, query, workspaceID).Scan(&count)
	return count, err
}

func (r *projectRepository) Update(ctx context.Context, p *Project) error {
	query := `
		UPDATE projects SET
			name = $2, description = $3, status = $4, priority = $5, progress = $6, owner_id = $7,
			archived = $8, archived_at = $9, archived_by = $10, start_date = $11, end_date = $12,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	return r.db.QueryRowContext(ctx, query,
		p.ID, p.Name, p.Description, p.Status, p.Priority, p.Progress, p.OwnerID,
		p.Archived, p.ArchivedAt, p.ArchivedBy, p.StartDate, p.EndDate,
	).Scan(&p.UpdatedAt)
}

func (r *projectRepository) UpdateProgress(ctx context.Context, id string, progress int, status string) error {
	query := `UPDATE projects SET progress = $2, status = $3, updated_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, progress, status)
	return err
}

func (r *projectRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	return err
}

// ============================================
// Members
// ============================================

func (r *projectRepository) AddMember(ctx context.Context, projectID string, m *ProjectMember) error {
	query := `
		INSERT INTO project_members (project_id, user_id, role)
		VALUES ($1, $2, $3)
		RETURNING joined_at`

	err := r.db.QueryRowContext(ctx, query, projectID, m.UserID, m.Role).Scan(&m.JoinedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *projectRepository) RemoveMember(ctx context.Context, projectID, userID string) error {
	query := `DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`
	_, err := r.db.ExecContext(ctx, query, projectID, userID)
	return err
}
