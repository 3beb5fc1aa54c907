package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type workspaceRepository struct {
	db DBTX
}

func NewWorkspaceRepository(db DBTX) WorkspaceRepository {
	return &workspaceRepository{db: db}
}

const workspaceColumns = `id, name, description, slug, owner_id, plan, member_limit, project_limit,
	settings, is_active, created_at, updated_at`

func scanWorkspace(row interface{ Scan(...interface{}) error }) (*Workspace, error) {
	ws := &Workspace{}
	var settings []byte
	err := row.Scan(
		&ws.ID, &ws.Name, &ws.Description, &ws.Slug, &ws.OwnerID, &ws.Plan,
		&ws.MemberLimit, &ws.ProjectLimit, &settings, &ws.IsActive, &ws.CreatedAt, &ws.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &ws.Settings); err != nil {
			return nil, fmt.Errorf("decode workspace settings: %w", err)
		}
	}
	return ws, nil
}

func (r *workspaceRepository) Create(ctx context.Context, ws *Workspace) error {
	settings, err := json.Marshal(ws.Settings)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO workspaces (name, description, slug, owner_id, plan, member_limit, project_limit, settings, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
		RETURNING id, is_active, created_at, updated_at`

	err = r.db.QueryRowContext(ctx, query,
		ws.Name, ws.Description, ws.Slug, ws.OwnerID, ws.Plan, ws.MemberLimit, ws.ProjectLimit, string(settings),
	).Scan(&ws.ID, &ws.IsActive, &ws.CreatedAt, &ws.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *workspaceRepository) FindByID(ctx context.Context, id string) (*Workspace, error) {
	query := `SELECT ` + workspaceColumns + ` FROM workspaces WHERE id = $1`

	ws, err := scanWorkspace(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return ws, err
}

func (r *workspaceRepository) SlugExists(ctx context.Context, slug, excludeID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM workspaces WHERE slug = $1 AND id::text <> $2)`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, slug, excludeID).Scan(&exists)
	return exists, err
}

func (r *workspaceRepository) FindByUserID(ctx context.Context, userID string, limit, offset int) ([]*Workspace, int, error) {
	countQuery := `
		SELECT COUNT(*) FROM workspaces w
		JOIN workspace_members m ON m.workspace_id = w.id
		WHERE m.user_id = $1 AND m.status = 'active' AND w.is_active`

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT w.id, w.name, w.description, w.slug, w.owner_id, w.plan, w.member_limit, w.project_limit,
			w.settings, w.is_active, w.created_at, w.updated_at
		FROM workspaces w
		JOIN workspace_members m ON m.workspace_id = w.id
		WHERE m.user_id = $1 AND m.status = 'active' AND w.is_active
		ORDER BY w.created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var workspaces []*Workspace
	for rows.Next() {
		ws, err := scanWorkspace(rows)
		if err != nil {
			return nil, 0, err
		}
		workspaces = append(workspaces, ws)
	}
	return workspaces, total, rows.Err()
}

func (r *workspaceRepository) Update(ctx context.Context, ws *Workspace) error {
	settings, err := json.Marshal(ws.Settings)
	if err != nil {
		return err
	}

	query := `
		UPDATE workspaces SET
			name = $2, description = $3, slug = $4, plan = $5, member_limit = $6,
			project_limit = $7, settings = $8, is_active = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err = r.db.QueryRowContext(ctx, query,
		ws.ID, ws.Name, ws.Description, ws.Slug, ws.Plan, ws.MemberLimit, ws.ProjectLimit, string(settings), ws.IsActive,
	).Scan(&ws.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// ============================================
// Members
// ============================================

const memberColumns = `id, workspace_id, user_id, role, status, invite_token, invite_expires,
	invited_by, joined_at, created_at, updated_at`

func scanMember(row interface{ Scan(...interface{}) error }) (*WorkspaceMember, error) {
	m := &WorkspaceMember{}
	err := row.Scan(
		&m.ID, &m.WorkspaceID, &m.UserID, &m.Role, &m.Status, &m.InviteToken, &m.InviteExpires,
		&m.InvitedBy, &m.JoinedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *workspaceRepository) AddMember(ctx context.Context, m *WorkspaceMember) error {
	query := `
		INSERT INTO workspace_members (workspace_id, user_id, role, status, invite_token, invite_expires, invited_by, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		m.WorkspaceID, m.UserID, m.Role, m.Status, m.InviteToken, m.InviteExpires, m.InvitedBy, m.JoinedAt,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *workspaceRepository) FindMember(ctx context.Context, workspaceID, userID string) (*WorkspaceMember, error) {
	query := `SELECT ` + memberColumns + ` FROM workspace_members
		WHERE workspace_id = $1 AND user_id = $2 AND status = 'active'`

	m, err := scanMember(r.db.QueryRowContext(ctx, query, workspaceID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

func (r *workspaceRepository) FindPendingByToken(ctx context.Context, token string, now time.Time) (*WorkspaceMember, error) {
	query := `SELECT ` + memberColumns + ` FROM workspace_members
		WHERE invite_token = $1 AND status = 'pending' AND invite_expires > $2`

	m, err := scanMember(r.db.QueryRowContext(ctx, query, token, now))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

func (r *workspaceRepository) UpdateMember(ctx context.Context, m *WorkspaceMember) error {
	query := `
		UPDATE workspace_members SET
			user_id = $2, role = $3, status = $4, invite_token = $5, invite_expires = $6,
			joined_at = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query,
		m.ID, m.UserID, m.Role, m.Status, m.InviteToken, m.InviteExpires, m.JoinedAt,
	).Scan(&m.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *workspaceRepository) ListMembers(ctx context.Context, workspaceID string) ([]*WorkspaceMember, error) {
	query := `SELECT ` + memberColumns + ` FROM workspace_members
		WHERE workspace_id = $1
		ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*WorkspaceMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *workspaceRepository) CountActiveMembers(ctx context.Context, workspaceID string) (int, error) {
	query := `SELECT COUNT(*) FROM workspace_members WHERE workspace_id = $1 AND status = 'active'`

	var count int
	err := r.db.QueryRowContext(ctx, query, workspaceID).Scan(&count)
	return count, err
}

func (r *workspaceRepository) ExpireInvites(ctx context.Context, now time.Time) (int, error) {
	query := `
		UPDATE workspace_members SET status = 'inactive', invite_token = NULL, updated_at = NOW()
		WHERE status = 'pending' AND invite_expires <= $1`

	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}
