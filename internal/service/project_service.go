package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Marga-Ghale/ora-progress-api/internal/repository"
	"github.com/Marga-Ghale/ora-progress-api/internal/types"
)

// ============================================
// Project Service
// ============================================

type CreateProjectInput struct {
	Name        string     `json:"name"`
	Description *string    `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
}

type UpdateProjectInput struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	Priority    *string    `json:"priority"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
}

type ProjectService interface {
	Create(ctx context.Context, actorID, workspaceID string, in CreateProjectInput) (*repository.Project, error)
	Get(ctx context.Context, actorID, projectID string) (*repository.Project, error)
	ListForWorkspace(ctx context.Context, actorID, workspaceID string, includeArchived bool, page, limit int) ([]*repository.Project, int, error)
	Update(ctx context.Context, actorID, projectID string, in UpdateProjectInput) (*repository.Project, error)
	Delete(ctx context.Context, actorID, projectID string) error
	AddMember(ctx context.Context, actorID, projectID, userID, role string) (*repository.Project, error)
	RemoveMember(ctx context.Context, actorID, projectID, userID string) error
	Archive(ctx context.Context, actorID, projectID string) (*repository.Project, error)
	Restore(ctx context.Context, actorID, projectID string) (*repository.Project, error)
	Recompute(ctx context.Context, actorID, projectID string) (int, error)
}

type projectService struct {
	*env
	permission PermissionService
	progress   ProgressService
}

func newProjectService(e *env, permission PermissionService, progress ProgressService) *projectService {
	return &projectService{env: e, permission: permission, progress: progress}
}

func (s *projectService) checkName(ctx context.Context, workspaceID, name, excludeID string) error {
	exists, err := s.repos.ProjectRepo.ExistsByName(ctx, workspaceID, name, excludeID)
	if err != nil {
		return fmt.Errorf("check project name: %w", err)
	}
	if exists {
		return conflict("a project with this name already exists")
	}
	return nil
}

func (s *projectService) Create(ctx context.Context, actorID, workspaceID string, in CreateProjectInput) (*repository.Project, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("name is required")
	}
	status := in.Status
	if status == "" {
		status = types.ProjectPlanning
	}
	if !types.IsValidProjectStatus(status) {
		return nil, invalid("unknown project status " + status)
	}
	priority := in.Priority
	if priority == "" {
		priority = types.PriorityMedium
	}
	if !types.IsValidPriority(priority) {
		return nil, invalid("unknown priority " + priority)
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return nil, invalid("endDate cannot be before startDate")
	}

	if _, err := s.permission.Check(ctx, actorID, ActionCreateProject, Target{WorkspaceID: workspaceID}, ""); err != nil {
		return nil, err
	}
	if err := s.checkName(ctx, workspaceID, name, ""); err != nil {
		return nil, err
	}

	project := &repository.Project{
		WorkspaceID: workspaceID,
		Name:        name,
		Description: in.Description,
		Status:      status,
		Priority:    priority,
		OwnerID:     actorID,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Members:     []repository.ProjectMember{{UserID: actorID, Role: types.ProjectRoleLead}},
	}
	err := s.repos.WithTx(ctx, func(tx *repository.Repositories) error {
		return tx.ProjectRepo.Create(ctx, project)
	})
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	s.log.InfoContext(ctx, "project created", "project_id", project.ID, "workspace_id", workspaceID, "owner_id", actorID)
	s.invalidateProgress(ctx, workspaceID, "")
	return project, nil
}

func (s *projectService) Get(ctx context.Context, actorID, projectID string) (*repository.Project, error) {
	a, err := resolveAccess(ctx, s.repos, actorID, Target{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	return a.Project, nil
}

func (s *projectService) ListForWorkspace(ctx context.Context, actorID, workspaceID string, includeArchived bool, page, limit int) ([]*repository.Project, int, error) {
	if _, err := resolveAccess(ctx, s.repos, actorID, Target{WorkspaceID: workspaceID}); err != nil {
		return nil, 0, err
	}
	page, limit = normalizePage(page, limit)
	list, total, err := s.repos.ProjectRepo.FindByWorkspace(ctx, workspaceID, includeArchived, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list projects: %w", err)
	}
	if list == nil {
		list = []*repository.Project{}
	}
	return list, total, nil
}

func (s *projectService) Update(ctx context.Context, actorID, projectID string, in UpdateProjectInput) (*repository.Project, error) {
	a, err := s.permission.Check(ctx, actorID, ActionUpdateProject, Target{ProjectID: projectID}, "")
	if err != nil {
		return nil, err
	}
	p := a.Project

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, invalid("name cannot be empty")
		}
		if !strings.EqualFold(name, p.Name) && !p.Archived {
			if err := s.checkName(ctx, p.WorkspaceID, name, p.ID); err != nil {
				return nil, err
			}
		}
		p.Name = name
	}
	if in.Description != nil {
		p.Description = in.Description
	}
	if in.Status != nil {
		if !types.IsValidProjectStatus(*in.Status) {
			return nil, invalid("unknown project status " + *in.Status)
		}
		p.Status = *in.Status
	}
	if in.Priority != nil {
		if !types.IsValidPriority(*in.Priority) {
			return nil, invalid("unknown priority " + *in.Priority)
		}
		p.Priority = *in.Priority
	}
	if in.StartDate != nil {
		p.StartDate = in.StartDate
	}
	if in.EndDate != nil {
		p.EndDate = in.EndDate
	}
	if p.StartDate != nil && p.EndDate != nil && p.EndDate.Before(*p.StartDate) {
		return nil, invalid("endDate cannot be before startDate")
	}

	if err := s.repos.ProjectRepo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}
	s.invalidateProgress(ctx, p.WorkspaceID, p.ID)
	return p, nil
}

// Delete removes the project together with its tasks and time entries.
func (s *projectService) Delete(ctx context.Context, actorID, projectID string) error {
	a, err := s.permission.Check(ctx, actorID, ActionDeleteProject, Target{ProjectID: projectID}, "")
	if err != nil {
		return err
	}

	err = s.repos.WithTx(ctx, func(tx *repository.Repositories) error {
		return tx.ProjectRepo.Delete(ctx, projectID)
	})
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}

	s.log.InfoContext(ctx, "project deleted", "project_id", projectID, "deleted_by", actorID)
	s.invalidateProgress(ctx, a.Workspace.ID, projectID)
	return nil
}

func (s *projectService) AddMember(ctx context.Context, actorID, projectID, userID, role string) (*repository.Project, error) {
	if userID == "" {
		return nil, invalid("userId is required")
	}
	if role == "" {
		role = types.ProjectRoleDeveloper
	}
	if !types.IsValidProjectRole(role) {
		return nil, invalid("unknown project role " + role)
	}

	a, err := s.permission.Check(ctx, actorID, ActionAddProjectMember, Target{ProjectID: projectID}, userID)
	if err != nil {
		return nil, err
	}

	wsMember, err := s.repos.WorkspaceRepo.FindMember(ctx, a.Workspace.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("find membership: %w", err)
	}
	if wsMember == nil {
		return nil, invalid("user is not an active member of this workspace")
	}
	if a.Project.IsMember(userID) {
		return nil, conflict("user is already a project member")
	}

	member := &repository.ProjectMember{UserID: userID, Role: role}
	if err := s.repos.ProjectRepo.AddMember(ctx, projectID, member); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, conflict("user is already a project member")
		}
		return nil, fmt.Errorf("add project member: %w", err)
	}

	a.Project.Members = append(a.Project.Members, *member)
	return a.Project, nil
}

func (s *projectService) RemoveMember(ctx context.Context, actorID, projectID, userID string) error {
	a, err := s.permission.Check(ctx, actorID, ActionRemoveProjectMember, Target{ProjectID: projectID}, userID)
	if err != nil {
		return err
	}
	if a.Project.MemberRole(userID) == "" {
		return notFound("project member")
	}
	if err := s.repos.ProjectRepo.RemoveMember(ctx, projectID, userID); err != nil {
		return fmt.Errorf("remove project member: %w", err)
	}
	return nil
}

func (s *projectService) Archive(ctx context.Context, actorID, projectID string) (*repository.Project, error) {
	a, err := s.permission.Check(ctx, actorID, ActionUpdateProject, Target{ProjectID: projectID}, "")
	if err != nil {
		return nil, err
	}
	p := a.Project
	if p.Archived {
		return p, nil
	}

	now := s.now()
	p.Archived = true
	p.ArchivedAt = &now
	p.ArchivedBy = &actorID
	p.Status = types.ProjectCompleted
	if err := s.repos.ProjectRepo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("archive project: %w", err)
	}

	s.invalidateProgress(ctx, p.WorkspaceID, p.ID)
	return p, nil
}

func (s *projectService) Restore(ctx context.Context, actorID, projectID string) (*repository.Project, error) {
	a, err := s.permission.Check(ctx, actorID, ActionUpdateProject, Target{ProjectID: projectID}, "")
	if err != nil {
		return nil, err
	}
	p := a.Project
	if !p.Archived {
		return p, nil
	}
	if err := s.checkName(ctx, p.WorkspaceID, p.Name, p.ID); err != nil {
		return nil, err
	}

	p.Archived = false
	p.ArchivedAt = nil
	p.ArchivedBy = nil
	p.Status = types.ProjectActive
	if err := s.repos.ProjectRepo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("restore project: %w", err)
	}

	s.invalidateProgress(ctx, p.WorkspaceID, p.ID)
	return p, nil
}

func (s *projectService) Recompute(ctx context.Context, actorID, projectID string) (int, error) {
	if _, err := s.permission.Check(ctx, actorID, ActionUpdateProject, Target{ProjectID: projectID}, ""); err != nil {
		return 0, err
	}
	return s.progress.RecomputeProjectProgress(ctx, projectID)
}
