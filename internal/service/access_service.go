package service

import (
	"context"
	"fmt"

	"github.com/Marga-Ghale/ora-progress-api/internal/repository"
	"github.com/Marga-Ghale/ora-progress-api/internal/types"
)

// Target names the deepest object an operation works on. Ids left empty are
// derived from the deeper ones.
type Target struct {
	WorkspaceID string
	ProjectID   string
	TaskID      string
}

// Access is a resolved workspace → project → task chain together with the
// actor's active membership.
type Access struct {
	Workspace  *repository.Workspace
	Project    *repository.Project
	Task       *repository.Task
	Membership *repository.WorkspaceMember
}

func (a *Access) Role() string {
	if a.Membership == nil {
		return ""
	}
	return a.Membership.Role
}

type AccessService interface {
	Resolve(ctx context.Context, actorID string, target Target) (*Access, error)
}

type accessService struct {
	repos *repository.Repositories
}

func NewAccessService(repos *repository.Repositories) AccessService {
	return &accessService{repos: repos}
}

func (s *accessService) Resolve(ctx context.Context, actorID string, target Target) (*Access, error) {
	return resolveAccess(ctx, s.repos, actorID, target)
}

// resolveAccess also runs against transaction-bound repositories.
func resolveAccess(ctx context.Context, repos *repository.Repositories, actorID string, target Target) (*Access, error) {
	a := &Access{}

	if target.TaskID != "" {
		task, err := repos.TaskRepo.FindByID(ctx, target.TaskID)
		if err != nil {
			return nil, fmt.Errorf("find task: %w", err)
		}
		if task == nil || (target.ProjectID != "" && task.ProjectID != target.ProjectID) {
			return nil, notFound("task")
		}
		a.Task = task
		target.ProjectID = task.ProjectID
	}

	if target.ProjectID != "" {
		project, err := repos.ProjectRepo.FindByID(ctx, target.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("find project: %w", err)
		}
		if project == nil || (target.WorkspaceID != "" && project.WorkspaceID != target.WorkspaceID) {
			return nil, notFound("project")
		}
		a.Project = project
		target.WorkspaceID = project.WorkspaceID
	}

	if target.WorkspaceID == "" {
		return nil, notFound("workspace")
	}
	ws, err := repos.WorkspaceRepo.FindByID(ctx, target.WorkspaceID)
	if err != nil {
		return nil, fmt.Errorf("find workspace: %w", err)
	}
	if ws == nil || !ws.IsActive {
		return nil, notFound("workspace")
	}
	a.Workspace = ws

	member, err := repos.WorkspaceRepo.FindMember(ctx, ws.ID, actorID)
	if err != nil {
		return nil, fmt.Errorf("find membership: %w", err)
	}
	if member == nil || member.Status != types.MemberActive {
		return nil, &Error{Kind: KindAccessDenied, Message: "not a member of this workspace", Reason: ReasonNotMember}
	}
	a.Membership = member

	return a, nil
}
