package service

import (
	"context"
	"fmt"

	"github.com/Marga-Ghale/ora-progress-api/internal/repository"
	"github.com/Marga-Ghale/ora-progress-api/internal/types"
)

// ============================================
// Actions & Reasons
// ============================================

const (
	ActionCreateProject       = "create_project"
	ActionUpdateProject       = "update_project"
	ActionDeleteProject       = "delete_project"
	ActionAddProjectMember    = "add_project_member"
	ActionRemoveProjectMember = "remove_project_member"
	ActionCreateTask          = "create_task"
	ActionUpdateTask          = "update_task"
	ActionDeleteTask          = "delete_task"
	ActionUpdateProgress      = "update_progress"
	ActionAddWatcher          = "add_watcher"
	ActionRemoveWatcher       = "remove_watcher"
	ActionLogTime             = "log_time"
	ActionApproveTime         = "approve_time"
)

const (
	ReasonNotMember          = "NotMember"
	ReasonInsufficientRole   = "InsufficientRole"
	ReasonNotOwnerOrAssignee = "NotOwnerOrAssignee"
	ReasonTargetIsOwner      = "TargetIsOwner"
	ReasonQuotaExceeded      = "QuotaExceeded"
)

// AuthContext is everything a permission decision may look at. Only the
// fields an action needs have to be set.
type AuthContext struct {
	Membership   *repository.WorkspaceMember
	Workspace    *repository.Workspace
	Project      *repository.Project
	Task         *repository.Task
	ActorID      string
	TargetUserID string
	ProjectCount int
	MemberCount  int
}

type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason string) Decision { return Decision{Reason: reason} }

// Err converts a denial into the matching domain error; nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	switch d.Reason {
	case ReasonNotMember:
		return &Error{Kind: KindAccessDenied, Message: "not a member of this workspace", Reason: d.Reason}
	case ReasonQuotaExceeded:
		return &Error{Kind: KindQuotaExceeded, Message: "workspace plan limit reached", Reason: d.Reason}
	case ReasonTargetIsOwner:
		return &Error{Kind: KindInsufficientRole, Message: "the project owner cannot be removed", Reason: d.Reason}
	default:
		return &Error{Kind: KindInsufficientRole, Message: "not allowed to perform this action", Reason: d.Reason}
	}
}

// Authorize decides whether the actor may perform action. Structural rules
// (owner removal, quotas) bind workspace admins too.
func Authorize(action string, ac AuthContext) Decision {
	if ac.Membership == nil || ac.Membership.Status != types.MemberActive {
		return deny(ReasonNotMember)
	}

	switch action {
	case ActionRemoveProjectMember:
		if ac.Project != nil && ac.TargetUserID == ac.Project.OwnerID {
			return deny(ReasonTargetIsOwner)
		}
	case ActionCreateProject:
		if ac.Workspace != nil && ac.Workspace.ProjectLimit >= 0 && ac.ProjectCount >= ac.Workspace.ProjectLimit {
			return deny(ReasonQuotaExceeded)
		}
	}

	role := ac.Membership.Role
	if role == types.RoleWorkspaceAdmin {
		return allow()
	}
	isPM := role == types.RoleProjectManager

	isOwner := ac.Project != nil && ac.Project.OwnerID == ac.ActorID
	projectRole := ""
	if ac.Project != nil {
		projectRole = ac.Project.MemberRole(ac.ActorID)
		if isOwner && projectRole == "" {
			projectRole = types.ProjectRoleLead
		}
	}
	isAssignee := ac.Task != nil && ac.Task.IsAssignee(ac.ActorID)
	isReporter := ac.Task != nil && ac.Task.ReporterID == ac.ActorID

	switch action {
	case ActionCreateProject:
		return when(isPM, ReasonInsufficientRole)
	case ActionUpdateProject:
		return when(isOwner || isPM, ReasonNotOwnerOrAssignee)
	case ActionDeleteProject:
		return when(isOwner, ReasonNotOwnerOrAssignee)
	case ActionAddProjectMember, ActionRemoveProjectMember:
		return when(isOwner || isPM, ReasonInsufficientRole)
	case ActionCreateTask:
		return when(ac.Project != nil && ac.Project.IsMember(ac.ActorID), ReasonInsufficientRole)
	case ActionUpdateTask:
		return when(isAssignee || isReporter ||
			projectRole == types.ProjectRoleLead || projectRole == types.ProjectRoleDeveloper, ReasonNotOwnerOrAssignee)
	case ActionUpdateProgress:
		return when(isAssignee || isReporter || isPM, ReasonNotOwnerOrAssignee)
	case ActionDeleteTask:
		return when(isReporter || projectRole == types.ProjectRoleLead, ReasonNotOwnerOrAssignee)
	case ActionAddWatcher, ActionLogTime:
		return allow()
	case ActionRemoveWatcher:
		return when(ac.TargetUserID == ac.ActorID || projectRole == types.ProjectRoleLead, ReasonNotOwnerOrAssignee)
	case ActionApproveTime:
		return when(isPM, ReasonInsufficientRole)
	}
	return deny(ReasonInsufficientRole)
}

func when(ok bool, reason string) Decision {
	if ok {
		return allow()
	}
	return deny(reason)
}

// ============================================
// Permission Service
// ============================================

// PermissionService resolves the target of an action and authorizes the actor
// against it in one step.
type PermissionService interface {
	Authorize(action string, ac AuthContext) Decision
	Check(ctx context.Context, actorID, action string, target Target, targetUserID string) (*Access, error)
}

type permissionService struct {
	repos  *repository.Repositories
	access AccessService
}

func NewPermissionService(repos *repository.Repositories, access AccessService) PermissionService {
	return &permissionService{repos: repos, access: access}
}

func (s *permissionService) Authorize(action string, ac AuthContext) Decision {
	return Authorize(action, ac)
}

func (s *permissionService) Check(ctx context.Context, actorID, action string, target Target, targetUserID string) (*Access, error) {
	a, err := s.access.Resolve(ctx, actorID, target)
	if err != nil {
		return nil, err
	}

	ac := AuthContext{
		Membership:   a.Membership,
		Workspace:    a.Workspace,
		Project:      a.Project,
		Task:         a.Task,
		ActorID:      actorID,
		TargetUserID: targetUserID,
	}
	if action == ActionCreateProject {
		if ac.ProjectCount, err = s.repos.ProjectRepo.CountByWorkspace(ctx, a.Workspace.ID); err != nil {
			return nil, fmt.Errorf("count projects: %w", err)
		}
	}

	if err := Authorize(action, ac).Err(); err != nil {
		return nil, err
	}
	return a, nil
}
