package service

import (
	"errors"
	"testing"

	"github.com/Marga-Ghale/ora-progress-api/internal/repository"
	"github.com/Marga-Ghale/ora-progress-api/internal/types"
	"github.com/stretchr/testify/assert"
)

func member(role string) *repository.WorkspaceMember {
	return &repository.WorkspaceMember{Role: role, Status: types.MemberActive}
}

func TestAuthorize(t *testing.T) {
	project := &repository.Project{
		ID:      "p1",
		OwnerID: "owner",
		Members: []repository.ProjectMember{
			{UserID: "owner", Role: types.ProjectRoleLead},
			{UserID: "dev", Role: types.ProjectRoleDeveloper},
			{UserID: "viewer", Role: types.ProjectRoleViewer},
		},
	}
	assignee := "assignee"
	task := &repository.Task{ID: "t1", ProjectID: "p1", ReporterID: "reporter", AssigneeID: &assignee}
	ws := &repository.Workspace{ID: "ws1", ProjectLimit: 3}

	tests := []struct {
		name    string
		action  string
		ac      AuthContext
		allowed bool
		reason  string
	}{
		{
			name:   "non member is denied",
			action: ActionLogTime,
			ac:     AuthContext{ActorID: "stranger", Task: task},
			reason: ReasonNotMember,
		},
		{
			name:   "pending membership is denied",
			action: ActionAddWatcher,
			ac:     AuthContext{Membership: &repository.WorkspaceMember{Role: types.RoleTeamMember, Status: types.MemberPending}},
			reason: ReasonNotMember,
		},
		{
			name:    "owner deletes own project without admin role",
			action:  ActionDeleteProject,
			ac:      AuthContext{Membership: member(types.RoleTeamMember), Project: project, ActorID: "owner"},
			allowed: true,
		},
		{
			name:   "project manager cannot delete someone else's project",
			action: ActionDeleteProject,
			ac:     AuthContext{Membership: member(types.RoleProjectManager), Project: project, ActorID: "pm"},
			reason: ReasonNotOwnerOrAssignee,
		},
		{
			name:   "team member cannot update unrelated task",
			action: ActionUpdateTask,
			ac:     AuthContext{Membership: member(types.RoleTeamMember), Project: project, Task: task, ActorID: "viewer"},
			reason: ReasonNotOwnerOrAssignee,
		},
		{
			name:    "developer updates any task",
			action:  ActionUpdateTask,
			ac:      AuthContext{Membership: member(types.RoleTeamMember), Project: project, Task: task, ActorID: "dev"},
			allowed: true,
		},
		{
			name:    "assignee updates progress",
			action:  ActionUpdateProgress,
			ac:      AuthContext{Membership: member(types.RoleTeamMember), Project: project, Task: task, ActorID: "assignee"},
			allowed: true,
		},
		{
			name:    "project manager updates progress",
			action:  ActionUpdateProgress,
			ac:      AuthContext{Membership: member(types.RoleProjectManager), Project: project, Task: task, ActorID: "pm"},
			allowed: true,
		},
		{
			name:   "developer cannot delete a task they did not report",
			action: ActionDeleteTask,
			ac:     AuthContext{Membership: member(types.RoleTeamMember), Project: project, Task: task, ActorID: "dev"},
			reason: ReasonNotOwnerOrAssignee,
		},
		{
			name:    "lead deletes any task",
			action:  ActionDeleteTask,
			ac:      AuthContext{Membership: member(types.RoleTeamMember), Project: project, Task: task, ActorID: "owner"},
			allowed: true,
		},
		{
			name:   "admin cannot remove the project owner",
			action: ActionRemoveProjectMember,
			ac:     AuthContext{Membership: member(types.RoleWorkspaceAdmin), Project: project, ActorID: "admin", TargetUserID: "owner"},
			reason: ReasonTargetIsOwner,
		},
		{
			name:    "admin removes a developer",
			action:  ActionRemoveProjectMember,
			ac:      AuthContext{Membership: member(types.RoleWorkspaceAdmin), Project: project, ActorID: "admin", TargetUserID: "dev"},
			allowed: true,
		},
		{
			name:   "team member cannot add project members",
			action: ActionAddProjectMember,
			ac:     AuthContext{Membership: member(types.RoleTeamMember), Project: project, ActorID: "dev", TargetUserID: "x"},
			reason: ReasonInsufficientRole,
		},
		{
			name:    "project manager creates project under quota",
			action:  ActionCreateProject,
			ac:      AuthContext{Membership: member(types.RoleProjectManager), Workspace: ws, ProjectCount: 2},
			allowed: true,
		},
		{
			name:   "admin still bound by project quota",
			action: ActionCreateProject,
			ac:     AuthContext{Membership: member(types.RoleWorkspaceAdmin), Workspace: ws, ProjectCount: 3},
			reason: ReasonQuotaExceeded,
		},
		{
			name:    "unlimited plan ignores count",
			action:  ActionCreateProject,
			ac:      AuthContext{Membership: member(types.RoleWorkspaceAdmin), Workspace: &repository.Workspace{ProjectLimit: -1}, ProjectCount: 500},
			allowed: true,
		},
		{
			name:   "team member cannot create projects",
			action: ActionCreateProject,
			ac:     AuthContext{Membership: member(types.RoleTeamMember), Workspace: ws},
			reason: ReasonInsufficientRole,
		},
		{
			name:    "any member may watch",
			action:  ActionAddWatcher,
			ac:      AuthContext{Membership: member(types.RoleTeamMember), Project: project, Task: task, ActorID: "viewer", TargetUserID: "viewer"},
			allowed: true,
		},
		{
			name:    "member removes themselves as watcher",
			action:  ActionRemoveWatcher,
			ac:      AuthContext{Membership: member(types.RoleTeamMember), Project: project, Task: task, ActorID: "viewer", TargetUserID: "viewer"},
			allowed: true,
		},
		{
			name:   "member cannot remove another watcher",
			action: ActionRemoveWatcher,
			ac:     AuthContext{Membership: member(types.RoleTeamMember), Project: project, Task: task, ActorID: "viewer", TargetUserID: "dev"},
			reason: ReasonNotOwnerOrAssignee,
		},
		{
			name:   "team member cannot approve time",
			action: ActionApproveTime,
			ac:     AuthContext{Membership: member(types.RoleTeamMember)},
			reason: ReasonInsufficientRole,
		},
		{
			name:   "unknown action is denied",
			action: "launch_rocket",
			ac:     AuthContext{Membership: member(types.RoleProjectManager)},
			reason: ReasonInsufficientRole,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Authorize(tt.action, tt.ac)
			assert.Equal(t, tt.allowed, d.Allowed)
			assert.Equal(t, tt.reason, d.Reason)
		})
	}
}

func TestDecisionErr(t *testing.T) {
	assert.NoError(t, allow().Err())
	assert.True(t, errors.Is(deny(ReasonNotMember).Err(), ErrAccessDenied))
	assert.True(t, errors.Is(deny(ReasonQuotaExceeded).Err(), ErrQuotaExceeded))
	assert.True(t, errors.Is(deny(ReasonTargetIsOwner).Err(), ErrInsufficientRole))
	assert.True(t, errors.Is(deny(ReasonNotOwnerOrAssignee).Err(), ErrInsufficientRole))

	var de *Error
	assert.True(t, errors.As(deny(ReasonNotOwnerOrAssignee).Err(), &de))
	assert.Equal(t, ReasonNotOwnerOrAssignee, de.Reason)
}

func TestPermissionCheck_CountsProjectsForQuota(t *testing.T) {
	f := newFixture(t)
	admin := f.user("admin")
	ws := f.workspace(admin, "Quota")

	for i := 0; i < ws.ProjectLimit; i++ {
		f.project(admin, ws.ID, "Project "+string(rune('A'+i)))
	}

	_, err := f.svc.Permission.Check(f.ctx, admin, ActionCreateProject, Target{WorkspaceID: ws.ID}, "")
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestPermissionCheck_NonMemberDenied(t *testing.T) {
	f := newFixture(t)
	admin := f.user("admin")
	stranger := f.user("stranger")
	ws := f.workspace(admin, "Private")
	p := f.project(admin, ws.ID, "Secret")
	task := f.task(admin, p.ID, "Hidden", 1)

	_, err := f.svc.Permission.Check(f.ctx, stranger, ActionLogTime, Target{TaskID: task.ID}, "")
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = f.svc.Permission.Check(f.ctx, stranger, ActionLogTime, Target{TaskID: "missing"}, "")
	assert.ErrorIs(t, err, ErrNotFound)
}
