package types

import "slices"

// Task Status values
const (
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusReview     = "review"
	StatusDone       = "done"
	StatusCancelled  = "cancelled"
)

// Project Status values
const (
	ProjectPlanning  = "planning"
	ProjectActive    = "active"
	ProjectOnHold    = "on_hold"
	ProjectCompleted = "completed"
	ProjectCancelled = "cancelled"
)

// Priority values (shared by projects and tasks)
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Task Type values
const (
	TypeTask    = "task"
	TypeBug     = "bug"
	TypeFeature = "feature"
	TypeStory   = "story"
	TypeEpic    = "epic"
)

// Workspace roles
const (
	RoleWorkspaceAdmin = "workspace_admin"
	RoleProjectManager = "project_manager"
	RoleTeamMember     = "team_member"
)

// Project member roles
const (
	ProjectRoleLead      = "project_lead"
	ProjectRoleDeveloper = "developer"
	ProjectRoleDesigner  = "designer"
	ProjectRoleTester    = "tester"
	ProjectRoleViewer    = "viewer"
)

// Membership status values
const (
	MemberPending  = "pending"
	MemberActive   = "active"
	MemberInactive = "inactive"
)

// Subscription plans
const (
	PlanFree       = "free"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

// Workspace permissions derived from the member role
const (
	PermCreateProjects          = "create_projects"
	PermDeleteProjects          = "delete_projects"
	PermManageMembers           = "manage_members"
	PermManageWorkspaceSettings = "manage_workspace_settings"
	PermViewReports             = "view_reports"
	PermExportData              = "export_data"
	PermManageBilling           = "manage_billing"
)

var ValidTaskStatuses = []string{
	StatusTodo, StatusInProgress, StatusReview, StatusDone, StatusCancelled,
}

var ValidProjectStatuses = []string{
	ProjectPlanning, ProjectActive, ProjectOnHold, ProjectCompleted, ProjectCancelled,
}

var ValidPriorities = []string{
	PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical,
}

var ValidTaskTypes = []string{
	TypeTask, TypeBug, TypeFeature, TypeStory, TypeEpic,
}

var ValidWorkspaceRoles = []string{
	RoleWorkspaceAdmin, RoleProjectManager, RoleTeamMember,
}

var ValidProjectRoles = []string{
	ProjectRoleLead, ProjectRoleDeveloper, ProjectRoleDesigner, ProjectRoleTester, ProjectRoleViewer,
}

var ValidPlans = []string{PlanFree, PlanPro, PlanEnterprise}

func IsValidTaskStatus(status string) bool { return slices.Contains(ValidTaskStatuses, status) }

func IsValidProjectStatus(status string) bool { return slices.Contains(ValidProjectStatuses, status) }

func IsValidPriority(priority string) bool { return slices.Contains(ValidPriorities, priority) }

func IsValidTaskType(taskType string) bool { return slices.Contains(ValidTaskTypes, taskType) }

func IsValidWorkspaceRole(role string) bool { return slices.Contains(ValidWorkspaceRoles, role) }

func IsValidProjectRole(role string) bool { return slices.Contains(ValidProjectRoles, role) }

func IsValidPlan(plan string) bool { return slices.Contains(ValidPlans, plan) }

// PermissionsForRole returns the workspace permission set granted to a role.
func PermissionsForRole(role string) []string {
	switch role {
	case RoleWorkspaceAdmin:
		return []string{
			PermCreateProjects, PermDeleteProjects, PermManageMembers,
			PermManageWorkspaceSettings, PermViewReports, PermExportData, PermManageBilling,
		}
	case RoleProjectManager:
		return []string{PermCreateProjects, PermViewReports, PermExportData}
	default:
		return []string{}
	}
}
