package service

import (
	"testing"
	"time"

	"github.com/Marga-Ghale/ora-progress-api/internal/repository"
	"github.com/Marga-Ghale/ora-progress-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTaskProgress(t *testing.T) {
	f := newTimeFixture(t)
	yesterday := f.clock.Now().AddDate(0, 0, -1)
	_, err := f.svc.Time.LogTime(f.ctx, f.dev, LogTimeInput{TaskID: f.task.ID, Hours: 1, Date: &yesterday, Billable: true})
	require.NoError(t, err)
	_, err = f.svc.Time.LogTime(f.ctx, f.dev, LogTimeInput{TaskID: f.task.ID, Hours: 1})
	require.NoError(t, err)

	tp, err := f.svc.Dashboard.GetTaskProgress(f.ctx, f.dev, f.task.ID)
	require.NoError(t, err)

	assert.Equal(t, 2.0, tp.TimeStats.TotalLogged)
	assert.Equal(t, 1.0, tp.TimeStats.BillableLogged)
	assert.Equal(t, 2, tp.TimeStats.EntriesCount)
	assert.Equal(t, 50, tp.Metrics.TimeProgress)
	assert.Equal(t, 2.0, tp.Metrics.RemainingHours)
	require.Len(t, tp.Metrics.Burndown, 3)
	assert.Equal(t, 4.0, tp.Metrics.Burndown[0].Remaining)
	assert.Equal(t, 2.0, tp.Metrics.Burndown[2].Remaining)
	assert.Equal(t, 2.0, tp.Metrics.Velocity.Last7Days)
	require.NotNil(t, tp.Metrics.EstimatedCompletion)
	assert.True(t, tp.Metrics.EstimatedCompletion.After(f.clock.Now()))
	assert.Len(t, tp.RecentEntries, 2)
}

func TestGetTaskProgress_NonMember(t *testing.T) {
	f := newTimeFixture(t)
	stranger := f.user("stranger")

	_, err := f.svc.Dashboard.GetTaskProgress(f.ctx, stranger, f.task.ID)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestGetProjectProgress(t *testing.T) {
	f := newTimeFixture(t)
	done := f.fixture.task(f.admin, f.project.ID, "Done", 4)
	f.fixture.task(f.admin, f.project.ID, "Open", 0)
	f.fixture.task(f.admin, f.project.ID, "Open 2", 0)

	_, err := f.svc.Time.LogTime(f.ctx, f.dev, LogTimeInput{TaskID: done.ID, Hours: 3})
	require.NoError(t, err)
	_, err = f.svc.Time.LogTime(f.ctx, f.dev, LogTimeInput{TaskID: f.task.ID, Hours: 1})
	require.NoError(t, err)
	_, err = f.svc.Progress.UpdateTaskProgress(f.ctx, done.ID, f.admin, TaskProgressInput{Status: strPtr(types.StatusDone)})
	require.NoError(t, err)

	pp, err := f.svc.Dashboard.GetProjectProgress(f.ctx, f.dev, f.project.ID)
	require.NoError(t, err)

	assert.Equal(t, 3, pp.TaskStats[types.StatusTodo])
	assert.Equal(t, 1, pp.TaskStats[types.StatusDone])
	assert.Zero(t, pp.TaskStats[types.StatusCancelled])
	assert.Equal(t, 8.0, pp.TimeStats.TotalEstimated)
	assert.Equal(t, 4.0, pp.TimeStats.TotalLogged)
	assert.Equal(t, 50, pp.TimeStats.TimeProgress)
	assert.Len(t, pp.Tasks, 4)

	require.Len(t, pp.Milestones, 4)
	assert.True(t, pp.Milestones[0].Achieved)
	assert.False(t, pp.Milestones[1].Achieved)

	require.Len(t, pp.TeamPerformance, 1)
	perf := pp.TeamPerformance[0]
	assert.Equal(t, f.dev, perf.UserID)
	assert.Equal(t, 4.0, perf.TotalHours)
	assert.Equal(t, 2, perf.TasksWorkedOn)
	assert.Equal(t, 2.0, perf.AvgHoursPerTask)
	assert.Equal(t, 1, perf.CompletedTasks)
}

func TestDashboardCaching(t *testing.T) {
	f := newTimeFixture(t)

	first, err := f.svc.Dashboard.GetProjectProgress(f.ctx, f.dev, f.project.ID)
	require.NoError(t, err)
	assert.Zero(t, first.TimeStats.TotalLogged)
	assert.Zero(t, f.cache.hits)

	_, err = f.svc.Dashboard.GetProjectProgress(f.ctx, f.dev, f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.hits)

	_, err = f.svc.Dashboard.GetTaskProgress(f.ctx, f.dev, f.task.ID)
	require.NoError(t, err)
	require.True(t, f.cache.has(taskDashboardKey(f.project.ID, f.task.ID)))

	_, err = f.svc.Dashboard.GetWorkspaceProgress(f.ctx, f.dev, f.ws.ID)
	require.NoError(t, err)
	require.True(t, f.cache.has(workspaceDashboardKey(f.ws.ID)))

	_, err = f.svc.Time.LogTime(f.ctx, f.dev, LogTimeInput{TaskID: f.task.ID, Hours: 2})
	require.NoError(t, err)
	assert.False(t, f.cache.has(projectDashboardKey(f.project.ID)))
	assert.False(t, f.cache.has(taskDashboardKey(f.project.ID, f.task.ID)))
	assert.False(t, f.cache.has(workspaceDashboardKey(f.ws.ID)))

	fresh, err := f.svc.Dashboard.GetProjectProgress(f.ctx, f.dev, f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, 2.0, fresh.TimeStats.TotalLogged)
}

func TestGetWorkspaceProgress(t *testing.T) {
	f := newTimeFixture(t)
	second := f.fixture.project(f.admin, f.ws.ID, "Gemini")
	shipped := f.fixture.task(f.admin, second.ID, "Ship", 2)
	f.clock.Advance(time.Hour)
	_, err := f.svc.Progress.UpdateTaskProgress(f.ctx, shipped.ID, f.admin, TaskProgressInput{Status: strPtr(types.StatusDone)})
	require.NoError(t, err)
	_, err = f.svc.Time.LogTime(f.ctx, f.dev, LogTimeInput{TaskID: shipped.ID, Hours: 3})
	require.NoError(t, err)

	archived := f.fixture.project(f.admin, f.ws.ID, "Old")
	_, err = f.svc.Project.Archive(f.ctx, f.admin, archived.ID)
	require.NoError(t, err)

	wp, err := f.svc.Dashboard.GetWorkspaceProgress(f.ctx, f.dev, f.ws.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, wp.Projects.Total, "archived projects are left out")
	assert.Equal(t, 1, wp.Projects.ByStatus[types.ProjectCompleted])
	assert.Equal(t, 1, wp.Projects.ByStatus[types.ProjectPlanning])
	assert.Equal(t, 50, wp.Projects.AvgProgress)

	assert.Equal(t, 2, wp.Tasks.Total)
	assert.Equal(t, 1, wp.Tasks.ByStatus[types.StatusDone])
	assert.Equal(t, 6.0, wp.TimeStats.TotalEstimated)
	assert.Equal(t, 3.0, wp.TimeStats.TotalLogged)
	assert.Equal(t, 50, wp.TimeStats.TimeEfficiency)

	require.NotEmpty(t, wp.TopProjects)
	assert.Equal(t, second.ID, wp.TopProjects[0].ID)
	require.Len(t, wp.RecentlyDone, 1)
	assert.Equal(t, shipped.ID, wp.RecentlyDone[0].ID)
}

func analyticsRange() (*time.Time, *time.Time) {
	from := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 12, 23, 59, 59, 0, time.UTC)
	return &from, &to
}

func TestGetProjectAnalytics(t *testing.T) {
	f := newTimeFixture(t)
	spec := f.fixture.task(f.admin, f.project.ID, "Spec", 2)
	_, err := f.svc.Time.LogTime(f.ctx, f.dev, LogTimeInput{TaskID: spec.ID, Hours: 3})
	require.NoError(t, err)
	_, err = f.svc.Progress.UpdateTaskProgress(f.ctx, spec.ID, f.admin, TaskProgressInput{Status: strPtr(types.StatusDone)})
	require.NoError(t, err)

	from, to := analyticsRange()
	pa, err := f.svc.Dashboard.GetProjectAnalytics(f.ctx, f.dev, f.project.ID, AnalyticsQuery{From: from, To: to})
	require.NoError(t, err)

	assert.Equal(t, "day", pa.GroupBy)
	require.Len(t, pa.ProgressOverTime, 3)
	assert.Equal(t, "2024-03-11", pa.ProgressOverTime[1].Period)
	assert.Equal(t, 1, pa.ProgressOverTime[1].TasksCompleted)
	assert.Zero(t, pa.ProgressOverTime[2].TasksCompleted)
	assert.Equal(t, 1, pa.ProgressOverTime[2].Cumulative)

	assert.Equal(t, 1, pa.Velocity.TasksCompleted)
	assert.Equal(t, 3.0, pa.Velocity.TotalHoursLogged)
	assert.Equal(t, 3.0, pa.Velocity.AverageHoursPerTask)

	assert.Equal(t, 2, pa.Burndown.TotalScope.Tasks)
	assert.Equal(t, 6.0, pa.Burndown.TotalScope.Hours)
	assert.Equal(t, 4.0, pa.Burndown.Remaining.Hours)
	assert.Equal(t, 50, pa.Burndown.CompletionPercentage.Tasks)
	assert.Equal(t, 33, pa.Burndown.CompletionPercentage.Hours)

	assert.Equal(t, 2, pa.Summary.TotalTasks)
	assert.Equal(t, 1, pa.Summary.CompletedInPeriod)
	assert.Equal(t, 50, pa.Summary.TimeEfficiency)
	assert.Equal(t, f.reloadProject(f.project.ID).Progress, pa.Summary.AverageProgress)
}

func TestGetProjectAnalytics_Validation(t *testing.T) {
	f := newTimeFixture(t)
	from, to := analyticsRange()
	longAgo := to.AddDate(-2, 0, 0)

	tests := []struct {
		name string
		q    AnalyticsQuery
	}{
		{"missing dates", AnalyticsQuery{From: from}},
		{"end before start", AnalyticsQuery{From: to, To: from}},
		{"over a year", AnalyticsQuery{From: &longAgo, To: to}},
		{"unknown grouping", AnalyticsQuery{From: from, To: to, GroupBy: "quarter"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Dashboard.GetProjectAnalytics(f.ctx, f.dev, f.project.ID, tt.q)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	stranger := f.user("stranger")
	_, err := f.svc.Dashboard.GetProjectAnalytics(f.ctx, stranger, f.project.ID, AnalyticsQuery{From: from, To: to, GroupBy: "week"})
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestGetUserDashboard(t *testing.T) {
	f := newTimeFixture(t)
	now := f.clock.Now()
	assign := func(title string, due time.Time) *repository.Task {
		task, err := f.svc.Task.Create(f.ctx, f.admin, f.project.ID, CreateTaskInput{
			Title: title, EstimatedHours: 1, AssigneeID: &f.admin, DueDate: &due,
		})
		require.NoError(t, err)
		return task
	}
	soon := assign("Soon", now.Add(48*time.Hour))
	assign("Late", now.Add(-24*time.Hour))
	assign("Later", now.AddDate(0, 0, 30))
	finished := assign("Finished", now.Add(24*time.Hour))
	_, err := f.svc.Progress.UpdateTaskProgress(f.ctx, finished.ID, f.admin, TaskProgressInput{Status: strPtr(types.StatusDone)})
	require.NoError(t, err)

	// a workspace the admin does not belong to stays out
	side := f.fixture.workspace(f.dev, "Side")
	f.fixture.project(f.dev, side.ID, "Hobby")

	d, err := f.svc.Dashboard.GetUserDashboard(f.ctx, f.admin)
	require.NoError(t, err)

	require.Len(t, d.Workspaces, 1)
	assert.Equal(t, f.ws.ID, d.Workspaces[0].Workspace.ID)
	assert.Equal(t, types.RoleWorkspaceAdmin, d.Workspaces[0].Role)

	assert.Equal(t, 5, d.TaskStats.TotalInWorkspaces)
	assert.Equal(t, 4, d.TaskStats.Assigned)
	assert.Equal(t, 1, d.TaskStats.Completed)
	assert.Equal(t, 1, d.TaskStats.Overdue)
	assert.Equal(t, 25, d.TaskStats.CompletionRate)
	assert.Equal(t, 3, d.TaskStats.ByStatus[types.StatusTodo])

	assert.Equal(t, 1, d.ProjectStats.Total)
	assert.Equal(t, 1, d.ProjectStats.Owned)

	require.Len(t, d.UpcomingTasks, 1)
	assert.Equal(t, soon.ID, d.UpcomingTasks[0].ID)
	assert.Len(t, d.RecentTasks, 5)
	require.Len(t, d.RecentProjects, 1)
	assert.Equal(t, f.project.ID, d.RecentProjects[0].ID)
}

func TestGetUserDashboard_MemberWithoutAssignments(t *testing.T) {
	f := newTimeFixture(t)

	d, err := f.svc.Dashboard.GetUserDashboard(f.ctx, f.dev)
	require.NoError(t, err)

	require.Len(t, d.Workspaces, 1)
	assert.Equal(t, types.RoleTeamMember, d.Workspaces[0].Role)
	assert.Equal(t, 1, d.TaskStats.TotalInWorkspaces)
	assert.Zero(t, d.TaskStats.Assigned)
	assert.Zero(t, d.TaskStats.CompletionRate)
	assert.Empty(t, d.RecentTasks)
	assert.Empty(t, d.RecentProjects, "dev is not on the project")
	assert.NotNil(t, d.UpcomingTasks)
}
