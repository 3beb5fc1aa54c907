package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Marga-Ghale/ora-progress-api/internal/analytics"
	"github.com/Marga-Ghale/ora-progress-api/internal/repository"
	"github.com/Marga-Ghale/ora-progress-api/internal/types"
)

func workspaceDashboardKey(workspaceID string) string {
	return "dashboard:workspace:" + workspaceID
}

func projectDashboardKey(projectID string) string {
	return "dashboard:project:" + projectID
}

// Task dashboards live under their project's key so project invalidation
// drops them too.
func taskDashboardKey(projectID, taskID string) string {
	return projectDashboardKey(projectID) + ":task:" + taskID
}

// ============================================
// Dashboard payloads
// ============================================

type TaskTimeStats struct {
	TotalLogged    float64 `json:"totalLogged"`
	BillableLogged float64 `json:"billableLogged"`
	EntriesCount   int     `json:"entriesCount"`
}

type TaskMetrics struct {
	TimeProgress        int                       `json:"timeProgress"`
	RemainingHours      float64                   `json:"remainingHours"`
	EstimatedCompletion *time.Time                `json:"estimatedCompletion"`
	Velocity            analytics.VelocityReport  `json:"velocity"`
	Burndown            []analytics.BurndownPoint `json:"burndown"`
}

type TaskProgress struct {
	Task          *repository.Task        `json:"task"`
	TimeStats     TaskTimeStats           `json:"timeStats"`
	Metrics       TaskMetrics             `json:"metrics"`
	RecentEntries []*repository.TimeEntry `json:"recentEntries"`
}

type ProjectTimeStats struct {
	TotalEstimated float64 `json:"totalEstimated"`
	TotalLogged    float64 `json:"totalLogged"`
	TotalRemaining float64 `json:"totalRemaining"`
	TimeProgress   int     `json:"timeProgress"`
}

type MemberPerformance struct {
	UserID          string  `json:"userId"`
	TotalHours      float64 `json:"totalHours"`
	TasksWorkedOn   int     `json:"tasksWorkedOn"`
	AvgHoursPerTask float64 `json:"avgHoursPerTask"`
	CompletedTasks  int     `json:"completedTasks"`
}

type ProjectProgress struct {
	Project         *repository.Project   `json:"project"`
	TaskStats       map[string]int        `json:"taskStats"`
	TimeStats       ProjectTimeStats      `json:"timeStats"`
	Milestones      []analytics.Milestone `json:"milestones"`
	TeamPerformance []MemberPerformance   `json:"teamPerformance"`
	Tasks           []*repository.Task    `json:"tasks"`
}

type StatusBreakdown struct {
	Total       int            `json:"total"`
	ByStatus    map[string]int `json:"byStatus"`
	AvgProgress int            `json:"avgProgress"`
}

type WorkspaceTimeStats struct {
	TotalEstimated float64 `json:"totalEstimated"`
	TotalLogged    float64 `json:"totalLogged"`
	TotalRemaining float64 `json:"totalRemaining"`
	TimeEfficiency int     `json:"timeEfficiency"`
}

type ProjectSummary struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Status         string  `json:"status"`
	Progress       int     `json:"progress"`
	TaskCount      int     `json:"taskCount"`
	CompletedTasks int     `json:"completedTasks"`
	LoggedHours    float64 `json:"loggedHours"`
}

type WorkspaceProgress struct {
	Workspace      *repository.Workspace `json:"workspace"`
	Projects       StatusBreakdown       `json:"projects"`
	Tasks          StatusBreakdown       `json:"tasks"`
	TimeStats      WorkspaceTimeStats    `json:"timeStats"`
	ProjectSummary []ProjectSummary      `json:"projectSummary"`
	TopProjects    []ProjectSummary      `json:"topProjects"`
	RecentlyDone   []*repository.Task    `json:"recentlyCompleted"`
}

// AnalyticsQuery bounds a project analytics report. GroupBy defaults to day.
type AnalyticsQuery struct {
	From    *time.Time
	To      *time.Time
	GroupBy string
}

// MaxAnalyticsRange is the widest window a project analytics report covers.
const MaxAnalyticsRange = 365 * 24 * time.Hour

type DateRange struct {
	From time.Time `json:"startDate"`
	To   time.Time `json:"endDate"`
}

type AnalyticsSummary struct {
	TotalTasks        int `json:"totalTasks"`
	CompletedInPeriod int `json:"completedInPeriod"`
	AverageProgress   int `json:"averageProgress"`
	TimeEfficiency    int `json:"timeEfficiency"`
}

type ProjectAnalytics struct {
	ProjectID        string                    `json:"projectId"`
	DateRange        DateRange                 `json:"dateRange"`
	GroupBy          string                    `json:"groupBy"`
	ProgressOverTime []analytics.TimelinePoint `json:"progressOverTime"`
	Velocity         analytics.PeriodVelocity  `json:"velocityAnalytics"`
	Burndown         analytics.ScopeBurndown   `json:"burndownData"`
	Summary          AnalyticsSummary          `json:"summary"`
}

type DashboardWorkspace struct {
	Workspace *repository.Workspace `json:"workspace"`
	Role      string                `json:"role"`
}

type UserTaskStats struct {
	TotalInWorkspaces int            `json:"totalInWorkspaces"`
	Assigned          int            `json:"assigned"`
	Completed         int            `json:"completed"`
	Overdue           int            `json:"overdue"`
	CompletionRate    int            `json:"completionRate"`
	ByStatus          map[string]int `json:"byStatus"`
}

type UserProjectStats struct {
	Total     int            `json:"total"`
	Owned     int            `json:"owned"`
	Active    int            `json:"active"`
	Completed int            `json:"completed"`
	ByStatus  map[string]int `json:"byStatus"`
}

type UserDashboard struct {
	Workspaces     []DashboardWorkspace  `json:"workspaces"`
	TaskStats      UserTaskStats         `json:"taskStats"`
	ProjectStats   UserProjectStats      `json:"projectStats"`
	RecentTasks    []*repository.Task    `json:"recentTasks"`
	RecentProjects []*repository.Project `json:"recentProjects"`
	UpcomingTasks  []*repository.Task    `json:"upcomingTasks"`
}

type DashboardService interface {
	GetTaskProgress(ctx context.Context, actorID, taskID string) (*TaskProgress, error)
	GetProjectProgress(ctx context.Context, actorID, projectID string) (*ProjectProgress, error)
	GetWorkspaceProgress(ctx context.Context, actorID, workspaceID string) (*WorkspaceProgress, error)
	GetProjectAnalytics(ctx context.Context, actorID, projectID string, q AnalyticsQuery) (*ProjectAnalytics, error)
	GetUserDashboard(ctx context.Context, userID string) (*UserDashboard, error)
}

type dashboardService struct {
	*env
	access AccessService
}

func newDashboardService(e *env, access AccessService) *dashboardService {
	return &dashboardService{env: e, access: access}
}

// cached loads key into dest, or builds it and stores the result. Cache
// failures are logged and never fail the request.
func (s *dashboardService) cached(ctx context.Context, key string, dest interface{}, build func() error) error {
	if s.cache != nil {
		found, err := s.cache.GetCache(ctx, key, dest)
		if err != nil {
			s.log.WarnContext(ctx, "dashboard cache read failed", "key", key, "error", err)
		}
		if found {
			return nil
		}
	}

	if err := build(); err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.SetCache(ctx, key, dest, s.cfg.DashboardCacheTTL); err != nil {
			s.log.WarnContext(ctx, "dashboard cache write failed", "key", key, "error", err)
		}
	}
	return nil
}

func toAnalyticsEntries(entries []*repository.TimeEntry) []analytics.Entry {
	out := make([]analytics.Entry, 0, len(entries))
	for _, e := range entries {
		if e.IsRunning {
			continue
		}
		out = append(out, analytics.Entry{Date: e.Date, Hours: e.Hours})
	}
	return out
}

// ============================================
// Task
// ============================================

func (s *dashboardService) GetTaskProgress(ctx context.Context, actorID, taskID string) (*TaskProgress, error) {
	a, err := s.access.Resolve(ctx, actorID, Target{TaskID: taskID})
	if err != nil {
		return nil, err
	}

	out := &TaskProgress{}
	err = s.cached(ctx, taskDashboardKey(a.Project.ID, taskID), out, func() error {
		return s.buildTaskProgress(ctx, a.Task, out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *dashboardService) buildTaskProgress(ctx context.Context, task *repository.Task, out *TaskProgress) error {
	entries, err := s.repos.TimeEntryRepo.FindByTask(ctx, task.ID)
	if err != nil {
		return fmt.Errorf("find time entries: %w", err)
	}

	var stats TaskTimeStats
	for _, e := range entries {
		if e.IsRunning {
			continue
		}
		stats.TotalLogged += e.Hours
		if e.Billable {
			stats.BillableLogged += e.Hours
		}
		stats.EntriesCount++
	}
	stats.TotalLogged = analytics.RoundHours(stats.TotalLogged)
	stats.BillableLogged = analytics.RoundHours(stats.BillableLogged)

	points := toAnalyticsEntries(entries)
	now := s.now()

	burndown := analytics.Burndown(task.EstimatedHours, points)
	if burndown == nil {
		burndown = []analytics.BurndownPoint{}
	}

	// FindByTask is ordered by date ascending; the dashboard shows the newest first.
	recent := make([]*repository.TimeEntry, 0, 5)
	for i := len(entries) - 1; i >= 0 && len(recent) < 5; i-- {
		recent = append(recent, entries[i])
	}

	*out = TaskProgress{
		Task:      task,
		TimeStats: stats,
		Metrics: TaskMetrics{
			TimeProgress:        analytics.Percent(task.LoggedHours, task.EstimatedHours),
			RemainingHours:      task.RemainingHours,
			EstimatedCompletion: analytics.EstimatedCompletion(task.RemainingHours, task.Status == types.StatusDone, task.CompletedDate, points, now),
			Velocity:            analytics.BuildVelocityReport(points, now),
			Burndown:            burndown,
		},
		RecentEntries: recent,
	}
	return nil
}

// ============================================
// Project
// ============================================

func (s *dashboardService) GetProjectProgress(ctx context.Context, actorID, projectID string) (*ProjectProgress, error) {
	a, err := s.access.Resolve(ctx, actorID, Target{ProjectID: projectID})
	if err != nil {
		return nil, err
	}

	out := &ProjectProgress{}
	err = s.cached(ctx, projectDashboardKey(projectID), out, func() error {
		return s.buildProjectProgress(ctx, a.Project, out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func newStatusCounts(statuses []string) map[string]int {
	m := make(map[string]int, len(statuses))
	for _, st := range statuses {
		m[st] = 0
	}
	return m
}

func (s *dashboardService) buildProjectProgress(ctx context.Context, project *repository.Project, out *ProjectProgress) error {
	tasks, err := s.repos.TaskRepo.FindByProject(ctx, project.ID)
	if err != nil {
		return fmt.Errorf("find tasks: %w", err)
	}
	entries, err := s.repos.TimeEntryRepo.FindByProject(ctx, project.ID)
	if err != nil {
		return fmt.Errorf("find time entries: %w", err)
	}

	taskStats := newStatusCounts(types.ValidTaskStatuses)
	var timeStats ProjectTimeStats
	completed := 0
	doneTasks := make(map[string]bool)
	for _, t := range tasks {
		taskStats[t.Status]++
		timeStats.TotalEstimated += t.EstimatedHours
		timeStats.TotalLogged += t.LoggedHours
		timeStats.TotalRemaining += t.RemainingHours
		if t.Status == types.StatusDone {
			completed++
			doneTasks[t.ID] = true
		}
	}
	timeStats.TimeProgress = analytics.Percent(timeStats.TotalLogged, timeStats.TotalEstimated)
	timeStats.TotalEstimated = analytics.RoundHours(timeStats.TotalEstimated)
	timeStats.TotalLogged = analytics.RoundHours(timeStats.TotalLogged)
	timeStats.TotalRemaining = analytics.RoundHours(timeStats.TotalRemaining)

	type userAgg struct {
		hours float64
		tasks map[string]bool
	}
	byUser := make(map[string]*userAgg)
	var order []string
	for _, e := range entries {
		if e.IsRunning {
			continue
		}
		agg, ok := byUser[e.UserID]
		if !ok {
			agg = &userAgg{tasks: make(map[string]bool)}
			byUser[e.UserID] = agg
			order = append(order, e.UserID)
		}
		agg.hours += e.Hours
		agg.tasks[e.TaskID] = true
	}

	team := make([]MemberPerformance, 0, len(order))
	for _, userID := range order {
		agg := byUser[userID]
		done := 0
		for taskID := range agg.tasks {
			if doneTasks[taskID] {
				done++
			}
		}
		team = append(team, MemberPerformance{
			UserID:          userID,
			TotalHours:      analytics.RoundHours(agg.hours),
			TasksWorkedOn:   len(agg.tasks),
			AvgHoursPerTask: analytics.RoundHours(agg.hours / float64(len(agg.tasks))),
			CompletedTasks:  done,
		})
	}
	sort.SliceStable(team, func(i, j int) bool { return team[i].TotalHours > team[j].TotalHours })

	if tasks == nil {
		tasks = []*repository.Task{}
	}
	*out = ProjectProgress{
		Project:         project,
		TaskStats:       taskStats,
		TimeStats:       timeStats,
		Milestones:      analytics.Milestones(len(tasks), completed),
		TeamPerformance: team,
		Tasks:           tasks,
	}
	return nil
}

// ============================================
// Workspace
// ============================================

func (s *dashboardService) GetWorkspaceProgress(ctx context.Context, actorID, workspaceID string) (*WorkspaceProgress, error) {
	a, err := s.access.Resolve(ctx, actorID, Target{WorkspaceID: workspaceID})
	if err != nil {
		return nil, err
	}

	out := &WorkspaceProgress{}
	err = s.cached(ctx, workspaceDashboardKey(workspaceID), out, func() error {
		return s.buildWorkspaceProgress(ctx, a.Workspace, out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *dashboardService) buildWorkspaceProgress(ctx context.Context, ws *repository.Workspace, out *WorkspaceProgress) error {
	projects, _, err := s.repos.ProjectRepo.FindByWorkspace(ctx, ws.ID, false, 1000, 0)
	if err != nil {
		return fmt.Errorf("find projects: %w", err)
	}
	tasks, err := s.repos.TaskRepo.FindByWorkspace(ctx, ws.ID)
	if err != nil {
		return fmt.Errorf("find tasks: %w", err)
	}

	summaries := make(map[string]*ProjectSummary, len(projects))
	projectStats := StatusBreakdown{ByStatus: newStatusCounts(types.ValidProjectStatuses)}
	progressSum := 0
	list := make([]ProjectSummary, 0, len(projects))
	for _, p := range projects {
		projectStats.Total++
		projectStats.ByStatus[p.Status]++
		progressSum += p.Progress
		list = append(list, ProjectSummary{ID: p.ID, Name: p.Name, Status: p.Status, Progress: p.Progress})
	}
	for i := range list {
		summaries[list[i].ID] = &list[i]
	}
	if projectStats.Total > 0 {
		projectStats.AvgProgress = analytics.RoundInt(float64(progressSum) / float64(projectStats.Total))
	}

	taskStats := StatusBreakdown{ByStatus: newStatusCounts(types.ValidTaskStatuses)}
	var timeStats WorkspaceTimeStats
	taskProgressSum := 0
	var done []*repository.Task
	for _, t := range tasks {
		sum, ok := summaries[t.ProjectID]
		if !ok {
			continue
		}
		taskStats.Total++
		taskStats.ByStatus[t.Status]++
		taskProgressSum += t.Progress
		timeStats.TotalEstimated += t.EstimatedHours
		timeStats.TotalLogged += t.LoggedHours
		timeStats.TotalRemaining += t.RemainingHours

		sum.TaskCount++
		sum.LoggedHours += t.LoggedHours
		if t.Status == types.StatusDone {
			sum.CompletedTasks++
			if t.CompletedDate != nil {
				done = append(done, t)
			}
		}
	}
	if taskStats.Total > 0 {
		taskStats.AvgProgress = analytics.RoundInt(float64(taskProgressSum) / float64(taskStats.Total))
	}
	timeStats.TimeEfficiency = analytics.Percent(timeStats.TotalLogged, timeStats.TotalEstimated)
	timeStats.TotalEstimated = analytics.RoundHours(timeStats.TotalEstimated)
	timeStats.TotalLogged = analytics.RoundHours(timeStats.TotalLogged)
	timeStats.TotalRemaining = analytics.RoundHours(timeStats.TotalRemaining)
	for i := range list {
		list[i].LoggedHours = analytics.RoundHours(list[i].LoggedHours)
	}

	top := make([]ProjectSummary, len(list))
	copy(top, list)
	sort.SliceStable(top, func(i, j int) bool { return top[i].Progress > top[j].Progress })
	if len(top) > 5 {
		top = top[:5]
	}

	sort.SliceStable(done, func(i, j int) bool { return done[i].CompletedDate.After(*done[j].CompletedDate) })
	if len(done) > 10 {
		done = done[:10]
	}
	if done == nil {
		done = []*repository.Task{}
	}

	*out = WorkspaceProgress{
		Workspace:      ws,
		Projects:       projectStats,
		Tasks:          taskStats,
		TimeStats:      timeStats,
		ProjectSummary: list,
		TopProjects:    top,
		RecentlyDone:   done,
	}
	return nil
}

// ============================================
// Project analytics
// ============================================

func (s *dashboardService) GetProjectAnalytics(ctx context.Context, actorID, projectID string, q AnalyticsQuery) (*ProjectAnalytics, error) {
	if q.From == nil || q.To == nil {
		return nil, invalid("startDate and endDate are required")
	}
	if !q.To.After(*q.From) {
		return nil, invalid("endDate must be after startDate")
	}
	if q.To.Sub(*q.From) > MaxAnalyticsRange {
		return nil, invalid("date range cannot exceed 365 days")
	}
	if q.GroupBy == "" {
		q.GroupBy = analytics.GroupDay
	}
	if !analytics.IsGroupBy(q.GroupBy) {
		return nil, invalid("groupBy must be one of day, week, month")
	}

	a, err := s.access.Resolve(ctx, actorID, Target{ProjectID: projectID})
	if err != nil {
		return nil, err
	}

	tasks, err := s.repos.TaskRepo.FindByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("find tasks: %w", err)
	}

	snaps := make([]analytics.TaskSnapshot, 0, len(tasks))
	var estimated, logged float64
	for _, t := range tasks {
		snap := analytics.TaskSnapshot{EstimatedHours: t.EstimatedHours, LoggedHours: t.LoggedHours}
		if t.Status == types.StatusDone {
			snap.CompletedAt = t.CompletedDate
		}
		snaps = append(snaps, snap)
		estimated += t.EstimatedHours
		logged += t.LoggedHours
	}

	from, to := *q.From, *q.To
	velocity := analytics.VelocityBetween(snaps, from, to)
	timeline := analytics.Timeline(snaps, from, to, q.GroupBy)
	if timeline == nil {
		timeline = []analytics.TimelinePoint{}
	}

	return &ProjectAnalytics{
		ProjectID:        projectID,
		DateRange:        DateRange{From: from, To: to},
		GroupBy:          q.GroupBy,
		ProgressOverTime: timeline,
		Velocity:         velocity,
		Burndown:         analytics.Scope(snaps, to),
		Summary: AnalyticsSummary{
			TotalTasks:        len(tasks),
			CompletedInPeriod: velocity.TasksCompleted,
			AverageProgress:   a.Project.Progress,
			TimeEfficiency:    analytics.Percent(logged, estimated),
		},
	}, nil
}

// ============================================
// User dashboard
// ============================================

const (
	dashboardRecentTasks    = 10
	dashboardRecentProjects = 5
	dashboardUpcomingTasks  = 10
	dashboardUpcomingWindow = 7 * 24 * time.Hour
)

// GetUserDashboard summarizes the caller's work across every workspace they
// are an active member of.
func (s *dashboardService) GetUserDashboard(ctx context.Context, userID string) (*UserDashboard, error) {
	workspaces, _, err := s.repos.WorkspaceRepo.FindByUserID(ctx, userID, 1000, 0)
	if err != nil {
		return nil, fmt.Errorf("find workspaces: %w", err)
	}

	now := s.now()
	out := &UserDashboard{
		Workspaces:   make([]DashboardWorkspace, 0, len(workspaces)),
		TaskStats:    UserTaskStats{ByStatus: newStatusCounts(types.ValidTaskStatuses)},
		ProjectStats: UserProjectStats{ByStatus: newStatusCounts(types.ValidProjectStatuses)},
	}

	var involved, upcoming []*repository.Task
	var memberOf []*repository.Project
	for _, ws := range workspaces {
		m, err := s.repos.WorkspaceRepo.FindMember(ctx, ws.ID, userID)
		if err != nil {
			return nil, fmt.Errorf("find membership: %w", err)
		}
		if m == nil {
			continue
		}
		out.Workspaces = append(out.Workspaces, DashboardWorkspace{Workspace: ws, Role: m.Role})

		projects, _, err := s.repos.ProjectRepo.FindByWorkspace(ctx, ws.ID, false, 1000, 0)
		if err != nil {
			return nil, fmt.Errorf("find projects: %w", err)
		}
		for _, p := range projects {
			out.ProjectStats.Total++
			out.ProjectStats.ByStatus[p.Status]++
			if p.OwnerID == userID {
				out.ProjectStats.Owned++
			}
			switch p.Status {
			case types.ProjectActive:
				out.ProjectStats.Active++
			case types.ProjectCompleted:
				out.ProjectStats.Completed++
			}
			if p.IsMember(userID) {
				memberOf = append(memberOf, p)
			}
		}

		tasks, err := s.repos.TaskRepo.FindByWorkspace(ctx, ws.ID)
		if err != nil {
			return nil, fmt.Errorf("find tasks: %w", err)
		}
		for _, t := range tasks {
			out.TaskStats.TotalInWorkspaces++
			if t.IsAssignee(userID) || t.ReporterID == userID {
				involved = append(involved, t)
			}
			if !t.IsAssignee(userID) {
				continue
			}
			out.TaskStats.Assigned++
			out.TaskStats.ByStatus[t.Status]++
			closed := t.Status == types.StatusDone || t.Status == types.StatusCancelled
			if t.Status == types.StatusDone {
				out.TaskStats.Completed++
			}
			if closed || t.DueDate == nil {
				continue
			}
			if t.DueDate.Before(now) {
				out.TaskStats.Overdue++
			} else if t.DueDate.Sub(now) <= dashboardUpcomingWindow {
				upcoming = append(upcoming, t)
			}
		}
	}
	out.TaskStats.CompletionRate = analytics.Percent(float64(out.TaskStats.Completed), float64(out.TaskStats.Assigned))

	sort.SliceStable(involved, func(i, j int) bool { return involved[i].UpdatedAt.After(involved[j].UpdatedAt) })
	sort.SliceStable(memberOf, func(i, j int) bool { return memberOf[i].UpdatedAt.After(memberOf[j].UpdatedAt) })
	sort.SliceStable(upcoming, func(i, j int) bool { return upcoming[i].DueDate.Before(*upcoming[j].DueDate) })

	out.RecentTasks = firstN(involved, dashboardRecentTasks)
	out.RecentProjects = firstN(memberOf, dashboardRecentProjects)
	out.UpcomingTasks = firstN(upcoming, dashboardUpcomingTasks)
	return out, nil
}

// firstN returns at most n items, never nil.
func firstN[T any](items []T, n int) []T {
	if len(items) > n {
		items = items[:n]
	}
	if items == nil {
		return []T{}
	}
	return items
}
