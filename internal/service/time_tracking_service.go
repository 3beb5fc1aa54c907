package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/Marga-Ghale/ora-progress-api/internal/analytics"
	"github.com/Marga-Ghale/ora-progress-api/internal/repository"
	"github.com/Marga-Ghale/ora-progress-api/internal/types"
)

// ============================================
// Inputs & Results
// ============================================

type LogTimeInput struct {
	TaskID      string     `json:"taskId"`
	Hours       float64    `json:"hours"`
	Date        *time.Time `json:"date"`
	Description string     `json:"description"`
	Billable    bool       `json:"billable"`
}

type UpdateTimeEntryInput struct {
	Hours       *float64   `json:"hours"`
	Description *string    `json:"description"`
	Billable    *bool      `json:"billable"`
	Date        *time.Time `json:"date"`
}

type EntryQuery struct {
	From      *time.Time
	To        *time.Time
	ProjectID string
	TaskID    string
	Billable  *bool
	Page      int
	Limit     int
}

type EntryPage struct {
	Entries []*repository.TimeEntry `json:"entries"`
	Total   int                     `json:"total"`
	Page    int                     `json:"page"`
	Limit   int                     `json:"limit"`
	Summary repository.TimeSummary  `json:"summary"`
}

type RunningTimer struct {
	Entry        *repository.TimeEntry `json:"entry"`
	ElapsedHours float64               `json:"elapsedHours"`
}

type ApprovalResult struct {
	EntryID string `json:"entryId"`
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}

type TaskTime struct {
	TaskID         string  `json:"taskId"`
	Title          string  `json:"title"`
	Status         string  `json:"status"`
	EstimatedHours float64 `json:"estimatedHours"`
	LoggedHours    float64 `json:"loggedHours"`
}

type ProjectTime struct {
	ProjectID      string                 `json:"projectId"`
	Tasks          []TaskTime             `json:"tasks"`
	TotalEstimated float64                `json:"totalEstimated"`
	TotalLogged    float64                `json:"totalLogged"`
	Summary        repository.TimeSummary `json:"summary"`
}

type ReportQuery struct {
	Type      string
	From      *time.Time
	To        *time.Time
	ProjectID string
	UserID    string
}

type TimeReport struct {
	Type string                 `json:"type"`
	Rows []repository.ReportRow `json:"rows"`
}

type BulkLogItem struct {
	Index   int                   `json:"index"`
	TaskID  string                `json:"taskId"`
	Success bool                  `json:"success"`
	Code    string                `json:"code,omitempty"`
	Error   string                `json:"error,omitempty"`
	Entry   *repository.TimeEntry `json:"entry,omitempty"`
}

type BulkLogResult struct {
	Results []BulkLogItem `json:"results"`
	Summary BulkSummary   `json:"summary"`
}

// ExportQuery selects entries for an export. From and To are required.
type ExportQuery struct {
	From         *time.Time
	To           *time.Time
	ProjectIDs   []string
	UserIDs      []string
	BillableOnly bool
}

type ExportSummary struct {
	TotalEntries  int     `json:"totalEntries"`
	TotalHours    float64 `json:"totalHours"`
	BillableHours float64 `json:"billableHours"`
}

type TimeExport struct {
	WorkspaceID string                 `json:"workspaceId"`
	From        time.Time              `json:"from"`
	To          time.Time              `json:"to"`
	Rows        []repository.ExportRow `json:"rows"`
	Summary     ExportSummary          `json:"summary"`
}

// Summary periods.
const (
	PeriodToday = "today"
	PeriodWeek  = "week"
	PeriodMonth = "month"
)

type MySummary struct {
	Period        string                  `json:"period"`
	From          time.Time               `json:"from"`
	To            time.Time               `json:"to"`
	Summary       repository.TimeSummary  `json:"summary"`
	RecentEntries []*repository.TimeEntry `json:"recentEntries"`
}

type TimeTrackingService interface {
	StartTimer(ctx context.Context, userID, taskID, description string) (*repository.TimeEntry, error)
	StopTimer(ctx context.Context, userID, entryID string) (*repository.TimeEntry, error)
	GetRunningTimer(ctx context.Context, userID string) (*RunningTimer, error)
	LogTime(ctx context.Context, userID string, in LogTimeInput) (*repository.TimeEntry, error)
	UpdateTimeEntry(ctx context.Context, userID, entryID string, in UpdateTimeEntryInput) (*repository.TimeEntry, error)
	DeleteTimeEntry(ctx context.Context, userID, entryID string) error
	ApproveTimeEntries(ctx context.Context, approverID string, entryIDs []string, approved bool, comment string) ([]ApprovalResult, error)
	ListUserEntries(ctx context.Context, userID string, q EntryQuery) (*EntryPage, error)
	GetProjectTime(ctx context.Context, actorID, projectID string, from, to *time.Time) (*ProjectTime, error)
	GetTimeReport(ctx context.Context, actorID, workspaceID string, q ReportQuery) (*TimeReport, error)
	NotifyStaleTimers(ctx context.Context, olderThan time.Duration) (int, error)
	BulkLogTime(ctx context.Context, userID string, entries []LogTimeInput) (*BulkLogResult, error)
	ExportEntries(ctx context.Context, actorID, workspaceID string, q ExportQuery) (*TimeExport, error)
	GetMySummary(ctx context.Context, userID, period string) (*MySummary, error)
}

type timeTrackingService struct {
	*env
	permission PermissionService
}

func newTimeTrackingService(e *env, permission PermissionService) *timeTrackingService {
	return &timeTrackingService{env: e, permission: permission}
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location()).Add(24*time.Hour - time.Nanosecond)
}

func (s *timeTrackingService) isFuture(date time.Time) bool {
	return date.After(endOfDay(s.now()))
}

// addLoggedHours adjusts a task's logged hours by delta and re-derives the
// remaining estimate linearly.
func addLoggedHours(ctx context.Context, repos *repository.Repositories, taskID string, delta float64) error {
	task, err := repos.TaskRepo.FindByID(ctx, taskID)
	if err != nil {
		return fmt.Errorf("find task: %w", err)
	}
	if task == nil {
		return notFound("task")
	}

	logged := analytics.RoundHours(math.Max(0, task.LoggedHours+delta))
	remaining := analytics.RoundHours(math.Max(0, task.EstimatedHours-logged))
	if err := repos.TaskRepo.UpdateHours(ctx, taskID, logged, remaining); err != nil {
		return fmt.Errorf("update task hours: %w", err)
	}
	return nil
}

func entryPayload(e *repository.TimeEntry) map[string]interface{} {
	return map[string]interface{}{
		"entryId":   e.ID,
		"taskId":    e.TaskID,
		"projectId": e.ProjectID,
		"hours":     e.Hours,
		"isRunning": e.IsRunning,
		"startTime": e.StartTime,
		"endTime":   e.EndTime,
	}
}

// ============================================
// Timer
// ============================================

// StartTimer returns the already running entry together with
// ErrTimerAlreadyRunning when the user has one.
func (s *timeTrackingService) StartTimer(ctx context.Context, userID, taskID, description string) (*repository.TimeEntry, error) {
	a, err := s.permission.Check(ctx, userID, ActionLogTime, Target{TaskID: taskID}, "")
	if err != nil {
		return nil, err
	}

	running, err := s.repos.TimeEntryRepo.FindRunningByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find running timer: %w", err)
	}
	if running != nil {
		return running, ErrTimerAlreadyRunning
	}

	now := s.now()
	entry := &repository.TimeEntry{
		UserID:      userID,
		TaskID:      a.Task.ID,
		ProjectID:   a.Task.ProjectID,
		WorkspaceID: a.Workspace.ID,
		Description: strings.TrimSpace(description),
		Date:        now,
		IsRunning:   true,
		StartTime:   &now,
	}
	if err := s.repos.TimeEntryRepo.Create(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// lost a race with a concurrent start
			running, findErr := s.repos.TimeEntryRepo.FindRunningByUser(ctx, userID)
			if findErr != nil {
				return nil, fmt.Errorf("find running timer: %w", findErr)
			}
			return running, ErrTimerAlreadyRunning
		}
		return nil, fmt.Errorf("create time entry: %w", err)
	}

	s.log.InfoContext(ctx, "timer started", "user_id", userID, "task_id", taskID, "entry_id", entry.ID)
	s.notifier.TimerStarted(userID, entryPayload(entry))
	return entry, nil
}

// StopTimer closes the running entry and books its hours on the task. A timer
// that ran for less than 0.01h rounds to zero hours and is discarded instead of
// being stored; the returned entry then carries Hours == 0.
func (s *timeTrackingService) StopTimer(ctx context.Context, userID, entryID string) (*repository.TimeEntry, error) {
	var (
		entry     *repository.TimeEntry
		discarded bool
	)
	err := s.repos.WithTx(ctx, func(tx *repository.Repositories) error {
		var err error
		entry, err = tx.TimeEntryRepo.FindByID(ctx, entryID)
		if err != nil {
			return fmt.Errorf("find time entry: %w", err)
		}
		if entry == nil || entry.UserID != userID || !entry.IsRunning {
			return notFound("running timer")
		}

		now := s.now()
		hours := 0.0
		if entry.StartTime != nil {
			hours = analytics.RoundHours(math.Max(0, now.Sub(*entry.StartTime).Hours()))
		}
		entry.IsRunning = false
		entry.EndTime = &now
		entry.Hours = hours

		if hours == 0 {
			discarded = true
			if err := tx.TimeEntryRepo.Delete(ctx, entry.ID); err != nil {
				return fmt.Errorf("discard time entry: %w", err)
			}
			return nil
		}
		if err := tx.TimeEntryRepo.Update(ctx, entry); err != nil {
			return fmt.Errorf("update time entry: %w", err)
		}
		return addLoggedHours(ctx, tx, entry.TaskID, hours)
	})
	if err != nil {
		return nil, err
	}

	payload := entryPayload(entry)
	if discarded {
		s.log.InfoContext(ctx, "timer discarded", "user_id", userID, "entry_id", entry.ID)
		payload["discarded"] = true
		s.notifier.TimerStopped(userID, payload)
		return entry, nil
	}

	s.log.InfoContext(ctx, "timer stopped", "user_id", userID, "entry_id", entry.ID, "hours", entry.Hours)
	s.invalidateProgress(ctx, entry.WorkspaceID, entry.ProjectID)
	s.notifier.TimerStopped(userID, payload)
	return entry, nil
}

func (s *timeTrackingService) GetRunningTimer(ctx context.Context, userID string) (*RunningTimer, error) {
	entry, err := s.repos.TimeEntryRepo.FindRunningByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find running timer: %w", err)
	}
	if entry == nil {
		return nil, nil
	}

	elapsed := 0.0
	if entry.StartTime != nil {
		elapsed = analytics.RoundHours(math.Max(0, s.now().Sub(*entry.StartTime).Hours()))
	}
	return &RunningTimer{Entry: entry, ElapsedHours: elapsed}, nil
}

// NotifyStaleTimers warns users whose timer has been running longer than
// olderThan. It returns the number of timers found.
func (s *timeTrackingService) NotifyStaleTimers(ctx context.Context, olderThan time.Duration) (int, error) {
	stale, err := s.repos.TimeEntryRepo.FindStaleRunning(ctx, s.now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("find stale timers: %w", err)
	}

	for _, e := range stale {
		payload := entryPayload(e)
		payload["runningHours"] = analytics.RoundHours(s.now().Sub(*e.StartTime).Hours())
		s.notifier.TimerStale(e.UserID, payload)

		if s.mailer == nil {
			continue
		}
		user, err := s.repos.UserRepo.FindByID(ctx, e.UserID)
		if err != nil || user == nil {
			continue
		}
		task, err := s.repos.TaskRepo.FindByID(ctx, e.TaskID)
		if err != nil || task == nil {
			continue
		}
		if err := s.mailer.SendStaleTimer(user.Email, user.Name, task.Title, *e.StartTime); err != nil {
			s.log.WarnContext(ctx, "stale timer mail failed", "user_id", e.UserID, "error", err)
		}
	}
	return len(stale), nil
}

// ============================================
// Manual entries
// ============================================

func (s *timeTrackingService) LogTime(ctx context.Context, userID string, in LogTimeInput) (*repository.TimeEntry, error) {
	if in.Hours <= 0 {
		return nil, invalid("hours must be greater than zero")
	}
	date := s.now()
	if in.Date != nil {
		date = *in.Date
	}
	if s.isFuture(date) {
		return nil, ErrFutureDate
	}

	a, err := s.permission.Check(ctx, userID, ActionLogTime, Target{TaskID: in.TaskID}, "")
	if err != nil {
		return nil, err
	}

	entry := &repository.TimeEntry{
		UserID:      userID,
		TaskID:      a.Task.ID,
		ProjectID:   a.Task.ProjectID,
		WorkspaceID: a.Workspace.ID,
		Description: strings.TrimSpace(in.Description),
		Hours:       analytics.RoundHours(in.Hours),
		Date:        date,
		Billable:    in.Billable,
	}
	err = s.repos.WithTx(ctx, func(tx *repository.Repositories) error {
		if err := tx.TimeEntryRepo.Create(ctx, entry); err != nil {
			return fmt.Errorf("create time entry: %w", err)
		}
		return addLoggedHours(ctx, tx, entry.TaskID, entry.Hours)
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "time logged", "user_id", userID, "task_id", entry.TaskID, "hours", entry.Hours)
	s.invalidateProgress(ctx, entry.WorkspaceID, entry.ProjectID)
	return entry, nil
}

// editableEntry loads an entry the user may still change.
func editableEntry(ctx context.Context, repos *repository.Repositories, userID, entryID string) (*repository.TimeEntry, error) {
	entry, err := repos.TimeEntryRepo.FindByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("find time entry: %w", err)
	}
	if entry == nil || entry.UserID != userID {
		return nil, notFound("time entry")
	}
	if entry.IsRunning {
		return nil, &Error{Kind: KindNotEditable, Message: "stop the timer before editing this entry"}
	}
	if !entry.IsEditable() {
		return nil, ErrNotEditable
	}
	return entry, nil
}

func (s *timeTrackingService) UpdateTimeEntry(ctx context.Context, userID, entryID string, in UpdateTimeEntryInput) (*repository.TimeEntry, error) {
	if in.Hours != nil && *in.Hours <= 0 {
		return nil, invalid("hours must be greater than zero")
	}
	if in.Date != nil && s.isFuture(*in.Date) {
		return nil, ErrFutureDate
	}

	var entry *repository.TimeEntry
	err := s.repos.WithTx(ctx, func(tx *repository.Repositories) error {
		var err error
		entry, err = editableEntry(ctx, tx, userID, entryID)
		if err != nil {
			return err
		}

		delta := 0.0
		if in.Hours != nil {
			hours := analytics.RoundHours(*in.Hours)
			delta = hours - entry.Hours
			entry.Hours = hours
		}
		if in.Description != nil {
			entry.Description = strings.TrimSpace(*in.Description)
		}
		if in.Billable != nil {
			entry.Billable = *in.Billable
		}
		if in.Date != nil {
			entry.Date = *in.Date
		}

		if err := tx.TimeEntryRepo.Update(ctx, entry); err != nil {
			return fmt.Errorf("update time entry: %w", err)
		}
		if delta != 0 {
			return addLoggedHours(ctx, tx, entry.TaskID, delta)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateProgress(ctx, entry.WorkspaceID, entry.ProjectID)
	return entry, nil
}

func (s *timeTrackingService) DeleteTimeEntry(ctx context.Context, userID, entryID string) error {
	var entry *repository.TimeEntry
	err := s.repos.WithTx(ctx, func(tx *repository.Repositories) error {
		var err error
		entry, err = editableEntry(ctx, tx, userID, entryID)
		if err != nil {
			return err
		}
		if err := tx.TimeEntryRepo.Delete(ctx, entry.ID); err != nil {
			return fmt.Errorf("delete time entry: %w", err)
		}
		return addLoggedHours(ctx, tx, entry.TaskID, -entry.Hours)
	})
	if err != nil {
		return err
	}

	s.invalidateProgress(ctx, entry.WorkspaceID, entry.ProjectID)
	return nil
}

// ApproveTimeEntries decides every entry independently; one failure never
// affects the others.
func (s *timeTrackingService) ApproveTimeEntries(ctx context.Context, approverID string, entryIDs []string, approved bool, comment string) ([]ApprovalResult, error) {
	if len(entryIDs) == 0 {
		return nil, invalid("entryIds is required")
	}

	results := make([]ApprovalResult, 0, len(entryIDs))
	for _, id := range entryIDs {
		res := ApprovalResult{EntryID: id, Success: true}
		if err := s.approveOne(ctx, approverID, id, approved, comment); err != nil {
			res.Success = false
			res.Error = err.Error()
			var de *Error
			if errors.As(err, &de) {
				res.Code = de.Kind
			}
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *timeTrackingService) approveOne(ctx context.Context, approverID, entryID string, approved bool, comment string) error {
	entry, err := s.repos.TimeEntryRepo.FindByID(ctx, entryID)
	if err != nil {
		return fmt.Errorf("find time entry: %w", err)
	}
	if entry == nil {
		return notFound("time entry")
	}

	member, err := s.repos.WorkspaceRepo.FindMember(ctx, entry.WorkspaceID, approverID)
	if err != nil {
		return fmt.Errorf("find membership: %w", err)
	}
	if err := Authorize(ActionApproveTime, AuthContext{Membership: member, ActorID: approverID}).Err(); err != nil {
		return err
	}
	if entry.IsRunning {
		return &Error{Kind: KindNotEditable, Message: "a running timer cannot be approved"}
	}
	if entry.Invoiced {
		return &Error{Kind: KindNotEditable, Message: "invoiced entries cannot change approval"}
	}

	entry.Approved = approved
	entry.ApprovalComment = strings.TrimSpace(comment)
	if approved {
		now := s.now()
		entry.ApprovedBy = &approverID
		entry.ApprovedAt = &now
	} else {
		entry.ApprovedBy = nil
		entry.ApprovedAt = nil
	}
	if err := s.repos.TimeEntryRepo.Update(ctx, entry); err != nil {
		return fmt.Errorf("update time entry: %w", err)
	}
	return nil
}

// ============================================
// Queries
// ============================================

func (s *timeTrackingService) ListUserEntries(ctx context.Context, userID string, q EntryQuery) (*EntryPage, error) {
	page, limit := normalizePage(q.Page, q.Limit)
	filter := repository.TimeEntryFilter{
		UserID:    userID,
		ProjectID: q.ProjectID,
		TaskID:    q.TaskID,
		Billable:  q.Billable,
		From:      q.From,
		To:        q.To,
		Limit:     limit,
		Offset:    (page - 1) * limit,
	}

	entries, total, err := s.repos.TimeEntryRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list time entries: %w", err)
	}
	summary, err := s.repos.TimeEntryRepo.Summarize(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("summarize time entries: %w", err)
	}
	if entries == nil {
		entries = []*repository.TimeEntry{}
	}

	return &EntryPage{
		Entries: entries,
		Total:   total,
		Page:    page,
		Limit:   limit,
		Summary: roundSummary(*summary),
	}, nil
}

func roundSummary(s repository.TimeSummary) repository.TimeSummary {
	s.TotalHours = analytics.RoundHours(s.TotalHours)
	s.BillableHours = analytics.RoundHours(s.BillableHours)
	s.NonBillableHours = analytics.RoundHours(s.NonBillableHours)
	return s
}

func (s *timeTrackingService) GetProjectTime(ctx context.Context, actorID, projectID string, from, to *time.Time) (*ProjectTime, error) {
	if _, err := resolveAccess(ctx, s.repos, actorID, Target{ProjectID: projectID}); err != nil {
		return nil, err
	}

	tasks, err := s.repos.TaskRepo.FindByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("find tasks: %w", err)
	}
	entries, err := s.repos.TimeEntryRepo.FindByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("find time entries: %w", err)
	}

	loggedByTask := map[string]float64{}
	var summary repository.TimeSummary
	for _, e := range entries {
		if (from != nil && e.Date.Before(*from)) || (to != nil && e.Date.After(*to)) {
			continue
		}
		loggedByTask[e.TaskID] += e.Hours
		summary.TotalHours += e.Hours
		if e.Billable {
			summary.BillableHours += e.Hours
		} else {
			summary.NonBillableHours += e.Hours
		}
		summary.TotalEntries++
	}

	out := &ProjectTime{ProjectID: projectID, Tasks: make([]TaskTime, 0, len(tasks)), Summary: roundSummary(summary)}
	for _, t := range tasks {
		logged := analytics.RoundHours(loggedByTask[t.ID])
		out.Tasks = append(out.Tasks, TaskTime{
			TaskID:         t.ID,
			Title:          t.Title,
			Status:         t.Status,
			EstimatedHours: t.EstimatedHours,
			LoggedHours:    logged,
		})
		out.TotalEstimated += t.EstimatedHours
		out.TotalLogged += logged
	}
	out.TotalEstimated = analytics.RoundHours(out.TotalEstimated)
	out.TotalLogged = analytics.RoundHours(out.TotalLogged)
	return out, nil
}

// GetTimeReport aggregates a workspace's time. Members without the
// view_reports permission only see their own hours.
func (s *timeTrackingService) GetTimeReport(ctx context.Context, actorID, workspaceID string, q ReportQuery) (*TimeReport, error) {
	if q.Type == "" {
		q.Type = repository.ReportSummary
	}
	switch q.Type {
	case repository.ReportSummary, repository.ReportDaily, repository.ReportUser, repository.ReportProject:
	default:
		return nil, invalid("unknown report type " + q.Type)
	}

	a, err := resolveAccess(ctx, s.repos, actorID, Target{WorkspaceID: workspaceID})
	if err != nil {
		return nil, err
	}

	if !slices.Contains(types.PermissionsForRole(a.Role()), types.PermViewReports) {
		q.UserID = actorID
	}

	rows, err := s.repos.ReportRepo.TimeReport(ctx, repository.ReportFilter{
		WorkspaceID: workspaceID,
		GroupBy:     q.Type,
		ProjectID:   q.ProjectID,
		UserID:      q.UserID,
		From:        q.From,
		To:          q.To,
	})
	if err != nil {
		return nil, fmt.Errorf("time report: %w", err)
	}

	if q.Type == repository.ReportSummary && len(rows) == 0 {
		rows = []repository.ReportRow{{}}
	}
	for i := range rows {
		rows[i].TotalHours = analytics.RoundHours(rows[i].TotalHours)
		rows[i].BillableHours = analytics.RoundHours(rows[i].BillableHours)
		rows[i].NonBillableHours = analytics.RoundHours(rows[i].NonBillableHours)
		rows[i].AvgHoursPerEntry = analytics.RoundHours(rows[i].AvgHoursPerEntry)
	}
	if rows == nil {
		rows = []repository.ReportRow{}
	}
	return &TimeReport{Type: q.Type, Rows: rows}, nil
}

// ============================================
// Bulk, export & summaries
// ============================================

// BulkLogTime logs each entry on its own transaction; a failing entry is
// reported and the others still land.
func (s *timeTrackingService) BulkLogTime(ctx context.Context, userID string, entries []LogTimeInput) (*BulkLogResult, error) {
	if err := checkBulkSize(len(entries), MaxBulkTimeEntries); err != nil {
		return nil, err
	}

	out := &BulkLogResult{Results: make([]BulkLogItem, 0, len(entries))}
	for i, in := range entries {
		item := BulkLogItem{Index: i, TaskID: in.TaskID}
		entry, err := s.LogTime(ctx, userID, in)
		if err != nil {
			item.Code, item.Error = s.itemFailure(ctx, err)
			out.Summary.Failed++
		} else {
			item.Success, item.Entry = true, entry
			out.Summary.Successful++
		}
		out.Results = append(out.Results, item)
	}
	out.Summary.Total = len(entries)
	return out, nil
}

// ExportEntries lists closed entries of a workspace for a date range. Members
// without view_reports only export their own entries.
func (s *timeTrackingService) ExportEntries(ctx context.Context, actorID, workspaceID string, q ExportQuery) (*TimeExport, error) {
	if q.From == nil || q.To == nil {
		return nil, invalid("startDate and endDate are required")
	}
	if q.To.Before(*q.From) {
		return nil, invalid("endDate must not be before startDate")
	}

	a, err := resolveAccess(ctx, s.repos, actorID, Target{WorkspaceID: workspaceID})
	if err != nil {
		return nil, err
	}
	if !slices.Contains(types.PermissionsForRole(a.Role()), types.PermViewReports) {
		q.UserIDs = []string{actorID}
	}

	rows, err := s.repos.ReportRepo.ExportRows(ctx, repository.ExportFilter{
		WorkspaceID:  workspaceID,
		ProjectIDs:   q.ProjectIDs,
		UserIDs:      q.UserIDs,
		BillableOnly: q.BillableOnly,
		From:         *q.From,
		To:           *q.To,
	})
	if err != nil {
		return nil, fmt.Errorf("export time entries: %w", err)
	}
	if rows == nil {
		rows = []repository.ExportRow{}
	}

	out := &TimeExport{WorkspaceID: workspaceID, From: *q.From, To: *q.To, Rows: rows}
	for _, r := range rows {
		out.Summary.TotalEntries++
		out.Summary.TotalHours += r.Hours
		if r.Billable {
			out.Summary.BillableHours += r.Hours
		}
	}
	out.Summary.TotalHours = analytics.RoundHours(out.Summary.TotalHours)
	out.Summary.BillableHours = analytics.RoundHours(out.Summary.BillableHours)

	s.log.InfoContext(ctx, "time entries exported", "workspace_id", workspaceID, "user_id", actorID, "rows", len(rows))
	return out, nil
}

// periodRange returns the calendar day, the Sunday-to-Saturday week or the
// month containing now.
func periodRange(period string, now time.Time) (time.Time, time.Time, error) {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	switch period {
	case PeriodToday:
		return today, endOfDay(today), nil
	case PeriodWeek, "":
		start := today.AddDate(0, 0, -int(today.Weekday()))
		return start, endOfDay(start.AddDate(0, 0, 6)), nil
	case PeriodMonth:
		start := time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
		return start, endOfDay(start.AddDate(0, 1, -1)), nil
	}
	return time.Time{}, time.Time{}, invalid("unknown period " + period)
}

// GetMySummary totals the user's hours for the period and lists the ten most
// recent entries in it.
func (s *timeTrackingService) GetMySummary(ctx context.Context, userID, period string) (*MySummary, error) {
	from, to, err := periodRange(period, s.now())
	if err != nil {
		return nil, err
	}
	if period == "" {
		period = PeriodWeek
	}

	filter := repository.TimeEntryFilter{UserID: userID, From: &from, To: &to}
	summary, err := s.repos.TimeEntryRepo.Summarize(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("summarize time entries: %w", err)
	}

	filter.Limit = 10
	recent, _, err := s.repos.TimeEntryRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list time entries: %w", err)
	}
	if recent == nil {
		recent = []*repository.TimeEntry{}
	}

	return &MySummary{
		Period:        period,
		From:          from,
		To:            to,
		Summary:       roundSummary(*summary),
		RecentEntries: recent,
	}, nil
}
