package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Marga-Ghale/ora-progress-api/internal/analytics"
	"github.com/Marga-Ghale/ora-progress-api/internal/repository"
	"github.com/Marga-Ghale/ora-progress-api/internal/types"
)

// ============================================
// Task Service
// ============================================

type CreateTaskInput struct {
	Title          string     `json:"title"`
	Description    *string    `json:"description"`
	Type           string     `json:"type"`
	Status         string     `json:"status"`
	Priority       string     `json:"priority"`
	AssigneeID     *string    `json:"assigneeId"`
	EstimatedHours float64    `json:"estimatedHours"`
	DueDate        *time.Time `json:"dueDate"`
}

// UpdateTaskInput changes only the non-nil fields. An empty AssigneeID
// unassigns the task.
type UpdateTaskInput struct {
	Title          *string    `json:"title"`
	Description    *string    `json:"description"`
	Type           *string    `json:"type"`
	Priority       *string    `json:"priority"`
	AssigneeID     *string    `json:"assigneeId"`
	EstimatedHours *float64   `json:"estimatedHours"`
	DueDate        *time.Time `json:"dueDate"`
	TaskProgressInput
}

type TaskService interface {
	Create(ctx context.Context, actorID, projectID string, in CreateTaskInput) (*repository.Task, error)
	Get(ctx context.Context, actorID, taskID string) (*repository.Task, error)
	ListForProject(ctx context.Context, actorID, projectID string, filter repository.TaskFilter, page, limit int) ([]*repository.Task, int, error)
	ListForUser(ctx context.Context, userID, status string, page, limit int) ([]*repository.Task, int, error)
	Update(ctx context.Context, actorID, taskID string, in UpdateTaskInput) (*repository.Task, error)
	Delete(ctx context.Context, actorID, taskID string) error
	AddWatcher(ctx context.Context, actorID, taskID, userID string) (*repository.Task, error)
	RemoveWatcher(ctx context.Context, actorID, taskID, userID string) error
}

type taskService struct {
	*env
	permission PermissionService
	progress   *progressService
}

func newTaskService(e *env, permission PermissionService, progress *progressService) *taskService {
	return &taskService{env: e, permission: permission, progress: progress}
}

func (s *taskService) Create(ctx context.Context, actorID, projectID string, in CreateTaskInput) (*repository.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalid("title is required")
	}
	if in.EstimatedHours < 0 {
		return nil, invalid("estimatedHours cannot be negative")
	}
	taskType := defaultString(in.Type, types.TypeTask)
	if !types.IsValidTaskType(taskType) {
		return nil, invalid("unknown task type " + taskType)
	}
	priority := defaultString(in.Priority, types.PriorityMedium)
	if !types.IsValidPriority(priority) {
		return nil, invalid("unknown priority " + priority)
	}
	status := defaultString(in.Status, types.StatusTodo)
	if !types.IsValidTaskStatus(status) {
		return nil, invalid("unknown task status " + status)
	}

	a, err := s.permission.Check(ctx, actorID, ActionCreateTask, Target{ProjectID: projectID}, "")
	if err != nil {
		return nil, err
	}
	if in.AssigneeID != nil && *in.AssigneeID != "" && !a.Project.IsMember(*in.AssigneeID) {
		return nil, invalid("assignee must be a project member")
	}
	if in.AssigneeID != nil && *in.AssigneeID == "" {
		in.AssigneeID = nil
	}

	task := &repository.Task{
		WorkspaceID:    a.Workspace.ID,
		ProjectID:      projectID,
		Title:          title,
		Description:    in.Description,
		Type:           taskType,
		Status:         types.StatusTodo,
		Priority:       priority,
		AssigneeID:     in.AssigneeID,
		ReporterID:     actorID,
		EstimatedHours: analytics.RoundHours(in.EstimatedHours),
		RemainingHours: analytics.RoundHours(in.EstimatedHours),
		DueDate:        in.DueDate,
		WatcherIDs:     []string{},
	}
	if status != types.StatusTodo {
		applyTaskProgress(task, TaskProgressInput{Status: &status}, s.now)
	}

	var project *repository.Project
	err = s.repos.WithTx(ctx, func(tx *repository.Repositories) error {
		if err := tx.TaskRepo.Create(ctx, task); err != nil {
			return fmt.Errorf("create task: %w", err)
		}
		var err error
		project, err = recomputeProject(ctx, tx, projectID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "task created", "task_id", task.ID, "project_id", projectID, "reporter_id", actorID)
	s.progress.publishProjectProgress(ctx, project)
	return task, nil
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (s *taskService) Get(ctx context.Context, actorID, taskID string) (*repository.Task, error) {
	a, err := resolveAccess(ctx, s.repos, actorID, Target{TaskID: taskID})
	if err != nil {
		return nil, err
	}
	return a.Task, nil
}

func (s *taskService) ListForProject(ctx context.Context, actorID, projectID string, filter repository.TaskFilter, page, limit int) ([]*repository.Task, int, error) {
	if _, err := resolveAccess(ctx, s.repos, actorID, Target{ProjectID: projectID}); err != nil {
		return nil, 0, err
	}
	if filter.Status != "" && !types.IsValidTaskStatus(filter.Status) {
		return nil, 0, invalid("unknown task status " + filter.Status)
	}
	if filter.Priority != "" && !types.IsValidPriority(filter.Priority) {
		return nil, 0, invalid("unknown priority " + filter.Priority)
	}

	page, limit = normalizePage(page, limit)
	filter.ProjectID = projectID
	filter.Limit = limit
	filter.Offset = (page - 1) * limit

	tasks, total, err := s.repos.TaskRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	if tasks == nil {
		tasks = []*repository.Task{}
	}
	return tasks, total, nil
}

func (s *taskService) ListForUser(ctx context.Context, userID, status string, page, limit int) ([]*repository.Task, int, error) {
	if status != "" && !types.IsValidTaskStatus(status) {
		return nil, 0, invalid("unknown task status " + status)
	}
	page, limit = normalizePage(page, limit)
	tasks, total, err := s.repos.TaskRepo.List(ctx, repository.TaskFilter{
		AssigneeID: userID,
		Status:     status,
		Limit:      limit,
		Offset:     (page - 1) * limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	if tasks == nil {
		tasks = []*repository.Task{}
	}
	return tasks, total, nil
}

func (s *taskService) Update(ctx context.Context, actorID, taskID string, in UpdateTaskInput) (*repository.Task, error) {
	if err := in.TaskProgressInput.validate(); err != nil {
		return nil, err
	}
	if in.EstimatedHours != nil && *in.EstimatedHours < 0 {
		return nil, invalid("estimatedHours cannot be negative")
	}
	if in.Type != nil && !types.IsValidTaskType(*in.Type) {
		return nil, invalid("unknown task type " + *in.Type)
	}
	if in.Priority != nil && !types.IsValidPriority(*in.Priority) {
		return nil, invalid("unknown priority " + *in.Priority)
	}
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return nil, invalid("title cannot be empty")
	}

	a, err := s.permission.Check(ctx, actorID, ActionUpdateTask, Target{TaskID: taskID}, "")
	if err != nil {
		return nil, err
	}
	if !in.TaskProgressInput.empty() {
		// Progress and status go through the same gate as UpdateTaskProgress,
		// judged against the task as stored.
		if err := s.permission.Authorize(ActionUpdateProgress, AuthContext{
			Membership: a.Membership,
			Workspace:  a.Workspace,
			Project:    a.Project,
			Task:       a.Task,
			ActorID:    actorID,
		}).Err(); err != nil {
			return nil, err
		}
	}
	if in.AssigneeID != nil && *in.AssigneeID != "" && !a.Project.IsMember(*in.AssigneeID) {
		return nil, invalid("assignee must be a project member")
	}

	var (
		task    *repository.Task
		project *repository.Project
	)
	err = s.repos.WithTx(ctx, func(tx *repository.Repositories) error {
		var err error
		task, err = tx.TaskRepo.FindByID(ctx, taskID)
		if err != nil {
			return fmt.Errorf("find task: %w", err)
		}
		if task == nil {
			return notFound("task")
		}

		if in.Title != nil {
			task.Title = strings.TrimSpace(*in.Title)
		}
		if in.Description != nil {
			task.Description = in.Description
		}
		if in.Type != nil {
			task.Type = *in.Type
		}
		if in.Priority != nil {
			task.Priority = *in.Priority
		}
		if in.AssigneeID != nil {
			if *in.AssigneeID == "" {
				task.AssigneeID = nil
			} else {
				assignee := *in.AssigneeID
				task.AssigneeID = &assignee
			}
		}
		if in.DueDate != nil {
			task.DueDate = in.DueDate
		}
		if in.EstimatedHours != nil {
			task.EstimatedHours = analytics.RoundHours(*in.EstimatedHours)
			if in.TaskProgressInput.empty() && task.Status != types.StatusDone {
				task.RemainingHours = analytics.RoundHours(math.Max(0, task.EstimatedHours-task.LoggedHours))
			}
		}
		if !in.TaskProgressInput.empty() {
			applyTaskProgress(task, in.TaskProgressInput, s.now)
		}

		if err := tx.TaskRepo.Update(ctx, task); err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		project, err = recomputeProject(ctx, tx, task.ProjectID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !in.TaskProgressInput.empty() {
		s.notifier.TaskProgressUpdated(task.ProjectID, map[string]interface{}{
			"taskId":         task.ID,
			"progress":       task.Progress,
			"status":         task.Status,
			"remainingHours": task.RemainingHours,
			"updatedBy":      actorID,
		})
	}
	s.progress.publishProjectProgress(ctx, project)
	return task, nil
}

// Delete removes the task with its time entries and recomputes the project.
func (s *taskService) Delete(ctx context.Context, actorID, taskID string) error {
	a, err := s.permission.Check(ctx, actorID, ActionDeleteTask, Target{TaskID: taskID}, "")
	if err != nil {
		return err
	}

	var project *repository.Project
	err = s.repos.WithTx(ctx, func(tx *repository.Repositories) error {
		if err := tx.TaskRepo.Delete(ctx, taskID); err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		var err error
		project, err = recomputeProject(ctx, tx, a.Project.ID)
		return err
	})
	if err != nil {
		return err
	}

	s.log.InfoContext(ctx, "task deleted", "task_id", taskID, "deleted_by", actorID)
	s.progress.publishProjectProgress(ctx, project)
	return nil
}

// ============================================
// Watchers
// ============================================

func (s *taskService) AddWatcher(ctx context.Context, actorID, taskID, userID string) (*repository.Task, error) {
	if userID == "" {
		userID = actorID
	}
	a, err := s.permission.Check(ctx, actorID, ActionAddWatcher, Target{TaskID: taskID}, userID)
	if err != nil {
		return nil, err
	}
	if !a.Project.IsMember(userID) {
		return nil, invalid("watcher must be a project member")
	}

	if err := s.repos.TaskRepo.AddWatcher(ctx, taskID, userID); err != nil {
		return nil, fmt.Errorf("add watcher: %w", err)
	}
	task := a.Task
	for _, id := range task.WatcherIDs {
		if id == userID {
			return task, nil
		}
	}
	task.WatcherIDs = append(task.WatcherIDs, userID)
	return task, nil
}

func (s *taskService) RemoveWatcher(ctx context.Context, actorID, taskID, userID string) error {
	if userID == "" {
		userID = actorID
	}
	if _, err := s.permission.Check(ctx, actorID, ActionRemoveWatcher, Target{TaskID: taskID}, userID); err != nil {
		return err
	}
	if err := s.repos.TaskRepo.RemoveWatcher(ctx, taskID, userID); err != nil {
		return fmt.Errorf("remove watcher: %w", err)
	}
	return nil
}
