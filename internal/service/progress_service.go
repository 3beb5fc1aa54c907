package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Marga-Ghale/ora-progress-api/internal/analytics"
	"github.com/Marga-Ghale/ora-progress-api/internal/repository"
	"github.com/Marga-Ghale/ora-progress-api/internal/types"
)

// TaskProgressInput carries an optional change of progress, status and
// remaining hours. Nil fields are left alone.
type TaskProgressInput struct {
	Progress       *int     `json:"progress"`
	Status         *string  `json:"status"`
	RemainingHours *float64 `json:"remainingHours"`
}

func (in TaskProgressInput) empty() bool {
	return in.Progress == nil && in.Status == nil && in.RemainingHours == nil
}

// validate clamps progress into [0,100] and rejects the rest.
func (in *TaskProgressInput) validate() error {
	if in.Progress != nil {
		p := min(max(*in.Progress, 0), 100)
		in.Progress = &p
	}
	if in.RemainingHours != nil && *in.RemainingHours < 0 {
		return invalid("remainingHours cannot be negative")
	}
	if in.Status != nil && !types.IsValidTaskStatus(*in.Status) {
		return invalid("unknown task status " + *in.Status)
	}
	return nil
}

// TaskProgressUpdate is one item of a bulk progress request.
type TaskProgressUpdate struct {
	TaskID       string            `json:"taskId"`
	ProgressData TaskProgressInput `json:"progressData"`
}

type BulkProgressItem struct {
	TaskID  string           `json:"taskId"`
	Success bool             `json:"success"`
	Code    string           `json:"code,omitempty"`
	Error   string           `json:"error,omitempty"`
	Task    *repository.Task `json:"task,omitempty"`
}

type BulkProgressResult struct {
	Results []BulkProgressItem `json:"results"`
	Summary BulkSummary        `json:"summary"`
}

type ProgressService interface {
	RecomputeProjectProgress(ctx context.Context, projectID string) (int, error)
	RecomputeAll(ctx context.Context) (int, error)
	UpdateTaskProgress(ctx context.Context, taskID, actorID string, in TaskProgressInput) (*repository.Task, error)
	BulkUpdateTaskProgress(ctx context.Context, actorID string, updates []TaskProgressUpdate) (*BulkProgressResult, error)
}

type progressService struct {
	*env
	permission PermissionService
}

func newProgressService(e *env, permission PermissionService) *progressService {
	return &progressService{env: e, permission: permission}
}

// ============================================
// Project roll-up
// ============================================

// recomputeProject rolls task progress up into the project and applies the
// status triggers. It runs on whatever repositories it is given so callers can
// include it in their transaction.
func recomputeProject(ctx context.Context, repos *repository.Repositories, projectID string) (*repository.Project, error) {
	project, err := repos.ProjectRepo.FindByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("find project: %w", err)
	}
	if project == nil {
		return nil, notFound("project")
	}

	tasks, err := repos.TaskRepo.FindByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("find tasks: %w", err)
	}

	weighted := make([]analytics.WeightedTask, 0, len(tasks))
	for _, t := range tasks {
		weighted = append(weighted, analytics.WeightedTask{EstimatedHours: t.EstimatedHours, Progress: t.Progress})
	}
	progress := analytics.WeightedProgress(weighted)

	status := nextProjectStatus(project.Status, progress)
	if progress != project.Progress || status != project.Status {
		if err := repos.ProjectRepo.UpdateProgress(ctx, projectID, progress, status); err != nil {
			return nil, fmt.Errorf("update project progress: %w", err)
		}
	}
	project.Progress = progress
	project.Status = status
	return project, nil
}

// nextProjectStatus never moves a project out of completed or cancelled.
func nextProjectStatus(current string, progress int) string {
	switch {
	case current == types.ProjectCompleted || current == types.ProjectCancelled:
		return current
	case progress == 100:
		return types.ProjectCompleted
	case progress > 0 && current == types.ProjectPlanning:
		return types.ProjectActive
	}
	return current
}

func (s *progressService) RecomputeProjectProgress(ctx context.Context, projectID string) (int, error) {
	var project *repository.Project
	err := s.repos.WithTx(ctx, func(tx *repository.Repositories) error {
		var err error
		project, err = recomputeProject(ctx, tx, projectID)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.publishProjectProgress(ctx, project)
	return project.Progress, nil
}

// RecomputeAll recomputes every open project and returns how many succeeded.
func (s *progressService) RecomputeAll(ctx context.Context) (int, error) {
	ids, err := s.repos.ProjectRepo.ListActiveIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list projects: %w", err)
	}

	done := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if _, err := s.RecomputeProjectProgress(ctx, id); err != nil {
			s.log.ErrorContext(ctx, "project recompute failed", "project_id", id, "error", err)
			continue
		}
		done++
	}
	return done, nil
}

func (s *progressService) publishProjectProgress(ctx context.Context, project *repository.Project) {
	s.invalidateProgress(ctx, project.WorkspaceID, project.ID)
	s.notifier.ProgressUpdated(project.ID, map[string]interface{}{
		"projectId":   project.ID,
		"workspaceId": project.WorkspaceID,
		"progress":    project.Progress,
		"status":      project.Status,
	})
}

// ============================================
// Task progress
// ============================================

// applyTaskProgress mutates t according to in. Completion forces 100% and zero
// remaining work; leaving done clears the completion date.
func applyTaskProgress(t *repository.Task, in TaskProgressInput, now func() time.Time) {
	prevStatus := t.Status
	if in.Status != nil {
		t.Status = *in.Status
	}
	if in.Progress != nil {
		t.Progress = *in.Progress
	}

	if t.Status == types.StatusInProgress && t.StartDate == nil {
		started := now()
		t.StartDate = &started
	}

	if t.Status == types.StatusDone {
		t.Progress = 100
		t.RemainingHours = 0
		if prevStatus != types.StatusDone || t.CompletedDate == nil {
			completed := now()
			t.CompletedDate = &completed
		}
		return
	}
	t.CompletedDate = nil

	switch {
	case in.RemainingHours != nil:
		t.RemainingHours = analytics.RoundHours(*in.RemainingHours)
	case in.Progress != nil || in.Status != nil:
		t.RemainingHours = analytics.RoundHours(math.Max(0, t.EstimatedHours*(1-float64(t.Progress)/100)))
	}
}

func (s *progressService) UpdateTaskProgress(ctx context.Context, taskID, actorID string, in TaskProgressInput) (*repository.Task, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if _, err := s.permission.Check(ctx, actorID, ActionUpdateProgress, Target{TaskID: taskID}, ""); err != nil {
		return nil, err
	}

	var (
		task    *repository.Task
		project *repository.Project
	)
	err := s.repos.WithTx(ctx, func(tx *repository.Repositories) error {
		var err error
		task, err = tx.TaskRepo.FindByID(ctx, taskID)
		if err != nil {
			return fmt.Errorf("find task: %w", err)
		}
		if task == nil {
			return notFound("task")
		}

		applyTaskProgress(task, in, s.now)
		if err := tx.TaskRepo.Update(ctx, task); err != nil {
			return fmt.Errorf("update task: %w", err)
		}

		project, err = recomputeProject(ctx, tx, task.ProjectID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "task progress updated",
		"task_id", task.ID, "progress", task.Progress, "status", task.Status, "project_progress", project.Progress)

	s.notifier.TaskProgressUpdated(task.ProjectID, map[string]interface{}{
		"taskId":         task.ID,
		"progress":       task.Progress,
		"status":         task.Status,
		"remainingHours": task.RemainingHours,
		"updatedBy":      actorID,
	})
	s.publishProjectProgress(ctx, project)
	return task, nil
}

// BulkUpdateTaskProgress applies each update on its own, in order. A failed
// item is reported in its result and never stops the rest.
func (s *progressService) BulkUpdateTaskProgress(ctx context.Context, actorID string, updates []TaskProgressUpdate) (*BulkProgressResult, error) {
	if err := checkBulkSize(len(updates), MaxBulkProgressUpdates); err != nil {
		return nil, err
	}

	out := &BulkProgressResult{Results: make([]BulkProgressItem, 0, len(updates))}
	for _, u := range updates {
		item := BulkProgressItem{TaskID: u.TaskID}
		var (
			task *repository.Task
			err  error
		)
		if u.TaskID == "" {
			err = invalid("taskId is required")
		} else {
			task, err = s.UpdateTaskProgress(ctx, u.TaskID, actorID, u.ProgressData)
		}
		if err != nil {
			item.Code, item.Error = s.itemFailure(ctx, err)
			out.Summary.Failed++
		} else {
			item.Success, item.Task = true, task
			out.Summary.Successful++
		}
		out.Results = append(out.Results, item)
	}
	out.Summary.Total = len(updates)

	s.log.InfoContext(ctx, "bulk progress update", "user_id", actorID,
		"successful", out.Summary.Successful, "failed", out.Summary.Failed)
	return out, nil
}
