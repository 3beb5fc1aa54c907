package models

import "time"

// ============================================
// TASK REQUESTS
// ============================================

type CreateTaskRequest struct {
	Title          string     `json:"title" binding:"required"`
	Description    *string    `json:"description"`
	Type           string     `json:"type"`
	Status         string     `json:"status"`
	Priority       string     `json:"priority"`
	AssigneeID     *string    `json:"assigneeId"`
	EstimatedHours float64    `json:"estimatedHours" binding:"gte=0"`
	DueDate        *time.Time `json:"dueDate"`
}

type UpdateTaskRequest struct {
	Title          *string    `json:"title"`
	Description    *string    `json:"description"`
	Type           *string    `json:"type"`
	Priority       *string    `json:"priority"`
	AssigneeID     *string    `json:"assigneeId"`
	EstimatedHours *float64   `json:"estimatedHours"`
	DueDate        *time.Time `json:"dueDate"`
	Status         *string    `json:"status"`
	Progress       *int       `json:"progress"`
	RemainingHours *float64   `json:"remainingHours"`
}

// UpdateTaskProgressRequest leaves range checks to the service, which clamps
// progress instead of rejecting it.
type UpdateTaskProgressRequest struct {
	Progress       *int     `json:"progress"`
	Status         *string  `json:"status"`
	RemainingHours *float64 `json:"remainingHours"`
}

type TaskProgressUpdateRequest struct {
	TaskID       string                    `json:"taskId"`
	ProgressData UpdateTaskProgressRequest `json:"progressData"`
}

// BulkTaskProgressRequest carries up to 50 updates; size is checked by the service.
type BulkTaskProgressRequest struct {
	Updates []TaskProgressUpdateRequest `json:"updates"`
}

type AddWatcherRequest struct {
	UserID string `json:"userId"`
}

type ListTasksQuery struct {
	PageQuery
	Status     string `form:"status"`
	Priority   string `form:"priority"`
	AssigneeID string `form:"assigneeId"`
}
