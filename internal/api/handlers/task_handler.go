package handlers

import (
	"net/http"

	"github.com/Marga-Ghale/ora-progress-api/internal/api/middleware"
	"github.com/Marga-Ghale/ora-progress-api/internal/models"
	"github.com/Marga-Ghale/ora-progress-api/internal/repository"
	"github.com/Marga-Ghale/ora-progress-api/internal/service"
	"github.com/gin-gonic/gin"
)

type TaskHandler struct {
	taskService     service.TaskService
	progressService service.ProgressService
}

func NewTaskHandler(taskService service.TaskService, progressService service.ProgressService) *TaskHandler {
	return &TaskHandler{taskService: taskService, progressService: progressService}
}

// ============================================
// TASK CRUD
// ============================================

// Create - POST /projects/:id/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req models.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	task, err := h.taskService.Create(c.Request.Context(), userID, c.Param("id"), service.CreateTaskInput{
		Title:          req.Title,
		Description:    req.Description,
		Type:           req.Type,
		Status:         req.Status,
		Priority:       req.Priority,
		AssigneeID:     req.AssigneeID,
		EstimatedHours: req.EstimatedHours,
		DueDate:        req.DueDate,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// ListByProject - GET /projects/:id/tasks
func (h *TaskHandler) ListByProject(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var q models.ListTasksQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}

	filter := repository.TaskFilter{Status: q.Status, Priority: q.Priority, AssigneeID: q.AssigneeID}
	tasks, total, err := h.taskService.ListForProject(c.Request.Context(), userID, c.Param("id"), filter, q.Page, q.Limit)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, paginated(tasks, total, q.PageQuery))
}

// ListMine - GET /tasks/my
func (h *TaskHandler) ListMine(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var q models.ListTasksQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}

	tasks, total, err := h.taskService.ListForUser(c.Request.Context(), userID, q.Status, q.Page, q.Limit)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, paginated(tasks, total, q.PageQuery))
}

// Get - GET /tasks/:id
func (h *TaskHandler) Get(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	task, err := h.taskService.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// Update - PUT /tasks/:id
func (h *TaskHandler) Update(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req models.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	task, err := h.taskService.Update(c.Request.Context(), userID, c.Param("id"), service.UpdateTaskInput{
		Title:          req.Title,
		Description:    req.Description,
		Type:           req.Type,
		Priority:       req.Priority,
		AssigneeID:     req.AssigneeID,
		EstimatedHours: req.EstimatedHours,
		DueDate:        req.DueDate,
		TaskProgressInput: service.TaskProgressInput{
			Progress:       req.Progress,
			Status:         req.Status,
			RemainingHours: req.RemainingHours,
		},
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// Delete - DELETE /tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	if err := h.taskService.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateProgress - PATCH /tasks/:id/progress
func (h *TaskHandler) UpdateProgress(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req models.UpdateTaskProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	task, err := h.progressService.UpdateTaskProgress(c.Request.Context(), c.Param("id"), userID, service.TaskProgressInput{
		Progress:       req.Progress,
		Status:         req.Status,
		RemainingHours: req.RemainingHours,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// BulkUpdateProgress - PUT /progress/tasks/bulk
// Each update succeeds or fails on its own; the response reports both.
func (h *TaskHandler) BulkUpdateProgress(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req models.BulkTaskProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	updates := make([]service.TaskProgressUpdate, 0, len(req.Updates))
	for _, u := range req.Updates {
		updates = append(updates, service.TaskProgressUpdate{
			TaskID: u.TaskID,
			ProgressData: service.TaskProgressInput{
				Progress:       u.ProgressData.Progress,
				Status:         u.ProgressData.Status,
				RemainingHours: u.ProgressData.RemainingHours,
			},
		})
	}

	result, err := h.progressService.BulkUpdateTaskProgress(c.Request.Context(), userID, updates)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ============================================
// WATCHERS
// ============================================

// AddWatcher - POST /tasks/:id/watchers
// An empty body watches the task as the current user.
func (h *TaskHandler) AddWatcher(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req models.AddWatcherRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	task, err := h.taskService.AddWatcher(c.Request.Context(), userID, c.Param("id"), req.UserID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// RemoveWatcher - DELETE /tasks/:id/watchers/:userId
func (h *TaskHandler) RemoveWatcher(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	if err := h.taskService.RemoveWatcher(c.Request.Context(), userID, c.Param("id"), c.Param("userId")); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
